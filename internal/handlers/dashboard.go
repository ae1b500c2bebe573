package handlers

import (
	"time"

	"github.com/labstack/echo/v4"

	"bizrent_ledger/internal/ledger"
	"bizrent_ledger/internal/middleware"
	"bizrent_ledger/internal/services"
)

// DashboardTTL is how long dashboard stats stay cached
const DashboardTTL = 60 * time.Second

// DashboardHandler handles dashboard stats
type DashboardHandler struct {
	ledger *ledger.Ledger
	cache  *services.RedisCache
}

// NewDashboardHandler creates a new DashboardHandler. cache may be nil.
func NewDashboardHandler(l *ledger.Ledger, cache *services.RedisCache) *DashboardHandler {
	return &DashboardHandler{ledger: l, cache: cache}
}

// Landlord returns the landlord's portfolio stats
func (h *DashboardHandler) Landlord(c echo.Context) error {
	ctx := c.Request().Context()
	session := middleware.Session(c)
	if session == nil {
		return ledger.ErrUnauthenticated
	}

	stats, err := services.GetOrSet(h.cache, ctx, ledger.DashboardCacheKey(session.UserID()), DashboardTTL, func() (*ledger.LandlordDashboard, error) {
		return h.ledger.LandlordDashboard(ctx, session)
	})
	if err != nil {
		return err
	}
	return ok(c, stats)
}

// Tenant returns the tenant's balance overview
func (h *DashboardHandler) Tenant(c echo.Context) error {
	ctx := c.Request().Context()
	session := middleware.Session(c)
	if session == nil {
		return ledger.ErrUnauthenticated
	}

	stats, err := services.GetOrSet(h.cache, ctx, ledger.DashboardCacheKey(session.UserID()), DashboardTTL, func() (*ledger.TenantDashboard, error) {
		return h.ledger.TenantDashboard(ctx, session)
	})
	if err != nil {
		return err
	}
	return ok(c, stats)
}
