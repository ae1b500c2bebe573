package handlers

import (
	"github.com/labstack/echo/v4"

	"bizrent_ledger/internal/ledger"
	"bizrent_ledger/internal/middleware"
)

// UserHandler lists the people a landlord rents to
type UserHandler struct {
	ledger *ledger.Ledger
}

func NewUserHandler(l *ledger.Ledger) *UserHandler {
	return &UserHandler{ledger: l}
}

// ListTenants returns the tenants occupying the landlord's units
func (h *UserHandler) ListTenants(c echo.Context) error {
	tenants, err := h.ledger.ListTenants(c.Request().Context(), middleware.Session(c))
	if err != nil {
		return err
	}
	return ok(c, tenants)
}
