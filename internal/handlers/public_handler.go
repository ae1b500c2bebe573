package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"bizrent_ledger/internal/ledger"
	"bizrent_ledger/internal/views"
)

// PublicHandler serves unauthenticated pages
type PublicHandler struct {
	ledger *ledger.Ledger
	db     *gorm.DB
}

func NewPublicHandler(l *ledger.Ledger, db *gorm.DB) *PublicHandler {
	return &PublicHandler{ledger: l, db: db}
}

// Receipt renders the receipt page addressed by its download token
func (h *PublicHandler) Receipt(c echo.Context) error {
	token := c.Param("token")
	receipt, err := h.ledger.ReceiptByToken(c.Request().Context(), token)
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return views.ReceiptPage(views.ReceiptPageProps{
		Receipt:     *receipt,
		DownloadURL: h.ledger.ReceiptURL(receipt.Token),
	}).Render(c.Request().Context(), c.Response())
}

// Health reports whether the database is reachable
func (h *PublicHandler) Health(c echo.Context) error {
	sqlDB, err := h.db.DB()
	if err == nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
