package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"bizrent_ledger/internal/ledger"
	"bizrent_ledger/internal/middleware"
	"bizrent_ledger/internal/models"
)

// InvoiceHandler serves invoice listing, generation and lifecycle endpoints
type InvoiceHandler struct {
	ledger *ledger.Ledger
}

func NewInvoiceHandler(l *ledger.Ledger) *InvoiceHandler {
	return &InvoiceHandler{ledger: l}
}

// ListInvoices returns one page of the caller's invoices (?status=&page=)
func (h *InvoiceHandler) ListInvoices(c echo.Context) error {
	filter := ledger.InvoiceFilter{Status: models.InvoiceStatus(c.QueryParam("status"))}
	if raw := c.QueryParam("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return &ledger.ValidationError{Field: "page", Message: "page must be a positive number"}
		}
		filter.Page = page
	}

	page, err := h.ledger.ListInvoices(c.Request().Context(), middleware.Session(c), filter)
	if err != nil {
		return err
	}
	return ok(c, page)
}

// GetInvoice returns an invoice with its payment attempts
func (h *InvoiceHandler) GetInvoice(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	inv, err := h.ledger.GetInvoice(c.Request().Context(), middleware.Session(c), id)
	if err != nil {
		return err
	}
	return ok(c, inv)
}

// CreateInvoice issues a single manual invoice
func (h *InvoiceHandler) CreateInvoice(c echo.Context) error {
	var req ledger.CreateInvoiceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	inv, err := h.ledger.CreateInvoice(c.Request().Context(), middleware.Session(c), req)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, inv, "Invoice created")
}

// GenerateInvoices bills every occupied unit of the landlord for a month
func (h *InvoiceHandler) GenerateInvoices(c echo.Context) error {
	var req ledger.GenerateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	report, err := h.ledger.GenerateInvoices(c.Request().Context(), middleware.Session(c), req)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, report, fmt.Sprintf("Generated %d invoice(s) for %s", report.Count(), report.Period))
}

// CancelInvoice voids an unpaid invoice
func (h *InvoiceHandler) CancelInvoice(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	inv, err := h.ledger.CancelInvoice(c.Request().Context(), middleware.Session(c), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, inv, "Invoice cancelled")
}

// SweepOverdue marks the landlord's past-due invoices as overdue
func (h *InvoiceHandler) SweepOverdue(c echo.Context) error {
	result, err := h.ledger.SweepOverdue(c.Request().Context(), middleware.Session(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, result, fmt.Sprintf("%d invoice(s) marked overdue", result.Count))
}
