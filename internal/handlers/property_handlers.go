package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"bizrent_ledger/internal/ledger"
	"bizrent_ledger/internal/middleware"
)

// PropertyHandler serves the landlord's properties and units
type PropertyHandler struct {
	ledger *ledger.Ledger
}

func NewPropertyHandler(l *ledger.Ledger) *PropertyHandler {
	return &PropertyHandler{ledger: l}
}

func (h *PropertyHandler) ListProperties(c echo.Context) error {
	props, err := h.ledger.ListProperties(c.Request().Context(), middleware.Session(c))
	if err != nil {
		return err
	}
	return ok(c, props)
}

func (h *PropertyHandler) CreateProperty(c echo.Context) error {
	var in ledger.PropertyInput
	if err := bindAndValidate(c, &in); err != nil {
		return err
	}

	prop, err := h.ledger.CreateProperty(c.Request().Context(), middleware.Session(c), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, prop, "Property created")
}

func (h *PropertyHandler) DeleteProperty(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	if err := h.ledger.DeleteProperty(c.Request().Context(), middleware.Session(c), id); err != nil {
		return err
	}
	return respond(c, http.StatusOK, nil, "Property deleted")
}

func (h *PropertyHandler) CreateUnit(c echo.Context) error {
	var in ledger.UnitInput
	if err := bindAndValidate(c, &in); err != nil {
		return err
	}

	unit, err := h.ledger.CreateUnit(c.Request().Context(), middleware.Session(c), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, unit, "Unit created")
}

type assignTenantRequest struct {
	TenantID uint `json:"tenantId" validate:"required"`
}

// AssignTenant moves a tenant into a vacant unit
func (h *PropertyHandler) AssignTenant(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req assignTenantRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	unit, err := h.ledger.AssignTenant(c.Request().Context(), middleware.Session(c), id, req.TenantID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, unit, "Tenant assigned")
}

// VacateUnit removes the tenant from a unit
func (h *PropertyHandler) VacateUnit(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	unit, err := h.ledger.VacateUnit(c.Request().Context(), middleware.Session(c), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, unit, "Unit vacated")
}
