package handlers

import (
	"github.com/labstack/echo/v4"

	"bizrent_ledger/internal/identity"
	"bizrent_ledger/internal/middleware"
	"bizrent_ledger/internal/services"
)

type UserPreferenceHandler struct {
	prefs *services.PreferenceService
}

func NewUserPreferenceHandler(prefs *services.PreferenceService) *UserPreferenceHandler {
	return &UserPreferenceHandler{prefs: prefs}
}

// GetUserPreference returns the caller's notification preference
func (h *UserPreferenceHandler) GetUserPreference(c echo.Context) error {
	session := middleware.Session(c)
	if session == nil {
		return identity.ErrUnauthenticated
	}

	pref, err := h.prefs.Get(c.Request().Context(), session.UserID())
	if err != nil {
		return err
	}
	return ok(c, pref)
}

// UpdateUserPreference stores the caller's notification preference
func (h *UserPreferenceHandler) UpdateUserPreference(c echo.Context) error {
	session := middleware.Session(c)
	if session == nil {
		return identity.ErrUnauthenticated
	}

	var in services.PreferenceInput
	if err := bindAndValidate(c, &in); err != nil {
		return err
	}

	pref, err := h.prefs.Update(c.Request().Context(), session.UserID(), in)
	if err != nil {
		return err
	}
	return respond(c, 200, pref, "Preference saved")
}
