package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"bizrent_ledger/internal/middleware"
	"bizrent_ledger/internal/services"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	accounts *services.AccountService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(accounts *services.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

// Register creates an account and returns a bearer token
func (h *AuthHandler) Register(c echo.Context) error {
	var req services.RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.accounts.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, result, "Account created")
}

// Login exchanges email and password for a bearer token
func (h *AuthHandler) Login(c echo.Context) error {
	var req services.LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.accounts.Login(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return ok(c, result)
}

// Me returns the authenticated user
func (h *AuthHandler) Me(c echo.Context) error {
	user, err := h.accounts.Me(c.Request().Context(), middleware.Session(c))
	if err != nil {
		return err
	}
	return ok(c, user)
}
