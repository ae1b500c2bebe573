package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"bizrent_ledger/internal/identity"
	"bizrent_ledger/internal/models"
)

const (
	sessionKey = "session"
	userKey    = "user"
)

// Authenticator resolves a bearer token into the caller's session
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (identity.Session, *models.User, error)
}

// RequireAuth returns a middleware that verifies the bearer token on every request
func RequireAuth(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return identity.ErrUnauthenticated
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader || strings.TrimSpace(tokenString) == "" {
				return identity.ErrUnauthenticated
			}

			session, user, err := auth.Authenticate(c.Request().Context(), tokenString)
			if err != nil {
				return err
			}

			// Set session in context for downstream handlers
			c.Set(sessionKey, session)
			c.Set(userKey, user)
			c.SetRequest(c.Request().WithContext(identity.WithSession(c.Request().Context(), session)))

			return next(c)
		}
	}
}

// RequireRole rejects authenticated callers with a different role
func RequireRole(role models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session := Session(c)
			if session == nil {
				return identity.ErrUnauthenticated
			}
			if session.Role() != role {
				return identity.ErrForbidden
			}
			return next(c)
		}
	}
}

// Session returns the session stored by RequireAuth, or nil
func Session(c echo.Context) identity.Session {
	if s, ok := c.Get(sessionKey).(identity.Session); ok {
		return s
	}
	return nil
}

// User returns the user stored by RequireAuth, or nil
func User(c echo.Context) *models.User {
	if u, ok := c.Get(userKey).(*models.User); ok {
		return u
	}
	return nil
}
