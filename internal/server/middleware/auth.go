package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	authservice "corecrm/backend/internal/auth/service"
)

// TokenVerifier validates a bearer access token and resolves the caller.
type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (*authservice.Identity, error)
}

// ClientIP stashes the request's client IP into the request context so
// code below the handler (the audit logger) can record it.
func ClientIP() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			c.SetRequest(req.WithContext(WithClientIP(req.Context(), c.RealIP())))
			return next(c)
		}
	}
}

// RequireAuth rejects requests without a valid bearer access token and puts
// the resolved identity into both the echo context and the request context.
func RequireAuth(verifier TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
			ident, err := verifier.VerifyAccessToken(c.Request().Context(), token)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			req := c.Request()
			c.SetRequest(req.WithContext(WithIdentity(req.Context(), ident)))
			return next(c)
		}
	}
}

// IdentityFrom returns the identity RequireAuth attached to the request.
func IdentityFrom(c echo.Context) (*authservice.Identity, bool) {
	return GetIdentity(c.Request().Context())
}
