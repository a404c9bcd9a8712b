// Package server assembles the HTTP API.
package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	authhandler "corecrm/backend/internal/auth/handler"
	"corecrm/backend/internal/server/middleware"
)

// Server wraps the Echo instance with its listen address.
type Server struct {
	echo *echo.Echo
	addr string
}

// New builds the router: public auth routes, the bearer-protected /v1/me,
// and a liveness probe.
func New(addr string, auth *authhandler.AuthHandler, verifier middleware.TokenVerifier) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.ClientIP())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})

	v1 := e.Group("/v1")
	a := v1.Group("/auth")
	a.POST("/register", auth.Register)
	a.POST("/login", auth.Login)
	a.POST("/logout", auth.Logout)
	a.POST("/refresh", auth.Refresh)
	a.POST("/forgot-password", auth.ForgotPassword)
	a.POST("/reset-password", auth.ResetPassword)
	a.POST("/verify-email", auth.VerifyEmail)
	a.GET("/verify-email", auth.VerifyEmail)
	a.POST("/resend-verification", auth.ResendVerification)

	v1.GET("/me", auth.Me, middleware.RequireAuth(verifier))

	return &Server{echo: e, addr: addr}
}

// Echo exposes the underlying router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start listens on the configured address and blocks until the server stops.
func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
