package handler

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"corecrm/backend/internal/auth/service"
	"corecrm/backend/internal/server/middleware"
	sessiondomain "corecrm/backend/internal/session/domain"
	sessionservice "corecrm/backend/internal/session/service"
	userdomain "corecrm/backend/internal/user/domain"
)

// AuthHandler exposes the credential lifecycle over HTTP.
type AuthHandler struct {
	svc *service.AuthService
}

func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// ----- DTOs -----

type registerReq struct {
	OrgName   string `json:"org_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type emailReq struct {
	Email string `json:"email"`
}
type resetReq struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}
type tokenReq struct {
	Token string `json:"token"`
}

type userPart struct {
	ID            string `json:"id"`
	OrgID         string `json:"org_id"`
	Email         string `json:"email"`
	FirstName     string `json:"first_name,omitempty"`
	LastName      string `json:"last_name,omitempty"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"email_verified"`
}
type authResp struct {
	User             userPart  `json:"user"`
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func toAuthResp(res *service.AuthResult) authResp {
	return authResp{
		User:             toUserPart(res.User),
		AccessToken:      res.Pair.AccessToken,
		AccessExpiresAt:  res.Pair.AccessExpiresAt,
		RefreshToken:     res.Pair.RefreshToken,
		RefreshExpiresAt: res.Pair.RefreshExpiresAt,
	}
}

func toUserPart(u *userdomain.User) userPart {
	return userPart{
		ID:            u.ID,
		OrgID:         u.OrgID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Role:          string(u.Role),
		EmailVerified: u.EmailVerified,
	}
}

func clientFrom(c echo.Context) sessiondomain.Client {
	return sessiondomain.Client{
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}

// writeError maps service errors onto the HTTP failure taxonomy. Everything
// credential-shaped is a coarse 401; internals are logged, never leaked.
func writeError(c echo.Context, err error) error {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Msg})
	}
	var locked *service.AccountLockedError
	if errors.As(err, &locked) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": locked.Error()})
	}
	switch {
	case errors.Is(err, service.ErrDuplicateEmail):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
	case errors.Is(err, service.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	case errors.Is(err, service.ErrAccountDeactivated):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "account deactivated"})
	case errors.Is(err, service.ErrUnauthorized),
		errors.Is(err, sessionservice.ErrSessionNotFound),
		errors.Is(err, sessionservice.ErrSessionExpired):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	case errors.Is(err, service.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	log.Printf("auth: %s %s failed: %v", c.Request().Method, c.Path(), err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// Register creates an organization and its founding user, returning 201 with
// a token pair.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	res, err := h.svc.Register(c.Request().Context(), req.OrgName, req.Email, req.Password, req.FirstName, req.LastName, clientFrom(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toAuthResp(res))
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	res, err := h.svc.Login(c.Request().Context(), req.Email, req.Password, clientFrom(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toAuthResp(res))
}

// Logout always answers 200. With a refresh token in the body it revokes that
// session; with only a bearer token it revokes every session of the caller.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req) // body is optional

	ctx := c.Request().Context()
	if req.RefreshToken != "" {
		if err := h.svc.Logout(ctx, nil, req.RefreshToken); err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
	}

	if token, ok := bearerToken(c); ok {
		if ident, err := h.svc.VerifyAccessToken(ctx, token); err == nil {
			if err := h.svc.Logout(ctx, ident, ""); err != nil {
				return writeError(c, err)
			}
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	res, err := h.svc.Refresh(c.Request().Context(), req.RefreshToken, clientFrom(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toAuthResp(res))
}

// ForgotPassword answers generically whether or not the account exists.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}
	if err := h.svc.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "if the account exists, a reset link has been sent"})
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}
	if err := h.svc.ResetPassword(c.Request().Context(), req.Token, req.NewPassword); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}

// VerifyEmail accepts the token in the body or as ?token= for link clicks.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req tokenReq
	_ = c.Bind(&req)
	if req.Token == "" {
		req.Token = c.QueryParam("token")
	}
	if req.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}
	if err := h.svc.VerifyEmail(c.Request().Context(), req.Token); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "email verified"})
}

func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}
	if err := h.svc.ResendVerification(c.Request().Context(), req.Email); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "if the account exists, a verification link has been sent"})
}

// Me returns the authenticated user's profile and organization.
func (h *AuthHandler) Me(c echo.Context) error {
	ident, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	user, org, err := h.svc.Me(c.Request().Context(), ident)
	if err != nil {
		return writeError(c, err)
	}
	resp := echo.Map{"user": toUserPart(user)}
	if org != nil {
		resp["organization"] = echo.Map{"id": org.ID, "name": org.Name}
	}
	return c.JSON(http.StatusOK, resp)
}

func bearerToken(c echo.Context) (string, bool) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix)), true
}
