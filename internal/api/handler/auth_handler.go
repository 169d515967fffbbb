package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
)

// SessionService is the session store as seen by the HTTP layer.
type SessionService interface {
	Login(ctx context.Context, creds domain.Credentials) (*domain.Identity, error)
	Register(ctx context.Context, profile domain.Profile) (string, error)
	Logout()
	CurrentIdentity() *domain.Identity
	Expiry() time.Time
}

type AuthHandler struct {
	session SessionService
}

func NewAuthHandler(session SessionService) *AuthHandler {
	return &AuthHandler{session: session}
}

type sessionResponse struct {
	Authenticated bool             `json:"authenticated"`
	User          *domain.Identity `json:"user,omitempty"`
	DisplayName   string           `json:"display_name,omitempty"`
	ExpiresAt     *time.Time       `json:"expires_at,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *AuthHandler) sessionView() sessionResponse {
	identity := h.session.CurrentIdentity()
	if identity == nil {
		return sessionResponse{}
	}
	exp := h.session.Expiry()
	return sessionResponse{
		Authenticated: true,
		User:          identity,
		DisplayName:   identity.DisplayName(),
		ExpiresAt:     &exp,
	}
}

// Register creates a marketplace account. It does not sign in.
//
// @Summary      Register a new account
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body      domain.Profile  true  "Account details"
// @Success      201   {object}  messageResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Router       /session/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req domain.Profile
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	msg, err := h.session.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	if msg == "" {
		msg = "registered"
	}
	return c.JSON(http.StatusCreated, messageResponse{Message: msg})
}

// Login signs in against the marketplace backend and starts the session.
//
// @Summary      Login
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body      domain.Credentials  true  "Login credentials"
// @Success      200   {object}  sessionResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /session/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req domain.Credentials
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	if _, err := h.session.Login(c.Request().Context(), req); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.sessionView())
}

// Logout clears the session. It always succeeds.
//
// @Summary      Logout
// @Tags         session
// @Success      204
// @Router       /session/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	h.session.Logout()
	return c.NoContent(http.StatusNoContent)
}

// Me reports the current session.
//
// @Summary      Current session
// @Tags         session
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Router       /session [get]
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sessionView())
}
