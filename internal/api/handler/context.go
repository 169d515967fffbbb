package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/homeservice/marketplace-agent/internal/api/middleware"
	"github.com/homeservice/marketplace-agent/internal/core/domain"
)

// ctxIdentity returns the subject injected by RequireSession. Handlers behind
// that middleware can rely on it; elsewhere a missing identity is a 401.
func ctxIdentity(c echo.Context) (*domain.Identity, error) {
	identity, _ := c.Get(middleware.IdentityKey).(*domain.Identity)
	if identity == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing session identity")
	}
	return identity, nil
}

// pathID reads a non-empty id path parameter.
func pathID(c echo.Context, name string) (domain.ID, error) {
	v := strings.TrimSpace(c.Param(name))
	if v == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, name+" is required")
	}
	return domain.ID(v), nil
}

// bindJSON decodes the body into dst and reports malformed payloads as 400.
func bindJSON(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	return nil
}
