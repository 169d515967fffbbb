package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
)

// IdentityKey is the echo context key RequireSession stores the subject under.
const IdentityKey = "identity"

// Session is the part of the session store the guards need.
type Session interface {
	CurrentIdentity() *domain.Identity
	HasAnyRole(roles ...domain.Role) bool
	CachedRoles(ctx context.Context) []domain.Role
	Ready() <-chan struct{}
}

// RequireSession rejects requests while no session is authenticated and
// injects the current identity into the context.
func RequireSession(s Session) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity := s.CurrentIdentity()
			if identity == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}
			c.Set(IdentityKey, identity)
			return next(c)
		}
	}
}
