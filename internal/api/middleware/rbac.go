package middleware

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
)

// RequireRoles lets a request through when the subject holds at least one of
// allowed. Until the persisted session has been restored the decision uses
// the cached role list, so guarded routes do not bounce during start-up.
func RequireRoles(s Session, allowed ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			select {
			case <-s.Ready():
				if s.CurrentIdentity() == nil {
					return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
				}
				if !s.HasAnyRole(allowed...) {
					return echo.NewHTTPError(http.StatusForbidden, "forbidden")
				}
			default:
				cached := s.CachedRoles(c.Request().Context())
				if len(cached) == 0 {
					return echo.NewHTTPError(http.StatusUnauthorized, "session is still loading")
				}
				if len(allowed) > 0 && !slices.ContainsFunc(allowed, func(r domain.Role) bool {
					return slices.Contains(cached, r)
				}) {
					return echo.NewHTTPError(http.StatusForbidden, "forbidden")
				}
			}
			return next(c)
		}
	}
}
