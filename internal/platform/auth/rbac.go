package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireRole returns middleware admitting only sessions holding one of the
// given roles. A degraded session (missing profile) has no role and is
// rejected with the advisory warning so clients can surface it.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess := SessionFromContext(c.Request().Context())
			if sess == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "no session")
			}
			for _, required := range roles {
				if sess.Role == required {
					return next(c)
				}
			}
			if sess.Degraded() {
				return echo.NewHTTPError(http.StatusForbidden, sess.Warning)
			}
			names := make([]string, len(roles))
			for i, r := range roles {
				names[i] = string(r)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(names, " or ")))
		}
	}
}
