package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// publicPaths are reachable without a token: the sign-in/sign-up boundary,
// the guard's public destinations, and operational endpoints.
var publicPaths = map[string]bool{
	"/":             true,
	"/login":        true,
	"/signup":       true,
	"/api/login":    true,
	"/api/signup":   true,
	"/metrics":      true,
	"/health":       true,
	"/health/ready": true,
}

// PublicSkipper reports whether the request may bypass authentication.
func PublicSkipper(c echo.Context) bool {
	path := c.Request().URL.Path
	if publicPaths[path] {
		return true
	}
	return strings.HasPrefix(path, "/health/")
}
