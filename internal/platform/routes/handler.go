package routes

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medminder/medminder/internal/platform/auth"
)

// Handler serves the navigational surface. Each destination runs the guard;
// an admitted request receives a small view descriptor for the client shell,
// a rejected one receives a 302 to the guard's redirect target.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) RegisterRoutes(e *echo.Echo, optionalAuth echo.MiddlewareFunc) {
	pages := e.Group("", optionalAuth)
	pages.GET("/", h.page(DestRoot))
	pages.GET("/login", h.page(DestLogin))
	pages.GET("/signup", h.page(DestSignup))
	pages.GET("/pdashboard", h.page(DestPatientDashboard))
	pages.GET("/cdashboard", h.page(DestCaretakerDashboard))

	// Unmatched paths redirect to the application root.
	e.RouteNotFound("/*", h.notFound)
}

func (h *Handler) page(dest Destination) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess := auth.SessionFromContext(c.Request().Context())
		decision := Decide(sess, RequiredRole(dest), dest)
		if !decision.Admit {
			return c.Redirect(http.StatusFound, string(decision.RedirectTo))
		}

		view := map[string]interface{}{"view": string(dest)}
		if sess != nil {
			view["session"] = sess
		}
		return c.JSON(http.StatusOK, view)
	}
}

func (h *Handler) notFound(c echo.Context) error {
	// API and websocket paths keep their 404 so clients see real errors.
	path := c.Request().URL.Path
	if strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/ws/") {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	return c.Redirect(http.StatusFound, string(DestRoot))
}
