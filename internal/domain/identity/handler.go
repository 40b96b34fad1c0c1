package identity

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medminder/medminder/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts signup/login on the public group and the session
// introspection endpoint on the authenticated API group.
func (h *Handler) RegisterRoutes(public *echo.Group, api *echo.Group) {
	public.POST("/signup", h.Signup)
	public.POST("/login", h.Login)

	api.GET("/session", h.CurrentSession)
}

func (h *Handler) Signup(c echo.Context) error {
	var in SignupInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u, err := h.svc.Signup(c.Request().Context(), in)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, u)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token   string       `json:"token"`
	Profile *UserProfile `json:"profile"`
}

func (h *Handler) Login(c echo.Context) error {
	var in loginRequest
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u, token, err := h.svc.Login(c.Request().Context(), in.Email, in.Password)
	if err != nil {
		if errors.Is(err, ErrNoAccount) || errors.Is(err, ErrWrongPassword) {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		if in.Email == "" || in.Password == "" {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "login failed, please try again")
	}
	return c.JSON(http.StatusOK, loginResponse{Token: token, Profile: u})
}

// CurrentSession returns the resolved session for the request, including
// any degradation warning.
func (h *Handler) CurrentSession(c echo.Context) error {
	sess := auth.SessionFromContext(c.Request().Context())
	if sess == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return c.JSON(http.StatusOK, sess)
}
