package roster

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medminder/medminder/internal/domain/identity"
	"github.com/medminder/medminder/internal/platform/auth"
	"github.com/medminder/medminder/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	caretaker := api.Group("/caretaker", auth.RequireRole(auth.RoleCaretaker))
	caretaker.GET("/patients", h.ListPatients)
	caretaker.POST("/patients/:id/assign", h.AssignPatient)
}

func (h *Handler) ListPatients(c echo.Context) error {
	sess := auth.SessionFromContext(c.Request().Context())
	pg := pagination.FromContext(c)

	roster, err := h.svc.Roster(c.Request().Context(), sess, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, roster)
}

func (h *Handler) AssignPatient(c echo.Context) error {
	sess := auth.SessionFromContext(c.Request().Context())

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	patient, err := h.svc.Assign(c.Request().Context(), sess, id)
	switch {
	case errors.Is(err, identity.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, ErrAlreadyAssigned):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotPatient):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, patient)
}
