package medication

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medminder/medminder/internal/domain/identity"
	"github.com/medminder/medminder/internal/platform/auth"
	"github.com/medminder/medminder/internal/platform/websocket"
)

type Handler struct {
	svc *Service
	ws  *websocket.Handler
}

func NewHandler(svc *Service, ws *websocket.Handler) *Handler {
	return &Handler{svc: svc, ws: ws}
}

// RegisterRoutes wires the REST surface onto api and the live stream onto ws.
// Both groups are expected to carry the auth middleware already.
func (h *Handler) RegisterRoutes(api, ws *echo.Group) {
	patient := api.Group("/patient", auth.RequireRole(auth.RolePatient))
	patient.GET("/dashboard", h.PatientDashboard)

	api.POST("/medicines/:id/taken", h.MarkTaken, auth.RequireRole(auth.RolePatient))
	api.GET("/patients/:id/medicines", h.ListForPatient)

	caretaker := api.Group("/caretaker", auth.RequireRole(auth.RoleCaretaker))
	caretaker.POST("/medicines", h.Create)

	ws.GET("/patients/:id/medicines", h.StreamMedicines)
}

func (h *Handler) PatientDashboard(c echo.Context) error {
	sess := auth.SessionFromContext(c.Request().Context())

	dash, err := h.svc.PatientDashboard(c.Request().Context(), sess)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, dash)
}

func (h *Handler) Create(c echo.Context) error {
	sess := auth.SessionFromContext(c.Request().Context())

	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	entry, err := h.svc.Create(c.Request().Context(), sess, in)
	switch {
	case errors.Is(err, identity.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, entry)
}

func (h *Handler) MarkTaken(c echo.Context) error {
	sess := auth.SessionFromContext(c.Request().Context())

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid medicine id")
	}

	entry, err := h.svc.MarkTaken(c.Request().Context(), sess, id)
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "medicine not found")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, entry)
}

func (h *Handler) ListForPatient(c echo.Context) error {
	sess := auth.SessionFromContext(c.Request().Context())

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	entries, err := h.svc.ListForPatient(c.Request().Context(), sess, id)
	switch {
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if entries == nil {
		entries = []*Entry{}
	}
	return c.JSON(http.StatusOK, entries)
}

// StreamMedicines upgrades the connection and serves snapshot events for one
// patient's schedule. The first frame carries the current state so clients
// never render from an empty list while waiting for a mutation.
func (h *Handler) StreamMedicines(c echo.Context) error {
	sess := auth.SessionFromContext(c.Request().Context())

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	if err := h.svc.AuthorizeRead(c.Request().Context(), sess, id); err != nil {
		if errors.Is(err, ErrForbidden) {
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	initial, err := h.svc.SnapshotEvent(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return h.ws.ServeTopic(c, websocket.PatientMedicinesTopic(id), initial)
}
