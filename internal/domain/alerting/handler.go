package alerting

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medminder/medminder/internal/domain/roster"
	"github.com/medminder/medminder/internal/platform/auth"
	"github.com/medminder/medminder/pkg/pagination"
)

// CaretakerDashboard joins the patient roster with the result of a fresh
// alert sweep, so loading the dashboard both shows and acts on missed doses.
type CaretakerDashboard struct {
	Roster *roster.Roster `json:"roster"`
	Alerts *Report        `json:"alerts"`
}

type Handler struct {
	svc    *Service
	roster *roster.Service
}

func NewHandler(svc *Service, rosterSvc *roster.Service) *Handler {
	return &Handler{svc: svc, roster: rosterSvc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	caretaker := api.Group("/caretaker", auth.RequireRole(auth.RoleCaretaker))
	caretaker.GET("/dashboard", h.Dashboard)
	caretaker.POST("/alerts/sweep", h.Sweep)
}

func (h *Handler) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()
	sess := auth.SessionFromContext(ctx)
	pg := pagination.FromContext(c)

	rst, err := h.roster.Roster(ctx, sess, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	report, err := h.svc.Sweep(ctx, sess)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, CaretakerDashboard{Roster: rst, Alerts: report})
}

func (h *Handler) Sweep(c echo.Context) error {
	ctx := c.Request().Context()
	sess := auth.SessionFromContext(ctx)

	report, err := h.svc.Sweep(ctx, sess)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}
