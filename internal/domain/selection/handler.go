package selection

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/domain/tariff"
	"github.com/hms/hms/internal/platform/auth"
)

// RateProvider resolves the unit rate for a service in the context of a
// visit: catalog lookup plus patient-category rate selection. Wired in at
// startup so this package stays decoupled from catalog and visit.
type RateProvider interface {
	ResolveRate(ctx context.Context, externalVisitID string, serviceID uuid.UUID) (tariff.RateSelection, error)
}

type Handler struct {
	reconciler *Reconciler
	rates      RateProvider
}

func NewHandler(reconciler *Reconciler, rates RateProvider) *Handler {
	return &Handler{reconciler: reconciler, rates: rates}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleBillingClerk, auth.RoleBillingAdmin, auth.RoleAuditor))
	read.GET("/visits/:visit_id/selections", h.list)

	write := api.Group("", auth.RequireRole(auth.RoleBillingClerk, auth.RoleBillingAdmin))
	write.POST("/visits/:visit_id/selections", h.selectService)
	write.PUT("/visits/:visit_id/selections/:service_id", h.setQuantity)
	write.DELETE("/visits/:visit_id/selections/:service_id", h.deselect)
}

type selectRequest struct {
	ServiceID uuid.UUID `json:"service_id"`
	Decision  Decision  `json:"decision,omitempty"`
}

type selectionList struct {
	Resolution *ResolutionContext       `json:"resolution"`
	Records    []*ServiceSelectionRecord `json:"records"`
}

func (h *Handler) list(c echo.Context) error {
	externalID := c.Param("visit_id")
	recs, rctx, err := h.reconciler.ListSaved(c.Request().Context(), externalID)
	var noCand *NoCandidateError
	if errors.As(err, &noCand) {
		return c.JSON(http.StatusOK, selectionList{Resolution: rctx, Records: []*ServiceSelectionRecord{}})
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, selectionList{Resolution: rctx, Records: recs})
}

func (h *Handler) selectService(c echo.Context) error {
	externalID := c.Param("visit_id")
	var req selectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ServiceID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "service_id is required")
	}
	if req.Decision == "" {
		req.Decision = DecisionIncrement
	}

	ctx := c.Request().Context()
	sel, err := h.rates.ResolveRate(ctx, externalID, req.ServiceID)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	rec, created, err := h.reconciler.Select(ctx, externalID, sel, req.Decision)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, rec)
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) setQuantity(c echo.Context) error {
	externalID := c.Param("visit_id")
	serviceID, err := uuid.Parse(c.Param("service_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid service id")
	}
	var req quantityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	rec, err := h.reconciler.SetQuantity(c.Request().Context(), externalID, serviceID, req.Quantity)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) deselect(c echo.Context) error {
	externalID := c.Param("visit_id")
	serviceID, err := uuid.Parse(c.Param("service_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid service id")
	}
	err = h.reconciler.Deselect(c.Request().Context(), externalID, serviceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return echo.NewHTTPError(http.StatusNotFound, "selection not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
