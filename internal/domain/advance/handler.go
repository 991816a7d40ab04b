package advance

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/auth"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleBillingClerk, auth.RoleBillingAdmin, auth.RoleAuditor))
	read.GET("/visits/:visit_uuid/advances", h.list)

	write := api.Group("", auth.RequireRole(auth.RoleBillingClerk, auth.RoleBillingAdmin))
	write.POST("/visits/:visit_uuid/advances", h.record)
	write.DELETE("/advances/:id", h.delete)
}

func (h *Handler) list(c echo.Context) error {
	visitUUID, err := uuid.Parse(c.Param("visit_uuid"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid visit id")
	}
	payments, err := h.service.ListByVisit(c.Request().Context(), visitUUID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if payments == nil {
		payments = []*AdvancePayment{}
	}
	return c.JSON(http.StatusOK, payments)
}

func (h *Handler) record(c echo.Context) error {
	visitUUID, err := uuid.Parse(c.Param("visit_uuid"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid visit id")
	}
	var p AdvancePayment
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p.VisitUUID = visitUUID
	if user := auth.UserIDFromContext(c.Request().Context()); user != "" {
		p.CreatedBy = user
	}
	if err := h.service.Record(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	err = h.service.Delete(c.Request().Context(), id)
	if errors.Is(err, pgx.ErrNoRows) {
		return echo.NewHTTPError(http.StatusNotFound, "advance payment not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
