package bill

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleBillingClerk, auth.RoleBillingAdmin, auth.RoleAuditor))
	read.GET("/bills/:visit_id", h.Get)
	read.POST("/bills/compute", h.Compute)

	write := api.Group("", auth.RequireRole(auth.RoleBillingClerk, auth.RoleBillingAdmin))
	write.PUT("/bills/:visit_id", h.Save)
	write.DELETE("/bills/:visit_id", h.Delete)
}

func (h *Handler) Get(c echo.Context) error {
	visitID, err := uuid.Parse(c.Param("visit_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid visit_id")
	}
	b, err := h.svc.Load(c.Request().Context(), visitID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "bill not found")
	}
	return c.JSON(http.StatusOK, b)
}

type saveRequest struct {
	Tree      Tree      `json:"tree"`
	StartedAt time.Time `json:"started_at"`
}

func (h *Handler) Save(c echo.Context) error {
	visitID, err := uuid.Parse(c.Param("visit_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid visit_id")
	}
	var req saveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b, err := h.svc.Save(c.Request().Context(), visitID, req.Tree, req.StartedAt)
	if err != nil {
		if errors.Is(err, ErrStaleWrite) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, b)
}

type computeRequest struct {
	Tree Tree `json:"tree"`
}

func (h *Handler) Compute(c echo.Context) error {
	var req computeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	total := h.svc.Compute(&req.Tree)
	return c.JSON(http.StatusOK, map[string]float64{"total_amount": total})
}

func (h *Handler) Delete(c echo.Context) error {
	visitID, err := uuid.Parse(c.Param("visit_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid visit_id")
	}
	if err := h.svc.Delete(c.Request().Context(), visitID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
