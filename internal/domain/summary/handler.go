package summary

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/auth"
)

type Handler struct {
	aggregator *Aggregator
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{aggregator: aggregator}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleBillingClerk, auth.RoleBillingAdmin, auth.RoleAuditor))
	read.GET("/visits/:visit_uuid/summary", h.get)

	write := api.Group("", auth.RequireRole(auth.RoleBillingClerk, auth.RoleBillingAdmin))
	write.POST("/visits/:visit_uuid/summary/refresh", h.refresh)
	write.PUT("/visits/:visit_uuid/summary/:category", h.setFigures)
}

// summaryView is the matrix plus derived figures the UI renders directly.
type summaryView struct {
	*Summary
	Balances     map[Category]float64 `json:"balances"`
	Total        Row                  `json:"total"`
	TotalBalance float64              `json:"total_balance"`
}

func view(s *Summary) summaryView {
	balances := make(map[Category]float64, len(AllCategories))
	for _, c := range AllCategories {
		balances[c] = s.Rows[c].Balance()
	}
	total := s.TotalRow()
	return summaryView{Summary: s, Balances: balances, Total: total, TotalBalance: total.Balance()}
}

func (h *Handler) get(c echo.Context) error {
	visitUUID, err := uuid.Parse(c.Param("visit_uuid"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid visit id")
	}
	s, err := h.aggregator.Get(c.Request().Context(), visitUUID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, view(s))
}

type refreshRequest struct {
	StartedAt time.Time `json:"started_at"`
}

func (h *Handler) refresh(c echo.Context) error {
	visitUUID, err := uuid.Parse(c.Param("visit_uuid"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid visit id")
	}
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.StartedAt.IsZero() {
		req.StartedAt = time.Now()
	}
	s, err := h.aggregator.Refresh(c.Request().Context(), visitUUID, req.StartedAt)
	if errors.Is(err, ErrStaleWrite) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, view(s))
}

type editRequest struct {
	OperatorEdit
	StartedAt time.Time `json:"started_at"`
}

func (h *Handler) setFigures(c echo.Context) error {
	visitUUID, err := uuid.Parse(c.Param("visit_uuid"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid visit id")
	}
	var req editRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.StartedAt.IsZero() {
		req.StartedAt = time.Now()
	}
	s, err := h.aggregator.SetFigures(c.Request().Context(), visitUUID,
		Category(c.Param("category")), req.OperatorEdit, req.StartedAt)
	if errors.Is(err, ErrStaleWrite) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, view(s))
}
