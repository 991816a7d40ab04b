package visit

import (
	"net/http"

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
	read.GET("/visits/:id", h.Get)
	read.GET("/visits", h.ListByVisitID)
	read.GET("/visits/:id/category", h.BillingCategory)
	read.GET("/patients/:id", h.GetPatient)

	write := api.Group("", auth.RequireRole(auth.RoleBillingClerk, auth.RoleBillingAdmin))
	write.POST("/visits", h.Register)
	write.PUT("/visits/:id/dates", h.SetDates)
	write.POST("/patients", h.RegisterPatient)
}

func (h *Handler) Register(c echo.Context) error {
	var v Visit
	if err := c.Bind(&v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Register(c.Request().Context(), &v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	v, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "visit not found")
	}
	return c.JSON(http.StatusOK, v)
}

// ListByVisitID returns every visit row carrying an external identifier,
// newest first. ?visit_id= is required.
func (h *Handler) ListByVisitID(c echo.Context) error {
	visitID := c.QueryParam("visit_id")
	if visitID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "visit_id query parameter is required")
	}
	items, err := h.svc.ListByVisitID(c.Request().Context(), visitID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) SetDates(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	v, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "visit not found")
	}
	var req Visit
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v.AdmissionDate = req.AdmissionDate
	v.DischargeDate = req.DischargeDate
	v.SurgeryDate = req.SurgeryDate
	v.PackageStart = req.PackageStart
	v.PackageEnd = req.PackageEnd
	if err := h.svc.SetDates(c.Request().Context(), v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) BillingCategory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	cat, err := h.svc.BillingCategory(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "visit not found")
	}
	return c.JSON(http.StatusOK, map[string]string{"category": string(cat)})
}

func (h *Handler) RegisterPatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RegisterPatient(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusOK, p)
}
