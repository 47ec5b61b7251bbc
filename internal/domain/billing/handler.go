package billing

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medline/medline/internal/platform/auth"
	"github.com/medline/medline/internal/platform/httpx"
	"github.com/medline/medline/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/bills", h.ListBills)
	api.GET("/bills/:id", h.GetBill)
	api.GET("/appointments/:id/bill", h.GetBillByAppointment)
	api.GET("/patients/:id/bills", h.ListBillsByPatient)

	doctorGroup := api.Group("", auth.RequireRole("doctor", "admin"))
	doctorGroup.POST("/bills", h.UpsertBill)

	payGroup := api.Group("", auth.RequireRole("patient", "doctor", "admin"))
	payGroup.POST("/bills/:id/capture", h.CapturePayment)
}

func (h *Handler) UpsertBill(c echo.Context) error {
	var req UpsertInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b, err := h.svc.UpsertBill(c.Request().Context(), req)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) GetBill(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid bill id")
	}
	b, err := h.svc.GetBill(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) GetBillByAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}
	b, err := h.svc.GetBillByAppointment(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) ListBills(c echo.Context) error {
	page := pagination.FromContext(c)
	status := c.QueryParam("status")
	items, total, err := h.svc.ListBills(c.Request().Context(), status, page.Limit, page.Offset)
	if err != nil {
		return httpx.Error(c, err)
	}
	if items == nil {
		items = []*Bill{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"bills": items,
		"total": total,
	})
}

func (h *Handler) ListBillsByPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	page := pagination.FromContext(c)
	items, total, err := h.svc.ListBillsByPatient(c.Request().Context(), id, page.Limit, page.Offset)
	if err != nil {
		return httpx.Error(c, err)
	}
	if items == nil {
		items = []*Bill{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"bills": items,
		"total": total,
	})
}

func (h *Handler) CapturePayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid bill id")
	}
	b, err := h.svc.CapturePayment(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "payment captured",
		"bill":    b,
	})
}
