package scheduling

import (
	"encoding/json"
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
	// -- Reads: any authenticated principal --
	api.GET("/doctors/:id/availability", h.GetAvailability)
	api.GET("/doctors/:id/slots", h.ListSlots)
	api.GET("/slots/:id", h.GetSlot)
	api.GET("/appointments", h.ListAppointments)
	api.GET("/appointments/:id", h.GetAppointment)
	api.GET("/patients/:id/appointments", h.ListPatientAppointments)
	api.GET("/doctors/:id/appointments", h.ListDoctorAppointments)

	// -- Schedule management: doctors only --
	doctorGroup := api.Group("", auth.RequireRole("doctor"))
	doctorGroup.PUT("/doctors/:id/availability", h.UpdateAvailability)
	doctorGroup.POST("/doctors/:id/slots/generate", h.GenerateSlots)
	doctorGroup.DELETE("/doctors/:id/slots", h.ClearSlots)
	doctorGroup.POST("/slots", h.CreateSlot)
	doctorGroup.PATCH("/slots/:id", h.UpdateSlot)
	doctorGroup.DELETE("/slots/:id", h.DeleteSlot)

	// -- Booking: patients and doctors --
	bookGroup := api.Group("", auth.RequireRole("patient", "doctor"))
	bookGroup.POST("/appointments", h.BookAppointment)
	bookGroup.PATCH("/appointments/:id/status", h.UpdateAppointmentStatus)
}

// -- Availability Handlers --

type availabilityRequest struct {
	Availability json.RawMessage `json:"availability"`
}

type availabilityResponse struct {
	DoctorID     uuid.UUID          `json:"doctor_id"`
	Availability WeeklyAvailability `json:"availability"`
}

func (h *Handler) UpdateAvailability(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	var req availabilityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Availability) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "availability is required")
	}
	tpl, err := h.svc.UpdateAvailability(c.Request().Context(), id, req.Availability)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, availabilityResponse{DoctorID: id, Availability: tpl})
}

func (h *Handler) GetAvailability(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	tpl, err := h.svc.GetAvailability(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, availabilityResponse{DoctorID: id, Availability: tpl})
}

// -- Slot Handlers --

type generateRequest struct {
	DaysAhead     int   `json:"days_ahead"`
	SlotsPerDay   int   `json:"slots_per_day"`
	ClearExisting *bool `json:"clear_existing"`
}

func (h *Handler) GenerateSlots(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	params := GenerationParams{
		DaysAhead:     req.DaysAhead,
		SlotsPerDay:   req.SlotsPerDay,
		ClearExisting: req.ClearExisting == nil || *req.ClearExisting,
	}
	result, err := h.svc.GenerateSlots(c.Request().Context(), id, params)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

type createSlotRequest struct {
	DoctorID        uuid.UUID  `json:"doctor_id"`
	Doctor          *uuid.UUID `json:"doctor"`
	Date            string     `json:"date"`
	StartTime       string     `json:"start_time"`
	EndTime         string     `json:"end_time"`
	IsAvailable     *bool      `json:"is_available"`
	MaxAppointments int        `json:"max_appointments"`
}

func (h *Handler) CreateSlot(c echo.Context) error {
	var req createSlotRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	doctorID := req.DoctorID
	if doctorID == uuid.Nil && req.Doctor != nil {
		doctorID = *req.Doctor
	}
	sl := &TimeSlot{
		DoctorID:        doctorID,
		Date:            req.Date,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		IsAvailable:     req.IsAvailable == nil || *req.IsAvailable,
		MaxAppointments: req.MaxAppointments,
	}
	created, err := h.svc.CreateSlot(c.Request().Context(), sl)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sl, err := h.svc.GetSlot(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, sl)
}

func (h *Handler) ListSlots(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	slots, err := h.svc.ListAvailableSlots(c.Request().Context(), id, c.QueryParam("date"))
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"doctor_id": id,
		"slots":     slots,
		"total":     len(slots),
	})
}

func (h *Handler) UpdateSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var patch SlotPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sl, err := h.svc.UpdateSlot(c.Request().Context(), id, patch)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, sl)
}

func (h *Handler) DeleteSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteSlot(c.Request().Context(), id); err != nil {
		return httpx.Error(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ClearSlots(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	deleted, err := h.svc.ClearSlots(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"deleted": deleted})
}

// -- Appointment Handlers --

type bookRequest struct {
	PatientID  uuid.UUID  `json:"patient_id"`
	DoctorID   uuid.UUID  `json:"doctor_id"`
	TimeSlotID *uuid.UUID `json:"time_slot_id"`
	Date       string     `json:"date"`
	Time       string     `json:"time"`
	Notes      *string    `json:"notes"`
}

func (h *Handler) BookAppointment(c echo.Context) error {
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PatientID == uuid.Nil {
		// Patients booking for themselves may omit patient_id.
		if sub := auth.SubjectFromContext(c.Request().Context()); sub != "" {
			if id, err := uuid.Parse(sub); err == nil {
				req.PatientID = id
			}
		}
	}
	a, err := h.svc.BookAppointment(c.Request().Context(), BookingRequest{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		SlotID:    req.TimeSlotID,
		Date:      req.Date,
		Time:      req.Time,
		Notes:     req.Notes,
	})
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()

	if pid := c.QueryParam("patient_id"); pid != "" {
		id, err := uuid.Parse(pid)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		items, total, err := h.svc.ListAppointmentsByPatient(ctx, id, pg.Limit, pg.Offset)
		if err != nil {
			return httpx.Error(c, err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
	}
	if did := c.QueryParam("doctor_id"); did != "" {
		id, err := uuid.Parse(did)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
		}
		items, total, err := h.svc.ListAppointmentsByDoctor(ctx, id, pg.Limit, pg.Offset)
		if err != nil {
			return httpx.Error(c, err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
	}
	return echo.NewHTTPError(http.StatusBadRequest, "patient_id or doctor_id is required")
}

func (h *Handler) ListPatientAppointments(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAppointmentsByPatient(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListDoctorAppointments(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAppointmentsByDoctor(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateAppointmentStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.UpdateAppointmentStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, a)
}
