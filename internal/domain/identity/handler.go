package identity

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

// RegisterPublicRoutes mounts the unauthenticated endpoints.
func (h *Handler) RegisterPublicRoutes(g *echo.Group) {
	g.POST("/auth/register", h.Register)
	g.POST("/auth/login", h.Login)
	g.POST("/auth/doctor/login", h.DoctorLogin)
	g.GET("/specializations", h.ListSpecializations)
	g.GET("/doctors", h.ListDoctors)
	g.GET("/doctors/:id", h.GetDoctor)
}

// RegisterRoutes mounts the authenticated endpoints.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients/:id", h.GetPatient)
	api.PUT("/patients/:id", h.UpdatePatient)

	doctorGroup := api.Group("", auth.RequireRole("doctor"))
	doctorGroup.PUT("/doctors/:id", h.UpdateDoctor)

	adminGroup := api.Group("", auth.RequireRole("admin"))
	adminGroup.GET("/patients", h.ListPatients)
	adminGroup.POST("/doctors", h.AddDoctor)
	adminGroup.POST("/specializations", h.AddSpecialization)
}

func (h *Handler) Register(c echo.Context) error {
	var in RegisterPatientInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.RegisterPatient(c.Request().Context(), in)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "registered successfully",
		"id":      p.ID,
		"name":    p.Name,
		"email":   p.Email,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.svc.LoginPatient(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "login successful",
		"token":   result.Token,
		"role":    result.Role,
		"id":      result.ID,
		"name":    result.Name,
		"email":   result.Email,
	})
}

func (h *Handler) DoctorLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.svc.LoginDoctor(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "login successful",
		"token":   result.Token,
		"role":    result.Role,
		"id":      result.ID,
		"name":    result.Name,
		"email":   result.Email,
	})
}

func (h *Handler) AddDoctor(c echo.Context) error {
	var in AddDoctorInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.AddDoctor(c.Request().Context(), in)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	var specializationID *uuid.UUID
	if sp := c.QueryParam("specialization_id"); sp != "" {
		id, err := uuid.Parse(sp)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid specialization_id")
		}
		specializationID = &id
	}
	items, total, err := h.svc.ListDoctors(c.Request().Context(), specializationID, pg.Limit, pg.Offset)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in UpdatePatientInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.UpdatePatient(c.Request().Context(), id, in)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in UpdateDoctorInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.UpdateDoctor(c.Request().Context(), id, in)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPatients(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type specializationRequest struct {
	Name string `json:"name"`
}

func (h *Handler) AddSpecialization(c echo.Context) error {
	var req specializationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sp, err := h.svc.AddSpecialization(c.Request().Context(), req.Name)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusCreated, sp)
}

func (h *Handler) ListSpecializations(c echo.Context) error {
	items, err := h.svc.ListSpecializations(c.Request().Context())
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, items)
}
