package prescription

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medline/medline/internal/domain/scheduling"
)

func jsonRequest(e *echo.Echo, method, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_Write(t *testing.T) {
	env := newTestEnv()
	apptID := env.appts.add(uuid.New(), scheduling.StatusConfirmed)
	h := NewHandler(env.svc)
	e := echo.New()

	body := fmt.Sprintf(`{"appointment_id":%q,"medications":"Paracetamol 650mg","instructions":"Twice daily"}`, apptID)
	c, rec := jsonRequest(e, http.MethodPost, body)
	if err := h.Write(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var p Prescription
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if p.Medications != "Paracetamol 650mg" {
		t.Errorf("unexpected medications: %q", p.Medications)
	}
}

func TestHandler_Write_CancelledAppointment(t *testing.T) {
	env := newTestEnv()
	apptID := env.appts.add(uuid.New(), scheduling.StatusCancelled)
	h := NewHandler(env.svc)
	e := echo.New()

	body := fmt.Sprintf(`{"appointment_id":%q,"medications":"Paracetamol"}`, apptID)
	c, rec := jsonRequest(e, http.MethodPost, body)
	if err := h.Write(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}

func TestHandler_GetByAppointment_NotFound(t *testing.T) {
	env := newTestEnv()
	h := NewHandler(env.svc)
	e := echo.New()

	c, rec := jsonRequest(e, http.MethodGet, "")
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())
	if err := h.GetByAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_ListByPatient(t *testing.T) {
	env := newTestEnv()
	patientID := uuid.New()
	apptID := env.appts.add(patientID, scheduling.StatusCompleted)
	p, err := env.svc.Write(context.Background(), WriteInput{AppointmentID: apptID, Medications: "Cetirizine"})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	env.repo.patients[apptID] = patientID
	h := NewHandler(env.svc)
	e := echo.New()

	c, rec := jsonRequest(e, http.MethodGet, "")
	c.SetParamNames("id")
	c.SetParamValues(patientID.String())
	if err := h.ListByPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Prescriptions []*Prescription `json:"prescriptions"`
		Total         int             `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 1 || len(resp.Prescriptions) != 1 || resp.Prescriptions[0].ID != p.ID {
		t.Errorf("unexpected listing: %+v", resp)
	}
}
