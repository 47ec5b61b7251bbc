package prescription

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/medline/medline/internal/domain/scheduling"
	"github.com/medline/medline/internal/platform/apperr"
)

// Appointments is the lookup prescription needs for validation.
type Appointments interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
}

type Service struct {
	prescriptions Repository
	appointments  Appointments
}

func NewService(prescriptions Repository, appointments Appointments) *Service {
	return &Service{prescriptions: prescriptions, appointments: appointments}
}

type WriteInput struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Medications   string    `json:"medications"`
	Instructions  string    `json:"instructions"`
}

// Write creates or rewrites the appointment's prescription. Prescriptions
// may only be written against appointments that were not cancelled.
func (s *Service) Write(ctx context.Context, in WriteInput) (*Prescription, error) {
	if in.AppointmentID == uuid.Nil {
		return nil, apperr.New(apperr.Validation, "appointment_id is required")
	}
	in.Medications = strings.TrimSpace(in.Medications)
	if in.Medications == "" {
		return nil, apperr.New(apperr.Validation, "medications is required")
	}
	a, err := s.appointments.GetAppointment(ctx, in.AppointmentID)
	if err != nil {
		return nil, err
	}
	if a.Status == scheduling.StatusCancelled {
		return nil, apperr.New(apperr.Conflict, "cannot prescribe for a cancelled appointment")
	}

	p := &Prescription{
		AppointmentID: in.AppointmentID,
		Medications:   in.Medications,
		Instructions:  strings.TrimSpace(in.Instructions),
	}
	if err := s.prescriptions.Upsert(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return s.prescriptions.GetByID(ctx, id)
}

func (s *Service) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Prescription, error) {
	return s.prescriptions.GetByAppointment(ctx, appointmentID)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return s.prescriptions.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.prescriptions.Delete(ctx, id)
}
