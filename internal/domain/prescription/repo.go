package prescription

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Upsert creates the appointment's prescription or rewrites the existing one.
	Upsert(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Prescription, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
