package identity

import (
	"context"

	"github.com/google/uuid"
)

type PatientRepository interface {
	// Create inserts the patient; a duplicate email yields a Conflict error.
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByEmail(ctx context.Context, email string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
}

type DoctorRepository interface {
	// Create inserts the doctor; a duplicate email yields a Conflict error.
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetByEmail(ctx context.Context, email string) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	// List returns doctors, optionally filtered by specialization.
	List(ctx context.Context, specializationID *uuid.UUID, limit, offset int) ([]*Doctor, int, error)
}

type SpecializationRepository interface {
	Create(ctx context.Context, s *Specialization) error
	List(ctx context.Context) ([]*Specialization, error)
}
