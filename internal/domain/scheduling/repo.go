package scheduling

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// TemplateRepository reads and replaces a doctor's stored weekly availability
// document. The document lives on the doctor row and is parsed on every
// read, never cached.
type TemplateRepository interface {
	// GetRaw returns the stored document, or an empty message if unset.
	// Unknown doctor ids yield a NotFound error.
	GetRaw(ctx context.Context, doctorID uuid.UUID) (json.RawMessage, error)
	// Replace overwrites the stored document in full.
	Replace(ctx context.Context, doctorID uuid.UUID, doc json.RawMessage) error
	// ListDoctorsWithTemplates returns the ids of doctors whose stored
	// document is non-empty, for scheduled regeneration.
	ListDoctorsWithTemplates(ctx context.Context) ([]uuid.UUID, error)
}

type SlotRepository interface {
	// InsertIfNoOverlap creates a slot unless an existing slot for the same
	// doctor and date overlaps its interval; overlap yields a Conflict error.
	InsertIfNoOverlap(ctx context.Context, sl *TimeSlot) error
	// InsertDay persists one day's generated slots in a single transaction.
	InsertDay(ctx context.Context, slots []*TimeSlot) error
	GetByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error)
	// UpdateIfNoOverlap persists the slot's new interval unless it would
	// overlap another slot for the same doctor and date; overlap yields a
	// Conflict error.
	UpdateIfNoOverlap(ctx context.Context, sl *TimeSlot) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByDoctor returns slots with CurrentBookings populated, ordered by
	// date then start time. date narrows to one day; fromDate bounds the
	// range from below (inclusive). Either may be empty.
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, date, fromDate string) ([]*TimeSlot, error)
	// DeleteFutureByDoctor removes all slots on or after fromDate and
	// returns the deleted count.
	DeleteFutureByDoctor(ctx context.Context, doctorID uuid.UUID, fromDate string) (int64, error)
	// CountActiveAppointments counts Pending/Confirmed appointments
	// referencing the slot.
	CountActiveAppointments(ctx context.Context, slotID uuid.UUID) (int, error)
}

type AppointmentRepository interface {
	// Create inserts the appointment. For slot-linked appointments the
	// storage layer enforces at most one active appointment per slot; a
	// lost race yields a Conflict error.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
}
