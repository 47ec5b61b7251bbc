package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Appointment statuses. Pending and Confirmed count against slot capacity;
// Completed and Cancelled are terminal.
const (
	StatusPending   = "Pending"
	StatusConfirmed = "Confirmed"
	StatusCompleted = "Completed"
	StatusCancelled = "Cancelled"
)

var validStatuses = map[string]bool{
	StatusPending: true, StatusConfirmed: true,
	StatusCompleted: true, StatusCancelled: true,
}

// validTransitions maps a current status to the statuses it may move to.
var validTransitions = map[string]map[string]bool{
	StatusPending:   {StatusConfirmed: true, StatusCompleted: true, StatusCancelled: true},
	StatusConfirmed: {StatusCompleted: true, StatusCancelled: true},
}

// IsActiveStatus reports whether a status counts as an active claim on a slot.
func IsActiveStatus(status string) bool {
	return status == StatusPending || status == StatusConfirmed
}

// TimeSlot maps to the time_slot table. Date is "YYYY-MM-DD" and the time
// fields are zero-padded "HH:MM", so string order matches chronological
// order. CurrentBookings and IsSlotAvailable are derived on every read and
// never persisted.
type TimeSlot struct {
	ID              uuid.UUID `db:"id" json:"id"`
	DoctorID        uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Date            string    `db:"date" json:"date"`
	StartTime       string    `db:"start_time" json:"start_time"`
	EndTime         string    `db:"end_time" json:"end_time"`
	IsAvailable     bool      `db:"is_available" json:"is_available"`
	MaxAppointments int       `db:"max_appointments" json:"max_appointments"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`

	CurrentBookings int  `db:"-" json:"current_bookings"`
	IsSlotAvailable bool `db:"-" json:"is_slot_available"`
}

// Appointment maps to the appointment table. SlotID is nil for legacy
// bookings made with an explicit date and time.
type Appointment struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	PatientID uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID  uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	SlotID    *uuid.UUID `db:"slot_id" json:"time_slot_id,omitempty"`
	Date      string     `db:"date" json:"date"`
	Time      string     `db:"time" json:"time"`
	Status    string     `db:"status" json:"status"`
	Notes     *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// SlotSummary is the per-slot shape returned by a generation run.
type SlotSummary struct {
	ID        uuid.UUID `json:"id"`
	Date      string    `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
}

// GenerationResult is the response body of a generation run.
type GenerationResult struct {
	Message      string        `json:"message"`
	SlotsCreated []SlotSummary `json:"slots_created"`
	TotalSlots   int           `json:"total_slots"`
}
