// Package prescription stores the medication record a doctor writes against
// an appointment. Each appointment carries at most one prescription.
package prescription

import (
	"time"

	"github.com/google/uuid"
)

type Prescription struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	Medications   string    `db:"medications" json:"medications"`
	Instructions  string    `db:"instructions" json:"instructions"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
