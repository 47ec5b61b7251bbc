// Package billing owns per-appointment bills and payment capture. Paying a
// bill confirms its Pending appointment.
package billing

import (
	"time"

	"github.com/google/uuid"
)

// Payment statuses.
const (
	PaymentPending       = "Pending"
	PaymentPaid          = "Paid"
	PaymentPartiallyPaid = "Partially Paid"
	PaymentCancelled     = "Cancelled"
)

var validPaymentStatuses = map[string]bool{
	PaymentPending: true, PaymentPaid: true,
	PaymentPartiallyPaid: true, PaymentCancelled: true,
}

// Bill maps to the bill table. Each appointment has at most one bill; the
// total is always the consultation fee.
type Bill struct {
	ID              uuid.UUID `db:"id" json:"id"`
	AppointmentID   uuid.UUID `db:"appointment_id" json:"appointment_id"`
	ConsultationFee float64   `db:"consultation_fee" json:"consultation_fee"`
	TotalAmount     float64   `db:"total_amount" json:"total_amount"`
	PaymentStatus   string    `db:"payment_status" json:"payment_status"`
	Notes           *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}
