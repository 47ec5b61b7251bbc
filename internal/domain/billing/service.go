package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medline/medline/internal/domain/scheduling"
	"github.com/medline/medline/internal/platform/apperr"
)

// Appointments is the slice of the scheduling service billing needs: lookup
// for validation and the status transition on payment capture.
type Appointments interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status string) (*scheduling.Appointment, error)
}

type Service struct {
	bills        BillRepository
	appointments Appointments
	log          zerolog.Logger
}

func NewService(bills BillRepository, appointments Appointments, log zerolog.Logger) *Service {
	return &Service{bills: bills, appointments: appointments, log: log}
}

// UpsertInput carries a bill create-or-update request.
type UpsertInput struct {
	AppointmentID   uuid.UUID `json:"appointment_id"`
	ConsultationFee float64   `json:"consultation_fee"`
	PaymentStatus   string    `json:"payment_status"`
	Notes           *string   `json:"notes"`
}

// UpsertBill creates or replaces the appointment's bill. The total always
// equals the consultation fee.
func (s *Service) UpsertBill(ctx context.Context, in UpsertInput) (*Bill, error) {
	if in.AppointmentID == uuid.Nil {
		return nil, apperr.New(apperr.Validation, "appointment_id is required")
	}
	if in.ConsultationFee < 0 {
		return nil, apperr.New(apperr.Validation, "consultation_fee must not be negative")
	}
	if in.PaymentStatus == "" {
		in.PaymentStatus = PaymentPending
	}
	if !validPaymentStatuses[in.PaymentStatus] {
		return nil, apperr.New(apperr.Validation, "invalid payment status %q", in.PaymentStatus)
	}
	if _, err := s.appointments.GetAppointment(ctx, in.AppointmentID); err != nil {
		return nil, err
	}

	b := &Bill{
		AppointmentID:   in.AppointmentID,
		ConsultationFee: in.ConsultationFee,
		TotalAmount:     in.ConsultationFee,
		PaymentStatus:   in.PaymentStatus,
		Notes:           in.Notes,
	}
	if err := s.bills.Upsert(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) GetBill(ctx context.Context, id uuid.UUID) (*Bill, error) {
	return s.bills.GetByID(ctx, id)
}

func (s *Service) GetBillByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Bill, error) {
	return s.bills.GetByAppointment(ctx, appointmentID)
}

func (s *Service) ListBills(ctx context.Context, status string, limit, offset int) ([]*Bill, int, error) {
	if status != "" && !validPaymentStatuses[status] {
		return nil, 0, apperr.New(apperr.Validation, "invalid payment status %q", status)
	}
	return s.bills.List(ctx, status, limit, offset)
}

func (s *Service) ListBillsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Bill, int, error) {
	return s.bills.ListByPatient(ctx, patientID, limit, offset)
}

// CapturePayment marks the bill Paid and confirms its Pending appointment.
// An already-paid bill is a conflict; the appointment transition is skipped
// when the appointment is no longer Pending.
func (s *Service) CapturePayment(ctx context.Context, id uuid.UUID) (*Bill, error) {
	b, err := s.bills.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.PaymentStatus == PaymentPaid {
		return nil, apperr.New(apperr.Conflict, "bill is already paid")
	}
	if b.PaymentStatus == PaymentCancelled {
		return nil, apperr.New(apperr.Conflict, "bill is cancelled")
	}
	if err := s.bills.UpdateStatus(ctx, id, PaymentPaid); err != nil {
		return nil, err
	}
	b.PaymentStatus = PaymentPaid

	a, err := s.appointments.GetAppointment(ctx, b.AppointmentID)
	if err != nil {
		s.log.Warn().Err(err).Str("bill_id", id.String()).
			Msg("paid bill references a missing appointment")
		return b, nil
	}
	if a.Status == scheduling.StatusPending {
		if _, err := s.appointments.UpdateAppointmentStatus(ctx, a.ID, scheduling.StatusConfirmed); err != nil {
			s.log.Error().Err(err).Str("appointment_id", a.ID.String()).
				Msg("failed to confirm appointment after payment")
		}
	}
	return b, nil
}
