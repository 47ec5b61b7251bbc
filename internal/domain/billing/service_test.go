package billing

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medline/medline/internal/domain/scheduling"
	"github.com/medline/medline/internal/platform/apperr"
)

type mockBillRepo struct {
	mu    sync.Mutex
	bills map[uuid.UUID]*Bill
	// patients maps appointment ids to patient ids for ListByPatient.
	patients map[uuid.UUID]uuid.UUID
}

func newMockBillRepo() *mockBillRepo {
	return &mockBillRepo{
		bills:    map[uuid.UUID]*Bill{},
		patients: map[uuid.UUID]uuid.UUID{},
	}
}

func (m *mockBillRepo) Upsert(_ context.Context, b *Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.bills {
		if existing.AppointmentID == b.AppointmentID {
			existing.ConsultationFee = b.ConsultationFee
			existing.TotalAmount = b.TotalAmount
			existing.PaymentStatus = b.PaymentStatus
			existing.Notes = b.Notes
			*b = *existing
			return nil
		}
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	cp := *b
	m.bills[b.ID] = &cp
	return nil
}

func (m *mockBillRepo) GetByID(_ context.Context, id uuid.UUID) (*Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bills[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "bill not found")
	}
	cp := *b
	return &cp, nil
}

func (m *mockBillRepo) GetByAppointment(_ context.Context, appointmentID uuid.UUID) (*Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bills {
		if b.AppointmentID == appointmentID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, apperr.New(apperr.NotFound, "bill not found")
}

func (m *mockBillRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bills[id]
	if !ok {
		return apperr.New(apperr.NotFound, "bill not found")
	}
	b.PaymentStatus = status
	return nil
}

func (m *mockBillRepo) List(_ context.Context, status string, limit, offset int) ([]*Bill, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*Bill
	for _, b := range m.bills {
		if status != "" && b.PaymentStatus != status {
			continue
		}
		cp := *b
		items = append(items, &cp)
	}
	total := len(items)
	if offset > len(items) {
		offset = len(items)
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items, total, nil
}

func (m *mockBillRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Bill, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*Bill
	for _, b := range m.bills {
		if m.patients[b.AppointmentID] != patientID {
			continue
		}
		cp := *b
		items = append(items, &cp)
	}
	total := len(items)
	if offset > len(items) {
		offset = len(items)
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items, total, nil
}

type mockAppointments struct {
	mu    sync.Mutex
	appts map[uuid.UUID]*scheduling.Appointment
}

func newMockAppointments() *mockAppointments {
	return &mockAppointments{appts: map[uuid.UUID]*scheduling.Appointment{}}
}

func (m *mockAppointments) add(status string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.appts[id] = &scheduling.Appointment{
		ID:        id,
		PatientID: uuid.New(),
		DoctorID:  uuid.New(),
		Date:      "2026-03-02",
		Time:      "09:00",
		Status:    status,
	}
	return id
}

func (m *mockAppointments) GetAppointment(_ context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "appointment not found")
	}
	cp := *a
	return &cp, nil
}

func (m *mockAppointments) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, status string) (*scheduling.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "appointment not found")
	}
	a.Status = status
	cp := *a
	return &cp, nil
}

type billingEnv struct {
	svc   *Service
	bills *mockBillRepo
	appts *mockAppointments
}

func newBillingEnv() *billingEnv {
	bills := newMockBillRepo()
	appts := newMockAppointments()
	return &billingEnv{
		svc:   NewService(bills, appts, zerolog.Nop()),
		bills: bills,
		appts: appts,
	}
}

func TestUpsertBill_CreatesWithDefaults(t *testing.T) {
	env := newBillingEnv()
	apptID := env.appts.add(scheduling.StatusPending)

	b, err := env.svc.UpsertBill(context.Background(), UpsertInput{
		AppointmentID:   apptID,
		ConsultationFee: 500,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.PaymentStatus != PaymentPending {
		t.Errorf("expected default status Pending, got %q", b.PaymentStatus)
	}
	if b.TotalAmount != 500 {
		t.Errorf("expected total to equal the fee, got %v", b.TotalAmount)
	}
}

func TestUpsertBill_UpdatesExisting(t *testing.T) {
	env := newBillingEnv()
	apptID := env.appts.add(scheduling.StatusPending)

	first, err := env.svc.UpsertBill(context.Background(), UpsertInput{AppointmentID: apptID, ConsultationFee: 500})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second, err := env.svc.UpsertBill(context.Background(), UpsertInput{AppointmentID: apptID, ConsultationFee: 750})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected the same bill to be updated, got ids %s and %s", first.ID, second.ID)
	}
	if second.TotalAmount != 750 {
		t.Errorf("expected updated total 750, got %v", second.TotalAmount)
	}

	_, total, err := env.svc.ListBills(context.Background(), "", 50, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 {
		t.Errorf("expected one bill per appointment, got %d", total)
	}
}

func TestUpsertBill_Validation(t *testing.T) {
	env := newBillingEnv()
	apptID := env.appts.add(scheduling.StatusPending)

	cases := []struct {
		name string
		in   UpsertInput
	}{
		{"missing appointment id", UpsertInput{ConsultationFee: 100}},
		{"negative fee", UpsertInput{AppointmentID: apptID, ConsultationFee: -1}},
		{"bad status", UpsertInput{AppointmentID: apptID, ConsultationFee: 100, PaymentStatus: "Refunded"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.UpsertBill(context.Background(), tc.in)
			if !apperr.IsKind(err, apperr.Validation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestUpsertBill_UnknownAppointment(t *testing.T) {
	env := newBillingEnv()
	_, err := env.svc.UpsertBill(context.Background(), UpsertInput{
		AppointmentID:   uuid.New(),
		ConsultationFee: 100,
	})
	if !apperr.IsKind(err, apperr.NotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestCapturePayment_ConfirmsPendingAppointment(t *testing.T) {
	env := newBillingEnv()
	apptID := env.appts.add(scheduling.StatusPending)
	b, err := env.svc.UpsertBill(context.Background(), UpsertInput{AppointmentID: apptID, ConsultationFee: 300})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	paid, err := env.svc.CapturePayment(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if paid.PaymentStatus != PaymentPaid {
		t.Errorf("expected Paid, got %q", paid.PaymentStatus)
	}
	a, err := env.appts.GetAppointment(context.Background(), apptID)
	if err != nil {
		t.Fatalf("get appointment: %v", err)
	}
	if a.Status != scheduling.StatusConfirmed {
		t.Errorf("expected appointment Confirmed after payment, got %q", a.Status)
	}
}

func TestCapturePayment_LeavesNonPendingAppointmentAlone(t *testing.T) {
	env := newBillingEnv()
	apptID := env.appts.add(scheduling.StatusCompleted)
	b, err := env.svc.UpsertBill(context.Background(), UpsertInput{AppointmentID: apptID, ConsultationFee: 300})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if _, err := env.svc.CapturePayment(context.Background(), b.ID); err != nil {
		t.Fatalf("capture: %v", err)
	}
	a, _ := env.appts.GetAppointment(context.Background(), apptID)
	if a.Status != scheduling.StatusCompleted {
		t.Errorf("expected appointment status untouched, got %q", a.Status)
	}
}

func TestCapturePayment_AlreadyPaid(t *testing.T) {
	env := newBillingEnv()
	apptID := env.appts.add(scheduling.StatusPending)
	b, err := env.svc.UpsertBill(context.Background(), UpsertInput{AppointmentID: apptID, ConsultationFee: 300})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := env.svc.CapturePayment(context.Background(), b.ID); err != nil {
		t.Fatalf("first capture: %v", err)
	}

	_, err = env.svc.CapturePayment(context.Background(), b.ID)
	if !apperr.IsKind(err, apperr.Conflict) {
		t.Errorf("expected conflict on double capture, got %v", err)
	}
}

func TestCapturePayment_CancelledBill(t *testing.T) {
	env := newBillingEnv()
	apptID := env.appts.add(scheduling.StatusPending)
	b, err := env.svc.UpsertBill(context.Background(), UpsertInput{
		AppointmentID:   apptID,
		ConsultationFee: 300,
		PaymentStatus:   PaymentCancelled,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	_, err = env.svc.CapturePayment(context.Background(), b.ID)
	if !apperr.IsKind(err, apperr.Conflict) {
		t.Errorf("expected conflict for a cancelled bill, got %v", err)
	}
}

func TestListBillsByPatient(t *testing.T) {
	env := newBillingEnv()
	patientID := uuid.New()
	for i := 0; i < 3; i++ {
		apptID := env.appts.add(scheduling.StatusPending)
		if i < 2 {
			env.bills.patients[apptID] = patientID
		}
		if _, err := env.svc.UpsertBill(context.Background(), UpsertInput{AppointmentID: apptID, ConsultationFee: 100}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	items, total, err := env.svc.ListBillsByPatient(context.Background(), patientID, 50, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Errorf("expected two bills for the patient, got total=%d len=%d", total, len(items))
	}
}

func TestListBills_StatusFilter(t *testing.T) {
	env := newBillingEnv()
	for i := 0; i < 3; i++ {
		apptID := env.appts.add(scheduling.StatusPending)
		b, err := env.svc.UpsertBill(context.Background(), UpsertInput{AppointmentID: apptID, ConsultationFee: 100})
		if err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if i == 0 {
			if _, err := env.svc.CapturePayment(context.Background(), b.ID); err != nil {
				t.Fatalf("capture: %v", err)
			}
		}
	}

	paid, total, err := env.svc.ListBills(context.Background(), PaymentPaid, 50, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(paid) != 1 {
		t.Errorf("expected one paid bill, got total=%d len=%d", total, len(paid))
	}

	if _, _, err := env.svc.ListBills(context.Background(), "Refunded", 50, 0); !apperr.IsKind(err, apperr.Validation) {
		t.Errorf("expected validation error for unknown status filter, got %v", err)
	}
}
