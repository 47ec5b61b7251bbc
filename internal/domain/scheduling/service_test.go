package scheduling

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medline/medline/internal/platform/apperr"
)

// -- Mock Repositories --
//
// The in-memory repos enforce the same invariants as the Postgres schema:
// overlap rejection, (doctor, date, start) uniqueness, and at most one
// active appointment per slot under a shared lock.

type mockTemplateRepo struct {
	mu   sync.Mutex
	docs map[uuid.UUID]json.RawMessage
}

func newMockTemplateRepo() *mockTemplateRepo {
	return &mockTemplateRepo{docs: make(map[uuid.UUID]json.RawMessage)}
}

func (m *mockTemplateRepo) GetRaw(_ context.Context, doctorID uuid.UUID) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[doctorID]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "doctor not found")
	}
	return doc, nil
}

func (m *mockTemplateRepo) Replace(_ context.Context, doctorID uuid.UUID, doc json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doctorID]; !ok {
		return apperr.New(apperr.NotFound, "doctor not found")
	}
	m.docs[doctorID] = doc
	return nil
}

func (m *mockTemplateRepo) ListDoctorsWithTemplates(_ context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, doc := range m.docs {
		if len(doc) > 0 && string(doc) != `{}` {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *mockTemplateRepo) addDoctor() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.docs[id] = json.RawMessage(`{}`)
	return id
}

type mockAppointmentRepo struct {
	mu    sync.Mutex
	appts map[uuid.UUID]*Appointment
}

func newMockAppointmentRepo() *mockAppointmentRepo {
	return &mockAppointmentRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (m *mockAppointmentRepo) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.SlotID != nil {
		for _, other := range m.appts {
			if other.SlotID != nil && *other.SlotID == *a.SlotID && IsActiveStatus(other.Status) {
				return apperr.New(apperr.Conflict, "slot already has an active appointment")
			}
		}
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = time.Now()
	m.appts[a.ID] = a
	return nil
}

func (m *mockAppointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "appointment not found")
	}
	cp := *a
	return &cp, nil
}

func (m *mockAppointmentRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return apperr.New(apperr.NotFound, "appointment not found")
	}
	a.Status = status
	return nil
}

func (m *mockAppointmentRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Appointment
	for _, a := range m.appts {
		if a.PatientID == patientID {
			result = append(result, a)
		}
	}
	return result, len(result), nil
}

func (m *mockAppointmentRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Appointment
	for _, a := range m.appts {
		if a.DoctorID == doctorID {
			result = append(result, a)
		}
	}
	return result, len(result), nil
}

func (m *mockAppointmentRepo) activeCount(slotID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.appts {
		if a.SlotID != nil && *a.SlotID == slotID && IsActiveStatus(a.Status) {
			n++
		}
	}
	return n
}

type mockSlotRepo struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*TimeSlot
	appts *mockAppointmentRepo
}

func newMockSlotRepo(appts *mockAppointmentRepo) *mockSlotRepo {
	return &mockSlotRepo{slots: make(map[uuid.UUID]*TimeSlot), appts: appts}
}

func (m *mockSlotRepo) InsertIfNoOverlap(_ context.Context, sl *TimeSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.slots {
		if other.DoctorID == sl.DoctorID && other.Date == sl.Date &&
			sl.StartTime < other.EndTime && sl.EndTime > other.StartTime {
			return apperr.New(apperr.Conflict, "slot overlaps an existing slot")
		}
	}
	sl.ID = uuid.New()
	sl.CreatedAt = time.Now()
	sl.UpdatedAt = time.Now()
	m.slots[sl.ID] = sl
	return nil
}

func (m *mockSlotRepo) InsertDay(_ context.Context, slots []*TimeSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sl := range slots {
		for _, other := range m.slots {
			if other.DoctorID == sl.DoctorID && other.Date == sl.Date && other.StartTime == sl.StartTime {
				return apperr.New(apperr.Conflict, "slot already exists for %s %s", sl.Date, sl.StartTime)
			}
		}
		sl.ID = uuid.New()
		sl.CreatedAt = time.Now()
		sl.UpdatedAt = time.Now()
		m.slots[sl.ID] = sl
	}
	return nil
}

func (m *mockSlotRepo) GetByID(_ context.Context, id uuid.UUID) (*TimeSlot, error) {
	m.mu.Lock()
	sl, ok := m.slots[id]
	m.mu.Unlock()
	if !ok {
		return nil, apperr.New(apperr.NotFound, "slot not found")
	}
	cp := *sl
	cp.CurrentBookings = m.appts.activeCount(id)
	return &cp, nil
}

func (m *mockSlotRepo) UpdateIfNoOverlap(_ context.Context, sl *TimeSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[sl.ID]; !ok {
		return apperr.New(apperr.NotFound, "slot not found")
	}
	for id, other := range m.slots {
		if id == sl.ID {
			continue
		}
		if other.DoctorID == sl.DoctorID && other.Date == sl.Date &&
			sl.StartTime < other.EndTime && sl.EndTime > other.StartTime {
			return apperr.New(apperr.Conflict, "slot overlaps an existing slot")
		}
	}
	cp := *sl
	m.slots[sl.ID] = &cp
	return nil
}

func (m *mockSlotRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[id]; !ok {
		return apperr.New(apperr.NotFound, "slot not found")
	}
	delete(m.slots, id)
	return nil
}

func (m *mockSlotRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, date, fromDate string) ([]*TimeSlot, error) {
	m.mu.Lock()
	var result []*TimeSlot
	for _, sl := range m.slots {
		if sl.DoctorID != doctorID {
			continue
		}
		if date != "" && sl.Date != date {
			continue
		}
		if date == "" && fromDate != "" && sl.Date < fromDate {
			continue
		}
		cp := *sl
		result = append(result, &cp)
	}
	m.mu.Unlock()
	for _, sl := range result {
		sl.CurrentBookings = m.appts.activeCount(sl.ID)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		return result[i].StartTime < result[j].StartTime
	})
	return result, nil
}

func (m *mockSlotRepo) DeleteFutureByDoctor(_ context.Context, doctorID uuid.UUID, fromDate string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, sl := range m.slots {
		if sl.DoctorID == doctorID && sl.Date >= fromDate {
			delete(m.slots, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *mockSlotRepo) CountActiveAppointments(_ context.Context, slotID uuid.UUID) (int, error) {
	return m.appts.activeCount(slotID), nil
}

// -- Test Setup --

type testEnv struct {
	svc       *Service
	templates *mockTemplateRepo
	slots     *mockSlotRepo
	appts     *mockAppointmentRepo
	doctorID  uuid.UUID
}

// testToday is a Monday.
var testToday = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func newTestEnv() *testEnv {
	templates := newMockTemplateRepo()
	appts := newMockAppointmentRepo()
	slots := newMockSlotRepo(appts)
	svc := NewService(templates, slots, appts, zerolog.Nop())
	svc.now = func() time.Time { return testToday }
	return &testEnv{
		svc:       svc,
		templates: templates,
		slots:     slots,
		appts:     appts,
		doctorID:  templates.addDoctor(),
	}
}

func (e *testEnv) setTemplate(t *testing.T, tpl string) {
	t.Helper()
	if _, err := e.svc.UpdateAvailability(context.Background(), e.doctorID, json.RawMessage(tpl)); err != nil {
		t.Fatalf("set template: %v", err)
	}
}

const mondayTemplate = `{"Monday":{"available":true,"startTime":"09:00","endTime":"12:00","breakStart":"10:00","breakEnd":"10:30"}}`

// -- Template Tests --

func TestUpdateAvailability_UnknownDoctor(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.UpdateAvailability(context.Background(), uuid.New(), json.RawMessage(mondayTemplate))
	if !apperr.IsKind(err, apperr.NotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestUpdateAvailability_InvalidNotPersisted(t *testing.T) {
	env := newTestEnv()
	env.setTemplate(t, mondayTemplate)

	_, err := env.svc.UpdateAvailability(context.Background(), env.doctorID,
		json.RawMessage(`{"Monday":{"available":true}}`))
	if !apperr.IsKind(err, apperr.Validation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	tpl, err := env.svc.GetAvailability(context.Background(), env.doctorID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tpl.Day("Monday").Available {
		t.Error("expected the previous template to survive a failed update")
	}
}

// -- Generation Tests --

func TestGenerateSlots_TemplateNotSet(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.GenerateSlots(context.Background(), env.doctorID, GenerationParams{})
	if !apperr.IsKind(err, apperr.TemplateNotSet) {
		t.Errorf("expected template-not-set error, got %v", err)
	}
}

func TestGenerateSlots_UnknownDoctor(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.GenerateSlots(context.Background(), uuid.New(), GenerationParams{})
	if !apperr.IsKind(err, apperr.NotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestGenerateSlots_MondayScenario(t *testing.T) {
	env := newTestEnv()
	env.setTemplate(t, mondayTemplate)

	result, err := env.svc.GenerateSlots(context.Background(), env.doctorID,
		GenerationParams{DaysAhead: 7, SlotsPerDay: 5, ClearExisting: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalSlots != 5 {
		t.Fatalf("expected 5 slots, got %d", result.TotalSlots)
	}

	want := [][2]string{
		{"09:00", "09:30"},
		{"09:30", "10:00"},
		{"10:30", "11:00"},
		{"11:00", "11:30"},
		{"11:30", "12:00"},
	}
	for i, s := range result.SlotsCreated {
		if s.Date != "2026-03-02" {
			t.Errorf("slot %d: expected date 2026-03-02, got %s", i, s.Date)
		}
		if s.StartTime != want[i][0] || s.EndTime != want[i][1] {
			t.Errorf("slot %d: expected %s-%s, got %s-%s",
				i, want[i][0], want[i][1], s.StartTime, s.EndTime)
		}
	}
}

func TestGenerateSlots_IdempotentRegeneration(t *testing.T) {
	env := newTestEnv()
	env.setTemplate(t, mondayTemplate)

	params := GenerationParams{DaysAhead: 14, SlotsPerDay: 5, ClearExisting: true}
	first, err := env.svc.GenerateSlots(context.Background(), env.doctorID, params)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := env.svc.GenerateSlots(context.Background(), env.doctorID, params)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.TotalSlots != second.TotalSlots {
		t.Errorf("expected identical slot counts, got %d then %d", first.TotalSlots, second.TotalSlots)
	}
	for i := range first.SlotsCreated {
		a, b := first.SlotsCreated[i], second.SlotsCreated[i]
		if a.Date != b.Date || a.StartTime != b.StartTime || a.EndTime != b.EndTime {
			t.Errorf("slot %d differs between runs: %v vs %v", i, a, b)
		}
	}
}

func TestRegenerateAll_TopsUpWithoutClearing(t *testing.T) {
	env := newTestEnv()
	env.setTemplate(t, mondayTemplate)
	env.templates.addDoctor() // template never set, must be skipped

	first, err := env.svc.GenerateSlots(context.Background(), env.doctorID,
		GenerationParams{DaysAhead: 7, SlotsPerDay: 5})
	if err != nil {
		t.Fatalf("initial generation: %v", err)
	}

	ok, err := env.svc.RegenerateAll(context.Background(), GenerationParams{DaysAhead: 7, SlotsPerDay: 5})
	if err != nil {
		t.Fatalf("regenerate all: %v", err)
	}
	if ok != 1 {
		t.Errorf("expected one doctor regenerated, got %d", ok)
	}

	slots, err := env.svc.ListAvailableSlots(context.Background(), env.doctorID, "2026-03-02")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(slots) != first.TotalSlots {
		t.Errorf("expected existing days untouched, got %d slots after sweep (had %d)",
			len(slots), first.TotalSlots)
	}
}

func TestGenerateSlots_NoOverlapInvariant(t *testing.T) {
	env := newTestEnv()
	env.setTemplate(t, `{
		"Monday":{"available":true,"startTime":"09:00","endTime":"17:00"},
		"Tuesday":{"available":true,"startTime":"08:00","endTime":"13:00","breakStart":"10:00","breakEnd":"10:15"}
	}`)

	_, err := env.svc.GenerateSlots(context.Background(), env.doctorID,
		GenerationParams{DaysAhead: 30, SlotsPerDay: 10, ClearExisting: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byDay := map[string][]*TimeSlot{}
	env.slots.mu.Lock()
	for _, sl := range env.slots.slots {
		byDay[sl.Date] = append(byDay[sl.Date], sl)
	}
	env.slots.mu.Unlock()
	for date, slots := range byDay {
		if len(slots) > 10 {
			t.Errorf("%s: %d slots exceeds the per-day cap", date, len(slots))
		}
		sort.Slice(slots, func(i, j int) bool { return slots[i].StartTime < slots[j].StartTime })
		for i := 1; i < len(slots); i++ {
			if slots[i].StartTime < slots[i-1].EndTime {
				t.Errorf("%s: slots %s-%s and %s-%s overlap", date,
					slots[i-1].StartTime, slots[i-1].EndTime, slots[i].StartTime, slots[i].EndTime)
			}
		}
	}
}

// -- Manual Slot Tests --

func TestCreateSlot_OverlapRejected(t *testing.T) {
	env := newTestEnv()
	env.setTemplate(t, mondayTemplate)

	base := &TimeSlot{DoctorID: env.doctorID, Date: "2026-03-02", StartTime: "09:00", EndTime: "10:00", IsAvailable: true}
	if _, err := env.svc.CreateSlot(context.Background(), base); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	overlap := &TimeSlot{DoctorID: env.doctorID, Date: "2026-03-02", StartTime: "09:30", EndTime: "10:30", IsAvailable: true}
	_, err := env.svc.CreateSlot(context.Background(), overlap)
	if !apperr.IsKind(err, apperr.Conflict) {
		t.Errorf("expected conflict, got %v", err)
	}

	// Adjacent intervals do not overlap.
	adjacent := &TimeSlot{DoctorID: env.doctorID, Date: "2026-03-02", StartTime: "10:00", EndTime: "11:00", IsAvailable: true}
	if _, err := env.svc.CreateSlot(context.Background(), adjacent); err != nil {
		t.Errorf("expected adjacent slot to be accepted, got %v", err)
	}
}

func TestCreateSlot_Validation(t *testing.T) {
	env := newTestEnv()
	cases := []TimeSlot{
		{Date: "2026-03-02", StartTime: "09:00", EndTime: "10:00"},
		{DoctorID: env.doctorID, Date: "bad", StartTime: "09:00", EndTime: "10:00"},
		{DoctorID: env.doctorID, Date: "2026-03-02", StartTime: "10:00", EndTime: "09:00"},
		{DoctorID: env.doctorID, Date: "2026-03-02", StartTime: "junk", EndTime: "10:00"},
	}
	for i, sl := range cases {
		s := sl
		if _, err := env.svc.CreateSlot(context.Background(), &s); !apperr.IsKind(err, apperr.Validation) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestUpdateSlot_PatchesFields(t *testing.T) {
	env := newTestEnv()
	env.setTemplate(t, mondayTemplate)

	sl, err := env.svc.CreateSlot(context.Background(), &TimeSlot{
		DoctorID: env.doctorID, Date: "2026-03-02", StartTime: "09:00", EndTime: "10:00", IsAvailable: true,
	})
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}

	end := "10:30"
	capacity := 3
	updated, err := env.svc.UpdateSlot(context.Background(), sl.ID, SlotPatch{
		EndTime:         &end,
		MaxAppointments: &capacity,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.EndTime != "10:30" || updated.MaxAppointments != 3 {
		t.Errorf("expected patched fields, got end=%s max=%d", updated.EndTime, updated.MaxAppointments)
	}
	if updated.StartTime != "09:00" {
		t.Errorf("expected untouched start to survive, got %s", updated.StartTime)
	}

	bad := "09:00"
	if _, err := env.svc.UpdateSlot(context.Background(), sl.ID, SlotPatch{EndTime: &bad}); !apperr.IsKind(err, apperr.Validation) {
		t.Errorf("expected validation error for start >= end, got %v", err)
	}
	if _, err := env.svc.UpdateSlot(context.Background(), uuid.New(), SlotPatch{}); !apperr.IsKind(err, apperr.NotFound) {
		t.Errorf("expected not found for unknown slot, got %v", err)
	}
}

func TestUpdateSlot_OverlapRejected(t *testing.T) {
	env := newTestEnv()
	env.setTemplate(t, mondayTemplate)

	first, err := env.svc.CreateSlot(context.Background(), &TimeSlot{
		DoctorID: env.doctorID, Date: "2026-03-02", StartTime: "09:00", EndTime: "10:00", IsAvailable: true,
	})
	if err != nil {
		t.Fatalf("create first slot: %v", err)
	}
	second, err := env.svc.CreateSlot(context.Background(), &TimeSlot{
		DoctorID: env.doctorID, Date: "2026-03-02", StartTime: "10:00", EndTime: "11:00", IsAvailable: true,
	})
	if err != nil {
		t.Fatalf("create second slot: %v", err)
	}

	// Moving the second slot's start into the first one's interval must fail
	// and leave the stored interval untouched.
	start := "09:30"
	if _, err := env.svc.UpdateSlot(context.Background(), second.ID, SlotPatch{StartTime: &start}); !apperr.IsKind(err, apperr.Conflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	stored, err := env.svc.GetSlot(context.Background(), second.ID)
	if err != nil {
		t.Fatalf("get slot: %v", err)
	}
	if stored.StartTime != "10:00" || stored.EndTime != "11:00" {
		t.Errorf("expected interval unchanged after rejected update, got %s-%s", stored.StartTime, stored.EndTime)
	}

	// Landing exactly on the other slot's start is also an overlap.
	exact := "09:00"
	endExact := "09:30"
	if _, err := env.svc.UpdateSlot(context.Background(), second.ID, SlotPatch{StartTime: &exact, EndTime: &endExact}); !apperr.IsKind(err, apperr.Conflict) {
		t.Errorf("expected conflict for exact start collision, got %v", err)
	}

	// Shrinking within its own interval stays legal.
	shrink := "10:15"
	if _, err := env.svc.UpdateSlot(context.Background(), second.ID, SlotPatch{StartTime: &shrink}); err != nil {
		t.Errorf("expected non-overlapping update to succeed, got %v", err)
	}
	if _, err := env.svc.GetSlot(context.Background(), first.ID); err != nil {
		t.Fatalf("get first slot: %v", err)
	}
}

func TestDeleteSlot_BlockedByActiveBooking(t *testing.T) {
	env := newTestEnv()
	env.setTemplate(t, mondayTemplate)

	sl, err := env.svc.CreateSlot(context.Background(), &TimeSlot{
		DoctorID: env.doctorID, Date: "2026-03-02", StartTime: "09:00", EndTime: "09:30", IsAvailable: true,
	})
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}
	if _, err := env.svc.BookAppointment(context.Background(), BookingRequest{
		PatientID: uuid.New(), SlotID: &sl.ID,
	}); err != nil {
		t.Fatalf("book: %v", err)
	}

	if err := env.svc.DeleteSlot(context.Background(), sl.ID); !apperr.IsKind(err, apperr.Conflict) {
		t.Errorf("expected conflict while booked, got %v", err)
	}

	// Cancelling frees the slot for deletion.
	appts, _, _ := env.svc.ListAppointmentsByDoctor(context.Background(), env.doctorID, 10, 0)
	if len(appts) != 1 {
		t.Fatalf("expected 1 appointment, got %d", len(appts))
	}
	if _, err := env.svc.UpdateAppointmentStatus(context.Background(), appts[0].ID, StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := env.svc.DeleteSlot(context.Background(), sl.ID); err != nil {
		t.Errorf("expected delete to succeed after cancel, got %v", err)
	}
}

func TestClearSlots(t *testing.T) {
	env := newTestEnv()
	env.setTemplate(t, mondayTemplate)

	result, err := env.svc.GenerateSlots(context.Background(), env.doctorID,
		GenerationParams{DaysAhead: 7, SlotsPerDay: 5})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	deleted, err := env.svc.ClearSlots(context.Background(), env.doctorID)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if deleted != int64(result.TotalSlots) {
		t.Errorf("expected %d deleted, got %d", result.TotalSlots, deleted)
	}

	if _, err := env.svc.ClearSlots(context.Background(), uuid.New()); !apperr.IsKind(err, apperr.NotFound) {
		t.Errorf("expected not found for unknown doctor, got %v", err)
	}
}

// -- Booking Tests --

func TestBookAppointment_SlotPath(t *testing.T) {
	env := newTestEnv()
	env.setTemplate(t, mondayTemplate)

	sl, err := env.svc.CreateSlot(context.Background(), &TimeSlot{
		DoctorID: env.doctorID, Date: "2026-03-02", StartTime: "09:00", EndTime: "09:30", IsAvailable: true,
	})
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}

	a, err := env.svc.BookAppointment(context.Background(), BookingRequest{
		PatientID: uuid.New(), SlotID: &sl.ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != StatusPending {
		t.Errorf("expected Pending, got %s", a.Status)
	}
	if a.Date != sl.Date || a.Time != sl.StartTime {
		t.Errorf("expected date/time copied from slot, got %s %s", a.Date, a.Time)
	}

	// The slot is claimed; a second booking conflicts.
	_, err = env.svc.BookAppointment(context.Background(), BookingRequest{
		PatientID: uuid.New(), SlotID: &sl.ID,
	})
	if !apperr.IsKind(err, apperr.Conflict) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestBookAppointment_LegacyPath(t *testing.T) {
	env := newTestEnv()
	a, err := env.svc.BookAppointment(context.Background(), BookingRequest{
		PatientID: uuid.New(), DoctorID: env.doctorID, Date: "2026-03-09", Time: "9:30",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.SlotID != nil {
		t.Error("expected no slot linkage on the legacy path")
	}
	if a.Time != "09:30" {
		t.Errorf("expected normalized time 09:30, got %s", a.Time)
	}
}

func TestBookAppointment_ConcurrentClaims(t *testing.T) {
	env := newTestEnv()
	env.setTemplate(t, mondayTemplate)

	sl, err := env.svc.CreateSlot(context.Background(), &TimeSlot{
		DoctorID: env.doctorID, Date: "2026-03-02", StartTime: "09:00", EndTime: "09:30", IsAvailable: true,
	})
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.BookAppointment(context.Background(), BookingRequest{
				PatientID: uuid.New(), SlotID: &sl.ID,
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else if !apperr.IsKind(err, apperr.Conflict) {
			t.Errorf("loser saw unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly one winning booking, got %d", wins)
	}
	if n := env.appts.activeCount(sl.ID); n != 1 {
		t.Errorf("expected current bookings 1, got %d", n)
	}
}

func TestBookAppointment_SlotDoctorMismatch(t *testing.T) {
	env := newTestEnv()
	env.setTemplate(t, mondayTemplate)

	sl, err := env.svc.CreateSlot(context.Background(), &TimeSlot{
		DoctorID: env.doctorID, Date: "2026-03-02", StartTime: "09:00", EndTime: "09:30", IsAvailable: true,
	})
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}
	_, err = env.svc.BookAppointment(context.Background(), BookingRequest{
		PatientID: uuid.New(), DoctorID: uuid.New(), SlotID: &sl.ID,
	})
	if !apperr.IsKind(err, apperr.Validation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

// -- Availability Recomputation Tests --

func TestAvailabilityRecomputedAfterTemplateEdit(t *testing.T) {
	env := newTestEnv()
	env.setTemplate(t, mondayTemplate)

	if _, err := env.svc.GenerateSlots(context.Background(), env.doctorID,
		GenerationParams{DaysAhead: 7, SlotsPerDay: 5}); err != nil {
		t.Fatalf("generate: %v", err)
	}

	slots, err := env.svc.ListAvailableSlots(context.Background(), env.doctorID, "2026-03-02")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(slots) != 5 {
		t.Fatalf("expected 5 available slots, got %d", len(slots))
	}

	// Turning Monday off makes the existing slots unavailable immediately,
	// with no regeneration.
	env.setTemplate(t, `{"Monday":{"available":false}}`)
	slots, err = env.svc.ListAvailableSlots(context.Background(), env.doctorID, "2026-03-02")
	if err != nil {
		t.Fatalf("list after edit: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("expected no available slots after disabling the day, got %d", len(slots))
	}
}

func TestBookAppointment_RejectedAfterTemplateEdit(t *testing.T) {
	env := newTestEnv()
	env.setTemplate(t, mondayTemplate)

	sl, err := env.svc.CreateSlot(context.Background(), &TimeSlot{
		DoctorID: env.doctorID, Date: "2026-03-02", StartTime: "09:00", EndTime: "09:30", IsAvailable: true,
	})
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}

	env.setTemplate(t, `{"Monday":{"available":false}}`)
	_, err = env.svc.BookAppointment(context.Background(), BookingRequest{
		PatientID: uuid.New(), SlotID: &sl.ID,
	})
	if !apperr.IsKind(err, apperr.Conflict) {
		t.Errorf("expected conflict after the day was disabled, got %v", err)
	}
}

func TestCheckWithin_FailsOpenOnCorruptTemplate(t *testing.T) {
	env := newTestEnv()
	env.setTemplate(t, mondayTemplate)

	sl, err := env.svc.CreateSlot(context.Background(), &TimeSlot{
		DoctorID: env.doctorID, Date: "2026-03-02", StartTime: "09:00", EndTime: "09:30", IsAvailable: true,
	})
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}

	// Corrupt the stored document behind the service's back.
	env.templates.mu.Lock()
	env.templates.docs[env.doctorID] = json.RawMessage(`{{{`)
	env.templates.mu.Unlock()

	if _, err := env.svc.BookAppointment(context.Background(), BookingRequest{
		PatientID: uuid.New(), SlotID: &sl.ID,
	}); err != nil {
		t.Errorf("expected booking to fail open on a corrupt template, got %v", err)
	}
}

func TestCheckWithin_SlotInsideBreakRejected(t *testing.T) {
	env := newTestEnv()
	env.setTemplate(t, `{"Monday":{"available":true,"startTime":"09:00","endTime":"17:00","breakStart":"12:00","breakEnd":"13:00"}}`)

	svc := env.svc
	tpl, tplErr := svc.loadTemplate(context.Background(), env.doctorID)

	inBreak := &TimeSlot{DoctorID: env.doctorID, Date: "2026-03-02", StartTime: "12:15", EndTime: "12:45"}
	if svc.checkWithin(tpl, tplErr, inBreak) {
		t.Error("expected a slot inside the break to be rejected")
	}

	straddling := &TimeSlot{DoctorID: env.doctorID, Date: "2026-03-02", StartTime: "11:45", EndTime: "12:15"}
	if !svc.checkWithin(tpl, tplErr, straddling) {
		t.Error("expected a slot straddling the break edge to pass the containment check")
	}

	outsideWork := &TimeSlot{DoctorID: env.doctorID, Date: "2026-03-02", StartTime: "17:00", EndTime: "17:30"}
	if svc.checkWithin(tpl, tplErr, outsideWork) {
		t.Error("expected a slot outside work hours to be rejected")
	}
}

// -- Status Transition Tests --

func TestUpdateAppointmentStatus_Transitions(t *testing.T) {
	env := newTestEnv()
	a, err := env.svc.BookAppointment(context.Background(), BookingRequest{
		PatientID: uuid.New(), DoctorID: env.doctorID, Date: "2026-03-09", Time: "09:00",
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	a, err = env.svc.UpdateAppointmentStatus(context.Background(), a.ID, StatusConfirmed)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if a.Status != StatusConfirmed {
		t.Errorf("expected Confirmed, got %s", a.Status)
	}

	a, err = env.svc.UpdateAppointmentStatus(context.Background(), a.ID, StatusCompleted)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	// Completed is terminal.
	if _, err := env.svc.UpdateAppointmentStatus(context.Background(), a.ID, StatusPending); !apperr.IsKind(err, apperr.Conflict) {
		t.Errorf("expected conflict leaving a terminal status, got %v", err)
	}
}

func TestUpdateAppointmentStatus_InvalidStatus(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.UpdateAppointmentStatus(context.Background(), uuid.New(), "Rescheduled")
	if !apperr.IsKind(err, apperr.Validation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCancellationFreesSlot(t *testing.T) {
	env := newTestEnv()
	env.setTemplate(t, mondayTemplate)

	sl, err := env.svc.CreateSlot(context.Background(), &TimeSlot{
		DoctorID: env.doctorID, Date: "2026-03-02", StartTime: "09:00", EndTime: "09:30", IsAvailable: true,
	})
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}
	a, err := env.svc.BookAppointment(context.Background(), BookingRequest{
		PatientID: uuid.New(), SlotID: &sl.ID,
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := env.svc.UpdateAppointmentStatus(context.Background(), a.ID, StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// The slot is claimable again.
	if _, err := env.svc.BookAppointment(context.Background(), BookingRequest{
		PatientID: uuid.New(), SlotID: &sl.ID,
	}); err != nil {
		t.Errorf("expected rebooking after cancellation to succeed, got %v", err)
	}
}
