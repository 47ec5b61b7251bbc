package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/medline/medline/internal/platform/apperr"
)

const dateLayout = "2006-01-02"

type Service struct {
	templates    TemplateRepository
	slots        SlotRepository
	appointments AppointmentRepository
	log          zerolog.Logger

	// genGroup serializes slot generation per doctor: clearing and
	// regenerating is not atomic as a pair, so concurrent runs for the
	// same doctor must collapse into one.
	genGroup singleflight.Group

	// now is swappable in tests.
	now func() time.Time
}

func NewService(templates TemplateRepository, slots SlotRepository, appointments AppointmentRepository, log zerolog.Logger) *Service {
	return &Service{
		templates:    templates,
		slots:        slots,
		appointments: appointments,
		log:          log,
		now:          time.Now,
	}
}

// -- Availability Template --

// UpdateAvailability validates and stores a doctor's weekly template. The
// stored document is the normalized form (defaults applied), replaced in
// full; nothing is persisted when validation fails.
func (s *Service) UpdateAvailability(ctx context.Context, doctorID uuid.UUID, raw json.RawMessage) (WeeklyAvailability, error) {
	if len(raw) == 0 {
		return nil, apperr.New(apperr.Validation, "availability is required")
	}
	tpl, err := ParseWeeklyAvailability(raw)
	if err != nil {
		return nil, err
	}
	normalized, err := json.Marshal(tpl)
	if err != nil {
		return nil, err
	}
	if err := s.templates.Replace(ctx, doctorID, normalized); err != nil {
		return nil, err
	}
	return tpl, nil
}

func (s *Service) GetAvailability(ctx context.Context, doctorID uuid.UUID) (WeeklyAvailability, error) {
	raw, err := s.templates.GetRaw(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return ParseWeeklyAvailability(raw)
}

// -- Slot Generation --

// GenerateSlots expands the doctor's template into dated slots over the
// horizon. Concurrent calls for the same doctor share one run.
func (s *Service) GenerateSlots(ctx context.Context, doctorID uuid.UUID, params GenerationParams) (*GenerationResult, error) {
	params.applyDefaults()
	v, err, _ := s.genGroup.Do(doctorID.String(), func() (interface{}, error) {
		return s.generate(ctx, doctorID, params)
	})
	if err != nil {
		return nil, err
	}
	return v.(*GenerationResult), nil
}

// RegenerateAll runs slot generation for every doctor with a stored template,
// without clearing existing slots. Failures are logged per doctor and do not
// stop the sweep; the return value counts doctors that regenerated cleanly.
func (s *Service) RegenerateAll(ctx context.Context, params GenerationParams) (int, error) {
	ids, err := s.templates.ListDoctorsWithTemplates(ctx)
	if err != nil {
		return 0, err
	}
	params.ClearExisting = false
	ok := 0
	for _, id := range ids {
		if _, err := s.GenerateSlots(ctx, id, params); err != nil {
			s.log.Warn().Err(err).Str("doctor_id", id.String()).
				Msg("scheduled slot regeneration failed for doctor")
			continue
		}
		ok++
	}
	return ok, nil
}

func (s *Service) generate(ctx context.Context, doctorID uuid.UUID, params GenerationParams) (*GenerationResult, error) {
	raw, err := s.templates.GetRaw(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	tpl, err := ParseWeeklyAvailability(raw)
	if err != nil || tpl.IsEmpty() {
		return nil, apperr.New(apperr.TemplateNotSet, "availability template not set for doctor")
	}

	today := s.now()
	todayStr := today.Format(dateLayout)

	if params.ClearExisting {
		deleted, err := s.slots.DeleteFutureByDoctor(ctx, doctorID, todayStr)
		if err != nil {
			return nil, err
		}
		s.log.Info().Str("doctor_id", doctorID.String()).Int64("deleted", deleted).
			Msg("cleared future slots before regeneration")
	}

	var created []SlotSummary
	for i := 0; i < params.DaysAhead; i++ {
		day := today.AddDate(0, 0, i)
		windows, err := expandDay(tpl.Day(day.Weekday().String()), params.SlotsPerDay)
		if err != nil {
			return nil, apperr.Wrap(apperr.Validation, err, "invalid time in availability template")
		}
		if len(windows) == 0 {
			continue
		}

		dateStr := day.Format(dateLayout)
		slots := make([]*TimeSlot, 0, len(windows))
		for _, w := range windows {
			slots = append(slots, &TimeSlot{
				DoctorID:        doctorID,
				Date:            dateStr,
				StartTime:       formatClock(w.Start),
				EndTime:         formatClock(w.End),
				IsAvailable:     true,
				MaxAppointments: 1,
			})
		}
		// Each day commits on its own, so a failure mid-horizon leaves the
		// completed days persisted and visible. Without ClearExisting, days
		// that already hold slots are kept as they are.
		if err := s.slots.InsertDay(ctx, slots); err != nil {
			if !params.ClearExisting && apperr.IsKind(err, apperr.Conflict) {
				s.log.Debug().Str("doctor_id", doctorID.String()).Str("date", dateStr).
					Msg("skipping day that already has slots")
				continue
			}
			return nil, err
		}
		for _, sl := range slots {
			created = append(created, SlotSummary{
				ID: sl.ID, Date: sl.Date, StartTime: sl.StartTime, EndTime: sl.EndTime,
			})
		}
	}

	return &GenerationResult{
		Message:      fmt.Sprintf("Generated %d slots over %d days", len(created), params.DaysAhead),
		SlotsCreated: created,
		TotalSlots:   len(created),
	}, nil
}

// -- Manual Slots --

func (s *Service) CreateSlot(ctx context.Context, sl *TimeSlot) (*TimeSlot, error) {
	if sl.DoctorID == uuid.Nil {
		return nil, apperr.New(apperr.Validation, "doctor_id is required")
	}
	if _, err := time.Parse(dateLayout, sl.Date); err != nil {
		return nil, apperr.New(apperr.Validation, "invalid date, want YYYY-MM-DD")
	}
	start, err := parseClock(sl.StartTime)
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, err, "invalid start_time")
	}
	end, err := parseClock(sl.EndTime)
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, err, "invalid end_time")
	}
	if start >= end {
		return nil, apperr.New(apperr.Validation, "start_time must be before end_time")
	}
	sl.StartTime = formatClock(start)
	sl.EndTime = formatClock(end)
	if sl.MaxAppointments <= 0 {
		sl.MaxAppointments = 1
	}

	if err := s.slots.InsertIfNoOverlap(ctx, sl); err != nil {
		return nil, err
	}
	sl.CurrentBookings = 0
	sl.IsSlotAvailable = sl.IsAvailable && s.withinDoctorAvailability(ctx, sl)
	return sl, nil
}

func (s *Service) GetSlot(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	sl, err := s.slots.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.deriveAvailability(ctx, sl)
	return sl, nil
}

// ListAvailableSlots returns the doctor's future bookable slots, optionally
// narrowed to one date, ordered by date then start time. Slots failing the
// recomputed availability check are filtered out.
func (s *Service) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]*TimeSlot, error) {
	todayStr := s.now().Format(dateLayout)
	if date != "" {
		if _, err := time.Parse(dateLayout, date); err != nil {
			return nil, apperr.New(apperr.Validation, "invalid date, want YYYY-MM-DD")
		}
		if date < todayStr {
			return []*TimeSlot{}, nil
		}
	}

	all, err := s.slots.ListByDoctor(ctx, doctorID, date, todayStr)
	if err != nil {
		return nil, err
	}

	tpl, tplErr := s.loadTemplate(ctx, doctorID)
	out := []*TimeSlot{}
	for _, sl := range all {
		if !sl.IsAvailable || sl.CurrentBookings >= sl.MaxAppointments {
			continue
		}
		sl.IsSlotAvailable = s.checkWithin(tpl, tplErr, sl)
		if sl.IsSlotAvailable {
			out = append(out, sl)
		}
	}
	return out, nil
}

// SlotPatch carries the updatable slot fields; nil means unchanged.
type SlotPatch struct {
	StartTime       *string `json:"start_time"`
	EndTime         *string `json:"end_time"`
	IsAvailable     *bool   `json:"is_available"`
	MaxAppointments *int    `json:"max_appointments"`
}

func (s *Service) UpdateSlot(ctx context.Context, id uuid.UUID, patch SlotPatch) (*TimeSlot, error) {
	sl, err := s.slots.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.StartTime != nil {
		sl.StartTime = *patch.StartTime
	}
	if patch.EndTime != nil {
		sl.EndTime = *patch.EndTime
	}
	if patch.IsAvailable != nil {
		sl.IsAvailable = *patch.IsAvailable
	}
	if patch.MaxAppointments != nil {
		sl.MaxAppointments = *patch.MaxAppointments
	}

	start, err := parseClock(sl.StartTime)
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, err, "invalid start_time")
	}
	end, err := parseClock(sl.EndTime)
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, err, "invalid end_time")
	}
	if start >= end {
		return nil, apperr.New(apperr.Validation, "start_time must be before end_time")
	}
	if sl.MaxAppointments <= 0 {
		return nil, apperr.New(apperr.Validation, "max_appointments must be positive")
	}
	sl.StartTime = formatClock(start)
	sl.EndTime = formatClock(end)

	if err := s.slots.UpdateIfNoOverlap(ctx, sl); err != nil {
		return nil, err
	}
	s.deriveAvailability(ctx, sl)
	return sl, nil
}

// DeleteSlot removes a slot unless an active appointment still references it.
func (s *Service) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	active, err := s.slots.CountActiveAppointments(ctx, id)
	if err != nil {
		return err
	}
	if active > 0 {
		return apperr.New(apperr.Conflict, "slot has active bookings")
	}
	return s.slots.Delete(ctx, id)
}

// ClearSlots deletes all of the doctor's slots from today onward.
func (s *Service) ClearSlots(ctx context.Context, doctorID uuid.UUID) (int64, error) {
	// Existence check so an unknown doctor is a 404, not a zero count.
	if _, err := s.templates.GetRaw(ctx, doctorID); err != nil {
		return 0, err
	}
	return s.slots.DeleteFutureByDoctor(ctx, doctorID, s.now().Format(dateLayout))
}

// -- Booking --

// BookingRequest is a booking attempt. SlotID selects the slot-based path;
// when nil, Date and Time book directly with no slot linkage.
type BookingRequest struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	SlotID    *uuid.UUID
	Date      string
	Time      string
	Notes     *string
}

// BookAppointment creates a Pending appointment. The slot path re-validates
// availability at booking time and relies on the storage constraint to
// serialize concurrent claims; the legacy date/time path is always accepted.
func (s *Service) BookAppointment(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if req.PatientID == uuid.Nil {
		return nil, apperr.New(apperr.Validation, "patient_id is required")
	}

	a := &Appointment{
		PatientID: req.PatientID,
		Status:    StatusPending,
		Notes:     req.Notes,
	}

	if req.SlotID != nil {
		sl, err := s.slots.GetByID(ctx, *req.SlotID)
		if err != nil {
			return nil, err
		}
		if req.DoctorID != uuid.Nil && req.DoctorID != sl.DoctorID {
			return nil, apperr.New(apperr.Validation, "slot does not belong to the given doctor")
		}
		s.deriveAvailability(ctx, sl)
		if !sl.IsSlotAvailable {
			return nil, apperr.New(apperr.Conflict, "slot is not available")
		}
		a.DoctorID = sl.DoctorID
		a.SlotID = &sl.ID
		a.Date = sl.Date
		a.Time = sl.StartTime
	} else {
		if req.DoctorID == uuid.Nil {
			return nil, apperr.New(apperr.Validation, "doctor_id is required")
		}
		if _, err := time.Parse(dateLayout, req.Date); err != nil {
			return nil, apperr.New(apperr.Validation, "invalid date, want YYYY-MM-DD")
		}
		minutes, err := parseClock(req.Time)
		if err != nil {
			return nil, apperr.Wrap(apperr.Validation, err, "invalid time")
		}
		a.DoctorID = req.DoctorID
		a.Date = req.Date
		a.Time = formatClock(minutes)
	}

	if err := s.appointments.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.ListByDoctor(ctx, doctorID, limit, offset)
}

// UpdateAppointmentStatus applies a status transition. Pending may confirm,
// complete or cancel; Confirmed may complete or cancel; Completed and
// Cancelled are terminal.
func (s *Service) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status string) (*Appointment, error) {
	if !validStatuses[status] {
		return nil, apperr.New(apperr.Validation, "invalid status %q", status)
	}
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == status {
		return a, nil
	}
	if !validTransitions[a.Status][status] {
		return nil, apperr.New(apperr.Conflict, "cannot change status from %s to %s", a.Status, status)
	}
	if err := s.appointments.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	a.Status = status
	return a, nil
}

// -- Availability recomputation --

// deriveAvailability fills the slot's derived fields from live state.
func (s *Service) deriveAvailability(ctx context.Context, sl *TimeSlot) {
	tpl, tplErr := s.loadTemplate(ctx, sl.DoctorID)
	sl.IsSlotAvailable = sl.IsAvailable &&
		sl.CurrentBookings < sl.MaxAppointments &&
		s.checkWithin(tpl, tplErr, sl)
}

func (s *Service) withinDoctorAvailability(ctx context.Context, sl *TimeSlot) bool {
	tpl, tplErr := s.loadTemplate(ctx, sl.DoctorID)
	return s.checkWithin(tpl, tplErr, sl)
}

func (s *Service) loadTemplate(ctx context.Context, doctorID uuid.UUID) (WeeklyAvailability, error) {
	raw, err := s.templates.GetRaw(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return ParseWeeklyAvailability(raw)
}

// checkWithin reports whether the slot lies inside the doctor's current
// working window for its weekday: fully inside work hours and not fully
// inside the break. Template read or parse failures fail open so a corrupt
// template does not block bookings; the error is logged instead.
func (s *Service) checkWithin(tpl WeeklyAvailability, tplErr error, sl *TimeSlot) bool {
	if tplErr != nil {
		s.log.Warn().Err(tplErr).Str("doctor_id", sl.DoctorID.String()).
			Msg("availability re-check failed, treating slot as available")
		return true
	}

	date, err := time.Parse(dateLayout, sl.Date)
	if err != nil {
		s.log.Warn().Err(err).Str("slot_id", sl.ID.String()).
			Msg("availability re-check failed, treating slot as available")
		return true
	}

	day := tpl.Day(date.Weekday().String())
	if !day.Available {
		return false
	}

	workStart, err1 := parseClock(day.StartTime)
	workEnd, err2 := parseClock(day.EndTime)
	breakStart, err3 := parseClock(day.BreakStart)
	breakEnd, err4 := parseClock(day.BreakEnd)
	slotStart, err5 := parseClock(sl.StartTime)
	slotEnd, err6 := parseClock(sl.EndTime)
	for _, err := range []error{err1, err2, err3, err4, err5, err6} {
		if err != nil {
			s.log.Warn().Err(err).Str("slot_id", sl.ID.String()).
				Msg("availability re-check failed, treating slot as available")
			return true
		}
	}

	inWork := slotStart >= workStart && slotEnd <= workEnd
	inBreak := breakEnd > breakStart && slotStart >= breakStart && slotEnd <= breakEnd
	return inWork && !inBreak
}
