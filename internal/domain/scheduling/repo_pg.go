package scheduling

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medline/medline/internal/platform/apperr"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// =========== Template Repository ===========

type templateRepoPG struct{ pool *pgxpool.Pool }

func NewTemplateRepoPG(pool *pgxpool.Pool) TemplateRepository { return &templateRepoPG{pool: pool} }

func (r *templateRepoPG) GetRaw(ctx context.Context, doctorID uuid.UUID) (json.RawMessage, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(availability, '{}'::jsonb) FROM doctor WHERE id = $1`, doctorID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "doctor not found")
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(doc), nil
}

func (r *templateRepoPG) Replace(ctx context.Context, doctorID uuid.UUID, doc json.RawMessage) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE doctor SET availability = $2, updated_at = NOW() WHERE id = $1`, doctorID, doc)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.NotFound, "doctor not found")
	}
	return nil
}

func (r *templateRepoPG) ListDoctorsWithTemplates(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM doctor WHERE availability IS NOT NULL AND availability != '{}'::jsonb`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// =========== Slot Repository ===========

type slotRepoPG struct{ pool *pgxpool.Pool }

func NewSlotRepoPG(pool *pgxpool.Pool) SlotRepository { return &slotRepoPG{pool: pool} }

const slotCols = `id, doctor_id, date::text, start_time, end_time, is_available, max_appointments, created_at, updated_at`

func scanSlotWithBookings(row pgx.Row) (*TimeSlot, error) {
	var sl TimeSlot
	err := row.Scan(&sl.ID, &sl.DoctorID, &sl.Date, &sl.StartTime, &sl.EndTime,
		&sl.IsAvailable, &sl.MaxAppointments, &sl.CreatedAt, &sl.UpdatedAt, &sl.CurrentBookings)
	return &sl, err
}

func (r *slotRepoPG) InsertIfNoOverlap(ctx context.Context, sl *TimeSlot) error {
	if sl.ID == uuid.Nil {
		sl.ID = uuid.New()
	}
	// The overlap check and the insert are one statement, so two concurrent
	// inserts cannot both pass the check against a stale read.
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO time_slot (id, doctor_id, date, start_time, end_time, is_available, max_appointments)
		SELECT $1, $2, $3::date, $4, $5, $6, $7
		WHERE NOT EXISTS (
			SELECT 1 FROM time_slot
			WHERE doctor_id = $2 AND date = $3::date
			  AND start_time < $5 AND end_time > $4
		)`,
		sl.ID, sl.DoctorID, sl.Date, sl.StartTime, sl.EndTime, sl.IsAvailable, sl.MaxAppointments)
	if isUniqueViolation(err) {
		return apperr.New(apperr.Conflict, "slot overlaps an existing slot")
	}
	if isForeignKeyViolation(err) {
		return apperr.New(apperr.NotFound, "doctor not found")
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.Conflict, "slot overlaps an existing slot")
	}
	return nil
}

func (r *slotRepoPG) InsertDay(ctx context.Context, slots []*TimeSlot) error {
	if len(slots) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, sl := range slots {
		if sl.ID == uuid.Nil {
			sl.ID = uuid.New()
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO time_slot (id, doctor_id, date, start_time, end_time, is_available, max_appointments)
			VALUES ($1, $2, $3::date, $4, $5, $6, $7)`,
			sl.ID, sl.DoctorID, sl.Date, sl.StartTime, sl.EndTime, sl.IsAvailable, sl.MaxAppointments)
		if isUniqueViolation(err) {
			return apperr.New(apperr.Conflict, "slot already exists for %s %s", sl.Date, sl.StartTime)
		}
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *slotRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	sl, err := scanSlotWithBookings(r.pool.QueryRow(ctx, `
		SELECT `+slotCols+`,
			(SELECT COUNT(*) FROM appointment a
			 WHERE a.slot_id = time_slot.id AND a.status IN ('Pending','Confirmed'))
		FROM time_slot WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "slot not found")
	}
	if err != nil {
		return nil, err
	}
	return sl, nil
}

func (r *slotRepoPG) UpdateIfNoOverlap(ctx context.Context, sl *TimeSlot) error {
	// Same single-statement discipline as InsertIfNoOverlap: the new interval
	// is checked against the slot's neighbours inside the UPDATE itself.
	tag, err := r.pool.Exec(ctx, `
		UPDATE time_slot
		SET start_time = $2, end_time = $3, is_available = $4, max_appointments = $5, updated_at = NOW()
		WHERE id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM time_slot other
			WHERE other.doctor_id = time_slot.doctor_id
			  AND other.date = time_slot.date
			  AND other.id <> time_slot.id
			  AND other.start_time < $3 AND other.end_time > $2
		  )`,
		sl.ID, sl.StartTime, sl.EndTime, sl.IsAvailable, sl.MaxAppointments)
	if isUniqueViolation(err) {
		return apperr.New(apperr.Conflict, "slot overlaps an existing slot")
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM time_slot WHERE id = $1)`, sl.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return apperr.New(apperr.NotFound, "slot not found")
		}
		return apperr.New(apperr.Conflict, "slot overlaps an existing slot")
	}
	return nil
}

func (r *slotRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM time_slot WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.NotFound, "slot not found")
	}
	return nil
}

func (r *slotRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, date, fromDate string) ([]*TimeSlot, error) {
	query := `
		SELECT ` + slotCols + `,
			(SELECT COUNT(*) FROM appointment a
			 WHERE a.slot_id = time_slot.id AND a.status IN ('Pending','Confirmed'))
		FROM time_slot WHERE doctor_id = $1`
	args := []interface{}{doctorID}
	if date != "" {
		args = append(args, date)
		query += ` AND date = $2::date`
	} else if fromDate != "" {
		args = append(args, fromDate)
		query += ` AND date >= $2::date`
	}
	query += ` ORDER BY date, start_time`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*TimeSlot
	for rows.Next() {
		sl, err := scanSlotWithBookings(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, sl)
	}
	return items, rows.Err()
}

func (r *slotRepoPG) DeleteFutureByDoctor(ctx context.Context, doctorID uuid.UUID, fromDate string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM time_slot WHERE doctor_id = $1 AND date >= $2::date`, doctorID, fromDate)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *slotRepoPG) CountActiveAppointments(ctx context.Context, slotID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM appointment WHERE slot_id = $1 AND status IN ('Pending','Confirmed')`,
		slotID).Scan(&n)
	return n, err
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

const apptCols = `id, patient_id, doctor_id, slot_id, date::text, time, status, notes, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.SlotID, &a.Date, &a.Time,
		&a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	// A partial unique index on appointment(slot_id) for active statuses
	// serializes concurrent claims on the same slot; exactly one insert wins.
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointment (id, patient_id, doctor_id, slot_id, date, time, status, notes)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8)`,
		a.ID, a.PatientID, a.DoctorID, a.SlotID, a.Date, a.Time, a.Status, a.Notes)
	if isUniqueViolation(err) {
		return apperr.New(apperr.Conflict, "slot already has an active appointment")
	}
	if isForeignKeyViolation(err) {
		return apperr.New(apperr.NotFound, "patient, doctor or slot not found")
	}
	return err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.pool.QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "appointment not found")
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE appointment SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.NotFound, "appointment not found")
	}
	return nil
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return r.list(ctx, `patient_id`, patientID, limit, offset)
}

func (r *appointmentRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return r.list(ctx, `doctor_id`, doctorID, limit, offset)
}

func (r *appointmentRepoPG) list(ctx context.Context, col string, id uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM appointment WHERE `+col+` = $1`, id).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+apptCols+` FROM appointment WHERE `+col+` = $1
		 ORDER BY date DESC, time DESC LIMIT $2 OFFSET $3`, id, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
