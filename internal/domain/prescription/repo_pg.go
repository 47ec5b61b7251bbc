package prescription

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medline/medline/internal/platform/apperr"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const prescriptionCols = `id, appointment_id, medications, instructions, created_at, updated_at`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.AppointmentID, &p.Medications, &p.Instructions,
		&p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Upsert(ctx context.Context, p *Prescription) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO prescription (id, appointment_id, medications, instructions)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (appointment_id) DO UPDATE
		SET medications = EXCLUDED.medications,
		    instructions = EXCLUDED.instructions,
		    updated_at = NOW()
		RETURNING `+prescriptionCols,
		p.ID, p.AppointmentID, p.Medications, p.Instructions)
	stored, err := scanPrescription(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return apperr.New(apperr.NotFound, "appointment not found")
		}
		return err
	}
	*p = *stored
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := scanPrescription(r.pool.QueryRow(ctx,
		`SELECT `+prescriptionCols+` FROM prescription WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "prescription not found")
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repoPG) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Prescription, error) {
	p, err := scanPrescription(r.pool.QueryRow(ctx,
		`SELECT `+prescriptionCols+` FROM prescription WHERE appointment_id = $1`, appointmentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "prescription not found")
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM prescription p
		JOIN appointment a ON a.id = p.appointment_id
		WHERE a.patient_id = $1`, patientID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.appointment_id, p.medications, p.instructions, p.created_at, p.updated_at
		FROM prescription p
		JOIN appointment a ON a.id = p.appointment_id
		WHERE a.patient_id = $1
		ORDER BY p.created_at DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM prescription WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.NotFound, "prescription not found")
	}
	return nil
}
