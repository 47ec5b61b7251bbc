package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medline/medline/internal/platform/apperr"
)

type billRepoPG struct{ pool *pgxpool.Pool }

func NewBillRepoPG(pool *pgxpool.Pool) BillRepository { return &billRepoPG{pool: pool} }

const billCols = `id, appointment_id, consultation_fee, total_amount, payment_status, notes, created_at, updated_at`

func scanBill(row pgx.Row) (*Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.AppointmentID, &b.ConsultationFee, &b.TotalAmount,
		&b.PaymentStatus, &b.Notes, &b.CreatedAt, &b.UpdatedAt)
	return &b, err
}

func (r *billRepoPG) Upsert(ctx context.Context, b *Bill) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	// UNIQUE(appointment_id) makes this a create-or-update per appointment.
	row := r.pool.QueryRow(ctx, `
		INSERT INTO bill (id, appointment_id, consultation_fee, total_amount, payment_status, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (appointment_id) DO UPDATE
		SET consultation_fee = EXCLUDED.consultation_fee,
		    total_amount = EXCLUDED.total_amount,
		    payment_status = EXCLUDED.payment_status,
		    notes = EXCLUDED.notes,
		    updated_at = NOW()
		RETURNING `+billCols,
		b.ID, b.AppointmentID, b.ConsultationFee, b.TotalAmount, b.PaymentStatus, b.Notes)
	stored, err := scanBill(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return apperr.New(apperr.NotFound, "appointment not found")
		}
		return err
	}
	*b = *stored
	return nil
}

func (r *billRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Bill, error) {
	b, err := scanBill(r.pool.QueryRow(ctx, `SELECT `+billCols+` FROM bill WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "bill not found")
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *billRepoPG) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Bill, error) {
	b, err := scanBill(r.pool.QueryRow(ctx,
		`SELECT `+billCols+` FROM bill WHERE appointment_id = $1`, appointmentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "bill not found")
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *billRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE bill SET payment_status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.NotFound, "bill not found")
	}
	return nil
}

func (r *billRepoPG) List(ctx context.Context, status string, limit, offset int) ([]*Bill, int, error) {
	where := ``
	args := []interface{}{}
	if status != "" {
		where = ` WHERE payment_status = $1`
		args = append(args, status)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bill`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + billCols + ` FROM bill` + where
	if status != "" {
		query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	}
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

func (r *billRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Bill, int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM bill b
		JOIN appointment a ON a.id = b.appointment_id
		WHERE a.patient_id = $1`, patientID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT b.id, b.appointment_id, b.consultation_fee, b.total_amount, b.payment_status, b.notes, b.created_at, b.updated_at
		FROM bill b
		JOIN appointment a ON a.id = b.appointment_id
		WHERE a.patient_id = $1
		ORDER BY b.created_at DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}
