package identity

import (
	"context"
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

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository { return &patientRepoPG{pool: pool} }

const patientCols = `id, name, email, number, age, location, description, password_hash, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Number, &p.Age, &p.Location,
		&p.Description, &p.PasswordHash, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO patient (id, name, email, number, age, location, description, password_hash)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.Name, p.Email, p.Number, p.Age, p.Location, p.Description, p.PasswordHash)
	if isUniqueViolation(err) {
		return apperr.New(apperr.Conflict, "email already registered")
	}
	return err
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.pool.QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "patient not found")
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *patientRepoPG) GetByEmail(ctx context.Context, email string) (*Patient, error) {
	p, err := scanPatient(r.pool.QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "patient not found")
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE patient SET name=$2, number=$3, age=$4, location=$5, description=$6, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.Number, p.Age, p.Location, p.Description)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.NotFound, "patient not found")
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM patient`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+patientCols+` FROM patient ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

// =========== Doctor Repository ===========

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository { return &doctorRepoPG{pool: pool} }

const doctorCols = `d.id, d.name, d.email, d.number, d.specialization_id, s.name, d.description,
	COALESCE(d.password_hash, ''), d.created_at, d.updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.Name, &d.Email, &d.Number, &d.SpecializationID, &d.Specialization,
		&d.Description, &d.PasswordHash, &d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO doctor (id, name, email, number, specialization_id, description, password_hash)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		d.ID, d.Name, d.Email, d.Number, d.SpecializationID, d.Description, d.PasswordHash)
	if isUniqueViolation(err) {
		return apperr.New(apperr.Conflict, "email already registered")
	}
	return err
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := scanDoctor(r.pool.QueryRow(ctx, `
		SELECT `+doctorCols+` FROM doctor d
		LEFT JOIN specialization s ON s.id = d.specialization_id
		WHERE d.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "doctor not found")
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *doctorRepoPG) GetByEmail(ctx context.Context, email string) (*Doctor, error) {
	d, err := scanDoctor(r.pool.QueryRow(ctx, `
		SELECT `+doctorCols+` FROM doctor d
		LEFT JOIN specialization s ON s.id = d.specialization_id
		WHERE d.email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "doctor not found")
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE doctor SET name=$2, number=$3, specialization_id=$4, description=$5, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.Name, d.Number, d.SpecializationID, d.Description)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.NotFound, "doctor not found")
	}
	return nil
}

func (r *doctorRepoPG) List(ctx context.Context, specializationID *uuid.UUID, limit, offset int) ([]*Doctor, int, error) {
	where := ``
	countArgs := []interface{}{}
	args := []interface{}{}
	if specializationID != nil {
		where = ` WHERE d.specialization_id = $1`
		countArgs = append(countArgs, *specializationID)
		args = append(args, *specializationID)
	}

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM doctor d`+where, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + doctorCols + ` FROM doctor d
		LEFT JOIN specialization s ON s.id = d.specialization_id` + where
	if specializationID != nil {
		query += ` ORDER BY d.name LIMIT $2 OFFSET $3`
	} else {
		query += ` ORDER BY d.name LIMIT $1 OFFSET $2`
	}
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

// =========== Specialization Repository ===========

type specializationRepoPG struct{ pool *pgxpool.Pool }

func NewSpecializationRepoPG(pool *pgxpool.Pool) SpecializationRepository {
	return &specializationRepoPG{pool: pool}
}

func (r *specializationRepoPG) Create(ctx context.Context, s *Specialization) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO specialization (id, name) VALUES ($1, $2)`, s.ID, s.Name)
	if isUniqueViolation(err) {
		return apperr.New(apperr.Conflict, "specialization already exists")
	}
	return err
}

func (r *specializationRepoPG) List(ctx context.Context) ([]*Specialization, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM specialization ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Specialization
	for rows.Next() {
		var s Specialization
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, err
		}
		items = append(items, &s)
	}
	return items, rows.Err()
}
