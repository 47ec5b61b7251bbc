// Package identity owns patients, doctors and specializations, including
// registration and credential checks.
package identity

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table.
type Patient struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	Number       string    `db:"number" json:"number"`
	Age          int       `db:"age" json:"age"`
	Location     string    `db:"location" json:"location"`
	Description  *string   `db:"description" json:"description,omitempty"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Doctor maps to the doctor table. The availability document on the same row
// is owned by the scheduling domain and is not exposed here.
type Doctor struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	Name             string     `db:"name" json:"name"`
	Email            string     `db:"email" json:"email"`
	Number           string     `db:"number" json:"number"`
	SpecializationID *uuid.UUID `db:"specialization_id" json:"specialization_id,omitempty"`
	Specialization   *string    `db:"-" json:"specialization,omitempty"`
	Description      *string    `db:"description" json:"description,omitempty"`
	PasswordHash     string     `db:"password_hash" json:"-"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// Specialization maps to the specialization table.
type Specialization struct {
	ID   uuid.UUID `db:"id" json:"id"`
	Name string    `db:"name" json:"name"`
}
