package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/medline/medline/internal/platform/apperr"
	"github.com/medline/medline/internal/platform/auth"
)

type Service struct {
	patients        PatientRepository
	doctors         DoctorRepository
	specializations SpecializationRepository
	issuer          *auth.Issuer
}

func NewService(patients PatientRepository, doctors DoctorRepository, specializations SpecializationRepository, issuer *auth.Issuer) *Service {
	return &Service{
		patients:        patients,
		doctors:         doctors,
		specializations: specializations,
		issuer:          issuer,
	}
}

// RegisterPatientInput carries a registration request. The password is
// hashed before anything is stored.
type RegisterPatientInput struct {
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	Number      string  `json:"number"`
	Age         int     `json:"age"`
	Location    string  `json:"location"`
	Description *string `json:"description"`
	Password    string  `json:"password"`
}

func (s *Service) RegisterPatient(ctx context.Context, in RegisterPatientInput) (*Patient, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" || in.Email == "" {
		return nil, apperr.New(apperr.Validation, "name and email are required")
	}
	if len(in.Password) < 8 {
		return nil, apperr.New(apperr.Validation, "password must be at least 8 characters")
	}
	if in.Age < 0 {
		return nil, apperr.New(apperr.Validation, "age must not be negative")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	p := &Patient{
		Name:         in.Name,
		Email:        in.Email,
		Number:       in.Number,
		Age:          in.Age,
		Location:     in.Location,
		Description:  in.Description,
		PasswordHash: string(hash),
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// LoginResult is returned by both login paths.
type LoginResult struct {
	Token string `json:"token"`
	Role  string `json:"role"`
	ID    uuid.UUID
	Name  string
	Email string
}

// LoginPatient checks credentials and issues a patient token. Unknown email
// and wrong password are indistinguishable to the caller.
func (s *Service) LoginPatient(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperr.New(apperr.Validation, "email and password are required")
	}
	p, err := s.patients.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperr.New(apperr.Unauthorized, "invalid email or password")
	}
	if bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)) != nil {
		return nil, apperr.New(apperr.Unauthorized, "invalid email or password")
	}
	token, err := s.issuer.Issue(p.ID, "patient", p.Name)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, Role: "patient", ID: p.ID, Name: p.Name, Email: p.Email}, nil
}

// LoginDoctor checks credentials and issues a doctor token.
func (s *Service) LoginDoctor(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperr.New(apperr.Validation, "email and password are required")
	}
	d, err := s.doctors.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperr.New(apperr.Unauthorized, "invalid email or password")
	}
	if d.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(d.PasswordHash), []byte(password)) != nil {
		return nil, apperr.New(apperr.Unauthorized, "invalid email or password")
	}
	token, err := s.issuer.Issue(d.ID, "doctor", d.Name)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, Role: "doctor", ID: d.ID, Name: d.Name, Email: d.Email}, nil
}

// AddDoctorInput carries an admin doctor-creation request. Password is
// optional; a doctor without one cannot log in until it is set.
type AddDoctorInput struct {
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	Number           string     `json:"number"`
	SpecializationID *uuid.UUID `json:"specialization_id"`
	Description      *string    `json:"description"`
	Password         string     `json:"password"`
}

func (s *Service) AddDoctor(ctx context.Context, in AddDoctorInput) (*Doctor, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" || in.Email == "" {
		return nil, apperr.New(apperr.Validation, "name and email are required")
	}
	d := &Doctor{
		Name:             in.Name,
		Email:            in.Email,
		Number:           in.Number,
		SpecializationID: in.SpecializationID,
		Description:      in.Description,
	}
	if in.Password != "" {
		if len(in.Password) < 8 {
			return nil, apperr.New(apperr.Validation, "password must be at least 8 characters")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		d.PasswordHash = string(hash)
	}
	if err := s.doctors.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// UpdatePatientInput carries a partial profile update. Nil fields keep the
// stored values; email and password cannot change here.
type UpdatePatientInput struct {
	Name        *string `json:"name"`
	Number      *string `json:"number"`
	Age         *int    `json:"age"`
	Location    *string `json:"location"`
	Description *string `json:"description"`
}

func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, in UpdatePatientInput) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, apperr.New(apperr.Validation, "name must not be blank")
		}
		p.Name = *in.Name
	}
	if in.Number != nil {
		p.Number = *in.Number
	}
	if in.Age != nil {
		if *in.Age < 0 {
			return nil, apperr.New(apperr.Validation, "age must not be negative")
		}
		p.Age = *in.Age
	}
	if in.Location != nil {
		p.Location = *in.Location
	}
	if in.Description != nil {
		p.Description = in.Description
	}
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateDoctorInput mirrors UpdatePatientInput for doctor profiles.
type UpdateDoctorInput struct {
	Name             *string    `json:"name"`
	Number           *string    `json:"number"`
	SpecializationID *uuid.UUID `json:"specialization_id"`
	Description      *string    `json:"description"`
}

func (s *Service) UpdateDoctor(ctx context.Context, id uuid.UUID, in UpdateDoctorInput) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, apperr.New(apperr.Validation, "name must not be blank")
		}
		d.Name = *in.Name
	}
	if in.Number != nil {
		d.Number = *in.Number
	}
	if in.SpecializationID != nil {
		d.SpecializationID = in.SpecializationID
	}
	if in.Description != nil {
		d.Description = in.Description
	}
	if err := s.doctors.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, specializationID *uuid.UUID, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, specializationID, limit, offset)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

func (s *Service) AddSpecialization(ctx context.Context, name string) (*Specialization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.New(apperr.Validation, "name is required")
	}
	sp := &Specialization{Name: name}
	if err := s.specializations.Create(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *Service) ListSpecializations(ctx context.Context) ([]*Specialization, error) {
	return s.specializations.List(ctx)
}
