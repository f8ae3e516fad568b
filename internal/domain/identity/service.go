package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/clinic/clinic/internal/platform/auth"
)

var validRoles = map[string]bool{
	RolePatient: true, RoleDoctor: true, RoleAdmin: true,
}

var validStatuses = map[int]bool{
	StatusBlocked: true, StatusPending: true, StatusActive: true, StatusMalicious: true,
}

// RegisterInput carries the fields accepted at registration.
type RegisterInput struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Role      string  `json:"role"`
	Expertise *string `json:"expertise,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	City      *string `json:"city,omitempty"`
	Country   *string `json:"country,omitempty"`
}

type Service struct {
	users  UserRepository
	issuer *auth.TokenIssuer
}

func NewService(users UserRepository, issuer *auth.TokenIssuer) *Service {
	return &Service{users: users, issuer: issuer}
}

// Register creates a new account. Email must be well formed and unused,
// and the password non-trivial. Patients start Active, staff Pending.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	if len(in.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}
	if in.FirstName == "" || in.LastName == "" {
		return nil, fmt.Errorf("%w: first_name and last_name are required", ErrValidation)
	}
	if in.Role == "" {
		in.Role = RolePatient
	}
	if !validRoles[in.Role] {
		return nil, fmt.Errorf("%w: invalid role %q", ErrValidation, in.Role)
	}
	if in.Role == RoleDoctor && (in.Expertise == nil || *in.Expertise == "") {
		return nil, fmt.Errorf("%w: expertise is required for doctors", ErrValidation)
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, fmt.Errorf("%w: email already registered", ErrValidation)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	// Patients can book right away; staff accounts wait for an admin.
	status := StatusPending
	if in.Role == RolePatient {
		status = StatusActive
	}

	u := &User{
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         in.Role,
		Status:       status,
		Expertise:    in.Expertise,
		Phone:        in.Phone,
		City:         in.City,
		Country:      in.Country,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login verifies credentials and returns a signed access token. Blocked
// accounts cannot log in.
func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil, fmt.Errorf("invalid credentials")
		}
		return "", nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return "", nil, fmt.Errorf("invalid credentials")
	}
	if u.IsBlocked() {
		return "", nil, fmt.Errorf("account is blocked")
	}

	token, err := s.issuer.Issue(u.ID, u.Role)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.ListByRole(ctx, RolePatient, limit, offset)
}

// ListDoctors lists doctors, optionally narrowed to one expertise.
func (s *Service) ListDoctors(ctx context.Context, expertise string, limit, offset int) ([]*User, int, error) {
	if expertise != "" {
		return s.users.ListDoctorsByExpertise(ctx, expertise, limit, offset)
	}
	return s.users.ListByRole(ctx, RoleDoctor, limit, offset)
}

func (s *Service) ListByStatus(ctx context.Context, status int, limit, offset int) ([]*User, int, error) {
	return s.users.ListByStatus(ctx, status, limit, offset)
}

// UpdateStatus sets an account status. Used both by admins and by the
// misconduct tracker when a patient crosses a cancellation threshold.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status int) error {
	if !validStatuses[status] {
		return fmt.Errorf("%w: invalid status %d", ErrValidation, status)
	}
	return s.users.UpdateStatus(ctx, id, status)
}
