package identity

import (
	"context"
	"errors"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrValidation = errors.New("validation failed")
)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateStatus(ctx context.Context, id int64, status int) error
	ListByRole(ctx context.Context, role string, limit, offset int) ([]*User, int, error)
	ListDoctorsByExpertise(ctx context.Context, expertise string, limit, offset int) ([]*User, int, error)
	ListByStatus(ctx context.Context, status int, limit, offset int) ([]*User, int, error)
}
