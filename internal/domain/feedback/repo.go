package feedback

import (
	"context"
	"errors"
)

var (
	ErrNotFound   = errors.New("feedback not found")
	ErrConflict   = errors.New("feedback already recorded")
	ErrValidation = errors.New("validation failed")
)

type Repository interface {
	Create(ctx context.Context, f *Feedback) error
	GetByID(ctx context.Context, id int64) (*Feedback, error)
	ExistsForCheckup(ctx context.Context, checkupID int64) (bool, error)
	// ListAll returns feedback in creation order.
	ListAll(ctx context.Context, limit, offset int) ([]*Feedback, int, error)
	// DoctorGrade returns the mean grade and sample size over the
	// doctor's displayable feedback.
	DoctorGrade(ctx context.Context, doctorID int64) (float64, int, error)
}
