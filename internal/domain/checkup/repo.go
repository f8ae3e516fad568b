package checkup

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("checkup not found")
	ErrConflict   = errors.New("checkup was modified concurrently")
	ErrValidation = errors.New("validation failed")
)

type Repository interface {
	Create(ctx context.Context, c *Checkup) error
	GetByID(ctx context.Context, id int64) (*Checkup, error)
	// Save persists a state transition with a compare-and-set on
	// (id, version). A lost race returns ErrConflict.
	Save(ctx context.Context, c *Checkup) error
	FindAvailable(ctx context.Context, doctorID *int64, from, to time.Time) ([]*Checkup, error)
	HasDoctorOverlap(ctx context.Context, doctorID int64, start, end time.Time) (bool, error)
	HasPatientOverlap(ctx context.Context, patientID int64, start, end time.Time) (bool, error)
	ListByPatient(ctx context.Context, patientID int64, upcoming bool, now time.Time, limit, offset int) ([]*Checkup, int, error)
	ListElapsedBooked(ctx context.Context, now time.Time) ([]*Checkup, error)
}
