package checkup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/platform/db"
)

// UserDirectory resolves user accounts for eligibility checks.
// Satisfied by identity.Service.
type UserDirectory interface {
	GetUser(ctx context.Context, id int64) (*identity.User, error)
}

// CancellationRecorder receives every booked-checkup cancellation so
// late cancellations can be evaluated. Satisfied by misconduct.Service.
type CancellationRecorder interface {
	RecordCancellation(ctx context.Context, patientID, doctorID int64, startTime, cancelledAt time.Time) error
}

// AvailabilityQuery narrows the available-slot search.
type AvailabilityQuery struct {
	DoctorID *int64
	From     time.Time
	To       time.Time
	Priority string
}

type Service struct {
	repo     Repository
	users    UserDirectory
	recorder CancellationRecorder
	pool     *pgxpool.Pool
	duration time.Duration
}

func NewService(repo Repository, users UserDirectory, recorder CancellationRecorder, pool *pgxpool.Pool, duration time.Duration) *Service {
	return &Service{repo: repo, users: users, recorder: recorder, pool: pool, duration: duration}
}

// inTx runs fn inside a transaction when a pool is attached. The
// in-memory repositories used in tests carry their own locking.
func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.pool == nil {
		return fn(ctx)
	}
	return db.WithTx(ctx, s.pool, fn)
}

// CreateSlot publishes an Available slot on a doctor's calendar. The
// window is fixed-duration and may not overlap any non-cancelled slot
// of the same doctor.
func (s *Service) CreateSlot(ctx context.Context, doctorID int64, start time.Time) (*Checkup, error) {
	doctor, err := s.users.GetUser(ctx, doctorID)
	if err != nil || doctor.Role != identity.RoleDoctor {
		return nil, fmt.Errorf("%w: doctor %d", ErrNotFound, doctorID)
	}
	if start.Before(time.Now()) {
		return nil, fmt.Errorf("%w: slot start must be in the future", ErrValidation)
	}

	end := start.Add(s.duration)
	overlap, err := s.repo.HasDoctorOverlap(ctx, doctorID, start, end)
	if err != nil {
		return nil, err
	}
	if overlap {
		return nil, fmt.Errorf("%w: doctor already has a slot in that window", ErrConflict)
	}

	c := &Checkup{
		DoctorID:  doctorID,
		StartTime: start,
		EndTime:   end,
		State:     StateAvailable,
		Version:   1,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// FindAvailable returns Available slots in the range, ordered by the
// requested priority. An empty result is not an error.
func (s *Service) FindAvailable(ctx context.Context, q AvailabilityQuery) ([]*Checkup, error) {
	if q.From.After(q.To) {
		return nil, fmt.Errorf("%w: range start is after range end", ErrValidation)
	}
	if q.Priority == "" {
		q.Priority = PriorityTime
	}
	if q.Priority != PriorityTime && q.Priority != PriorityDoctor {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrValidation, q.Priority)
	}

	slots, err := s.repo.FindAvailable(ctx, q.DoctorID, q.From, q.To)
	if err != nil {
		return nil, err
	}

	switch q.Priority {
	case PriorityDoctor:
		sort.SliceStable(slots, func(i, j int) bool {
			if slots[i].DoctorID != slots[j].DoctorID {
				return slots[i].DoctorID < slots[j].DoctorID
			}
			return slots[i].StartTime.Before(slots[j].StartTime)
		})
	default:
		sort.SliceStable(slots, func(i, j int) bool {
			return slots[i].StartTime.Before(slots[j].StartTime)
		})
	}
	return slots, nil
}

// Book transitions an Available checkup to Booked for the given
// patient. Two concurrent bookings of the same slot cannot both
// succeed; the loser sees ErrConflict.
func (s *Service) Book(ctx context.Context, checkupID, patientID int64) (*Checkup, error) {
	c, err := s.repo.GetByID(ctx, checkupID)
	if err != nil {
		return nil, err
	}
	if c.State != StateAvailable {
		return nil, fmt.Errorf("%w: checkup %d is not available", ErrNotFound, checkupID)
	}

	patient, err := s.users.GetUser(ctx, patientID)
	if err != nil || patient.Role != identity.RolePatient {
		return nil, fmt.Errorf("%w: patient %d", ErrNotFound, patientID)
	}
	if patient.Status != identity.StatusActive {
		return nil, fmt.Errorf("%w: patient account is not active", ErrValidation)
	}

	overlap, err := s.repo.HasPatientOverlap(ctx, patientID, c.StartTime, c.EndTime)
	if err != nil {
		return nil, err
	}
	if overlap {
		return nil, fmt.Errorf("%w: patient already has a checkup in that window", ErrConflict)
	}

	c.PatientID = &patientID
	c.State = StateBooked
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Cancel transitions a Booked or Available checkup to Cancelled. Only
// the booking patient, the slot's doctor, or an admin may cancel. A
// booked cancellation is recorded for misconduct evaluation in the same
// transaction as the state change.
func (s *Service) Cancel(ctx context.Context, checkupID, callerID int64, callerRole, reason string) (*Checkup, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: cancellation reason is required", ErrValidation)
	}

	c, err := s.repo.GetByID(ctx, checkupID)
	if err != nil {
		return nil, err
	}
	if c.State != StateBooked && c.State != StateAvailable {
		return nil, fmt.Errorf("%w: checkup %d cannot be cancelled", ErrNotFound, checkupID)
	}
	if !c.MayCancel(callerID, callerRole) {
		return nil, fmt.Errorf("%w: checkup %d", ErrNotFound, checkupID)
	}

	now := time.Now()
	if now.After(c.StartTime) {
		return nil, fmt.Errorf("%w: checkup has already started", ErrValidation)
	}

	wasBooked := c.State == StateBooked
	patientID := c.PatientID

	err = s.inTx(ctx, func(ctx context.Context) error {
		c.State = StateCancelled
		c.CancellationTime = &now
		c.CancellationReason = &reason
		if err := s.repo.Save(ctx, c); err != nil {
			return err
		}
		if wasBooked && s.recorder != nil && patientID != nil {
			return s.recorder.RecordCancellation(ctx, *patientID, c.DoctorID, c.StartTime, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetPatientCheckUps lists a patient's checkups. Filter "upcoming"
// returns booked future checkups, "history" everything already decided.
func (s *Service) GetPatientCheckUps(ctx context.Context, patientID int64, filter string, limit, offset int) ([]*Checkup, int, error) {
	switch filter {
	case "upcoming", "history":
	default:
		return nil, 0, fmt.Errorf("%w: unknown filter %q", ErrValidation, filter)
	}
	return s.repo.ListByPatient(ctx, patientID, filter == "upcoming", time.Now(), limit, offset)
}

func (s *Service) GetCheckup(ctx context.Context, id int64) (*Checkup, error) {
	return s.repo.GetByID(ctx, id)
}

// CompleteElapsed transitions booked checkups whose window has passed
// to Completed. Lost CAS races are skipped; the next sweep retries.
func (s *Service) CompleteElapsed(ctx context.Context, now time.Time) (int, error) {
	elapsed, err := s.repo.ListElapsedBooked(ctx, now)
	if err != nil {
		return 0, err
	}

	completed := 0
	for _, c := range elapsed {
		c.State = StateCompleted
		if err := s.repo.Save(ctx, c); err != nil {
			if errors.Is(err, ErrConflict) {
				continue
			}
			return completed, err
		}
		completed++
	}
	return completed, nil
}
