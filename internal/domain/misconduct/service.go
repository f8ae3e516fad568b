package misconduct

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/identity"
)

// UserAccounts is the slice of the identity service the tracker needs.
// Satisfied by identity.Service.
type UserAccounts interface {
	GetUser(ctx context.Context, id int64) (*identity.User, error)
	UpdateStatus(ctx context.Context, id int64, status int) error
	ListByStatus(ctx context.Context, status int, limit, offset int) ([]*identity.User, int, error)
}

type Service struct {
	log    Repository
	users  UserAccounts
	policy Policy
	logger zerolog.Logger
}

func NewService(log Repository, users UserAccounts, policy Policy, logger zerolog.Logger) *Service {
	return &Service{log: log, users: users, policy: policy, logger: logger}
}

// RecordCancellation appends a cancellation to the log and reclassifies
// the patient. Implements the recorder contract of the checkup service.
func (s *Service) RecordCancellation(ctx context.Context, patientID, doctorID int64, startTime, cancelledAt time.Time) error {
	rec := &CancellationRecord{
		PatientID:   patientID,
		DoctorID:    doctorID,
		StartTime:   startTime,
		CancelledAt: cancelledAt,
	}
	if err := s.log.Append(ctx, rec); err != nil {
		return err
	}
	return s.reclassify(ctx, patientID, cancelledAt)
}

// LateCancellations recomputes the patient's late-cancellation count in
// the trailing window ending at the given instant.
func (s *Service) LateCancellations(ctx context.Context, patientID int64, at time.Time) (int, error) {
	records, err := s.log.ListByPatientSince(ctx, patientID, at.Add(-s.policy.TrailingWindow))
	if err != nil {
		return 0, err
	}
	late := 0
	for _, rec := range records {
		if s.policy.IsLate(rec) {
			late++
		}
	}
	return late, nil
}

// reclassify escalates the patient's status when thresholds are
// crossed. Escalation only moves upward; the same history always yields
// the same classification.
func (s *Service) reclassify(ctx context.Context, patientID int64, at time.Time) error {
	late, err := s.LateCancellations(ctx, patientID, at)
	if err != nil {
		return err
	}

	var target int
	switch {
	case late >= s.policy.BlockThreshold:
		target = identity.StatusBlocked
	case late >= s.policy.MaliciousThreshold:
		target = identity.StatusMalicious
	default:
		return nil
	}

	u, err := s.users.GetUser(ctx, patientID)
	if err != nil {
		return err
	}
	if u.Status == target || u.Status == identity.StatusBlocked {
		return nil
	}

	s.logger.Warn().Int64("patient_id", patientID).Int("late_cancellations", late).
		Str("status", identity.StatusName(target)).Msg("patient escalated for late cancellations")
	return s.users.UpdateStatus(ctx, patientID, target)
}

func (s *Service) GetMaliciousUsers(ctx context.Context, limit, offset int) ([]*identity.User, int, error) {
	return s.users.ListByStatus(ctx, identity.StatusMalicious, limit, offset)
}

func (s *Service) GetBlockedUsers(ctx context.Context, limit, offset int) ([]*identity.User, int, error) {
	return s.users.ListByStatus(ctx, identity.StatusBlocked, limit, offset)
}

// ChangeUserStatus is the administrative override.
func (s *Service) ChangeUserStatus(ctx context.Context, userID int64, status int) (*identity.User, error) {
	if err := s.users.UpdateStatus(ctx, userID, status); err != nil {
		return nil, err
	}
	return s.users.GetUser(ctx, userID)
}
