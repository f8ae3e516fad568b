package feedback

import (
	"context"
	"fmt"

	"github.com/clinic/clinic/internal/domain/checkup"
)

// CheckupSource resolves checkups for eligibility checks. Satisfied by
// checkup.Service.
type CheckupSource interface {
	GetCheckup(ctx context.Context, id int64) (*checkup.Checkup, error)
}

// AddInput carries the fields accepted when leaving feedback.
type AddInput struct {
	CheckupID    int64  `json:"checkup_id"`
	Grade        Grade  `json:"grade"`
	Comment      string `json:"comment"`
	Incognito    bool   `json:"incognito"`
	IsForDisplay bool   `json:"is_for_display"`
}

type Service struct {
	repo     Repository
	checkups CheckupSource
}

func NewService(repo Repository, checkups CheckupSource) *Service {
	return &Service{repo: repo, checkups: checkups}
}

// AddFeedback records feedback for a completed checkup. Only the
// patient who was booked on the checkup may leave it, and only once.
func (s *Service) AddFeedback(ctx context.Context, patientID int64, in AddInput) (*Feedback, error) {
	if !in.Grade.Valid() {
		return nil, fmt.Errorf("%w: grade out of range", ErrValidation)
	}

	c, err := s.checkups.GetCheckup(ctx, in.CheckupID)
	if err != nil {
		return nil, fmt.Errorf("%w: checkup %d", ErrNotFound, in.CheckupID)
	}
	if c.State != checkup.StateCompleted {
		return nil, fmt.Errorf("%w: checkup %d is not completed", ErrNotFound, in.CheckupID)
	}
	if c.PatientID == nil || *c.PatientID != patientID {
		return nil, fmt.Errorf("%w: checkup %d was not booked by this patient", ErrNotFound, in.CheckupID)
	}

	exists, err := s.repo.ExistsForCheckup(ctx, in.CheckupID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: checkup %d", ErrConflict, in.CheckupID)
	}

	f := &Feedback{
		CheckupID:    in.CheckupID,
		PatientID:    patientID,
		DoctorID:     c.DoctorID,
		Grade:        in.Grade,
		Comment:      in.Comment,
		Incognito:    in.Incognito,
		IsForDisplay: in.IsForDisplay,
	}
	if err := s.repo.Create(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// GetAllFeedbacks returns all feedback in creation order.
func (s *Service) GetAllFeedbacks(ctx context.Context, limit, offset int) ([]*Feedback, int, error) {
	return s.repo.ListAll(ctx, limit, offset)
}

// ShowFeedback returns one feedback record. When the record is
// incognito the patient identity is withheld unless reveal is set
// (administrative override).
func (s *Service) ShowFeedback(ctx context.Context, id int64, reveal bool) (*Feedback, error) {
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Incognito && !reveal {
		return f.Masked(), nil
	}
	return f, nil
}

// DoctorGrade computes the mean displayable grade for a doctor. A
// doctor without displayable feedback yields ErrNotFound.
func (s *Service) DoctorGrade(ctx context.Context, doctorID int64) (float64, int, error) {
	mean, count, err := s.repo.DoctorGrade(ctx, doctorID)
	if err != nil {
		return 0, 0, err
	}
	if count == 0 {
		return 0, 0, fmt.Errorf("%w: no feedback for doctor %d", ErrNotFound, doctorID)
	}
	return mean, count, nil
}
