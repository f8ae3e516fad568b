package feedback

import (
	"time"
)

// Grade is the ordered rating scale, higher is better.
type Grade int

const (
	GradeVeryBad Grade = iota
	GradeBad
	GradeNeutral
	GradeGood
	GradeVeryGood
	GradeExcellent
)

// Valid reports whether the grade is on the scale.
func (g Grade) Valid() bool {
	return g >= GradeVeryBad && g <= GradeExcellent
}

func (g Grade) String() string {
	switch g {
	case GradeVeryBad:
		return "very_bad"
	case GradeBad:
		return "bad"
	case GradeNeutral:
		return "neutral"
	case GradeGood:
		return "good"
	case GradeVeryGood:
		return "very_good"
	case GradeExcellent:
		return "excellent"
	default:
		return "unknown"
	}
}

// Feedback maps to the feedback table. DoctorID is copied from the
// checkup at insert so the doctor grade aggregate stays a single-table
// query.
type Feedback struct {
	ID           int64     `db:"id" json:"id"`
	CheckupID    int64     `db:"checkup_id" json:"checkup_id"`
	PatientID    int64     `db:"patient_id" json:"patient_id,omitempty"`
	DoctorID     int64     `db:"doctor_id" json:"doctor_id"`
	Grade        Grade     `db:"grade" json:"grade"`
	Comment      string    `db:"comment" json:"comment"`
	Incognito    bool      `db:"incognito" json:"incognito"`
	IsForDisplay bool      `db:"is_for_display" json:"is_for_display"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Masked returns a copy with the patient identity withheld.
func (f *Feedback) Masked() *Feedback {
	cp := *f
	cp.PatientID = 0
	return &cp
}
