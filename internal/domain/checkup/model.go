package checkup

import (
	"time"

	"github.com/clinic/clinic/internal/domain/identity"
)

// Checkup states. Available and Booked are live; Completed and
// Cancelled are terminal.
const (
	StateAvailable = "available"
	StateBooked    = "booked"
	StateCompleted = "completed"
	StateCancelled = "cancelled"
)

// Availability ordering policies.
const (
	PriorityDoctor = "doctor"
	PriorityTime   = "time"
)

// Checkup maps to the checkup table. An unbooked slot has no patient
// and must be in state Available. Version backs the optimistic
// concurrency check on every state transition.
type Checkup struct {
	ID                 int64      `db:"id" json:"id"`
	DoctorID           int64      `db:"doctor_id" json:"doctor_id"`
	PatientID          *int64     `db:"patient_id" json:"patient_id,omitempty"`
	StartTime          time.Time  `db:"start_time" json:"start_time"`
	EndTime            time.Time  `db:"end_time" json:"end_time"`
	State              string     `db:"state" json:"state"`
	CancellationTime   *time.Time `db:"cancellation_time" json:"cancellation_time,omitempty"`
	CancellationReason *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	Version            int        `db:"version" json:"version"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// Overlaps reports whether the checkup's window intersects [start, end).
func (c *Checkup) Overlaps(start, end time.Time) bool {
	return c.StartTime.Before(end) && start.Before(c.EndTime)
}

// IsTerminal reports whether no further transition is possible.
func (c *Checkup) IsTerminal() bool {
	return c.State == StateCompleted || c.State == StateCancelled
}

// MayCancel reports whether the caller may cancel this checkup: the
// booking patient, the slot's doctor, or an admin.
func (c *Checkup) MayCancel(callerID int64, callerRole string) bool {
	if callerRole == identity.RoleAdmin {
		return true
	}
	if c.DoctorID == callerID && callerRole == identity.RoleDoctor {
		return true
	}
	return c.PatientID != nil && *c.PatientID == callerID && callerRole == identity.RolePatient
}
