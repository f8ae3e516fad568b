package misconduct

import (
	"time"
)

// CancellationRecord is one entry in the append-only cancellation log.
// Classification is always recomputed from these records, never from a
// running counter.
type CancellationRecord struct {
	ID          int64     `db:"id" json:"id"`
	PatientID   int64     `db:"patient_id" json:"patient_id"`
	DoctorID    int64     `db:"doctor_id" json:"doctor_id"`
	StartTime   time.Time `db:"start_time" json:"start_time"`
	CancelledAt time.Time `db:"cancelled_at" json:"cancelled_at"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Policy holds the tunable misconduct thresholds.
type Policy struct {
	// LateCancelWindow is the minimum lead time; cancelling closer to
	// the start than this counts as late.
	LateCancelWindow time.Duration
	// TrailingWindow bounds how far back late cancellations count.
	TrailingWindow     time.Duration
	MaliciousThreshold int
	BlockThreshold     int
}

// IsLate reports whether the record's lead time falls under the policy
// threshold.
func (p Policy) IsLate(rec *CancellationRecord) bool {
	return rec.StartTime.Sub(rec.CancelledAt) < p.LateCancelWindow
}
