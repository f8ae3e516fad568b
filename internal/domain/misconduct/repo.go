package misconduct

import (
	"context"
	"time"
)

type Repository interface {
	Append(ctx context.Context, rec *CancellationRecord) error
	// ListByPatientSince returns the patient's cancellations with
	// cancelled_at >= since, oldest first.
	ListByPatientSince(ctx context.Context, patientID int64, since time.Time) ([]*CancellationRecord, error)
}
