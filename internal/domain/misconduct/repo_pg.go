package misconduct

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) Append(ctx context.Context, rec *CancellationRecord) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO cancellation_log (patient_id, doctor_id, start_time, cancelled_at)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at`,
		rec.PatientID, rec.DoctorID, rec.StartTime, rec.CancelledAt).
		Scan(&rec.ID, &rec.CreatedAt)
}

func (r *repoPG) ListByPatientSince(ctx context.Context, patientID int64, since time.Time) ([]*CancellationRecord, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, doctor_id, start_time, cancelled_at, created_at
		FROM cancellation_log
		WHERE patient_id = $1 AND cancelled_at >= $2
		ORDER BY cancelled_at`, patientID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*CancellationRecord
	for rows.Next() {
		var rec CancellationRecord
		if err := rows.Scan(&rec.ID, &rec.PatientID, &rec.DoctorID,
			&rec.StartTime, &rec.CancelledAt, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}
