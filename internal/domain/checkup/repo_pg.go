package checkup

import (
	"context"
	"errors"
	"fmt"
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

const checkupCols = `id, doctor_id, patient_id, start_time, end_time, state,
	cancellation_time, cancellation_reason, version, created_at, updated_at`

func (r *repoPG) scanCheckup(row pgx.Row) (*Checkup, error) {
	var c Checkup
	err := row.Scan(&c.ID, &c.DoctorID, &c.PatientID, &c.StartTime, &c.EndTime, &c.State,
		&c.CancellationTime, &c.CancellationReason, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repoPG) Create(ctx context.Context, c *Checkup) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO checkup (doctor_id, patient_id, start_time, end_time, state, version)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at, updated_at`,
		c.DoctorID, c.PatientID, c.StartTime, c.EndTime, c.State, c.Version).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Checkup, error) {
	return r.scanCheckup(r.conn(ctx).QueryRow(ctx, `SELECT `+checkupCols+` FROM checkup WHERE id = $1`, id))
}

// Save bumps the version atomically; zero rows affected means another
// writer got there first.
func (r *repoPG) Save(ctx context.Context, c *Checkup) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE checkup
		SET patient_id = $3, state = $4, cancellation_time = $5, cancellation_reason = $6,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2`,
		c.ID, c.Version, c.PatientID, c.State, c.CancellationTime, c.CancellationReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	c.Version++
	return nil
}

func (r *repoPG) FindAvailable(ctx context.Context, doctorID *int64, from, to time.Time) ([]*Checkup, error) {
	query := `SELECT ` + checkupCols + ` FROM checkup
		WHERE state = $1 AND start_time >= $2 AND end_time <= $3`
	args := []interface{}{StateAvailable, from, to}
	if doctorID != nil {
		args = append(args, *doctorID)
		query += fmt.Sprintf(` AND doctor_id = $%d`, len(args))
	}
	query += ` ORDER BY start_time`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Checkup
	for rows.Next() {
		c, err := r.scanCheckup(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (r *repoPG) HasDoctorOverlap(ctx context.Context, doctorID int64, start, end time.Time) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM checkup
			WHERE doctor_id = $1 AND state != $2
				AND start_time < $4 AND $3 < end_time
		)`, doctorID, StateCancelled, start, end).Scan(&exists)
	return exists, err
}

func (r *repoPG) HasPatientOverlap(ctx context.Context, patientID int64, start, end time.Time) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM checkup
			WHERE patient_id = $1 AND state IN ($2, $3)
				AND start_time < $5 AND $4 < end_time
		)`, patientID, StateBooked, StateCompleted, start, end).Scan(&exists)
	return exists, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID int64, upcoming bool, now time.Time, limit, offset int) ([]*Checkup, int, error) {
	where := `patient_id = $1 AND state = $2 AND start_time >= $3`
	order := `start_time`
	args := []interface{}{patientID, StateBooked, now}
	if !upcoming {
		where = `patient_id = $1 AND (state IN ($2, $3) OR (state = $4 AND start_time < $5))`
		order = `start_time DESC`
		args = []interface{}{patientID, StateCompleted, StateCancelled, StateBooked, now}
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM checkup WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT `+checkupCols+` FROM checkup WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		where, order, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Checkup
	for rows.Next() {
		c, err := r.scanCheckup(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListElapsedBooked(ctx context.Context, now time.Time) ([]*Checkup, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+checkupCols+` FROM checkup
		WHERE state = $1 AND end_time <= $2
		ORDER BY end_time`, StateBooked, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Checkup
	for rows.Next() {
		c, err := r.scanCheckup(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}
