package feedback

import (
	"context"
	"errors"

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

const feedbackCols = `id, checkup_id, patient_id, doctor_id, grade, comment,
	incognito, is_for_display, created_at`

func (r *repoPG) scanFeedback(row pgx.Row) (*Feedback, error) {
	var f Feedback
	err := row.Scan(&f.ID, &f.CheckupID, &f.PatientID, &f.DoctorID, &f.Grade, &f.Comment,
		&f.Incognito, &f.IsForDisplay, &f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *repoPG) Create(ctx context.Context, f *Feedback) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO feedback (checkup_id, patient_id, doctor_id, grade, comment, incognito, is_for_display)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at`,
		f.CheckupID, f.PatientID, f.DoctorID, f.Grade, f.Comment, f.Incognito, f.IsForDisplay).
		Scan(&f.ID, &f.CreatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Feedback, error) {
	return r.scanFeedback(r.conn(ctx).QueryRow(ctx, `SELECT `+feedbackCols+` FROM feedback WHERE id = $1`, id))
}

func (r *repoPG) ExistsForCheckup(ctx context.Context, checkupID int64) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM feedback WHERE checkup_id = $1)`, checkupID).Scan(&exists)
	return exists, err
}

func (r *repoPG) ListAll(ctx context.Context, limit, offset int) ([]*Feedback, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM feedback`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+feedbackCols+` FROM feedback ORDER BY created_at, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Feedback
	for rows.Next() {
		f, err := r.scanFeedback(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, f)
	}
	return items, total, rows.Err()
}

func (r *repoPG) DoctorGrade(ctx context.Context, doctorID int64) (float64, int, error) {
	var mean *float64
	var count int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT AVG(grade), COUNT(*) FROM feedback
		WHERE doctor_id = $1 AND is_for_display`, doctorID).Scan(&mean, &count)
	if err != nil {
		return 0, 0, err
	}
	if mean == nil {
		return 0, 0, nil
	}
	return *mean, count, nil
}
