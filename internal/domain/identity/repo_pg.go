package identity

import (
	"context"
	"errors"
	"fmt"

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

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const userCols = `id, email, password_hash, first_name, last_name, role, status,
	expertise, birth_date, phone, city, country, created_at, updated_at`

func (r *userRepoPG) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role, &u.Status,
		&u.Expertise, &u.BirthDate, &u.Phone, &u.City, &u.Country, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO app_user (email, password_hash, first_name, last_name, role, status,
			expertise, birth_date, phone, city, country)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id, created_at, updated_at`,
		u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role, u.Status,
		u.Expertise, u.BirthDate, u.Phone, u.City, u.Country).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
}

func (r *userRepoPG) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM app_user WHERE id = $1`, id))
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM app_user WHERE email = $1`, email))
}

func (r *userRepoPG) UpdateStatus(ctx context.Context, id int64, status int) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE app_user SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepoPG) ListByRole(ctx context.Context, role string, limit, offset int) ([]*User, int, error) {
	return r.list(ctx, `role = $1`, []interface{}{role}, limit, offset)
}

func (r *userRepoPG) ListDoctorsByExpertise(ctx context.Context, expertise string, limit, offset int) ([]*User, int, error) {
	return r.list(ctx, `role = $1 AND expertise = $2`, []interface{}{RoleDoctor, expertise}, limit, offset)
}

func (r *userRepoPG) ListByStatus(ctx context.Context, status int, limit, offset int) ([]*User, int, error) {
	return r.list(ctx, `status = $1`, []interface{}{status}, limit, offset)
}

func (r *userRepoPG) list(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*User, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM app_user WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataArgs := append(args, limit, offset)
	query := fmt.Sprintf(`SELECT `+userCols+` FROM app_user WHERE %s ORDER BY last_name, first_name LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}
