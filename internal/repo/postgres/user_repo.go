package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yousefihsm/natours/internal/domain"
)

const queryTimeout = 3 * time.Second

type UsersRepoImpl struct{ pool *pgxpool.Pool }

func NewUsersRepo(pool *pgxpool.Pool) *UsersRepoImpl { return &UsersRepoImpl{pool: pool} }

const userCols = `id, name, email, photo, role, password_hash, password_changed_at,
COALESCE(password_reset_token, ''), password_reset_expires, active, created_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Photo, &u.Role, &u.PasswordHash, &u.PasswordChangedAt,
		&u.PasswordResetToken, &u.PasswordResetExpires, &u.Active, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UsersRepoImpl) Create(ctx context.Context, u *domain.User) error {
	const q = `
INSERT INTO users (id, name, email, photo, role, password_hash, password_changed_at, active, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	_, err := r.pool.Exec(ctx, q, u.ID, u.Name, u.Email, u.Photo, u.Role, u.PasswordHash, u.PasswordChangedAt, u.Active, u.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrDuplicate
	}
	return err
}

func (r *UsersRepoImpl) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE lower(email)=lower($1) AND active`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanUser(r.pool.QueryRow(ctx, q, email))
}

func (r *UsersRepoImpl) FindAnyByEmail(ctx context.Context, email string) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE lower(email)=lower($1)`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanUser(r.pool.QueryRow(ctx, q, email))
}

func (r *UsersRepoImpl) FindByID(ctx context.Context, id string) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id=$1 AND active`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanUser(r.pool.QueryRow(ctx, q, id))
}

func (r *UsersRepoImpl) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users
WHERE password_reset_token=$1 AND password_reset_expires > $2 AND active`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanUser(r.pool.QueryRow(ctx, q, tokenHash, now))
}

func (r *UsersRepoImpl) SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error {
	const q = `UPDATE users SET password_reset_token=$2, password_reset_expires=$3 WHERE id=$1 AND active`
	return r.execOne(ctx, q, id, tokenHash, expires)
}

func (r *UsersRepoImpl) ClearResetToken(ctx context.Context, id string) error {
	const q = `UPDATE users SET password_reset_token=NULL, password_reset_expires=NULL WHERE id=$1`
	return r.execOne(ctx, q, id)
}

func (r *UsersRepoImpl) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string, changedAt time.Time) (*domain.User, error) {
	const q = `
UPDATE users
SET password_hash=$3, password_changed_at=$4, password_reset_token=NULL, password_reset_expires=NULL
WHERE password_reset_token=$1 AND password_reset_expires > $2 AND active
RETURNING ` + userCols
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanUser(r.pool.QueryRow(ctx, q, tokenHash, now, passwordHash, changedAt))
}

func (r *UsersRepoImpl) UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	const q = `UPDATE users SET password_hash=$2, password_changed_at=$3 WHERE id=$1 AND active`
	return r.execOne(ctx, q, id, passwordHash, changedAt)
}

func (r *UsersRepoImpl) Deactivate(ctx context.Context, id string) error {
	const q = `UPDATE users SET active=FALSE WHERE id=$1 AND active`
	return r.execOne(ctx, q, id)
}

func (r *UsersRepoImpl) DeleteAll(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	ct, err := r.pool.Exec(ctx, `DELETE FROM users`)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (r *UsersRepoImpl) execOne(ctx context.Context, q string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	ct, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
