package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yousefihsm/natours/internal/domain"
)

type BookingRepoImpl struct{ pool *pgxpool.Pool }

func NewBookingRepo(pool *pgxpool.Pool) *BookingRepoImpl { return &BookingRepoImpl{pool: pool} }

const bookingCols = `id, tour_id, user_id, price::float8, COALESCE(payment_session_id, ''), paid, created_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(&b.ID, &b.TourID, &b.UserID, &b.Price, &b.PaymentSessionID, &b.Paid, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateIfAbsent relies on the unique payment_session_id constraint so that
// concurrent deliveries of the same event insert at most one row.
func (r *BookingRepoImpl) CreateIfAbsent(ctx context.Context, b *domain.Booking) (bool, error) {
	const q = `
INSERT INTO bookings (id, tour_id, user_id, price, payment_session_id, paid, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (payment_session_id) DO NOTHING
RETURNING id`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var id string
	err := r.pool.QueryRow(ctx, q, b.ID, b.TourID, b.UserID, b.Price, b.PaymentSessionID, b.Paid, b.CreatedAt).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *BookingRepoImpl) Create(ctx context.Context, b *domain.Booking) error {
	const q = `
INSERT INTO bookings (id, tour_id, user_id, price, payment_session_id, paid, created_at)
VALUES ($1,$2,$3,$4,NULLIF($5,''),$6,$7)`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	_, err := r.pool.Exec(ctx, q, b.ID, b.TourID, b.UserID, b.Price, b.PaymentSessionID, b.Paid, b.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrDuplicate
	}
	return err
}

func (r *BookingRepoImpl) Get(ctx context.Context, id string) (*domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanBooking(r.pool.QueryRow(ctx, q, id))
}

func (r *BookingRepoImpl) List(ctx context.Context) ([]domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings ORDER BY created_at DESC`
	return r.query(ctx, q)
}

func (r *BookingRepoImpl) ListByUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE user_id=$1 ORDER BY created_at DESC`
	return r.query(ctx, q, userID)
}

func (r *BookingRepoImpl) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	ct, err := r.pool.Exec(ctx, `DELETE FROM bookings WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *BookingRepoImpl) query(ctx context.Context, q string, args ...any) ([]domain.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bs := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bs = append(bs, *b)
	}
	return bs, rows.Err()
}
