package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yousefihsm/natours/internal/repo"
)

// NewStore wires the Postgres repositories over one pool. Closing the store
// closes the pool.
func NewStore(pool *pgxpool.Pool) *repo.Store {
	return &repo.Store{
		Users:    NewUsersRepo(pool),
		Tours:    NewToursRepo(pool),
		Bookings: NewBookingRepo(pool),
		Close: func(context.Context) error {
			pool.Close()
			return nil
		},
	}
}
