// Package repo declares the persistence contracts shared by the Postgres and
// MongoDB stores. Lookups return domain.ErrNotFound when nothing matches and
// inactive users are never returned.
package repo

import (
	"context"
	"time"

	"github.com/yousefihsm/natours/internal/domain"
)

type UserRepo interface {
	// Create returns domain.ErrDuplicate when the email is taken.
	Create(ctx context.Context, u *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	// FindAnyByEmail also matches deactivated accounts.
	FindAnyByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error)
	SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error
	ClearResetToken(ctx context.Context, id string) error
	// ConsumeResetToken sets the new password only if tokenHash still
	// matches an unexpired reset token, and clears the token in the same
	// write. A second caller gets domain.ErrNotFound.
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string, changedAt time.Time) (*domain.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error
	Deactivate(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
}

type TourRepo interface {
	List(ctx context.Context, f domain.TourFilter) ([]domain.Tour, error)
	Get(ctx context.Context, id string, f domain.TourFilter) (*domain.Tour, error)
	GetBySlug(ctx context.Context, slug string, f domain.TourFilter) (*domain.Tour, error)
	// Create returns domain.ErrDuplicate when the name is taken.
	Create(ctx context.Context, t *domain.Tour) error
	Update(ctx context.Context, t *domain.Tour) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
}

type BookingRepo interface {
	// CreateIfAbsent inserts b unless a booking with the same
	// PaymentSessionID exists. created is false for the duplicate case.
	CreateIfAbsent(ctx context.Context, b *domain.Booking) (created bool, err error)
	Create(ctx context.Context, b *domain.Booking) error
	Get(ctx context.Context, id string) (*domain.Booking, error)
	List(ctx context.Context) ([]domain.Booking, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Booking, error)
	Delete(ctx context.Context, id string) error
}

// Store groups the repositories of one backend.
type Store struct {
	Users    UserRepo
	Tours    TourRepo
	Bookings BookingRepo
	Close    func(ctx context.Context) error
}
