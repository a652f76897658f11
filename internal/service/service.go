// Package service holds the application logic behind the HTTP handlers.
// Every mutating operation runs its steps in a fixed order: validate, hash
// or transform, persist, then side effects.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/yousefihsm/natours/internal/domain"
	"github.com/yousefihsm/natours/pkg/auth"
)

// PasswordHasher is satisfied by *password.Hasher.
type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Compare(ctx context.Context, plain, hash string) (bool, error)
	CompareDummy(ctx context.Context, plain string)
}

// TokenIssuer is satisfied by *auth.Issuer.
type TokenIssuer interface {
	Issue(userID, role string) (string, error)
	Parse(token string) (*auth.Claims, error)
}

// PaymentGateway is satisfied by *payments.StripeGateway.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error)
	ParseWebhook(payload []byte, signature string) (*domain.PaymentEvent, error)
}

// storeError turns a repository error into a service error. ErrNotFound
// becomes notFound; anything else is a dependency failure.
func storeError(err error, notFound *domain.Error) error {
	if errors.Is(err, domain.ErrNotFound) && notFound != nil {
		return notFound
	}
	return domain.DependencyError("The data store is unavailable. Please try again later.", err)
}

// clockOrNow defaults a nil clock to time.Now.
func clockOrNow(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}
