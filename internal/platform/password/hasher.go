// Package password hashes and verifies user passwords.
package password

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"github.com/yousefihsm/natours/pkg/metrics"
)

// Params tunes argon2id. Zero fields fall back to argon2id.DefaultParams.
type Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
}

// Hasher creates argon2id hashes and verifies both argon2id and legacy
// bcrypt hashes. At most maxWorkers operations run at once; callers beyond
// that wait on ctx.
type Hasher struct {
	params *argon2id.Params
	sem    *semaphore.Weighted
	dummy  string
}

func NewHasher(p Params, maxWorkers int) (*Hasher, error) {
	params := *argon2id.DefaultParams
	if p.MemoryKiB > 0 {
		params.Memory = p.MemoryKiB
	}
	if p.Iterations > 0 {
		params.Iterations = p.Iterations
	}
	if p.Parallelism > 0 {
		params.Parallelism = p.Parallelism
	}
	if maxWorkers <= 0 {
		maxWorkers = runtime.GOMAXPROCS(0)
	}

	dummy, err := argon2id.CreateHash("natours-dummy-password", &params)
	if err != nil {
		return nil, fmt.Errorf("failed to create dummy hash: %w", err)
	}

	return &Hasher{
		params: &params,
		sem:    semaphore.NewWeighted(int64(maxWorkers)),
		dummy:  dummy,
	}, nil
}

func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	if err := h.acquire(ctx); err != nil {
		return "", err
	}
	defer h.release(time.Now())

	hash, err := argon2id.CreateHash(plain, h.params)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

// Compare reports whether plain matches hash. A mismatch is (false, nil);
// an error means the hash itself is unusable or ctx ended while queueing.
func (h *Hasher) Compare(ctx context.Context, plain, hash string) (bool, error) {
	if err := h.acquire(ctx); err != nil {
		return false, err
	}
	defer h.release(time.Now())

	if isBcrypt(hash) {
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("failed to verify password: %w", err)
		}
		return true, nil
	}

	ok, err := argon2id.ComparePasswordAndHash(plain, hash)
	if err != nil {
		return false, fmt.Errorf("failed to verify password: %w", err)
	}
	return ok, nil
}

// CompareDummy burns one comparison against a fixed hash so unknown
// accounts take as long to reject as wrong passwords.
func (h *Hasher) CompareDummy(ctx context.Context, plain string) {
	_, _ = h.Compare(ctx, plain, h.dummy)
}

func (h *Hasher) acquire(ctx context.Context) error {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("password hasher busy: %w", err)
	}
	return nil
}

func (h *Hasher) release(start time.Time) {
	h.sem.Release(1)
	metrics.PasswordHashDuration.Observe(time.Since(start).Seconds())
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}
