// Package importer loads development data into the store and wipes it again.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yousefihsm/natours/internal/domain"
	"github.com/yousefihsm/natours/internal/utils"
	"github.com/yousefihsm/natours/pkg/logger"
)

type TourWriter interface {
	Create(ctx context.Context, t *domain.Tour) error
	DeleteAll(ctx context.Context) (int64, error)
}

type UserWriter interface {
	Create(ctx context.Context, u *domain.User) error
	DeleteAll(ctx context.Context) (int64, error)
}

// Hasher hashes plain passwords found in the user file.
type Hasher interface {
	Hash(ctx context.Context, plain string) (string, error)
}

type Importer struct {
	Tours  TourWriter
	Users  UserWriter
	Hasher Hasher
	Now    func() time.Time
}

type tourRecord struct {
	ID              string   `json:"_id"`
	RatingsAverage  *float64 `json:"ratingsAverage"`
	RatingsQuantity int      `json:"ratingsQuantity"`
	domain.TourInput
}

type userRecord struct {
	ID       string      `json:"_id"`
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Role     domain.Role `json:"role"`
	Photo    string      `json:"photo"`
	Password string      `json:"password"`
	Active   *bool       `json:"active"`
}

func (im *Importer) now() time.Time {
	if im.Now == nil {
		return time.Now().UTC()
	}
	return im.Now().UTC()
}

// ImportTours reads a JSON array of tours and stores each one. It stops at
// the first invalid record.
func (im *Importer) ImportTours(ctx context.Context, r io.Reader) (int, error) {
	var records []tourRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return 0, fmt.Errorf("decode tours: %w", err)
	}

	for i, rec := range records {
		t := &domain.Tour{
			ID:              rec.ID,
			RatingsAverage:  domain.DefaultRatingsAverage,
			RatingsQuantity: rec.RatingsQuantity,
			CreatedAt:       im.now(),
		}
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if rec.RatingsAverage != nil {
			t.RatingsAverage = *rec.RatingsAverage
		}
		rec.TourInput.Apply(t)
		if err := t.Validate(); err != nil {
			return i, fmt.Errorf("tour %d (%q): %w", i, t.Name, err)
		}
		if err := im.Tours.Create(ctx, t); err != nil {
			return i, fmt.Errorf("store tour %q: %w", t.Name, err)
		}
	}
	logger.Info("Tours imported", "count", len(records))
	return len(records), nil
}

// ImportUsers reads a JSON array of users. Passwords that are already
// bcrypt or argon2id hashes are stored as they are; anything else is hashed.
func (im *Importer) ImportUsers(ctx context.Context, r io.Reader) (int, error) {
	var records []userRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return 0, fmt.Errorf("decode users: %w", err)
	}

	for i, rec := range records {
		email := utils.NormalizeEmail(rec.Email)
		if !utils.IsValidEmail(email) {
			return i, fmt.Errorf("user %d: invalid email %q", i, rec.Email)
		}
		if rec.Role == "" {
			rec.Role = domain.RoleUser
		}
		if !domain.IsValidRole(rec.Role) {
			return i, fmt.Errorf("user %d: invalid role %q", i, rec.Role)
		}
		if rec.Password == "" {
			return i, fmt.Errorf("user %d: missing password", i)
		}

		hash := rec.Password
		if !isHash(hash) {
			h, err := im.Hasher.Hash(ctx, rec.Password)
			if err != nil {
				return i, fmt.Errorf("hash password for %s: %w", email, err)
			}
			hash = h
		}

		u := &domain.User{
			ID:           rec.ID,
			Name:         utils.NormalizeString(rec.Name),
			Email:        email,
			Photo:        rec.Photo,
			Role:         rec.Role,
			PasswordHash: hash,
			Active:       rec.Active == nil || *rec.Active,
			CreatedAt:    im.now(),
		}
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		if u.Photo == "" {
			u.Photo = domain.DefaultPhoto
		}
		if err := im.Users.Create(ctx, u); err != nil {
			return i, fmt.Errorf("store user %s: %w", email, err)
		}
	}
	logger.Info("Users imported", "count", len(records))
	return len(records), nil
}

// DeleteAll removes every tour and user.
func (im *Importer) DeleteAll(ctx context.Context) error {
	tours, err := im.Tours.DeleteAll(ctx)
	if err != nil {
		return fmt.Errorf("delete tours: %w", err)
	}
	users, err := im.Users.DeleteAll(ctx)
	if err != nil {
		return fmt.Errorf("delete users: %w", err)
	}
	logger.Info("Data deleted", "tours", tours, "users", users)
	return nil
}

func isHash(s string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$", "$argon2id$"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
