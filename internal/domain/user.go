package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yousefihsm/natours/internal/utils"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead-guide"
	RoleAdmin     Role = "admin"
)

var validRoles = map[Role]bool{
	RoleUser:      true,
	RoleGuide:     true,
	RoleLeadGuide: true,
	RoleAdmin:     true,
}

func IsValidRole(r Role) bool {
	return validRoles[r]
}

const (
	MinNameLength     = 3
	MaxNameLength     = 25
	MinPasswordLength = 8
	DefaultPhoto      = "default.jpg"
)

type User struct {
	ID                   string     `json:"id" bson:"_id"`
	Name                 string     `json:"name" bson:"name"`
	Email                string     `json:"email" bson:"email"`
	Photo                string     `json:"photo" bson:"photo"`
	Role                 Role       `json:"role" bson:"role"`
	PasswordHash         string     `json:"-" bson:"password_hash"`
	PasswordChangedAt    *time.Time `json:"-" bson:"password_changed_at,omitempty"`
	PasswordResetToken   string     `json:"-" bson:"password_reset_token,omitempty"`
	PasswordResetExpires *time.Time `json:"-" bson:"password_reset_expires,omitempty"`
	Active               bool       `json:"-" bson:"active"`
	CreatedAt            time.Time  `json:"createdAt" bson:"created_at"`
}

// ChangedPasswordAfter reports whether the password was changed after a
// token issued at iat. Both sides are compared at second precision because
// JWT timestamps carry no fractional part.
func (u *User) ChangedPasswordAfter(iat time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.Unix() > iat.Unix()
}

// HasRole reports whether the user's role is one of roles.
func (u *User) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

type SignupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

func (r *SignupRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = utils.NormalizeEmail(r.Email)
}

func (r *SignupRequest) Validate() error {
	n := utf8.RuneCountInString(r.Name)
	switch {
	case r.Name == "":
		return ValidationError("Please add a name.")
	case n < MinNameLength:
		return ValidationError("Name must be at least 3 characters.")
	case n > MaxNameLength:
		return ValidationError("Name must be less than 25 characters.")
	case r.Email == "":
		return ValidationError("Please provide an e-mail.")
	case !utils.IsValidEmail(r.Email):
		return ValidationError("E-mail is not valid.")
	}
	return ValidatePasswordPair(r.Password, r.PasswordConfirm)
}

// ValidatePasswordPair checks a new password and its confirmation.
func ValidatePasswordPair(password, confirm string) error {
	switch {
	case password == "":
		return ValidationError("Please provide a password.")
	case len(password) < MinPasswordLength:
		return ValidationError("Password length is too short.")
	case confirm == "":
		return ValidationError("Please confirm your password.")
	case password != confirm:
		return ValidationError("Confirm does not match the password.")
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Normalize() {
	r.Email = utils.NormalizeEmail(r.Email)
}

func (r *LoginRequest) Validate() error {
	if r.Email == "" || r.Password == "" {
		return AuthError("Please provide email and password.")
	}
	return nil
}

type ResetPasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type UpdatePasswordRequest struct {
	CurrentPassword    string `json:"currentPassword"`
	NewPassword        string `json:"newPassword"`
	NewPasswordConfirm string `json:"newPasswordConfirm"`
}
