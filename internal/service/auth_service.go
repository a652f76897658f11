package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yousefihsm/natours/internal/domain"
	"github.com/yousefihsm/natours/internal/platform/mailer"
	"github.com/yousefihsm/natours/internal/repo"
	"github.com/yousefihsm/natours/internal/utils"
	"github.com/yousefihsm/natours/pkg/auth"
	"github.com/yousefihsm/natours/pkg/events"
	"github.com/yousefihsm/natours/pkg/logger"
)

type AuthService interface {
	Signup(ctx context.Context, req *domain.SignupRequest, welcomeURL string) (*domain.User, string, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.User, string, error)
	ValidateSession(ctx context.Context, token string) (*domain.User, error)
	RestrictTo(user *domain.User, roles ...domain.Role) error
	ForgotPassword(ctx context.Context, email, resetURLBase string) error
	ResetPassword(ctx context.Context, rawToken string, req *domain.ResetPasswordRequest) (*domain.User, string, error)
	UpdatePassword(ctx context.Context, user *domain.User, req *domain.UpdatePasswordRequest) (*domain.User, string, error)
	Deactivate(ctx context.Context, user *domain.User) error
}

type AuthOptions struct {
	ResetTokenTTL time.Duration
	Now           func() time.Time
}

type authService struct {
	users    repo.UserRepo
	hasher   PasswordHasher
	tokens   TokenIssuer
	mailer   mailer.Service
	eventBus events.Publisher
	resetTTL time.Duration
	now      func() time.Time
}

func NewAuthService(
	users repo.UserRepo,
	hasher PasswordHasher,
	tokens TokenIssuer,
	mailer mailer.Service,
	eventBus events.Publisher,
	opts AuthOptions,
) AuthService {
	if opts.ResetTokenTTL <= 0 {
		opts.ResetTokenTTL = 10 * time.Minute
	}
	return &authService{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		mailer:   mailer,
		eventBus: eventBus,
		resetTTL: opts.ResetTokenTTL,
		now:      clockOrNow(opts.Now),
	}
}

var errBadCredentials = domain.AuthError("Incorrect email or password.")

func (s *authService) Signup(ctx context.Context, req *domain.SignupRequest, welcomeURL string) (*domain.User, string, error) {
	// Normalize and validate
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, "", err
	}

	hash, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		return nil, "", domain.DependencyError("Could not process the password. Please try again later.", err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		Photo:        domain.DefaultPhoto,
		Role:         domain.RoleUser,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, "", domain.ValidationError("Email is already in use. Please use another email.")
		}
		return nil, "", storeError(err, nil)
	}

	token, err := s.issue(user)
	if err != nil {
		return nil, "", err
	}

	// Side effects are best effort
	if err := s.mailer.SendWelcome(ctx, user.Email, user.Name, welcomeURL); err != nil {
		logger.WarnContext(ctx, "Failed to send welcome email", "error", err, "user_id", user.ID)
	}
	if err := s.eventBus.Publish(ctx, events.UserSignedUp, events.UserSignedUpEvent{
		UserID:    user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish signup event", "error", err, "user_id", user.ID)
	}

	return user, token, nil
}

func (s *authService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.User, string, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, "", err
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if errors.Is(err, domain.ErrNotFound) {
		// Unknown accounts pay for a comparison too
		s.hasher.CompareDummy(ctx, req.Password)
		return nil, "", errBadCredentials
	}
	if err != nil {
		return nil, "", storeError(err, nil)
	}

	ok, err := s.hasher.Compare(ctx, req.Password, user.PasswordHash)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", domain.DependencyError("Login timed out. Please try again.", err)
		}
		logger.ErrorContext(ctx, "Stored password hash is unusable", "error", err, "user_id", user.ID)
		return nil, "", errBadCredentials
	}
	if !ok {
		return nil, "", errBadCredentials
	}

	token, err := s.issue(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *authService) ValidateSession(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.AuthError("You are not logged in! Please log in to get access.")
	}

	claims, err := s.tokens.Parse(token)
	if errors.Is(err, auth.ErrTokenExpired) {
		return nil, domain.AuthError("Your token has expired! Please log in again.")
	}
	if err != nil {
		return nil, domain.AuthError("Invalid token. Please log in again!")
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, storeError(err, domain.AuthError("The user belonging to this token does no longer exist."))
	}

	if user.ChangedPasswordAfter(claims.IssuedAtTime()) {
		return nil, domain.AuthError("User recently changed password! Please log in again.")
	}
	return user, nil
}

func (s *authService) RestrictTo(user *domain.User, roles ...domain.Role) error {
	if user == nil || !user.HasRole(roles...) {
		return domain.ForbiddenError("You do not have permission to perform this action.")
	}
	return nil
}

func (s *authService) ForgotPassword(ctx context.Context, email, resetURLBase string) error {
	user, err := s.users.FindByEmail(ctx, utils.NormalizeEmail(email))
	if err != nil {
		return storeError(err, domain.NotFoundError("There is no user with that email address."))
	}

	raw, hashed, err := newResetToken()
	if err != nil {
		return domain.DependencyError("Could not create a reset token. Try again later!", err)
	}
	expires := s.now().Add(s.resetTTL)
	if err := s.users.SetResetToken(ctx, user.ID, hashed, expires); err != nil {
		return storeError(err, domain.NotFoundError("There is no user with that email address."))
	}

	resetURL := fmt.Sprintf("%s/%s", resetURLBase, raw)
	if err := s.mailer.SendPasswordReset(ctx, user.Email, user.Name, resetURL); err != nil {
		logger.ErrorContext(ctx, "Failed to send password reset email", "error", err, "user_id", user.ID)
		// Roll back so an undelivered token cannot be used
		if cerr := s.users.ClearResetToken(context.WithoutCancel(ctx), user.ID); cerr != nil {
			logger.ErrorContext(ctx, "Failed to clear reset token", "error", cerr, "user_id", user.ID)
		}
		return domain.DependencyError("There was an error sending the email. Try again later!", err)
	}
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, rawToken string, req *domain.ResetPasswordRequest) (*domain.User, string, error) {
	invalid := domain.TokenError("Token is invalid or has expired.")
	if rawToken == "" {
		return nil, "", invalid
	}
	hashed := hashResetToken(rawToken)
	now := s.now()

	if _, err := s.users.FindByResetToken(ctx, hashed, now); err != nil {
		return nil, "", storeError(err, invalid)
	}
	if err := domain.ValidatePasswordPair(req.Password, req.PasswordConfirm); err != nil {
		return nil, "", err
	}

	hash, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		return nil, "", domain.DependencyError("Could not process the password. Please try again later.", err)
	}

	// The guarded update is what makes the token single use
	user, err := s.users.ConsumeResetToken(ctx, hashed, now, hash, changedAt(now))
	if err != nil {
		return nil, "", storeError(err, invalid)
	}

	token, err := s.issue(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *authService) UpdatePassword(ctx context.Context, current *domain.User, req *domain.UpdatePasswordRequest) (*domain.User, string, error) {
	if current == nil {
		return nil, "", domain.AuthError("You are not logged in! Please log in to get access.")
	}
	if req.CurrentPassword == "" {
		return nil, "", domain.ValidationError("Please provide your current password.")
	}
	if err := domain.ValidatePasswordPair(req.NewPassword, req.NewPasswordConfirm); err != nil {
		return nil, "", err
	}

	user, err := s.users.FindByID(ctx, current.ID)
	if err != nil {
		return nil, "", storeError(err, domain.AuthError("The user belonging to this token does no longer exist."))
	}

	ok, err := s.hasher.Compare(ctx, req.CurrentPassword, user.PasswordHash)
	if err != nil && ctx.Err() != nil {
		return nil, "", domain.DependencyError("Request timed out. Please try again.", err)
	}
	if !ok {
		return nil, "", domain.AuthError("Your current password is wrong.")
	}

	hash, err := s.hasher.Hash(ctx, req.NewPassword)
	if err != nil {
		return nil, "", domain.DependencyError("Could not process the password. Please try again later.", err)
	}

	at := changedAt(s.now())
	if err := s.users.UpdatePassword(ctx, user.ID, hash, at); err != nil {
		return nil, "", storeError(err, domain.AuthError("The user belonging to this token does no longer exist."))
	}
	user.PasswordHash = hash
	user.PasswordChangedAt = &at

	token, err := s.issue(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *authService) Deactivate(ctx context.Context, user *domain.User) error {
	if user == nil {
		return domain.AuthError("You are not logged in! Please log in to get access.")
	}
	if err := s.users.Deactivate(ctx, user.ID); err != nil {
		return storeError(err, domain.NotFoundError("No user found with that ID."))
	}
	return nil
}

func (s *authService) issue(user *domain.User) (string, error) {
	token, err := s.tokens.Issue(user.ID, string(user.Role))
	if err != nil {
		return "", domain.DependencyError("Could not create a session. Please try again later.", err)
	}
	return token, nil
}

// changedAt backdates the password change by one second so a token issued
// in the same second as the change still validates.
func changedAt(now time.Time) time.Time {
	return now.Add(-time.Second).UTC()
}

func newResetToken() (raw, hashed string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	raw = hex.EncodeToString(b)
	return raw, hashResetToken(raw), nil
}

func hashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
