package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/yousefihsm/natours/internal/domain"
	"github.com/yousefihsm/natours/internal/http/response"
	"github.com/yousefihsm/natours/pkg/logger"
)

type ctxKey string

const CtxUser ctxKey = "user"

// SessionCookie is the cookie the session token travels in for browsers.
const SessionCookie = "jwt"

// Sessions is satisfied by service.AuthService.
type Sessions interface {
	ValidateSession(ctx context.Context, token string) (*domain.User, error)
	RestrictTo(user *domain.User, roles ...domain.Role) error
}

// Protect rejects requests without a valid, current session and puts the
// user into the request context.
func Protect(sessions Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := TokenFromRequest(r)
			if raw == "" {
				response.FromError(w, r, domain.AuthError("You are not logged in! Please log in to get access."))
				return
			}
			user, err := sessions.ValidateSession(r.Context(), raw)
			if err != nil {
				response.FromError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}

// OptionalSession attaches the user when a valid session is present and
// never fails the request.
func OptionalSession(sessions Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := TokenFromRequest(r); raw != "" {
				if user, err := sessions.ValidateSession(r.Context(), raw); err == nil {
					r = r.WithContext(withUser(r.Context(), user))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RestrictTo must run after Protect.
func RestrictTo(sessions Sessions, roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := sessions.RestrictTo(User(r), roles...); err != nil {
				response.FromError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TokenFromRequest prefers the Authorization header over the cookie.
func TokenFromRequest(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "loggedout" {
		return c.Value
	}
	return ""
}

func withUser(ctx context.Context, user *domain.User) context.Context {
	ctx = logger.WithUserID(ctx, user.ID)
	return context.WithValue(ctx, CtxUser, user)
}

// User returns the session user or nil.
func User(r *http.Request) *domain.User {
	u, _ := r.Context().Value(CtxUser).(*domain.User)
	return u
}
