package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yousefihsm/natours/internal/domain"
	"github.com/yousefihsm/natours/internal/http/middleware"
	"github.com/yousefihsm/natours/internal/http/response"
	"github.com/yousefihsm/natours/internal/service"
)

type AuthHandler struct {
	Auth        service.AuthService
	CookieTTL   time.Duration
	BaseURL     string
	RateLimit   func(http.Handler) http.Handler
}

func (h *AuthHandler) Routes() chi.Router {
	limit := orPassthrough(h.RateLimit)

	r := chi.NewRouter()
	r.Post("/signup", h.signup)
	r.With(limit).Post("/login", h.login)
	r.Get("/logout", h.logout)
	r.With(limit).Post("/forgotPassword", h.forgotPassword)
	r.Patch("/resetPassword/{token}", h.resetPassword)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Protect(h.Auth))
		r.Patch("/updateMyPassword", h.updateMyPassword)
		r.Get("/me", h.me)
		r.Delete("/deleteMe", h.deleteMe)
	})
	return r
}

func (h *AuthHandler) signup(w http.ResponseWriter, r *http.Request) {
	var in domain.SignupRequest
	if err := decodeJSON(w, r, &in); err != nil {
		response.FromError(w, r, err)
		return
	}

	user, token, err := h.Auth.Signup(r.Context(), &in, baseURL(h.BaseURL, r)+"/me")
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	h.sendToken(w, r, http.StatusCreated, user, token)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var in domain.LoginRequest
	if err := decodeJSON(w, r, &in); err != nil {
		response.FromError(w, r, err)
		return
	}

	user, token, err := h.Auth.Login(r.Context(), &in)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	h.sendToken(w, r, http.StatusOK, user, token)
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "loggedout",
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Second),
		HttpOnly: true,
		Secure:   isSecure(r),
	})
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *AuthHandler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		response.FromError(w, r, err)
		return
	}

	resetBase := baseURL(h.BaseURL, r) + "/api/v1/users/resetPassword"
	if err := h.Auth.ForgotPassword(r.Context(), in.Email, resetBase); err != nil {
		response.FromError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Token sent to e-mail.",
	})
}

func (h *AuthHandler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var in domain.ResetPasswordRequest
	if err := decodeJSON(w, r, &in); err != nil {
		response.FromError(w, r, err)
		return
	}

	user, token, err := h.Auth.ResetPassword(r.Context(), chi.URLParam(r, "token"), &in)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	h.sendToken(w, r, http.StatusOK, user, token)
}

func (h *AuthHandler) updateMyPassword(w http.ResponseWriter, r *http.Request) {
	var in domain.UpdatePasswordRequest
	if err := decodeJSON(w, r, &in); err != nil {
		response.FromError(w, r, err)
		return
	}

	user, token, err := h.Auth.UpdatePassword(r.Context(), middleware.User(r), &in)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	h.sendToken(w, r, http.StatusOK, user, token)
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   map[string]any{"user": middleware.User(r)},
	})
}

func (h *AuthHandler) deleteMe(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.Deactivate(r.Context(), middleware.User(r)); err != nil {
		response.FromError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sendToken sets the session cookie and returns the token in the body for
// API clients.
func (h *AuthHandler) sendToken(w http.ResponseWriter, r *http.Request, status int, user *domain.User, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.CookieTTL),
		HttpOnly: true,
		Secure:   isSecure(r),
		SameSite: http.SameSiteLaxMode,
	})
	response.WriteJSON(w, status, map[string]any{
		"status": "success",
		"token":  token,
		"user":   user,
	})
}
