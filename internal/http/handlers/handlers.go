package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/yousefihsm/natours/internal/domain"
	"github.com/yousefihsm/natours/internal/http/response"
	"github.com/yousefihsm/natours/internal/service"
	mw "github.com/yousefihsm/natours/pkg/middleware"
)

const maxBodyBytes = 1 << 20

// Config wires the API router.
type Config struct {
	Auth     service.AuthService
	Tours    service.TourService
	Bookings service.BookingService

	// Idempotency caches checkout-session responses. Nil disables it.
	Idempotency    mw.IdempotencyStore
	IdempotencyTTL time.Duration
	// RateLimit guards the credential endpoints. Nil disables it.
	RateLimit func(http.Handler) http.Handler

	CookieTTL   time.Duration
	BaseURL     string
	CORSOrigins []string
	// TrustProxy takes the client address from X-Forwarded-For or
	// X-Real-IP. Enable only behind a proxy that sets them.
	TrustProxy bool
}

// NewRouter builds the full HTTP surface of the API.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()

	if cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("natours-api"))
	r.Use(mw.Recover)
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Idempotent-Replayed"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	idem := passthrough
	if cfg.Idempotency != nil {
		idem = mw.IdempotencyMiddleware(cfg.Idempotency, cfg.IdempotencyTTL)
	}

	users := &AuthHandler{
		Auth:      cfg.Auth,
		CookieTTL: cfg.CookieTTL,
		BaseURL:   cfg.BaseURL,
		RateLimit: cfg.RateLimit,
	}
	tours := &ToursHandler{Tours: cfg.Tours}
	bookings := &BookingsHandler{
		Bookings:    cfg.Bookings,
		BaseURL:     cfg.BaseURL,
		Idempotency: idem,
	}

	// Stripe posts here with a signature over the raw body.
	r.Post("/webhook-checkout", bookings.Webhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/users", users.Routes())
		r.Mount("/tours", tours.Routes(cfg.Auth))
		r.Mount("/bookings", bookings.Routes(cfg.Auth))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.FromError(w, r, domain.NotFoundError("Can't find "+r.URL.Path+" on this server!"))
	})
	return r
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.ValidationError("Request body is empty.")
		}
		return domain.ValidationError("Invalid JSON format.")
	}
	return nil
}

// isSecure reports whether the client reached us over TLS, directly or
// through a proxy that terminates it.
func isSecure(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}

// baseURL returns the configured public URL or the one the request came in on.
func baseURL(configured string, r *http.Request) string {
	if configured != "" {
		return configured
	}
	scheme := "http"
	if isSecure(r) {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func passthrough(next http.Handler) http.Handler { return next }

func orPassthrough(m func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if m == nil {
		return passthrough
	}
	return m
}
