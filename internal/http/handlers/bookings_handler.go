package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yousefihsm/natours/internal/domain"
	"github.com/yousefihsm/natours/internal/http/middleware"
	"github.com/yousefihsm/natours/internal/http/response"
	"github.com/yousefihsm/natours/internal/service"
	"github.com/yousefihsm/natours/pkg/logger"
)

// Stripe never sends more than this in one event.
const maxWebhookBytes = 65536

type BookingsHandler struct {
	Bookings    service.BookingService
	BaseURL     string
	Idempotency func(http.Handler) http.Handler
}

func (h *BookingsHandler) Routes(sessions middleware.Sessions) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Protect(sessions))

	checkout := r.With(orPassthrough(h.Idempotency))
	checkout.Get("/checkout-session/{tourId}", h.checkoutSession)
	checkout.Post("/checkout-session/{tourId}", h.checkoutSession)
	r.Get("/me", h.listMine)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RestrictTo(sessions, domain.RoleAdmin, domain.RoleLeadGuide))
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Delete("/{id}", h.delete)
	})
	return r
}

func (h *BookingsHandler) checkoutSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Bookings.CreateCheckoutSession(r.Context(), chi.URLParam(r, "tourId"), middleware.User(r), baseURL(h.BaseURL, r))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"session": sess,
	})
}

func (h *BookingsHandler) listMine(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.Bookings.ListMyBookings(r.Context(), middleware.User(r))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	writeBookings(w, bookings)
}

func (h *BookingsHandler) list(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.Bookings.ListBookings(r.Context())
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	writeBookings(w, bookings)
}

func (h *BookingsHandler) get(w http.ResponseWriter, r *http.Request) {
	b, err := h.Bookings.GetBooking(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	writeBooking(w, http.StatusOK, b)
}

func (h *BookingsHandler) create(w http.ResponseWriter, r *http.Request) {
	var in domain.CreateBookingRequest
	if err := decodeJSON(w, r, &in); err != nil {
		response.FromError(w, r, err)
		return
	}
	b, err := h.Bookings.CreateBooking(r.Context(), &in)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	writeBooking(w, http.StatusCreated, b)
}

func (h *BookingsHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Bookings.DeleteBooking(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.FromError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Webhook receives gateway deliveries. The body must reach the service
// byte for byte or the signature check fails.
func (h *BookingsHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.WriteError(w, http.StatusRequestEntityTooLarge, "Webhook payload too large.", response.CodeInvalidInput)
			return
		}
		response.BadRequest(w, "Could not read webhook payload.")
		return
	}

	res, err := h.Bookings.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	logger.DebugContext(r.Context(), "Webhook handled", "type", res.Type, "duplicate", res.Duplicate, "ignored", res.Ignored, "dropped", res.Dropped)
	response.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func writeBookings(w http.ResponseWriter, bookings []domain.Booking) {
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"results": len(bookings),
		"data":    map[string]any{"bookings": bookings},
	})
}

func writeBooking(w http.ResponseWriter, status int, b *domain.Booking) {
	response.WriteJSON(w, status, map[string]any{
		"status": "success",
		"data":   map[string]any{"booking": b},
	})
}
