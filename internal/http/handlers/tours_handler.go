package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yousefihsm/natours/internal/domain"
	"github.com/yousefihsm/natours/internal/http/middleware"
	"github.com/yousefihsm/natours/internal/http/response"
	"github.com/yousefihsm/natours/internal/service"
)

type ToursHandler struct {
	Tours service.TourService
}

// Routes serves tours to everyone; writes need an admin or lead guide.
func (h *ToursHandler) Routes(sessions middleware.Sessions) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalSession(sessions))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Protect(sessions))
		r.Use(middleware.RestrictTo(sessions, domain.RoleAdmin, domain.RoleLeadGuide))
		r.Post("/", h.create)
		r.Patch("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
	return r
}

func (h *ToursHandler) list(w http.ResponseWriter, r *http.Request) {
	tours, err := h.Tours.ListTours(r.Context(), middleware.User(r))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"results": len(tours),
		"data":    map[string]any{"tours": tours},
	})
}

func (h *ToursHandler) get(w http.ResponseWriter, r *http.Request) {
	tour, err := h.Tours.GetTour(r.Context(), middleware.User(r), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	writeTour(w, http.StatusOK, tour)
}

func (h *ToursHandler) create(w http.ResponseWriter, r *http.Request) {
	var in domain.TourInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.FromError(w, r, err)
		return
	}
	tour, err := h.Tours.CreateTour(r.Context(), &in)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	writeTour(w, http.StatusCreated, tour)
}

func (h *ToursHandler) update(w http.ResponseWriter, r *http.Request) {
	var in domain.TourInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.FromError(w, r, err)
		return
	}
	tour, err := h.Tours.UpdateTour(r.Context(), chi.URLParam(r, "id"), &in)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	writeTour(w, http.StatusOK, tour)
}

func (h *ToursHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Tours.DeleteTour(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.FromError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeTour(w http.ResponseWriter, status int, tour *domain.Tour) {
	response.WriteJSON(w, status, map[string]any{
		"status": "success",
		"data":   map[string]any{"tour": tour},
	})
}
