package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/yousefihsm/natours/internal/domain"
	"github.com/yousefihsm/natours/internal/platform/mailer"
	"github.com/yousefihsm/natours/internal/repo"
	"github.com/yousefihsm/natours/pkg/events"
	"github.com/yousefihsm/natours/pkg/logger"
	"github.com/yousefihsm/natours/pkg/metrics"
)

type BookingService interface {
	CreateCheckoutSession(ctx context.Context, tourID string, user *domain.User, baseURL string) (*domain.CheckoutSession, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error)
	SendConfirmation(ctx context.Context, ev events.BookingCreatedEvent) error
	ListMyBookings(ctx context.Context, user *domain.User) ([]domain.Booking, error)
	ListBookings(ctx context.Context) ([]domain.Booking, error)
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
	CreateBooking(ctx context.Context, req *domain.CreateBookingRequest) (*domain.Booking, error)
	DeleteBooking(ctx context.Context, id string) error
}

// WebhookResult describes what a verified delivery led to. Every result is
// acknowledged to the gateway with a 2xx.
type WebhookResult struct {
	Type      string          `json:"type"`
	Booking   *domain.Booking `json:"booking,omitempty"`
	Duplicate bool            `json:"duplicate,omitempty"`
	Ignored   bool            `json:"ignored,omitempty"`
	Dropped   bool            `json:"dropped,omitempty"`
}

type bookingService struct {
	bookings repo.BookingRepo
	tours    repo.TourRepo
	users    repo.UserRepo
	gateway  PaymentGateway
	mailer   mailer.Service
	eventBus events.Publisher
	now      func() time.Time
}

func NewBookingService(
	bookings repo.BookingRepo,
	tours repo.TourRepo,
	users repo.UserRepo,
	gateway PaymentGateway,
	mailer mailer.Service,
	eventBus events.Publisher,
	now func() time.Time,
) BookingService {
	return &bookingService{
		bookings: bookings,
		tours:    tours,
		users:    users,
		gateway:  gateway,
		mailer:   mailer,
		eventBus: eventBus,
		now:      clockOrNow(now),
	}
}

var errTourNotFound = domain.NotFoundError("No tour found with that ID.")

func (s *bookingService) CreateCheckoutSession(ctx context.Context, tourID string, user *domain.User, baseURL string) (*domain.CheckoutSession, error) {
	if user == nil {
		return nil, domain.AuthError("You are not logged in! Please log in to get access.")
	}

	tour, err := s.tours.Get(ctx, tourID, domain.FilterFor(user))
	if err != nil {
		return nil, storeError(err, errTourNotFound)
	}

	req := domain.CheckoutRequest{
		TourID:        tour.ID,
		TourName:      tour.Name,
		Summary:       tour.Summary,
		UnitAmount:    tour.UnitAmount(),
		CustomerEmail: user.Email,
		UserID:        user.ID,
		SuccessURL:    baseURL + "/my-tours?alert=booking",
		CancelURL:     baseURL + "/tour/" + tour.Slug,
	}
	if tour.ImageCover != "" {
		req.ImageURL = baseURL + "/img/tours/" + tour.ImageCover
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, req)
	if err != nil {
		logger.ErrorContext(ctx, "Checkout session creation failed", "error", err, "tour_id", tour.ID)
		return nil, domain.DependencyError("The payment provider is unavailable. Please try again later.", err)
	}
	return sess, nil
}

// HandleWebhook verifies and records a gateway delivery. Only a bad
// signature or a failed store write return an error; the latter makes the
// gateway redeliver, and the unique session id keeps redelivery harmless.
func (s *bookingService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	ev, err := s.gateway.ParseWebhook(payload, signature)
	if errors.Is(err, domain.ErrInvalidSignature) {
		metrics.WebhookEvents.WithLabelValues(metrics.WebhookRejected).Inc()
		return nil, domain.SignatureError(err)
	}
	if errors.Is(err, domain.ErrMalformedEvent) {
		logger.ErrorContext(ctx, "Dropping malformed checkout event", "error", err)
		return s.dropped(ev), nil
	}
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(metrics.WebhookRejected).Inc()
		return nil, domain.SignatureError(err)
	}

	if ev.Type != domain.EventCheckoutCompleted {
		metrics.WebhookEvents.WithLabelValues(metrics.WebhookIgnored).Inc()
		return &WebhookResult{Type: ev.Type, Ignored: true}, nil
	}

	tour, err := s.tours.Get(ctx, ev.TourID, domain.TourFilter{IncludeSecret: true})
	if errors.Is(err, domain.ErrNotFound) {
		logger.ErrorContext(ctx, "Checkout completed for unknown tour", "tour_id", ev.TourID, "session_id", ev.SessionID)
		return s.dropped(ev), nil
	}
	if err != nil {
		return nil, s.failed(ctx, ev, err)
	}

	// The payment went through, so a customer who deactivated their
	// account since checkout still gets the booking.
	user, err := s.users.FindAnyByEmail(ctx, ev.CustomerEmail)
	if errors.Is(err, domain.ErrNotFound) {
		logger.ErrorContext(ctx, "Checkout completed for unknown customer", "email", ev.CustomerEmail, "session_id", ev.SessionID)
		return s.dropped(ev), nil
	}
	if err != nil {
		return nil, s.failed(ctx, ev, err)
	}

	booking := &domain.Booking{
		ID:               uuid.NewString(),
		TourID:           tour.ID,
		UserID:           user.ID,
		Price:            ev.Price(),
		PaymentSessionID: ev.SessionID,
		Paid:             true,
		CreatedAt:        s.now().UTC(),
	}
	created, err := s.bookings.CreateIfAbsent(ctx, booking)
	if err != nil {
		return nil, s.failed(ctx, ev, err)
	}
	if !created {
		metrics.WebhookEvents.WithLabelValues(metrics.WebhookDuplicate).Inc()
		logger.InfoContext(ctx, "Duplicate checkout event ignored", "session_id", ev.SessionID)
		return &WebhookResult{Type: ev.Type, Duplicate: true}, nil
	}

	metrics.WebhookEvents.WithLabelValues(metrics.WebhookRecorded).Inc()
	metrics.BookingsCreated.Inc()
	logger.InfoContext(ctx, "Booking recorded", "booking_id", booking.ID, "session_id", ev.SessionID, "user_id", user.ID)

	if err := s.eventBus.Publish(ctx, events.BookingCreated, events.BookingCreatedEvent{
		BookingID:        booking.ID,
		TourID:           tour.ID,
		TourName:         tour.Name,
		UserID:           user.ID,
		UserEmail:        user.Email,
		UserName:         user.Name,
		Price:            booking.Price,
		PaymentSessionID: booking.PaymentSessionID,
		CreatedAt:        booking.CreatedAt,
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish booking event", "error", err, "booking_id", booking.ID)
	}

	return &WebhookResult{Type: ev.Type, Booking: booking}, nil
}

func (s *bookingService) dropped(ev *domain.PaymentEvent) *WebhookResult {
	metrics.WebhookEvents.WithLabelValues(metrics.WebhookDropped).Inc()
	res := &WebhookResult{Dropped: true}
	if ev != nil {
		res.Type = ev.Type
	}
	return res
}

func (s *bookingService) failed(ctx context.Context, ev *domain.PaymentEvent, err error) error {
	metrics.WebhookEvents.WithLabelValues(metrics.WebhookFailed).Inc()
	logger.ErrorContext(ctx, "Failed to record booking", "error", err, "session_id", ev.SessionID)
	return domain.DependencyError("Could not record the booking.", err)
}

func (s *bookingService) SendConfirmation(ctx context.Context, ev events.BookingCreatedEvent) error {
	if ev.UserEmail == "" {
		return domain.ValidationError("booking event has no recipient")
	}
	return s.mailer.SendBookingConfirmation(ctx, ev.UserEmail, ev.UserName, ev.TourName, ev.Price)
}

func (s *bookingService) ListMyBookings(ctx context.Context, user *domain.User) ([]domain.Booking, error) {
	if user == nil {
		return nil, domain.AuthError("You are not logged in! Please log in to get access.")
	}
	bs, err := s.bookings.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, storeError(err, nil)
	}
	return bs, nil
}

func (s *bookingService) ListBookings(ctx context.Context) ([]domain.Booking, error) {
	bs, err := s.bookings.List(ctx)
	if err != nil {
		return nil, storeError(err, nil)
	}
	return bs, nil
}

func (s *bookingService) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	b, err := s.bookings.Get(ctx, id)
	if err != nil {
		return nil, storeError(err, domain.NotFoundError("No booking found with that ID."))
	}
	return b, nil
}

func (s *bookingService) CreateBooking(ctx context.Context, req *domain.CreateBookingRequest) (*domain.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tour, err := s.tours.Get(ctx, req.TourID, domain.TourFilter{IncludeSecret: true})
	if err != nil {
		return nil, storeError(err, errTourNotFound)
	}
	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		return nil, storeError(err, domain.NotFoundError("No user found with that ID."))
	}

	b := &domain.Booking{
		ID:        uuid.NewString(),
		TourID:    tour.ID,
		UserID:    user.ID,
		Price:     tour.Price,
		Paid:      true,
		CreatedAt: s.now().UTC(),
	}
	if req.Price != nil {
		b.Price = *req.Price
	}
	if req.Paid != nil {
		b.Paid = *req.Paid
	}

	if err := s.bookings.Create(ctx, b); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.ConflictError("Booking already exists.")
		}
		return nil, storeError(err, nil)
	}
	metrics.BookingsCreated.Inc()
	return b, nil
}

func (s *bookingService) DeleteBooking(ctx context.Context, id string) error {
	if err := s.bookings.Delete(ctx, id); err != nil {
		return storeError(err, domain.NotFoundError("No booking found with that ID."))
	}
	if err := s.eventBus.Publish(ctx, events.BookingDeleted, events.BookingDeletedEvent{
		BookingID: id,
		DeletedAt: s.now().UTC(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish booking deletion", "error", err, "booking_id", id)
	}
	return nil
}
