package domain

import "time"

type Booking struct {
	ID               string    `json:"id" bson:"_id"`
	TourID           string    `json:"tour" bson:"tour_id"`
	UserID           string    `json:"user" bson:"user_id"`
	Price            float64   `json:"price" bson:"price"`
	PaymentSessionID string    `json:"paymentSessionId,omitempty" bson:"payment_session_id,omitempty"`
	Paid             bool      `json:"paid" bson:"paid"`
	CreatedAt        time.Time `json:"createdAt" bson:"created_at"`
}

// CreateBookingRequest is the admin path for bookings made outside Stripe.
type CreateBookingRequest struct {
	TourID string   `json:"tour"`
	UserID string   `json:"user"`
	Price  *float64 `json:"price"`
	Paid   *bool    `json:"paid"`
}

func (r *CreateBookingRequest) Validate() error {
	switch {
	case r.TourID == "":
		return ValidationError("Booking must belong to a tour.")
	case r.UserID == "":
		return ValidationError("Booking must belong to a user.")
	case r.Price != nil && *r.Price <= 0:
		return ValidationError("Booking must have a price.")
	}
	return nil
}

// PaymentEvent is a verified gateway notification reduced to the fields
// needed to record a booking.
type PaymentEvent struct {
	Type          string
	SessionID     string
	TourID        string
	CustomerEmail string
	AmountTotal   int64
}

// Price converts the smallest-unit amount back to currency units.
func (e *PaymentEvent) Price() float64 {
	return float64(e.AmountTotal) / 100
}

// CheckoutSession is the gateway session handed back to the client.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CheckoutRequest describes the single line item of a tour purchase.
type CheckoutRequest struct {
	TourID        string
	TourName      string
	Summary       string
	ImageURL      string
	UnitAmount    int64
	CustomerEmail string
	UserID        string
	SuccessURL    string
	CancelURL     string
}

// Gateway event types the application reacts to.
const EventCheckoutCompleted = "checkout.session.completed"
