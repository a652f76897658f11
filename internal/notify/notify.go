// Package notify turns booking events into customer emails.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/yousefihsm/natours/pkg/events"
	"github.com/yousefihsm/natours/pkg/logger"
)

// Confirmer is satisfied by service.BookingService.
type Confirmer interface {
	SendConfirmation(ctx context.Context, ev events.BookingCreatedEvent) error
}

const sendTimeout = 15 * time.Second

// SubscribeConfirmations emails a confirmation for every booking.created
// event. Members of the same queue group share the work.
func SubscribeConfirmations(bus events.Subscriber, queue string, c Confirmer) error {
	return bus.QueueSubscribe(events.BookingCreated, queue, func(msg *events.Message) {
		HandleBookingCreated(c, msg)
	})
}

// HandleBookingCreated processes one message. Failures are logged; the
// booking itself is already stored.
func HandleBookingCreated(c Confirmer, msg *events.Message) {
	var ev events.BookingCreatedEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		logger.Error("Invalid booking event", "error", err, "subject", msg.Subject)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := c.SendConfirmation(ctx, ev); err != nil {
		logger.Error("Booking confirmation failed", "error", err, "booking_id", ev.BookingID)
		return
	}
	logger.Info("Booking confirmation sent", "booking_id", ev.BookingID)
}
