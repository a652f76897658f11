package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/yousefihsm/natours/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url,
		nats.Name("natours-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "bytes", len(payload))
	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	return n.conn.Drain()
}

// LocalBus delivers events inside the process when no NATS server is
// configured. Each queue group receives a message once, on its own goroutine.
type LocalBus struct {
	mu     sync.RWMutex
	groups map[string]map[string]func(msg *Message)
	wg     sync.WaitGroup
	closed bool
}

func NewLocalBus() *LocalBus {
	return &LocalBus{groups: make(map[string]map[string]func(msg *Message))}
}

func (b *LocalBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errors.New("event bus closed")
	}
	for _, handler := range b.groups[subject] {
		b.wg.Add(1)
		go func(h func(msg *Message)) {
			defer b.wg.Done()
			h(&Message{Subject: subject, Data: payload, Timestamp: time.Now()})
		}(handler)
	}
	logger.DebugContext(ctx, "Published local event", "subject", subject, "bytes", len(payload))
	return nil
}

// QueueSubscribe registers handler for subject. A second handler in the same
// queue group replaces the first.
func (b *LocalBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.groups[subject] == nil {
		b.groups[subject] = make(map[string]func(msg *Message))
	}
	b.groups[subject][queue] = handler
	return nil
}

// Close stops accepting events and waits for in-flight deliveries.
func (b *LocalBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.wg.Wait()
	return nil
}

const (
	BookingCreated = "booking.created"
	BookingDeleted = "booking.deleted"
	UserSignedUp   = "user.signed_up"
)

type BookingCreatedEvent struct {
	BookingID        string    `json:"booking_id"`
	TourID           string    `json:"tour_id"`
	TourName         string    `json:"tour_name"`
	UserID           string    `json:"user_id"`
	UserEmail        string    `json:"user_email"`
	UserName         string    `json:"user_name"`
	Price            float64   `json:"price"`
	PaymentSessionID string    `json:"payment_session_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type BookingDeletedEvent struct {
	BookingID string    `json:"booking_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

type UserSignedUpEvent struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
