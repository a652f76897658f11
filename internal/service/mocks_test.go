package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/yousefihsm/natours/internal/domain"
	"github.com/yousefihsm/natours/internal/platform/payments"
	"github.com/yousefihsm/natours/pkg/events"
)

// ---------- Clock ----------

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// ---------- Mocks ----------

var errStoreDown = errors.New("connection refused")

type mockUsers struct {
	mu      sync.Mutex
	byID    map[string]*domain.User
	findErr error
}

func newMockUsers() *mockUsers {
	return &mockUsers{byID: make(map[string]*domain.User)}
}

func (m *mockUsers) get(id string) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := *m.byID[id]
	return &u
}

func (m *mockUsers) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if strings.EqualFold(existing.Email, u.Email) {
			return domain.ErrDuplicate
		}
	}
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *mockUsers) FindAnyByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findAny(func(u *domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (m *mockUsers) find(match func(u *domain.User) bool) (*domain.User, error) {
	return m.findAny(func(u *domain.User) bool { return u.Active && match(u) })
}

func (m *mockUsers) findAny(match func(u *domain.User) bool) (*domain.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, u := range m.byID {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.find(func(u *domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (m *mockUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.find(func(u *domain.User) bool { return u.ID == id })
}

func resetMatches(u *domain.User, hash string, now time.Time) bool {
	return u.PasswordResetToken != "" && u.PasswordResetToken == hash &&
		u.PasswordResetExpires != nil && u.PasswordResetExpires.After(now)
}

func (m *mockUsers) FindByResetToken(_ context.Context, hash string, now time.Time) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.find(func(u *domain.User) bool { return resetMatches(u, hash, now) })
}

func (m *mockUsers) SetResetToken(_ context.Context, id, hash string, expires time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || !u.Active {
		return domain.ErrNotFound
	}
	u.PasswordResetToken = hash
	u.PasswordResetExpires = &expires
	return nil
}

func (m *mockUsers) ClearResetToken(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
	return nil
}

func (m *mockUsers) ConsumeResetToken(_ context.Context, hash string, now time.Time, pwHash string, changedAt time.Time) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Active && resetMatches(u, hash, now) {
			u.PasswordHash = pwHash
			u.PasswordChangedAt = &changedAt
			u.PasswordResetToken = ""
			u.PasswordResetExpires = nil
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockUsers) UpdatePassword(_ context.Context, id, pwHash string, changedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || !u.Active {
		return domain.ErrNotFound
	}
	u.PasswordHash = pwHash
	u.PasswordChangedAt = &changedAt
	return nil
}

func (m *mockUsers) Deactivate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || !u.Active {
		return domain.ErrNotFound
	}
	u.Active = false
	return nil
}

func (m *mockUsers) DeleteAll(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.byID))
	m.byID = make(map[string]*domain.User)
	return n, nil
}

type mockTours struct {
	mu    sync.Mutex
	byID  map[string]*domain.Tour
	order []string
	err   error
}

func newMockTours(ts ...domain.Tour) *mockTours {
	m := &mockTours{byID: make(map[string]*domain.Tour)}
	for i := range ts {
		m.byID[ts[i].ID] = &ts[i]
		m.order = append(m.order, ts[i].ID)
	}
	return m
}

func (m *mockTours) List(_ context.Context, f domain.TourFilter) ([]domain.Tour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := []domain.Tour{}
	for _, id := range m.order {
		if t, ok := m.byID[id]; ok && f.Visible(t) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *mockTours) Get(_ context.Context, id string, f domain.TourFilter) (*domain.Tour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	t, ok := m.byID[id]
	if !ok || !f.Visible(t) {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockTours) GetBySlug(_ context.Context, slug string, f domain.TourFilter) (*domain.Tour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		if t, ok := m.byID[id]; ok && t.Slug == slug && f.Visible(t) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockTours) Create(_ context.Context, t *domain.Tour) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Name == t.Name {
			return domain.ErrDuplicate
		}
	}
	cp := *t
	m.byID[t.ID] = &cp
	m.order = append(m.order, t.ID)
	return nil
}

func (m *mockTours) Update(_ context.Context, t *domain.Tour) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[t.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *t
	m.byID[t.ID] = &cp
	return nil
}

func (m *mockTours) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *mockTours) DeleteAll(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.byID))
	m.byID = make(map[string]*domain.Tour)
	m.order = nil
	return n, nil
}

type mockBookings struct {
	mu        sync.Mutex
	items     []domain.Booking
	createErr error
}

func (m *mockBookings) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *mockBookings) CreateIfAbsent(_ context.Context, b *domain.Booking) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return false, m.createErr
	}
	for _, existing := range m.items {
		if existing.PaymentSessionID == b.PaymentSessionID {
			return false, nil
		}
	}
	m.items = append(m.items, *b)
	return true, nil
}

func (m *mockBookings) Create(_ context.Context, b *domain.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.items = append(m.items, *b)
	return nil
}

func (m *mockBookings) Get(_ context.Context, id string) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.items {
		if b.ID == id {
			cp := b
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockBookings) List(_ context.Context) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Booking{}, m.items...), nil
}

func (m *mockBookings) ListByUser(_ context.Context, userID string) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Booking{}
	for _, b := range m.items {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockBookings) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, b := range m.items {
		if b.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

type sentMail struct {
	kind, to, url string
}

type mockMailer struct {
	mu         sync.Mutex
	sent       []sentMail
	resetErr   error
	welcomeErr error
}

func (m *mockMailer) record(kind, to, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{kind: kind, to: to, url: url})
}

func (m *mockMailer) last(kind string) (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].kind == kind {
			return m.sent[i], true
		}
	}
	return sentMail{}, false
}

func (m *mockMailer) SendWelcome(_ context.Context, to, _, url string) error {
	if m.welcomeErr != nil {
		return m.welcomeErr
	}
	m.record("welcome", to, url)
	return nil
}

func (m *mockMailer) SendPasswordReset(_ context.Context, to, _, url string) error {
	if m.resetErr != nil {
		return m.resetErr
	}
	m.record("reset", to, url)
	return nil
}

func (m *mockMailer) SendBookingConfirmation(_ context.Context, to, _, tour string, _ float64) error {
	m.record("booking", to, tour)
	return nil
}

type mockBus struct {
	mu       sync.Mutex
	subjects []string
	payloads []interface{}
}

func (m *mockBus) Publish(_ context.Context, subject string, data interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects = append(m.subjects, subject)
	m.payloads = append(m.payloads, data)
	return nil
}

func (m *mockBus) Close() error { return nil }

func (m *mockBus) published(subject string) []interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []interface{}
	for i, s := range m.subjects {
		if s == subject {
			out = append(out, m.payloads[i])
		}
	}
	return out
}

var _ events.Publisher = (*mockBus)(nil)

// mockGateway records checkout requests and verifies webhooks with the
// real Stripe signature check.
type mockGateway struct {
	*payments.StripeGateway
	mu       sync.Mutex
	requests []domain.CheckoutRequest
	err      error
}

func newMockGateway(secret string) *mockGateway {
	return &mockGateway{StripeGateway: payments.NewStripeGateway(payments.Config{WebhookSecret: secret})}
}

func (g *mockGateway) CreateCheckoutSession(_ context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.requests = append(g.requests, req)
	return &domain.CheckoutSession{ID: "cs_test_123", URL: "https://checkout.stripe.com/c/pay/cs_test_123"}, nil
}
