package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yousefihsm/natours/internal/domain"
	"github.com/yousefihsm/natours/internal/http/handlers"
	"github.com/yousefihsm/natours/internal/http/middleware"
)

type testAPI struct {
	handler  http.Handler
	auth     *fakeAuth
	tours    *fakeTours
	bookings *fakeBookings
}

func newTestAPI(t *testing.T, mutate ...func(*handlers.Config)) *testAPI {
	t.Helper()
	api := &testAPI{
		auth: newFakeAuth(),
		tours: &fakeTours{tours: []domain.Tour{
			{ID: "1", Name: "The Forest Hiker", Slug: "the-forest-hiker", Price: 397},
			{ID: "2", Name: "The Secret Valley", Slug: "the-secret-valley", Price: 50, SecretTour: true},
		}},
		bookings: &fakeBookings{bookings: []domain.Booking{
			{ID: "B1", TourID: "1", UserID: "U", Price: 397, Paid: true},
		}},
	}
	cfg := handlers.Config{
		Auth:        api.auth,
		Tours:       api.tours,
		Bookings:    api.bookings,
		CookieTTL:   90 * 24 * time.Hour,
		CORSOrigins: []string{"http://localhost:3000"},
	}
	for _, m := range mutate {
		m(&cfg)
	}
	api.handler = handlers.NewRouter(cfg)
	return api
}

func (a *testAPI) do(method, path, body string, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, o := range opts {
		o(req)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func cookie(value string) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "jwt", Value: value}) }
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "jwt" {
			return c
		}
	}
	return nil
}

const signupBody = `{"name":"Leo Gillespie","email":"leo@example.com","password":"pass1234","passwordConfirm":"pass1234"}`

func TestSignup_SetsCookieAndReturnsToken(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/api/v1/users/signup", signupBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "new-token", body["token"])
	assert.NotContains(t, rec.Body.String(), "secret-hash")

	c := sessionCookie(rec)
	require.NotNil(t, c)
	assert.Equal(t, "new-token", c.Value)
	assert.True(t, c.HttpOnly)
	assert.False(t, c.Secure)
}

func TestSignup_CookieSecureBehindTLSProxy(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodPost, "/api/v1/users/signup", signupBody, func(r *http.Request) {
		r.Header.Set("X-Forwarded-Proto", "https")
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	c := sessionCookie(rec)
	require.NotNil(t, c)
	assert.True(t, c.Secure)
}

func TestSignup_ValidationAndBadJSON(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/api/v1/users/signup", `{"name":"Leo Gillespie","email":"leo@example.com","password":"pass1234","passwordConfirm":"nope1234"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "fail", body["status"])
	assert.Equal(t, "INVALID_INPUT", body["code"])

	rec = api.do(http.MethodPost, "/api/v1/users/signup", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignup_IdempotencyKeyIsNotReplayed(t *testing.T) {
	store := &memStore{data: map[string]string{}}
	api := newTestAPI(t, func(c *handlers.Config) {
		c.Idempotency = store
		c.IdempotencyTTL = time.Hour
	})

	withKey := func(r *http.Request) { r.Header.Set("Idempotency-Key", "signup-1") }
	first := api.do(http.MethodPost, "/api/v1/users/signup", signupBody, withKey)
	second := api.do(http.MethodPost, "/api/v1/users/signup",
		`{"name":"Mal Lory","email":"mal@example.com","password":"other123","passwordConfirm":"other123"}`, withKey)

	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Empty(t, second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, "mal@example.com", decode(t, second)["user"].(map[string]any)["email"])
	assert.Equal(t, 2, api.auth.signups)
	assert.Empty(t, store.data)
}

func TestCheckoutSession_IdempotencyKey(t *testing.T) {
	store := &memStore{data: map[string]string{}}
	api := newTestAPI(t, func(c *handlers.Config) {
		c.Idempotency = store
		c.IdempotencyTTL = time.Hour
	})
	withKey := func(r *http.Request) { r.Header.Set("Idempotency-Key", "checkout-1") }

	first := api.do(http.MethodPost, "/api/v1/bookings/checkout-session/1", "", bearer("user-token"), withKey)
	again := api.do(http.MethodPost, "/api/v1/bookings/checkout-session/1", "", bearer("user-token"), withKey)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "true", again.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, first.Body.String(), again.Body.String())
	assert.Len(t, api.bookings.checkouts, 1)

	// Same key, different body.
	reused := api.do(http.MethodPost, "/api/v1/bookings/checkout-session/1", `{"quantity":2}`, bearer("user-token"), withKey)
	assert.Equal(t, http.StatusUnprocessableEntity, reused.Code)
	assert.Len(t, api.bookings.checkouts, 1)

	// Same key, different caller.
	other := api.do(http.MethodPost, "/api/v1/bookings/checkout-session/1", "", bearer("admin-token"), withKey)
	require.Equal(t, http.StatusOK, other.Code)
	assert.Empty(t, other.Header().Get("Idempotent-Replayed"))
	require.Len(t, api.bookings.checkouts, 2)
	assert.Equal(t, "A", api.bookings.checkouts[1].userID)
}

func TestLogin_FailureIsUnauthorized(t *testing.T) {
	api := newTestAPI(t)
	api.auth.loginErr = domain.AuthError("Incorrect email or password.")

	rec := api.do(http.MethodPost, "/api/v1/users/login", `{"email":"a@x.com","password":"short"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "UNAUTHORIZED", body["code"])
	assert.Equal(t, "Incorrect email or password.", body["error"])
	assert.Nil(t, sessionCookie(rec))
}

func TestLogin_RateLimited(t *testing.T) {
	calls := 0
	api := newTestAPI(t, func(c *handlers.Config) {
		c.RateLimit = func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(http.StatusTooManyRequests)
			})
		}
	})

	rec := api.do(http.MethodPost, "/api/v1/users/login", `{"email":"a@x.com","password":"pass1234"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	rec = api.do(http.MethodPost, "/api/v1/users/forgotPassword", `{"email":"a@x.com"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 2, calls)

	// signup is not behind the limiter
	rec = api.do(http.MethodPost, "/api/v1/users/signup", signupBody)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestLogin_RateLimitByClientAddress(t *testing.T) {
	limited := func(trustProxy bool) *testAPI {
		return newTestAPI(t, func(c *handlers.Config) {
			c.TrustProxy = trustProxy
			c.RateLimit = middleware.NewRateLimiter(&memCounter{counts: map[string]int64{}}, middleware.RateLimitConfig{
				Requests: 2,
				Window:   15 * time.Minute,
			}).Middleware()
		})
	}
	login := func(api *testAPI, forwardedFor string) int {
		return api.do(http.MethodPost, "/api/v1/users/login", `{"email":"a@x.com","password":"pass1234"}`, func(r *http.Request) {
			r.RemoteAddr = "192.0.2.10:51000"
			r.Header.Set("X-Forwarded-For", forwardedFor)
		}).Code
	}

	// Rotating the header does not reset the window.
	direct := limited(false)
	assert.Equal(t, http.StatusOK, login(direct, "198.51.100.1"))
	assert.Equal(t, http.StatusOK, login(direct, "198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, login(direct, "198.51.100.3"))

	proxied := limited(true)
	assert.Equal(t, http.StatusOK, login(proxied, "198.51.100.1"))
	assert.Equal(t, http.StatusOK, login(proxied, "198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, login(proxied, "198.51.100.1"))
	assert.Equal(t, http.StatusOK, login(proxied, "198.51.100.2"))
}

func TestLogout_OverwritesCookie(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodGet, "/api/v1/users/logout", "")
	require.Equal(t, http.StatusOK, rec.Code)

	c := sessionCookie(rec)
	require.NotNil(t, c)
	assert.Equal(t, "loggedout", c.Value)
	assert.True(t, c.HttpOnly)
	assert.WithinDuration(t, time.Now().Add(10*time.Second), c.Expires, 2*time.Second)
}

func TestForgotAndResetPassword(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/api/v1/users/forgotPassword", `{"email":"leo@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Token sent to e-mail.", decode(t, rec)["message"])
	assert.Equal(t, "http://example.com/api/v1/users/resetPassword", api.auth.lastForgot)

	api.auth.forgotErr = domain.DependencyError("There was an error sending the email. Try again later!", errors.New("smtp down"))
	rec = api.do(http.MethodPost, "/api/v1/users/forgotPassword", `{"email":"leo@example.com"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", decode(t, rec)["code"])

	rec = api.do(http.MethodPatch, "/api/v1/users/resetPassword/abc123", `{"password":"newpass99","passwordConfirm":"newpass99"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc123", api.auth.lastReset)
	assert.Equal(t, "fresh-token", sessionCookie(rec).Value)

	api.auth.resetErr = domain.TokenError("Token is invalid or has expired.")
	rec = api.do(http.MethodPatch, "/api/v1/users/resetPassword/abc123", `{"password":"newpass99","passwordConfirm":"newpass99"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", decode(t, rec)["code"])
}

func TestProtect_TokenTransport(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/api/v1/users/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodGet, "/api/v1/users/me", "", bearer("user-token"))
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "leo@example.com", data["user"].(map[string]any)["email"])

	rec = api.do(http.MethodGet, "/api/v1/users/me", "", cookie("user-token"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodGet, "/api/v1/users/me", "", cookie("loggedout"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodGet, "/api/v1/users/me", "", bearer("forged"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDeleteMe(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodDelete, "/api/v1/users/deleteMe", "", bearer("user-token"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"U"}, api.auth.deactivated)
}

func TestUpdateMyPassword_ReissuesToken(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodPatch, "/api/v1/users/updateMyPassword",
		`{"currentPassword":"pass1234","newPassword":"newpass99","newPasswordConfirm":"newpass99"}`, bearer("user-token"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fresh-token", decode(t, rec)["token"])
}

func TestTours_VisibilityAndWrites(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/api/v1/tours", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["results"])

	rec = api.do(http.MethodGet, "/api/v1/tours", "", bearer("admin-token"))
	assert.EqualValues(t, 2, decode(t, rec)["results"])

	rec = api.do(http.MethodGet, "/api/v1/tours/the-secret-valley", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	body := `{"name":"The Snow Adventurer","duration":4,"maxGroupSize":10,"difficulty":"difficult","price":997,"summary":"Snow","imageCover":"tour-3-cover.jpg"}`
	rec = api.do(http.MethodPost, "/api/v1/tours", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodPost, "/api/v1/tours", body, bearer("user-token"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decode(t, rec)["code"])

	rec = api.do(http.MethodPost, "/api/v1/tours", body, bearer("admin-token"))
	require.Equal(t, http.StatusCreated, rec.Code)
	tour := decode(t, rec)["data"].(map[string]any)["tour"].(map[string]any)
	assert.Equal(t, "the-snow-adventurer", tour["slug"])

	rec = api.do(http.MethodDelete, "/api/v1/tours/1", "", bearer("admin-token"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCheckoutSession(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/api/v1/bookings/checkout-session/1", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, api.bookings.checkouts)

	rec = api.do(http.MethodGet, "/api/v1/bookings/checkout-session/1", "", bearer("user-token"))
	require.Equal(t, http.StatusOK, rec.Code)
	sess := decode(t, rec)["session"].(map[string]any)
	assert.Equal(t, "cs_test_1", sess["id"])

	require.Len(t, api.bookings.checkouts, 1)
	assert.Equal(t, "1", api.bookings.checkouts[0].tourID)
	assert.Equal(t, "U", api.bookings.checkouts[0].userID)
	assert.Equal(t, "http://example.com", api.bookings.checkouts[0].baseURL)
}

func TestBookings_MineAndAdmin(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/api/v1/bookings/me", "", bearer("user-token"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["results"])

	rec = api.do(http.MethodGet, "/api/v1/bookings", "", bearer("user-token"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodPost, "/api/v1/bookings", `{"tour":"1","user":"U"}`, bearer("admin-token"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(http.MethodGet, "/api/v1/bookings/nope", "", bearer("admin-token"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodDelete, "/api/v1/bookings/B1", "", bearer("admin-token"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestWebhook_PassesRawBodyAndSignature(t *testing.T) {
	api := newTestAPI(t)
	payload := `{"id":"evt_1","type":"checkout.session.completed"}`

	rec := api.do(http.MethodPost, "/webhook-checkout", payload, func(r *http.Request) {
		r.Header.Set("Stripe-Signature", "t=1,v1=abc")
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	assert.Equal(t, payload, string(api.bookings.payload))
	assert.Equal(t, "t=1,v1=abc", api.bookings.signature)
}

func TestWebhook_ErrorStatuses(t *testing.T) {
	api := newTestAPI(t)

	api.bookings.webhookErr = domain.SignatureError(errors.New("bad sig"))
	rec := api.do(http.MethodPost, "/webhook-checkout", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_SIGNATURE", decode(t, rec)["code"])

	api.bookings.webhookErr = domain.DependencyError("Could not record the booking.", errors.New("db down"))
	rec = api.do(http.MethodPost, "/webhook-checkout", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestWebhook_RejectsOversizedPayload(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodPost, "/webhook-checkout", strings.Repeat("x", 70000))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, 0, api.bookings.webhookHits)
}

func TestUnknownRoute(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodGet, "/api/v1/nothing-here", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, rec)["code"])
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
