package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/yousefihsm/natours/pkg/logger"
	"github.com/yousefihsm/natours/pkg/metrics"
)

// RequestID adds a unique request ID to each request
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), logger.RequestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logging logs HTTP requests with structured logging
func Logging(next http.Handler) http.Handler {
	return middleware.RequestLogger(&StructuredLogger{})(next)
}

type StructuredLogger struct{}

func (l *StructuredLogger) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &StructuredLogEntry{request: r}
}

type StructuredLogEntry struct {
	request *http.Request
}

func (l *StructuredLogEntry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra interface{}) {
	logger.InfoContext(l.request.Context(), "HTTP request completed",
		"method", l.request.Method,
		"path", l.request.URL.Path,
		"status", status,
		"bytes", bytes,
		"elapsed_ms", elapsed.Milliseconds(),
		"user_agent", l.request.UserAgent(),
		"remote_addr", l.request.RemoteAddr,
	)
}

func (l *StructuredLogEntry) Panic(v interface{}, stack []byte) {
	logger.ErrorContext(l.request.Context(), "HTTP request panic",
		"panic", v,
		"stack", string(stack),
		"method", l.request.Method,
		"path", l.request.URL.Path,
	)
}

// Recover turns a panic into a 500 response.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.ErrorContext(r.Context(), "Panic recovered", "error", rec, "stack", string(debug.Stack()))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"Internal server error","code":"INTERNAL_ERROR"}`))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ServiceName adds service name to context for logging
func ServiceName(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), logger.ServiceKey, name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Metrics serves /metrics and records per-route request metrics for
// everything else.
func Metrics(next http.Handler) http.Handler {
	promHandler := metrics.Handler()
	instrumented := metrics.Middleware(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			promHandler.ServeHTTP(w, r)
			return
		}
		instrumented.ServeHTTP(w, r)
	})
}

// Health provides health check endpoint
func Health(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IdempotencyStore caches a finished response under a hashed key.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// maxIdempotentBody bounds how much of a request body is read for hashing.
// Larger requests bypass the cache.
const maxIdempotentBody = 1 << 20

// IdempotencyMiddleware replays the stored response for a repeated
// Idempotency-Key. The key is scoped to the route and the caller's
// credentials. Reusing a key with a different body is rejected with 422.
// Responses that set a cookie or carry a session token are never cached.
func IdempotencyMiddleware(store IdempotencyStore, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("Idempotency-Key")
			if key == "" || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			bodyHash, ok := hashBody(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			hashedKey := idempotencyKey(r, key)

			if existing, err := store.Get(r.Context(), hashedKey); err == nil && existing != "" {
				status, storedHash, body := decodeCached(existing)
				if storedHash != bodyHash {
					writeIdempotencyConflict(w)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(status)
				_, _ = w.Write([]byte(body))
				return
			} else if err != nil {
				logger.WarnContext(r.Context(), "Idempotency lookup failed", "error", err)
			}

			recorder := &responseRecorder{ResponseWriter: w}
			next.ServeHTTP(recorder, r)

			status := recorder.status()
			if status < 200 || status >= 300 || !replayable(w.Header(), recorder.body) {
				return
			}
			if err := store.Set(r.Context(), hashedKey, encodeCached(status, bodyHash, recorder.body), ttl); err != nil {
				logger.WarnContext(r.Context(), "Idempotency store failed", "error", err)
			}
		})
	}
}

// hashBody digests the request body and puts it back for the next handler.
// It reports false when the body is too large or unreadable.
func hashBody(r *http.Request) (string, bool) {
	if r.Body == nil || r.Body == http.NoBody {
		return fmt.Sprintf("%x", sha256.Sum256(nil)), true
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotentBody+1))
	if err != nil {
		r.Body = io.NopCloser(bytes.NewReader(data))
		return "", false
	}
	if len(data) > maxIdempotentBody {
		r.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(data), r.Body), r.Body}
		return "", false
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return fmt.Sprintf("%x", sha256.Sum256(data)), true
}

// replayable reports whether a response may be served to a later request.
// Anything that hands out credentials is excluded.
func replayable(h http.Header, body []byte) bool {
	if len(h.Values("Set-Cookie")) > 0 {
		return false
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err == nil {
		if _, ok := top["token"]; ok {
			return false
		}
	}
	return true
}

func writeIdempotencyConflict(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "fail",
		"error":  "This Idempotency-Key was already used with a different request.",
		"code":   "IDEMPOTENCY_KEY_REUSED",
	})
}

func idempotencyKey(r *http.Request, key string) string {
	hasher := sha256.New()
	hasher.Write([]byte(r.URL.Path))
	hasher.Write([]byte{0})
	hasher.Write([]byte(r.Header.Get("Authorization")))
	if c, err := r.Cookie("jwt"); err == nil {
		hasher.Write([]byte(c.Value))
	}
	hasher.Write([]byte{0})
	hasher.Write([]byte(key))
	return fmt.Sprintf("idempotency:%x", hasher.Sum(nil))
}

func encodeCached(status int, bodyHash string, body []byte) string {
	return strconv.Itoa(status) + "\n" + bodyHash + "\n" + string(body)
}

func decodeCached(v string) (int, string, string) {
	head, rest, ok := strings.Cut(v, "\n")
	if !ok {
		return http.StatusOK, "", v
	}
	status, err := strconv.Atoi(head)
	if err != nil {
		return http.StatusOK, "", v
	}
	bodyHash, body, ok := strings.Cut(rest, "\n")
	if !ok {
		return status, "", rest
	}
	return status, bodyHash, body
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       []byte
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	if r.statusCode == 0 {
		r.statusCode = statusCode
	}
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *responseRecorder) Write(body []byte) (int, error) {
	if r.statusCode == 0 {
		r.statusCode = http.StatusOK
	}
	r.body = append(r.body, body...)
	return r.ResponseWriter.Write(body)
}

func (r *responseRecorder) status() int {
	if r.statusCode == 0 {
		return http.StatusOK
	}
	return r.statusCode
}
