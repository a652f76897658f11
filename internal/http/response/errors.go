package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/yousefihsm/natours/internal/domain"
	"github.com/yousefihsm/natours/pkg/logger"
)

// ErrorResponse represents a structured JSON error response
type ErrorResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Common error codes
const (
	CodeInvalidInput          = "INVALID_INPUT"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeForbidden             = "FORBIDDEN"
	CodeNotFound              = "NOT_FOUND"
	CodeConflict              = "CONFLICT"
	CodeRateLimit             = "RATE_LIMIT_EXCEEDED"
	CodeInvalidToken          = "INVALID_TOKEN"
	CodeInvalidSignature      = "INVALID_SIGNATURE"
	CodeDependencyUnavailable = "DEPENDENCY_UNAVAILABLE"
	CodeInternalError         = "INTERNAL_ERROR"
)

// WriteJSON writes data with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// WriteError writes a structured JSON error response
func WriteError(w http.ResponseWriter, statusCode int, message string, code string) {
	status := "fail"
	if statusCode >= http.StatusInternalServerError {
		status = "error"
	}
	WriteJSON(w, statusCode, ErrorResponse{Status: status, Error: message, Code: code})
}

// FromError writes err using the status and code of its domain kind.
// Errors without a kind are logged and reported as a generic 500.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		logger.ErrorContext(r.Context(), "Unhandled error", "error", err, "path", r.URL.Path)
		InternalError(w, "Something went very wrong!")
		return
	}

	if de.Kind == domain.KindDependency {
		logger.ErrorContext(r.Context(), "Dependency failure", "error", err, "path", r.URL.Path)
	}
	WriteError(w, de.Status(), de.Message, codeFor(de.Kind))
}

func codeFor(kind domain.ErrorKind) string {
	switch kind {
	case domain.KindValidation:
		return CodeInvalidInput
	case domain.KindAuth:
		return CodeUnauthorized
	case domain.KindForbidden:
		return CodeForbidden
	case domain.KindNotFound:
		return CodeNotFound
	case domain.KindToken:
		return CodeInvalidToken
	case domain.KindSignature:
		return CodeInvalidSignature
	case domain.KindDependency:
		return CodeDependencyUnavailable
	case domain.KindConflict:
		return CodeConflict
	default:
		return CodeInternalError
	}
}

// Convenience functions for common errors
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message, CodeInvalidInput)
}

func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message, CodeUnauthorized)
}

func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message, CodeNotFound)
}

func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message, CodeInternalError)
}
