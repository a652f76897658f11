package domain

import (
	"errors"
	"net/http"
)

type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindAuth       ErrorKind = "auth"
	KindForbidden  ErrorKind = "forbidden"
	KindNotFound   ErrorKind = "not_found"
	KindToken      ErrorKind = "token"
	KindSignature  ErrorKind = "signature"
	KindDependency ErrorKind = "dependency"
	KindConflict   ErrorKind = "conflict"
)

// Error is the structured error returned by services. Message is safe to
// show to clients; Err keeps the underlying cause for logs.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status maps the error kind to an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation, KindToken, KindSignature:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func NewError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

func ValidationError(msg string) *Error { return NewError(KindValidation, msg, nil) }
func AuthError(msg string) *Error       { return NewError(KindAuth, msg, nil) }
func ForbiddenError(msg string) *Error  { return NewError(KindForbidden, msg, nil) }
func NotFoundError(msg string) *Error   { return NewError(KindNotFound, msg, nil) }
func TokenError(msg string) *Error      { return NewError(KindToken, msg, nil) }
func ConflictError(msg string) *Error   { return NewError(KindConflict, msg, nil) }

func SignatureError(cause error) *Error {
	return NewError(KindSignature, "Webhook signature verification failed.", cause)
}

func DependencyError(msg string, cause error) *Error {
	return NewError(KindDependency, msg, cause)
}

// ErrorKindOf returns the kind of the first *Error in err's chain, or "".
func ErrorKindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return ErrorKindOf(err) == kind
}

// Store-level sentinels. Repositories return these; services translate
// them into *Error values.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Payment gateway sentinels.
var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed webhook event")
)
