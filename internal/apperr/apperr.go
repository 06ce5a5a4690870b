// Package apperr is the error signaling facility shared by the service and
// HTTP layers. Every error carries a stable Kind that maps to a status code.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Kind classifies an AppError.
type Kind string

const (
	KindBadRequest      Kind = "BAD_REQUEST"
	KindUnauthorized    Kind = "UNAUTHORIZED"
	KindNotFound        Kind = "NOT_FOUND"
	KindConflict        Kind = "CONFLICT"
	KindTooManyRequests Kind = "TOO_MANY_REQUESTS"
	KindInternal        Kind = "INTERNAL_ERROR"
)

// StatusCode returns the HTTP status for k.
func (k Kind) StatusCode() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// AppError represents an application error with HTTP context
type AppError struct {
	Kind      Kind   `json:"-"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`

	retryAfter time.Duration
	cause      error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// StatusCode returns the HTTP status for the error's kind.
func (e *AppError) StatusCode() int {
	return e.Kind.StatusCode()
}

// WithDetails returns a copy of e carrying details.
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// WithRetryAfter returns a copy of e that tells clients to wait d before
// retrying.
func (e *AppError) WithRetryAfter(d time.Duration) *AppError {
	cp := *e
	cp.retryAfter = d
	return &cp
}

// RetryAfter is the wait sent in the Retry-After header, or 0 when none was
// set.
func (e *AppError) RetryAfter() time.Duration {
	return e.retryAfter
}

// ErrorResponse is the JSON response format for errors
type ErrorResponse struct {
	Error *AppError `json:"error"`
}

// WriteJSON writes the error as JSON response
func (e *AppError) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case e.retryAfter > 0:
		secs := int64((e.retryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	case e.Kind == KindTooManyRequests || e.Retryable:
		w.Header().Set("Retry-After", "1")
	}
	w.WriteHeader(e.StatusCode())
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: e})
}

// ============================================================
// CONSTRUCTORS
// ============================================================

func BadRequest(message string) *AppError {
	return &AppError{Kind: KindBadRequest, Code: string(KindBadRequest), Message: message}
}

func Unauthorized(message string) *AppError {
	return &AppError{Kind: KindUnauthorized, Code: string(KindUnauthorized), Message: message}
}

func NotFound(message string) *AppError {
	return &AppError{Kind: KindNotFound, Code: string(KindNotFound), Message: message}
}

func Conflict(message string) *AppError {
	return &AppError{Kind: KindConflict, Code: string(KindConflict), Message: message}
}

func TooManyRequests(message string) *AppError {
	return &AppError{Kind: KindTooManyRequests, Code: string(KindTooManyRequests), Message: message}
}

// Internal hides cause from clients behind a generic message; the cause
// stays reachable through errors.Unwrap for logging.
func Internal(cause error) *AppError {
	return &AppError{
		Kind:    KindInternal,
		Code:    string(KindInternal),
		Message: "An internal server error occurred",
		cause:   cause,
	}
}

// Unavailable is an Internal error the caller may retry.
func Unavailable(cause error) *AppError {
	e := Internal(cause)
	e.Retryable = true
	return e
}

// InvalidJSON reports a request body that could not be decoded.
func InvalidJSON(details string) *AppError {
	return &AppError{
		Kind:    KindBadRequest,
		Code:    "INVALID_JSON",
		Message: "Invalid JSON in request body",
		Details: details,
	}
}

// ============================================================
// INSPECTION
// ============================================================

// As extracts an *AppError from err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns err's Kind, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// From converts any error into an *AppError, wrapping foreign errors as
// Internal.
func From(err error) *AppError {
	if appErr, ok := As(err); ok {
		return appErr
	}
	return Internal(err)
}
