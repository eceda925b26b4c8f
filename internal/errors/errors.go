// Package errors provides structured error types for SiteSmith.
// It implements error classification, wrapping, and retryability detection.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of an error.
type Kind uint8

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown Kind = iota
	// KindConfig indicates a configuration error.
	KindConfig
	// KindValidation indicates a validation error.
	KindValidation
	// KindProvider indicates an external provider error.
	KindProvider
	// KindTimeout indicates a polling or deadline bound was exceeded.
	KindTimeout
	// KindStore indicates a record store persistence error.
	KindStore
	// KindNotFound indicates a resource was not found.
	KindNotFound
	// KindConflict indicates a conflict error.
	KindConflict
	// KindInternal indicates an internal error.
	KindInternal
)

// String returns a human-readable string for the error kind.
func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "configuration"
	case KindValidation:
		return "validation"
	case KindProvider:
		return "provider"
	case KindTimeout:
		return "timeout"
	case KindStore:
		return "store"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the standard error type for SiteSmith.
type Error struct {
	// Kind is the category of the error.
	Kind Kind
	// Op is the operation being performed when the error occurred.
	Op string
	// Message is a human-readable error message.
	Message string
	// Err is the underlying error.
	Err error
	// Retryable indicates whether retrying the operation may succeed.
	// Transport-level and 5xx-class provider failures are retryable;
	// validation and 4xx-class rejections are not.
	Retryable bool
	// Details contains additional context about the error.
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches this error.
// For *Error types it checks Kind, and Op when the target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op == "" {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Op == t.Op
}

// WithDetail adds a single detail to the error and returns the modified error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a new Error with the given kind and formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, kind Kind, op string, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// GetKind returns the Kind of an error.
// If the error is not an *Error, it returns KindUnknown.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind checks if an error is of a specific kind.
func IsKind(err error, kind Kind) bool {
	return GetKind(err) == kind
}

// IsRetryable returns true if the error is marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// Common error constructors for frequently used error types.

// Config creates a configuration error.
func Config(op, message string) *Error {
	return &Error{Kind: KindConfig, Op: op, Message: message}
}

// ConfigWrap wraps an error as a configuration error.
func ConfigWrap(err error, op, message string) *Error {
	return Wrap(err, KindConfig, op, message)
}

// Validation creates a validation error.
func Validation(op, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

// Provider creates a non-retryable provider rejection error (4xx-class).
func Provider(op, message string) *Error {
	return &Error{Kind: KindProvider, Op: op, Message: message}
}

// ProviderTransport creates a retryable provider transport error
// (network failures, auth transport problems, 5xx-class responses).
func ProviderTransport(op, message string) *Error {
	return &Error{Kind: KindProvider, Op: op, Message: message, Retryable: true}
}

// ProviderWrap wraps an error as a provider error, carrying retryability.
func ProviderWrap(err error, op, message string, retryable bool) *Error {
	e := Wrap(err, KindProvider, op, message)
	e.Retryable = retryable
	return e
}

// Timeout creates a timeout error for an exceeded polling bound.
func Timeout(op, message string) *Error {
	return &Error{Kind: KindTimeout, Op: op, Message: message}
}

// TimeoutWrap wraps an error as a timeout error.
func TimeoutWrap(err error, op, message string) *Error {
	return Wrap(err, KindTimeout, op, message)
}

// Store creates a record store error. Store errors are fatal to a run,
// since run state cannot be trusted if it cannot be written.
func Store(op, message string) *Error {
	return &Error{Kind: KindStore, Op: op, Message: message}
}

// StoreWrap wraps an error as a record store error.
func StoreWrap(err error, op, message string) *Error {
	return Wrap(err, KindStore, op, message)
}

// NotFound creates a not found error.
func NotFound(op, message string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: message}
}

// Conflict creates a conflict error.
func Conflict(op, message string) *Error {
	return &Error{Kind: KindConflict, Op: op, Message: message}
}

// Internal creates an internal error.
func Internal(op, message string) *Error {
	return &Error{Kind: KindInternal, Op: op, Message: message}
}

// InternalWrap wraps an error as an internal error.
func InternalWrap(err error, op, message string) *Error {
	return Wrap(err, KindInternal, op, message)
}

// RetryableHTTPStatus returns true for HTTP status codes worth retrying.
func RetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// FromHTTPStatus builds a provider error from an HTTP response status,
// classifying 5xx/429 responses as retryable and other 4xx as rejections.
func FromHTTPStatus(op string, statusCode int, body string) *Error {
	e := &Error{
		Kind:      KindProvider,
		Op:        op,
		Message:   fmt.Sprintf("provider returned status %d", statusCode),
		Retryable: RetryableHTTPStatus(statusCode),
	}
	if body != "" {
		e = e.WithDetail("body", body)
	}
	return e.WithDetail("status", statusCode)
}
