// Package errors provides the unified error type for marketguard.
// Rejections produced by the resilience layer carry a machine-readable code so
// callers can tell a rate-limit denial from an open circuit and choose their
// own backoff policy.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Resilience-layer constructors ---

// RateLimited creates an AppError for an admission denied by the rate limiter.
// retryAfter is the time until the most constrained window resets.
func RateLimited(endpoint string, retryAfter time.Duration) *AppError {
	return &AppError{
		Code:       ErrCodeRateLimited,
		Message:    fmt.Sprintf("Rate limit exceeded for %s. Retry in %.1fs.", endpoint, retryAfter.Seconds()),
		HTTPStatus: http.StatusTooManyRequests,
		Retryable:  true,
		Details: map[string]any{
			"endpoint":            endpoint,
			"retry_after_seconds": retryAfter.Seconds(),
		},
	}
}

// CircuitOpen creates an AppError for a call rejected by an open circuit breaker.
func CircuitOpen(name string) *AppError {
	return &AppError{
		Code:       ErrCodeCircuitOpen,
		Message:    fmt.Sprintf("Circuit breaker %s is open; failing fast.", name),
		HTTPStatus: http.StatusServiceUnavailable,
		Retryable:  true,
		Details:    map[string]any{"breaker": name},
	}
}

// Timeout creates an AppError for a guarded call that exceeded its call timeout.
func Timeout(operation string, limit time.Duration) *AppError {
	return &AppError{
		Code:       ErrCodeTimeout,
		Message:    fmt.Sprintf("Operation %s exceeded its %s timeout.", operation, limit),
		HTTPStatus: http.StatusGatewayTimeout,
		Retryable:  true,
		Details:    map[string]any{"operation": operation, "timeout_seconds": limit.Seconds()},
	}
}

// Upstream creates an AppError for a failure raised by the guarded operation itself.
func Upstream(operation string, cause error) *AppError {
	return &AppError{
		Code:       ErrCodeUpstream,
		Message:    fmt.Sprintf("Upstream call %s failed.", operation),
		HTTPStatus: http.StatusBadGateway,
		Retryable:  true,
		Details:    map[string]any{"operation": operation},
		Cause:      cause,
	}
}

// Persistence creates an AppError for a cache disk read/write failure.
// These are logged and recovered locally, never surfaced to callers.
func Persistence(cacheName string, cause error) *AppError {
	return &AppError{
		Code:       ErrCodePersistence,
		Message:    fmt.Sprintf("Cache %s persistence failed; continuing in memory.", cacheName),
		HTTPStatus: http.StatusInternalServerError,
		Retryable:  false,
		Details:    map[string]any{"cache": cacheName},
		Cause:      cause,
	}
}

// --- Admin-surface constructors ---

// NotFound creates an AppError for a resource that was not found.
func NotFound(resource, name string) *AppError {
	details := map[string]any{"resource": resource}
	if name != "" {
		details["name"] = name
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: "not found",
		HTTPStatus: http.StatusNotFound, Retryable: false, Details: details,
	}
}

// InvalidInput creates an AppError for invalid input.
func InvalidInput(reason string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// Validation creates an AppError for a failed validation.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// Internal creates an AppError wrapping an unexpected internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}
