package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Resilience-layer rejections. RATE_LIMITED and CIRCUIT_OPEN are local fast-fail
// rejections that never invoked the guarded operation; TIMEOUT and UPSTREAM_ERROR
// update breaker state before propagating.
const (
	// ErrCodeRateLimited indicates admission was denied by the rate limiter.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
	// ErrCodeCircuitOpen indicates the circuit breaker rejected the call.
	ErrCodeCircuitOpen ErrorCode = "CIRCUIT_OPEN"
	// ErrCodeTimeout indicates the guarded call exceeded its call timeout.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeUpstream indicates the guarded operation itself failed.
	ErrCodeUpstream ErrorCode = "UPSTREAM_ERROR"
	// ErrCodePersistence indicates a cache disk read/write failed.
	ErrCodePersistence ErrorCode = "PERSISTENCE_ERROR"
)

// Admin-surface errors.
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeRateLimited: true,
	ErrCodeCircuitOpen: true,
	ErrCodeTimeout:     true,
	ErrCodeUpstream:    true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
