package acre

import (
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

var (
	// ErrCacheMiss indicates that a requested key was not found in the cache.
	ErrCacheMiss = types.ErrCacheMiss
	// ErrInvalidKey indicates that a cache key failed validation.
	ErrInvalidKey = types.ErrInvalidKey
	// ErrClosed indicates that the engine or a component has been closed.
	ErrClosed = types.ErrClosed
	// ErrCircuitOpen indicates that a circuit breaker rejected the call.
	ErrCircuitOpen = types.ErrCircuitOpen
	// ErrBulkheadFull indicates that the bulkhead is at capacity.
	ErrBulkheadFull = types.ErrBulkheadFull
	// ErrBulkheadTimeout indicates that the bulkhead acquisition timed out.
	ErrBulkheadTimeout = types.ErrBulkheadTimeout
	// ErrStrategiesExhausted indicates that every recovery strategy failed.
	ErrStrategiesExhausted = types.ErrStrategiesExhausted
	// ErrInvalidConfig indicates a configuration or registration error.
	ErrInvalidConfig = types.ErrInvalidConfig
	// ErrUnknownBackend indicates a selector call for an unregistered backend.
	ErrUnknownBackend = types.ErrUnknownBackend
	// ErrSinkUnavailable indicates that the alert stream cannot be written.
	ErrSinkUnavailable = types.ErrSinkUnavailable
)

type (
	// ExhaustedError is returned when every recovery strategy failed.
	ExhaustedError = types.ExhaustedError
	// CircuitOpenError is returned when a breaker rejects a call.
	CircuitOpenError = types.CircuitOpenError
	// PanicError carries a panic recovered from an operation.
	PanicError = types.PanicError
)

// Transient marks err as retryable regardless of what it wraps.
func Transient(err error) error {
	return types.Transient(err)
}

// Permanent marks err as not retryable.
func Permanent(err error) error {
	return types.Permanent(err)
}

// IsCircuitOpen returns true if the error indicates an open circuit breaker.
func IsCircuitOpen(err error) bool {
	return types.IsCircuitOpen(err)
}

// IsExhausted returns true if every recovery strategy failed.
func IsExhausted(err error) bool {
	return types.IsExhausted(err)
}

// IsRetryable returns true if the retry strategy would try again after err.
func IsRetryable(err error) bool {
	return types.IsRetryable(err)
}
