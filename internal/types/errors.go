package types

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrCacheMiss           = errors.New("acre: key not found")
	ErrCacheCorrupted      = errors.New("acre: cache entry corrupted")
	ErrInvalidKey          = errors.New("acre: invalid key")
	ErrClosed              = errors.New("acre: closed")
	ErrCircuitOpen         = errors.New("acre: circuit breaker open")
	ErrBulkheadFull        = errors.New("acre: bulkhead at capacity")
	ErrBulkheadTimeout     = errors.New("acre: bulkhead timeout")
	ErrNoFallback          = errors.New("acre: no fallback registered")
	ErrStrategiesExhausted = errors.New("acre: all recovery strategies exhausted")
	ErrDeadlineWouldExceed = errors.New("acre: deadline would be exceeded before next attempt")
	ErrInvalidConfig       = errors.New("acre: invalid configuration")
	ErrUnknownBackend      = errors.New("acre: unknown backend")
	ErrInvalidBackend      = errors.New("acre: invalid backend")
	ErrSinkUnavailable     = errors.New("acre: sink unavailable")
	ErrSinkQueueFull       = errors.New("acre: sink queue full")
)

// CacheError describes a failure inside a cache payload store.
type CacheError struct {
	Op    string
	Key   string
	Store string
	Err   error
}

func (e *CacheError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("cache %s on %s [%s]: %v", e.Op, e.Store, e.Key, e.Err)
	}
	return fmt.Sprintf("cache %s on %s: %v", e.Op, e.Store, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

func NewCacheError(op, key, store string, err error) *CacheError {
	return &CacheError{
		Op:    op,
		Key:   key,
		Store: store,
		Err:   err,
	}
}

// CacheCorruptionError is raised when a stored payload cannot be decoded.
// It never leaves the cache: callers only ever observe a miss.
type CacheCorruptionError struct {
	Key string
	Err error
}

func (e *CacheCorruptionError) Error() string {
	return fmt.Sprintf("cache entry %q corrupted: %v", e.Key, e.Err)
}

func (e *CacheCorruptionError) Unwrap() error { return e.Err }

func (e *CacheCorruptionError) Is(target error) bool { return target == ErrCacheCorrupted }

// TransientError marks a failure that is worth retrying.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that must not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// Permanent wraps err as a PermanentError. A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// CircuitOpenError is returned when a breaker rejects a call without running it.
type CircuitOpenError struct {
	Operation  string
	RetryAfter time.Duration
}

// Error names the wait only when one is known; a HALF_OPEN breaker busy with
// its trial call has none.
func (e *CircuitOpenError) Error() string {
	if e.RetryAfter <= 0 {
		return fmt.Sprintf("circuit breaker open for %q", e.Operation)
	}
	return fmt.Sprintf("circuit breaker open for %q (retry after %s)", e.Operation, e.RetryAfter)
}

func (e *CircuitOpenError) Is(target error) bool { return target == ErrCircuitOpen }

// PanicError carries a panic recovered from a wrapped operation.
type PanicError struct {
	Operation string
	Value     any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("operation %q panicked: %v", e.Operation, e.Value)
}

// ExhaustedError is returned when every recovery strategy failed.
type ExhaustedError struct {
	Operation string
	Attempted []string
	Err       error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("operation %q failed after strategies [%s]: %v",
		e.Operation, strings.Join(e.Attempted, ", "), e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

func (e *ExhaustedError) Is(target error) bool { return target == ErrStrategiesExhausted }

func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

func IsPanic(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe)
}

func IsExhausted(err error) bool {
	return errors.Is(err, ErrStrategiesExhausted)
}

// IsRetryable reports whether the retry strategy may run another attempt after err.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// An explicit transient marker wins over anything it wraps.
	if IsTransient(err) {
		return true
	}

	if IsPermanent(err) || IsPanic(err) || IsCircuitOpen(err) {
		return false
	}

	if errors.Is(err, ErrClosed) || errors.Is(err, ErrInvalidKey) {
		return false
	}

	if errors.Is(err, ErrBulkheadFull) || errors.Is(err, ErrBulkheadTimeout) {
		return false
	}

	// The caller gave up; another attempt cannot help.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	return true
}
