package resilience

import (
	"errors"
	"net"
	"os"
	"syscall"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

// Re-exported so callers of this package rarely need internal/types.
var (
	ErrCircuitOpen         = types.ErrCircuitOpen
	ErrBulkheadFull        = types.ErrBulkheadFull
	ErrBulkheadTimeout     = types.ErrBulkheadTimeout
	ErrNoFallback          = types.ErrNoFallback
	ErrStrategiesExhausted = types.ErrStrategiesExhausted
	ErrDeadlineWouldExceed = types.ErrDeadlineWouldExceed
)

func IsCircuitOpen(err error) bool {
	return types.IsCircuitOpen(err)
}

func IsBulkheadError(err error) bool {
	return errors.Is(err, types.ErrBulkheadFull) || errors.Is(err, types.ErrBulkheadTimeout)
}

// IsRetryable extends types.IsRetryable with network errors: connection
// resets and refusals are retried, other net errors only when they timed out.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if types.IsTransient(err) {
		return true
	}

	if !types.IsRetryable(err) {
		return false
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return true
}
