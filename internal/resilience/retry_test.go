package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/config"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

// newTestRetrier returns a retrier that records its sleeps instead of sleeping.
func newTestRetrier(cfg config.RetryConfig) (*Retrier, *[]time.Duration) {
	r := NewRetrier(cfg)
	var slept []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return r, &slept
}

func TestRetrierDelay(t *testing.T) {
	r := NewRetrier(config.RetryConfig{
		MaxAttempts:   10,
		BaseDelay:     time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
	})

	//nolint:govet // Test table - alignment not critical
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{50, 10 * time.Second},
		{5000, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt %d", tt.attempt), func(t *testing.T) {
			if got := r.Delay(tt.attempt); got != tt.want {
				t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestRetrierDo(t *testing.T) {
	cfg := config.RetryConfig{
		MaxAttempts:   3,
		BaseDelay:     10 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	}

	t.Run("succeeds on third attempt", func(t *testing.T) {
		r, slept := newTestRetrier(cfg)
		attempts := 0

		result, err := r.Do(context.Background(), func(context.Context) (any, error) {
			attempts++
			if attempts < 3 {
				return nil, errBoom
			}
			return "done", nil
		}, nil)

		if err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if result != "done" {
			t.Errorf("result = %v, want done", result)
		}
		if attempts != 3 {
			t.Errorf("attempts = %v, want 3", attempts)
		}
		want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}
		if len(*slept) != len(want) || (*slept)[0] != want[0] || (*slept)[1] != want[1] {
			t.Errorf("slept = %v, want %v", *slept, want)
		}
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		r, slept := newTestRetrier(cfg)
		attempts := 0
		var seen []int

		_, err := r.Do(context.Background(), func(context.Context) (any, error) {
			attempts++
			return nil, errBoom
		}, func(attempt int, err error) {
			seen = append(seen, attempt)
		})

		if !errors.Is(err, errBoom) {
			t.Errorf("Do() error = %v, want boom", err)
		}
		if attempts != 3 {
			t.Errorf("attempts = %v, want 3", attempts)
		}
		if len(*slept) != 2 {
			t.Errorf("sleeps = %v, want 2; no sleep after the last attempt", len(*slept))
		}
		if len(seen) != 3 || seen[2] != 3 {
			t.Errorf("onFailure attempts = %v, want [1 2 3]", seen)
		}
	})

	t.Run("permanent error is not retried", func(t *testing.T) {
		r, _ := newTestRetrier(cfg)
		attempts := 0

		_, err := r.Do(context.Background(), func(context.Context) (any, error) {
			attempts++
			return nil, types.Permanent(errBoom)
		}, nil)

		if !types.IsPermanent(err) {
			t.Errorf("Do() error = %v, want permanent", err)
		}
		if attempts != 1 {
			t.Errorf("attempts = %v, want 1", attempts)
		}
	})

	t.Run("canceled context stops before first attempt", func(t *testing.T) {
		r, _ := newTestRetrier(cfg)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		_, err := r.Do(ctx, func(context.Context) (any, error) {
			called = true
			return nil, nil
		}, nil)

		if called {
			t.Error("operation ran with canceled context")
		}
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Do() error = %v, want context.Canceled", err)
		}
	})

	t.Run("stops when the next delay would pass the deadline", func(t *testing.T) {
		r, slept := newTestRetrier(config.RetryConfig{
			MaxAttempts:   5,
			BaseDelay:     time.Hour,
			MaxDelay:      time.Hour,
			BackoffFactor: 2.0,
		})
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		attempts := 0
		_, err := r.Do(ctx, func(context.Context) (any, error) {
			attempts++
			return nil, errBoom
		}, nil)

		if !errors.Is(err, ErrDeadlineWouldExceed) {
			t.Errorf("Do() error = %v, want ErrDeadlineWouldExceed", err)
		}
		if !errors.Is(err, errBoom) {
			t.Errorf("Do() error = %v, want the operation error kept", err)
		}
		if attempts != 1 {
			t.Errorf("attempts = %v, want 1", attempts)
		}
		if len(*slept) != 0 {
			t.Errorf("slept = %v, want none", *slept)
		}
	})

	t.Run("stats", func(t *testing.T) {
		r, _ := newTestRetrier(cfg)
		attempts := 0
		_, _ = r.Do(context.Background(), func(context.Context) (any, error) {
			attempts++
			if attempts == 1 {
				return nil, errBoom
			}
			return nil, nil
		}, nil)
		_, _ = r.Do(context.Background(), failing, nil)

		retries, success, failure := r.Stats()
		if retries != 3 || success != 1 || failure != 1 {
			t.Errorf("Stats() = %d/%d/%d, want 3/1/1", retries, success, failure)
		}
	})
}

type timeoutErr struct{ timeout bool }

func (e timeoutErr) Error() string   { return "net" }
func (e timeoutErr) Timeout() bool   { return e.timeout }
func (e timeoutErr) Temporary() bool { return false }

var _ net.Error = timeoutErr{}

func TestIsRetryable(t *testing.T) {
	//nolint:govet // Test table - alignment not critical
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errBoom, true},
		{"transient", types.Transient(errBoom), true},
		{"permanent", types.Permanent(errBoom), false},
		{"transient wraps permanent", types.Transient(types.Permanent(errBoom)), true},
		{"circuit open", &types.CircuitOpenError{Operation: "x"}, false},
		{"panic", &types.PanicError{Operation: "x", Value: "bad"}, false},
		{"bulkhead full", ErrBulkheadFull, false},
		{"canceled", context.Canceled, false},
		{"connection refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"net timeout", timeoutErr{timeout: true}, true},
		{"net non-timeout", timeoutErr{timeout: false}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
