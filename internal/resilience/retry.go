package resilience

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/config"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

// Retrier runs an operation up to MaxAttempts times with exponential backoff.
type Retrier struct {
	cfg   config.RetryConfig
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	totalRetries atomic.Int64
	totalSuccess atomic.Int64
	totalFailure atomic.Int64
}

// NewRetrier creates a retrier. The config is expected to be validated.
func NewRetrier(cfg config.RetryConfig) *Retrier {
	return &Retrier{
		cfg:   cfg,
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// Config returns the retry settings.
func (r *Retrier) Config() config.RetryConfig {
	return r.cfg
}

// Do runs fn until it succeeds, returns a non-retryable error or runs out of
// attempts. The context is checked before every attempt and every sleep; when
// the context deadline would pass during the next sleep Do gives up at once
// and the returned error also matches types.ErrDeadlineWouldExceed.
// onFailure, if set, is called after each failed attempt.
func (r *Retrier) Do(ctx context.Context, fn func(context.Context) (any, error), onFailure func(attempt int, err error)) (any, error) {
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, joinCause(lastErr, err)
		}

		result, err := fn(ctx)
		if err == nil {
			r.totalSuccess.Add(1)
			return result, nil
		}

		lastErr = err
		if onFailure != nil {
			onFailure(attempt, err)
		}

		if !IsRetryable(err) {
			r.totalFailure.Add(1)
			return nil, err
		}

		if attempt == r.cfg.MaxAttempts {
			break
		}

		delay := r.Delay(attempt)
		if deadline, ok := ctx.Deadline(); ok && r.now().Add(delay).After(deadline) {
			r.totalFailure.Add(1)
			return nil, errors.Join(lastErr, types.ErrDeadlineWouldExceed)
		}

		r.totalRetries.Add(1)
		if err := r.sleep(ctx, delay); err != nil {
			r.totalFailure.Add(1)
			return nil, joinCause(lastErr, err)
		}
	}

	r.totalFailure.Add(1)
	return nil, lastErr
}

// Delay returns the pause after failed attempt n (1-based):
// min(baseDelay * backoffFactor^(n-1), maxDelay).
func (r *Retrier) Delay(attempt int) time.Duration {
	backoff := float64(r.cfg.BaseDelay) * math.Pow(r.cfg.BackoffFactor, float64(attempt-1))
	if backoff > float64(r.cfg.MaxDelay) || math.IsInf(backoff, 0) {
		backoff = float64(r.cfg.MaxDelay)
	}
	return time.Duration(backoff)
}

// Stats returns retry statistics.
func (r *Retrier) Stats() (retries, success, failure int64) {
	return r.totalRetries.Load(), r.totalSuccess.Load(), r.totalFailure.Load()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// joinCause keeps the operation's own error visible next to a context error.
func joinCause(cause, ctxErr error) error {
	if cause == nil {
		return ctxErr
	}
	return errors.Join(cause, ctxErr)
}
