package resilience

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/config"
)

const (
	defaultBulkheadSlots   = 100
	defaultBulkheadQueue   = 50
	defaultBulkheadTimeout = 100 * time.Millisecond
)

// Bulkhead isolates operations from each other: every operation name gets
// its own compartment of slots and waiting room, so a saturated operation
// rejects its own callers without starving the rest.
type Bulkhead struct {
	slots   int
	queue   int
	timeout time.Duration

	mu           sync.RWMutex
	compartments map[string]*compartment
}

type compartment struct {
	slots chan struct{}

	active   atomic.Int32
	waiting  atomic.Int32
	executed atomic.Int64
	rejected atomic.Int64
}

// BulkheadStats describes one compartment.
type BulkheadStats struct {
	MaxConcurrent int   `json:"maxConcurrent"`
	MaxQueue      int   `json:"maxQueue"`
	Active        int   `json:"active"`
	Queued        int   `json:"queued"`
	Available     int   `json:"available"`
	TotalExecuted int64 `json:"totalExecuted"`
	TotalRejected int64 `json:"totalRejected"`
}

// NewBulkhead sizes every compartment from cfg. Zero settings fall back to
// 100 slots, 50 waiters and a 100ms wait.
func NewBulkhead(cfg config.BulkheadConfig) *Bulkhead {
	b := &Bulkhead{
		slots:        cfg.MaxConcurrent,
		queue:        cfg.MaxQueue,
		timeout:      cfg.AcquireTimeout,
		compartments: make(map[string]*compartment),
	}
	if b.slots <= 0 {
		b.slots = defaultBulkheadSlots
	}
	if b.queue <= 0 {
		b.queue = defaultBulkheadQueue
	}
	if b.timeout <= 0 {
		b.timeout = defaultBulkheadTimeout
	}
	return b
}

func (b *Bulkhead) compartment(operation string) *compartment {
	b.mu.RLock()
	c, ok := b.compartments[operation]
	b.mu.RUnlock()
	if ok {
		return c
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok = b.compartments[operation]; !ok {
		c = &compartment{slots: make(chan struct{}, b.slots)}
		b.compartments[operation] = c
	}
	return c
}

// Execute runs fn inside the compartment for operation. It returns
// ErrBulkheadFull when the waiting room is full, ErrBulkheadTimeout when no
// slot frees up in time and ctx.Err() when ctx ends first.
func (b *Bulkhead) Execute(ctx context.Context, operation string, fn func(context.Context) (any, error)) (any, error) {
	c := b.compartment(operation)
	if err := b.enter(ctx, c); err != nil {
		if IsBulkheadError(err) {
			return nil, fmt.Errorf("%w: %s", err, operation)
		}
		return nil, err
	}
	c.active.Add(1)
	defer func() {
		c.active.Add(-1)
		<-c.slots
	}()

	result, err := fn(ctx)
	c.executed.Add(1)
	return result, err
}

func (b *Bulkhead) enter(ctx context.Context, c *compartment) error {
	select {
	case c.slots <- struct{}{}:
		return nil
	default:
	}

	if int(c.waiting.Add(1)) > b.queue {
		c.waiting.Add(-1)
		c.rejected.Add(1)
		return ErrBulkheadFull
	}
	defer c.waiting.Add(-1)

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case c.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		c.rejected.Add(1)
		return ctx.Err()
	case <-timer.C:
		c.rejected.Add(1)
		return ErrBulkheadTimeout
	}
}

// Stats reports the compartment for operation, false if it never ran.
func (b *Bulkhead) Stats(operation string) (BulkheadStats, bool) {
	b.mu.RLock()
	c, ok := b.compartments[operation]
	b.mu.RUnlock()
	if !ok {
		return BulkheadStats{}, false
	}
	return b.stats(c), true
}

// Snapshot reports every compartment keyed by operation.
func (b *Bulkhead) Snapshot() map[string]BulkheadStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]BulkheadStats, len(b.compartments))
	for name, c := range b.compartments {
		out[name] = b.stats(c)
	}
	return out
}

func (b *Bulkhead) stats(c *compartment) BulkheadStats {
	return BulkheadStats{
		MaxConcurrent: b.slots,
		MaxQueue:      b.queue,
		Active:        int(c.active.Load()),
		Queued:        int(c.waiting.Load()),
		Available:     b.slots - len(c.slots),
		TotalExecuted: c.executed.Load(),
		TotalRejected: c.rejected.Load(),
	}
}

// Middleware routes each wrapped operation through its own compartment.
func (b *Bulkhead) Middleware() Middleware {
	return func(name string, next Operation) Operation {
		return func(ctx context.Context, args ...any) (any, error) {
			return b.Execute(ctx, name, func(ctx context.Context) (any, error) {
				return next(ctx, args...)
			})
		}
	}
}
