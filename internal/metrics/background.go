package metrics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

// SnapshotFunc builds the engine snapshot to publish.
type SnapshotFunc func() *types.EngineSnapshot

// BackgroundPublisher pushes a fresh engine snapshot to a publisher every
// interval, plus once more on shutdown so the last state is not lost.
type BackgroundPublisher struct {
	publisher types.Publisher
	build     SnapshotFunc
	interval  time.Duration
	logger    *slog.Logger

	published atomic.Int64

	mu   sync.Mutex
	stop context.CancelFunc
	done chan struct{}
}

func NewBackgroundPublisher(publisher types.Publisher, interval time.Duration, build SnapshotFunc, logger *slog.Logger) *BackgroundPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackgroundPublisher{
		publisher: publisher,
		build:     build,
		interval:  interval,
		logger:    logger.With("component", "snapshot-publisher"),
	}
}

// Start launches the loop; it ends when ctx ends or Stop is called.
// A second Start while running is ignored.
func (b *BackgroundPublisher) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stop != nil {
		return
	}
	ctx, b.stop = context.WithCancel(ctx)
	b.done = make(chan struct{})
	go b.loop(ctx, b.done)
	b.logger.Info("Snapshot publishing started", "interval", b.interval)
}

// Stop ends the loop and waits for the final publish.
func (b *BackgroundPublisher) Stop() {
	b.mu.Lock()
	stop, done := b.stop, b.done
	b.stop, b.done = nil, nil
	b.mu.Unlock()
	if stop == nil {
		return
	}
	stop()
	<-done
	b.logger.Info("Snapshot publishing stopped", "published", b.published.Load())
}

func (b *BackgroundPublisher) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	tick := time.NewTicker(b.interval)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			b.PublishNow()
		case <-ctx.Done():
			b.PublishNow()
			return
		}
	}
}

// PublishNow builds and publishes one snapshot. A panicking snapshot
// builder or publisher is logged and skipped.
func (b *BackgroundPublisher) PublishNow() {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Snapshot publish panicked", "panic", r)
		}
	}()
	if b.build == nil {
		return
	}
	s := b.build()
	if s == nil {
		return
	}
	b.publisher.PublishSnapshot(s)
	b.published.Add(1)
}

// Published returns how many snapshots went out.
func (b *BackgroundPublisher) Published() int64 {
	return b.published.Load()
}
