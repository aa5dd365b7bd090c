package scaling

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// LoadFunc reports the service's own load: average response time and the
// number of queued requests.
type LoadFunc func() (responseTime time.Duration, queueLength int)

type ReporterOption func(*Reporter)

func WithInterval(d time.Duration) ReporterOption {
	return func(r *Reporter) { r.interval = d }
}

// WithAutoApply applies every proposed action right after evaluation.
func WithAutoApply(enabled bool) ReporterOption {
	return func(r *Reporter) { r.autoApply = enabled }
}

// WithDecisionHook is called with every decision, applied or not.
func WithDecisionHook(fn func(Decision, bool)) ReporterOption {
	return func(r *Reporter) { r.onDecision = fn }
}

func WithReporterLogger(logger *slog.Logger) ReporterOption {
	return func(r *Reporter) { r.logger = logger }
}

// Reporter samples load on an interval and feeds it to a Controller.
// Nothing runs until Start is called.
type Reporter struct {
	controller *Controller
	sampler    Sampler
	load       LoadFunc
	interval   time.Duration
	autoApply  bool
	onDecision func(Decision, bool)
	logger     *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReporter creates a reporter. sampler may be nil when the load function
// covers everything; load may be nil when only host metrics matter.
func NewReporter(c *Controller, sampler Sampler, load LoadFunc, opts ...ReporterOption) *Reporter {
	r := &Reporter{
		controller: c,
		sampler:    sampler,
		load:       load,
		interval:   c.Rule().EvaluationInterval,
		autoApply:  c.Rule().AutoApply,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.interval <= 0 {
		r.interval = DefaultNextCheckIn
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("component", "scaling-reporter")
	return r
}

// Start begins the evaluation loop. The provided context controls the
// lifecycle of the background goroutine. Calling Start twice is a no-op.
func (r *Reporter) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.run(ctx)
	r.logger.Info("Scaling reporter started", "interval", r.interval, "auto_apply", r.autoApply)
}

// Stop cancels the loop and waits for it to exit.
func (r *Reporter) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
	r.logger.Info("Scaling reporter stopped")
}

func (r *Reporter) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reporter) tick(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Recovered from panic in scaling reporter", "panic", rec)
		}
	}()

	if _, _, err := r.EvaluateNow(ctx); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Warn("Scaling evaluation failed", "error", err)
	}
}

// EvaluateNow samples once, evaluates, and applies the proposal when
// auto-apply is on. It returns the decision and whether it was applied.
func (r *Reporter) EvaluateNow(ctx context.Context) (Decision, bool, error) {
	m, err := r.Collect(ctx)
	if err != nil {
		return Decision{}, false, err
	}

	decision := r.controller.Evaluate(m)
	applied := false
	if decision.Needed && r.autoApply {
		applied = r.controller.Apply(ctx, decision.Action)
	}

	r.logger.Debug("Scaling evaluated",
		"cpu_percent", m.CPUPercent,
		"memory_percent", m.MemoryPercent,
		"response_time", m.ResponseTime,
		"queue_length", m.QueueLength,
		"needed", decision.Needed,
		"applied", applied,
	)

	if r.onDecision != nil {
		r.onDecision(decision, applied)
	}
	return decision, applied, nil
}

// Collect gathers one Metrics observation.
func (r *Reporter) Collect(ctx context.Context) (Metrics, error) {
	var m Metrics
	if r.sampler != nil {
		cpuPercent, memPercent, err := r.sampler.Sample(ctx)
		if err != nil {
			return Metrics{}, err
		}
		m.CPUPercent = cpuPercent
		m.MemoryPercent = memPercent
	}
	if r.load != nil {
		m.ResponseTime, m.QueueLength = r.load()
	}
	return m, nil
}
