package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/config"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

const (
	// HealthyRecoveryRate is the recovery rate above which the executor reports healthy.
	HealthyRecoveryRate = 0.8

	genericDegradedMessage = "service temporarily degraded for %s"
	genericFailedMessage   = "operation failed"
)

// Stats counts recovery outcomes across every Execute call.
type Stats struct {
	TotalErrors      int64            `json:"totalErrors"`
	RecoveredErrors  int64            `json:"recoveredErrors"`
	FailedRecoveries int64            `json:"failedRecoveries"`
	RecoveryMethods  map[string]int64 `json:"recoveryMethods"`
}

// RecoveryRate is recovered / (recovered + total), or 1 with no errors at all.
func (s Stats) RecoveryRate() float64 {
	denom := s.RecoveredErrors + s.TotalErrors
	if denom == 0 {
		return 1.0
	}
	return float64(s.RecoveredErrors) / float64(denom)
}

// Registrations lists the operations with registered recovery settings.
type Registrations struct {
	RetryConfigs      []string `json:"retryConfigs"`
	Fallbacks         []string `json:"fallbacks"`
	CircuitBreakers   []string `json:"circuitBreakers"`
	DegradedResponses []string `json:"degradedResponses"`
	DefaultResults    []string `json:"defaultResults"`
}

// HealthReport is the executor's view for external monitoring.
//
//nolint:govet // Report struct - field order matches the JSON output
type HealthReport struct {
	Timestamp            time.Time                  `json:"timestamp"`
	OverallHealth        types.HealthStatus         `json:"overallHealth"`
	RecoveryRate         float64                    `json:"recoveryRate"`
	TotalErrors          int64                      `json:"totalErrors"`
	RecoveredErrors      int64                      `json:"recoveredErrors"`
	FailedRecoveries     int64                      `json:"failedRecoveries"`
	RecoveryMethods      map[string]int64           `json:"recoveryMethods"`
	CircuitBreakers      map[string]BreakerSnapshot `json:"circuitBreakers"`
	RegisteredOperations Registrations              `json:"registeredOperations"`
	Bulkheads            map[string]BulkheadStats   `json:"bulkheads,omitempty"`
}

// OpenBreakers counts breakers currently rejecting calls.
func (r *HealthReport) OpenBreakers() int {
	n := 0
	for _, b := range r.CircuitBreakers {
		if b.State == StateOpen {
			n++
		}
	}
	return n
}

type degradedResponse struct {
	message string
	payload any
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = logger }
}

func WithMetrics(m types.MetricsRecorder) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

func WithAlertSink(s AlertSink) ExecutorOption {
	return func(e *Executor) { e.alerts = s }
}

// WithDefaultRetry sets the retry settings for unregistered operations.
func WithDefaultRetry(cfg config.RetryConfig) ExecutorOption {
	return func(e *Executor) { e.defaultRetry = cfg }
}

// WithDefaultCircuitBreaker sets the settings of lazily created breakers.
func WithDefaultCircuitBreaker(cfg config.CircuitBreakerConfig) ExecutorOption {
	return func(e *Executor) { e.defaultBreaker = cfg }
}

// WithDefaultChain sets the chain used when Execute is given no strategies.
func WithDefaultChain(strategies ...Strategy) ExecutorOption {
	return func(e *Executor) { e.defaultChain = strategies }
}

// WithHighSeverityMarkers sets the operation name fragments that raise alerts
// at high severity.
func WithHighSeverityMarkers(markers ...string) ExecutorOption {
	return func(e *Executor) { e.markers = markers }
}

// WithMiddleware wraps every primary operation, first middleware outermost.
func WithMiddleware(mws ...Middleware) ExecutorOption {
	return func(e *Executor) { e.middleware = append(e.middleware, mws...) }
}

// WithBulkhead isolates primary operations in per-operation compartments
// and adds the compartments to the health report.
func WithBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) {
		e.bulkhead = b
		e.middleware = append(e.middleware, b.Middleware())
	}
}

// WithClock overrides time.Now for breakers and alert timestamps.
func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) { e.now = now }
}

// Executor runs operations through an ordered chain of recovery strategies.
// Registrations are expected at startup; Execute is safe for concurrent use.
type Executor struct {
	mu        sync.RWMutex
	retriers  map[string]*Retrier
	breakers  map[string]*CircuitBreaker
	fallbacks map[string]Operation
	degraded  map[string]degradedResponse
	defaults  map[string]any

	statsMu sync.Mutex
	stats   Stats

	defaultRetry   config.RetryConfig
	defaultBreaker config.CircuitBreakerConfig
	defaultChain   []Strategy
	markers        []string
	middleware     []Middleware
	bulkhead       *Bulkhead

	alerts  AlertSink
	metrics types.MetricsRecorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewExecutor creates an executor with the default retry and breaker settings.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		retriers:       make(map[string]*Retrier),
		breakers:       make(map[string]*CircuitBreaker),
		fallbacks:      make(map[string]Operation),
		degraded:       make(map[string]degradedResponse),
		defaults:       make(map[string]any),
		stats:          Stats{RecoveryMethods: make(map[string]int64)},
		defaultRetry:   config.DefaultRetryConfig(),
		defaultBreaker: config.DefaultCircuitBreakerConfig(),
		defaultChain:   DefaultStrategies(),
		markers:        []string{"database"},
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("component", "recovery-executor")
	return e
}

// NewExecutorFromConfig builds an executor and applies the per-operation
// settings of cfg. Options are applied after the config.
func NewExecutorFromConfig(cfg config.RecoveryConfig, opts ...ExecutorOption) (*Executor, error) {
	if err := cfg.Retry.Validate(); err != nil {
		return nil, fmt.Errorf("default retry: %w", err)
	}
	if err := cfg.CircuitBreaker.Validate(); err != nil {
		return nil, fmt.Errorf("default circuit breaker: %w", err)
	}

	base := []ExecutorOption{
		WithDefaultRetry(cfg.Retry),
		WithDefaultCircuitBreaker(cfg.CircuitBreaker),
	}
	if len(cfg.DefaultStrategies) > 0 {
		chain, err := ParseStrategies(cfg.DefaultStrategies)
		if err != nil {
			return nil, err
		}
		base = append(base, WithDefaultChain(chain...))
	}
	if len(cfg.HighSeverityMarkers) > 0 {
		base = append(base, WithHighSeverityMarkers(cfg.HighSeverityMarkers...))
	}
	if cfg.Bulkhead.Enabled {
		base = append(base, WithBulkhead(NewBulkhead(cfg.Bulkhead)))
	}

	e := NewExecutor(append(base, opts...)...)

	for _, name := range slices.Sorted(maps.Keys(cfg.Operations)) {
		op := cfg.Operations[name]
		if op.Retry != nil {
			if err := e.RegisterRetryConfig(name, *op.Retry); err != nil {
				return nil, err
			}
		}
		if op.CircuitBreaker != nil {
			if err := e.RegisterCircuitBreaker(name, *op.CircuitBreaker); err != nil {
				return nil, err
			}
		}
		if op.DegradedMessage != "" {
			e.RegisterDegradedResponse(name, op.DegradedMessage, nil)
		}
	}
	return e, nil
}

// RegisterRetryConfig sets the retry settings for one operation.
func (e *Executor) RegisterRetryConfig(operation string, cfg config.RetryConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("retry config for %q: %w", operation, err)
	}
	r := NewRetrier(cfg)

	e.mu.Lock()
	e.retriers[operation] = r
	e.mu.Unlock()
	return nil
}

// RegisterCircuitBreaker installs a breaker for one operation, replacing any
// existing one.
func (e *Executor) RegisterCircuitBreaker(operation string, cfg config.CircuitBreakerConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("circuit breaker config for %q: %w", operation, err)
	}
	cb := e.newBreaker(operation, cfg)

	e.mu.Lock()
	e.breakers[operation] = cb
	e.mu.Unlock()
	return nil
}

// RegisterFallback sets the single fallback of an operation.
func (e *Executor) RegisterFallback(operation string, fn Operation) error {
	if fn == nil {
		return fmt.Errorf("%w: nil fallback for %q", types.ErrInvalidConfig, operation)
	}
	e.mu.Lock()
	e.fallbacks[operation] = fn
	e.mu.Unlock()
	return nil
}

// RegisterDegradedResponse sets what graceful degradation returns for an operation.
func (e *Executor) RegisterDegradedResponse(operation, message string, payload any) {
	e.mu.Lock()
	e.degraded[operation] = degradedResponse{message: message, payload: payload}
	e.mu.Unlock()
}

// RegisterDefaultResult sets what alert-and-continue returns for an operation.
func (e *Executor) RegisterDefaultResult(operation string, result any) {
	e.mu.Lock()
	e.defaults[operation] = result
	e.mu.Unlock()
}

// Breaker returns the breaker of an operation, if one exists yet.
func (e *Executor) Breaker(operation string) (*CircuitBreaker, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cb, ok := e.breakers[operation]
	return cb, ok
}

// Execute runs op through strategies in order and returns the first result
// that is not an error. An empty chain uses the executor's default chain.
// When every strategy fails the last error is returned inside an
// *types.ExhaustedError listing the strategies attempted.
//
// When the chain contains StrategyCircuitBreaker every call of op made by
// this Execute, retries included, goes through the operation's breaker.
func (e *Executor) Execute(ctx context.Context, operation string, strategies []Strategy, op Operation, args ...any) (any, error) {
	if len(strategies) == 0 {
		strategies = e.defaultChain
	}
	start := time.Now()

	wrapped := op
	if len(e.middleware) > 0 {
		wrapped = Chain(operation, op, e.middleware...)
	}
	primary := func(ctx context.Context) (any, error) {
		return e.invoke(ctx, operation, wrapped, args)
	}
	if slices.Contains(strategies, StrategyCircuitBreaker) {
		cb := e.breakerFor(operation)
		guarded := primary
		primary = func(ctx context.Context) (any, error) {
			return cb.Execute(ctx, guarded)
		}
	}

	run := &chainRun{
		executor:  e,
		operation: operation,
		primary:   primary,
		args:      args,
		attempted: make([]string, 0, len(strategies)),
	}

	for _, strategy := range strategies {
		run.attempted = append(run.attempted, strategy.String())

		result, err := run.step(ctx, strategy)
		if err == nil {
			e.succeeded(operation, strategy, run.failed, time.Since(start))
			return result, nil
		}
		run.fail(strategy, err)
	}

	e.statsMu.Lock()
	e.stats.FailedRecoveries++
	e.statsMu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordRecovery(operation, "exhausted", false, time.Since(start))
	}
	e.logger.Error("All recovery strategies failed",
		"operation", operation,
		"strategies_attempted", run.attempted,
		"total_time", time.Since(start),
		"error", run.lastErr,
	)

	return nil, &types.ExhaustedError{
		Operation: operation,
		Attempted: run.attempted,
		Err:       run.lastErr,
	}
}

// chainRun carries the state of one Execute call.
type chainRun struct {
	executor  *Executor
	operation string
	primary   func(context.Context) (any, error)
	args      []any
	attempted []string
	lastErr   error
	failed    bool
}

func (r *chainRun) fail(strategy Strategy, err error) {
	r.failed = true
	r.lastErr = err

	e := r.executor
	e.statsMu.Lock()
	e.stats.TotalErrors++
	e.statsMu.Unlock()

	e.logger.Debug("Recovery strategy failed",
		"operation", r.operation,
		"strategy", strategy.String(),
		"error", err,
	)
}

func (r *chainRun) step(ctx context.Context, strategy Strategy) (any, error) {
	e := r.executor

	switch strategy {
	case StrategyRetry:
		if err := ctx.Err(); err != nil {
			return nil, joinCause(r.lastErr, err)
		}
		retrier := e.retrierFor(r.operation)
		return retrier.Do(ctx, r.primary, func(attempt int, err error) {
			e.logger.Debug("Retry attempt failed",
				"operation", r.operation,
				"attempt", attempt,
				"max_attempts", retrier.cfg.MaxAttempts,
				"error", err,
			)
		})

	case StrategyCircuitBreaker:
		if err := ctx.Err(); err != nil {
			return nil, joinCause(r.lastErr, err)
		}
		return r.primary(ctx)

	case StrategyFallback:
		if result, err, done := r.primaryFirst(ctx, strategy); done {
			return result, err
		}
		return r.fallback(ctx)

	case StrategyGracefulDegradation:
		if result, err, done := r.primaryFirst(ctx, strategy); done {
			return result, err
		}
		return e.degrade(r.operation, r.lastErr), nil

	case StrategyAlertAndContinue:
		if result, err, done := r.primaryFirst(ctx, strategy); done {
			return result, err
		}
		return e.alertAndContinue(ctx, r.operation, r.lastErr), nil

	default:
		return nil, fmt.Errorf("%w: unknown recovery strategy %d", types.ErrInvalidConfig, int(strategy))
	}
}

// primaryFirst runs the primary once when nothing has failed yet in this
// chain, so that recovery-only strategies also work as the first step.
// done reports that the step is settled by the primary's success. A failed
// primary here is an error of its own, apart from the step's outcome.
func (r *chainRun) primaryFirst(ctx context.Context, strategy Strategy) (result any, err error, done bool) {
	if r.failed {
		return nil, nil, false
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		r.fail(strategy, ctxErr)
		return nil, nil, false
	}
	result, err = r.primary(ctx)
	if err == nil {
		return result, nil, true
	}
	r.fail(strategy, err)
	return nil, nil, false
}

func (r *chainRun) fallback(ctx context.Context) (any, error) {
	e := r.executor

	e.mu.RLock()
	fn, ok := e.fallbacks[r.operation]
	e.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %w", types.ErrNoFallback, r.lastErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, joinCause(r.lastErr, err)
	}

	e.logger.Info("Fallback executed",
		"operation", r.operation,
		"original_error", r.lastErr,
	)

	result, err := e.invoke(ctx, r.operation, fn, r.args)
	if err != nil {
		e.logger.Warn("Fallback failed",
			"operation", r.operation,
			"original_error", r.lastErr,
			"error", err,
		)
		return nil, fmt.Errorf("fallback for %q: %w", r.operation, err)
	}
	return result, nil
}

func (e *Executor) degrade(operation string, cause error) *DegradedResult {
	e.mu.RLock()
	resp, ok := e.degraded[operation]
	e.mu.RUnlock()

	result := &DegradedResult{Operation: operation, Success: false}
	if ok {
		result.Message = resp.message
		result.Payload = resp.payload
	}
	if result.Message == "" {
		result.Message = fmt.Sprintf(genericDegradedMessage, operation)
	}

	e.logger.Warn("Graceful degradation",
		"operation", operation,
		"error", cause,
		"degraded_response", true,
	)
	return result
}

func (e *Executor) alertAndContinue(ctx context.Context, operation string, cause error) any {
	alert := types.Alert{
		ID:        uuid.NewString(),
		Timestamp: e.now(),
		Operation: operation,
		ErrorType: errorType(cause),
		Message:   errorMessage(cause),
		Severity:  e.severity(operation),
	}

	if e.alerts != nil {
		// The alert is best effort: a sink failure must not fail the call.
		if err := e.alerts.SendAlert(context.WithoutCancel(ctx), alert); err != nil {
			e.logger.Warn("Failed to deliver alert", "operation", operation, "error", err)
		}
	} else {
		e.logger.Error("Operation alert",
			"operation", operation,
			"severity", alert.Severity.String(),
			"error_type", alert.ErrorType,
			"error", cause,
			"requires_attention", true,
		)
	}

	e.mu.RLock()
	result, ok := e.defaults[operation]
	e.mu.RUnlock()
	if ok {
		return result
	}
	return &DegradedResult{Operation: operation, Success: false, Message: genericFailedMessage}
}

func (e *Executor) severity(operation string) types.Severity {
	lower := strings.ToLower(operation)
	for _, marker := range e.markers {
		if marker != "" && strings.Contains(lower, strings.ToLower(marker)) {
			return types.SeverityHigh
		}
	}
	return types.SeverityMedium
}

// succeeded counts a recovery when the primary call had failed earlier in
// the chain. A first-try success is not a recovery and is not reported.
func (e *Executor) succeeded(operation string, strategy Strategy, recovered bool, elapsed time.Duration) {
	if !recovered {
		return
	}
	e.statsMu.Lock()
	e.stats.RecoveredErrors++
	e.stats.RecoveryMethods[strategy.String()]++
	e.statsMu.Unlock()

	e.logger.Info("Error recovered",
		"operation", operation,
		"strategy", strategy.String(),
		"recovery_time", elapsed,
	)
	if e.metrics != nil {
		e.metrics.RecordRecovery(operation, strategy.String(), true, elapsed)
	}
}

// invoke runs fn and turns a panic into a *types.PanicError.
func (e *Executor) invoke(ctx context.Context, operation string, fn Operation, args []any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Recovered panic in operation", "operation", operation, "panic", r)
			result, err = nil, &types.PanicError{Operation: operation, Value: r}
		}
	}()
	return fn(ctx, args...)
}

func (e *Executor) retrierFor(operation string) *Retrier {
	e.mu.RLock()
	r, ok := e.retriers[operation]
	e.mu.RUnlock()
	if ok {
		return r
	}
	return NewRetrier(e.defaultRetry)
}

func (e *Executor) breakerFor(operation string) *CircuitBreaker {
	e.mu.RLock()
	cb, ok := e.breakers[operation]
	e.mu.RUnlock()
	if ok {
		return cb
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if cb, ok := e.breakers[operation]; ok {
		return cb
	}
	cb = e.newBreaker(operation, e.defaultBreaker)
	e.breakers[operation] = cb
	return cb
}

func (e *Executor) newBreaker(operation string, cfg config.CircuitBreakerConfig) *CircuitBreaker {
	cb := NewCircuitBreaker(operation, cfg)
	cb.now = e.now
	cb.SetOnStateChange(func(name string, from, to State) {
		e.logger.Info("Circuit breaker state changed",
			"operation", name,
			"from", from.String(),
			"to", to.String(),
		)
		if e.metrics != nil {
			e.metrics.RecordCircuitBreakerStateChange(name, from.String(), to.String())
		}
	})
	return cb
}

// Stats returns a copy of the recovery counters.
func (e *Executor) Stats() Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	s := e.stats
	s.RecoveryMethods = maps.Clone(e.stats.RecoveryMethods)
	return s
}

// ResetStats zeroes the recovery counters. Breakers keep their state.
func (e *Executor) ResetStats() {
	e.statsMu.Lock()
	e.stats = Stats{RecoveryMethods: make(map[string]int64)}
	e.statsMu.Unlock()
}

// HealthReport summarizes recovery counters and every breaker.
func (e *Executor) HealthReport() *HealthReport {
	stats := e.Stats()
	rate := stats.RecoveryRate()

	report := &HealthReport{
		Timestamp:        e.now(),
		OverallHealth:    types.HealthStatusDegraded,
		RecoveryRate:     rate,
		TotalErrors:      stats.TotalErrors,
		RecoveredErrors:  stats.RecoveredErrors,
		FailedRecoveries: stats.FailedRecoveries,
		RecoveryMethods:  stats.RecoveryMethods,
	}
	if rate > HealthyRecoveryRate {
		report.OverallHealth = types.HealthStatusHealthy
	}

	e.mu.RLock()
	breakers := maps.Clone(e.breakers)
	report.RegisteredOperations = Registrations{
		RetryConfigs:      slices.Sorted(maps.Keys(e.retriers)),
		Fallbacks:         slices.Sorted(maps.Keys(e.fallbacks)),
		CircuitBreakers:   slices.Sorted(maps.Keys(e.breakers)),
		DegradedResponses: slices.Sorted(maps.Keys(e.degraded)),
		DefaultResults:    slices.Sorted(maps.Keys(e.defaults)),
	}
	e.mu.RUnlock()

	report.CircuitBreakers = make(map[string]BreakerSnapshot, len(breakers))
	for name, cb := range breakers {
		report.CircuitBreakers[name] = cb.Snapshot()
	}
	if e.bulkhead != nil {
		report.Bulkheads = e.bulkhead.Snapshot()
	}
	return report
}

func errorType(err error) string {
	switch {
	case err == nil:
		return "none"
	case types.IsPanic(err):
		return "panic"
	case types.IsCircuitOpen(err):
		return "circuit_open"
	case errors.Is(err, types.ErrDeadlineWouldExceed), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case types.IsPermanent(err):
		return "permanent"
	case types.IsTransient(err):
		return "transient"
	default:
		return "error"
	}
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
