package acre

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/balancer"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/cache"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/config"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/metrics"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/metrics/datadog"
	prommetrics "github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/metrics/prometheus"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/notify"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/resilience"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/scaling"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

// Engine owns one instance of every component, wired together from a Config.
// Background work (metrics publishing, scaling evaluation, stream writes)
// only runs between Start and Close.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger

	cache      *cache.AdaptiveCache
	aside      *cache.Aside
	executor   *resilience.Executor
	selector   *balancer.Selector
	controller *scaling.Controller
	reporter   *scaling.Reporter

	tracker    *metrics.Tracker
	publisher  types.Publisher
	background *metrics.BackgroundPublisher
	collector  *prommetrics.Collector
	sinks      notify.Multi
	stream     *notify.RedisStream

	mu      sync.Mutex
	started bool
	closed  bool
}

// New builds an engine from cfg. A nil cfg means DefaultConfig.
func New(cfg *Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		cfg:     cfg,
		logger:  logger.With("component", "engine"),
		tracker: metrics.NewTracker(),
	}

	var err error
	e.publisher, err = newPublisher(cfg.Metrics, o.Publisher, logger)
	if err != nil {
		return nil, err
	}

	recorders := metrics.Recorders{e.tracker}
	if cfg.Metrics.Enabled {
		recorders = append(recorders, metrics.NewForwarder(e.publisher))
	}
	recorders = append(recorders, o.Metrics...)

	e.sinks, e.stream, err = notify.Build(cfg.Alerts, cfg.Redis, e.publisher, logger)
	if err != nil {
		_ = e.publisher.Close()
		return nil, err
	}

	cacheOpts := []cache.Option{cache.WithMetrics(recorders)}
	if cfg.KeyValidation.Enabled {
		cacheOpts = append(cacheOpts, cache.WithKeyValidator(types.NewKeyValidator(cfg.KeyValidation.ToTypesConfig())))
	}
	e.cache, err = cache.NewFromConfig(cfg.Cache, logger, cacheOpts...)
	if err != nil {
		return nil, e.abort(err)
	}

	asideOpts := []cache.AsideOption{cache.WithAsideLogger(logger)}
	if cfg.Cache.DefaultTTL > 0 {
		asideOpts = append(asideOpts, cache.WithTTLPolicy(cache.DefaultTTLPolicy(cfg.Cache.DefaultTTL)))
	}
	e.aside = cache.NewAside(e.cache, asideOpts...)

	e.executor, err = resilience.NewExecutorFromConfig(cfg.Recovery,
		resilience.WithLogger(logger),
		resilience.WithMetrics(recorders),
		resilience.WithAlertSink(alertFanout(append([]AlertSink{e.sinks}, o.AlertSinks...))),
		resilience.WithMiddleware(e.middleware(o, logger)...),
	)
	if err != nil {
		return nil, e.abort(err)
	}

	e.selector, err = balancer.NewFromConfig(cfg.Selector, logger)
	if err != nil {
		return nil, e.abort(err)
	}

	e.controller, err = scaling.NewController(cfg.Scaling,
		scaling.WithLogger(logger),
		scaling.WithRecorder(e.sinks),
		scaling.WithMetrics(recorders),
	)
	if err != nil {
		return nil, e.abort(err)
	}

	sampler := o.Sampler
	if sampler == nil {
		sampler = scaling.SystemSampler{}
	}
	load := o.Load
	if load == nil {
		load = e.load
	}
	reporterOpts := []scaling.ReporterOption{scaling.WithReporterLogger(logger)}
	if o.OnDecision != nil {
		reporterOpts = append(reporterOpts, scaling.WithDecisionHook(o.OnDecision))
	}
	e.reporter = scaling.NewReporter(e.controller, sampler, load, reporterOpts...)

	if cfg.Metrics.Enabled {
		e.background = metrics.NewBackgroundPublisher(e.publisher, cfg.Metrics.PublishInterval, e.Snapshot, logger)
	}
	if cfg.Metrics.Prometheus.Enabled {
		e.collector = prommetrics.NewCollector(cfg.Metrics.Prometheus.Namespace, e.Snapshot, e.tracker)
	}

	e.logger.Info("Engine created",
		"cache_policy", e.cache.Policy().String(),
		"cache_capacity", e.cache.Capacity(),
		"backends", len(e.selector.Backends()),
		"redis_stream", e.stream != nil,
		"metrics", cfg.Metrics.Enabled,
	)
	return e, nil
}

// NewFromFile builds an engine from a JSON or YAML config file with ACRE_*
// environment overrides applied.
func NewFromFile(path string, opts ...Option) (*Engine, error) {
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

// DefaultConfig returns a default configuration that can be modified before creating an engine.
func DefaultConfig() *Config {
	return config.DefaultConfig()
}

// TestConfig returns a configuration suitable for unit tests.
func TestConfig() *Config {
	return config.ForTesting()
}

func newPublisher(cfg config.MetricsConfig, p types.Publisher, logger *slog.Logger) (types.Publisher, error) {
	switch {
	case p != nil:
		return p, nil
	case !cfg.Enabled:
		return metrics.NewNoOpPublisher(), nil
	case cfg.DataDog.Enabled:
		pub, err := datadog.NewPublisher(&cfg.DataDog, logger)
		if err != nil {
			return nil, fmt.Errorf("datadog publisher: %w", err)
		}
		return pub, nil
	default:
		return metrics.NewLoggingPublisher(logger), nil
	}
}

// middleware orders the operation wrappers outermost first: the span covers
// everything, the recorder sees the raw primary latency.
func (e *Engine) middleware(o *Options, logger *slog.Logger) []resilience.Middleware {
	var mws []resilience.Middleware
	if o.Tracer != nil {
		mws = append(mws, resilience.Tracing(o.Tracer))
	}
	mws = append(mws, resilience.Logging(logger))
	if e.cfg.Metrics.Enabled {
		mws = append(mws, resilience.Timing(e.publisher))
	}
	ops := append(metrics.Recorders{e.tracker}, o.Metrics...)
	return append(mws, resilience.Recording(ops))
}

// abort releases what New already built.
func (e *Engine) abort(err error) error {
	var errs []error
	if e.cache != nil {
		errs = append(errs, e.cache.Close())
	}
	errs = append(errs, e.sinks.Close(), e.publisher.Close())
	if cerr := errors.Join(errs...); cerr != nil {
		e.logger.Warn("Cleanup after failed construction", "error", cerr)
	}
	return err
}

// load feeds the scaling reporter: average operation latency and the number
// of in-flight backend queries.
func (e *Engine) load() (time.Duration, int) {
	s := e.tracker.Snapshot()
	rt := time.Duration(s.AvgLatencyMs * float64(time.Millisecond))
	return rt, int(e.selector.ActiveQueries())
}

// Start launches the background loops. ctx bounds their lifetime; Close
// stops them regardless. Calling Start twice is a no-op.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.started {
		return nil
	}
	e.started = true

	if e.stream != nil {
		e.stream.Start()
	}
	if e.background != nil {
		e.background.Start(ctx)
	}
	e.reporter.Start(ctx)

	e.logger.Info("Engine started")
	return nil
}

// Close stops background work, flushes pending stream writes and releases
// every component. It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.reporter.Stop()
	if e.background != nil {
		e.background.Stop()
	}

	err := errors.Join(
		e.sinks.Close(),
		e.cache.Close(),
		e.publisher.Close(),
	)
	e.logger.Info("Engine closed")
	return err
}

// Execute runs op under the recovery executor. A nil strategies slice uses
// the configured default chain.
func (e *Engine) Execute(ctx context.Context, operation string, strategies []Strategy, op Operation, args ...any) (any, error) {
	return e.executor.Execute(ctx, operation, strategies, op, args...)
}

// GetOrLoad is the cache-aside shortcut over the engine's cache.
func (e *Engine) GetOrLoad(ctx context.Context, operation string, params, dest any, load LoadFunc) (bool, error) {
	return e.aside.GetOrLoad(ctx, operation, params, dest, load)
}

// Snapshot gathers the current state of every component.
func (e *Engine) Snapshot() *EngineSnapshot {
	cs := e.cache.Stats()
	hr := e.executor.HealthReport()

	s := &types.EngineSnapshot{
		Timestamp:        time.Now(),
		CacheEntries:     cs.Size,
		CacheCapacity:    cs.Capacity,
		CacheHits:        cs.Hits,
		CacheMisses:      cs.Misses,
		CacheEvictions:   cs.Evictions,
		CacheHitRate:     cs.HitRate,
		RecoveryHealth:   hr.OverallHealth,
		RecoveryRate:     hr.RecoveryRate,
		TotalErrors:      hr.TotalErrors,
		RecoveredErrors:  hr.RecoveredErrors,
		FailedRecoveries: hr.FailedRecoveries,
		OpenBreakers:     hr.OpenBreakers(),
		Backends:         len(e.selector.Backends()),
		ActiveQueries:    e.selector.ActiveQueries(),
		CurrentInstances: e.controller.State().CurrentInstances,
	}
	e.tracker.Snapshot().ApplyTo(s)
	return s
}

// HealthReport returns the executor's recovery health.
func (e *Engine) HealthReport() *HealthReport {
	return e.executor.HealthReport()
}

// MetricsHandler serves the Prometheus collector. It fails when the
// collector is disabled in the config.
func (e *Engine) MetricsHandler() (http.Handler, error) {
	if e.collector == nil {
		return nil, fmt.Errorf("%w: prometheus collector disabled", ErrInvalidConfig)
	}
	return prommetrics.Handler(e.collector)
}

func (e *Engine) Config() *Config { return e.cfg }
func (e *Engine) Cache() *cache.AdaptiveCache { return e.cache }
func (e *Engine) Aside() *cache.Aside { return e.aside }
func (e *Engine) Executor() *resilience.Executor { return e.executor }
func (e *Engine) Selector() *balancer.Selector { return e.selector }
func (e *Engine) Controller() *scaling.Controller { return e.controller }
func (e *Engine) Reporter() *scaling.Reporter { return e.reporter }
func (e *Engine) Tracker() *metrics.Tracker { return e.tracker }
func (e *Engine) Publisher() types.Publisher { return e.publisher }
func (e *Engine) Stream() *notify.RedisStream { return e.stream }

// alertFanout delivers each alert to every sink.
type alertFanout []AlertSink

func (f alertFanout) SendAlert(ctx context.Context, a Alert) error {
	var errs []error
	for _, s := range f {
		if err := s.SendAlert(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
