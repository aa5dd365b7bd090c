package acre_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/pkg/acre"
)

type fakeSampler struct {
	cpu, mem float64
}

func (s fakeSampler) Sample(context.Context) (float64, float64, error) {
	return s.cpu, s.mem, nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	timings []string
	incrs   []string
	events  []string
	closed  bool
}

func (p *recordingPublisher) Gauge(string, float64, ...string) {}
func (p *recordingPublisher) Count(string, int64, ...string) {}
func (p *recordingPublisher) Histogram(string, float64, ...string) {}
func (p *recordingPublisher) PublishSnapshot(*acre.EngineSnapshot) {}

func (p *recordingPublisher) Incr(name string, _ ...string) {
	p.mu.Lock()
	p.incrs = append(p.incrs, name)
	p.mu.Unlock()
}

func (p *recordingPublisher) Timing(name string, _ time.Duration, _ ...string) {
	p.mu.Lock()
	p.timings = append(p.timings, name)
	p.mu.Unlock()
}

func (p *recordingPublisher) Event(title, _, _ string, _ ...string) {
	p.mu.Lock()
	p.events = append(p.events, title)
	p.mu.Unlock()
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

func (p *recordingPublisher) has(list *[]string, name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range *list {
		if n == name {
			return true
		}
	}
	return false
}

type captureLogger struct {
	mu       sync.Mutex
	messages []string
	args     [][]any
}

func (l *captureLogger) log(msg string, args []any) {
	l.mu.Lock()
	l.messages = append(l.messages, msg)
	l.args = append(l.args, args)
	l.mu.Unlock()
}

func (l *captureLogger) Debug(msg string, args ...any) { l.log(msg, args) }
func (l *captureLogger) Info(msg string, args ...any) { l.log(msg, args) }
func (l *captureLogger) Warn(msg string, args ...any) { l.log(msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.log(msg, args) }

type alertCounter struct {
	mu     sync.Mutex
	alerts []acre.Alert
}

func (c *alertCounter) SendAlert(_ context.Context, a acre.Alert) error {
	c.mu.Lock()
	c.alerts = append(c.alerts, a)
	c.mu.Unlock()
	return nil
}

func newEngine(t *testing.T, cfg *acre.Config, opts ...acre.Option) *acre.Engine {
	t.Helper()
	if cfg == nil {
		cfg = acre.TestConfig()
	}
	opts = append([]acre.Option{acre.WithSampler(fakeSampler{cpu: 10, mem: 10})}, opts...)
	e, err := acre.New(cfg, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestNew(t *testing.T) {
	e := newEngine(t, nil)

	s := e.Snapshot()
	if s.CacheCapacity != 16 {
		t.Errorf("CacheCapacity = %d, want 16", s.CacheCapacity)
	}
	if s.CurrentInstances != 1 {
		t.Errorf("CurrentInstances = %d, want 1", s.CurrentInstances)
	}
	if s.RecoveryHealth != acre.HealthStatusHealthy {
		t.Errorf("RecoveryHealth = %v, want healthy", s.RecoveryHealth)
	}
	if e.Stream() != nil {
		t.Error("Stream() should be nil without redis")
	}
}

func TestNewNilConfig(t *testing.T) {
	e, err := acre.New(nil, acre.WithSampler(fakeSampler{}))
	if err != nil {
		t.Fatalf("New(nil) error = %v", err)
	}
	defer e.Close()

	if got := e.Cache().Capacity(); got != acre.DefaultConfig().Cache.Capacity {
		t.Errorf("Capacity() = %d, want default", got)
	}
}

func TestNewInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*acre.Config)
	}{
		{"bad policy", func(c *acre.Config) { c.Cache.Policy = "mru" }},
		{"zero capacity", func(c *acre.Config) { c.Cache.Capacity = 0 }},
		{"unknown strategy", func(c *acre.Config) { c.Recovery.DefaultStrategies = []string{"pray"} }},
		{"scaling bounds", func(c *acre.Config) { c.Scaling.MaxInstances = 0 }},
		{"stream without redis", func(c *acre.Config) { c.Alerts.RedisStream = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := acre.TestConfig()
			tt.mutate(cfg)
			_, err := acre.New(cfg)
			if !errors.Is(err, acre.ErrInvalidConfig) {
				t.Errorf("New() error = %v, want %v", err, acre.ErrInvalidConfig)
			}
		})
	}
}

func TestExecuteFallbackRecovery(t *testing.T) {
	e := newEngine(t, nil)
	if err := e.Executor().RegisterFallback("user_lookup", func(context.Context, ...any) (any, error) {
		return "cached-user", nil
	}); err != nil {
		t.Fatalf("RegisterFallback() error = %v", err)
	}

	result, err := e.Execute(context.Background(), "user_lookup",
		[]acre.Strategy{acre.StrategyFallback},
		func(context.Context, ...any) (any, error) { return nil, errors.New("backend down") },
	)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result != "cached-user" {
		t.Errorf("result = %v, want cached-user", result)
	}

	report := e.HealthReport()
	if report.RecoveredErrors != 1 || report.RecoveryMethods["fallback"] != 1 {
		t.Errorf("report = %+v, want one fallback recovery", report)
	}

	m := e.Tracker().Snapshot()
	if m.Operations != 1 || m.OperationErrors != 1 {
		t.Errorf("operations = %d/%d errors, want 1/1", m.Operations, m.OperationErrors)
	}
	if m.Recoveries != 1 || m.FailedRecovery != 0 {
		t.Errorf("recoveries = %d, failed = %d; want 1, 0", m.Recoveries, m.FailedRecovery)
	}
}

func TestExecuteSuccessIsNotRecovery(t *testing.T) {
	e := newEngine(t, nil)

	_, err := e.Execute(context.Background(), "ping", nil,
		func(context.Context, ...any) (any, error) { return "pong", nil })
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	m := e.Tracker().Snapshot()
	if m.Recoveries != 0 || m.FailedRecovery != 0 {
		t.Errorf("recoveries = %d, failed = %d; want 0, 0", m.Recoveries, m.FailedRecovery)
	}
	if m.Operations != 1 {
		t.Errorf("Operations = %d, want 1", m.Operations)
	}
}

func TestExecuteExhausted(t *testing.T) {
	e := newEngine(t, nil)

	_, err := e.Execute(context.Background(), "report", []acre.Strategy{acre.StrategyRetry},
		func(context.Context, ...any) (any, error) { return nil, errors.New("boom") })
	if !acre.IsExhausted(err) {
		t.Fatalf("Execute() error = %v, want exhausted", err)
	}

	var exhausted *acre.ExhaustedError
	if !errors.As(err, &exhausted) || exhausted.Operation != "report" {
		t.Errorf("error = %#v, want *ExhaustedError for report", err)
	}
	if got := e.Tracker().Snapshot().Operations; got != 3 {
		t.Errorf("Operations = %d, want 3 retry attempts", got)
	}
}

func TestExecuteAlertSink(t *testing.T) {
	sink := &alertCounter{}
	e := newEngine(t, nil, acre.WithAlertSink(sink))

	result, err := e.Execute(context.Background(), "database_write",
		[]acre.Strategy{acre.StrategyAlertAndContinue},
		func(context.Context, ...any) (any, error) { return nil, errors.New("disk full") },
	)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !acre.IsDegraded(result) {
		t.Errorf("result = %v, want degraded", result)
	}
	if len(sink.alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(sink.alerts))
	}
	if sink.alerts[0].Severity != acre.SeverityHigh {
		t.Errorf("Severity = %v, want high", sink.alerts[0].Severity)
	}
}

func TestGetOrLoad(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	loads := 0
	load := func(context.Context) (any, error) {
		loads++
		return []string{"a", "b"}, nil
	}

	var first, second []string
	hit, err := e.GetOrLoad(ctx, "list_items", map[string]int{"page": 1}, &first, load)
	if err != nil || hit {
		t.Fatalf("first GetOrLoad() = %v, %v; want miss", hit, err)
	}
	hit, err = e.GetOrLoad(ctx, "list_items", map[string]int{"page": 1}, &second, load)
	if err != nil || !hit {
		t.Fatalf("second GetOrLoad() = %v, %v; want hit", hit, err)
	}
	if loads != 1 {
		t.Errorf("loads = %d, want 1", loads)
	}
	if strings.Join(second, ",") != "a,b" {
		t.Errorf("second = %v, want [a b]", second)
	}

	s := e.Snapshot()
	if s.CacheHits != 1 || s.CacheMisses != 1 || s.CacheEntries != 1 {
		t.Errorf("snapshot cache = %d hits, %d misses, %d entries; want 1, 1, 1",
			s.CacheHits, s.CacheMisses, s.CacheEntries)
	}
}

func TestStartClose(t *testing.T) {
	e, err := acre.New(acre.TestConfig(), acre.WithSampler(fakeSampler{}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := e.Start(ctx); err != nil {
		t.Errorf("second Start() error = %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := e.Start(ctx); !errors.Is(err, acre.ErrClosed) {
		t.Errorf("Start() after Close error = %v, want %v", err, acre.ErrClosed)
	}
}

func TestReporterDrivesController(t *testing.T) {
	cfg := acre.TestConfig()
	cfg.Alerts.Events = true
	pub := &recordingPublisher{}

	var decisions []acre.Decision
	e := newEngine(t, cfg,
		acre.WithPublisher(pub),
		acre.WithSampler(fakeSampler{cpu: 90, mem: 40}),
		acre.WithDecisionHook(func(d acre.Decision, _ bool) { decisions = append(decisions, d) }),
	)

	ctx := context.Background()
	d, applied, err := e.Reporter().EvaluateNow(ctx)
	if err != nil {
		t.Fatalf("EvaluateNow() error = %v", err)
	}
	if !d.Needed || d.Action == nil || d.Action.To != 2 {
		t.Fatalf("decision = %+v, want scale up to 2", d)
	}
	if applied {
		t.Error("applied without auto-apply")
	}
	if len(decisions) != 1 {
		t.Errorf("hook calls = %d, want 1", len(decisions))
	}

	if !e.Controller().Apply(ctx, d.Action) {
		t.Fatal("Apply() = false, want true")
	}
	if got := e.Snapshot().CurrentInstances; got != 2 {
		t.Errorf("CurrentInstances = %d, want 2", got)
	}
	if !pub.has(&pub.events, "Scaling scale_up: 1 -> 2") {
		t.Errorf("events = %v, want applied action event", pub.events)
	}
}

func TestLoadFuncFeedsReporter(t *testing.T) {
	e := newEngine(t, nil, acre.WithLoadFunc(func() (time.Duration, int) {
		return 3 * time.Second, 7
	}))

	m, err := e.Reporter().Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if m.ResponseTime != 3*time.Second || m.QueueLength != 7 {
		t.Errorf("Collect() = %+v, want 3s and 7", m)
	}
}

func TestDefaultLoadUsesSelector(t *testing.T) {
	e := newEngine(t, nil)
	if err := e.Selector().Register("primary", 1, 10); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	_ = e.Selector().ReportStart("primary")
	_ = e.Selector().ReportStart("primary")

	m, err := e.Reporter().Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if m.QueueLength != 2 {
		t.Errorf("QueueLength = %d, want 2", m.QueueLength)
	}
	if got := e.Snapshot().ActiveQueries; got != 2 {
		t.Errorf("ActiveQueries = %d, want 2", got)
	}
}

func TestPublisherWiring(t *testing.T) {
	cfg := acre.TestConfig()
	cfg.Metrics.Enabled = true
	pub := &recordingPublisher{}
	e := newEngine(t, cfg, acre.WithPublisher(pub))

	_, _ = e.Execute(context.Background(), "ping", nil,
		func(context.Context, ...any) (any, error) { return "pong", nil })
	e.Cache().Get("absent")

	if !pub.has(&pub.timings, "operation.latency") {
		t.Errorf("timings = %v, want operation.latency", pub.timings)
	}
	if !pub.has(&pub.incrs, "cache.misses") {
		t.Errorf("incrs = %v, want cache.misses", pub.incrs)
	}

	if err := e.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !pub.closed {
		t.Error("publisher not closed")
	}
}

func TestMetricsHandler(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		e := newEngine(t, nil)
		if _, err := e.MetricsHandler(); !errors.Is(err, acre.ErrInvalidConfig) {
			t.Errorf("MetricsHandler() error = %v, want %v", err, acre.ErrInvalidConfig)
		}
	})

	t.Run("enabled", func(t *testing.T) {
		cfg := acre.TestConfig()
		cfg.Metrics.Prometheus.Enabled = true
		e := newEngine(t, cfg)

		h, err := e.MetricsHandler()
		if err != nil {
			t.Fatalf("MetricsHandler() error = %v", err)
		}
		srv := httptest.NewServer(h)
		defer srv.Close()

		resp, err := http.Get(srv.URL)
		if err != nil {
			t.Fatalf("GET error = %v", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		if !strings.Contains(string(body), "acre_cache_capacity 16") {
			t.Errorf("body missing acre_cache_capacity 16:\n%s", body)
		}
	})
}

func TestWithLogger(t *testing.T) {
	logger := &captureLogger{}
	newEngine(t, nil, acre.WithLogger(logger))

	logger.mu.Lock()
	defer logger.mu.Unlock()
	for i, msg := range logger.messages {
		if msg != "Engine created" {
			continue
		}
		args := logger.args[i]
		for j := 0; j+1 < len(args); j += 2 {
			if args[j] == "component" && args[j+1] == "engine" {
				return
			}
		}
		t.Fatalf("Engine created args = %v, want component=engine", args)
	}
	t.Fatalf("messages = %v, want Engine created", logger.messages)
}

func TestNewFromFile(t *testing.T) {
	path := t.TempDir() + "/acre.yaml"
	yaml := "cache:\n  capacity: 32\n  policy: lfu\n  payloadStore: map\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	e, err := acre.NewFromFile(path, acre.WithSampler(fakeSampler{}))
	if err != nil {
		t.Fatalf("NewFromFile() error = %v", err)
	}
	defer e.Close()

	stats := e.Cache().Stats()
	if stats.Capacity != 32 || stats.Policy != "lfu" {
		t.Errorf("Stats() = %+v, want capacity 32, lfu", stats)
	}
}

func TestWithTracer(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	e := newEngine(t, nil, acre.WithTracer(tp.Tracer("acre-test")))

	_, err := e.Execute(context.Background(), "ping", []acre.Strategy{acre.StrategyRetry},
		func(context.Context, ...any) (any, error) { return "pong", nil })
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Name() != "operation.ping" {
		t.Errorf("span name = %q, want operation.ping", spans[0].Name())
	}
}
