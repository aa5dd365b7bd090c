// Package datadog publishes engine metrics, events and service checks to a
// DogStatsD agent.
package datadog

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/config"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/metrics"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

const (
	sampleRate = 1

	// recoveryCheck is the service check carrying the executor's health.
	recoveryCheck = "recovery.health"
	sourceType    = "acre"
)

// Publisher implements types.Publisher over a statsd client.
//
//nolint:govet // Small struct - minimal alignment benefit
type Publisher struct {
	baseTags []string
	prefix   string
	client   *statsd.Client
	logger   *slog.Logger
}

// NewPublisher creates a DogStatsD publisher from cfg. A disabled config
// yields a no-op publisher.
func NewPublisher(cfg *config.DataDogConfig, logger *slog.Logger) (types.Publisher, error) {
	if !cfg.Enabled {
		return metrics.NewNoOpPublisher(), nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	addr := fmt.Sprintf("%s:%d", cfg.AgentHost, cfg.Port)
	opts := []statsd.Option{
		statsd.WithTags(cfg.Tags),
		statsd.WithoutTelemetry(),
	}
	prefix := ""
	if cfg.Prefix != "" {
		prefix = cfg.Prefix + "."
		opts = append(opts, statsd.WithNamespace(prefix))
	}

	client, err := statsd.New(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("statsd client for %s: %w", addr, err)
	}

	logger.Info("DataDog publisher initialized", "address", addr, "prefix", cfg.Prefix, "tags", cfg.Tags)
	return &Publisher{
		baseTags: cfg.Tags,
		prefix:   prefix,
		client:   client,
		logger:   logger.With("component", "datadog"),
	}, nil
}

func (p *Publisher) Gauge(name string, value float64, tags ...string) {
	p.check("gauge", name, p.client.Gauge(name, value, p.mergeTags(tags), sampleRate))
}

func (p *Publisher) Incr(name string, tags ...string) {
	p.check("incr", name, p.client.Incr(name, p.mergeTags(tags), sampleRate))
}

func (p *Publisher) Count(name string, value int64, tags ...string) {
	p.check("count", name, p.client.Count(name, value, p.mergeTags(tags), sampleRate))
}

func (p *Publisher) Histogram(name string, value float64, tags ...string) {
	p.check("histogram", name, p.client.Histogram(name, value, p.mergeTags(tags), sampleRate))
}

func (p *Publisher) Timing(name string, duration time.Duration, tags ...string) {
	p.check("timing", name, p.client.Timing(name, duration, p.mergeTags(tags), sampleRate))
}

// Event sends an event. Events with the same title roll up together in
// the event stream.
func (p *Publisher) Event(title, text, alertType string, tags ...string) {
	p.check("event", title, p.client.Event(&statsd.Event{
		Title:          title,
		Text:           text,
		AlertType:      statsd.EventAlertType(alertType),
		AggregationKey: title,
		SourceTypeName: sourceType,
		Tags:           p.mergeTags(tags),
	}))
}

// PublishSnapshot sends the snapshot as gauges plus a service check for
// recovery health: healthy is OK, degraded WARNING, anything else CRITICAL.
func (p *Publisher) PublishSnapshot(s *types.EngineSnapshot) {
	if s == nil {
		return
	}

	p.Gauge("cache.entries", float64(s.CacheEntries))
	p.Gauge("cache.capacity", float64(s.CacheCapacity))
	p.Gauge("cache.usage_ratio", clamp(s.CacheUsage(), 0, 1))
	p.Gauge("cache.hit_rate", clamp(s.CacheHitRate, 0, 1))
	p.Gauge("cache.evictions", float64(s.CacheEvictions))

	healthTag := metrics.HealthTag(s.RecoveryHealth.String())
	healthy := 0.0
	if s.RecoveryHealth == types.HealthStatusHealthy {
		healthy = 1.0
	}
	p.Gauge("recovery.healthy", healthy, healthTag)
	p.Gauge("recovery.rate", clamp(s.RecoveryRate, 0, 1))
	p.Gauge("recovery.total_errors", float64(s.TotalErrors))
	p.Gauge("recovery.failed", float64(s.FailedRecoveries))
	p.Gauge("recovery.open_breakers", float64(s.OpenBreakers))

	p.Gauge("selector.backends", float64(s.Backends))
	p.Gauge("selector.active_queries", float64(s.ActiveQueries))
	p.Gauge("scaling.instances", float64(s.CurrentInstances))

	latencies := []struct {
		name string
		ms   float64
	}{
		{"avg", s.AvgLatencyMs},
		{"p50", s.P50LatencyMs},
		{"p95", s.P95LatencyMs},
		{"p99", s.P99LatencyMs},
	}
	for _, l := range latencies {
		p.Gauge("operation.latency."+l.name+"_ms", max(0, l.ms))
	}

	p.check("service_check", recoveryCheck, p.client.ServiceCheck(&statsd.ServiceCheck{
		Name:      p.prefix + recoveryCheck,
		Status:    checkStatus(s.RecoveryHealth),
		Timestamp: s.Timestamp,
		Message:   fmt.Sprintf("recovery rate %.2f, %d open breakers", s.RecoveryRate, s.OpenBreakers),
		Tags:      p.mergeTags([]string{healthTag}),
	}))
}

func (p *Publisher) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

// check logs a failed send. statsd writes are fire-and-forget, so the
// caller never sees the error.
func (p *Publisher) check(kind, name string, err error) {
	if err != nil {
		p.logger.Debug("Failed to send metric", "kind", kind, "name", name, "error", err)
	}
}

func (p *Publisher) mergeTags(tags []string) []string {
	if len(tags) == 0 {
		return p.baseTags
	}
	if len(p.baseTags) == 0 {
		return tags
	}
	merged := make([]string, 0, len(p.baseTags)+len(tags))
	merged = append(merged, p.baseTags...)
	return append(merged, tags...)
}

func checkStatus(h types.HealthStatus) statsd.ServiceCheckStatus {
	switch h {
	case types.HealthStatusHealthy:
		return statsd.Ok
	case types.HealthStatusDegraded:
		return statsd.Warn
	case types.HealthStatusUnhealthy:
		return statsd.Critical
	default:
		return statsd.Unknown
	}
}

func clamp(val, minVal, maxVal float64) float64 {
	return min(max(val, minVal), maxVal)
}

var _ types.Publisher = (*Publisher)(nil)
