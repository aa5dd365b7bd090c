package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

// LoggingPublisher writes every metric as a structured log record. Metric
// samples go out at debug level; events and snapshots at info.
type LoggingPublisher struct {
	logger   *slog.Logger
	baseTags []string
}

func NewLoggingPublisher(logger *slog.Logger, baseTags ...string) *LoggingPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPublisher{
		logger:   logger.With("component", "metrics"),
		baseTags: baseTags,
	}
}

func (p *LoggingPublisher) sample(kind, name string, tags []string, attrs ...slog.Attr) {
	attrs = append(attrs, slog.String("name", name), slog.Any("tags", p.mergeTags(tags)))
	p.logger.LogAttrs(context.Background(), slog.LevelDebug, kind, attrs...)
}

func (p *LoggingPublisher) Gauge(name string, value float64, tags ...string) {
	p.sample("gauge", name, tags, slog.Float64("value", value))
}

func (p *LoggingPublisher) Incr(name string, tags ...string) {
	p.sample("incr", name, tags)
}

func (p *LoggingPublisher) Count(name string, value int64, tags ...string) {
	p.sample("count", name, tags, slog.Int64("value", value))
}

func (p *LoggingPublisher) Histogram(name string, value float64, tags ...string) {
	p.sample("histogram", name, tags, slog.Float64("value", value))
}

func (p *LoggingPublisher) Timing(name string, duration time.Duration, tags ...string) {
	p.sample("timing", name, tags, slog.Int64("duration_ms", duration.Milliseconds()))
}

// Event logs warnings and errors at their own level so alerts stand out.
func (p *LoggingPublisher) Event(title, text, alertType string, tags ...string) {
	level := slog.LevelInfo
	switch alertType {
	case "error":
		level = slog.LevelError
	case "warning":
		level = slog.LevelWarn
	}
	p.logger.LogAttrs(context.Background(), level, "event",
		slog.String("title", title),
		slog.String("text", text),
		slog.String("alert_type", alertType),
		slog.Any("tags", p.mergeTags(tags)),
	)
}

// PublishSnapshot logs one record per snapshot, grouped by component.
func (p *LoggingPublisher) PublishSnapshot(s *types.EngineSnapshot) {
	if s == nil {
		return
	}
	p.logger.LogAttrs(context.Background(), slog.LevelInfo, "engine_snapshot",
		slog.Group("cache",
			slog.Int("entries", s.CacheEntries),
			slog.Int("capacity", s.CacheCapacity),
			slog.Float64("hit_rate", s.CacheHitRate),
			slog.Int64("evictions", s.CacheEvictions),
		),
		slog.Group("recovery",
			slog.String("health", s.RecoveryHealth.String()),
			slog.Float64("rate", s.RecoveryRate),
			slog.Int64("failed", s.FailedRecoveries),
			slog.Int("open_breakers", s.OpenBreakers),
		),
		slog.Group("selector",
			slog.Int("backends", s.Backends),
			slog.Int64("active_queries", s.ActiveQueries),
		),
		slog.Group("scaling", slog.Int("instances", s.CurrentInstances)),
		slog.Float64("p95_latency_ms", s.P95LatencyMs),
		slog.Any("tags", p.baseTags),
	)
}

func (p *LoggingPublisher) Close() error { return nil }

// mergeTags never appends into baseTags' backing array.
func (p *LoggingPublisher) mergeTags(tags []string) []string {
	switch {
	case len(tags) == 0:
		return p.baseTags
	case len(p.baseTags) == 0:
		return tags
	}
	return append(append(make([]string, 0, len(p.baseTags)+len(tags)), p.baseTags...), tags...)
}

var _ types.Publisher = (*LoggingPublisher)(nil)
