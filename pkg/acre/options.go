package acre

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/resilience"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/scaling"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

// Options collects everything an Engine takes besides its Config.
type Options struct {
	Logger     *slog.Logger
	Metrics    []types.MetricsRecorder
	Publisher  types.Publisher
	Tracer     trace.Tracer
	Sampler    scaling.Sampler
	Load       scaling.LoadFunc
	AlertSinks []resilience.AlertSink
	OnDecision func(scaling.Decision, bool)
}

type Option func(*Options)

// WithLogger routes every component's logs through a Logger.
func WithLogger(logger Logger) Option {
	return func(o *Options) {
		o.Logger = slog.New(slogAdapter{logger: logger})
	}
}

// WithSlogLogger sets the slog logger used by every component.
func WithSlogLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithMetrics adds a recorder that receives every engine event next to the
// built-in tracker.
func WithMetrics(metrics MetricsRecorder) Option {
	return func(o *Options) {
		o.Metrics = append(o.Metrics, metrics)
	}
}

// WithPublisher replaces the publisher otherwise chosen from the metrics config.
func WithPublisher(p Publisher) Option {
	return func(o *Options) {
		o.Publisher = p
	}
}

// WithTracer wraps every executed operation in a span.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Options) {
		o.Tracer = tracer
	}
}

// WithSampler replaces the host sampler used by the scaling reporter.
func WithSampler(s Sampler) Option {
	return func(o *Options) {
		o.Sampler = s
	}
}

// WithLoadFunc replaces the response time and queue length source of the
// scaling reporter.
func WithLoadFunc(fn ScalingLoadFunc) Option {
	return func(o *Options) {
		o.Load = fn
	}
}

// WithAlertSink adds a destination for alert-and-continue alerts.
func WithAlertSink(s AlertSink) Option {
	return func(o *Options) {
		o.AlertSinks = append(o.AlertSinks, s)
	}
}

// WithDecisionHook is called with every decision the reporter makes.
func WithDecisionHook(fn func(Decision, bool)) Option {
	return func(o *Options) {
		o.OnDecision = fn
	}
}
