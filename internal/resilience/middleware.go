package resilience

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/metrics"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

// Middleware wraps a named operation.
type Middleware func(name string, next Operation) Operation

// Chain wraps op with mws, first middleware outermost.
func Chain(name string, op Operation, mws ...Middleware) Operation {
	for i := len(mws) - 1; i >= 0; i-- {
		op = mws[i](name, op)
	}
	return op
}

// Logging logs every failed call at warn and every success at debug.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "operation")

	return func(name string, next Operation) Operation {
		return func(ctx context.Context, args ...any) (any, error) {
			start := time.Now()
			result, err := next(ctx, args...)
			if err != nil {
				logger.Warn("Operation failed",
					"operation", name,
					"duration", time.Since(start),
					"error", err,
				)
				return result, err
			}
			logger.Debug("Operation completed",
				"operation", name,
				"duration", time.Since(start),
			)
			return result, nil
		}
	}
}

// Timing sends the latency of every call to a metrics publisher.
func Timing(p types.Publisher) Middleware {
	return func(name string, next Operation) Operation {
		return func(ctx context.Context, args ...any) (any, error) {
			tag := metrics.OperationTag(name)
			start := time.Now()
			result, err := next(ctx, args...)

			p.Timing("operation.latency", time.Since(start), tag)
			if err != nil {
				p.Incr("operation.errors", tag)
			}
			return result, err
		}
	}
}

// Tracing runs every call inside a span named "operation.<name>".
func Tracing(tracer trace.Tracer) Middleware {
	return func(name string, next Operation) Operation {
		return func(ctx context.Context, args ...any) (any, error) {
			ctx, span := tracer.Start(ctx, "operation."+name,
				trace.WithAttributes(
					attribute.String("operation.name", name),
					attribute.Int("operation.args", len(args)),
				),
			)
			defer span.End()

			result, err := next(ctx, args...)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				span.SetAttributes(attribute.Bool("operation.error", true))
				return result, err
			}
			span.SetStatus(codes.Ok, "")
			return result, nil
		}
	}
}

// Recording reports every call to a MetricsRecorder.
func Recording(m types.MetricsRecorder) Middleware {
	return func(name string, next Operation) Operation {
		return func(ctx context.Context, args ...any) (any, error) {
			start := time.Now()
			result, err := next(ctx, args...)
			m.RecordOperation(name, time.Since(start), err)
			return result, err
		}
	}
}
