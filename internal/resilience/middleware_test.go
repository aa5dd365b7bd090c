package resilience

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(label string) Middleware {
		return func(name string, next Operation) Operation {
			return func(ctx context.Context, args ...any) (any, error) {
				order = append(order, label+">"+name)
				return next(ctx, args...)
			}
		}
	}

	op := Chain("q", func(context.Context, ...any) (any, error) {
		order = append(order, "op")
		return nil, nil
	}, tag("outer"), tag("inner"))

	_, _ = op(context.Background())

	want := "outer>q,inner>q,op"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestTracingMiddleware(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	mw := Tracing(tp.Tracer("test"))

	t.Run("success", func(t *testing.T) {
		op := Chain("schema_analysis", func(context.Context, ...any) (any, error) {
			return "ok", nil
		}, mw)

		if _, err := op(context.Background(), 1); err != nil {
			t.Fatalf("op() error = %v", err)
		}

		spans := recorder.Ended()
		if len(spans) != 1 {
			t.Fatalf("expected 1 span, got %d", len(spans))
		}
		if spans[0].Name() != "operation.schema_analysis" {
			t.Errorf("span name = %q, want operation.schema_analysis", spans[0].Name())
		}
		if spans[0].Status().Code != codes.Ok {
			t.Errorf("status = %v, want Ok", spans[0].Status().Code)
		}
	})

	t.Run("error", func(t *testing.T) {
		op := Chain("database_query", func(context.Context, ...any) (any, error) {
			return nil, errBoom
		}, mw)

		if _, err := op(context.Background()); !errors.Is(err, errBoom) {
			t.Fatalf("op() error = %v, want boom", err)
		}

		spans := recorder.Ended()
		last := spans[len(spans)-1]
		if last.Status().Code != codes.Error {
			t.Errorf("status = %v, want Error", last.Status().Code)
		}
		var flagged bool
		for _, attr := range last.Attributes() {
			if string(attr.Key) == "operation.error" {
				flagged = attr.Value.AsBool()
			}
		}
		if !flagged {
			t.Error("expected operation.error=true on failed call")
		}
		if len(last.Events()) == 0 {
			t.Error("expected the error to be recorded as a span event")
		}
	})
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	op := Chain("sql_generation", func(_ context.Context, args ...any) (any, error) {
		if len(args) > 0 {
			return nil, errBoom
		}
		return "ok", nil
	}, Logging(logger))

	_, _ = op(context.Background())
	_, _ = op(context.Background(), "fail")

	out := buf.String()
	if !strings.Contains(out, "Operation completed") {
		t.Errorf("log missing completion line: %s", out)
	}
	if !strings.Contains(out, "Operation failed") || !strings.Contains(out, "error=boom") {
		t.Errorf("log missing failure line: %s", out)
	}
	if !strings.Contains(out, "component=operation") {
		t.Errorf("log missing component: %s", out)
	}
}

type fakePublisher struct {
	mu      sync.Mutex
	timings map[string]int
	incrs   map[string]int
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{timings: map[string]int{}, incrs: map[string]int{}}
}

func (p *fakePublisher) Gauge(string, float64, ...string) {}
func (p *fakePublisher) Count(string, int64, ...string) {}
func (p *fakePublisher) Histogram(string, float64, ...string) {}
func (p *fakePublisher) Event(string, string, string, ...string) {}
func (p *fakePublisher) PublishSnapshot(*types.EngineSnapshot) {}
func (p *fakePublisher) Close() error { return nil }
func (p *fakePublisher) Timing(name string, _ time.Duration, tags ...string) {
	p.mu.Lock()
	p.timings[name+"|"+strings.Join(tags, ",")]++
	p.mu.Unlock()
}
func (p *fakePublisher) Incr(name string, tags ...string) {
	p.mu.Lock()
	p.incrs[name+"|"+strings.Join(tags, ",")]++
	p.mu.Unlock()
}

func TestTimingMiddleware(t *testing.T) {
	pub := newFakePublisher()
	calls := 0
	op := Chain("q", func(context.Context, ...any) (any, error) {
		calls++
		if calls == 2 {
			return nil, errBoom
		}
		return nil, nil
	}, Timing(pub))

	_, _ = op(context.Background())
	_, _ = op(context.Background())

	if got := pub.timings["operation.latency|operation:q"]; got != 2 {
		t.Errorf("latency timings = %v, want 2", got)
	}
	if got := pub.incrs["operation.errors|operation:q"]; got != 1 {
		t.Errorf("error increments = %v, want 1", got)
	}
}
