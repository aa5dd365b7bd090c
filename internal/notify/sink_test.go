package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/config"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/resilience"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/scaling"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

// Sinks plug straight into the executor and the controller.
var (
	_ resilience.AlertSink   = Multi(nil)
	_ scaling.ActionRecorder = Multi(nil)
	_ Sink                   = (*RedisStream)(nil)
	_ Sink                   = (*LogSink)(nil)
	_ Sink                   = (*EventSink)(nil)
)

type event struct {
	title, text, alertType string
	tags                   []string
}

type eventPublisher struct {
	mu     sync.Mutex
	events []event
}

func (p *eventPublisher) Gauge(string, float64, ...string) {}
func (p *eventPublisher) Incr(string, ...string) {}
func (p *eventPublisher) Count(string, int64, ...string) {}
func (p *eventPublisher) Histogram(string, float64, ...string) {}
func (p *eventPublisher) Timing(string, time.Duration, ...string) {}
func (p *eventPublisher) PublishSnapshot(*types.EngineSnapshot) {}
func (p *eventPublisher) Close() error { return nil }
func (p *eventPublisher) Event(title, text, alertType string, tags ...string) {
	p.mu.Lock()
	p.events = append(p.events, event{title, text, alertType, tags})
	p.mu.Unlock()
}

type failingSink struct{ err error }

func (f failingSink) SendAlert(context.Context, types.Alert) error { return f.err }
func (f failingSink) RecordAction(context.Context, scaling.Action) error { return f.err }

type countingSink struct {
	alerts, actions int
	closed          bool
}

func (c *countingSink) SendAlert(context.Context, types.Alert) error {
	c.alerts++
	return nil
}

func (c *countingSink) RecordAction(context.Context, scaling.Action) error {
	c.actions++
	return nil
}

func (c *countingSink) Close() error {
	c.closed = true
	return nil
}

func testAlert(sev types.Severity) types.Alert {
	return types.Alert{
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Operation: "database_query",
		ErrorType: "timeout",
		Message:   "query timed out",
		Severity:  sev,
	}
}

func testAction() scaling.Action {
	return scaling.Action{
		Type:       scaling.ActionScaleUp,
		From:       2,
		To:         3,
		Reasons:    []string{"CPU usage 85.0% > 70.0%", "Queue length 150 > 100"},
		ProposedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		AppliedAt:  time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC),
	}
}

func TestLogSink(t *testing.T) {
	tests := []struct {
		severity types.Severity
		level    string
	}{
		{types.SeverityHigh, "level=ERROR"},
		{types.SeverityMedium, "level=WARN"},
		{types.SeverityLow, "level=WARN"},
	}

	for _, tt := range tests {
		t.Run(tt.severity.String(), func(t *testing.T) {
			var buf bytes.Buffer
			sink := NewLogSink(slog.New(slog.NewTextHandler(&buf, nil)))

			if err := sink.SendAlert(context.Background(), testAlert(tt.severity)); err != nil {
				t.Fatalf("SendAlert() error = %v", err)
			}
			out := buf.String()
			if !strings.Contains(out, tt.level) {
				t.Errorf("log = %q, want %s", out, tt.level)
			}
			if !strings.Contains(out, "operation=database_query") {
				t.Errorf("log = %q, want operation attribute", out)
			}
		})
	}
}

func TestLogSinkRecordAction(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewTextHandler(&buf, nil)))

	if err := sink.RecordAction(context.Background(), testAction()); err != nil {
		t.Fatalf("RecordAction() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"level=INFO", "action=scale_up", "from=2", "to=3"} {
		if !strings.Contains(out, want) {
			t.Errorf("log = %q, want %s", out, want)
		}
	}
}

func TestEventSink(t *testing.T) {
	pub := &eventPublisher{}
	sink := NewEventSink(pub, "env:test")

	_ = sink.SendAlert(context.Background(), testAlert(types.SeverityHigh))
	_ = sink.RecordAction(context.Background(), testAction())

	if len(pub.events) != 2 {
		t.Fatalf("events = %d, want 2", len(pub.events))
	}

	alert := pub.events[0]
	if alert.alertType != "error" {
		t.Errorf("alert type = %q, want error", alert.alertType)
	}
	if alert.title != "Operation database_query failed" {
		t.Errorf("alert title = %q", alert.title)
	}
	if got := strings.Join(alert.tags, ","); got != "operation:database_query,error_type:timeout,severity:high,env:test" {
		t.Errorf("alert tags = %q", got)
	}

	action := pub.events[1]
	if action.title != "Scaling scale_up: 2 -> 3" {
		t.Errorf("action title = %q", action.title)
	}
	if action.alertType != "info" {
		t.Errorf("action alert type = %q, want info", action.alertType)
	}
	if !strings.Contains(action.text, "Queue length 150 > 100") {
		t.Errorf("action text = %q, want reasons", action.text)
	}
}

func TestMulti(t *testing.T) {
	errA := errors.New("sink a down")
	good := &countingSink{}
	m := Multi{failingSink{err: errA}, good}

	err := m.SendAlert(context.Background(), testAlert(types.SeverityMedium))
	if !errors.Is(err, errA) {
		t.Errorf("SendAlert() error = %v, want %v", err, errA)
	}
	if good.alerts != 1 {
		t.Errorf("alerts delivered after failure = %d, want 1", good.alerts)
	}

	if err := m.RecordAction(context.Background(), testAction()); !errors.Is(err, errA) {
		t.Errorf("RecordAction() error = %v, want %v", err, errA)
	}
	if good.actions != 1 {
		t.Errorf("actions = %d, want 1", good.actions)
	}

	if err := m.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if !good.closed {
		t.Error("closable sink was not closed")
	}
}

func TestBuild(t *testing.T) {
	t.Run("log only", func(t *testing.T) {
		sinks, stream, err := Build(config.AlertsConfig{}, config.RedisConfig{}, nil, nil)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if len(sinks) != 1 || stream != nil {
			t.Errorf("Build() = %d sinks, stream %v; want 1, nil", len(sinks), stream)
		}
	})

	t.Run("events", func(t *testing.T) {
		sinks, _, err := Build(config.AlertsConfig{Events: true}, config.RedisConfig{}, &eventPublisher{}, nil)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if len(sinks) != 2 {
			t.Errorf("len(sinks) = %d, want 2", len(sinks))
		}
	})

	t.Run("missing stream name", func(t *testing.T) {
		_, _, err := Build(config.AlertsConfig{RedisStream: true}, config.RedisConfig{}, nil, nil)
		if !errors.Is(err, types.ErrInvalidConfig) {
			t.Errorf("Build() error = %v, want %v", err, types.ErrInvalidConfig)
		}
	})
}

func TestExecutorAlertsReachSink(t *testing.T) {
	sink := &countingSink{}
	exec := resilience.NewExecutor(resilience.WithAlertSink(Multi{sink}))

	_, err := exec.Execute(context.Background(), "database_query",
		[]resilience.Strategy{resilience.StrategyAlertAndContinue},
		func(context.Context, ...any) (any, error) { return nil, errors.New("down") },
	)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if sink.alerts != 1 {
		t.Errorf("alerts = %d, want 1", sink.alerts)
	}
}

func TestValueEncoding(t *testing.T) {
	v := alertValues(testAlert(types.SeverityHigh))
	if v["severity"] != "high" || v["timestamp"] != "2026-01-02T03:04:05Z" {
		t.Errorf("alertValues() = %v", v)
	}

	a := actionValues(testAction())
	if a["type"] != "scale_up" || a["from"] != "2" || a["to"] != "3" {
		t.Errorf("actionValues() = %v", a)
	}
	if a["reasons"] != "CPU usage 85.0% > 70.0%; Queue length 150 > 100" {
		t.Errorf("reasons = %v", a["reasons"])
	}
}
