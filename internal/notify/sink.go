// Package notify delivers alerts raised by the recovery executor and the
// scaling actions applied by the controller to whoever watches the service.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/config"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/scaling"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

// Sink receives alerts and applied scaling actions.
type Sink interface {
	SendAlert(ctx context.Context, alert types.Alert) error
	RecordAction(ctx context.Context, action scaling.Action) error
}

// LogSink writes alerts and actions to a slog logger.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "alerts")}
}

func (s *LogSink) SendAlert(ctx context.Context, a types.Alert) error {
	level := slog.LevelWarn
	if a.Severity == types.SeverityHigh {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, "Operation alert",
		"alert_id", a.ID,
		"operation", a.Operation,
		"error_type", a.ErrorType,
		"message", a.Message,
		"severity", a.Severity.String(),
	)
	return nil
}

func (s *LogSink) RecordAction(ctx context.Context, a scaling.Action) error {
	s.logger.InfoContext(ctx, "Scaling action recorded",
		"action", a.Type.String(),
		"from", a.From,
		"to", a.To,
		"reasons", a.Reasons,
	)
	return nil
}

// EventSink turns alerts and actions into metrics backend events.
type EventSink struct {
	publisher types.Publisher
	tags      []string
}

func NewEventSink(publisher types.Publisher, tags ...string) *EventSink {
	return &EventSink{publisher: publisher, tags: tags}
}

func (s *EventSink) SendAlert(_ context.Context, a types.Alert) error {
	tags := append([]string{
		"operation:" + a.Operation,
		"error_type:" + a.ErrorType,
		"severity:" + a.Severity.String(),
	}, s.tags...)
	s.publisher.Event(
		fmt.Sprintf("Operation %s failed", a.Operation),
		a.Message,
		a.AlertType(),
		tags...,
	)
	return nil
}

func (s *EventSink) RecordAction(_ context.Context, a scaling.Action) error {
	tags := append([]string{"action:" + a.Type.String()}, s.tags...)
	s.publisher.Event(
		fmt.Sprintf("Scaling %s: %d -> %d", a.Type.String(), a.From, a.To),
		strings.Join(a.Reasons, "\n"),
		"info",
		tags...,
	)
	return nil
}

// Multi fans out to every sink. Every sink is tried; errors are joined.
type Multi []Sink

func (m Multi) SendAlert(ctx context.Context, a types.Alert) error {
	var errs []error
	for _, s := range m {
		if err := s.SendAlert(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) RecordAction(ctx context.Context, a scaling.Action) error {
	var errs []error
	for _, s := range m {
		if err := s.RecordAction(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that holds resources.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Build assembles the sinks described by cfg: always a log sink, statsd
// events when publisher is non-nil and events are enabled, and a Redis
// stream when enabled. The returned stream is nil when Redis is off.
func Build(cfg config.AlertsConfig, redisCfg config.RedisConfig, publisher types.Publisher, logger *slog.Logger) (Multi, *RedisStream, error) {
	sinks := Multi{NewLogSink(logger)}

	if cfg.Events && publisher != nil {
		sinks = append(sinks, NewEventSink(publisher))
	}

	var stream *RedisStream
	if cfg.RedisStream {
		var err error
		stream, err = NewRedisStream(redisCfg, cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("redis stream sink: %w", err)
		}
		sinks = append(sinks, stream)
	}
	return sinks, stream, nil
}
