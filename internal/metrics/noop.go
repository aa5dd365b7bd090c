package metrics

import (
	"time"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

// NoOpPublisher drops everything. Used when metrics are disabled.
type NoOpPublisher struct{}

func NewNoOpPublisher() *NoOpPublisher {
	return &NoOpPublisher{}
}

func (p *NoOpPublisher) Gauge(name string, value float64, tags ...string) {}
func (p *NoOpPublisher) Incr(name string, tags ...string) {}
func (p *NoOpPublisher) Count(name string, value int64, tags ...string) {}
func (p *NoOpPublisher) Histogram(name string, value float64, tags ...string) {}
func (p *NoOpPublisher) Timing(name string, duration time.Duration, tags ...string) {}
func (p *NoOpPublisher) Event(title, text, alertType string, tags ...string) {}
func (p *NoOpPublisher) PublishSnapshot(s *types.EngineSnapshot) {}
func (p *NoOpPublisher) Close() error { return nil }

var _ types.Publisher = (*NoOpPublisher)(nil)
