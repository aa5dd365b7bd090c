package metrics

import (
	"time"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

// Forwarder turns engine events into publisher counters and timings so a
// push backend sees them as they happen instead of once per snapshot.
type Forwarder struct {
	publisher types.Publisher
}

func NewForwarder(p types.Publisher) *Forwarder {
	return &Forwarder{publisher: p}
}

func (f *Forwarder) RecordHit(component string, key string, latency time.Duration) {
	f.publisher.Incr("cache.hits", Tag("component", component))
}

func (f *Forwarder) RecordMiss(component string, key string, latency time.Duration) {
	f.publisher.Incr("cache.misses", Tag("component", component))
}

func (f *Forwarder) RecordSet(component string, key string, size int, latency time.Duration) {
	f.publisher.Histogram("cache.value_bytes", float64(size), Tag("component", component))
}

func (f *Forwarder) RecordEviction(component string, key string, policy string) {
	f.publisher.Incr("cache.evictions", Tag("component", component), PolicyTag(policy))
}

func (f *Forwarder) RecordError(component string, operation string, err error) {
	f.publisher.Incr("errors", Tag("component", component), OperationTag(operation))
}

func (f *Forwarder) RecordCircuitBreakerStateChange(operation, from, to string) {
	f.publisher.Incr("circuit_breaker.transitions", OperationTag(operation), CircuitStateTag(to))
}

func (f *Forwarder) RecordRecovery(operation, strategy string, recovered bool, latency time.Duration) {
	name := "recovery.failed"
	if recovered {
		name = "recovery.recovered"
	}
	f.publisher.Incr(name, OperationTag(operation), StrategyTag(strategy))
	f.publisher.Timing("recovery.latency", latency, OperationTag(operation))
}

func (f *Forwarder) RecordOperation(operation string, latency time.Duration, err error) {
	f.publisher.Timing("operation.duration", latency, OperationTag(operation))
}

func (f *Forwarder) RecordScalingAction(action string, from, to int) {
	f.publisher.Incr("scaling.actions", Tag("action", action))
	f.publisher.Gauge("scaling.target_instances", float64(to))
}

// Recorders fans every event out to each recorder in order.
type Recorders []types.MetricsRecorder

func (r Recorders) RecordHit(component string, key string, latency time.Duration) {
	for _, m := range r {
		m.RecordHit(component, key, latency)
	}
}

func (r Recorders) RecordMiss(component string, key string, latency time.Duration) {
	for _, m := range r {
		m.RecordMiss(component, key, latency)
	}
}

func (r Recorders) RecordSet(component string, key string, size int, latency time.Duration) {
	for _, m := range r {
		m.RecordSet(component, key, size, latency)
	}
}

func (r Recorders) RecordEviction(component string, key string, policy string) {
	for _, m := range r {
		m.RecordEviction(component, key, policy)
	}
}

func (r Recorders) RecordError(component string, operation string, err error) {
	for _, m := range r {
		m.RecordError(component, operation, err)
	}
}

func (r Recorders) RecordCircuitBreakerStateChange(operation, from, to string) {
	for _, m := range r {
		m.RecordCircuitBreakerStateChange(operation, from, to)
	}
}

func (r Recorders) RecordRecovery(operation, strategy string, recovered bool, latency time.Duration) {
	for _, m := range r {
		m.RecordRecovery(operation, strategy, recovered, latency)
	}
}

func (r Recorders) RecordOperation(operation string, latency time.Duration, err error) {
	for _, m := range r {
		m.RecordOperation(operation, latency, err)
	}
}

func (r Recorders) RecordScalingAction(action string, from, to int) {
	for _, m := range r {
		m.RecordScalingAction(action, from, to)
	}
}

var (
	_ types.MetricsRecorder = (*Forwarder)(nil)
	_ types.MetricsRecorder = Recorders(nil)
)
