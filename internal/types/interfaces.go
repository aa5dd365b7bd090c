package types

import "time"

type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, dest any) error
}

// MetricsRecorder receives engine events as they happen.
type MetricsRecorder interface {
	RecordHit(component string, key string, latency time.Duration)
	RecordMiss(component string, key string, latency time.Duration)
	RecordSet(component string, key string, size int, latency time.Duration)
	RecordEviction(component string, key string, policy string)
	RecordError(component string, operation string, err error)
	RecordCircuitBreakerStateChange(operation, from, to string)
	RecordRecovery(operation, strategy string, recovered bool, latency time.Duration)
	RecordOperation(operation string, latency time.Duration, err error)
	RecordScalingAction(action string, from, to int)
}

// Publisher pushes metrics to an external backend.
type Publisher interface {
	Gauge(name string, value float64, tags ...string)
	Incr(name string, tags ...string)
	Count(name string, value int64, tags ...string)
	Histogram(name string, value float64, tags ...string)
	Timing(name string, duration time.Duration, tags ...string)
	Event(title, text, alertType string, tags ...string)
	PublishSnapshot(s *EngineSnapshot)
	Close() error
}

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
