package types

import "time"

// HealthStatus represents the overall health state.
type HealthStatus int

const (
	// HealthStatusHealthy indicates failures are being recovered.
	HealthStatusHealthy HealthStatus = iota + 1
	// HealthStatusDegraded indicates too many failures go unrecovered.
	HealthStatusDegraded
	// HealthStatusUnhealthy indicates critical failure.
	HealthStatusUnhealthy
)

// String returns the string representation of health status.
func (s HealthStatus) String() string {
	switch s {
	case HealthStatusHealthy:
		return "healthy"
	case HealthStatusDegraded:
		return "degraded"
	case HealthStatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// MarshalText lets reports render the status by name.
func (s HealthStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// EngineSnapshot is a point-in-time view of every component, shaped for publishers.
//
//nolint:govet // Metrics struct - grouping by component improves readability
type EngineSnapshot struct {
	Timestamp time.Time

	// Cache
	CacheEntries   int
	CacheCapacity  int
	CacheHits      int64
	CacheMisses    int64
	CacheEvictions int64
	CacheHitRate   float64

	// Recovery
	RecoveryHealth   HealthStatus
	RecoveryRate     float64
	TotalErrors      int64
	RecoveredErrors  int64
	FailedRecoveries int64
	OpenBreakers     int

	// Selector
	Backends      int
	ActiveQueries int64

	// Scaling
	CurrentInstances int

	// Operation latency (milliseconds)
	AvgLatencyMs float64
	P50LatencyMs float64
	P95LatencyMs float64
	P99LatencyMs float64
}

// CacheUsage returns the fraction of cache capacity in use.
func (s *EngineSnapshot) CacheUsage() float64 {
	if s.CacheCapacity == 0 {
		return 0
	}
	return float64(s.CacheEntries) / float64(s.CacheCapacity)
}
