// Package metrics collects engine events and publishes engine snapshots.
package metrics

import (
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

const (
	defaultLatencyBufferSize = 10000
)

// Snapshot is a point-in-time copy of the tracker's counters.
//
//nolint:govet // Metrics struct - grouping by component improves readability
type Snapshot struct {
	Timestamp time.Time

	CacheHits         int64
	CacheMisses       int64
	CacheSets         int64
	CacheEvictions    int64
	CacheBytesWritten int64
	ErrorCount        int64

	Operations      int64
	OperationErrors int64
	Recoveries      int64
	FailedRecovery  int64
	RecoveryMethods map[string]int64

	BreakerTransitions int64
	BreakerOpens       int64

	ScaleUps   int64
	ScaleDowns int64

	AvgLatencyMs float64
	P50LatencyMs float64
	P95LatencyMs float64
	P99LatencyMs float64
}

// HitRate returns hits/(hits+misses), 0 with no traffic.
func (s Snapshot) HitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}

// ApplyTo copies the operation latency figures into an engine snapshot.
func (s Snapshot) ApplyTo(e *types.EngineSnapshot) {
	e.AvgLatencyMs = s.AvgLatencyMs
	e.P50LatencyMs = s.P50LatencyMs
	e.P95LatencyMs = s.P95LatencyMs
	e.P99LatencyMs = s.P99LatencyMs
}

// Tracker is the in-process types.MetricsRecorder. Counters are atomics;
// operation latencies go into a fixed ring used for percentiles.
type Tracker struct {
	cacheHits      atomic.Int64
	cacheMisses    atomic.Int64
	cacheSets      atomic.Int64
	cacheEvictions atomic.Int64
	bytesWritten   atomic.Int64

	errorCount atomic.Int64

	operations      atomic.Int64
	operationErrors atomic.Int64
	recoveries      atomic.Int64
	failedRecovery  atomic.Int64

	cbStateChanges atomic.Int64
	cbOpens        atomic.Int64

	scaleUps   atomic.Int64
	scaleDowns atomic.Int64

	methodsMu sync.Mutex
	methods   map[string]int64

	latencyMu     sync.RWMutex
	latencyBuffer []time.Duration
	latencyIndex  int
	latencyCount  int
}

func NewTracker() *Tracker {
	return NewTrackerWithSize(defaultLatencyBufferSize)
}

// NewTrackerWithSize creates a tracker keeping the last size latencies.
func NewTrackerWithSize(size int) *Tracker {
	if size <= 0 {
		size = defaultLatencyBufferSize
	}
	return &Tracker{
		methods:       make(map[string]int64),
		latencyBuffer: make([]time.Duration, size),
	}
}

func (t *Tracker) RecordHit(component string, key string, latency time.Duration) {
	t.cacheHits.Add(1)
}

func (t *Tracker) RecordMiss(component string, key string, latency time.Duration) {
	t.cacheMisses.Add(1)
}

func (t *Tracker) RecordSet(component string, key string, size int, latency time.Duration) {
	t.cacheSets.Add(1)
	t.bytesWritten.Add(int64(size))
}

func (t *Tracker) RecordEviction(component string, key string, policy string) {
	t.cacheEvictions.Add(1)
}

// RecordError records an error.
func (t *Tracker) RecordError(component string, operation string, err error) {
	t.errorCount.Add(1)
}

// RecordCircuitBreakerStateChange records circuit breaker state transitions.
// State names match case-insensitively.
func (t *Tracker) RecordCircuitBreakerStateChange(operation, from, to string) {
	t.cbStateChanges.Add(1)
	if strings.EqualFold(to, "open") {
		t.cbOpens.Add(1)
	}
}

// RecordRecovery counts a strategy chain outcome. Successful recoveries are
// also counted per strategy.
func (t *Tracker) RecordRecovery(operation, strategy string, recovered bool, latency time.Duration) {
	if !recovered {
		t.failedRecovery.Add(1)
		return
	}
	t.recoveries.Add(1)
	t.methodsMu.Lock()
	t.methods[strategy]++
	t.methodsMu.Unlock()
}

// RecordOperation records one primary invocation and its latency.
func (t *Tracker) RecordOperation(operation string, latency time.Duration, err error) {
	t.operations.Add(1)
	if err != nil {
		t.operationErrors.Add(1)
	}
	t.recordLatency(latency)
}

func (t *Tracker) RecordScalingAction(action string, from, to int) {
	switch {
	case to > from:
		t.scaleUps.Add(1)
	case to < from:
		t.scaleDowns.Add(1)
	}
}

// recordLatency adds a latency measurement using a circular buffer.
// This is O(1) time complexity with no memory allocations.
func (t *Tracker) recordLatency(latency time.Duration) {
	t.latencyMu.Lock()
	t.latencyBuffer[t.latencyIndex] = latency
	t.latencyIndex = (t.latencyIndex + 1) % len(t.latencyBuffer)
	if t.latencyCount < len(t.latencyBuffer) {
		t.latencyCount++
	}
	t.latencyMu.Unlock()
}

// Snapshot returns current metrics snapshot.
func (t *Tracker) Snapshot() Snapshot {
	t.latencyMu.RLock()
	count := t.latencyCount
	latencyCopy := make([]time.Duration, count)
	if count > 0 {
		if count < len(t.latencyBuffer) {
			copy(latencyCopy, t.latencyBuffer[:count])
		} else {
			// Buffer is full - oldest data starts at latencyIndex
			firstPart := len(t.latencyBuffer) - t.latencyIndex
			copy(latencyCopy[:firstPart], t.latencyBuffer[t.latencyIndex:])
			copy(latencyCopy[firstPart:], t.latencyBuffer[:t.latencyIndex])
		}
	}
	t.latencyMu.RUnlock()

	t.methodsMu.Lock()
	methods := maps.Clone(t.methods)
	t.methodsMu.Unlock()

	snapshot := Snapshot{
		Timestamp:          time.Now(),
		CacheHits:          t.cacheHits.Load(),
		CacheMisses:        t.cacheMisses.Load(),
		CacheSets:          t.cacheSets.Load(),
		CacheEvictions:     t.cacheEvictions.Load(),
		CacheBytesWritten:  t.bytesWritten.Load(),
		ErrorCount:         t.errorCount.Load(),
		Operations:         t.operations.Load(),
		OperationErrors:    t.operationErrors.Load(),
		Recoveries:         t.recoveries.Load(),
		FailedRecovery:     t.failedRecovery.Load(),
		RecoveryMethods:    methods,
		BreakerTransitions: t.cbStateChanges.Load(),
		BreakerOpens:       t.cbOpens.Load(),
		ScaleUps:           t.scaleUps.Load(),
		ScaleDowns:         t.scaleDowns.Load(),
	}

	if len(latencyCopy) > 0 {
		snapshot.AvgLatencyMs = milliseconds(avgDuration(latencyCopy))
		sorted := slices.Clone(latencyCopy)
		slices.Sort(sorted)
		snapshot.P50LatencyMs = milliseconds(percentileSorted(sorted, 50))
		snapshot.P95LatencyMs = milliseconds(percentileSorted(sorted, 95))
		snapshot.P99LatencyMs = milliseconds(percentileSorted(sorted, 99))
	}

	return snapshot
}

// Reset clears all metrics.
func (t *Tracker) Reset() {
	t.cacheHits.Store(0)
	t.cacheMisses.Store(0)
	t.cacheSets.Store(0)
	t.cacheEvictions.Store(0)
	t.bytesWritten.Store(0)
	t.errorCount.Store(0)
	t.operations.Store(0)
	t.operationErrors.Store(0)
	t.recoveries.Store(0)
	t.failedRecovery.Store(0)
	t.cbStateChanges.Store(0)
	t.cbOpens.Store(0)
	t.scaleUps.Store(0)
	t.scaleDowns.Store(0)

	t.methodsMu.Lock()
	clear(t.methods)
	t.methodsMu.Unlock()

	t.latencyMu.Lock()
	t.latencyIndex = 0
	t.latencyCount = 0
	t.latencyMu.Unlock()
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func avgDuration(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	return total / time.Duration(len(durations))
}

func percentile(durations []time.Duration, p int) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	sorted := slices.Clone(durations)
	slices.Sort(sorted)
	return percentileSorted(sorted, p)
}

func percentileSorted(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := (len(sorted) - 1) * p / 100
	return sorted[idx]
}

var _ types.MetricsRecorder = (*Tracker)(nil)
