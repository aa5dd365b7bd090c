// Package prometheus exposes engine snapshots as Prometheus metrics.
package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/metrics"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

const defaultNamespace = "acre"

// Collector reads an engine snapshot and the tracker's counters on every
// scrape. It keeps no state of its own.
type Collector struct {
	snapshot metrics.SnapshotFunc
	tracker  *metrics.Tracker

	cacheEntries    *prometheus.Desc
	cacheCapacity   *prometheus.Desc
	cacheHitRate    *prometheus.Desc
	cacheEvictions  *prometheus.Desc
	recoveryHealthy *prometheus.Desc
	recoveryRate    *prometheus.Desc
	recoveryErrors  *prometheus.Desc
	recoveryFailed  *prometheus.Desc
	openBreakers    *prometheus.Desc
	backends        *prometheus.Desc
	activeQueries   *prometheus.Desc
	instances       *prometheus.Desc
	latency         *prometheus.Desc
	operations      *prometheus.Desc
	operationErrors *prometheus.Desc
	recoveries      *prometheus.Desc
	breakerTransits *prometheus.Desc
	scalingActions  *prometheus.Desc
}

// NewCollector creates a collector. tracker may be nil.
func NewCollector(namespace string, snapshot metrics.SnapshotFunc, tracker *metrics.Tracker) *Collector {
	if namespace == "" {
		namespace = defaultNamespace
	}
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}

	return &Collector{
		snapshot: snapshot,
		tracker:  tracker,

		cacheEntries:    desc("cache_entries", "Entries currently held by the cache."),
		cacheCapacity:   desc("cache_capacity", "Maximum number of cache entries."),
		cacheHitRate:    desc("cache_hit_rate", "Cache hits divided by lookups."),
		cacheEvictions:  desc("cache_evictions_total", "Entries evicted by the cache policy."),
		recoveryHealthy: desc("recovery_healthy", "1 when the recovery executor reports healthy.", "status"),
		recoveryRate:    desc("recovery_rate", "Recovered errors relative to all errors."),
		recoveryErrors:  desc("recovery_errors_total", "Failed strategy steps."),
		recoveryFailed:  desc("recovery_exhausted_total", "Strategy chains that ran out of strategies."),
		openBreakers:    desc("circuit_breakers_open", "Circuit breakers not in the closed state."),
		backends:        desc("selector_backends", "Registered backends."),
		activeQueries:   desc("selector_active_queries", "In-flight queries across backends."),
		instances:       desc("scaling_instances", "Current instance count."),
		latency:         desc("operation_latency_ms", "Operation latency percentiles in milliseconds.", "quantile"),
		operations:      desc("operations_total", "Primary operation invocations."),
		operationErrors: desc("operation_errors_total", "Primary operation invocations that failed."),
		recoveries:      desc("recoveries_total", "Successful recoveries by strategy.", "strategy"),
		breakerTransits: desc("circuit_breaker_transitions_total", "Circuit breaker state changes."),
		scalingActions:  desc("scaling_actions_total", "Applied scaling actions.", "action"),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.cacheEntries, c.cacheCapacity, c.cacheHitRate, c.cacheEvictions,
		c.recoveryHealthy, c.recoveryRate, c.recoveryErrors, c.recoveryFailed, c.openBreakers,
		c.backends, c.activeQueries, c.instances, c.latency,
		c.operations, c.operationErrors, c.recoveries, c.breakerTransits, c.scalingActions,
	} {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.snapshot != nil {
		if s := c.snapshot(); s != nil {
			c.collectSnapshot(ch, s)
		}
	}
	if c.tracker != nil {
		c.collectTracker(ch, c.tracker.Snapshot())
	}
}

func (c *Collector) collectSnapshot(ch chan<- prometheus.Metric, s *types.EngineSnapshot) {
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}
	counter := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v)
	}

	gauge(c.cacheEntries, float64(s.CacheEntries))
	gauge(c.cacheCapacity, float64(s.CacheCapacity))
	gauge(c.cacheHitRate, s.CacheHitRate)
	counter(c.cacheEvictions, float64(s.CacheEvictions))

	healthy := 0.0
	if s.RecoveryHealth == types.HealthStatusHealthy {
		healthy = 1
	}
	gauge(c.recoveryHealthy, healthy, s.RecoveryHealth.String())
	gauge(c.recoveryRate, s.RecoveryRate)
	counter(c.recoveryErrors, float64(s.TotalErrors))
	counter(c.recoveryFailed, float64(s.FailedRecoveries))
	gauge(c.openBreakers, float64(s.OpenBreakers))

	gauge(c.backends, float64(s.Backends))
	gauge(c.activeQueries, float64(s.ActiveQueries))
	gauge(c.instances, float64(s.CurrentInstances))

	gauge(c.latency, s.P50LatencyMs, "0.5")
	gauge(c.latency, s.P95LatencyMs, "0.95")
	gauge(c.latency, s.P99LatencyMs, "0.99")
}

func (c *Collector) collectTracker(ch chan<- prometheus.Metric, s metrics.Snapshot) {
	counter := func(d *prometheus.Desc, v int64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}

	counter(c.operations, s.Operations)
	counter(c.operationErrors, s.OperationErrors)
	for strategy, n := range s.RecoveryMethods {
		counter(c.recoveries, n, strategy)
	}
	counter(c.breakerTransits, s.BreakerTransitions)
	counter(c.scalingActions, s.ScaleUps, "scale_up")
	counter(c.scalingActions, s.ScaleDowns, "scale_down")
}

// Handler registers c on a private registry and returns the scrape handler.
func Handler(c *Collector) (http.Handler, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(c); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}), nil
}

var _ prometheus.Collector = (*Collector)(nil)
