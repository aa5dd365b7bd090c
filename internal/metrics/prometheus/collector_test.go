package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/metrics"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

func testSnapshot() *types.EngineSnapshot {
	return &types.EngineSnapshot{
		CacheEntries:     40,
		CacheCapacity:    100,
		CacheHitRate:     0.5,
		CacheEvictions:   3,
		RecoveryHealth:   types.HealthStatusHealthy,
		RecoveryRate:     0.9,
		TotalErrors:      10,
		FailedRecoveries: 1,
		OpenBreakers:     2,
		Backends:         3,
		ActiveQueries:    4,
		CurrentInstances: 5,
		P50LatencyMs:     1,
		P95LatencyMs:     2,
		P99LatencyMs:     3,
	}
}

func gather(t *testing.T, c *Collector) map[string][]*dto.Metric {
	t.Helper()

	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(c))

	families, err := registry.Gather()
	require.NoError(t, err)

	out := make(map[string][]*dto.Metric, len(families))
	for _, f := range families {
		out[f.GetName()] = f.GetMetric()
	}
	return out
}

func TestCollectorSnapshot(t *testing.T) {
	c := NewCollector("", testSnapshot, nil)
	got := gather(t, c)

	require.Contains(t, got, "acre_cache_entries")
	assert.Equal(t, 40.0, got["acre_cache_entries"][0].GetGauge().GetValue())
	assert.Equal(t, 3.0, got["acre_cache_evictions_total"][0].GetCounter().GetValue())
	assert.Equal(t, 2.0, got["acre_circuit_breakers_open"][0].GetGauge().GetValue())
	assert.Equal(t, 5.0, got["acre_scaling_instances"][0].GetGauge().GetValue())

	healthy := got["acre_recovery_healthy"][0]
	assert.Equal(t, 1.0, healthy.GetGauge().GetValue())
	assert.Equal(t, "healthy", healthy.GetLabel()[0].GetValue())

	assert.Len(t, got["acre_operation_latency_ms"], 3)
	assert.NotContains(t, got, "acre_operations_total", "tracker metrics need a tracker")
}

func TestCollectorTracker(t *testing.T) {
	tracker := metrics.NewTracker()
	tracker.RecordOperation("db", time.Millisecond, nil)
	tracker.RecordOperation("db", time.Millisecond, assert.AnError)
	tracker.RecordRecovery("db", "retry", true, time.Millisecond)
	tracker.RecordRecovery("db", "fallback", true, time.Millisecond)
	tracker.RecordScalingAction("scale_up", 1, 2)

	c := NewCollector("test", nil, tracker)
	got := gather(t, c)

	assert.Equal(t, 2.0, got["test_operations_total"][0].GetCounter().GetValue())
	assert.Equal(t, 1.0, got["test_operation_errors_total"][0].GetCounter().GetValue())
	assert.Len(t, got["test_recoveries_total"], 2)
	assert.Len(t, got["test_scaling_actions_total"], 2)
	assert.NotContains(t, got, "test_cache_entries")
}

func TestCollectorNilSnapshot(t *testing.T) {
	c := NewCollector("", func() *types.EngineSnapshot { return nil }, nil)
	assert.Empty(t, gather(t, c))
}

func TestHandler(t *testing.T) {
	h, err := Handler(NewCollector("", testSnapshot, metrics.NewTracker()))
	require.NoError(t, err)

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "acre_cache_hit_rate 0.5"), "body: %s", body)
}
