package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSampler struct {
	cpu, mem float64
}

func (s stubSampler) Sample(context.Context) (float64, float64, error) {
	return s.cpu, s.mem, nil
}

func run(t *testing.T, opts *options, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	if opts == nil {
		opts = &options{}
	}
	if opts.sampler == nil {
		opts.sampler = stubSampler{cpu: 10, mem: 10}
	}
	cmd := newRootCmd(&out, &errOut, opts)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const testYAML = `
cache:
  capacity: 8
  policy: lru
  payloadStore: map
recovery:
  retry:
    maxAttempts: 2
    baseDelay: 1ms
    maxDelay: 2ms
    backoffFactor: 2
redis:
  password: hunter2
metrics:
  enabled: false
`

func TestConfigCommand(t *testing.T) {
	path := writeConfig(t, "acre.yaml", testYAML)

	t.Run("json", func(t *testing.T) {
		out, err := run(t, nil, "config", "--config", path)
		require.NoError(t, err)

		var got map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		cache := got["cache"].(map[string]any)
		assert.Equal(t, float64(8), cache["capacity"])
		assert.Equal(t, "lru", cache["policy"])
		assert.NotContains(t, out, "hunter2")
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := run(t, nil, "config", "--config", path, "--format", "yaml")
		require.NoError(t, err)
		assert.Contains(t, out, "capacity: 8")
		assert.NotContains(t, out, "hunter2")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := run(t, nil, "config", "--format", "toml")
		assert.Error(t, err)
	})

	t.Run("invalid config", func(t *testing.T) {
		bad := writeConfig(t, "bad.yaml", "cache:\n  capacity: -1\n")
		_, err := run(t, nil, "config", "--config", bad)
		assert.Error(t, err)
	})
}

func TestAutoscaleOnce(t *testing.T) {
	path := writeConfig(t, "acre.yaml", testYAML)
	opts := &options{sampler: stubSampler{cpu: 95, mem: 50}}

	out, err := run(t, opts, "autoscale", "--config", path, "--once", "--auto-apply")
	require.NoError(t, err)

	var line struct {
		Decision struct {
			Needed bool `json:"needed"`
			Action *struct {
				Type string `json:"type"`
				To   int    `json:"to"`
			} `json:"action"`
		} `json:"decision"`
		Applied bool `json:"applied"`
	}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &line))
	assert.True(t, line.Decision.Needed)
	assert.True(t, line.Applied)
	require.NotNil(t, line.Decision.Action)
	assert.Equal(t, "scale_up", line.Decision.Action.Type)
	assert.Equal(t, 2, line.Decision.Action.To)
}

func TestAutoscaleDuration(t *testing.T) {
	path := writeConfig(t, "acre.yaml", testYAML+"scaling:\n  evaluationInterval: 5ms\n")

	start := time.Now()
	out, err := run(t, nil, "autoscale", "--config", path, "--duration", "50ms")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.NotEmpty(t, strings.TrimSpace(out), "expected at least one decision line")
}

func TestHealthCommand(t *testing.T) {
	path := writeConfig(t, "acre.yaml", testYAML)

	t.Run("healthy", func(t *testing.T) {
		out, err := run(t, nil, "health", "--config", path, "--probes", "5", "--strict")
		require.NoError(t, err)

		got := decodeHealth(t, out)
		assert.Equal(t, int64(0), got.Health.TotalErrors)
		assert.Equal(t, 0, got.Degraded)
		assert.Equal(t, "healthy", got.Health.OverallHealth)
	})

	t.Run("failures recovered by fallback", func(t *testing.T) {
		out, err := run(t, nil, "health", "--config", path, "--probes", "10", "--fail-every", "2")
		require.NoError(t, err)

		got := decodeHealth(t, out)
		assert.Equal(t, int64(5), got.Health.RecoveredErrors)
		assert.Equal(t, int64(5), got.Health.RecoveryMethods["fallback"])
	})

	t.Run("strict fails when degraded", func(t *testing.T) {
		_, err := run(t, nil, "health", "--config", path, "--probes", "4", "--fail-every", "1", "--strict")
		assert.True(t, errors.Is(err, ErrUnhealthy), "error = %v", err)
	})

	t.Run("negative probes", func(t *testing.T) {
		_, err := run(t, nil, "health", "--probes", "-1")
		assert.Error(t, err)
	})
}

type healthJSON struct {
	Health struct {
		OverallHealth   string           `json:"overallHealth"`
		TotalErrors     int64            `json:"totalErrors"`
		RecoveredErrors int64            `json:"recoveredErrors"`
		RecoveryMethods map[string]int64 `json:"recoveryMethods"`
	} `json:"health"`
	Degraded int `json:"degradedResults"`
}

func decodeHealth(t *testing.T, out string) healthJSON {
	t.Helper()
	var got healthJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	return got
}

func TestRootHelp(t *testing.T) {
	out, err := run(t, nil, "--help")
	require.NoError(t, err)
	for _, name := range []string{CmdConfig, CmdAutoscale, CmdHealth} {
		assert.Contains(t, out, name)
	}
}
