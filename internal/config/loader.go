package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

var (
	validPolicies      = []string{"lru", "lfu", "ttl", "adaptive"}
	validPayloadStores = []string{"map", "bigcache"}
	validStrategies    = []string{"retry", "circuit_breaker", "fallback", "graceful_degradation", "alert_and_continue"}
)

// Load loads configuration from a JSON or YAML file, chosen by extension.
// If the file doesn't exist, returns default configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithEnv loads configuration from a file and applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

//nolint:gocyclo // Environment variable parsing requires many conditional checks
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ACRE_CACHE_CAPACITY"); v != "" {
		cfg.Cache.Capacity = parseInt(v, cfg.Cache.Capacity)
	}
	if v := os.Getenv("ACRE_CACHE_POLICY"); v != "" {
		cfg.Cache.Policy = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("ACRE_CACHE_COMPRESS_THRESHOLD"); v != "" {
		cfg.Cache.CompressThreshold = parseInt(v, cfg.Cache.CompressThreshold)
	}
	if v := os.Getenv("ACRE_CACHE_DEFAULT_TTL"); v != "" {
		cfg.Cache.DefaultTTL = parseDuration(v, cfg.Cache.DefaultTTL)
	}
	if v := os.Getenv("ACRE_CACHE_PAYLOAD_STORE"); v != "" {
		cfg.Cache.PayloadStore = strings.ToLower(strings.TrimSpace(v))
	}

	if v := os.Getenv("ACRE_RETRY_MAX_ATTEMPTS"); v != "" {
		cfg.Recovery.Retry.MaxAttempts = parseInt(v, cfg.Recovery.Retry.MaxAttempts)
	}
	if v := os.Getenv("ACRE_RETRY_BASE_DELAY"); v != "" {
		cfg.Recovery.Retry.BaseDelay = parseDuration(v, cfg.Recovery.Retry.BaseDelay)
	}
	if v := os.Getenv("ACRE_RETRY_MAX_DELAY"); v != "" {
		cfg.Recovery.Retry.MaxDelay = parseDuration(v, cfg.Recovery.Retry.MaxDelay)
	}
	if v := os.Getenv("ACRE_CIRCUIT_BREAKER_FAILURE_THRESHOLD"); v != "" {
		cfg.Recovery.CircuitBreaker.FailureThreshold = parseInt(v, cfg.Recovery.CircuitBreaker.FailureThreshold)
	}
	if v := os.Getenv("ACRE_CIRCUIT_BREAKER_RECOVERY_TIMEOUT"); v != "" {
		cfg.Recovery.CircuitBreaker.RecoveryTimeout = parseDuration(v, cfg.Recovery.CircuitBreaker.RecoveryTimeout)
	}
	if v := os.Getenv("ACRE_BULKHEAD_ENABLED"); v != "" {
		cfg.Recovery.Bulkhead.Enabled = parseBool(v)
	}
	if v := os.Getenv("ACRE_BULKHEAD_MAX_CONCURRENT"); v != "" {
		cfg.Recovery.Bulkhead.MaxConcurrent = parseInt(v, cfg.Recovery.Bulkhead.MaxConcurrent)
	}

	if v := os.Getenv("ACRE_SCALING_CPU_THRESHOLD"); v != "" {
		cfg.Scaling.CPUThreshold = parseFloat(v, cfg.Scaling.CPUThreshold)
	}
	if v := os.Getenv("ACRE_SCALING_MEMORY_THRESHOLD"); v != "" {
		cfg.Scaling.MemoryThreshold = parseFloat(v, cfg.Scaling.MemoryThreshold)
	}
	if v := os.Getenv("ACRE_SCALING_MIN_INSTANCES"); v != "" {
		cfg.Scaling.MinInstances = parseInt(v, cfg.Scaling.MinInstances)
	}
	if v := os.Getenv("ACRE_SCALING_MAX_INSTANCES"); v != "" {
		cfg.Scaling.MaxInstances = parseInt(v, cfg.Scaling.MaxInstances)
	}
	if v := os.Getenv("ACRE_SCALING_AUTO_APPLY"); v != "" {
		cfg.Scaling.AutoApply = parseBool(v)
	}

	if v := os.Getenv("ACRE_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = parseBool(v)
	}
	if v := os.Getenv("ACRE_REDIS_ADDRESS"); v != "" {
		cfg.Redis.Address = v
	}
	if v := os.Getenv("ACRE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = NewSecretString(v)
	}
	if v := os.Getenv("ACRE_REDIS_DB"); v != "" {
		cfg.Redis.DB = parseInt(v, cfg.Redis.DB)
	}
	if v := os.Getenv("ACRE_REDIS_ENABLE_TLS"); v != "" {
		cfg.Redis.EnableTLS = parseBool(v)
	}
	if v := os.Getenv("ACRE_ALERTS_REDIS_STREAM"); v != "" {
		cfg.Alerts.RedisStream = parseBool(v)
	}
	if v := os.Getenv("ACRE_ALERTS_QUEUE_SIZE"); v != "" {
		cfg.Alerts.QueueSize = parseInt(v, cfg.Alerts.QueueSize)
	}

	if v := os.Getenv("ACRE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("ACRE_PROMETHEUS_ENABLED"); v != "" {
		cfg.Metrics.Prometheus.Enabled = parseBool(v)
	}

	if v := os.Getenv("DD_AGENT_HOST"); v != "" {
		cfg.Metrics.DataDog.AgentHost = v
		cfg.Metrics.DataDog.Enabled = true
	}
	if v := os.Getenv("DD_DOGSTATSD_PORT"); v != "" {
		cfg.Metrics.DataDog.Port = parseInt(v, cfg.Metrics.DataDog.Port)
	}
	if v := os.Getenv("DD_SERVICE"); v != "" {
		cfg.Metrics.DataDog.Prefix = v
	}
	if v := os.Getenv("DD_ENV"); v != "" {
		cfg.Metrics.DataDog.Tags = append(cfg.Metrics.DataDog.Tags, "env:"+v)
	}
	if v := os.Getenv("DD_VERSION"); v != "" {
		cfg.Metrics.DataDog.Tags = append(cfg.Metrics.DataDog.Tags, "version:"+v)
	}
	if v := os.Getenv("ACRE_DATADOG_ENABLED"); v != "" {
		if os.Getenv("DD_AGENT_HOST") == "" {
			cfg.Metrics.DataDog.Enabled = parseBool(v)
		}
	}
}

// Validate checks if the configuration is valid.
//
//nolint:gocyclo // One check per section keeps the messages precise
func (c *Config) Validate() error {
	if c.Cache.Capacity <= 0 {
		return invalid("cache.capacity must be positive")
	}
	if !slices.Contains(validPolicies, c.Cache.Policy) {
		return invalid("cache.policy must be one of %v, got %q", validPolicies, c.Cache.Policy)
	}
	if c.Cache.CompressThreshold < 0 {
		return invalid("cache.compressThreshold must not be negative")
	}
	if !slices.Contains(validPayloadStores, c.Cache.PayloadStore) {
		return invalid("cache.payloadStore must be one of %v, got %q", validPayloadStores, c.Cache.PayloadStore)
	}
	if c.Cache.PayloadStore == "bigcache" {
		shards := c.Cache.BigCache.Shards
		if shards <= 0 || shards&(shards-1) != 0 {
			return invalid("cache.bigcache.shards must be a positive power of 2")
		}
	}

	for _, name := range c.Recovery.DefaultStrategies {
		if !slices.Contains(validStrategies, name) {
			return invalid("recovery.defaultStrategies: unknown strategy %q", name)
		}
	}
	if err := c.Recovery.Retry.Validate(); err != nil {
		return fmt.Errorf("recovery.retry: %w", err)
	}
	if err := c.Recovery.CircuitBreaker.Validate(); err != nil {
		return fmt.Errorf("recovery.circuitBreaker: %w", err)
	}
	for name, op := range c.Recovery.Operations {
		if op.Retry != nil {
			if err := op.Retry.Validate(); err != nil {
				return fmt.Errorf("recovery.operations[%s].retry: %w", name, err)
			}
		}
		if op.CircuitBreaker != nil {
			if err := op.CircuitBreaker.Validate(); err != nil {
				return fmt.Errorf("recovery.operations[%s].circuitBreaker: %w", name, err)
			}
		}
	}
	if c.Recovery.Bulkhead.Enabled && c.Recovery.Bulkhead.MaxConcurrent <= 0 {
		return invalid("recovery.bulkhead.maxConcurrent must be positive")
	}

	seen := make(map[string]bool, len(c.Selector.Backends))
	for _, b := range c.Selector.Backends {
		if b.ID == "" {
			return invalid("selector.backends: id is required")
		}
		if seen[b.ID] {
			return invalid("selector.backends: duplicate id %q", b.ID)
		}
		seen[b.ID] = true
		if b.Weight < 0 || b.MaxConnections < 0 {
			return invalid("selector.backends[%s]: weight and maxConnections must not be negative", b.ID)
		}
	}

	if err := c.Scaling.Validate(); err != nil {
		return fmt.Errorf("scaling: %w", err)
	}

	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return invalid("redis.address is required when redis is enabled")
		}
		if c.Redis.PoolSize <= 0 {
			return invalid("redis.poolSize must be positive")
		}
	}
	if c.Alerts.RedisStream {
		if !c.Redis.Enabled {
			return invalid("alerts.redisStream requires redis.enabled")
		}
		if c.Alerts.Stream == "" || c.Alerts.ScalingStream == "" {
			return invalid("alerts.stream and alerts.scalingStream are required")
		}
		if c.Alerts.QueueSize < 0 {
			return invalid("alerts.queueSize must not be negative")
		}
	}

	if c.Metrics.Enabled && c.Metrics.PublishInterval <= 0 {
		return invalid("metrics.publishInterval must be positive")
	}

	return nil
}

// Validate checks a retry configuration once, at registration time.
func (r RetryConfig) Validate() error {
	if r.MaxAttempts <= 0 {
		return invalid("maxAttempts must be positive")
	}
	if r.BaseDelay < 0 || r.MaxDelay < 0 {
		return invalid("delays must not be negative")
	}
	if r.MaxDelay < r.BaseDelay {
		return invalid("maxDelay %s is below baseDelay %s", r.MaxDelay, r.BaseDelay)
	}
	if r.BackoffFactor < 1 {
		return invalid("backoffFactor must be at least 1")
	}
	return nil
}

// Validate checks a circuit breaker configuration once, at registration time.
func (c CircuitBreakerConfig) Validate() error {
	if c.FailureThreshold <= 0 {
		return invalid("failureThreshold must be positive")
	}
	if c.SuccessThreshold <= 0 {
		return invalid("successThreshold must be positive")
	}
	if c.RecoveryTimeout <= 0 {
		return invalid("recoveryTimeout must be positive")
	}
	return nil
}

// Validate checks the scaling rule.
func (s ScalingConfig) Validate() error {
	if s.MinInstances < 1 {
		return invalid("minInstances must be at least 1")
	}
	if s.MaxInstances < s.MinInstances {
		return invalid("maxInstances %d is below minInstances %d", s.MaxInstances, s.MinInstances)
	}
	if s.InitialInstances != 0 && (s.InitialInstances < s.MinInstances || s.InitialInstances > s.MaxInstances) {
		return invalid("initialInstances %d outside [%d, %d]", s.InitialInstances, s.MinInstances, s.MaxInstances)
	}
	if s.CPUThreshold <= 0 || s.MemoryThreshold <= 0 || s.ResponseTimeThreshold <= 0 || s.QueueLengthThreshold <= 0 {
		return invalid("thresholds must be positive")
	}
	if s.ScaleUpCooldown < 0 || s.ScaleDownCooldown < 0 {
		return invalid("cooldowns must not be negative")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", types.ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// IsInvalid reports whether err came from configuration validation.
func IsInvalid(err error) bool {
	return errors.Is(err, types.ErrInvalidConfig)
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

func parseInt(s string, defaultVal int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return defaultVal
	}
	return v
}

func parseFloat(s string, defaultVal float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return defaultVal
	}
	return v
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)

	if d, err := time.ParseDuration(s); err == nil {
		return d
	}

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultVal
}
