// Package config provides configuration management for the engine.
package config

import (
	"time"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

// SecretString is a string type that redacts its value when marshaled.
type SecretString = types.SecretString

// NewSecretString creates a new SecretString with the provided value.
func NewSecretString(value string) SecretString {
	return types.NewSecretString(value)
}

// Config contains all configuration for the engine.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type Config struct {
	Cache         CacheConfig         `json:"cache" yaml:"cache"`
	Recovery      RecoveryConfig      `json:"recovery" yaml:"recovery"`
	Selector      SelectorConfig      `json:"selector" yaml:"selector"`
	Scaling       ScalingConfig       `json:"scaling" yaml:"scaling"`
	Alerts        AlertsConfig        `json:"alerts" yaml:"alerts"`
	Redis         RedisConfig         `json:"redis" yaml:"redis"`
	Metrics       MetricsConfig       `json:"metrics" yaml:"metrics"`
	KeyValidation KeyValidationConfig `json:"keyValidation" yaml:"keyValidation"`
}

// KeyValidationConfig contains configuration for cache key validation.
type KeyValidationConfig struct {
	ReservedPatterns  []string `json:"reservedPatterns" yaml:"reservedPatterns"`
	MaxKeyLength      int      `json:"maxKeyLength" yaml:"maxKeyLength"`
	Enabled           bool     `json:"enabled" yaml:"enabled"`
	AllowEmpty        bool     `json:"allowEmpty" yaml:"allowEmpty"`
	AllowControlChars bool     `json:"allowControlChars" yaml:"allowControlChars"`
	AllowWhitespace   bool     `json:"allowWhitespace" yaml:"allowWhitespace"`
}

// ToTypesConfig converts this config to a types.KeyValidationConfig.
func (c KeyValidationConfig) ToTypesConfig() types.KeyValidationConfig {
	return types.KeyValidationConfig{
		MaxKeyLength:      c.MaxKeyLength,
		AllowEmpty:        c.AllowEmpty,
		AllowControlChars: c.AllowControlChars,
		AllowWhitespace:   c.AllowWhitespace,
		ReservedPatterns:  c.ReservedPatterns,
	}
}

// CacheConfig contains configuration for the adaptive cache.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type CacheConfig struct {
	Capacity          int            `json:"capacity" yaml:"capacity"`
	Policy            string         `json:"policy" yaml:"policy"`
	CompressThreshold int            `json:"compressThreshold" yaml:"compressThreshold"`
	DefaultTTL        time.Duration  `json:"defaultTTL" yaml:"defaultTTL"`
	PayloadStore      string         `json:"payloadStore" yaml:"payloadStore"`
	BigCache          BigCacheConfig `json:"bigcache" yaml:"bigcache"`
}

// BigCacheConfig tunes the bigcache payload store.
type BigCacheConfig struct {
	LifeWindow   time.Duration `json:"lifeWindow" yaml:"lifeWindow"`
	CleanWindow  time.Duration `json:"cleanWindow" yaml:"cleanWindow"`
	Shards       int           `json:"shards" yaml:"shards"`
	MaxSizeMB    int           `json:"maxSizeMB" yaml:"maxSizeMB"`
	MaxEntrySize int           `json:"maxEntrySize" yaml:"maxEntrySize"`
}

// RecoveryConfig contains defaults and per-operation settings for the recovery executor.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type RecoveryConfig struct {
	DefaultStrategies   []string                   `json:"defaultStrategies" yaml:"defaultStrategies"`
	Retry               RetryConfig                `json:"retry" yaml:"retry"`
	CircuitBreaker      CircuitBreakerConfig       `json:"circuitBreaker" yaml:"circuitBreaker"`
	Bulkhead            BulkheadConfig             `json:"bulkhead" yaml:"bulkhead"`
	HighSeverityMarkers []string                   `json:"highSeverityMarkers" yaml:"highSeverityMarkers"`
	Operations          map[string]OperationConfig `json:"operations" yaml:"operations"`
}

// OperationConfig overrides recovery settings for one named operation.
type OperationConfig struct {
	Retry           *RetryConfig          `json:"retry,omitempty" yaml:"retry,omitempty"`
	CircuitBreaker  *CircuitBreakerConfig `json:"circuitBreaker,omitempty" yaml:"circuitBreaker,omitempty"`
	DegradedMessage string                `json:"degradedMessage,omitempty" yaml:"degradedMessage,omitempty"`
}

// RetryConfig contains configuration for the retry strategy.
type RetryConfig struct {
	BaseDelay     time.Duration `json:"baseDelay" yaml:"baseDelay"`
	MaxDelay      time.Duration `json:"maxDelay" yaml:"maxDelay"`
	BackoffFactor float64       `json:"backoffFactor" yaml:"backoffFactor"`
	MaxAttempts   int           `json:"maxAttempts" yaml:"maxAttempts"`
}

// CircuitBreakerConfig contains configuration for a per-operation circuit breaker.
type CircuitBreakerConfig struct {
	FailureThreshold int           `json:"failureThreshold" yaml:"failureThreshold"`
	SuccessThreshold int           `json:"successThreshold" yaml:"successThreshold"`
	RecoveryTimeout  time.Duration `json:"recoveryTimeout" yaml:"recoveryTimeout"`
}

// BulkheadConfig contains configuration for the bulkhead middleware.
type BulkheadConfig struct {
	Enabled        bool          `json:"enabled" yaml:"enabled"`
	MaxConcurrent  int           `json:"maxConcurrent" yaml:"maxConcurrent"`
	MaxQueue       int           `json:"maxQueue" yaml:"maxQueue"`
	AcquireTimeout time.Duration `json:"acquireTimeout" yaml:"acquireTimeout"`
}

// SelectorConfig lists the backends known at startup.
type SelectorConfig struct {
	Backends []BackendConfig `json:"backends" yaml:"backends"`
}

// BackendConfig describes one selectable backend. Zero weight and
// maxConnections fall back to 1.0 and 100.
type BackendConfig struct {
	ID             string   `json:"id" yaml:"id"`
	QueryTypes     []string `json:"queryTypes" yaml:"queryTypes"`
	Weight         float64  `json:"weight" yaml:"weight"`
	MaxConnections int      `json:"maxConnections" yaml:"maxConnections"`
}

// ScalingConfig contains the scaling rule and reporter settings.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type ScalingConfig struct {
	CPUThreshold          float64       `json:"cpuThreshold" yaml:"cpuThreshold"`
	MemoryThreshold       float64       `json:"memoryThreshold" yaml:"memoryThreshold"`
	ResponseTimeThreshold time.Duration `json:"responseTimeThreshold" yaml:"responseTimeThreshold"`
	QueueLengthThreshold  int           `json:"queueLengthThreshold" yaml:"queueLengthThreshold"`
	ScaleUpCooldown       time.Duration `json:"scaleUpCooldown" yaml:"scaleUpCooldown"`
	ScaleDownCooldown     time.Duration `json:"scaleDownCooldown" yaml:"scaleDownCooldown"`
	MinInstances          int           `json:"minInstances" yaml:"minInstances"`
	MaxInstances          int           `json:"maxInstances" yaml:"maxInstances"`
	InitialInstances      int           `json:"initialInstances" yaml:"initialInstances"`
	EvaluationInterval    time.Duration `json:"evaluationInterval" yaml:"evaluationInterval"`
	HistorySize           int           `json:"historySize" yaml:"historySize"`
	AutoApply             bool          `json:"autoApply" yaml:"autoApply"`
}

// AlertsConfig controls where alerts and applied scaling actions are sent.
//
//nolint:govet // Small config struct - minimal alignment benefit
type AlertsConfig struct {
	RedisStream   bool   `json:"redisStream" yaml:"redisStream"`
	Stream        string `json:"stream" yaml:"stream"`
	ScalingStream string `json:"scalingStream" yaml:"scalingStream"`
	MaxLen        int64  `json:"maxLen" yaml:"maxLen"`
	QueueSize     int    `json:"queueSize" yaml:"queueSize"`
	Events        bool   `json:"events" yaml:"events"`
}

// RedisConfig contains the Redis connection used for event streams.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type RedisConfig struct {
	DialTimeout         time.Duration `json:"dialTimeout" yaml:"dialTimeout"`
	ReadTimeout         time.Duration `json:"readTimeout" yaml:"readTimeout"`
	WriteTimeout        time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
	PoolTimeout         time.Duration `json:"poolTimeout" yaml:"poolTimeout"`
	HealthCheckInterval time.Duration `json:"healthCheckInterval" yaml:"healthCheckInterval"`
	Password            SecretString  `json:"password" yaml:"password"`
	Address             string        `json:"address" yaml:"address"`
	KeyPrefix           string        `json:"keyPrefix" yaml:"keyPrefix"`
	DB                  int           `json:"db" yaml:"db"`
	PoolSize            int           `json:"poolSize" yaml:"poolSize"`
	MinIdleConns        int           `json:"minIdleConns" yaml:"minIdleConns"`
	Enabled             bool          `json:"enabled" yaml:"enabled"`
	EnableTLS           bool          `json:"enableTLS" yaml:"enableTLS"`
	TLSSkipVerify       bool          `json:"tlsSkipVerify" yaml:"tlsSkipVerify"`
}

// MetricsConfig contains configuration for metrics publishing.
//
//nolint:govet // Small config struct - minimal alignment benefit
type MetricsConfig struct {
	PublishInterval time.Duration    `json:"publishInterval" yaml:"publishInterval"`
	DataDog         DataDogConfig    `json:"datadog" yaml:"datadog"`
	Prometheus      PrometheusConfig `json:"prometheus" yaml:"prometheus"`
	Enabled         bool             `json:"enabled" yaml:"enabled"`
}

// DataDogConfig contains configuration for DataDog metrics publishing.
//
//nolint:govet // Small config struct - minimal alignment benefit
type DataDogConfig struct {
	Tags      []string `json:"tags" yaml:"tags"`
	AgentHost string   `json:"agentHost" yaml:"agentHost"`
	Prefix    string   `json:"prefix" yaml:"prefix"`
	Port      int      `json:"port" yaml:"port"`
	Enabled   bool     `json:"enabled" yaml:"enabled"`
}

// PrometheusConfig contains configuration for the Prometheus collector.
type PrometheusConfig struct {
	Namespace string `json:"namespace" yaml:"namespace"`
	Enabled   bool   `json:"enabled" yaml:"enabled"`
}
