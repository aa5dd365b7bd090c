package config

import "time"

// DefaultStrategies is the recovery chain used when neither the caller nor the config names one.
var DefaultStrategies = []string{"retry", "fallback", "graceful_degradation"}

// DefaultRetryConfig returns the retry settings used for unregistered operations.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		BaseDelay:     1 * time.Second,
		MaxDelay:      60 * time.Second,
		BackoffFactor: 2.0,
	}
}

// DefaultCircuitBreakerConfig returns the breaker settings used when an operation has none registered.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		RecoveryTimeout:  60 * time.Second,
	}
}

// DefaultScalingConfig returns the default scaling rule.
func DefaultScalingConfig() ScalingConfig {
	return ScalingConfig{
		CPUThreshold:          70,
		MemoryThreshold:       80,
		ResponseTimeThreshold: 2 * time.Second,
		QueueLengthThreshold:  100,
		ScaleUpCooldown:       5 * time.Minute,
		ScaleDownCooldown:     10 * time.Minute,
		MinInstances:          1,
		MaxInstances:          10,
		InitialInstances:      1,
		EvaluationInterval:    60 * time.Second,
		HistorySize:           50,
	}
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			Capacity:          1000,
			Policy:            "adaptive",
			CompressThreshold: 1024,
			DefaultTTL:        5 * time.Minute,
			PayloadStore:      "map",
			BigCache: BigCacheConfig{
				Shards:       256,
				MaxSizeMB:    256,
				MaxEntrySize: 64 * 1024,
				LifeWindow:   24 * time.Hour,
				CleanWindow:  0,
			},
		},
		Recovery: RecoveryConfig{
			DefaultStrategies:   append([]string(nil), DefaultStrategies...),
			Retry:               DefaultRetryConfig(),
			CircuitBreaker:      DefaultCircuitBreakerConfig(),
			HighSeverityMarkers: []string{"database"},
			Bulkhead: BulkheadConfig{
				Enabled:        false,
				MaxConcurrent:  100,
				MaxQueue:       50,
				AcquireTimeout: 100 * time.Millisecond,
			},
		},
		Scaling: DefaultScalingConfig(),
		Alerts: AlertsConfig{
			RedisStream:   false,
			Stream:        "acre:alerts",
			ScalingStream: "acre:scaling",
			MaxLen:        10000,
			QueueSize:     1000,
			Events:        true,
		},
		Redis: RedisConfig{
			Enabled:             false,
			Address:             "localhost:6379",
			Password:            SecretString{},
			DB:                  0,
			KeyPrefix:           "",
			PoolSize:            10,
			MinIdleConns:        1,
			DialTimeout:         5 * time.Second,
			ReadTimeout:         3 * time.Second,
			WriteTimeout:        3 * time.Second,
			PoolTimeout:         4 * time.Second,
			HealthCheckInterval: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:         true,
			PublishInterval: 10 * time.Second,
			DataDog: DataDogConfig{
				Enabled:   false,
				AgentHost: "127.0.0.1",
				Port:      8125,
				Prefix:    "acre",
				Tags:      []string{},
			},
			Prometheus: PrometheusConfig{
				Enabled:   false,
				Namespace: "acre",
			},
		},
		KeyValidation: KeyValidationConfig{
			Enabled:         true,
			MaxKeyLength:    1024,
			AllowWhitespace: true,
		},
	}
}

// ForTesting returns a minimal configuration suitable for unit tests:
// small cache, millisecond backoff, short breaker timeout, no external services.
func ForTesting() *Config {
	cfg := DefaultConfig()
	cfg.Cache.Capacity = 16
	cfg.Cache.Policy = "lru"
	cfg.Cache.DefaultTTL = time.Minute
	cfg.Cache.BigCache.Shards = 16
	cfg.Cache.BigCache.MaxSizeMB = 8
	cfg.Recovery.Retry = RetryConfig{
		MaxAttempts:   3,
		BaseDelay:     time.Millisecond,
		MaxDelay:      10 * time.Millisecond,
		BackoffFactor: 2.0,
	}
	cfg.Recovery.CircuitBreaker = CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		RecoveryTimeout:  50 * time.Millisecond,
	}
	cfg.Recovery.Bulkhead = BulkheadConfig{
		Enabled:        false,
		MaxConcurrent:  10,
		MaxQueue:       5,
		AcquireTimeout: 50 * time.Millisecond,
	}
	cfg.Scaling.EvaluationInterval = 10 * time.Millisecond
	cfg.Alerts.Events = false
	cfg.Redis.Enabled = false
	cfg.Redis.KeyPrefix = "test:"
	cfg.Redis.DialTimeout = time.Second
	cfg.Redis.HealthCheckInterval = 0
	cfg.Metrics.Enabled = false
	cfg.Metrics.PublishInterval = time.Second
	return cfg
}

// ForTestingWithRedis returns a test config with Redis streams enabled.
func ForTestingWithRedis(addr string) *Config {
	cfg := ForTesting()
	cfg.Redis.Enabled = true
	cfg.Redis.Address = addr
	cfg.Alerts.RedisStream = true
	cfg.Alerts.Stream = "test:alerts"
	cfg.Alerts.ScalingStream = "test:scaling"
	return cfg
}
