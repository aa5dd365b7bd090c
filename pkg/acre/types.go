package acre

import (
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/cache"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/config"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/resilience"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/scaling"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

type (
	// Config contains all configuration for the engine.
	Config = config.Config
	// Logger provides logging operations.
	Logger = types.Logger
	// MetricsRecorder receives engine events as they happen.
	MetricsRecorder = types.MetricsRecorder
	// Publisher pushes metrics to an external backend.
	Publisher = types.Publisher
	// EngineSnapshot is a point-in-time view of every component.
	EngineSnapshot = types.EngineSnapshot
	// Alert is raised by the alert-and-continue strategy.
	Alert = types.Alert
	// Severity grades an alert.
	Severity = types.Severity
	// HealthStatus represents the overall recovery health.
	HealthStatus = types.HealthStatus

	// Operation is a unit of work run by the executor.
	Operation = resilience.Operation
	// Strategy is one step of a recovery chain.
	Strategy = resilience.Strategy
	// DegradedResult is returned by the degradation and alert strategies.
	DegradedResult = resilience.DegradedResult
	// HealthReport is the executor's view for external monitoring.
	HealthReport = resilience.HealthReport
	// AlertSink receives alerts.
	AlertSink = resilience.AlertSink

	// LoadFunc produces the value for a cache miss.
	LoadFunc = cache.LoadFunc
	// CacheStats is a read-only snapshot of cache counters.
	CacheStats = cache.Stats

	// Sampler reads host utilization for the scaling reporter.
	Sampler = scaling.Sampler
	// ScalingLoadFunc reports response time and queue length.
	ScalingLoadFunc = scaling.LoadFunc
	// Decision is the outcome of one scaling evaluation.
	Decision = scaling.Decision
	// Action is a proposed or applied scaling step.
	Action = scaling.Action
)

const (
	StrategyRetry               = resilience.StrategyRetry
	StrategyCircuitBreaker      = resilience.StrategyCircuitBreaker
	StrategyFallback            = resilience.StrategyFallback
	StrategyGracefulDegradation = resilience.StrategyGracefulDegradation
	StrategyAlertAndContinue    = resilience.StrategyAlertAndContinue
)

const (
	HealthStatusHealthy   = types.HealthStatusHealthy
	HealthStatusDegraded  = types.HealthStatusDegraded
	HealthStatusUnhealthy = types.HealthStatusUnhealthy
)

const (
	SeverityLow    = types.SeverityLow
	SeverityMedium = types.SeverityMedium
	SeverityHigh   = types.SeverityHigh
)

// IsDegraded reports whether an Execute result came from a degradation strategy.
func IsDegraded(result any) bool {
	return resilience.IsDegraded(result)
}
