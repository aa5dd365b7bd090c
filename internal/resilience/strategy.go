package resilience

import (
	"context"
	"fmt"
	"strings"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

// Operation is a caller-supplied unit of work run by the Executor.
type Operation func(ctx context.Context, args ...any) (any, error)

// Strategy is one step of a recovery chain.
type Strategy int

const (
	StrategyRetry Strategy = iota + 1
	StrategyCircuitBreaker
	StrategyFallback
	StrategyGracefulDegradation
	StrategyAlertAndContinue
)

func (s Strategy) String() string {
	switch s {
	case StrategyRetry:
		return "retry"
	case StrategyCircuitBreaker:
		return "circuit_breaker"
	case StrategyFallback:
		return "fallback"
	case StrategyGracefulDegradation:
		return "graceful_degradation"
	case StrategyAlertAndContinue:
		return "alert_and_continue"
	default:
		return "unknown"
	}
}

func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseStrategy maps a config name onto a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "retry":
		return StrategyRetry, nil
	case "circuit_breaker", "circuit-breaker":
		return StrategyCircuitBreaker, nil
	case "fallback":
		return StrategyFallback, nil
	case "graceful_degradation", "graceful-degradation", "degrade":
		return StrategyGracefulDegradation, nil
	case "alert_and_continue", "alert-and-continue", "alert":
		return StrategyAlertAndContinue, nil
	default:
		return 0, fmt.Errorf("%w: unknown recovery strategy %q", types.ErrInvalidConfig, name)
	}
}

// ParseStrategies parses an ordered chain.
func ParseStrategies(names []string) ([]Strategy, error) {
	out := make([]Strategy, 0, len(names))
	for _, name := range names {
		s, err := ParseStrategy(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// DefaultStrategies is the chain used when Execute is given none.
func DefaultStrategies() []Strategy {
	return []Strategy{StrategyRetry, StrategyFallback, StrategyGracefulDegradation}
}

// DegradedResult is returned instead of an error by the degradation and
// alert strategies. Success is always false.
type DegradedResult struct {
	Operation string `json:"operation"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Payload   any    `json:"payload,omitempty"`
}

// IsDegraded reports whether result came from a degradation strategy.
func IsDegraded(result any) bool {
	_, ok := result.(*DegradedResult)
	return ok
}

// AlertSink receives alerts raised by the alert-and-continue strategy.
type AlertSink interface {
	SendAlert(ctx context.Context, alert types.Alert) error
}
