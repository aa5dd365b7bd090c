package metrics

import "fmt"

// Tag creates a formatted DataDog tag string in "key:value" format.
func Tag(key, value string) string {
	return fmt.Sprintf("%s:%s", key, value)
}

// OperationTag creates an operation tag.
func OperationTag(op string) string {
	return Tag("operation", op)
}

// StrategyTag creates a recovery strategy tag.
func StrategyTag(strategy string) string {
	return Tag("strategy", strategy)
}

// PolicyTag creates a cache eviction policy tag.
func PolicyTag(policy string) string {
	return Tag("policy", policy)
}

// CircuitStateTag creates a circuit breaker state tag.
func CircuitStateTag(state string) string {
	return Tag("circuit_state", state)
}

// HealthTag creates a health status tag.
func HealthTag(status string) string {
	return Tag("health", status)
}
