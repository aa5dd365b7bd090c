// Package types provides types shared by the engine's components.
// This package breaks import cycles between pkg/acre and the internal packages.
package types

import "time"

// Severity ranks an alert for the monitoring side.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Alert is raised by the alert-and-continue strategy.
type Alert struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Operation string    `json:"operation"`
	ErrorType string    `json:"errorType"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
}

// AlertType maps the severity onto a statsd event alert type.
func (a Alert) AlertType() string {
	switch a.Severity {
	case SeverityHigh:
		return "error"
	case SeverityMedium:
		return "warning"
	default:
		return "info"
	}
}

// MarshalText lets alerts render the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
