// Package scaling decides when the service should add or remove instances.
// The controller only decides and records; acting on a decision is left to
// whatever consumes the recorded actions.
package scaling

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/config"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

// DefaultNextCheckIn is reported in decisions when the rule has no evaluation interval.
const DefaultNextCheckIn = 60 * time.Second

// Rule holds the thresholds, cooldowns and instance bounds.
type Rule = config.ScalingConfig

type ActionType int

const (
	ActionScaleUp ActionType = iota + 1
	ActionScaleDown
)

func (a ActionType) String() string {
	switch a {
	case ActionScaleUp:
		return "scale_up"
	case ActionScaleDown:
		return "scale_down"
	default:
		return "unknown"
	}
}

func (a ActionType) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Metrics is one observation of the service's load.
type Metrics struct {
	CPUPercent    float64       `json:"cpuPercent"`
	MemoryPercent float64       `json:"memoryPercent"`
	ResponseTime  time.Duration `json:"responseTime"`
	QueueLength   int           `json:"queueLength"`
}

// Action is a proposed or applied change in instance count.
//
//nolint:govet // Report struct - field order matches the JSON output
type Action struct {
	Type       ActionType `json:"type"`
	From       int        `json:"from"`
	To         int        `json:"to"`
	Reasons    []string   `json:"reasons"`
	ProposedAt time.Time  `json:"proposedAt"`
	AppliedAt  time.Time  `json:"appliedAt,omitzero"`
}

// Decision is the result of one evaluation.
//
//nolint:govet // Report struct - field order matches the JSON output
type Decision struct {
	Needed           bool          `json:"needed"`
	Action           *Action       `json:"action,omitempty"`
	CurrentInstances int           `json:"currentInstances"`
	Reasons          []string      `json:"reasons"`
	Metrics          Metrics       `json:"metrics"`
	NextCheckIn      time.Duration `json:"nextCheckIn"`
}

// State is the controller's view of the deployment.
type State struct {
	CurrentInstances  int       `json:"currentInstances"`
	LastScaleActionAt time.Time `json:"lastScaleActionAt"`
	LastProposalAt    time.Time `json:"lastProposalAt"`
}

// ActionRecorder receives every applied action.
type ActionRecorder interface {
	RecordAction(ctx context.Context, action Action) error
}

type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithRecorder(r ActionRecorder) Option {
	return func(c *Controller) { c.recorder = r }
}

func WithMetrics(m types.MetricsRecorder) Option {
	return func(c *Controller) { c.metrics = m }
}

// Controller evaluates load against the rule and applies scaling actions
// under cooldowns.
type Controller struct {
	rule Rule

	mu      sync.Mutex
	state   State
	history []Action

	recorder ActionRecorder
	metrics  types.MetricsRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewController validates rule and starts at InitialInstances, or
// MinInstances when that is zero.
func NewController(rule Rule, opts ...Option) (*Controller, error) {
	if err := rule.Validate(); err != nil {
		return nil, fmt.Errorf("scaling rule: %w", err)
	}

	c := &Controller{
		rule: rule,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "scaling")

	c.state.CurrentInstances = rule.InitialInstances
	if c.state.CurrentInstances == 0 {
		c.state.CurrentInstances = rule.MinInstances
	}
	return c, nil
}

// Evaluate proposes at most one action for m. A proposal reserves the
// cooldown window, so repeated calls inside one window propose only once.
func (c *Controller) Evaluate(m Metrics) Decision {
	now := c.now()
	up := c.scaleUpReasons(m)
	down := len(up) == 0 && c.allBelowHalf(m)

	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.state.CurrentInstances
	decision := Decision{
		CurrentInstances: current,
		Reasons:          up,
		Metrics:          m,
		NextCheckIn:      c.nextCheckIn(),
	}
	if down {
		decision.Reasons = []string{"All metrics are significantly below thresholds"}
	}

	since := now.Sub(latest(c.state.LastScaleActionAt, c.state.LastProposalAt))

	var action *Action
	switch {
	case len(up) > 0:
		if since >= c.rule.ScaleUpCooldown && current < c.rule.MaxInstances {
			action = &Action{Type: ActionScaleUp, From: current, To: min(current+1, c.rule.MaxInstances)}
		}
	case down:
		if since >= c.rule.ScaleDownCooldown && current > c.rule.MinInstances {
			action = &Action{Type: ActionScaleDown, From: current, To: max(current-1, c.rule.MinInstances)}
		}
	}

	if action != nil {
		action.Reasons = slices.Clone(decision.Reasons)
		action.ProposedAt = now
		c.state.LastProposalAt = now
		decision.Needed = true
		decision.Action = action

		c.logger.Info("Scaling action proposed",
			"action", action.Type.String(),
			"from", action.From,
			"to", action.To,
			"reasons", action.Reasons,
		)
	}
	return decision
}

// Apply performs action if it still matches the current state: From equals
// the current instance count, To is within bounds and the cooldown since
// the last applied action has passed. It reports whether the action was applied.
func (c *Controller) Apply(ctx context.Context, action *Action) bool {
	if action == nil {
		return false
	}

	now := c.now()

	c.mu.Lock()
	if reason := c.rejectReason(action, now); reason != "" {
		c.mu.Unlock()
		c.logger.Warn("Scaling action rejected",
			"action", action.Type.String(),
			"from", action.From,
			"to", action.To,
			"reason", reason,
		)
		return false
	}

	applied := *action
	applied.Reasons = slices.Clone(action.Reasons)
	applied.AppliedAt = now

	c.state.CurrentInstances = applied.To
	c.state.LastScaleActionAt = now
	c.history = append(c.history, applied)
	if limit := c.historyLimit(); len(c.history) > limit {
		c.history = slices.Delete(c.history, 0, len(c.history)-limit)
	}
	c.mu.Unlock()

	c.logger.Info("Scaling action applied",
		"action", applied.Type.String(),
		"from", applied.From,
		"to", applied.To,
	)

	if c.metrics != nil {
		c.metrics.RecordScalingAction(applied.Type.String(), applied.From, applied.To)
	}
	if c.recorder != nil {
		if err := c.recorder.RecordAction(ctx, applied); err != nil {
			c.logger.Warn("Failed to record scaling action", "action", applied.Type.String(), "error", err)
		}
	}
	return true
}

// rejectReason returns why action cannot be applied now. Must be called with c.mu held.
func (c *Controller) rejectReason(a *Action, now time.Time) string {
	if a.From != c.state.CurrentInstances {
		return fmt.Sprintf("stale action: current instances are %d", c.state.CurrentInstances)
	}
	if a.To < c.rule.MinInstances || a.To > c.rule.MaxInstances {
		return fmt.Sprintf("target outside [%d, %d]", c.rule.MinInstances, c.rule.MaxInstances)
	}

	var cooldown time.Duration
	switch a.Type {
	case ActionScaleUp:
		if a.To <= a.From {
			return "scale up must increase instances"
		}
		cooldown = c.rule.ScaleUpCooldown
	case ActionScaleDown:
		if a.To >= a.From {
			return "scale down must decrease instances"
		}
		cooldown = c.rule.ScaleDownCooldown
	default:
		return "unknown action type"
	}

	if !c.state.LastScaleActionAt.IsZero() && now.Sub(c.state.LastScaleActionAt) < cooldown {
		return "cooldown in effect"
	}
	return ""
}

func (c *Controller) scaleUpReasons(m Metrics) []string {
	var reasons []string
	if m.CPUPercent > c.rule.CPUThreshold {
		reasons = append(reasons, fmt.Sprintf("CPU usage %.1f%% > %.1f%%", m.CPUPercent, c.rule.CPUThreshold))
	}
	if m.MemoryPercent > c.rule.MemoryThreshold {
		reasons = append(reasons, fmt.Sprintf("Memory usage %.1f%% > %.1f%%", m.MemoryPercent, c.rule.MemoryThreshold))
	}
	if m.ResponseTime > c.rule.ResponseTimeThreshold {
		reasons = append(reasons, fmt.Sprintf("Response time %.1fs > %.1fs",
			m.ResponseTime.Seconds(), c.rule.ResponseTimeThreshold.Seconds()))
	}
	if m.QueueLength > c.rule.QueueLengthThreshold {
		reasons = append(reasons, fmt.Sprintf("Queue length %d > %d", m.QueueLength, c.rule.QueueLengthThreshold))
	}
	return reasons
}

func (c *Controller) allBelowHalf(m Metrics) bool {
	return m.CPUPercent < c.rule.CPUThreshold*0.5 &&
		m.MemoryPercent < c.rule.MemoryThreshold*0.5 &&
		m.ResponseTime < c.rule.ResponseTimeThreshold/2 &&
		float64(m.QueueLength) < float64(c.rule.QueueLengthThreshold)*0.5
}

func (c *Controller) nextCheckIn() time.Duration {
	if c.rule.EvaluationInterval > 0 {
		return c.rule.EvaluationInterval
	}
	return DefaultNextCheckIn
}

func (c *Controller) historyLimit() int {
	if c.rule.HistorySize > 0 {
		return c.rule.HistorySize
	}
	return 50
}

// Rule returns the scaling rule.
func (c *Controller) Rule() Rule {
	return c.rule
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// History returns the applied actions, oldest first.
func (c *Controller) History() []Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.history)
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
