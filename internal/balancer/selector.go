// Package balancer picks the least loaded backend connection for a query.
package balancer

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/config"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

const (
	DefaultWeight         = 1.0
	DefaultMaxConnections = 100

	loadFactorWeight     = 0.4
	responseFactorWeight = 0.4
	errorFactorWeight    = 0.2
)

// Stats is a point-in-time copy of one backend's load.
//
//nolint:govet // Report struct - field order matches the JSON output
type Stats struct {
	ID                  string        `json:"id"`
	Active              bool          `json:"active"`
	Weight              float64       `json:"weight"`
	MaxConnections      int           `json:"maxConnections"`
	ActiveQueries       int64         `json:"activeQueries"`
	TotalQueries        int64         `json:"totalQueries"`
	CompletedQueries    int64         `json:"completedQueries"`
	ErrorCount          int64         `json:"errorCount"`
	ErrorRate           float64       `json:"errorRate"`
	AverageResponseTime time.Duration `json:"averageResponseTime"`
	Score               float64       `json:"score"`
}

type backend struct {
	id             string
	weight         float64
	maxConnections int
	queryTypes     map[string]struct{}

	mu        sync.Mutex
	active    bool
	inFlight  int64
	total     int64
	completed int64
	errors    int64
	avg       time.Duration
}

// serves reports whether the backend takes queryType. No listed types means all.
func (b *backend) serves(queryType string) bool {
	if len(b.queryTypes) == 0 {
		return true
	}
	_, ok := b.queryTypes[queryType]
	return ok
}

// score is lower for less loaded backends. Must be called with b.mu held.
func (b *backend) score() float64 {
	load := float64(b.inFlight) / float64(b.maxConnections)
	response := b.avg.Seconds()
	errorRate := float64(b.errors) / float64(max(b.total, 1))

	s := load*loadFactorWeight + response*responseFactorWeight + errorRate*errorFactorWeight
	return s / b.weight
}

func (b *backend) snapshot() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		ID:                  b.id,
		Active:              b.active,
		Weight:              b.weight,
		MaxConnections:      b.maxConnections,
		ActiveQueries:       b.inFlight,
		TotalQueries:        b.total,
		CompletedQueries:    b.completed,
		ErrorCount:          b.errors,
		ErrorRate:           float64(b.errors) / float64(max(b.total, 1)),
		AverageResponseTime: b.avg,
		Score:               b.score(),
	}
}

// BackendOption configures a backend at registration.
type BackendOption func(*backend)

// WithQueryTypes restricts a backend to the listed query types.
func WithQueryTypes(queryTypes ...string) BackendOption {
	return func(b *backend) {
		for _, qt := range queryTypes {
			b.queryTypes[qt] = struct{}{}
		}
	}
}

// Selector tracks per-backend load and picks the backend with the lowest
// weighted score. The registry and each backend have their own locks so
// reports for different backends do not contend.
type Selector struct {
	mu       sync.RWMutex
	backends map[string]*backend
	logger   *slog.Logger
}

// New creates an empty selector.
func New(logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{
		backends: make(map[string]*backend),
		logger:   logger.With("component", "selector"),
	}
}

// NewFromConfig creates a selector with the configured backends. Zero weight
// and maxConnections fall back to DefaultWeight and DefaultMaxConnections.
func NewFromConfig(cfg config.SelectorConfig, logger *slog.Logger) (*Selector, error) {
	s := New(logger)
	for _, bc := range cfg.Backends {
		weight := bc.Weight
		if weight == 0 {
			weight = DefaultWeight
		}
		maxConns := bc.MaxConnections
		if maxConns == 0 {
			maxConns = DefaultMaxConnections
		}
		if err := s.Register(bc.ID, weight, maxConns, WithQueryTypes(bc.QueryTypes...)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Register adds or replaces a backend. Replacing resets its stats.
func (s *Selector) Register(id string, weight float64, maxConnections int, opts ...BackendOption) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", types.ErrInvalidBackend)
	}
	if weight <= 0 {
		return fmt.Errorf("%w: %s weight %v must be positive", types.ErrInvalidBackend, id, weight)
	}
	if maxConnections <= 0 {
		return fmt.Errorf("%w: %s maxConnections %d must be positive", types.ErrInvalidBackend, id, maxConnections)
	}

	b := &backend{
		id:             id,
		weight:         weight,
		maxConnections: maxConnections,
		queryTypes:     make(map[string]struct{}),
		active:         true,
	}
	for _, opt := range opts {
		opt(b)
	}

	s.mu.Lock()
	s.backends[id] = b
	s.mu.Unlock()

	s.logger.Info("Backend registered",
		"backend", id,
		"weight", weight,
		"max_connections", maxConnections,
	)
	return nil
}

// Select returns the active backend serving queryType with the lowest
// score, ties going to the lexically smallest id. It reports false when no
// backend qualifies.
func (s *Selector) Select(queryType string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		bestID    string
		bestScore float64
		found     bool
	)
	for id, b := range s.backends {
		if !b.serves(queryType) {
			continue
		}

		b.mu.Lock()
		active := b.active
		score := b.score()
		b.mu.Unlock()

		if !active {
			continue
		}
		if !found || score < bestScore || (score == bestScore && id < bestID) {
			bestID, bestScore, found = id, score, true
		}
	}
	return bestID, found
}

// ReportStart records that a query started on id.
func (s *Selector) ReportStart(id string) error {
	b, err := s.lookup(id)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.inFlight++
	b.total++
	b.mu.Unlock()
	return nil
}

// ReportEnd records that a query on id finished after elapsed.
func (s *Selector) ReportEnd(id string, elapsed time.Duration, success bool) error {
	b, err := s.lookup(id)
	if err != nil {
		return err
	}

	b.mu.Lock()
	if b.inFlight > 0 {
		b.inFlight--
	}
	b.completed++
	b.avg += (elapsed - b.avg) / time.Duration(b.completed)
	if !success {
		b.errors++
	}
	b.mu.Unlock()
	return nil
}

// SetActive takes a backend in or out of rotation without losing its stats.
func (s *Selector) SetActive(id string, active bool) error {
	b, err := s.lookup(id)
	if err != nil {
		return err
	}

	b.mu.Lock()
	changed := b.active != active
	b.active = active
	b.mu.Unlock()

	if changed {
		s.logger.Info("Backend rotation changed", "backend", id, "active", active)
	}
	return nil
}

// Stats returns the stats of one backend.
func (s *Selector) Stats(id string) (Stats, bool) {
	b, err := s.lookup(id)
	if err != nil {
		return Stats{}, false
	}
	return b.snapshot(), true
}

// Snapshot returns the stats of every backend.
func (s *Selector) Snapshot() map[string]Stats {
	s.mu.RLock()
	backends := maps.Clone(s.backends)
	s.mu.RUnlock()

	out := make(map[string]Stats, len(backends))
	for id, b := range backends {
		out[id] = b.snapshot()
	}
	return out
}

// Backends returns the registered ids in order.
func (s *Selector) Backends() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.backends))
}

// ActiveQueries sums in-flight queries across backends.
func (s *Selector) ActiveQueries() int64 {
	var n int64
	for _, st := range s.Snapshot() {
		n += st.ActiveQueries
	}
	return n
}

func (s *Selector) lookup(id string) (*backend, error) {
	s.mu.RLock()
	b, ok := s.backends[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownBackend, id)
	}
	return b, nil
}
