package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/config"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/scaling"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

const (
	disconnectErrorThreshold = 5
	asyncWriteTimeout        = 2 * time.Second
)

// StreamEntry is one message read back from a stream.
type StreamEntry struct {
	ID     string
	Values map[string]any
}

type streamWrite struct {
	stream string
	values map[string]any
}

// RedisStream appends alerts and applied scaling actions to Redis streams
// so that external consumers can follow them with XREAD.
//
// Writes are synchronous until Start is called. After Start they go through
// a bounded queue drained by a background worker, and a health check marks
// the connection up or down.
type RedisStream struct {
	client        *redis.Client
	redisCfg      config.RedisConfig
	alertStream   string
	scalingStream string
	maxLen        int64
	logger        *slog.Logger

	mu            sync.RWMutex
	connected     atomic.Bool
	lastError     error
	lastErrorTime time.Time
	errorCount    atomic.Int64

	queue   chan streamWrite
	started atomic.Bool
	closed  atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	written atomic.Int64
	dropped atomic.Int64
}

// NewRedisStream connects to Redis. A failed initial ping is logged and the
// stream starts disconnected rather than failing construction.
func NewRedisStream(redisCfg config.RedisConfig, alertsCfg config.AlertsConfig, logger *slog.Logger) (*RedisStream, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if alertsCfg.Stream == "" || alertsCfg.ScalingStream == "" {
		return nil, fmt.Errorf("%w: alert and scaling stream names are required", types.ErrInvalidConfig)
	}

	opts := &redis.Options{
		Addr:         redisCfg.Address,
		Password:     redisCfg.Password.Value(),
		DB:           redisCfg.DB,
		PoolSize:     redisCfg.PoolSize,
		MinIdleConns: redisCfg.MinIdleConns,
		DialTimeout:  redisCfg.DialTimeout,
		ReadTimeout:  redisCfg.ReadTimeout,
		WriteTimeout: redisCfg.WriteTimeout,
		PoolTimeout:  redisCfg.PoolTimeout,
	}

	if redisCfg.EnableTLS {
		opts.TLSConfig = &tls.Config{
			InsecureSkipVerify: redisCfg.TLSSkipVerify,
		}
		if redisCfg.TLSSkipVerify {
			logger.Warn("TLS certificate verification is disabled - this is insecure for production use")
		}
	}

	queueSize := alertsCfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1000
	}

	rs := &RedisStream{
		client:        redis.NewClient(opts),
		redisCfg:      redisCfg,
		alertStream:   redisCfg.KeyPrefix + alertsCfg.Stream,
		scalingStream: redisCfg.KeyPrefix + alertsCfg.ScalingStream,
		maxLen:        alertsCfg.MaxLen,
		logger:        logger.With("component", "redis-stream"),
		queue:         make(chan streamWrite, queueSize),
		stopCh:        make(chan struct{}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), rs.dialTimeout())
	defer cancel()

	if err := rs.client.Ping(ctx).Err(); err != nil {
		rs.logger.Warn("Redis initial connection failed", "error", err)
		rs.setError(err)
	} else {
		rs.connected.Store(true)
		rs.logger.Info("Redis connected", "address", redisCfg.Address)
	}

	return rs, nil
}

func (s *RedisStream) Name() string {
	return "redis-stream"
}

func (s *RedisStream) IsAvailable() bool {
	return s.connected.Load()
}

// AlertStream returns the full name of the alert stream.
func (s *RedisStream) AlertStream() string {
	return s.alertStream
}

// ScalingStream returns the full name of the scaling stream.
func (s *RedisStream) ScalingStream() string {
	return s.scalingStream
}

// Start launches the async writer and, when configured, the health check.
func (s *RedisStream) Start() {
	if s.closed.Load() || !s.started.CompareAndSwap(false, true) {
		return
	}

	s.wg.Add(1)
	go s.asyncWriteWorker()

	if s.redisCfg.HealthCheckInterval > 0 {
		s.wg.Add(1)
		go s.healthCheckWorker()
	}
}

// SendAlert appends alert to the alert stream.
func (s *RedisStream) SendAlert(ctx context.Context, alert types.Alert) error {
	return s.write(ctx, streamWrite{stream: s.alertStream, values: alertValues(alert)})
}

// RecordAction appends an applied scaling action to the scaling stream.
func (s *RedisStream) RecordAction(ctx context.Context, action scaling.Action) error {
	return s.write(ctx, streamWrite{stream: s.scalingStream, values: actionValues(action)})
}

func (s *RedisStream) write(ctx context.Context, w streamWrite) error {
	if s.closed.Load() {
		return types.ErrClosed
	}
	if !s.connected.Load() {
		return types.ErrSinkUnavailable
	}

	if s.started.Load() {
		select {
		case s.queue <- w:
			return nil
		default:
			s.dropped.Add(1)
			s.logger.Warn("Stream queue full, dropping entry",
				"stream", w.stream,
				"dropped_total", s.dropped.Load(),
			)
			return types.ErrSinkQueueFull
		}
	}

	return s.xadd(ctx, w)
}

func (s *RedisStream) xadd(ctx context.Context, w streamWrite) error {
	args := &redis.XAddArgs{
		Stream: w.stream,
		Values: w.values,
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		s.handleError(err)
		return fmt.Errorf("xadd %s: %w", w.stream, err)
	}

	s.written.Add(1)
	s.clearError()
	return nil
}

func (s *RedisStream) asyncWriteWorker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			for {
				select {
				case w := <-s.queue:
					s.executeWrite(w)
				default:
					return
				}
			}
		case w := <-s.queue:
			s.executeWrite(w)
		}
	}
}

func (s *RedisStream) executeWrite(w streamWrite) {
	ctx, cancel := context.WithTimeout(context.Background(), asyncWriteTimeout)
	defer cancel()

	if err := s.xadd(ctx, w); err != nil {
		s.logger.Debug("Async XADD failed", "stream", w.stream, "error", err)
	}
}

func (s *RedisStream) healthCheckWorker() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.redisCfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.performHealthCheck()
		}
	}
}

func (s *RedisStream) performHealthCheck() {
	wasConnected := s.connected.Load()

	ctx, cancel := context.WithTimeout(context.Background(), s.dialTimeout())
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		if wasConnected {
			s.logger.Warn("Redis health check failed", "error", err)
			s.setError(err)
		}
		return
	}

	if !wasConnected {
		s.connected.Store(true)
		s.errorCount.Store(0)
		s.logger.Info("Redis connection restored via health check")
	}
}

// Recent reads the newest count entries of stream, newest first.
func (s *RedisStream) Recent(ctx context.Context, stream string, count int64) ([]StreamEntry, error) {
	msgs, err := s.client.XRevRangeN(ctx, stream, "+", "-", count).Result()
	if err != nil {
		s.handleError(err)
		return nil, fmt.Errorf("xrevrange %s: %w", stream, err)
	}

	out := make([]StreamEntry, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, StreamEntry{ID: m.ID, Values: m.Values})
	}
	return out, nil
}

// Written returns how many entries reached Redis.
func (s *RedisStream) Written() int64 {
	return s.written.Load()
}

// Dropped returns how many entries were dropped on a full queue.
func (s *RedisStream) Dropped() int64 {
	return s.dropped.Load()
}

func (s *RedisStream) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close drains queued entries, stops the workers and closes the client.
func (s *RedisStream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.connected.Store(false)

	close(s.stopCh)
	s.wg.Wait()

	return s.client.Close()
}

func (s *RedisStream) LastError() (error, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError, s.lastErrorTime
}

func (s *RedisStream) handleError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastError = err
	s.lastErrorTime = time.Now()
	count := s.errorCount.Add(1)

	if count >= disconnectErrorThreshold {
		if s.connected.CompareAndSwap(true, false) {
			s.logger.Warn("Redis marked as disconnected after errors",
				"error_count", count,
				"last_error", err,
			)
		}
	}
}

func (s *RedisStream) clearError() {
	if s.errorCount.Swap(0) > 0 {
		if s.connected.CompareAndSwap(false, true) {
			s.logger.Info("Redis connection restored")
		}
	}
}

func (s *RedisStream) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = err
	s.lastErrorTime = time.Now()
	s.connected.Store(false)
}

func (s *RedisStream) dialTimeout() time.Duration {
	if s.redisCfg.DialTimeout > 0 {
		return s.redisCfg.DialTimeout
	}
	return 5 * time.Second
}

func alertValues(a types.Alert) map[string]any {
	return map[string]any{
		"id":         a.ID,
		"timestamp":  a.Timestamp.UTC().Format(time.RFC3339Nano),
		"operation":  a.Operation,
		"error_type": a.ErrorType,
		"message":    a.Message,
		"severity":   a.Severity.String(),
	}
}

func actionValues(a scaling.Action) map[string]any {
	return map[string]any{
		"type":        a.Type.String(),
		"from":        strconv.Itoa(a.From),
		"to":          strconv.Itoa(a.To),
		"reasons":     strings.Join(a.Reasons, "; "),
		"proposed_at": a.ProposedAt.UTC().Format(time.RFC3339Nano),
		"applied_at":  a.AppliedAt.UTC().Format(time.RFC3339Nano),
	}
}
