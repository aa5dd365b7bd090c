// Package cache provides the bounded adaptive cache, its payload stores and
// the cache-aside helpers built on top of it.
package cache

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/config"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

const component = "cache"

// Stats is a read-only snapshot of cache counters.
type Stats struct {
	Policy    string  `json:"policy"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Size      int     `json:"size"`
	Capacity  int     `json:"capacity"`
	HitRate   float64 `json:"hitRate"`
	// Dropped counts payloads the store discarded on its own.
	Dropped   int64   `json:"dropped"`
}

// droppingStore is implemented by payload stores that can lose bytes
// without being asked to, like BigCacheStore.
type droppingStore interface {
	Dropped() int64
}

// Option configures an AdaptiveCache.
type Option func(*AdaptiveCache)

// WithCompressThreshold sets the payload size above which values are gzipped.
// Zero disables compression.
func WithCompressThreshold(n int) Option {
	return func(c *AdaptiveCache) { c.compressThreshold = n }
}

// WithPayloadStore replaces the default map payload store.
func WithPayloadStore(s PayloadStore) Option {
	return func(c *AdaptiveCache) { c.store = s }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *AdaptiveCache) { c.logger = logger }
}

func WithMetrics(m types.MetricsRecorder) Option {
	return func(c *AdaptiveCache) { c.metrics = m }
}

// WithKeyValidator sets the validator applied to keys. Nil disables validation
// apart from rejecting empty keys.
func WithKeyValidator(v *types.KeyValidator) Option {
	return func(c *AdaptiveCache) { c.keys = v }
}

func WithSerializer(s types.Serializer) Option {
	return func(c *AdaptiveCache) { c.serializer = s }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *AdaptiveCache) { c.now = now }
}

// AdaptiveCache is a bounded key/value store with a pluggable eviction policy.
// A single mutex guards the entry map, the recency list and the payload store.
type AdaptiveCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   *list.List
	store   PayloadStore

	capacity          int
	policy            Policy
	compressThreshold int

	hits      int64
	misses    int64
	evictions int64
	closed    bool

	keys       *types.KeyValidator
	serializer types.Serializer
	metrics    types.MetricsRecorder
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a cache holding at most capacity entries.
func New(capacity int, policy Policy, opts ...Option) (*AdaptiveCache, error) {
	if capacity <= 0 {
		return nil, types.NewCacheError("New", "", "adaptive", types.ErrInvalidConfig)
	}
	if policy.String() == "unknown" {
		return nil, types.NewCacheError("New", "", "adaptive", types.ErrInvalidConfig)
	}

	c := &AdaptiveCache{
		entries:           make(map[string]*entry, capacity),
		order:             list.New(),
		capacity:          capacity,
		policy:            policy,
		compressThreshold: DefaultCompressThreshold,
		keys:              types.DefaultKeyValidator,
		serializer:        NewJSONSerializer(),
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.store == nil {
		c.store = NewMapStore()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "adaptive-cache", "policy", policy.String())

	return c, nil
}

// NewFromConfig builds a cache, and its payload store, from the cache config.
func NewFromConfig(cfg config.CacheConfig, logger *slog.Logger, opts ...Option) (*AdaptiveCache, error) {
	policy, err := ParsePolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}
	store, err := NewPayloadStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	base := []Option{
		WithCompressThreshold(cfg.CompressThreshold),
		WithPayloadStore(store),
		WithLogger(logger),
	}
	c, err := New(cfg.Capacity, policy, append(base, opts...)...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return c, nil
}

// Get returns the value stored under key. Expired, evicted, unknown and
// unreadable entries all report a miss.
func (c *AdaptiveCache) Get(key string) ([]byte, bool) {
	var value []byte
	ok := c.get(key, func(data []byte) error {
		value = data
		return nil
	})
	return value, ok
}

// GetValue decodes the value stored under key into dest with the cache serializer.
// A value that no longer decodes is dropped and counted as a miss.
func (c *AdaptiveCache) GetValue(key string, dest any) bool {
	return c.get(key, func(data []byte) error {
		return c.serializer.Unmarshal(data, dest)
	})
}

func (c *AdaptiveCache) get(key string, decode func([]byte) error) bool {
	start := time.Now()
	if c.validate(key) != nil {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		c.recordMiss(key, start)
		return false
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}

	now := c.now()
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		c.mu.Unlock()
		c.recordMiss(key, start)
		return false
	}

	if e.expired(now) {
		c.removeLocked(e)
		c.misses++
		c.mu.Unlock()
		c.recordMiss(key, start)
		return false
	}

	if err := c.readLocked(e, decode); err != nil {
		c.removeLocked(e)
		c.misses++
		c.mu.Unlock()
		corrupt := &types.CacheCorruptionError{Key: key, Err: err}
		c.logger.Warn("Dropped unreadable cache entry", "error", corrupt)
		c.recordError("get", corrupt)
		c.recordMiss(key, start)
		return false
	}

	e.lastAccessedAt = now
	e.accessCount++
	c.order.MoveToFront(e.elem)
	c.hits++
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RecordHit(component, key, time.Since(start))
	}
	return true
}

// peek returns the live payload for key without touching hit and miss
// counters, recency or access counts.
func (c *AdaptiveCache) peek(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.closed || e.expired(c.now()) {
		return nil, false
	}
	var value []byte
	err := c.readLocked(e, func(data []byte) error {
		value = data
		return nil
	})
	return value, err == nil
}

func (c *AdaptiveCache) readLocked(e *entry, decode func([]byte) error) error {
	data, ok := c.store.Get(e.key)
	if !ok {
		return types.ErrCacheMiss
	}
	if e.compressed {
		raw, err := decompress(data)
		if err != nil {
			return err
		}
		data = raw
	} else {
		// Stores may hand out their own buffers.
		data = append([]byte(nil), data...)
	}
	return decode(data)
}

// Put stores value under key. A ttl of zero never expires. Replacing an
// existing key never evicts another entry.
func (c *AdaptiveCache) Put(key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	if err := c.validate(key); err != nil {
		return err
	}

	var payload []byte
	compressed := false
	if c.compressThreshold > 0 && len(value) > c.compressThreshold {
		z, err := compress(value)
		if err != nil {
			return types.NewCacheError("Put", key, c.store.Name(), err)
		}
		payload, compressed = z, true
	} else {
		payload = append([]byte(nil), value...)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return types.ErrClosed
	}

	now := c.now()
	old, replacing := c.entries[key]

	// The payload goes in first so a rejected write leaves every other
	// entry in place.
	if err := c.store.Set(key, payload); err != nil {
		if replacing {
			if _, ok := c.store.Get(key); !ok {
				c.detachLocked(old)
			}
		}
		c.mu.Unlock()
		c.recordError("put", err)
		return err
	}
	if replacing {
		c.detachLocked(old)
	}

	var evicted []string
	for len(c.entries) >= c.capacity {
		victim := c.policy.victim(c.entries, c.order, now)
		if victim == nil {
			break
		}
		c.removeLocked(victim)
		c.evictions++
		evicted = append(evicted, victim.key)
	}

	e := &entry{
		key:            key,
		createdAt:      now,
		lastAccessedAt: now,
		accessCount:    1,
		ttl:            ttl,
		compressed:     compressed,
		size:           len(payload),
	}
	e.elem = c.order.PushFront(e)
	c.entries[key] = e
	c.mu.Unlock()

	c.recordEvictions(evicted)
	if c.metrics != nil {
		c.metrics.RecordSet(component, key, len(payload), time.Since(start))
	}
	return nil
}

// PutValue encodes v with the cache serializer and stores it.
func (c *AdaptiveCache) PutValue(key string, v any, ttl time.Duration) error {
	data, err := c.serializer.Marshal(v)
	if err != nil {
		return types.NewCacheError("PutValue", key, c.store.Name(), err)
	}
	return c.Put(key, data, ttl)
}

// Delete removes key and reports whether it was present.
func (c *AdaptiveCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.closed {
		return false
	}
	c.removeLocked(e)
	return true
}

// DeleteMatching removes every key matching a glob-style pattern
// ("prefix*", "*suffix", "a*b" or an exact key) and returns how many went.
func (c *AdaptiveCache) DeleteMatching(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0
	}

	n := 0
	for key, e := range c.entries {
		if matchPattern(key, pattern) {
			c.removeLocked(e)
			n++
		}
	}
	if n > 0 {
		c.logger.Debug("Deleted entries by pattern", "pattern", pattern, "deleted", n)
	}
	return n
}

// Clear drops every entry and resets the counters.
func (c *AdaptiveCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	clear(c.entries)
	c.order.Init()
	if err := c.store.Reset(); err != nil {
		c.logger.Warn("Payload store reset failed", "store", c.store.Name(), "error", err)
	}
	c.hits, c.misses, c.evictions = 0, 0, 0
}

// Len returns the number of entries, expired ones included until touched.
func (c *AdaptiveCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Capacity returns the configured maximum number of entries.
func (c *AdaptiveCache) Capacity() int {
	return c.capacity
}

// Policy returns the eviction policy fixed at construction.
func (c *AdaptiveCache) Policy() Policy {
	return c.policy
}

// Stats returns a snapshot of the cache counters.
func (c *AdaptiveCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Policy:    c.policy.String(),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.entries),
		Capacity:  c.capacity,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	if d, ok := c.store.(droppingStore); ok {
		s.Dropped = d.Dropped()
	}
	return s
}

// Close releases the payload store. Later Puts fail with ErrClosed and Gets miss.
func (c *AdaptiveCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	clear(c.entries)
	c.order.Init()
	return c.store.Close()
}

func (c *AdaptiveCache) removeLocked(e *entry) {
	c.detachLocked(e)
	c.store.Delete(e.key)
}

// detachLocked drops the entry's metadata and leaves its payload alone.
func (c *AdaptiveCache) detachLocked(e *entry) {
	delete(c.entries, e.key)
	c.order.Remove(e.elem)
}

func (c *AdaptiveCache) validate(key string) error {
	if c.keys != nil {
		return c.keys.Validate(key)
	}
	if key == "" {
		return types.ErrInvalidKey
	}
	return nil
}

func (c *AdaptiveCache) recordMiss(key string, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordMiss(component, key, time.Since(start))
	}
}

func (c *AdaptiveCache) recordError(op string, err error) {
	if c.metrics != nil {
		c.metrics.RecordError(component, op, err)
	}
}

func (c *AdaptiveCache) recordEvictions(keys []string) {
	if c.metrics == nil {
		return
	}
	for _, key := range keys {
		c.metrics.RecordEviction(component, key, c.policy.String())
	}
}
