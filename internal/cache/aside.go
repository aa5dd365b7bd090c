package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

// SlowLoadThreshold is the load time above which DefaultTTLPolicy doubles the TTL.
const SlowLoadThreshold = time.Second

// TTLPolicy picks the TTL for a freshly loaded value from how long it took to load.
type TTLPolicy func(loadTime time.Duration) time.Duration

// DefaultTTLPolicy keeps expensive results twice as long as cheap ones.
func DefaultTTLPolicy(base time.Duration) TTLPolicy {
	return func(loadTime time.Duration) time.Duration {
		if loadTime > SlowLoadThreshold {
			return 2 * base
		}
		return base
	}
}

// LoadFunc produces the value for a cache miss.
type LoadFunc func(ctx context.Context) (any, error)

// AsideOption configures an Aside.
type AsideOption func(*Aside)

func WithKeyer(k Keyer) AsideOption {
	return func(a *Aside) { a.keyer = k }
}

func WithTTLPolicy(p TTLPolicy) AsideOption {
	return func(a *Aside) { a.ttl = p }
}

func WithAsideLogger(logger *slog.Logger) AsideOption {
	return func(a *Aside) { a.logger = logger }
}

// Aside implements cache-aside over an AdaptiveCache: look up, load on miss,
// populate. Concurrent misses for the same key share one load.
type Aside struct {
	cache  *AdaptiveCache
	keyer  Keyer
	ttl    TTLPolicy
	logger *slog.Logger
	group  singleflight.Group
}

// NewAside wraps c. Without options keys come from a plain Keyer and values
// live for five minutes, ten when the load was slow.
func NewAside(c *AdaptiveCache, opts ...AsideOption) *Aside {
	a := &Aside{
		cache: c,
		ttl:   DefaultTTLPolicy(5 * time.Minute),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.keyer.Serializer == nil {
		a.keyer.Serializer = c.serializer
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.logger = a.logger.With("component", "cache-aside")
	return a
}

// GetOrLoad decodes the cached value for (operation, params) into dest, or
// runs load, caches its result and decodes that. hit reports whether the
// value came from the cache.
func (a *Aside) GetOrLoad(ctx context.Context, operation string, params, dest any, load LoadFunc) (hit bool, err error) {
	key, err := a.keyer.Key(operation, params)
	if err != nil {
		return false, err
	}

	if a.cache.GetValue(key, dest) {
		return true, nil
	}

	result, err, _ := a.group.Do(key, func() (any, error) {
		// Another caller may have filled the key while we waited.
		if data, ok := a.cache.peek(key); ok {
			return data, nil
		}

		start := time.Now()
		value, loadErr := load(ctx)
		if loadErr != nil {
			return nil, loadErr
		}
		elapsed := time.Since(start)

		data, marshalErr := a.cache.serializer.Marshal(value)
		if marshalErr != nil {
			return nil, types.NewCacheError("GetOrLoad", key, "aside", marshalErr)
		}

		ttl := a.ttl(elapsed)
		if setErr := a.cache.Put(key, data, ttl); setErr != nil {
			a.logger.Debug("Failed to cache loaded value", "key", key, "error", setErr)
		} else {
			a.logger.Debug("Cached loaded value",
				"operation", operation,
				"load_ms", elapsed.Milliseconds(),
				"ttl", ttl,
			)
		}
		return data, nil
	})
	if err != nil {
		return false, err
	}

	data, ok := result.([]byte)
	if !ok {
		return false, fmt.Errorf("unexpected result type: %T", result)
	}
	return false, a.cache.serializer.Unmarshal(data, dest)
}

// Invalidate removes every cached result of operation.
func (a *Aside) Invalidate(operation string) int {
	return a.cache.DeleteMatching(a.keyer.Pattern(operation))
}
