package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/allegro/bigcache/v3"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/config"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

// PayloadStore holds the encoded bytes of cache entries. Entry metadata and
// eviction order stay in AdaptiveCache; a store only has to keep bytes by key.
// AdaptiveCache calls a store while holding its own lock.
type PayloadStore interface {
	Name() string
	Get(key string) ([]byte, bool)
	Set(key string, value []byte) error
	Delete(key string)
	Reset() error
	Close() error
}

// mapStore keeps payloads in a plain map. It relies on the cache lock.
type mapStore struct {
	data map[string][]byte
}

// NewMapStore returns the default in-process payload store.
func NewMapStore() PayloadStore {
	return &mapStore{data: make(map[string][]byte)}
}

func (s *mapStore) Name() string { return "map" }

func (s *mapStore) Get(key string) ([]byte, bool) {
	v, ok := s.data[key]
	return v, ok
}

func (s *mapStore) Set(key string, value []byte) error {
	s.data[key] = value
	return nil
}

func (s *mapStore) Delete(key string) {
	delete(s.data, key)
}

func (s *mapStore) Reset() error {
	clear(s.data)
	return nil
}

func (s *mapStore) Close() error {
	s.data = nil
	return nil
}

// BigCacheStore keeps payloads off the Go heap in bigcache shards, which
// keeps GC pauses flat when result sets are large.
type BigCacheStore struct {
	cache  *bigcache.BigCache
	logger *slog.Logger

	dropped atomic.Int64
}

// NewBigCacheStore creates a bigcache-backed payload store.
func NewBigCacheStore(cfg config.BigCacheConfig, logger *slog.Logger) (*BigCacheStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &BigCacheStore{
		logger: logger.With("component", "bigcache-store"),
	}

	bcConfig := bigcache.Config{
		Shards:             cfg.Shards,
		LifeWindow:         cfg.LifeWindow,
		CleanWindow:        cfg.CleanWindow,
		MaxEntriesInWindow: 1000 * 10 * 60,
		MaxEntrySize:       cfg.MaxEntrySize,
		HardMaxCacheSize:   cfg.MaxSizeMB,
		Verbose:            false,
		Logger:             &bigcacheLogger{logger: s.logger},
		OnRemoveWithReason: func(key string, entry []byte, reason bigcache.RemoveReason) {
			// bigcache dropped the bytes on its own; the cache sees a corrupt entry on next Get.
			if reason == bigcache.NoSpace || reason == bigcache.Expired {
				s.dropped.Add(1)
			}
		},
	}

	bc, err := bigcache.New(context.Background(), bcConfig)
	if err != nil {
		return nil, types.NewCacheError("New", "", "bigcache", err)
	}
	s.cache = bc
	return s, nil
}

func (s *BigCacheStore) Name() string { return "bigcache" }

func (s *BigCacheStore) Get(key string) ([]byte, bool) {
	data, err := s.cache.Get(key)
	if err != nil {
		if !errors.Is(err, bigcache.ErrEntryNotFound) {
			s.logger.Debug("Payload read failed", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

func (s *BigCacheStore) Set(key string, value []byte) error {
	if err := s.cache.Set(key, value); err != nil {
		return types.NewCacheError("Set", key, "bigcache", err)
	}
	return nil
}

func (s *BigCacheStore) Delete(key string) {
	_ = s.cache.Delete(key)
}

func (s *BigCacheStore) Reset() error {
	return s.cache.Reset()
}

func (s *BigCacheStore) Close() error {
	return s.cache.Close()
}

// Dropped returns how many payloads bigcache removed by itself.
func (s *BigCacheStore) Dropped() int64 {
	return s.dropped.Load()
}

// NewPayloadStore builds the store named in the cache config.
func NewPayloadStore(cfg config.CacheConfig, logger *slog.Logger) (PayloadStore, error) {
	switch cfg.PayloadStore {
	case "", "map":
		return NewMapStore(), nil
	case "bigcache":
		return NewBigCacheStore(cfg.BigCache, logger)
	default:
		return nil, types.NewCacheError("New", "", cfg.PayloadStore, types.ErrInvalidConfig)
	}
}

type bigcacheLogger struct {
	logger *slog.Logger
}

func (l *bigcacheLogger) Printf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf("bigcache: "+format, args...))
}

var (
	_ PayloadStore  = (*mapStore)(nil)
	_ PayloadStore  = (*BigCacheStore)(nil)
	_ droppingStore = (*BigCacheStore)(nil)
)
