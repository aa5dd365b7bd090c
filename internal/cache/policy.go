package cache

import (
	"container/list"
	"fmt"
	"strings"
	"time"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

// Policy selects which entry is evicted when the cache is full.
type Policy int

const (
	// PolicyLRU evicts the least recently accessed entry.
	PolicyLRU Policy = iota + 1
	// PolicyLFU evicts the least frequently accessed entry.
	PolicyLFU
	// PolicyTTL evicts an already expired entry first, otherwise the oldest one.
	PolicyTTL
	// PolicyAdaptive trades recency against frequency.
	PolicyAdaptive
)

func (p Policy) String() string {
	switch p {
	case PolicyLRU:
		return "lru"
	case PolicyLFU:
		return "lfu"
	case PolicyTTL:
		return "ttl"
	case PolicyAdaptive:
		return "adaptive"
	default:
		return "unknown"
	}
}

// ParsePolicy maps a config name onto a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lru":
		return PolicyLRU, nil
	case "lfu":
		return PolicyLFU, nil
	case "ttl", "ttl-first", "ttl_first":
		return PolicyTTL, nil
	case "adaptive", "":
		return PolicyAdaptive, nil
	default:
		return 0, fmt.Errorf("%w: unknown eviction policy %q", types.ErrInvalidConfig, s)
	}
}

//nolint:govet // Entry metadata - grouped by meaning
type entry struct {
	key            string
	createdAt      time.Time
	lastAccessedAt time.Time
	accessCount    int64
	ttl            time.Duration
	compressed     bool
	size           int
	elem           *list.Element
}

func (e *entry) expiresAt() time.Time {
	return e.createdAt.Add(e.ttl)
}

func (e *entry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.createdAt) > e.ttl
}

// adaptiveScore mixes idle seconds with a unitless frequency term. The
// mismatch is deliberate: a long idle entry always loses to a busy one.
func (e *entry) adaptiveScore(now time.Time) float64 {
	idle := now.Sub(e.lastAccessedAt).Seconds()
	return idle + 1.0/float64(e.accessCount+1)
}

// olderThan orders entries by creation time, then by key, so every policy
// picks the same victim for the same contents.
func (e *entry) olderThan(o *entry) bool {
	if !e.createdAt.Equal(o.createdAt) {
		return e.createdAt.Before(o.createdAt)
	}
	return e.key < o.key
}

// victim returns the entry the policy would evict next. order holds entries
// from most to least recently used.
func (p Policy) victim(entries map[string]*entry, order *list.List, now time.Time) *entry {
	switch p {
	case PolicyLRU:
		if back := order.Back(); back != nil {
			return back.Value.(*entry)
		}
		return nil
	case PolicyLFU:
		return pick(entries, func(cand, best *entry) bool {
			if cand.accessCount != best.accessCount {
				return cand.accessCount < best.accessCount
			}
			return cand.olderThan(best)
		})
	case PolicyTTL:
		return pick(entries, func(cand, best *entry) bool {
			ce, be := cand.expired(now), best.expired(now)
			if ce != be {
				return ce
			}
			if ce && !cand.expiresAt().Equal(best.expiresAt()) {
				return cand.expiresAt().Before(best.expiresAt())
			}
			return cand.olderThan(best)
		})
	default:
		return pick(entries, func(cand, best *entry) bool {
			cs, bs := cand.adaptiveScore(now), best.adaptiveScore(now)
			if cs != bs {
				return cs > bs
			}
			return cand.olderThan(best)
		})
	}
}

func pick(entries map[string]*entry, better func(cand, best *entry) bool) *entry {
	var best *entry
	for _, e := range entries {
		if best == nil || better(e, best) {
			best = e
		}
	}
	return best
}
