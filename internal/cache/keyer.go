package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

// keyHashLen is the number of hex characters of the parameter digest kept in a key.
const keyHashLen = 32

// Keyer derives deterministic cache keys from an operation name and its
// parameters. Parameters are encoded as JSON, which sorts map keys, so two
// calls with equal parameters produce the same key.
type Keyer struct {
	// Namespace, when set, prefixes every key as "<namespace>:".
	Namespace  string
	Serializer types.Serializer
}

// Key returns "<operation>:<digest>".
func (k Keyer) Key(operation string, params any) (string, error) {
	s := k.Serializer
	if s == nil {
		s = NewJSONSerializer()
	}
	canonical, err := s.Marshal(params)
	if err != nil {
		return "", types.NewCacheError("Key", operation, "keyer", err)
	}

	sum := sha256.Sum256(canonical)
	digest := hex.EncodeToString(sum[:])[:keyHashLen]

	var b strings.Builder
	if k.Namespace != "" {
		b.WriteString(k.Namespace)
		b.WriteByte(':')
	}
	b.WriteString(operation)
	b.WriteByte(':')
	b.WriteString(digest)
	return b.String(), nil
}

// Pattern matches every key the Keyer derives for operation.
func (k Keyer) Pattern(operation string) string {
	if k.Namespace != "" {
		return k.Namespace + ":" + operation + ":*"
	}
	return operation + ":*"
}

func matchPattern(key, pattern string) bool {
	if pattern == "*" {
		return true
	}

	if strings.HasSuffix(pattern, "*") && strings.Count(pattern, "*") == 1 {
		return strings.HasPrefix(key, strings.TrimSuffix(pattern, "*"))
	}

	if strings.HasPrefix(pattern, "*") && strings.Count(pattern, "*") == 1 {
		return strings.HasSuffix(key, strings.TrimPrefix(pattern, "*"))
	}

	if prefix, suffix, ok := strings.Cut(pattern, "*"); ok && !strings.Contains(suffix, "*") {
		return len(key) >= len(prefix)+len(suffix) &&
			strings.HasPrefix(key, prefix) && strings.HasSuffix(key, suffix)
	}

	return key == pattern
}
