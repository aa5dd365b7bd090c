package cache

import (
	"encoding/json"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

// JSONSerializer encodes cached values as JSON. Map keys are sorted by
// encoding/json, so equal values always encode to equal bytes.
type JSONSerializer struct{}

func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{}
}

func (s *JSONSerializer) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (s *JSONSerializer) Unmarshal(data []byte, dest any) error {
	return json.Unmarshal(data, dest)
}

var _ types.Serializer = (*JSONSerializer)(nil)
