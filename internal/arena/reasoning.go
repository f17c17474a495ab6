package arena

import (
	"bytes"
	"encoding/json"

	"github.com/emandor/crosseval_service/internal/providers"
)

var reasoningEnabled = json.RawMessage(`{"enabled":true}`)

// ReasoningConfig resolves the opaque "reasoning" request field per backend.
// The field is either an object keyed by backend id or one value shared by
// every backend.
type ReasoningConfig struct {
	perBackend map[string]json.RawMessage
	shared     json.RawMessage
}

func ParseReasoning(raw json.RawMessage, reg *providers.Registry) ReasoningConfig {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ReasoningConfig{}
	}

	var m map[string]json.RawMessage
	if json.Unmarshal(raw, &m) == nil {
		per := make(map[string]json.RawMessage)
		for k, v := range m {
			if _, ok := reg.Lookup(k); ok {
				per[k] = v
			}
		}
		if len(per) > 0 {
			return ReasoningConfig{perBackend: per}
		}
	}
	return ReasoningConfig{shared: raw}
}

// For returns the reasoning value to send to b, or nil when b does not
// support reasoning traces. Backends without an explicit value get reasoning
// enabled.
func (r ReasoningConfig) For(b providers.Backend) json.RawMessage {
	if !b.SupportsReasoning {
		return nil
	}
	if v, ok := r.perBackend[b.ID]; ok {
		return v
	}
	if len(r.shared) > 0 {
		return r.shared
	}
	return reasoningEnabled
}
