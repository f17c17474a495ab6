package providers

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ContentText flattens a chat message content value into plain text.
// Strings are returned as-is, arrays of parts contribute their text parts
// joined by newlines, null yields "" and anything else is returned as
// compact JSON.
func ContentText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}

	var parts []json.RawMessage
	if json.Unmarshal(raw, &parts) == nil {
		texts := make([]string, 0, len(parts))
		for _, p := range parts {
			if t, ok := partText(p); ok {
				texts = append(texts, t)
			}
		}
		if len(texts) > 0 {
			return strings.Join(texts, "\n")
		}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func partText(p json.RawMessage) (string, bool) {
	var s string
	if json.Unmarshal(p, &s) == nil {
		return s, true
	}
	var part struct {
		Type string  `json:"type"`
		Text *string `json:"text"`
	}
	if json.Unmarshal(p, &part) != nil || part.Text == nil {
		return "", false
	}
	if part.Type != "" && part.Type != "text" {
		return "", false
	}
	return *part.Text, true
}

// TextContent encodes s as a JSON string content value.
func TextContent(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
