package providers

import (
	"encoding/json"
	"errors"
	"strings"
)

var (
	ErrVerdictSyntax   = errors.New("verdict is not a JSON object")
	ErrVerdictNoWinner = errors.New("verdict has no string winner_model_id")
)

// Verdict is a judge's decoded reply. Reasoning is nil when the judge did not
// send a string reasoning field.
type Verdict struct {
	WinnerID  string
	Reasoning *string
}

// StripCodeFence returns the text between the first '{' and the last '}'
// when s is wrapped in a Markdown code fence, and s trimmed otherwise.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "```") {
		return s
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

// ParseVerdict decodes `{"winner_model_id": "...", "reasoning": "..."}`. The
// winner id is returned exactly as sent.
func ParseVerdict(text string) (Verdict, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(StripCodeFence(text)), &m); err != nil || m == nil {
		return Verdict{}, ErrVerdictSyntax
	}

	winner, ok := m["winner_model_id"].(string)
	if !ok || strings.TrimSpace(winner) == "" {
		return Verdict{}, ErrVerdictNoWinner
	}

	v := Verdict{WinnerID: winner}
	if r, ok := m["reasoning"].(string); ok {
		v.Reasoning = &r
	}
	return v, nil
}
