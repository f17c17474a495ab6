package arena

import (
	"encoding/json"

	"github.com/emandor/crosseval_service/internal/providers"
)

// Response is the body of a successful POST /api/v1/chat. Raw holds one
// "<label>Raw" entry per registered backend; entries are nil for backends
// that were not selected or did not answer.
type Response struct {
	Choices       []Choice
	Raw           map[string]json.RawMessage
	Evaluation    *EvaluationResult
	ModelStatuses map[string]providers.BackendStatus
}

func (r Response) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Raw)+3)
	for k, v := range r.Raw {
		if len(v) == 0 {
			out[k] = nil
			continue
		}
		out[k] = v
	}
	choices := r.Choices
	if choices == nil {
		choices = []Choice{}
	}
	statuses := r.ModelStatuses
	if statuses == nil {
		statuses = map[string]providers.BackendStatus{}
	}
	out["choices"] = choices
	out["evaluation"] = r.Evaluation
	out["modelStatuses"] = statuses
	return json.Marshal(out)
}

// RawField is the response key carrying b's raw upstream payload.
func RawField(b providers.Backend) string { return b.Label + "Raw" }

// Aggregate merges a collection and its evaluation into the response. It does
// no I/O. Choices follow candidate order.
func Aggregate(reg *providers.Registry, col *Collection, eval *EvaluationResult) Response {
	resp := Response{
		Choices:       make([]Choice, 0, len(col.Candidates)),
		Raw:           make(map[string]json.RawMessage),
		Evaluation:    eval,
		ModelStatuses: col.Statuses,
	}

	for _, b := range reg.All() {
		resp.Raw[RawField(b)] = nil
		if rep, ok := col.Replies[b.ID]; ok {
			resp.Raw[RawField(b)] = rep.Raw
		}
	}

	for _, c := range col.Candidates {
		msg := providers.ChoiceMessage{Content: providers.TextContent(c.Text)}
		if rep, ok := col.Replies[c.BackendID]; ok && rep.Message != nil {
			msg = *rep.Message
		}
		resp.Choices = append(resp.Choices, Choice{Model: c.BackendID, Message: msg})
	}
	return resp
}
