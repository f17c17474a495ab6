package arena

import (
	"encoding/json"

	"github.com/emandor/crosseval_service/internal/providers"
)

// CandidateAnswer is one backend's answer, normalized to text. SourceIndex is
// the backend's position in the resolved selection for the turn.
type CandidateAnswer struct {
	SourceIndex int    `json:"sourceIndex"`
	BackendID   string `json:"backendId"`
	Text        string `json:"text"`
}

// Reply is a successful upstream reply kept for the response contract.
type Reply struct {
	Raw     json.RawMessage
	Message *providers.ChoiceMessage
}

// Collection is the output of one answer-collection phase.
type Collection struct {
	Candidates []CandidateAnswer
	Statuses   map[string]providers.BackendStatus
	Replies    map[string]Reply
}

// JudgeVote is the outcome of one judge. VotedBackendID is nil when the judge
// failed or replied with something unparseable. Counted reports whether the
// vote incremented a score.
type JudgeVote struct {
	JudgeBackendID string  `json:"judgeBackendId"`
	VotedBackendID *string `json:"votedBackendId"`
	Reasoning      *string `json:"reasoning"`
	Counted        bool    `json:"counted"`
}

// EvaluationResult is one cross-evaluation round.
type EvaluationResult struct {
	Scores          map[string]int `json:"scores"`
	WinnerBackendID *string        `json:"winnerBackendId"`
	WinnerIndex     *int           `json:"winnerIndex"`
	Judges          []JudgeVote    `json:"judges"`
}

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Messages       []providers.Message `json:"messages" validate:"required,min=1,dive"`
	Reasoning      json.RawMessage     `json:"reasoning,omitempty"`
	ActiveBackends *[]string           `json:"activeBackends,omitempty"`
}

// Choice is one backend's message in the response.
type Choice struct {
	Model   string                  `json:"model"`
	Message providers.ChoiceMessage `json:"message"`
}
