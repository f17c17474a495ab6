package arena

import (
	"context"
	"time"

	"github.com/emandor/crosseval_service/internal/providers"
)

type EventKind string

const (
	EventAnswered  EventKind = "turn.event.answered"
	EventFailed    EventKind = "turn.event.failed"
	EventVoted     EventKind = "turn.event.voted"
	EventCompleted EventKind = "turn.event.completed"
)

// Event is a progress notification for one turn.
type Event struct {
	Kind    EventKind                `json:"event"`
	Backend string                   `json:"backend,omitempty"`
	Status  *providers.BackendStatus `json:"status,omitempty"`
	Vote    *JudgeVote               `json:"vote,omitempty"`
	Winner  *string                  `json:"winner,omitempty"`
}

// Publisher receives progress events. Implementations must not block.
type Publisher interface {
	Publish(turnID string, ev Event)
}

// Recorder receives metrics.
type Recorder interface {
	ObserveBackendCall(backend, phase, outcome string, d time.Duration)
	ObserveJudgeVote(judge, outcome string)
	ObserveTurn(result string)
}

// Metric label values.
const (
	PhaseAnswer = "answer"
	PhaseJudge  = "judge"

	OutcomeOK          = "ok"
	OutcomeEmpty       = "empty"
	OutcomeHTTPError   = "http_error"
	OutcomeTransport   = "transport_error"
	OutcomeCounted     = "counted"
	OutcomeUnknownID   = "unknown_id"
	OutcomeUnparseable = "unparseable"
	OutcomeFailed      = "failed"
)

type nopPublisher struct{}

func (nopPublisher) Publish(string, Event) {}

type nopRecorder struct{}

func (nopRecorder) ObserveBackendCall(string, string, string, time.Duration) {}
func (nopRecorder) ObserveJudgeVote(string, string)                         {}
func (nopRecorder) ObserveTurn(string)                                      {}

type turnIDKey struct{}

// WithTurnID tags ctx with the turn (request) id used for events and logs.
func WithTurnID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, turnIDKey{}, id)
}

func turnID(ctx context.Context) string {
	id, _ := ctx.Value(turnIDKey{}).(string)
	return id
}
