package arena

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/emandor/crosseval_service/internal/providers"
)

// scripted is a fake upstream. Answer calls are routed by model id to
// answers, judge calls (recognised by their system prompt) to verdicts.
type scripted struct {
	mu       sync.Mutex
	answers  map[string]func(providers.ChatRequest) (providers.ChatResult, error)
	verdicts map[string]func(providers.ChatRequest) (providers.ChatResult, error)
	calls    []providers.ChatRequest
}

func newScripted() *scripted {
	return &scripted{
		answers:  map[string]func(providers.ChatRequest) (providers.ChatResult, error){},
		verdicts: map[string]func(providers.ChatRequest) (providers.ChatResult, error){},
	}
}

func (s *scripted) Complete(_ context.Context, req providers.ChatRequest) (providers.ChatResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()

	table := s.answers
	if isJudgeRequest(req) {
		table = s.verdicts
	}
	if fn, ok := table[req.Model]; ok {
		return fn(req)
	}
	return providers.ChatResult{}, errors.New("no script for " + req.Model)
}

func (s *scripted) answer(model, text string) *scripted {
	s.answers[model] = func(providers.ChatRequest) (providers.ChatResult, error) { return reply(text), nil }
	return s
}

func (s *scripted) answerErr(model string, err error) *scripted {
	s.answers[model] = func(providers.ChatRequest) (providers.ChatResult, error) { return providers.ChatResult{}, err }
	return s
}

func (s *scripted) vote(judge, text string) *scripted {
	s.verdicts[judge] = func(providers.ChatRequest) (providers.ChatResult, error) { return reply(text), nil }
	return s
}

func (s *scripted) voteErr(judge string, err error) *scripted {
	s.verdicts[judge] = func(providers.ChatRequest) (providers.ChatResult, error) { return providers.ChatResult{}, err }
	return s
}

func (s *scripted) judgeCalls() []providers.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []providers.ChatRequest
	for _, c := range s.calls {
		if isJudgeRequest(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s *scripted) answerCalls() []providers.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []providers.ChatRequest
	for _, c := range s.calls {
		if !isJudgeRequest(c) {
			out = append(out, c)
		}
	}
	return out
}

func isJudgeRequest(req providers.ChatRequest) bool {
	return len(req.Messages) > 0 &&
		req.Messages[0].Role == providers.RoleSystem &&
		providers.ContentText(req.Messages[0].Content) == providers.JudgeInstruction
}

func reply(text string) providers.ChatResult {
	content, _ := json.Marshal(text)
	raw, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": text}}},
	})
	return providers.ChatResult{
		Status:  200,
		Raw:     raw,
		Message: &providers.ChoiceMessage{Content: content},
	}
}

func verdict(winner, reasoning string) string {
	b, _ := json.Marshal(map[string]string{"winner_model_id": winner, "reasoning": reasoning})
	return string(b)
}

func testRegistry() *providers.Registry {
	r, err := providers.NewRegistry(
		providers.Backend{ID: "A", Label: "alpha", SupportsReasoning: true},
		providers.Backend{ID: "B", Label: "beta"},
		providers.Backend{ID: "C", Label: "gamma", SupportsReasoning: true},
	)
	if err != nil {
		panic(err)
	}
	return r
}

func userMessage(text string) providers.Message {
	return providers.Message{Role: providers.RoleUser, Content: providers.TextContent(text)}
}

type recordedEvent struct {
	turn string
	ev   Event
}

type eventLog struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (l *eventLog) Publish(turn string, ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, recordedEvent{turn: turn, ev: ev})
}

func (l *eventLog) kinds() map[EventKind]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := map[EventKind]int{}
	for _, e := range l.events {
		out[e.ev.Kind]++
	}
	return out
}

type metricLog struct {
	mu    sync.Mutex
	calls []string
	votes map[string]string
	turns []string
}

func (m *metricLog) ObserveBackendCall(backend, phase, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, backend+"/"+phase+"/"+outcome)
}

func (m *metricLog) ObserveJudgeVote(judge, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.votes == nil {
		m.votes = map[string]string{}
	}
	m.votes[judge] = outcome
}

func (m *metricLog) ObserveTurn(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, result)
}
