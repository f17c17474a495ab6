package arena

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/emandor/crosseval_service/internal/providers"
)

type spanCounts struct {
	mu      sync.Mutex
	started map[string]int
	ended   map[string]int
}

func (s *spanCounts) add(m map[string]int, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m[name]++
}

func (s *spanCounts) get(m map[string]int, name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return m[name]
}

type countingProvider struct {
	noop.TracerProvider
	counts *spanCounts
}

func (p countingProvider) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return countingTracer{counts: p.counts}
}

type countingTracer struct {
	noop.Tracer
	counts *spanCounts
}

func (t countingTracer) Start(ctx context.Context, name string, _ ...trace.SpanStartOption) (context.Context, trace.Span) {
	t.counts.add(t.counts.started, name)
	s := countingSpan{name: name, counts: t.counts}
	return trace.ContextWithSpan(ctx, s), s
}

type countingSpan struct {
	noop.Span
	name   string
	counts *spanCounts
}

func (s countingSpan) End(...trace.SpanEndOption) { s.counts.add(s.counts.ended, s.name) }

func countSpans(t *testing.T) *spanCounts {
	t.Helper()
	counts := &spanCounts{started: map[string]int{}, ended: map[string]int{}}
	otel.SetTracerProvider(countingProvider{counts: counts})
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })
	return counts
}

func TestCollectEndsBackendSpansOnPanicAndError(t *testing.T) {
	counts := countSpans(t)

	up := newScripted().
		answer("A", "a").
		answerErr("B", &providers.BackendCallError{Status: 503, Body: "down"})
	up.answers["C"] = func(providers.ChatRequest) (providers.ChatResult, error) {
		panic("adapter bug")
	}
	events := &eventLog{}

	col, err := NewCollector(testRegistry(), up, events, nil).
		Collect(context.Background(), history(), []string{"A", "B", "C"}, ReasoningConfig{})
	require.NoError(t, err)
	assert.False(t, col.Statuses["C"].OK)

	assert.Equal(t, 3, counts.get(counts.started, "collect.backend"))
	assert.Equal(t, 3, counts.get(counts.ended, "collect.backend"))
	assert.Equal(t, 1, counts.get(counts.ended, "collect"))
	assert.Equal(t, 2, events.kinds()[EventFailed])
}

func TestEvaluateEndsJudgeSpans(t *testing.T) {
	counts := countSpans(t)

	up := newScripted().vote("B", verdict("A", ""))
	up.verdicts["A"] = func(providers.ChatRequest) (providers.ChatResult, error) {
		panic("judge exploded")
	}

	res := NewEvaluator(up, nil, nil).Evaluate(context.Background(), "q", threeCandidates()[:2])
	require.NotNil(t, res)

	assert.Equal(t, 2, counts.get(counts.started, "evaluate.judge"))
	assert.Equal(t, 2, counts.get(counts.ended, "evaluate.judge"))
	assert.Equal(t, 1, counts.get(counts.ended, "evaluate"))
}
