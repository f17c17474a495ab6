package arena

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/emandor/crosseval_service/internal/providers"
	"github.com/emandor/crosseval_service/internal/telemetry"
)

// Collector fans a conversation out to the selected backends and gathers
// their answers.
type Collector struct {
	registry *providers.Registry
	client   providers.Completer
	events   Publisher
	metrics  Recorder
}

func NewCollector(reg *providers.Registry, client providers.Completer, events Publisher, metrics Recorder) *Collector {
	if events == nil {
		events = nopPublisher{}
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Collector{registry: reg, client: client, events: events, metrics: metrics}
}

type callResult struct {
	status providers.BackendStatus
	reply  *Reply
	text   string
}

// Collect sends history to every known backend in selected, concurrently.
// Unknown ids are ignored. Per-backend failures are recorded in the statuses
// and never abort siblings. It returns ErrNoBackendsSelected when nothing is
// left to call and *AllBackendsFailedError when no call succeeded.
func (c *Collector) Collect(ctx context.Context, history []providers.Message, selected []string, reasoning ReasoningConfig) (*Collection, error) {
	backends := c.registry.Filter(selected)
	if len(backends) == 0 {
		return nil, ErrNoBackendsSelected
	}

	ctx, span := telemetry.Tracer().Start(ctx, "collect",
		trace.WithAttributes(attribute.Int("backends", len(backends))))
	log := telemetry.L().With().Str("req_id", turnID(ctx)).Logger()

	results := make([]callResult, len(backends))

	var g errgroup.Group
	for i, b := range backends {
		g.Go(func() error {
			results[i] = c.call(ctx, b, history, reasoning)
			return nil
		})
	}
	_ = g.Wait()

	out := &Collection{
		Candidates: make([]CandidateAnswer, 0, len(backends)),
		Statuses:   make(map[string]providers.BackendStatus, len(backends)),
		Replies:    make(map[string]Reply, len(backends)),
	}
	anyOK := false
	for i, b := range backends {
		r := results[i]
		out.Statuses[b.ID] = r.status
		if !r.status.OK {
			continue
		}
		anyOK = true
		if r.reply != nil {
			out.Replies[b.ID] = *r.reply
		}
		if strings.TrimSpace(r.text) != "" {
			out.Candidates = append(out.Candidates, CandidateAnswer{SourceIndex: i, BackendID: b.ID, Text: r.text})
		}
	}

	if !anyOK {
		err := &AllBackendsFailedError{Statuses: out.Statuses}
		telemetry.EndSpan(span, err)
		log.Warn().Int("backends", len(backends)).Msg("all_backends_failed")
		return out, err
	}

	span.SetAttributes(attribute.Int("candidates", len(out.Candidates)))
	telemetry.EndSpan(span, nil)
	log.Info().Int("backends", len(backends)).Int("candidates", len(out.Candidates)).Msg("collect_done")
	return out, nil
}

// call never panics: a panicking client is reported as a transport failure.
func (c *Collector) call(ctx context.Context, b providers.Backend, history []providers.Message, reasoning ReasoningConfig) (r callResult) {
	ctx, span := telemetry.Tracer().Start(ctx, "collect.backend",
		trace.WithAttributes(attribute.String("backend", b.ID)))
	log := telemetry.L().With().Str("req_id", turnID(ctx)).Str("backend", b.ID).Logger()

	var callErr error
	defer func() {
		if p := recover(); p != nil {
			callErr = fmt.Errorf("panic: %v", p)
			log.Error().Interface("panic", p).Msg("backend_call_panic")
			st := providers.BackendStatus{Status: 0, Body: callErr.Error()}
			c.events.Publish(turnID(ctx), Event{Kind: EventFailed, Backend: b.ID, Status: &st})
			r = callResult{status: st}
		}
		telemetry.EndSpan(span, callErr)
	}()

	t0 := time.Now()
	res, err := c.client.Complete(ctx, providers.ChatRequest{
		Model:     b.ID,
		Messages:  history,
		Reasoning: reasoning.For(b),
	})
	elapsed := time.Since(t0)
	callErr = err

	if err != nil {
		st := providers.StatusFromError(err)
		log.Error().Err(err).Int("status", st.Status).Msg("backend_call_failed")
		c.metrics.ObserveBackendCall(b.ID, PhaseAnswer, callOutcome(err), elapsed)
		c.events.Publish(turnID(ctx), Event{Kind: EventFailed, Backend: b.ID, Status: &st})
		return callResult{status: st}
	}

	st := providers.BackendStatus{OK: true, Status: res.Status}
	r = callResult{
		status: st,
		reply:  &Reply{Raw: res.Raw, Message: res.Message},
	}
	if res.Message != nil {
		r.text = providers.ContentText(res.Message.Content)
	}

	outcome := OutcomeOK
	if strings.TrimSpace(r.text) == "" {
		outcome = OutcomeEmpty
		log.Warn().Msg("backend_reply_empty")
	} else {
		log.Info().Int("len", len(r.text)).Dur("latency", elapsed).Msg("backend_call_done")
	}
	c.metrics.ObserveBackendCall(b.ID, PhaseAnswer, outcome, elapsed)
	c.events.Publish(turnID(ctx), Event{Kind: EventAnswered, Backend: b.ID, Status: &st})
	return r
}
