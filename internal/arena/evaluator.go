package arena

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/emandor/crosseval_service/internal/providers"
	"github.com/emandor/crosseval_service/internal/telemetry"
)

// Evaluator runs the peer cross-evaluation round: every candidate's backend
// judges the other candidates and votes for one of them.
type Evaluator struct {
	client  providers.Completer
	events  Publisher
	metrics Recorder
}

func NewEvaluator(client providers.Completer, events Publisher, metrics Recorder) *Evaluator {
	if events == nil {
		events = nopPublisher{}
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Evaluator{client: client, events: events, metrics: metrics}
}

// judgeOutcome is what a single judge call produced: one of verdictParsed,
// verdictUnparseable or judgeFailed.
type judgeOutcome interface{ isJudgeOutcome() }

type verdictParsed struct{ verdict providers.Verdict }

type verdictUnparseable struct {
	err  error
	text string
}

type judgeFailed struct{ err error }

func (verdictParsed) isJudgeOutcome()      {}
func (verdictUnparseable) isJudgeOutcome() {}
func (judgeFailed) isJudgeOutcome()        {}

// Evaluate returns nil when question is blank or fewer than two candidates
// carry text; no judge is called in that case. Otherwise every candidate
// yields exactly one JudgeVote, and a winner is always chosen.
func (e *Evaluator) Evaluate(ctx context.Context, question string, candidates []CandidateAnswer) *EvaluationResult {
	if strings.TrimSpace(question) == "" {
		return nil
	}
	valid := make([]CandidateAnswer, 0, len(candidates))
	for _, c := range candidates {
		if strings.TrimSpace(c.Text) != "" {
			valid = append(valid, c)
		}
	}
	if len(valid) < 2 {
		return nil
	}

	ctx, span := telemetry.Tracer().Start(ctx, "evaluate",
		trace.WithAttributes(attribute.Int("judges", len(valid))))
	defer span.End()
	log := telemetry.L().With().Str("req_id", turnID(ctx)).Logger()

	scores := make(map[string]int, len(valid))
	for _, c := range valid {
		scores[c.BackendID] = 0
	}

	var (
		mu     sync.Mutex
		judges = make([]JudgeVote, len(valid))
	)

	var g errgroup.Group
	for i, judge := range valid {
		g.Go(func() error {
			outcome := e.runJudge(ctx, judge.BackendID, question, othersFor(valid, i))
			vote, label := voteFrom(judge.BackendID, outcome)

			mu.Lock()
			if vote.VotedBackendID != nil {
				// ids are compared trimmed but stored as the judge sent them
				if id := strings.TrimSpace(*vote.VotedBackendID); hasScore(scores, id) {
					scores[id]++
					vote.Counted = true
					label = OutcomeCounted
				}
			}
			mu.Unlock()
			judges[i] = vote

			e.metrics.ObserveJudgeVote(judge.BackendID, label)
			e.events.Publish(turnID(ctx), Event{Kind: EventVoted, Backend: judge.BackendID, Vote: &vote})
			return nil
		})
	}
	_ = g.Wait()

	res := &EvaluationResult{Scores: scores, Judges: judges}

	// strict > keeps the earliest candidate on ties, and -1 makes an
	// all-zero round still pick the first one
	best := -1
	for _, c := range valid {
		if s := scores[c.BackendID]; s > best {
			best = s
			id := c.BackendID
			res.WinnerBackendID = &id
		}
	}
	if res.WinnerBackendID != nil {
		for _, c := range valid {
			if c.BackendID == *res.WinnerBackendID {
				idx := c.SourceIndex
				res.WinnerIndex = &idx
				break
			}
		}
	}

	span.SetAttributes(attribute.String("winner", deref(res.WinnerBackendID)))
	log.Info().Str("winner", deref(res.WinnerBackendID)).Int("best_score", best).Int("judges", len(judges)).Msg("evaluate_done")
	return res
}

func hasScore(scores map[string]int, id string) bool {
	_, ok := scores[id]
	return ok
}

func othersFor(valid []CandidateAnswer, self int) []providers.JudgeCandidate {
	out := make([]providers.JudgeCandidate, 0, len(valid)-1)
	for i, c := range valid {
		if i == self {
			continue
		}
		out = append(out, providers.JudgeCandidate{BackendID: c.BackendID, Text: c.Text})
	}
	return out
}

func (e *Evaluator) runJudge(ctx context.Context, judgeID, question string, others []providers.JudgeCandidate) (outcome judgeOutcome) {
	ctx, span := telemetry.Tracer().Start(ctx, "evaluate.judge",
		trace.WithAttributes(attribute.String("judge", judgeID)))
	log := telemetry.L().With().Str("req_id", turnID(ctx)).Str("judge", judgeID).Logger()

	t0 := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("judge_panic")
			outcome = judgeFailed{err: fmt.Errorf("judge panic: %v", r)}
		}
		if f, ok := outcome.(judgeFailed); ok {
			telemetry.EndSpan(span, f.err)
			return
		}
		telemetry.EndSpan(span, nil)
	}()

	res, err := e.client.Complete(ctx, providers.BuildJudgeRequest(judgeID, question, others))
	elapsed := time.Since(t0)
	if err != nil {
		log.Warn().Err(err).Msg("judge_call_failed")
		e.metrics.ObserveBackendCall(judgeID, PhaseJudge, callOutcome(err), elapsed)
		return judgeFailed{err: err}
	}
	e.metrics.ObserveBackendCall(judgeID, PhaseJudge, OutcomeOK, elapsed)

	text, ok := messageString(res.Message)
	if !ok {
		log.Warn().Msg("judge_reply_not_text")
		return verdictUnparseable{err: providers.ErrVerdictSyntax}
	}

	v, err := providers.ParseVerdict(text)
	if err != nil {
		log.Warn().Err(err).Int("len", len(text)).Msg("judge_vote_unparseable")
		return verdictUnparseable{err: err, text: text}
	}
	return verdictParsed{verdict: v}
}

// voteFrom maps an outcome to its vote record and metric label. The caller
// decides whether a non-nil vote is counted; a judge may vote for itself.
func voteFrom(judgeID string, outcome judgeOutcome) (JudgeVote, string) {
	vote := JudgeVote{JudgeBackendID: judgeID}
	switch o := outcome.(type) {
	case verdictParsed:
		vote.Reasoning = o.verdict.Reasoning
		id := o.verdict.WinnerID
		vote.VotedBackendID = &id
		return vote, OutcomeUnknownID
	case verdictUnparseable:
		return vote, OutcomeUnparseable
	case judgeFailed:
		return vote, OutcomeFailed
	default:
		panic(fmt.Sprintf("arena: unhandled judge outcome %T", outcome))
	}
}

// messageString returns the reply content only when it is a JSON string.
func messageString(m *providers.ChoiceMessage) (string, bool) {
	if m == nil {
		return "", false
	}
	raw := strings.TrimSpace(string(m.Content))
	if !strings.HasPrefix(raw, `"`) {
		return "", false
	}
	return providers.ContentText(m.Content), true
}

func callOutcome(err error) string {
	if st := providers.StatusFromError(err); st.Status != 0 {
		return OutcomeHTTPError
	}
	return OutcomeTransport
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
