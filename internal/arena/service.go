package arena

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/emandor/crosseval_service/internal/providers"
	"github.com/emandor/crosseval_service/internal/telemetry"
)

// StatusStore keeps the last observed status of each backend for
// observability. It never influences a turn.
type StatusStore interface {
	Save(ctx context.Context, statuses map[string]providers.BackendStatus) error
	Load(ctx context.Context, ids []string) (map[string]providers.BackendStatus, error)
}

const statusSaveTimeout = 2 * time.Second

// Service runs one chat turn: collect answers, cross-evaluate, aggregate.
type Service struct {
	registry  *providers.Registry
	collector *Collector
	evaluator *Evaluator
	statuses  StatusStore
	events    Publisher
	metrics   Recorder
	validate  *validator.Validate

	credentialKey     string
	credentialMissing bool
}

type Option func(*Service)

func WithPublisher(p Publisher) Option { return func(s *Service) { s.events = p } }

func WithRecorder(r Recorder) Option { return func(s *Service) { s.metrics = r } }

func WithStatusStore(st StatusStore) Option { return func(s *Service) { s.statuses = st } }

// RequireCredential makes every turn fail with a ConfigurationError when
// value is empty.
func RequireCredential(key, value string) Option {
	return func(s *Service) {
		s.credentialKey = key
		s.credentialMissing = value == ""
	}
}

func NewService(reg *providers.Registry, client providers.Completer, opts ...Option) *Service {
	s := &Service{
		registry: reg,
		events:   nopPublisher{},
		metrics:  nopRecorder{},
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.collector = NewCollector(reg, client, s.events, s.metrics)
	s.evaluator = NewEvaluator(client, s.events, s.metrics)
	return s
}

func (s *Service) Registry() *providers.Registry { return s.registry }

func (s *Service) StatusStore() StatusStore { return s.statuses }

// Run executes one turn. Configuration and validation errors are returned
// before any upstream call.
func (s *Service) Run(ctx context.Context, req ChatRequest) (*Response, error) {
	if s.credentialMissing {
		s.metrics.ObserveTurn("config_error")
		return nil, &ConfigurationError{Key: s.credentialKey}
	}
	if err := s.validate.Struct(req); err != nil {
		s.metrics.ObserveTurn("invalid")
		return nil, newRequestValidationError(err)
	}

	log := telemetry.L().With().Str("req_id", turnID(ctx)).Logger()

	selected := s.selection(req.ActiveBackends)
	col, err := s.collector.Collect(ctx, req.Messages, selected, ParseReasoning(req.Reasoning, s.registry))
	if errors.Is(err, ErrNoBackendsSelected) {
		s.metrics.ObserveTurn("invalid")
		return nil, err
	}
	if col != nil {
		s.saveStatuses(ctx, col.Statuses)
	}
	if err != nil {
		s.metrics.ObserveTurn("all_failed")
		s.events.Publish(turnID(ctx), Event{Kind: EventCompleted})
		return nil, err
	}

	question := QuestionFrom(req.Messages)
	eval := s.evaluator.Evaluate(ctx, question, col.Candidates)

	resp := Aggregate(s.registry, col, eval)

	var winner *string
	if eval != nil {
		winner = eval.WinnerBackendID
	}
	s.events.Publish(turnID(ctx), Event{Kind: EventCompleted, Winner: winner})
	s.metrics.ObserveTurn("ok")
	log.Info().Int("choices", len(resp.Choices)).Bool("evaluated", eval != nil).Msg("turn_done")
	return &resp, nil
}

func (s *Service) selection(active *[]string) []string {
	if active != nil {
		return *active
	}
	all := s.registry.All()
	ids := make([]string, len(all))
	for i, b := range all {
		ids[i] = b.ID
	}
	return ids
}

func (s *Service) saveStatuses(ctx context.Context, statuses map[string]providers.BackendStatus) {
	if s.statuses == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusSaveTimeout)
	defer cancel()
	if err := s.statuses.Save(ctx, statuses); err != nil {
		log := telemetry.L().With().Str("req_id", turnID(ctx)).Logger()
		log.Warn().Err(err).Msg("status_save_failed")
	}
}

// QuestionFrom returns the text of the last user message.
func QuestionFrom(messages []providers.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == providers.RoleUser {
			return providers.ContentText(messages[i].Content)
		}
	}
	return ""
}
