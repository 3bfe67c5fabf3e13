package prediction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/efebarandurmaz/agni/internal/observability"
	"github.com/efebarandurmaz/agni/internal/prompt"
	"github.com/efebarandurmaz/agni/internal/schema"
	"github.com/efebarandurmaz/agni/internal/stats"
)

// ErrInvalidRequest reports a request without any meal item.
var ErrInvalidRequest = errors.New("prediction: at least one meal item is required")

// State is a step of one prediction.
type State string

const (
	StateReceived         State = "RECEIVED"
	StateContextRetrieved State = "CONTEXT_RETRIEVED"
	StatePromptBuilt      State = "PROMPT_BUILT"
	StateGenerationCalled State = "GENERATION_CALLED"
	StateParsed           State = "PARSED"
	StateFallback         State = "FALLBACK"
	StateReturned         State = "RETURNED"
)

// Observer is told about every state a prediction enters.
type Observer func(requestID string, s State)

// ContextRetriever builds the grounding context for a request.
type ContextRetriever interface {
	Retrieve(ctx context.Context, req schema.PredictionRequest) (string, error)
}

// TextGenerator turns a user prompt into raw model output.
type TextGenerator interface {
	Generate(ctx context.Context, userPrompt string) (string, error)
}

// Result is a finished prediction.
type Result struct {
	RequestID string                    `json:"requestId"`
	Response  schema.PredictionResponse `json:"response"`
	Outcome   Outcome                   `json:"outcome"`
}

// Config holds the optional collaborators of a Service.
type Config struct {
	Logger   *slog.Logger
	Metrics  *observability.Metrics
	Observer Observer
}

// Service runs predictions.
type Service struct {
	retriever ContextRetriever
	stats     stats.Store
	generator TextGenerator
	logger    *slog.Logger
	metrics   *observability.Metrics
	observer  Observer
}

// NewService creates a Service. A nil store means stats are never available.
func NewService(r ContextRetriever, st stats.Store, g TextGenerator, cfg Config) *Service {
	if st == nil {
		st = stats.None{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		retriever: r,
		stats:     st,
		generator: g,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		observer:  cfg.Observer,
	}
}

// ValidateRequest checks that req names at least one meal item.
func ValidateRequest(req schema.PredictionRequest) error {
	for _, item := range req.MealItems {
		if strings.TrimSpace(item) != "" {
			return nil
		}
	}
	return ErrInvalidRequest
}

// Predict runs one prediction for userID. Retrieval and the stats lookup
// run concurrently. A generation failure is returned as an error; output
// that cannot be parsed yields the fallback response.
func (s *Service) Predict(ctx context.Context, userID string, req schema.PredictionRequest) (*Result, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	log := s.logger.With("request_id", id, "user", userID)

	ctx, span := observability.StartPredictionSpan(ctx, req.EffectiveDosha(), len(req.MealItems))
	defer span.End()

	enter := func(st State) {
		observability.RecordPredictionState(span, string(st))
		log.Debug("prediction state", "state", st)
		if s.observer != nil {
			s.observer(id, st)
		}
	}
	fail := func(err error) (*Result, error) {
		observability.RecordError(span, err)
		s.metrics.ObservePrediction(observability.OutcomeError)
		log.Error("prediction failed", "error", err)
		return nil, err
	}

	enter(StateReceived)

	start := time.Now()
	var (
		retrieved string
		userStats schema.Stats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		retrieved, err = s.retriever.Retrieve(gctx, req)
		if err != nil {
			return fmt.Errorf("retrieve context: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		st, err := s.stats.RecentStats(gctx, userID)
		if err != nil {
			log.Warn("stats unavailable", "error", err)
			return nil
		}
		userStats = st
		return nil
	})
	if err := g.Wait(); err != nil {
		return fail(err)
	}
	s.metrics.ObserveStage("retrieve", time.Since(start))
	enter(StateContextRetrieved)

	userPrompt := prompt.Build(retrieved, req, userStats)
	enter(StatePromptBuilt)

	start = time.Now()
	enter(StateGenerationCalled)
	raw, err := s.generator.Generate(ctx, userPrompt)
	s.metrics.ObserveStage("generate", time.Since(start))
	if err != nil {
		return fail(err)
	}

	resp, outcome := Parse(raw)
	if outcome == OutcomeFallback {
		enter(StateFallback)
		log.Warn("model output not parseable, using fallback", "raw_len", len(raw))
		s.metrics.ObservePrediction(observability.OutcomeFallback)
	} else {
		enter(StateParsed)
		s.metrics.ObservePrediction(observability.OutcomeParsed)
	}

	enter(StateReturned)
	log.Info("prediction complete", "outcome", outcome, "recommendations", len(resp.Recommendations))
	return &Result{RequestID: id, Response: resp, Outcome: outcome}, nil
}
