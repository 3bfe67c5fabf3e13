package temporal

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/efebarandurmaz/agni/internal/observability"
	"github.com/efebarandurmaz/agni/internal/prediction"
	"github.com/efebarandurmaz/agni/internal/schema"
	"github.com/efebarandurmaz/agni/internal/stats"
)

// Activities holds the shared resources the prediction activities use. It is
// registered on the worker as a struct so each method becomes an activity.
type Activities struct {
	Retriever prediction.ContextRetriever
	Stats     stats.Store
	Generator prediction.TextGenerator
	Metrics   *observability.Metrics
}

// RetrieveContext builds the grounding context for a request.
func (a *Activities) RetrieveContext(ctx context.Context, req schema.PredictionRequest) (string, error) {
	start := time.Now()
	defer func() { a.Metrics.ObserveStage("retrieve", time.Since(start)) }()
	return a.Retriever.Retrieve(ctx, req)
}

// RecentStats returns the user's seven-day summary.
func (a *Activities) RecentStats(ctx context.Context, userID string) (schema.Stats, error) {
	if a.Stats == nil {
		return schema.Stats{}, nil
	}
	st, err := a.Stats.RecentStats(ctx, userID)
	if err != nil {
		activity.GetLogger(ctx).Warn("stats lookup failed", "user", userID, "error", err)
		return schema.Stats{}, err
	}
	return st, nil
}

// Generate sends the assembled prompt to the model.
func (a *Activities) Generate(ctx context.Context, userPrompt string) (string, error) {
	start := time.Now()
	raw, err := a.Generator.Generate(ctx, userPrompt)
	a.Metrics.ObserveStage("generate", time.Since(start))
	if err != nil {
		a.Metrics.ObservePrediction(observability.OutcomeError)
		return "", err
	}
	return raw, nil
}
