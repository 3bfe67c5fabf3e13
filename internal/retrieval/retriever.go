package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/sync/errgroup"

	"github.com/efebarandurmaz/agni/internal/observability"
	"github.com/efebarandurmaz/agni/internal/schema"
)

// DefaultMealItemLimit caps how many meal items get a per-item query.
const DefaultMealItemLimit = 3

// Pass is one kind of retrieval query. Template may contain one %s, which is
// filled with the meal item for per-item passes and the dosha otherwise.
type Pass struct {
	Name     string
	Template string
	K        int
	PerItem  bool
}

func (p Pass) query(arg string) string {
	if strings.Contains(p.Template, "%s") {
		return fmt.Sprintf(p.Template, arg)
	}
	return p.Template
}

// DefaultPasses returns the standard per-item, dosha and condition passes.
func DefaultPasses() []Pass {
	return []Pass{
		{Name: "meal_item", Template: foodPropertiesTemplate, K: 1, PerItem: true},
		{Name: "dosha", Template: "%s dietary guidelines foods to favor avoid", K: 3},
		{Name: "condition", Template: "blood glucose management diabetes prevention ayurveda", K: 2},
	}
}

// Config configures a Retriever.
type Config struct {
	Passes        []Pass
	MealItemLimit int
	Logger        *slog.Logger
	Metrics       *observability.Metrics
}

// Retriever builds the context blob for a prediction.
type Retriever struct {
	searcher      *Searcher
	passes        []Pass
	mealItemLimit int
	logger        *slog.Logger
	metrics       *observability.Metrics
}

// NewRetriever creates a Retriever. Zero config fields take defaults.
func NewRetriever(s *Searcher, cfg Config) *Retriever {
	if len(cfg.Passes) == 0 {
		cfg.Passes = DefaultPasses()
	}
	if cfg.MealItemLimit <= 0 {
		cfg.MealItemLimit = DefaultMealItemLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Retriever{
		searcher:      s,
		passes:        cfg.Passes,
		mealItemLimit: cfg.MealItemLimit,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
	}
}

type job struct {
	pass  Pass
	query string
}

func (r *Retriever) plan(req schema.PredictionRequest) []job {
	var jobs []job
	for _, p := range r.passes {
		if !p.PerItem {
			jobs = append(jobs, job{pass: p, query: p.query(req.EffectiveDosha())})
			continue
		}
		items := req.MealItems
		if len(items) > r.mealItemLimit {
			items = items[:r.mealItemLimit]
		}
		for _, item := range items {
			if strings.TrimSpace(item) == "" {
				continue
			}
			jobs = append(jobs, job{pass: p, query: p.query(item)})
		}
	}
	return jobs
}

// Retrieve runs every pass and returns the deduplicated passages joined by
// blank lines. Passages keep pass order, then rank order, and a repeated
// passage stays at its first position.
func (r *Retriever) Retrieve(ctx context.Context, req schema.PredictionRequest) (string, error) {
	passages, err := r.Passages(ctx, req)
	if err != nil {
		return "", err
	}
	return strings.Join(passages, "\n\n"), nil
}

// Passages is Retrieve without the final join.
func (r *Retriever) Passages(ctx context.Context, req schema.PredictionRequest) ([]string, error) {
	jobs := r.plan(req)
	hits := make([][]string, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	for i, j := range jobs {
		g.Go(func() error {
			spanCtx, span := observability.StartRetrievalSpan(gctx, j.pass.Name, j.query, j.pass.K)
			defer span.End()

			results, err := r.searcher.Search(spanCtx, j.query, j.pass.K)
			if err != nil {
				observability.RecordError(span, err)
				return fmt.Errorf("retrieval pass %s: %w", j.pass.Name, err)
			}
			observability.RecordRetrievalResult(span, len(results))
			r.metrics.ObserveRetrieval(j.pass.Name, len(results))
			hits[i] = documents(results)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := orderedmap.New[string, struct{}]()
	for _, docs := range hits {
		for _, d := range docs {
			if d == "" {
				continue
			}
			seen.Set(d, struct{}{})
		}
	}

	out := make([]string, 0, seen.Len())
	for pair := seen.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	r.logger.Debug("context retrieved", "queries", len(jobs), "passages", len(out))
	return out, nil
}
