// Package app builds the prediction pipeline from configuration. Both
// binaries share it so the CLI and the worker wire identical components.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/efebarandurmaz/agni/internal/config"
	"github.com/efebarandurmaz/agni/internal/corpus"
	"github.com/efebarandurmaz/agni/internal/embedding"
	"github.com/efebarandurmaz/agni/internal/graph"
	"github.com/efebarandurmaz/agni/internal/graph/neo4j"
	"github.com/efebarandurmaz/agni/internal/kv"
	"github.com/efebarandurmaz/agni/internal/llm"
	"github.com/efebarandurmaz/agni/internal/llmutil"
	"github.com/efebarandurmaz/agni/internal/observability"
	"github.com/efebarandurmaz/agni/internal/prediction"
	"github.com/efebarandurmaz/agni/internal/retrieval"
	"github.com/efebarandurmaz/agni/internal/schema"
	"github.com/efebarandurmaz/agni/internal/server"
	"github.com/efebarandurmaz/agni/internal/stats"
	"github.com/efebarandurmaz/agni/internal/vector"
	"github.com/efebarandurmaz/agni/internal/vector/pgvector"
	"github.com/efebarandurmaz/agni/internal/vector/qdrant"
)

// Version is reported by the health server and the tracer resource.
const Version = "0.1.0"

// ErrNoGenerator is returned when predictions are requested without a
// generation provider.
var ErrNoGenerator = errors.New("no LLM provider configured (set llm.provider)")

// App holds the long-lived components, constructed once and injected.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.Metrics
	Tracer  *observability.TracerProvider

	Corpus   *corpus.Corpus
	Provider llm.Provider // nil when llm.provider is empty or "none"
	Model    embedding.Model
	Index    vector.Index
	Loader   *corpus.Loader

	Searcher    *retrieval.Searcher
	Retriever   *retrieval.Retriever
	Recommender *retrieval.Recommender
	Stats       stats.Store
	Graph       graph.Repository
	Generator   *prediction.Generator // nil without Provider
	Service     *prediction.Service   // nil without Provider

	hooks []server.ShutdownHook
}

// NewLogger builds the process logger from the log section.
func NewLogger(w io.Writer, c config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// New wires every component. On error, anything already opened is closed.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(nil),
	}
	defer func() {
		if err != nil {
			if cerr := a.Close(context.Background()); cerr != nil {
				logger.Warn("cleanup after failed start", "error", cerr)
			}
		}
	}()

	if a.Tracer, err = observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    "agni",
		ServiceVersion: Version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	}); err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	a.hooks = append(a.hooks, server.TracingShutdownHook(a.Tracer.Shutdown))

	if a.Corpus, err = corpus.Default(); err != nil {
		return nil, err
	}

	factory := llm.NewFactory()
	llmutil.RegisterDefaultProviders(factory)

	if a.Provider, err = factory.Create(llm.ProviderConfig{
		Provider:          cfg.LLM.Provider,
		APIKey:            cfg.LLM.APIKey,
		Model:             cfg.LLM.Model,
		BaseURL:           cfg.LLM.BaseURL,
		Timeout:           cfg.LLM.Timeout,
		MaxRetries:        cfg.LLM.MaxRetries,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
	}); err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}

	if a.Model, err = a.buildModel(factory); err != nil {
		return nil, err
	}
	if a.Index, err = a.buildIndex(ctx); err != nil {
		return nil, err
	}

	a.Loader = corpus.NewLoader(a.Index, a.Model, a.Corpus, corpus.LoaderConfig{
		BatchSize: cfg.Corpus.BatchSize,
		Backend:   cfg.Vector.Backend,
		Logger:    logger,
		Metrics:   a.Metrics,
	})
	a.Searcher = retrieval.NewSearcher(a.Model, a.Index)
	a.Retriever = retrieval.NewRetriever(a.Searcher, retrieval.Config{
		MealItemLimit: cfg.Retrieval.MealItemLimit,
		Logger:        logger,
		Metrics:       a.Metrics,
	})
	a.Recommender = retrieval.NewRecommender(a.Searcher)

	if a.Stats, err = a.buildStats(ctx); err != nil {
		return nil, err
	}
	if a.Graph, err = a.buildGraph(ctx); err != nil {
		return nil, err
	}

	if a.Provider != nil {
		a.Generator = prediction.NewGenerator(a.Provider, prediction.GeneratorConfig{
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Metrics:     a.Metrics,
		})
		a.Service = prediction.NewService(a.Retriever, a.Stats, a.Generator, prediction.Config{
			Logger:  logger,
			Metrics: a.Metrics,
		})
	}

	logger.Info("pipeline ready",
		"backend", cfg.Vector.Backend,
		"embedding", a.Model.Name(),
		"llm", providerName(a.Provider))
	return a, nil
}

func providerName(p llm.Provider) string {
	if p == nil {
		return "none"
	}
	return p.Name()
}

func (a *App) buildModel(factory *llm.ProviderFactory) (embedding.Model, error) {
	c := a.Config.Embedding
	var model embedding.Model
	if c.Provider == "hash" {
		model = embedding.NewHashModel(c.Dimension, c.MaxTokens)
	} else {
		p, err := factory.Create(llm.ProviderConfig{
			Provider:   c.Provider,
			APIKey:     c.APIKey,
			BaseURL:    c.BaseURL,
			EmbedModel: c.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("creating embedding provider: %w", err)
		}
		if p == nil {
			return nil, errors.New("embedding.provider is required (use \"hash\" for offline embeddings)")
		}
		model = embedding.NewProviderModel(p, c.Provider+"/"+c.Model, c.Dimension, c.MaxTokens)
	}

	if c.CacheDir == "" {
		return model, nil
	}
	store, err := kv.OpenBadger(kv.BadgerOptions{Dir: c.CacheDir, Logger: a.Logger})
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	a.hooks = append(a.hooks, server.IndexShutdownHook(store.Close))
	return embedding.NewCached(model, store, c.MaxTokens, a.Logger), nil
}

func (a *App) buildIndex(ctx context.Context) (vector.Index, error) {
	c := a.Config.Vector
	dim := a.Model.Dimension()

	var (
		idx vector.Index
		err error
	)
	switch c.Backend {
	case "memory":
		idx = vector.NewMemoryIndex(dim)
	case "", "local":
		store, oerr := kv.OpenBadger(kv.BadgerOptions{Dir: c.Path, Logger: a.Logger})
		if oerr != nil {
			return nil, fmt.Errorf("local index: %w", oerr)
		}
		a.hooks = append(a.hooks, server.IndexShutdownHook(store.Close))
		idx, err = vector.OpenLocal(ctx, store, dim)
	case "qdrant":
		idx, err = qdrant.New(ctx, qdrant.Config{
			Host:       c.Host,
			Port:       c.Port,
			Collection: c.Collection,
			Dimension:  dim,
		}, a.Logger)
	case "pgvector":
		idx, err = pgvector.New(ctx, pgvector.Config{
			DSN:       c.DSN,
			Table:     c.Collection,
			Dimension: dim,
		}, a.Logger)
	default:
		return nil, fmt.Errorf("unknown vector backend %q", c.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s index: %w", c.Backend, err)
	}
	a.hooks = append(a.hooks, server.DatabaseShutdownHook("vector-index", idx.Close))
	return idx, nil
}

func (a *App) buildStats(ctx context.Context) (stats.Store, error) {
	if a.Config.Stats.DSN == "" {
		a.Logger.Info("stats database not configured, user stats unavailable")
		return stats.None{}, nil
	}
	pg, err := stats.NewPostgres(ctx, a.Config.Stats.DSN)
	if err != nil {
		return nil, err
	}
	a.hooks = append(a.hooks, server.DatabaseShutdownHook("stats", func() error {
		pg.Close()
		return nil
	}))
	return pg, nil
}

func (a *App) buildGraph(ctx context.Context) (graph.Repository, error) {
	c := a.Config.Graph
	var repo graph.Repository
	if c.URI == "" {
		repo = graph.NewMemory()
	} else {
		n, err := neo4j.NewNeo4j(ctx, c.URI, c.Username, c.Password)
		if err != nil {
			return nil, fmt.Errorf("food graph: %w", err)
		}
		repo = n
	}
	a.hooks = append(a.hooks, server.DatabaseShutdownHook("food-graph", func() error {
		return repo.Close(context.Background())
	}))
	return repo, nil
}

// Predict runs one in-process prediction.
func (a *App) Predict(ctx context.Context, userID string, req schema.PredictionRequest) (*prediction.Result, error) {
	if a.Service == nil {
		return nil, ErrNoGenerator
	}
	return a.Service.Predict(ctx, userID, req)
}

// Pinger is implemented by backends that can check their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecks returns a connection check for each optional database that
// supports one, keyed by check name.
func (a *App) HealthChecks() map[string]func(ctx context.Context) error {
	checks := make(map[string]func(ctx context.Context) error)
	if p, ok := a.Stats.(Pinger); ok {
		checks["stats"] = p.Ping
	}
	if p, ok := a.Graph.(Pinger); ok {
		checks["food-graph"] = p.Ping
	}
	return checks
}

// ShutdownHooks returns the close hooks of every opened resource, for
// registration with a server.ShutdownHandler.
func (a *App) ShutdownHooks() []server.ShutdownHook {
	return append([]server.ShutdownHook(nil), a.hooks...)
}

// Close releases every resource in hook priority order. It is safe to call
// on a partially built App.
func (a *App) Close(ctx context.Context) error {
	hooks := a.ShutdownHooks()
	a.hooks = nil
	sort.SliceStable(hooks, func(i, j int) bool { return hooks[i].Priority < hooks[j].Priority })

	var errs []error
	for _, h := range hooks {
		if err := h.Fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.Name, err))
		}
	}
	return errors.Join(errs...)
}
