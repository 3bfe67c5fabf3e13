package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/efebarandurmaz/agni/internal/embedding"
	"github.com/efebarandurmaz/agni/internal/observability"
	"github.com/efebarandurmaz/agni/internal/vector"
)

// DefaultBatchSize is the number of documents embedded and upserted per call.
const DefaultBatchSize = 50

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	BatchSize int
	// Backend names the index backend in reports and spans.
	Backend string
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Loader is the single writer of the knowledge index.
type Loader struct {
	index     vector.Index
	model     embedding.Model
	corpus    *Corpus
	batchSize int
	backend   string
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewLoader creates a loader that writes c into idx using model.
func NewLoader(idx vector.Index, model embedding.Model, c *Corpus, cfg LoaderConfig) *Loader {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Loader{
		index:     idx,
		model:     model,
		corpus:    c,
		batchSize: cfg.BatchSize,
		backend:   cfg.Backend,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}
}

// Load populates the index unless it already holds documents.
func (l *Loader) Load(ctx context.Context) (*LoadReport, error) {
	report := newLoadReport(l.backend, l.model.Name())

	count, err := l.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count index: %w", err)
	}
	if count > 0 {
		l.logger.Info("index already initialised, skipping load", "documents", count)
		report.Skipped = true
		report.finish(count)
		l.metrics.SetIndexDocuments(count)
		return report, nil
	}

	if err := l.load(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// Rebuild clears the index and loads the corpus again. It is destructive;
// callers confirm first.
func (l *Loader) Rebuild(ctx context.Context) (*LoadReport, error) {
	l.logger.Warn("clearing knowledge index", "backend", l.backend)
	if err := l.index.Clear(ctx); err != nil {
		return nil, fmt.Errorf("clear index: %w", err)
	}
	l.metrics.SetIndexDocuments(0)

	report := newLoadReport(l.backend, l.model.Name())
	if err := l.load(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

func (l *Loader) load(ctx context.Context, report *LoadReport) (err error) {
	docs := l.corpus.Documents
	ctx, span := observability.StartCorpusLoadSpan(ctx, l.backend, len(docs))
	defer func() {
		observability.RecordCorpusLoadResult(span, report.Loaded, report.Batches, false)
		observability.RecordError(span, err)
		span.End()
	}()

	// Every batch is embedded before the first write, so an embedding
	// failure leaves the index untouched.
	var batches []batch
	for start := 0; start < len(docs); start += l.batchSize {
		b := newBatch(docs[start:min(start+l.batchSize, len(docs))], start)
		embs, err := l.model.Embed(ctx, b.texts)
		if err != nil {
			return fmt.Errorf("embed batch %d: %w", len(batches), err)
		}
		b.embeddings = embs
		batches = append(batches, b)
	}

	for i, b := range batches {
		if err := l.index.Upsert(ctx, b.ids, b.texts, b.embeddings, b.metas); err != nil {
			return l.rollback(ctx, fmt.Errorf("upsert batch %d: %w", i, err))
		}
		report.Batches++
		report.Loaded += len(b.ids)
		l.logger.Debug("loaded batch", "batch", report.Batches, "count", len(b.ids))
	}

	count, err := l.index.Count(ctx)
	if err != nil {
		return fmt.Errorf("count index: %w", err)
	}
	report.finish(count)
	l.metrics.SetIndexDocuments(count)
	l.logger.Info("knowledge index loaded", "documents", count, "batches", report.Batches, "duration", report.Duration)
	return nil
}

// rollback clears a partially written index so the next Load starts over
// instead of skipping a non-empty index.
func (l *Loader) rollback(ctx context.Context, cause error) error {
	if err := l.index.Clear(ctx); err != nil {
		l.logger.Error("rollback of partial load failed", "error", err)
		return errors.Join(cause, fmt.Errorf("rollback: %w", err))
	}
	l.metrics.SetIndexDocuments(0)
	l.logger.Warn("partial load rolled back", "error", cause)
	return cause
}

type batch struct {
	ids        []string
	texts      []string
	metas      []map[string]string
	embeddings [][]float32
}

func newBatch(docs []Document, offset int) batch {
	b := batch{
		ids:   make([]string, len(docs)),
		texts: make([]string, len(docs)),
		metas: make([]map[string]string, len(docs)),
	}
	for i, d := range docs {
		b.ids[i] = DocumentID(offset + i)
		b.texts[i] = d.Text
		b.metas[i] = d.Metadata()
	}
	return b
}
