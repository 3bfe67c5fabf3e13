package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/efebarandurmaz/agni/internal/kv"
)

// Cached memoises another Model in a kv store keyed by model name and the
// SHA-256 of the text. Misses are embedded in one batch.
type Cached struct {
	inner     Model
	store     kv.Store
	maxTokens int
	logger    *slog.Logger
}

// NewCached wraps inner with a persistent cache in store.
func NewCached(inner Model, store kv.Store, maxTokens int, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Cached{inner: inner, store: store, maxTokens: maxTokens, logger: logger}
}

func (c *Cached) Name() string   { return c.inner.Name() }
func (c *Cached) Dimension() int { return c.inner.Dimension() }

func (c *Cached) key(text string) kv.Key {
	sum := sha256.Sum256([]byte(text))
	return kv.Key{"emb", strings.ReplaceAll(c.inner.Name(), ":", "_"), hex.EncodeToString(sum[:])}
}

func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := Validate(texts, c.maxTokens); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		raw, err := c.store.Get(ctx, c.key(t))
		switch {
		case err == nil:
			var v []float32
			if err := msgpack.Unmarshal(raw, &v); err == nil && len(v) == c.Dimension() {
				out[i] = v
				continue
			}
			c.logger.Warn("discarding corrupt cache entry", "model", c.Name())
		case !errors.Is(err, kv.ErrNotFound):
			return nil, fmt.Errorf("embedding cache lookup: %w", err)
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	entries := make([]kv.Entry, 0, len(vecs))
	for j, v := range vecs {
		out[missIdx[j]] = v
		raw, err := msgpack.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding embedding: %w", err)
		}
		entries = append(entries, kv.Entry{Key: c.key(missTexts[j]), Value: raw})
	}
	if err := c.store.BatchSet(ctx, entries); err != nil {
		// A failed cache write does not fail the embedding.
		c.logger.Warn("embedding cache write failed", "error", err)
	}
	c.logger.Debug("embedded", "model", c.Name(), "hits", len(texts)-len(missTexts), "misses", len(missTexts))
	return out, nil
}
