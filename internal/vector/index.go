// Package vector stores embedded knowledge documents and answers
// nearest-neighbour queries by cosine distance.
//
// All backends share the same contract: Upsert validates the whole batch
// before writing anything, Query orders by ascending distance with ties
// going to the earliest inserted document, and Count is maintained by the
// index rather than computed by a scan.
package vector

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	ErrShapeMismatch     = errors.New("vector: ids, texts, embeddings and metadatas differ in length")
	ErrDuplicateID       = errors.New("vector: duplicate document id")
	ErrDimensionMismatch = errors.New("vector: embedding dimension mismatch")
	ErrEmptyIndex        = errors.New("vector: index is empty")
	ErrInvalidK          = errors.New("vector: k must be at least 1")
)

// SearchResult is a single match from Query.
type SearchResult struct {
	ID       string
	Document string
	Distance float32
	Metadata map[string]string
}

// Index is the vector store contract.
type Index interface {
	// Upsert inserts a batch. Despite the name, existing ids are rejected
	// with ErrDuplicateID: the index is append-only until Clear.
	Upsert(ctx context.Context, ids, texts []string, embeddings [][]float32, metadatas []map[string]string) error
	// Query returns at most min(k, Count) results by ascending distance.
	Query(ctx context.Context, embedding []float32, k int) ([]SearchResult, error)
	Count(ctx context.Context) (int, error)
	// Clear removes every document. Callers confirm before calling it on a
	// populated index.
	Clear(ctx context.Context) error
	Dimension() int
	Close() error
}

// CheckUpsert validates a batch against dim and the ids already stored.
// exists may be nil when the caller checks persistence separately.
func CheckUpsert(dim int, ids, texts []string, embeddings [][]float32, metadatas []map[string]string, exists func(string) bool) error {
	n := len(ids)
	if len(texts) != n || len(embeddings) != n || len(metadatas) != n {
		return fmt.Errorf("%w: %d ids, %d texts, %d embeddings, %d metadatas",
			ErrShapeMismatch, n, len(texts), len(embeddings), len(metadatas))
	}
	seen := make(map[string]struct{}, n)
	for i, id := range ids {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %q repeated in batch", ErrDuplicateID, id)
		}
		seen[id] = struct{}{}
		if exists != nil && exists(id) {
			return fmt.Errorf("%w: %q already indexed", ErrDuplicateID, id)
		}
		if len(embeddings[i]) != dim {
			return fmt.Errorf("%w: embedding %d has %d dimensions, index has %d",
				ErrDimensionMismatch, i, len(embeddings[i]), dim)
		}
	}
	return nil
}

// CheckQuery validates query arguments against the index state.
func CheckQuery(dim, count int, embedding []float32, k int) error {
	if k < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if len(embedding) != dim {
		return fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(embedding), dim)
	}
	if count == 0 {
		return ErrEmptyIndex
	}
	return nil
}

// CosineDistance returns 1 - cos(a, b) clamped to [0, 2]. A zero vector is
// at maximum distance from everything.
func CosineDistance(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 2
	}
	d := 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
	return float32(math.Max(0, math.Min(2, d)))
}

func copyMeta(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
