// Package retrieval turns a prediction request into grounding context by
// running a fixed set of queries against the knowledge index.
package retrieval

import (
	"context"
	"fmt"

	"github.com/efebarandurmaz/agni/internal/embedding"
	"github.com/efebarandurmaz/agni/internal/vector"
)

const foodPropertiesTemplate = "properties of %s taste qualities effects"

// Searcher embeds a query and runs it against the index.
type Searcher struct {
	model embedding.Model
	index vector.Index
}

// NewSearcher creates a Searcher.
func NewSearcher(model embedding.Model, index vector.Index) *Searcher {
	return &Searcher{model: model, index: index}
}

// Search returns the k nearest documents to query.
func (s *Searcher) Search(ctx context.Context, query string, k int) ([]vector.SearchResult, error) {
	embs, err := s.model.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := s.index.Query(ctx, embs[0], k)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	return results, nil
}

// FoodProperties returns the five passages closest to a food's properties.
func (s *Searcher) FoodProperties(ctx context.Context, food string) ([]string, error) {
	results, err := s.Search(ctx, fmt.Sprintf(foodPropertiesTemplate, food), 5)
	if err != nil {
		return nil, err
	}
	return documents(results), nil
}

// Count reports how many documents the index holds.
func (s *Searcher) Count(ctx context.Context) (int, error) {
	return s.index.Count(ctx)
}

func documents(results []vector.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Document
	}
	return out
}
