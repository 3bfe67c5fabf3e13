package retrieval

import (
	"context"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
)

// conditionMatchThreshold is the minimum Levenshtein similarity for a
// misspelt condition to map onto a known one.
const conditionMatchThreshold = 0.75

var conditionQueries = map[string]string{
	"cholesterol": "high cholesterol management foods herbs",
	"glucose":     "blood sugar glucose diabetes management",
	"metabolism":  "slow metabolism agni digestive fire",
	"liver":       "liver health yakrit detoxification",
	"pancreas":    "pancreas function insulin production",
	"digestion":   "digestive health gut wellness",
	"general":     "balanced diet health wellness",
}

// Conditions lists the conditions with a curated query, sorted.
func Conditions() []string {
	out := make([]string, 0, len(conditionQueries))
	for c := range conditionQueries {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Recommendation is one passage returned for a condition.
type Recommendation struct {
	Context   string  `json:"context"`
	Relevance float64 `json:"relevance"`
}

// Recommender answers condition-oriented queries.
type Recommender struct {
	searcher *Searcher
}

// NewRecommender creates a Recommender.
func NewRecommender(s *Searcher) *Recommender {
	return &Recommender{searcher: s}
}

// ResolveCondition maps a condition name to its curated query. Unknown names
// are fuzzy matched and otherwise returned as typed.
func ResolveCondition(condition string) string {
	key := strings.ToLower(strings.TrimSpace(condition))
	if q, ok := conditionQueries[key]; ok {
		return q
	}

	best, bestScore := "", float32(0)
	for _, name := range Conditions() {
		score, err := edlib.StringsSimilarity(key, name, edlib.Levenshtein)
		if err != nil {
			continue
		}
		if score > bestScore {
			best, bestScore = name, score
		}
	}
	if bestScore >= conditionMatchThreshold {
		return conditionQueries[best]
	}
	return condition
}

// FoodRecommendations returns the ten passages closest to a condition for a
// dosha, with relevance as one minus cosine distance.
func (r *Recommender) FoodRecommendations(ctx context.Context, condition, dosha string) ([]Recommendation, error) {
	query := ResolveCondition(condition) + " " + dosha + " dosha"
	results, err := r.searcher.Search(ctx, query, 10)
	if err != nil {
		return nil, err
	}
	out := make([]Recommendation, len(results))
	for i, res := range results {
		out[i] = Recommendation{Context: res.Document, Relevance: 1 - float64(res.Distance)}
	}
	return out, nil
}

// SearchByCondition returns the ten passages closest to a free-text
// condition, optionally narrowed to a dosha.
func (r *Recommender) SearchByCondition(ctx context.Context, condition, dosha string) ([]string, error) {
	query := condition
	if dosha != "" {
		query += " " + dosha + " dosha"
	}
	results, err := r.searcher.Search(ctx, query, 10)
	if err != nil {
		return nil, err
	}
	return documents(results), nil
}
