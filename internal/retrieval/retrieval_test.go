package retrieval

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/efebarandurmaz/agni/internal/schema"
	"github.com/efebarandurmaz/agni/internal/vector"
)

// fakeModel encodes each distinct text as a one-dimensional vector holding
// its first-seen ordinal, so fakeIndex can recover the query text.
type fakeModel struct {
	mu    sync.Mutex
	ids   map[string]float32
	texts map[float32]string
}

func newFakeModel() *fakeModel {
	return &fakeModel{ids: map[string]float32{}, texts: map[float32]string{}}
}

func (m *fakeModel) Name() string   { return "fake" }
func (m *fakeModel) Dimension() int { return 1 }

func (m *fakeModel) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		id, ok := m.ids[t]
		if !ok {
			id = float32(len(m.ids) + 1)
			m.ids[t] = id
			m.texts[id] = t
		}
		out[i] = []float32{id}
	}
	return out, nil
}

func (m *fakeModel) text(v []float32) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.texts[v[0]]
}

type call struct {
	query string
	k     int
}

// fakeIndex answers queries from canned results keyed by query text.
type fakeIndex struct {
	vector.Index
	model   *fakeModel
	results map[string][]vector.SearchResult
	fail    map[string]error

	mu    sync.Mutex
	calls []call
}

func (f *fakeIndex) Query(_ context.Context, emb []float32, k int) ([]vector.SearchResult, error) {
	q := f.model.text(emb)
	f.mu.Lock()
	f.calls = append(f.calls, call{query: q, k: k})
	f.mu.Unlock()
	if err := f.fail[q]; err != nil {
		return nil, err
	}
	res := f.results[q]
	if len(res) > k {
		res = res[:k]
	}
	return res, nil
}

func (f *fakeIndex) Count(context.Context) (int, error) { return 36, nil }

func (f *fakeIndex) queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.query
	}
	sort.Strings(out)
	return out
}

func docs(texts ...string) []vector.SearchResult {
	out := make([]vector.SearchResult, len(texts))
	for i, t := range texts {
		out[i] = vector.SearchResult{Document: t, Distance: float32(i) / 10}
	}
	return out
}

func newFixture(results map[string][]vector.SearchResult) (*Searcher, *fakeIndex) {
	model := newFakeModel()
	idx := &fakeIndex{model: model, results: results, fail: map[string]error{}}
	return NewSearcher(model, idx), idx
}

const (
	conditionQuery = "blood glucose management diabetes prevention ayurveda"
	pittaQuery     = "Pitta dietary guidelines foods to favor avoid"
)

func TestRetrieve_OrderAndDedup(t *testing.T) {
	s, _ := newFixture(map[string][]vector.SearchResult{
		"properties of rice taste qualities effects": docs("A", "X"),
		"properties of ghee taste qualities effects": docs("B"),
		pittaQuery:     docs("C", "A", "D"),
		conditionQuery: docs("E", "B"),
	})
	r := NewRetriever(s, Config{})

	got, err := r.Retrieve(context.Background(), schema.PredictionRequest{
		MealItems: []string{"rice", "ghee"},
		Dosha:     "Pitta",
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if want := "A\n\nB\n\nC\n\nD\n\nE"; got != want {
		t.Errorf("Retrieve() = %q, want %q", got, want)
	}
}

func TestRetrieve_MealItemLimit(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		items     []string
		wantItems int
	}{
		{"default limit", 0, []string{"a", "b", "c", "d", "e"}, 3},
		{"custom limit", 1, []string{"a", "b"}, 1},
		{"fewer items than limit", 5, []string{"a", "b"}, 2},
		{"blank items skipped", 3, []string{"a", " ", "b"}, 2},
		{"blank within limit not backfilled", 2, []string{" ", "a", "b"}, 1},
		{"no items", 3, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, idx := newFixture(nil)
			r := NewRetriever(s, Config{MealItemLimit: tt.limit})
			if _, err := r.Retrieve(context.Background(), schema.PredictionRequest{MealItems: tt.items}); err != nil {
				t.Fatalf("Retrieve: %v", err)
			}
			perItem := 0
			for _, q := range idx.queries() {
				if strings.HasPrefix(q, "properties of ") {
					perItem++
				}
			}
			if perItem != tt.wantItems {
				t.Errorf("per-item queries = %d, want %d", perItem, tt.wantItems)
			}
		})
	}
}

func TestRetrieve_QueriesAndK(t *testing.T) {
	s, idx := newFixture(nil)
	r := NewRetriever(s, Config{})
	if _, err := r.Retrieve(context.Background(), schema.PredictionRequest{MealItems: []string{"dal"}}); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	want := map[string]int{
		"properties of dal taste qualities effects":          1,
		"Vata-Pitta dietary guidelines foods to favor avoid": 3,
		conditionQuery: 2,
	}
	if len(idx.calls) != len(want) {
		t.Fatalf("expected %d queries, got %+v", len(want), idx.calls)
	}
	for _, c := range idx.calls {
		if k, ok := want[c.query]; !ok || k != c.k {
			t.Errorf("unexpected query %q with k=%d", c.query, c.k)
		}
	}
}

func TestRetrieve_EmptyHitSkipped(t *testing.T) {
	s, _ := newFixture(map[string][]vector.SearchResult{
		conditionQuery: docs("E"),
	})
	got, err := NewRetriever(s, Config{}).Retrieve(context.Background(), schema.PredictionRequest{
		MealItems: []string{"unknown"},
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if got != "E" {
		t.Errorf("Retrieve() = %q, want %q", got, "E")
	}
}

func TestRetrieve_Error(t *testing.T) {
	s, idx := newFixture(nil)
	idx.fail[conditionQuery] = vector.ErrEmptyIndex

	_, err := NewRetriever(s, Config{}).Retrieve(context.Background(), schema.PredictionRequest{})
	if !errors.Is(err, vector.ErrEmptyIndex) {
		t.Fatalf("expected ErrEmptyIndex, got %v", err)
	}
	if !strings.Contains(err.Error(), "condition") {
		t.Errorf("error should name the pass: %v", err)
	}
}

func TestRetrieve_CustomPasses(t *testing.T) {
	s, _ := newFixture(map[string][]vector.SearchResult{
		"kapha only": docs("K1", "K2"),
	})
	r := NewRetriever(s, Config{Passes: []Pass{{Name: "fixed", Template: "kapha only", K: 1}}})
	got, err := r.Retrieve(context.Background(), schema.PredictionRequest{Dosha: "Kapha"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if got != "K1" {
		t.Errorf("Retrieve() = %q, want K1", got)
	}
}

func TestFoodProperties(t *testing.T) {
	s, idx := newFixture(map[string][]vector.SearchResult{
		"properties of turmeric taste qualities effects": docs("1", "2", "3", "4", "5", "6"),
	})
	got, err := s.FoodProperties(context.Background(), "turmeric")
	if err != nil {
		t.Fatalf("FoodProperties: %v", err)
	}
	if len(got) != 5 || idx.calls[0].k != 5 {
		t.Errorf("expected top 5, got %v (k=%d)", got, idx.calls[0].k)
	}
}

func TestResolveCondition(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"glucose", "blood sugar glucose diabetes management"},
		{"  Liver ", "liver health yakrit detoxification"},
		{"glucos", "blood sugar glucose diabetes management"},
		{"cholestrol", "high cholesterol management foods herbs"},
		{"diabetes", "diabetes"},
		{"Joint pain", "Joint pain"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ResolveCondition(tt.in); got != tt.want {
				t.Errorf("ResolveCondition(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFoodRecommendations(t *testing.T) {
	s, _ := newFixture(map[string][]vector.SearchResult{
		"pancreas function insulin production Kapha dosha": {
			{Document: "P1", Distance: 0.25},
			{Document: "P2", Distance: 0.5},
		},
	})
	recs, err := NewRecommender(s).FoodRecommendations(context.Background(), "Pancreas", "Kapha")
	if err != nil {
		t.Fatalf("FoodRecommendations: %v", err)
	}
	if len(recs) != 2 || recs[0].Context != "P1" {
		t.Fatalf("unexpected recommendations: %+v", recs)
	}
	if math.Abs(recs[0].Relevance-0.75) > 1e-6 || math.Abs(recs[1].Relevance-0.5) > 1e-6 {
		t.Errorf("unexpected relevance: %+v", recs)
	}
}

func TestSearchByCondition(t *testing.T) {
	s, idx := newFixture(map[string][]vector.SearchResult{
		"acidity":             docs("plain"),
		"acidity Pitta dosha": docs("pitta"),
	})
	rec := NewRecommender(s)

	got, err := rec.SearchByCondition(context.Background(), "acidity", "")
	if err != nil || len(got) != 1 || got[0] != "plain" {
		t.Errorf("without dosha: %v, %v", got, err)
	}
	got, err = rec.SearchByCondition(context.Background(), "acidity", "Pitta")
	if err != nil || len(got) != 1 || got[0] != "pitta" {
		t.Errorf("with dosha: %v, %v", got, err)
	}
	if idx.calls[0].k != 10 {
		t.Errorf("k = %d, want 10", idx.calls[0].k)
	}
}

func TestConditions_Sorted(t *testing.T) {
	got := Conditions()
	if len(got) != 7 || !sort.StringsAreSorted(got) {
		t.Errorf("Conditions() = %v", got)
	}
}
