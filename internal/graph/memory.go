package graph

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/efebarandurmaz/agni/internal/corpus"
)

// Memory is an in-process Repository used when no graph database is
// configured.
type Memory struct {
	mu    sync.RWMutex
	foods map[string]corpus.Food
}

// NewMemory creates an empty in-memory graph.
func NewMemory() *Memory {
	return &Memory{foods: make(map[string]corpus.Food)}
}

func (m *Memory) StoreFoods(_ context.Context, foods []corpus.Food) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range foods {
		f.Conditions = slices.Clone(f.Conditions)
		m.foods[f.Name] = f
	}
	return nil
}

func (m *Memory) FoodsForCondition(_ context.Context, condition, dosha string) ([]corpus.Food, error) {
	term := ConditionTerm(condition)
	want := DoshaParts(dosha)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []corpus.Food
	for _, f := range m.foods {
		if !supports(f, term) {
			continue
		}
		if len(want) > 0 && !balancesAny(f, want) {
			continue
		}
		f.Conditions = slices.Clone(f.Conditions)
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) Close(context.Context) error { return nil }

func supports(f corpus.Food, term string) bool {
	for _, c := range f.Conditions {
		if strings.Contains(strings.ToLower(c), term) {
			return true
		}
	}
	return false
}

func balancesAny(f corpus.Food, doshas []string) bool {
	for _, d := range BalancedDoshas(f.DoshaEffects) {
		if slices.Contains(doshas, d) {
			return true
		}
	}
	return false
}

var _ Repository = (*Memory)(nil)
