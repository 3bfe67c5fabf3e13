// Package graph stores the food database as a knowledge graph:
// (Food)-[:SUPPORTS]->(Condition) and (Food)-[:BALANCES]->(Dosha).
package graph

import (
	"context"
	"slices"
	"strings"

	"github.com/efebarandurmaz/agni/internal/corpus"
)

// Repository provides graph storage for foods.
type Repository interface {
	// StoreFoods merges foods and their relations into the graph.
	StoreFoods(ctx context.Context, foods []corpus.Food) error
	// FoodsForCondition returns foods supporting condition, sorted by name.
	// A non-empty dosha keeps only foods that balance one of its parts.
	FoodsForCondition(ctx context.Context, condition, dosha string) ([]corpus.Food, error)
	// Close releases resources.
	Close(ctx context.Context) error
}

// Doshas are the three primary constitutions.
var Doshas = []string{"Vata", "Pitta", "Kapha"}

var conditionAliases = map[string]string{
	"glucose":   "diabetes",
	"sugar":     "diabetes",
	"digestion": "digestive",
}

// ConditionTerm normalises a condition into the lower-case term matched
// against condition names.
func ConditionTerm(condition string) string {
	term := strings.ToLower(strings.TrimSpace(condition))
	if alias, ok := conditionAliases[term]; ok {
		return alias
	}
	return term
}

// BalancedDoshas parses a dosha effects line such as "Reduces Kapha and
// Pitta, increases Vata" into the doshas the food calms.
func BalancedDoshas(effects string) []string {
	var out []string
	for _, clause := range strings.Split(effects, ",") {
		c := strings.ToLower(clause)
		if !strings.Contains(c, "reduces") && !strings.Contains(c, "balances") {
			continue
		}
		if strings.Contains(c, "all doshas") {
			return slices.Clone(Doshas)
		}
		for _, d := range Doshas {
			if strings.Contains(c, strings.ToLower(d)) && !slices.Contains(out, d) {
				out = append(out, d)
			}
		}
	}
	return out
}

// DoshaParts splits a compound dosha such as "Vata-Pitta" into its parts.
func DoshaParts(dosha string) []string {
	var out []string
	for _, p := range strings.FieldsFunc(dosha, func(r rune) bool { return r == '-' || r == '/' || r == ' ' }) {
		for _, d := range Doshas {
			if strings.EqualFold(p, d) {
				out = append(out, d)
			}
		}
	}
	return out
}
