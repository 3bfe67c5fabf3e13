package graph

import (
	"context"
	"slices"
	"testing"

	"github.com/efebarandurmaz/agni/internal/corpus"
)

func TestBalancedDoshas(t *testing.T) {
	tests := []struct {
		effects string
		want    []string
	}{
		{"Reduces Kapha and Pitta, increases Vata", []string{"Pitta", "Kapha"}},
		{"Balances Vata and Kapha, may increase Pitta", []string{"Vata", "Kapha"}},
		{"Balances all doshas, especially Kapha", []string{"Vata", "Pitta", "Kapha"}},
		{"Increases Pitta", nil},
		{"", nil},
	}
	for _, tt := range tests {
		if got := BalancedDoshas(tt.effects); !slices.Equal(got, tt.want) {
			t.Errorf("BalancedDoshas(%q) = %v, want %v", tt.effects, got, tt.want)
		}
	}
}

func TestDoshaParts(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Vata-Pitta", []string{"Vata", "Pitta"}},
		{"kapha", []string{"Kapha"}},
		{"Pitta/Kapha", []string{"Pitta", "Kapha"}},
		{"", nil},
		{"unknown", nil},
	}
	for _, tt := range tests {
		if got := DoshaParts(tt.in); !slices.Equal(got, tt.want) {
			t.Errorf("DoshaParts(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConditionTerm(t *testing.T) {
	if got := ConditionTerm(" Glucose "); got != "diabetes" {
		t.Errorf("ConditionTerm(glucose) = %q", got)
	}
	if got := ConditionTerm("Cholesterol"); got != "cholesterol" {
		t.Errorf("ConditionTerm(Cholesterol) = %q", got)
	}
}

func names(foods []corpus.Food) []string {
	out := make([]string, len(foods))
	for i, f := range foods {
		out[i] = f.Name
	}
	return out
}

func TestMemory_FoodsForCondition(t *testing.T) {
	c, err := corpus.Default()
	if err != nil {
		t.Fatalf("corpus: %v", err)
	}
	m := NewMemory()
	ctx := context.Background()
	if err := m.StoreFoods(ctx, c.Foods); err != nil {
		t.Fatalf("StoreFoods: %v", err)
	}
	// Storing again merges rather than duplicates.
	if err := m.StoreFoods(ctx, c.Foods); err != nil {
		t.Fatalf("StoreFoods: %v", err)
	}

	tests := []struct {
		condition, dosha string
		want             []string
	}{
		{"glucose", "", []string{"Bitter Melon", "Fenugreek Seeds", "Turmeric"}},
		{"cholesterol", "", []string{"Bitter Melon", "Fenugreek Seeds", "Turmeric"}},
		{"liver", "", []string{"Bitter Melon", "Turmeric"}},
		{"inflammation", "", []string{"Turmeric"}},
		{"digestion", "", []string{"Fenugreek Seeds"}},
		{"diabetes", "Vata", []string{"Fenugreek Seeds", "Turmeric"}},
		{"diabetes", "Pitta-Kapha", []string{"Bitter Melon", "Fenugreek Seeds", "Turmeric"}},
		{"insomnia", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.condition+"/"+tt.dosha, func(t *testing.T) {
			got, err := m.FoodsForCondition(ctx, tt.condition, tt.dosha)
			if err != nil {
				t.Fatalf("FoodsForCondition: %v", err)
			}
			if !slices.Equal(names(got), tt.want) {
				t.Errorf("got %v, want %v", names(got), tt.want)
			}
		})
	}
}
