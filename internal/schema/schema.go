// Package schema holds the request, response and statistics types shared by
// the retrieval, prompt and prediction packages.
package schema

import "strings"

// DefaultDosha is used when a request does not name a constitution.
const DefaultDosha = "Vata-Pitta"

// Exercise describes activity logged alongside a meal.
type Exercise struct {
	Type     string `json:"type"`
	Duration string `json:"duration"`
}

// PredictionRequest is one meal log submitted for analysis.
type PredictionRequest struct {
	MealItems        []string  `json:"mealItems"`
	Exercise         *Exercise `json:"exercise,omitempty"`
	LifestyleFactors string    `json:"lifestyleFactors"`
	Dosha            string    `json:"dosha"`
}

// EffectiveDosha returns the request dosha, or DefaultDosha when unset.
func (r PredictionRequest) EffectiveDosha() string {
	if d := strings.TrimSpace(r.Dosha); d != "" {
		return d
	}
	return DefaultDosha
}

// DietarySuggestion is per-meal guidance returned by the model.
type DietarySuggestion struct {
	Meal         string `json:"meal"`
	FoodsToFavor string `json:"foodsToFavor"`
	FoodsToAvoid string `json:"foodsToAvoid"`
	Notes        string `json:"notes"`
}

// PredictionResponse is the structured recommendation for a request.
// DietarySuggestions is nil when the model supplied none.
type PredictionResponse struct {
	PredictedGlucose   string              `json:"predictedGlucose"`
	Explanation        string              `json:"explanation"`
	Recommendations    []string            `json:"recommendations"`
	DietarySuggestions []DietarySuggestion `json:"dietarySuggestions,omitempty"`
}

// Stats summarises a user's last seven days. Nil glucose fields mean no
// readings were recorded, which is distinct from a reading of zero.
type Stats struct {
	AvgGlucose7d      *float64 `json:"avgGlucose7d,omitempty"`
	MaxGlucose7d      *float64 `json:"maxGlucose7d,omitempty"`
	MinGlucose7d      *float64 `json:"minGlucose7d,omitempty"`
	GlucoseReadings7d int      `json:"glucoseReadings7d"`
	MealCount7d       int      `json:"mealCount7d"`

	// Available is false when no relational store backs the lookup.
	Available bool `json:"available"`
}
