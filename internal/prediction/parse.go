package prediction

import (
	"encoding/json"
	"fmt"

	"github.com/efebarandurmaz/agni/internal/schema"
)

// Outcome says whether a completion was decoded or replaced by the fallback.
type Outcome string

const (
	OutcomeParsed   Outcome = "parsed"
	OutcomeFallback Outcome = "fallback"
)

// Defaults and fallback values of a PredictionResponse.
const (
	UnableToPredict        = "Unable to predict"
	FallbackGlucose        = "Moderate glucose response expected"
	FallbackRecommendation = "Consult with an Ayurvedic practitioner for personalized guidance"
	fallbackExplanationLen = 500
)

type wireResponse struct {
	PredictedGlucose   *string                     `json:"predictedGlucose"`
	Explanation        *string                     `json:"explanation"`
	Recommendations    *[]string                   `json:"recommendations"`
	DietarySuggestions *[]schema.DietarySuggestion `json:"dietarySuggestions"`
}

// Parse extracts a PredictionResponse from raw model output. It decodes the
// first top-level JSON object in raw and ignores the prose around it. When
// no object decodes, it returns the fallback response. Parse never fails.
func Parse(raw string) (schema.PredictionResponse, Outcome) {
	span, ok := firstObject(raw)
	if !ok {
		return Fallback(raw), OutcomeFallback
	}

	w, err := decodeWire([]byte(span))
	if err != nil {
		return Fallback(raw), OutcomeFallback
	}

	resp := schema.PredictionResponse{
		PredictedGlucose: UnableToPredict,
		Recommendations:  []string{},
	}
	if w.PredictedGlucose != nil {
		resp.PredictedGlucose = *w.PredictedGlucose
	}
	if w.Explanation != nil {
		resp.Explanation = *w.Explanation
	}
	if w.Recommendations != nil && *w.Recommendations != nil {
		resp.Recommendations = *w.Recommendations
	}
	if w.DietarySuggestions != nil && len(*w.DietarySuggestions) > 0 {
		resp.DietarySuggestions = *w.DietarySuggestions
	}
	return resp, OutcomeParsed
}

// decodeWire decodes a response object. Keys must match exactly;
// encoding/json alone would also accept "PREDICTEDGLUCOSE".
func decodeWire(data []byte) (wireResponse, error) {
	var w wireResponse
	var suggestions *[]json.RawMessage
	err := decodeExact(data, map[string]any{
		"predictedGlucose":   &w.PredictedGlucose,
		"explanation":        &w.Explanation,
		"recommendations":    &w.Recommendations,
		"dietarySuggestions": &suggestions,
	})
	if err != nil || suggestions == nil {
		return w, err
	}

	out := make([]schema.DietarySuggestion, len(*suggestions))
	for i, item := range *suggestions {
		d := &out[i]
		if err := decodeExact(item, map[string]any{
			"meal":         &d.Meal,
			"foodsToFavor": &d.FoodsToFavor,
			"foodsToAvoid": &d.FoodsToAvoid,
			"notes":        &d.Notes,
		}); err != nil {
			return w, err
		}
	}
	w.DietarySuggestions = &out
	return w, nil
}

// decodeExact decodes the object in data, storing each key of fields that
// is present verbatim into its destination. Other keys are ignored.
func decodeExact(data []byte, fields map[string]any) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	for key, dst := range fields {
		v, ok := obj[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
	}
	return nil
}

// Fallback is the degraded response for output that holds no usable object.
func Fallback(raw string) schema.PredictionResponse {
	explanation := raw
	if r := []rune(raw); len(r) > fallbackExplanationLen {
		explanation = string(r[:fallbackExplanationLen])
	}
	return schema.PredictionResponse{
		PredictedGlucose: FallbackGlucose,
		Explanation:      explanation,
		Recommendations:  []string{FallbackRecommendation},
	}
}

// firstObject returns the first balanced {...} span of s. Braces inside JSON
// strings are ignored.
func firstObject(s string) (string, bool) {
	start := -1
	depth := 0
	inString, escaped := false, false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if start < 0 {
			if c == '{' {
				start, depth = i, 1
			}
			continue
		}
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
