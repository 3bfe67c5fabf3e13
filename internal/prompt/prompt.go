// Package prompt assembles the instruction sent to the generation model.
package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/efebarandurmaz/agni/internal/schema"
)

// SystemPrompt is the practitioner persona sent as the system message.
const SystemPrompt = "You are an expert Ayurvedic practitioner specializing in metabolic health, digestive wellness, and blood glucose management. Provide detailed, actionable advice based on Ayurvedic principles."

// NotAvailable marks a statistic the store could not supply.
const NotAvailable = "Not available"

const header = "You are an expert Ayurvedic practitioner specializing in metabolic health, digestive wellness, and blood glucose management."

const taskTemplate = `TASK:
Analyze this meal using Ayurvedic principles and provide:

1. BLOOD GLUCOSE PREDICTION: Estimate the likely blood glucose response (e.g., "Moderate rise to 120-140 mg/dL", "Stable around 90-110 mg/dL", "Significant spike above 160 mg/dL"). Consider:
   - Glycemic nature of foods consumed
   - Food combinations and order of consumption
   - Impact of exercise on glucose metabolism
   - Dosha-specific metabolic tendencies

2. AYURVEDIC EXPLANATION: Explain using concepts like:
   - Agni (digestive fire) state
   - Food combinations (compatible/incompatible)
   - Impact on doshas
   - Effects on dhatus (tissues), especially rasa (plasma) and rakta (blood)
   - Influence on liver (yakrit) and pancreas function

3. PERSONALIZED RECOMMENDATIONS: Provide 4-6 specific, actionable recommendations for:
   - Optimizing digestive health (Agni)
   - Supporting liver and pancreas function
   - Managing blood glucose naturally
   - Balancing the %s dosha
   - Improving metabolism
   - Include specific herbs, spices, or practices

4. MEAL-SPECIFIC DIETARY SUGGESTIONS: For each meal (Breakfast, Lunch, Dinner, Snacks), provide:
   - Foods to favor (3-4 specific items with quantities)
   - Foods to avoid (2-3 specific items)
   - Preparation and timing notes

Focus on addressing:
- High cholesterol management
- Blood glucose regulation
- Slow metabolism improvement
- Liver health (yakrit)
- Pancreas function
- Digestive system optimization

`

// OutputSchema is the JSON shape the model is asked to return.
const OutputSchema = `Format your response as JSON with this structure:
{
  "predictedGlucose": "string describing glucose prediction",
  "explanation": "detailed Ayurvedic explanation",
  "recommendations": ["recommendation 1", "recommendation 2", ...],
  "dietarySuggestions": [
    {
      "meal": "Breakfast",
      "foodsToFavor": "specific foods with quantities",
      "foodsToAvoid": "specific foods",
      "notes": "preparation and timing guidance"
    },
    ...
  ]
}

Be specific with food names, quantities, and preparation methods. Ground all recommendations in Ayurvedic principles.`

// Build assembles the user prompt. It is pure: equal inputs give equal output.
func Build(retrieved string, req schema.PredictionRequest, stats schema.Stats) string {
	dosha := req.EffectiveDosha()

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\nAYURVEDIC KNOWLEDGE BASE:\n")
	b.WriteString(retrieved)

	b.WriteString("\n\nUSER INFORMATION:\n")
	fmt.Fprintf(&b, "- Primary Dosha: %s\n", dosha)
	fmt.Fprintf(&b, "- Recent Average Glucose (7 days): %s\n", AverageGlucose(stats))
	fmt.Fprintf(&b, "- Meal Logs (7 days): %s\n", MealCount(stats))

	b.WriteString("\nCURRENT MEAL LOG:\n")
	fmt.Fprintf(&b, "- Foods consumed: %s\n", strings.Join(req.MealItems, ", "))
	fmt.Fprintf(&b, "- Exercise: %s\n", Exercise(req.Exercise))
	fmt.Fprintf(&b, "- Other factors: %s\n\n", Lifestyle(req.LifestyleFactors))

	fmt.Fprintf(&b, taskTemplate, dosha)
	b.WriteString(OutputSchema)
	return b.String()
}

// AverageGlucose formats the 7-day average, or NotAvailable.
func AverageGlucose(s schema.Stats) string {
	if !s.Available || s.AvgGlucose7d == nil {
		return NotAvailable
	}
	return fmt.Sprintf("%.1f mg/dL", *s.AvgGlucose7d)
}

// MealCount formats the 7-day meal log count, or NotAvailable.
func MealCount(s schema.Stats) string {
	if !s.Available {
		return NotAvailable
	}
	return strconv.Itoa(s.MealCount7d)
}

// Exercise formats the logged exercise.
func Exercise(e *schema.Exercise) string {
	if e == nil || strings.TrimSpace(e.Type) == "" {
		return "No exercise logged"
	}
	return fmt.Sprintf("%s for %s", e.Type, e.Duration)
}

// Lifestyle returns the lifestyle factors, or "None".
func Lifestyle(s string) string {
	if strings.TrimSpace(s) == "" {
		return "None"
	}
	return s
}
