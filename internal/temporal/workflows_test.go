package temporal

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.temporal.io/sdk/testsuite"

	"github.com/efebarandurmaz/agni/internal/prediction"
	"github.com/efebarandurmaz/agni/internal/schema"
)

type fakeRetriever struct {
	context string
	err     error
}

func (f fakeRetriever) Retrieve(context.Context, schema.PredictionRequest) (string, error) {
	return f.context, f.err
}

type fakeStats struct {
	stats schema.Stats
	err   error
}

func (f fakeStats) RecentStats(context.Context, string) (schema.Stats, error) {
	return f.stats, f.err
}

// fakeGenerator records the prompt it was given.
type fakeGenerator struct {
	raw    string
	err    error
	prompt *string
}

func (f fakeGenerator) Generate(_ context.Context, p string) (string, error) {
	if f.prompt != nil {
		*f.prompt = p
	}
	return f.raw, f.err
}

const modelJSON = `{"predictedGlucose":"140-160 mg/dL","explanation":"Rice is heavy.","recommendations":["Walk after meals"]}`

func runWorkflow(t *testing.T, acts *Activities, input PredictionInput) (*PredictionOutput, error) {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterActivity(acts)
	env.ExecuteWorkflow(PredictionWorkflow, input)

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		return nil, err
	}
	var out PredictionOutput
	if err := env.GetWorkflowResult(&out); err != nil {
		t.Fatalf("GetWorkflowResult: %v", err)
	}
	return &out, nil
}

func mealInput(items ...string) PredictionInput {
	return PredictionInput{
		UserID:  "user-1",
		Request: schema.PredictionRequest{MealItems: items, Dosha: "Kapha"},
	}
}

func statesEqual(got, want []prediction.State) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestPredictionWorkflow_Parsed(t *testing.T) {
	avg := 118.0
	var sent string
	acts := &Activities{
		Retriever: fakeRetriever{context: "Basmati rice is sweet and cooling."},
		Stats:     fakeStats{stats: schema.Stats{AvgGlucose7d: &avg, MealCount7d: 4, Available: true}},
		Generator: fakeGenerator{raw: modelJSON, prompt: &sent},
	}

	out, err := runWorkflow(t, acts, mealInput("rice", "dal"))
	if err != nil {
		t.Fatalf("workflow failed: %v", err)
	}
	if out.Outcome != prediction.OutcomeParsed || out.Response.PredictedGlucose != "140-160 mg/dL" {
		t.Fatalf("unexpected output: %+v", out)
	}
	if out.RequestID == "" {
		t.Error("expected a request id")
	}
	want := []prediction.State{
		prediction.StateReceived,
		prediction.StateContextRetrieved,
		prediction.StatePromptBuilt,
		prediction.StateGenerationCalled,
		prediction.StateParsed,
		prediction.StateReturned,
	}
	if !statesEqual(out.States, want) {
		t.Errorf("states = %v, want %v", out.States, want)
	}
	for _, s := range []string{"Basmati rice is sweet and cooling.", "118.0 mg/dL", "Primary Dosha: Kapha", "rice, dal"} {
		if !strings.Contains(sent, s) {
			t.Errorf("prompt missing %q", s)
		}
	}
}

func TestPredictionWorkflow_Fallback(t *testing.T) {
	acts := &Activities{
		Retriever: fakeRetriever{context: "ctx"},
		Stats:     fakeStats{},
		Generator: fakeGenerator{raw: "I cannot answer in JSON today."},
	}

	out, err := runWorkflow(t, acts, mealInput("khichdi"))
	if err != nil {
		t.Fatalf("workflow failed: %v", err)
	}
	if out.Outcome != prediction.OutcomeFallback || out.Response.PredictedGlucose != prediction.UnableToPredict {
		t.Fatalf("unexpected output: %+v", out)
	}
	if out.States[len(out.States)-2] != prediction.StateFallback {
		t.Errorf("states = %v", out.States)
	}
}

func TestPredictionWorkflow_StatsErrorDegrades(t *testing.T) {
	var sent string
	acts := &Activities{
		Retriever: fakeRetriever{context: "ctx"},
		Stats:     fakeStats{err: errors.New("connection refused")},
		Generator: fakeGenerator{raw: modelJSON, prompt: &sent},
	}

	out, err := runWorkflow(t, acts, mealInput("rice"))
	if err != nil {
		t.Fatalf("workflow failed: %v", err)
	}
	if out.Outcome != prediction.OutcomeParsed {
		t.Fatalf("unexpected outcome %s", out.Outcome)
	}
	if !strings.Contains(sent, "Recent Average Glucose (7 days): Not available") {
		t.Errorf("prompt should mark stats unavailable:\n%s", sent)
	}
}

func TestPredictionWorkflow_Errors(t *testing.T) {
	tests := []struct {
		name  string
		acts  *Activities
		input PredictionInput
		want  string
	}{
		{
			name:  "no meal items",
			acts:  &Activities{Retriever: fakeRetriever{}, Generator: fakeGenerator{}},
			input: mealInput(" "),
			want:  "meal item",
		},
		{
			name:  "retrieval fails",
			acts:  &Activities{Retriever: fakeRetriever{err: errors.New("index offline")}, Generator: fakeGenerator{}},
			input: mealInput("rice"),
			want:  "index offline",
		},
		{
			name: "generation fails",
			acts: &Activities{
				Retriever: fakeRetriever{context: "ctx"},
				Generator: fakeGenerator{err: errors.New("provider returned 503")},
			},
			input: mealInput("rice"),
			want:  "provider returned 503",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runWorkflow(t, tt.acts, tt.input)
			if err == nil {
				t.Fatal("expected workflow error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should contain %q", err, tt.want)
			}
		})
	}
}
