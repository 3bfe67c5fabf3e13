package temporal

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/efebarandurmaz/agni/internal/prediction"
	"github.com/efebarandurmaz/agni/internal/prompt"
	"github.com/efebarandurmaz/agni/internal/schema"
)

// StateQuery is the query name that returns the current prediction state.
const StateQuery = "state"

// PredictionInput holds the workflow parameters.
type PredictionInput struct {
	UserID  string
	Request schema.PredictionRequest
}

// PredictionOutput holds the workflow result.
type PredictionOutput struct {
	prediction.Result

	// States lists every state the prediction entered, in order.
	States []prediction.State
}

// PredictionWorkflow runs one prediction. Retrieval and the stats lookup run
// as parallel activities; prompt assembly and parsing are deterministic and
// run in the workflow itself. Activities are never retried.
func PredictionWorkflow(ctx workflow.Context, input PredictionInput) (*PredictionOutput, error) {
	logger := workflow.GetLogger(ctx)

	out := &PredictionOutput{}
	current := prediction.StateReceived
	enter := func(s prediction.State) {
		current = s
		out.States = append(out.States, s)
	}
	if err := workflow.SetQueryHandler(ctx, StateQuery, func() (prediction.State, error) {
		return current, nil
	}); err != nil {
		return nil, fmt.Errorf("register state query: %w", err)
	}

	if err := prediction.ValidateRequest(input.Request); err != nil {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidRequest", nil)
	}

	var requestID string
	if err := workflow.SideEffect(ctx, func(workflow.Context) any {
		return uuid.NewString()
	}).Get(&requestID); err != nil {
		return nil, fmt.Errorf("request id: %w", err)
	}
	out.RequestID = requestID
	enter(prediction.StateReceived)

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var a *Activities
	retrieveF := workflow.ExecuteActivity(ctx, a.RetrieveContext, input.Request)
	statsF := workflow.ExecuteActivity(ctx, a.RecentStats, input.UserID)

	var retrieved string
	if err := retrieveF.Get(ctx, &retrieved); err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	var userStats schema.Stats
	if err := statsF.Get(ctx, &userStats); err != nil {
		logger.Warn("stats unavailable", "user", input.UserID, "error", err)
		userStats = schema.Stats{}
	}
	enter(prediction.StateContextRetrieved)

	userPrompt := prompt.Build(retrieved, input.Request, userStats)
	enter(prediction.StatePromptBuilt)

	enter(prediction.StateGenerationCalled)
	var raw string
	if err := workflow.ExecuteActivity(ctx, a.Generate, userPrompt).Get(ctx, &raw); err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	resp, outcome := prediction.Parse(raw)
	if outcome == prediction.OutcomeFallback {
		enter(prediction.StateFallback)
	} else {
		enter(prediction.StateParsed)
	}
	out.Response = resp
	out.Outcome = outcome
	enter(prediction.StateReturned)

	logger.Info("prediction complete",
		"request_id", requestID,
		"outcome", string(outcome),
		"meal_items", strings.Join(input.Request.MealItems, ","))
	return out, nil
}
