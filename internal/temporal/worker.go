package temporal

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/efebarandurmaz/agni/internal/prediction"
)

// DefaultTaskQueue is the task queue predictions run on.
const DefaultTaskQueue = "agni-predictions"

// NewWorker creates a Temporal worker with the prediction workflow and
// activities registered. The caller starts and stops it.
func NewWorker(c client.Client, taskQueue string, acts *Activities) worker.Worker {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflow(PredictionWorkflow)
	w.RegisterActivity(acts)
	return w
}

// StartWorker creates and starts a Temporal worker.
func StartWorker(c client.Client, taskQueue string, acts *Activities) (worker.Worker, error) {
	w := NewWorker(c, taskQueue, acts)
	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("starting worker: %w", err)
	}
	return w, nil
}

// Predict runs PredictionWorkflow on a remote worker and waits for it.
func Predict(ctx context.Context, c client.Client, taskQueue string, input PredictionInput) (*PredictionOutput, error) {
	if err := prediction.ValidateRequest(input.Request); err != nil {
		return nil, err
	}
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "prediction-" + uuid.NewString(),
		TaskQueue: taskQueue,
	}, PredictionWorkflow, input)
	if err != nil {
		return nil, fmt.Errorf("start prediction workflow: %w", err)
	}

	var out PredictionOutput
	if err := run.Get(ctx, &out); err != nil {
		return nil, fmt.Errorf("prediction workflow %s: %w", run.GetID(), err)
	}
	return &out, nil
}
