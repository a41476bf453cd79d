package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// TeardownGroupParams holds the parameters for TeardownGroupWorkflow.
type TeardownGroupParams struct {
	GroupID      string
	DrainSeconds int
}

// TeardownGroupWorkflow drains and terminates a retired or aborted instance
// group. It runs as a child workflow so that a rollout's terminal state does
// not wait on compute cleanup retries.
func TeardownGroupWorkflow(ctx workflow.Context, params TeardownGroupParams) error {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    5,
			InitialInterval:    5 * time.Second,
			MaximumInterval:    1 * time.Minute,
			BackoffCoefficient: 2.0,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	if params.DrainSeconds > 0 {
		if err := workflow.Sleep(ctx, time.Duration(params.DrainSeconds)*time.Second); err != nil {
			return err
		}
	}
	return workflow.ExecuteActivity(ctx, "TerminateInstanceGroup", params.GroupID).Get(ctx, nil)
}

// teardownGroup runs TeardownGroupWorkflow as a child of the rollout.
func teardownGroup(ctx workflow.Context, groupID string, drainSeconds int) error {
	childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
		WorkflowID: "teardown-" + groupID,
	})
	return workflow.ExecuteChildWorkflow(childCtx, TeardownGroupWorkflow, TeardownGroupParams{
		GroupID:      groupID,
		DrainSeconds: drainSeconds,
	}).Get(ctx, nil)
}
