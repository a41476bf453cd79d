package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/edvin/rollout/internal/activity"
	"github.com/edvin/rollout/internal/model"
)

// defaultActivityOptions covers the short database and control-plane calls
// every rollout makes. Slow paths (health gates, teardown) override these.
func defaultActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    3,
			InitialInterval:    1 * time.Second,
			MaximumInterval:    10 * time.Second,
			BackoffCoefficient: 2.0,
		},
	}
}

// gateActivityCtx returns a context sized for health gate evaluation, which
// can run a whole check suite with per-check timeouts.
func gateActivityCtx(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})
}

// rolloutRun is the in-flight state of one rollout workflow execution.
// Everything here is derived deterministically from activity results, so it
// rebuilds identically on replay.
type rolloutRun struct {
	rollout *model.Rollout
	state   string

	source      *model.InstanceGroup
	target      *model.InstanceGroup
	targetState string
	// shifted is set once any live traffic weight has moved to the target.
	shifted bool
	// sourceReplicas remembers the source group size before a rolling
	// rollout scales it down.
	sourceReplicas int

	deadline    time.Time
	abortCh     workflow.ReceiveChannel
	aborted     bool
	abortReason string
}

// transition records a rollout state change and fires the event webhook.
func transition(ctx workflow.Context, run *rolloutRun, to, reasonCode, message string) error {
	err := workflow.ExecuteActivity(ctx, "RecordTransition", activity.RecordTransitionParams{
		RolloutID:  run.rollout.ID,
		FromState:  run.state,
		ToState:    to,
		ReasonCode: reasonCode,
		Message:    message,
	}).Get(ctx, nil)
	if err != nil {
		return err
	}

	notifyEvent(ctx, model.Event{
		RolloutID:   run.rollout.ID,
		ServiceName: run.rollout.ServiceName,
		FromState:   run.state,
		ToState:     to,
		ReasonCode:  reasonCode,
		Message:     message,
	})
	run.state = to
	return nil
}

// notifyEvent delivers a lifecycle event to the webhook. Best-effort: a
// delivery failure is logged and never blocks the rollout.
func notifyEvent(ctx workflow.Context, event model.Event) {
	notifyCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    3,
			InitialInterval:    2 * time.Second,
			MaximumInterval:    30 * time.Second,
			BackoffCoefficient: 2.0,
		},
	})
	err := workflow.ExecuteActivity(notifyCtx, "NotifyEvent", event).Get(ctx, nil)
	if err != nil {
		workflow.GetLogger(ctx).Warn("event webhook delivery failed",
			"rollout_id", event.RolloutID, "to_state", event.ToState, "error", err)
	}
}

// interrupted checks for an operator abort or an expired rollout deadline.
// Abort signals are drained without blocking, so pending aborts are seen at
// the next checkpoint even outside the soak selector.
func interrupted(ctx workflow.Context, run *rolloutRun) (reasonCode, message string, ok bool) {
	var req model.AbortRequest
	for run.abortCh.ReceiveAsync(&req) {
		run.aborted = true
		run.abortReason = req.Reason
	}
	if run.aborted {
		return model.ReasonOperatorAborted, run.abortReason, true
	}
	if workflow.Now(ctx).After(run.deadline) {
		return model.ReasonRolloutDeadlineExceeded, "", true
	}
	return "", "", false
}

// splitWeights builds a full weight assignment moving targetPercent of live
// traffic to the target group, remainder to the source when one exists.
func splitWeights(run *rolloutRun, targetPercent int) map[string]int {
	weights := map[string]int{run.target.ID: targetPercent}
	if run.source != nil {
		weights[run.source.ID] = 100 - targetPercent
	}
	return weights
}

// batchSizes splits total replicas into count batches, front-loading the
// remainder so every batch is non-empty.
func batchSizes(total, count int) []int {
	if count > total {
		count = total
	}
	if count < 1 {
		count = 1
	}
	sizes := make([]int, count)
	base := total / count
	rem := total % count
	for i := range sizes {
		sizes[i] = base
		if i < rem {
			sizes[i]++
		}
	}
	return sizes
}
