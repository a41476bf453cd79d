package workflow

import (
	"fmt"

	"go.temporal.io/sdk/workflow"

	"github.com/edvin/rollout/internal/activity"
	"github.com/edvin/rollout/internal/model"
)

// rollback unwinds a failed or aborted rollout: restore all traffic to the
// source group, abort and tear down the target, and finish in rolled_back.
// When there is no source to fall back to, or the source itself no longer
// passes a lightweight health check, the rollout escalates to failed instead
// of guessing at an alternative.
func rollback(ctx workflow.Context, run *rolloutRun, reasonCode, message string) error {
	logger := workflow.GetLogger(ctx)

	if err := transition(ctx, run, model.RolloutStateRollingBack, reasonCode, message); err != nil {
		return err
	}

	if run.source == nil {
		abortTargetGroup(ctx, run)
		return fail(ctx, run, model.ReasonNoFallbackAvailable,
			"no previously promoted group to restore")
	}

	if run.shifted {
		// Do not trust the source blindly: re-check it before handing all
		// traffic back.
		var gateResult model.GateResult
		err := workflow.ExecuteActivity(gateActivityCtx(ctx), "RunHealthGate", activity.RunHealthGateParams{
			ServiceName: run.rollout.ServiceName,
			GroupID:     run.source.ID,
			Endpoint:    run.source.Endpoint,
			Lightweight: true,
		}).Get(ctx, &gateResult)
		if err != nil {
			abortTargetGroup(ctx, run)
			return fail(ctx, run, model.ReasonSourceUnhealthy, err.Error())
		}
		if !gateResult.Passed {
			abortTargetGroup(ctx, run)
			return fail(ctx, run, model.ReasonSourceUnhealthy, gateResult.FailureSummary())
		}

		// Rolling rollouts shrank the source; grow it back before the
		// weight returns.
		if run.rollout.Strategy == model.StrategyRolling && run.sourceReplicas > 0 {
			err := workflow.ExecuteActivity(ctx, "ScaleInstanceGroup", activity.ScaleInstanceGroupParams{
				GroupID:  run.source.ID,
				Replicas: run.sourceReplicas,
			}).Get(ctx, nil)
			if err != nil {
				abortTargetGroup(ctx, run)
				return fail(ctx, run, model.ReasonSourceUnhealthy,
					fmt.Sprintf("restore source replicas: %v", err))
			}
		}

		err = workflow.ExecuteActivity(ctx, "SetTrafficWeights", activity.SetTrafficWeightsParams{
			ServiceName: run.rollout.ServiceName,
			Weights:     map[string]int{run.source.ID: 100},
		}).Get(ctx, nil)
		if err != nil {
			abortTargetGroup(ctx, run)
			return fail(ctx, run, model.ReasonSourceUnhealthy,
				fmt.Sprintf("restore source weight: %v", err))
		}
	}

	if run.rollout.Strategy == model.StrategyShadow {
		err := workflow.ExecuteActivity(ctx, "SetMirrors", activity.SetMirrorsParams{
			ServiceName: run.rollout.ServiceName,
			Mirrors:     map[string]int{},
		}).Get(ctx, nil)
		if err != nil {
			logger.Warn("failed to clear mirrors during rollback",
				"rollout_id", run.rollout.ID, "error", err)
		}
	}

	abortTargetGroup(ctx, run)

	return transition(ctx, run, model.RolloutStateRolledBack, model.ReasonRolledBack, "")
}

// abortTargetGroup marks the target group aborted and tears it down.
// Aborted groups are never reused. Best-effort: teardown problems are
// logged, not allowed to mask the rollback outcome.
func abortTargetGroup(ctx workflow.Context, run *rolloutRun) {
	logger := workflow.GetLogger(ctx)
	if run.target == nil {
		return
	}

	err := workflow.ExecuteActivity(ctx, "UpdateGroupLifecycle", activity.UpdateGroupLifecycleParams{
		GroupID: run.target.ID,
		From:    run.targetState,
		To:      model.GroupStateAborted,
	}).Get(ctx, nil)
	if err != nil {
		logger.Warn("failed to mark target group aborted",
			"group_id", run.target.ID, "error", err)
	} else {
		run.targetState = model.GroupStateAborted
	}

	// Only drain if the group ever carried live traffic.
	drain := 0
	if run.shifted {
		drain = run.rollout.Params.DrainGraceSeconds
	}
	if err := teardownGroup(ctx, run.target.ID, drain); err != nil {
		logger.Warn("target group teardown failed",
			"group_id", run.target.ID, "error", err)
	}
}

// fail ends the rollout in the failed state. The returned error fails the
// workflow execution itself so the failure is visible in Temporal too.
func fail(ctx workflow.Context, run *rolloutRun, reasonCode, message string) error {
	if err := transition(ctx, run, model.RolloutStateFailed, reasonCode, message); err != nil {
		return err
	}
	return fmt.Errorf("rollout %s failed: %s: %s", run.rollout.ID, reasonCode, message)
}
