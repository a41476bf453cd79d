package workflow

import (
	"fmt"

	"go.temporal.io/sdk/workflow"

	"github.com/edvin/rollout/internal/activity"
	"github.com/edvin/rollout/internal/model"
)

// executeShiftPlan moves traffic onto the target group according to the
// rollout strategy. A non-empty reason code tells the caller to roll back.
func executeShiftPlan(ctx workflow.Context, run *rolloutRun, fullReplicas int) (reasonCode, message string, stop bool) {
	switch run.rollout.Strategy {
	case model.StrategyBlueGreen:
		return shiftBlueGreen(ctx, run)
	case model.StrategyCanary:
		return shiftCanary(ctx, run)
	case model.StrategyRolling:
		return shiftRolling(ctx, run, fullReplicas)
	case model.StrategyShadow:
		return shiftShadow(ctx, run)
	default:
		return model.ReasonShiftFailed, fmt.Sprintf("unknown strategy %q", run.rollout.Strategy), true
	}
}

// shiftBlueGreen cuts all live traffic over to the target in one step.
func shiftBlueGreen(ctx workflow.Context, run *rolloutRun) (string, string, bool) {
	if reason, msg, ok := interrupted(ctx, run); ok {
		return reason, msg, true
	}
	if err := setWeights(ctx, run, 100); err != nil {
		return model.ReasonShiftFailed, err.Error(), true
	}
	run.shifted = true
	if err := transition(ctx, run, run.state, model.ReasonTrafficShifted, "100% on target group"); err != nil {
		return model.ReasonShiftFailed, err.Error(), true
	}
	return "", "", false
}

// shiftCanary sends the initial canary share to the target, then advances
// through the ramp steps, observing telemetry between steps. The final ramp
// always ends at 100.
func shiftCanary(ctx workflow.Context, run *rolloutRun) (string, string, bool) {
	params := run.rollout.Params

	steps := append([]int{params.InitialCanaryPercent()}, params.RampSteps...)
	if steps[len(steps)-1] != 100 {
		steps = append(steps, 100)
	}

	for i, percent := range steps {
		if reason, msg, ok := interrupted(ctx, run); ok {
			return reason, msg, true
		}
		if err := setWeights(ctx, run, percent); err != nil {
			return model.ReasonShiftFailed, err.Error(), true
		}
		run.shifted = true

		reason := model.ReasonCanaryRampAdvanced
		if i == 0 {
			reason = model.ReasonTrafficShifted
		}
		msg := fmt.Sprintf("%d%% on target group", percent)
		if err := transition(ctx, run, run.state, reason, msg); err != nil {
			return model.ReasonShiftFailed, err.Error(), true
		}
		if percent == 100 {
			break
		}

		// Hold at this weight for one tick and check telemetry before
		// ramping further.
		if err := workflow.Sleep(ctx, params.SoakTick()); err != nil {
			return model.ReasonUnexpectedTermination, err.Error(), true
		}
		if reason, msg, breached := sampleSoakTick(ctx, run); breached {
			return reason, msg, true
		}
	}
	return "", "", false
}

// shiftRolling replaces the source group batch by batch. Traffic weight
// follows the replica ratio; the health gate re-runs after every batch. A
// failed batch either rolls everything back or halts for an operator
// decision, per the configured policy.
func shiftRolling(ctx workflow.Context, run *rolloutRun, fullReplicas int) (string, string, bool) {
	params := run.rollout.Params
	sizes := batchSizes(fullReplicas, params.Batches())
	decisionCh := workflow.GetSignalChannel(ctx, model.BatchDecisionSignalName)

	replaced := 0
	for i, size := range sizes {
		if reason, msg, ok := interrupted(ctx, run); ok {
			return reason, msg, true
		}

		// The first batch was provisioned before shifting began.
		if i > 0 {
			err := workflow.ExecuteActivity(ctx, "ScaleInstanceGroup", activity.ScaleInstanceGroupParams{
				GroupID:  run.target.ID,
				Replicas: replaced + size,
			}).Get(ctx, nil)
			if err != nil {
				return model.ReasonShiftFailed, err.Error(), true
			}
			if reason, msg, stop := waitForReady(ctx, run, replaced+size, params.ProvisionTimeout()); stop {
				return reason, msg, true
			}
		}
		replaced += size

		for {
			var gateResult model.GateResult
			err := workflow.ExecuteActivity(gateActivityCtx(ctx), "RunHealthGate", activity.RunHealthGateParams{
				ServiceName: run.rollout.ServiceName,
				GroupID:     run.target.ID,
				Endpoint:    run.target.Endpoint,
			}).Get(ctx, &gateResult)
			if err != nil {
				return model.ReasonBatchGateFailed, err.Error(), true
			}
			if gateResult.Passed {
				break
			}

			if params.BatchFailurePolicy != model.BatchPolicyHalt {
				return model.ReasonBatchGateFailed, gateResult.FailureSummary(), true
			}
			action, reason, msg, stop := awaitBatchDecision(ctx, run, decisionCh, gateResult.FailureSummary())
			if stop {
				return reason, msg, true
			}
			if action == model.BatchDecisionRollback {
				return model.ReasonBatchGateFailed, gateResult.FailureSummary(), true
			}
			// retry: fall through and re-run the gate on the same batch
		}

		// Shrink the source in step and move the weight with the replicas.
		percent := replaced * 100 / fullReplicas
		if run.source != nil {
			err := workflow.ExecuteActivity(ctx, "ScaleInstanceGroup", activity.ScaleInstanceGroupParams{
				GroupID:  run.source.ID,
				Replicas: run.sourceReplicas - replaced*run.sourceReplicas/fullReplicas,
			}).Get(ctx, nil)
			if err != nil {
				return model.ReasonShiftFailed, err.Error(), true
			}
		}
		if err := setWeights(ctx, run, percent); err != nil {
			return model.ReasonShiftFailed, err.Error(), true
		}
		run.shifted = true

		msg := fmt.Sprintf("batch %d/%d replaced, %d%% on target group", i+1, len(sizes), percent)
		if err := transition(ctx, run, run.state, model.ReasonBatchReplaced, msg); err != nil {
			return model.ReasonShiftFailed, err.Error(), true
		}
	}
	return "", "", false
}

// awaitBatchDecision parks a halted rolling rollout until an operator sends
// a batch decision or an abort, or the rollout deadline passes.
func awaitBatchDecision(ctx workflow.Context, run *rolloutRun, decisionCh workflow.ReceiveChannel, failureMsg string) (action, reasonCode, message string, stop bool) {
	if err := transition(ctx, run, run.state, model.ReasonBatchHalted, failureMsg); err != nil {
		return "", model.ReasonShiftFailed, err.Error(), true
	}

	for {
		var decision model.BatchDecision
		gotDecision := false
		aborted := false
		deadline := false

		selector := workflow.NewSelector(ctx)
		selector.AddReceive(decisionCh, func(c workflow.ReceiveChannel, _ bool) {
			c.Receive(ctx, &decision)
			gotDecision = true
		})
		selector.AddReceive(run.abortCh, func(c workflow.ReceiveChannel, _ bool) {
			var req model.AbortRequest
			c.Receive(ctx, &req)
			run.aborted = true
			run.abortReason = req.Reason
			aborted = true
		})
		selector.AddFuture(workflow.NewTimer(ctx, run.deadline.Sub(workflow.Now(ctx))), func(workflow.Future) {
			deadline = true
		})
		selector.Select(ctx)

		switch {
		case aborted:
			return "", model.ReasonOperatorAborted, run.abortReason, true
		case deadline:
			return "", model.ReasonRolloutDeadlineExceeded, "", true
		case gotDecision:
			switch decision.Action {
			case model.BatchDecisionRetry, model.BatchDecisionRollback:
				return decision.Action, "", "", false
			default:
				workflow.GetLogger(ctx).Warn("ignoring unknown batch decision",
					"rollout_id", run.rollout.ID, "action", decision.Action)
			}
		}
	}
}

// shiftShadow duplicates a share of live traffic to the target without
// moving any live weight. No stage of a shadow rollout ever does.
func shiftShadow(ctx workflow.Context, run *rolloutRun) (string, string, bool) {
	if reason, msg, ok := interrupted(ctx, run); ok {
		return reason, msg, true
	}
	err := workflow.ExecuteActivity(ctx, "SetMirrors", activity.SetMirrorsParams{
		ServiceName: run.rollout.ServiceName,
		Mirrors:     map[string]int{run.target.ID: run.rollout.Params.MirrorShare()},
	}).Get(ctx, nil)
	if err != nil {
		return model.ReasonShiftFailed, err.Error(), true
	}
	msg := fmt.Sprintf("mirroring %d%% of live traffic to target group", run.rollout.Params.MirrorShare())
	if err := transition(ctx, run, run.state, model.ReasonTrafficShifted, msg); err != nil {
		return model.ReasonShiftFailed, err.Error(), true
	}
	return "", "", false
}

// setWeights writes a full weight assignment with targetPercent on the
// target group.
func setWeights(ctx workflow.Context, run *rolloutRun, targetPercent int) error {
	return workflow.ExecuteActivity(ctx, "SetTrafficWeights", activity.SetTrafficWeightsParams{
		ServiceName: run.rollout.ServiceName,
		Weights:     splitWeights(run, targetPercent),
	}).Get(ctx, nil)
}
