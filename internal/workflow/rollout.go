package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/edvin/rollout/internal/activity"
	"github.com/edvin/rollout/internal/model"
)

const provisionPollInterval = 10 * time.Second

// RolloutWorkflow drives one rollout from acceptance to a terminal state:
// provision the target group, gate it, shift traffic per the strategy, soak,
// then promote — or roll back to the source group on any failure or operator
// abort. The workflow ID is derived from the service name, so Temporal
// itself guarantees at most one live rollout per service.
func RolloutWorkflow(ctx workflow.Context, rolloutID string) error {
	ctx = workflow.WithActivityOptions(ctx, defaultActivityOptions())

	var r model.Rollout
	if err := workflow.ExecuteActivity(ctx, "GetRollout", rolloutID).Get(ctx, &r); err != nil {
		return err
	}

	run := &rolloutRun{
		rollout:  &r,
		state:    r.State,
		deadline: workflow.Now(ctx).Add(r.Params.RolloutTimeout()),
		abortCh:  workflow.GetSignalChannel(ctx, model.AbortSignalName),
	}

	// ---------- Provisioning ----------

	if err := transition(ctx, run, model.RolloutStateProvisioning, model.ReasonAccepted, ""); err != nil {
		return err
	}

	var artifact model.ArtifactRef
	err := workflow.ExecuteActivity(ctx, "ResolveArtifact", activity.ResolveArtifactParams{
		Name:    r.ArtifactName,
		Version: r.ArtifactVersion,
	}).Get(ctx, &artifact)
	if err != nil {
		return fail(ctx, run, model.ReasonResolveFailed, err.Error())
	}

	if err := workflow.ExecuteActivity(ctx, "GetServingGroup", r.ServiceName).Get(ctx, &run.source); err != nil {
		return fail(ctx, run, model.ReasonProvisionFailed, err.Error())
	}
	if run.source != nil {
		run.sourceReplicas = run.source.DesiredReplicas
	}

	replicas := artifact.Resources.Replicas
	if replicas <= 0 && run.source != nil {
		replicas = run.source.DesiredReplicas
	}
	if replicas <= 0 {
		replicas = 1
	}

	// A rolling rollout grows the target batch by batch; everything else
	// provisions at full size up front.
	initialReplicas := replicas
	if r.Strategy == model.StrategyRolling {
		initialReplicas = batchSizes(replicas, r.Params.Batches())[0]
	}

	err = workflow.ExecuteActivity(ctx, "CreateInstanceGroup", activity.CreateInstanceGroupParams{
		ServiceName: r.ServiceName,
		Artifact:    artifact,
		Replicas:    initialReplicas,
	}).Get(ctx, &run.target)
	if err != nil {
		return fail(ctx, run, model.ReasonProvisionFailed, err.Error())
	}
	run.targetState = model.GroupStateProvisioning

	groups := activity.SetRolloutGroupsParams{RolloutID: r.ID, TargetGroupID: &run.target.ID}
	if run.source != nil {
		groups.SourceGroupID = &run.source.ID
	}
	if err := workflow.ExecuteActivity(ctx, "SetRolloutGroups", groups).Get(ctx, nil); err != nil {
		return fail(ctx, run, model.ReasonProvisionFailed, err.Error())
	}

	if reason, msg, stop := waitForReady(ctx, run, initialReplicas, r.Params.ProvisionTimeout()); stop {
		return rollback(ctx, run, reason, msg)
	}

	if err := setTargetLifecycle(ctx, run, model.GroupStateReady); err != nil {
		return fail(ctx, run, model.ReasonProvisionFailed, err.Error())
	}

	// ---------- Validating ----------

	if err := transition(ctx, run, model.RolloutStateValidating, model.ReasonProvisioned, ""); err != nil {
		return err
	}
	if reason, msg, stop := interrupted(ctx, run); stop {
		return rollback(ctx, run, reason, msg)
	}

	var gateResult model.GateResult
	err = workflow.ExecuteActivity(gateActivityCtx(ctx), "RunHealthGate", activity.RunHealthGateParams{
		ServiceName: r.ServiceName,
		GroupID:     run.target.ID,
		Endpoint:    run.target.Endpoint,
	}).Get(ctx, &gateResult)
	if err != nil {
		return rollback(ctx, run, model.ReasonHealthGateFailed, err.Error())
	}
	if !gateResult.Passed {
		return rollback(ctx, run, model.ReasonHealthGateFailed, gateResult.FailureSummary())
	}

	// ---------- Shifting ----------

	if err := transition(ctx, run, model.RolloutStateShifting, model.ReasonHealthGatePassed, ""); err != nil {
		return err
	}
	if err := setTargetLifecycle(ctx, run, model.GroupStateServing); err != nil {
		return fail(ctx, run, model.ReasonShiftFailed, err.Error())
	}

	if reason, msg, stop := executeShiftPlan(ctx, run, replicas); stop {
		return rollback(ctx, run, reason, msg)
	}

	// ---------- Soaking ----------

	if err := transition(ctx, run, model.RolloutStateSoaking, model.ReasonSoakStarted, ""); err != nil {
		return err
	}
	if reason, msg, stop := soak(ctx, run); stop {
		return rollback(ctx, run, reason, msg)
	}

	// ---------- Promotion ----------

	return promote(ctx, run)
}

// waitForReady polls the scheduler until the target group reports the wanted
// number of ready replicas, recording progress in the fleet table.
func waitForReady(ctx workflow.Context, run *rolloutRun, want int, timeout time.Duration) (reasonCode, message string, stop bool) {
	logger := workflow.GetLogger(ctx)
	provisionDeadline := workflow.Now(ctx).Add(timeout)

	for {
		if reason, msg, ok := interrupted(ctx, run); ok {
			return reason, msg, true
		}
		if workflow.Now(ctx).After(provisionDeadline) {
			return model.ReasonProvisioningTimeout,
				fmt.Sprintf("instance group %s not ready after %s", run.target.ID, timeout), true
		}

		var status model.ReplicaStatus
		err := workflow.ExecuteActivity(ctx, "GetReplicaStatus", run.target.ID).Get(ctx, &status)
		if err != nil {
			return model.ReasonProvisionFailed, err.Error(), true
		}
		// The scheduler killed the group out from under us. Treat it like
		// a failed gate and give the source its traffic back.
		if status.Terminated {
			return model.ReasonUnexpectedTermination,
				fmt.Sprintf("instance group %s terminated by the scheduler", run.target.ID), true
		}

		err = workflow.ExecuteActivity(ctx, "UpdateGroupReadiness", activity.UpdateGroupReadinessParams{
			GroupID: run.target.ID,
			Desired: status.Desired,
			Ready:   status.Ready,
		}).Get(ctx, nil)
		if err != nil {
			logger.Warn("failed to record replica readiness", "group_id", run.target.ID, "error", err)
		}

		if status.Ready >= want {
			return "", "", false
		}
		if err := workflow.Sleep(ctx, provisionPollInterval); err != nil {
			return model.ReasonUnexpectedTermination, err.Error(), true
		}
	}
}

// soak watches the target group for the configured soak window, sampling
// telemetry every tick. A threshold breach, operator abort, or rollout
// deadline stops the soak immediately rather than at the window's end.
func soak(ctx workflow.Context, run *rolloutRun) (reasonCode, message string, stop bool) {
	params := run.rollout.Params
	if params.SoakSeconds <= 0 {
		return "", "", false
	}

	soakDeadline := workflow.Now(ctx).Add(params.SoakDuration())
	tick := params.SoakTick()

	for workflow.Now(ctx).Before(soakDeadline) {
		fired := false
		aborted := false

		selector := workflow.NewSelector(ctx)
		selector.AddReceive(run.abortCh, func(c workflow.ReceiveChannel, _ bool) {
			var req model.AbortRequest
			c.Receive(ctx, &req)
			run.aborted = true
			run.abortReason = req.Reason
			aborted = true
		})
		selector.AddFuture(workflow.NewTimer(ctx, tick), func(workflow.Future) {
			fired = true
		})
		selector.Select(ctx)

		if aborted {
			return model.ReasonOperatorAborted, run.abortReason, true
		}
		if !fired {
			continue
		}
		if workflow.Now(ctx).After(run.deadline) {
			return model.ReasonRolloutDeadlineExceeded, "", true
		}

		if reason, msg, breached := sampleSoakTick(ctx, run); breached {
			return reason, msg, true
		}
	}
	return "", "", false
}

// sampleSoakTick runs one telemetry sample. Shadow rollouts compare the
// mirror group against live; everything else checks absolute thresholds.
func sampleSoakTick(ctx workflow.Context, run *rolloutRun) (reasonCode, message string, breached bool) {
	logger := workflow.GetLogger(ctx)
	params := run.rollout.Params

	var verdict activity.SoakVerdict
	var err error
	if run.rollout.Strategy == model.StrategyShadow && run.source != nil {
		metricNames := make([]string, 0, len(params.Thresholds))
		for _, t := range params.Thresholds {
			metricNames = append(metricNames, t.Metric)
		}
		err = workflow.ExecuteActivity(ctx, "CompareDivergence", activity.CompareDivergenceParams{
			ServiceName:      run.rollout.ServiceName,
			LiveGroupID:      run.source.ID,
			ShadowGroupID:    run.target.ID,
			Metrics:          metricNames,
			AllowedDeviation: 0.2,
			WindowSeconds:    params.SoakTickSeconds,
		}).Get(ctx, &verdict)
		if err == nil && len(verdict.Breaches) > 0 {
			return model.ReasonDivergenceDetected, fmt.Sprintf("diverging metrics: %v", verdict.Breaches), true
		}
	} else {
		err = workflow.ExecuteActivity(ctx, "QuerySoakMetrics", activity.QuerySoakMetricsParams{
			ServiceName:   run.rollout.ServiceName,
			GroupID:       run.target.ID,
			Thresholds:    params.Thresholds,
			WindowSeconds: params.SoakTickSeconds,
		}).Get(ctx, &verdict)
		if err == nil && len(verdict.Breaches) > 0 {
			return model.ReasonSoakThresholdBreached, fmt.Sprintf("breached thresholds: %v", verdict.Breaches), true
		}
	}
	if err != nil {
		// Telemetry being unreachable is not evidence the target is bad.
		// The activity already retried; log and keep soaking.
		logger.Warn("soak telemetry sample failed", "rollout_id", run.rollout.ID, "error", err)
	}
	return "", "", false
}

// promote finishes a successful rollout: the target takes all traffic, the
// source drains and is torn down. Shadow rollouts are the exception: they
// never carried live traffic, so promotion stops the mirror and marks the
// target validated. Moving real traffic onto a validated shadow group is an
// explicit follow-up rollout, not a side effect of this one.
func promote(ctx workflow.Context, run *rolloutRun) error {
	r := run.rollout

	if r.Strategy == model.StrategyShadow {
		err := workflow.ExecuteActivity(ctx, "SetMirrors", activity.SetMirrorsParams{
			ServiceName: r.ServiceName,
			Mirrors:     map[string]int{},
		}).Get(ctx, nil)
		if err != nil {
			return rollback(ctx, run, model.ReasonShiftFailed, err.Error())
		}
		if err := setTargetLifecycle(ctx, run, model.GroupStatePromoted); err != nil {
			return fail(ctx, run, model.ReasonUnexpectedTermination, err.Error())
		}
		// The source keeps serving untouched.
		return transition(ctx, run, model.RolloutStatePromoted, model.ReasonPromoted, "")
	}

	if err := setTargetLifecycle(ctx, run, model.GroupStatePromoted); err != nil {
		return fail(ctx, run, model.ReasonUnexpectedTermination, err.Error())
	}

	if run.source != nil {
		err := workflow.ExecuteActivity(ctx, "UpdateGroupLifecycle", activity.UpdateGroupLifecycleParams{
			GroupID: run.source.ID,
			From:    model.GroupStateServing,
			To:      model.GroupStateRetiring,
		}).Get(ctx, nil)
		if err != nil {
			workflow.GetLogger(ctx).Warn("failed to mark source group retiring",
				"group_id", run.source.ID, "error", err)
		}
		if err := teardownGroup(ctx, run.source.ID, r.Params.DrainGraceSeconds); err != nil {
			workflow.GetLogger(ctx).Warn("source group teardown failed",
				"group_id", run.source.ID, "error", err)
		}
	}

	return transition(ctx, run, model.RolloutStatePromoted, model.ReasonPromoted, "")
}

func setTargetLifecycle(ctx workflow.Context, run *rolloutRun, to string) error {
	err := workflow.ExecuteActivity(ctx, "UpdateGroupLifecycle", activity.UpdateGroupLifecycleParams{
		GroupID: run.target.ID,
		From:    run.targetState,
		To:      to,
	}).Get(ctx, nil)
	if err != nil {
		return err
	}
	run.targetState = to
	return nil
}
