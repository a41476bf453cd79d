package model

// Rollout states. A rollout moves strictly forward through the happy path
// and exits through rolling_back/rolled_back or failed.
const (
	RolloutStatePending      = "pending"
	RolloutStateProvisioning = "provisioning"
	RolloutStateValidating   = "validating"
	RolloutStateShifting     = "shifting"
	RolloutStateSoaking      = "soaking"
	RolloutStatePromoted     = "promoted"
	RolloutStateRollingBack  = "rolling_back"
	RolloutStateRolledBack   = "rolled_back"
	RolloutStateFailed       = "failed"
)

// RolloutStateTerminal reports whether a rollout state is terminal.
func RolloutStateTerminal(state string) bool {
	switch state {
	case RolloutStatePromoted, RolloutStateRolledBack, RolloutStateFailed:
		return true
	}
	return false
}

// Instance group lifecycle states. The happy path is forward-only
// (provisioning → ready → serving → promoted); retiring, aborted, and
// terminated are exit states reachable from any non-exit state.
const (
	GroupStateProvisioning = "provisioning"
	GroupStateReady        = "ready"
	GroupStateServing      = "serving"
	GroupStatePromoted     = "promoted"
	GroupStateRetiring     = "retiring"
	GroupStateAborted      = "aborted"
	GroupStateTerminated   = "terminated"
)

var groupStateRank = map[string]int{
	GroupStateProvisioning: 0,
	GroupStateReady:        1,
	GroupStateServing:      2,
	GroupStatePromoted:     3,
}

// GroupStateTransitionAllowed reports whether an instance group may move
// from one lifecycle state to another. Happy-path states never regress;
// exit states are reachable from any happy-path state, and terminated is
// additionally reachable from retiring and aborted.
func GroupStateTransitionAllowed(from, to string) bool {
	if from == to {
		return true
	}
	fromRank, fromForward := groupStateRank[from]
	toRank, toForward := groupStateRank[to]
	if fromForward && toForward {
		return toRank > fromRank
	}
	if fromForward {
		return to == GroupStateRetiring || to == GroupStateAborted || to == GroupStateTerminated
	}
	// retiring/aborted groups may still be torn down.
	return to == GroupStateTerminated && (from == GroupStateRetiring || from == GroupStateAborted)
}

// Reason codes attached to rollout history entries. Machine-readable; the
// free-form message on the entry carries the human diagnostic.
const (
	ReasonAccepted                = "Accepted"
	ReasonProvisioned             = "Provisioned"
	ReasonHealthGatePassed        = "HealthGatePassed"
	ReasonTrafficShifted          = "TrafficShifted"
	ReasonCanaryRampAdvanced      = "CanaryRampAdvanced"
	ReasonBatchReplaced           = "BatchReplaced"
	ReasonSoakStarted             = "SoakStarted"
	ReasonPromoted                = "Promoted"
	ReasonProvisioningTimeout     = "ProvisioningTimeout"
	ReasonProvisionFailed         = "ProvisionFailed"
	ReasonBatchHalted             = "BatchHalted"
	ReasonDivergenceDetected      = "DivergenceDetected"
	ReasonHealthGateFailed        = "HealthGateFailed"
	ReasonBatchGateFailed         = "BatchGateFailed"
	ReasonSoakThresholdBreached   = "SoakThresholdBreached"
	ReasonOperatorAborted         = "OperatorAborted"
	ReasonUnexpectedTermination   = "UnexpectedTermination"
	ReasonRolloutDeadlineExceeded = "RolloutDeadlineExceeded"
	ReasonResolveFailed           = "ResolveFailed"
	ReasonShiftFailed             = "ShiftFailed"
	ReasonRolledBack              = "RolledBack"
	ReasonNoFallbackAvailable     = "NoFallbackAvailable"
	ReasonSourceUnhealthy         = "SourceUnhealthy"
)
