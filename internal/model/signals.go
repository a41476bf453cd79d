package model

// TaskQueue is the Temporal task queue shared by the API and the worker.
const TaskQueue = "rollout-tasks"

// AbortSignalName is the signal an operator abort sends to a running
// rollout workflow.
const AbortSignalName = "abort"

// AbortRequest is the abort signal payload.
type AbortRequest struct {
	Reason string `json:"reason,omitempty"`
}

// BatchDecisionSignalName is the signal an operator uses to resume a rolling
// rollout halted on a batch gate failure.
const BatchDecisionSignalName = "batch-decision"

// Batch decision actions.
const (
	BatchDecisionRetry    = "retry"
	BatchDecisionRollback = "rollback"
)

// BatchDecision is the batch-decision signal payload.
type BatchDecision struct {
	Action string `json:"action"`
}

// RolloutWorkflowID returns the workflow ID used for a service's rollout
// workflow. Temporal rejects a second running workflow with the same ID,
// which is what enforces the single-active-rollout-per-service rule.
func RolloutWorkflowID(serviceName string) string {
	return "rollout-" + serviceName
}

// Event is a fire-and-forget state transition notification.
type Event struct {
	RolloutID   string `json:"rollout_id"`
	ServiceName string `json:"service_name"`
	FromState   string `json:"from_state"`
	ToState     string `json:"to_state"`
	ReasonCode  string `json:"reason_code"`
	Message     string `json:"message,omitempty"`
}
