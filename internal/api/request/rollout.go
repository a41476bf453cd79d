package request

import "github.com/edvin/rollout/internal/model"

// CreateRollout starts a new rollout for a service. The optional
// idempotency key makes retried submissions safe: a matching key returns
// the rollout it originally created instead of starting a second one.
type CreateRollout struct {
	ServiceName     string                `json:"service_name" validate:"required,slug"`
	ArtifactName    string                `json:"artifact_name" validate:"required"`
	ArtifactVersion string                `json:"artifact_version" validate:"required"`
	Strategy        string                `json:"strategy" validate:"required,oneof=bluegreen canary rolling shadow"`
	Params          *model.StrategyParams `json:"params"`
	IdempotencyKey  string                `json:"idempotency_key"`
}

// AbortRollout requests an operator abort of an in-flight rollout.
type AbortRollout struct {
	Reason string `json:"reason"`
}
