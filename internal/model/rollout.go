package model

import "time"

// Rollout strategies.
const (
	StrategyBlueGreen = "bluegreen"
	StrategyCanary    = "canary"
	StrategyRolling   = "rolling"
	StrategyShadow    = "shadow"
)

// ValidStrategy reports whether s names a known rollout strategy.
func ValidStrategy(s string) bool {
	switch s {
	case StrategyBlueGreen, StrategyCanary, StrategyRolling, StrategyShadow:
		return true
	}
	return false
}

// Rolling batch failure policies. The default is rollback: a failed batch
// rolls back every replica replaced by the rollout so far.
const (
	BatchPolicyRollback = "rollback"
	BatchPolicyHalt     = "halt"
)

// MetricThreshold is a bound on one telemetry metric, checked on every
// soak tick. A nil bound is not enforced.
type MetricThreshold struct {
	Metric string   `json:"metric"`
	Max    *float64 `json:"max,omitempty"`
	Min    *float64 `json:"min,omitempty"`
}

// StrategyParams tunes a rollout strategy. Durations are whole seconds so
// the struct round-trips cleanly through the API and workflow payloads.
type StrategyParams struct {
	// CanaryPercent is the initial traffic weight for canary rollouts.
	CanaryPercent int `json:"canary_percent,omitempty"`
	// RampSteps are the canary promotion weights after the initial soak,
	// e.g. [50, 100]. A final step of 100 is implied if absent.
	RampSteps []int `json:"ramp_steps,omitempty"`
	// BatchCount is the number of replica batches for rolling rollouts.
	BatchCount int `json:"batch_count,omitempty"`
	// BatchFailurePolicy controls what a failed rolling batch does.
	BatchFailurePolicy string `json:"batch_failure_policy,omitempty"`
	// MirrorPercent is the share of live traffic duplicated to a shadow
	// group. Defaults to 100.
	MirrorPercent int `json:"mirror_percent,omitempty"`

	SoakSeconds       int               `json:"soak_seconds,omitempty"`
	SoakTickSeconds   int               `json:"soak_tick_seconds,omitempty"`
	ProvisionTimeoutS int               `json:"provision_timeout_seconds,omitempty"`
	RolloutTimeoutS   int               `json:"rollout_timeout_seconds,omitempty"`
	DrainGraceSeconds int               `json:"drain_grace_seconds,omitempty"`
	Thresholds        []MetricThreshold `json:"thresholds,omitempty"`
}

// Parameter defaults.
const (
	DefaultCanaryPercent    = 10
	DefaultBatchCount       = 4
	DefaultMirrorPercent    = 100
	DefaultSoakTickSeconds  = 30
	DefaultProvisionTimeout = 10 * time.Minute
	DefaultRolloutTimeout   = 2 * time.Hour
	DefaultDrainGrace       = 2 * time.Minute
)

func (p StrategyParams) InitialCanaryPercent() int {
	if p.CanaryPercent <= 0 {
		return DefaultCanaryPercent
	}
	return p.CanaryPercent
}

func (p StrategyParams) Batches() int {
	if p.BatchCount <= 0 {
		return DefaultBatchCount
	}
	return p.BatchCount
}

func (p StrategyParams) MirrorShare() int {
	if p.MirrorPercent <= 0 {
		return DefaultMirrorPercent
	}
	return p.MirrorPercent
}

func (p StrategyParams) SoakDuration() time.Duration {
	return time.Duration(p.SoakSeconds) * time.Second
}

func (p StrategyParams) SoakTick() time.Duration {
	if p.SoakTickSeconds <= 0 {
		return DefaultSoakTickSeconds * time.Second
	}
	return time.Duration(p.SoakTickSeconds) * time.Second
}

func (p StrategyParams) ProvisionTimeout() time.Duration {
	if p.ProvisionTimeoutS <= 0 {
		return DefaultProvisionTimeout
	}
	return time.Duration(p.ProvisionTimeoutS) * time.Second
}

func (p StrategyParams) RolloutTimeout() time.Duration {
	if p.RolloutTimeoutS <= 0 {
		return DefaultRolloutTimeout
	}
	return time.Duration(p.RolloutTimeoutS) * time.Second
}

func (p StrategyParams) DrainGrace() time.Duration {
	if p.DrainGraceSeconds <= 0 {
		return DefaultDrainGrace
	}
	return time.Duration(p.DrainGraceSeconds) * time.Second
}

// Rollout is the live execution record of a rollout request. Created when
// the request is accepted, mutated only by the rollout workflow, and kept
// forever once terminal: together with its history it is the audit trail
// for rollback decisions and postmortems.
type Rollout struct {
	ID              string         `json:"id" db:"id"`
	ServiceName     string         `json:"service_name" db:"service_name"`
	ArtifactName    string         `json:"artifact_name" db:"artifact_name"`
	ArtifactVersion string         `json:"artifact_version" db:"artifact_version"`
	Strategy        string         `json:"strategy" db:"strategy"`
	Params          StrategyParams `json:"params" db:"params"`
	IdempotencyKey  string         `json:"idempotency_key" db:"idempotency_key"`
	State           string         `json:"state" db:"state"`
	ReasonCode      string         `json:"reason_code" db:"reason_code"`
	StatusMessage   *string        `json:"status_message,omitempty" db:"status_message"`
	SourceGroupID   *string        `json:"source_group_id,omitempty" db:"source_group_id"`
	TargetGroupID   *string        `json:"target_group_id,omitempty" db:"target_group_id"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// Transition is one append-only rollout history entry. History is never
// rewritten.
type Transition struct {
	ID         int64     `json:"id" db:"id"`
	RolloutID  string    `json:"rollout_id" db:"rollout_id"`
	FromState  string    `json:"from_state" db:"from_state"`
	ToState    string    `json:"to_state" db:"to_state"`
	ReasonCode string    `json:"reason_code" db:"reason_code"`
	Message    string    `json:"message,omitempty" db:"message"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
