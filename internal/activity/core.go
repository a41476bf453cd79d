package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/edvin/rollout/internal/metrics"
	"github.com/edvin/rollout/internal/model"
)

// DB defines the database operations used by activity structs.
// *pgxpool.Pool satisfies this interface.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Core contains activities that read from and update the rollout database.
type Core struct {
	db DB
}

// NewCore creates a new Core activity struct.
func NewCore(db DB) *Core {
	return &Core{db: db}
}

// GetRollout retrieves a rollout by its ID.
func (a *Core) GetRollout(ctx context.Context, id string) (*model.Rollout, error) {
	var r model.Rollout
	err := a.db.QueryRow(ctx,
		`SELECT id, service_name, artifact_name, artifact_version, strategy, params,
		 idempotency_key, state, reason_code, status_message, source_group_id, target_group_id,
		 created_at, updated_at
		 FROM rollouts WHERE id = $1`, id,
	).Scan(&r.ID, &r.ServiceName, &r.ArtifactName, &r.ArtifactVersion, &r.Strategy, &r.Params,
		&r.IdempotencyKey, &r.State, &r.ReasonCode, &r.StatusMessage, &r.SourceGroupID, &r.TargetGroupID,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get rollout by id: %w", err)
	}
	return &r, nil
}

// RecordTransitionParams holds the parameters for RecordTransition.
type RecordTransitionParams struct {
	RolloutID  string
	FromState  string
	ToState    string
	ReasonCode string
	Message    string
}

// RecordTransition moves a rollout to a new state and appends the transition
// to the rollout history. Both statements run in one activity so a retry
// replays them together.
func (a *Core) RecordTransition(ctx context.Context, params RecordTransitionParams) error {
	var msg *string
	if params.Message != "" {
		msg = &params.Message
	}
	var strategy string
	var createdAt time.Time
	err := a.db.QueryRow(ctx,
		`UPDATE rollouts SET state = $2, reason_code = $3, status_message = $4, updated_at = now() WHERE id = $1
		 RETURNING strategy, created_at`,
		params.RolloutID, params.ToState, params.ReasonCode, msg,
	).Scan(&strategy, &createdAt)
	if err != nil {
		return fmt.Errorf("update rollout state: %w", err)
	}
	_, err = a.db.Exec(ctx,
		`INSERT INTO rollout_history (rollout_id, from_state, to_state, reason_code, message)
		 VALUES ($1, $2, $3, $4, $5)`,
		params.RolloutID, params.FromState, params.ToState, params.ReasonCode, params.Message,
	)
	if err != nil {
		return fmt.Errorf("insert rollout transition: %w", err)
	}

	// Completion metrics live here rather than in workflow code, where
	// they would fire again on every replay.
	if model.RolloutStateTerminal(params.ToState) {
		metrics.RolloutsCompleted.WithLabelValues(strategy, params.ToState).Inc()
		metrics.RolloutDuration.WithLabelValues(strategy).Observe(time.Since(createdAt).Seconds())
	}
	return nil
}

// SetRolloutGroupsParams holds the parameters for SetRolloutGroups.
type SetRolloutGroupsParams struct {
	RolloutID     string
	SourceGroupID *string
	TargetGroupID *string
}

// SetRolloutGroups records the source and target instance groups on a rollout.
func (a *Core) SetRolloutGroups(ctx context.Context, params SetRolloutGroupsParams) error {
	_, err := a.db.Exec(ctx,
		`UPDATE rollouts SET source_group_id = $2, target_group_id = $3, updated_at = now() WHERE id = $1`,
		params.RolloutID, params.SourceGroupID, params.TargetGroupID,
	)
	if err != nil {
		return fmt.Errorf("set rollout groups: %w", err)
	}
	return nil
}

// GetInstanceGroup retrieves an instance group by its ID.
func (a *Core) GetInstanceGroup(ctx context.Context, id string) (*model.InstanceGroup, error) {
	var g model.InstanceGroup
	err := a.db.QueryRow(ctx,
		`SELECT id, service_name, artifact_name, artifact_version, artifact_locator, endpoint,
		 desired_replicas, ready_replicas, traffic_weight, lifecycle_state, created_at, updated_at
		 FROM instance_groups WHERE id = $1`, id,
	).Scan(&g.ID, &g.ServiceName, &g.ArtifactName, &g.ArtifactVersion, &g.ArtifactLocator, &g.Endpoint,
		&g.DesiredReplicas, &g.ReadyReplicas, &g.TrafficWeight, &g.LifecycleState, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get instance group by id: %w", err)
	}
	return &g, nil
}

// GetServingGroup retrieves the instance group currently serving a service,
// or nil when the service has none.
func (a *Core) GetServingGroup(ctx context.Context, serviceName string) (*model.InstanceGroup, error) {
	var g model.InstanceGroup
	err := a.db.QueryRow(ctx,
		`SELECT id, service_name, artifact_name, artifact_version, artifact_locator, endpoint,
		 desired_replicas, ready_replicas, traffic_weight, lifecycle_state, created_at, updated_at
		 FROM instance_groups WHERE service_name = $1 AND lifecycle_state = $2
		 ORDER BY created_at DESC LIMIT 1`, serviceName, model.GroupStateServing,
	).Scan(&g.ID, &g.ServiceName, &g.ArtifactName, &g.ArtifactVersion, &g.ArtifactLocator, &g.Endpoint,
		&g.DesiredReplicas, &g.ReadyReplicas, &g.TrafficWeight, &g.LifecycleState, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get serving group: %w", err)
	}
	return &g, nil
}

// UpdateGroupLifecycleParams holds the parameters for UpdateGroupLifecycle.
type UpdateGroupLifecycleParams struct {
	GroupID string
	From    string
	To      string
}

// UpdateGroupLifecycle moves an instance group to a new lifecycle state with
// a compare-and-set on the current state.
func (a *Core) UpdateGroupLifecycle(ctx context.Context, params UpdateGroupLifecycleParams) error {
	if !model.GroupStateTransitionAllowed(params.From, params.To) {
		return fmt.Errorf("instance group %s: lifecycle %s -> %s not allowed", params.GroupID, params.From, params.To)
	}
	tag, err := a.db.Exec(ctx,
		`UPDATE instance_groups SET lifecycle_state = $3, updated_at = now()
		 WHERE id = $1 AND lifecycle_state = $2`,
		params.GroupID, params.From, params.To,
	)
	if err != nil {
		return fmt.Errorf("update group lifecycle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("instance group %s: not in state %s", params.GroupID, params.From)
	}
	return nil
}

// UpdateGroupReadinessParams holds the parameters for UpdateGroupReadiness.
type UpdateGroupReadinessParams struct {
	GroupID string
	Desired int
	Ready   int
}

// UpdateGroupReadiness records observed replica counts for an instance group.
func (a *Core) UpdateGroupReadiness(ctx context.Context, params UpdateGroupReadinessParams) error {
	_, err := a.db.Exec(ctx,
		`UPDATE instance_groups SET desired_replicas = $2, ready_replicas = $3, updated_at = now() WHERE id = $1`,
		params.GroupID, params.Desired, params.Ready,
	)
	if err != nil {
		return fmt.Errorf("update group readiness: %w", err)
	}
	return nil
}
