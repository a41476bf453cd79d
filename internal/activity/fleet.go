package activity

import (
	"context"
	"errors"
	"fmt"

	"github.com/edvin/rollout/internal/model"
	"github.com/edvin/rollout/internal/platform"
	"github.com/edvin/rollout/internal/registry"
	"github.com/edvin/rollout/internal/scheduler"
)

// Fleet contains activities that talk to the artifact registry and the
// scheduler to provision and tear down instance groups.
type Fleet struct {
	db        DB
	registry  *registry.Client
	scheduler *scheduler.Client
}

// NewFleet creates a new Fleet activity struct.
func NewFleet(db DB, reg *registry.Client, sched *scheduler.Client) *Fleet {
	return &Fleet{db: db, registry: reg, scheduler: sched}
}

// ResolveArtifactParams holds the parameters for ResolveArtifact.
type ResolveArtifactParams struct {
	Name    string
	Version string
}

// ResolveArtifact resolves an artifact reference against the registry.
// Unknown and invalid artifacts return non-retryable application errors so
// the workflow fails rather than retrying a permanent condition.
func (a *Fleet) ResolveArtifact(ctx context.Context, params ResolveArtifactParams) (*model.ArtifactRef, error) {
	ref, err := a.registry.Resolve(ctx, params.Name, params.Version)
	if err != nil {
		return nil, err
	}
	return ref, nil
}

// CreateInstanceGroupParams holds the parameters for CreateInstanceGroup.
type CreateInstanceGroupParams struct {
	ServiceName string
	Artifact    model.ArtifactRef
	Replicas    int
}

// CreateInstanceGroup asks the scheduler for a fresh instance group and
// registers it in the fleet table in provisioning state.
func (a *Fleet) CreateInstanceGroup(ctx context.Context, params CreateInstanceGroupParams) (*model.InstanceGroup, error) {
	created, err := a.scheduler.CreateInstanceGroup(ctx, scheduler.CreateGroupSpec{
		ServiceName: params.ServiceName,
		Artifact:    params.Artifact,
		Replicas:    params.Replicas,
	})
	if err != nil {
		return nil, fmt.Errorf("create instance group: %w", err)
	}

	g := &model.InstanceGroup{
		ID:              created.ID,
		ServiceName:     params.ServiceName,
		ArtifactName:    params.Artifact.Name,
		ArtifactVersion: params.Artifact.Version,
		ArtifactLocator: params.Artifact.Locator,
		Endpoint:        created.Endpoint,
		DesiredReplicas: params.Replicas,
		LifecycleState:  model.GroupStateProvisioning,
	}
	if g.ID == "" {
		g.ID = platform.NewID()
	}
	err = a.db.QueryRow(ctx,
		`INSERT INTO instance_groups (id, service_name, artifact_name, artifact_version, artifact_locator, endpoint, desired_replicas, ready_replicas, traffic_weight, lifecycle_state)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, $8)
		 RETURNING created_at, updated_at`,
		g.ID, g.ServiceName, g.ArtifactName, g.ArtifactVersion, g.ArtifactLocator, g.Endpoint,
		g.DesiredReplicas, g.LifecycleState,
	).Scan(&g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("register instance group: %w", err)
	}
	return g, nil
}

// GetReplicaStatus reports the scheduler's view of an instance group. A
// group the scheduler no longer knows is reported as terminated rather than
// as an error: retrying will not bring it back, and the workflow decides
// what termination means mid-rollout.
func (a *Fleet) GetReplicaStatus(ctx context.Context, groupID string) (*model.ReplicaStatus, error) {
	status, err := a.scheduler.GetReplicaStatus(ctx, groupID)
	if errors.Is(err, scheduler.ErrGroupNotFound) {
		return &model.ReplicaStatus{GroupID: groupID, Terminated: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get replica status: %w", err)
	}
	return status, nil
}

// ScaleInstanceGroupParams holds the parameters for ScaleInstanceGroup.
type ScaleInstanceGroupParams struct {
	GroupID  string
	Replicas int
}

// ScaleInstanceGroup changes the desired replica count of an instance group.
func (a *Fleet) ScaleInstanceGroup(ctx context.Context, params ScaleInstanceGroupParams) error {
	if err := a.scheduler.ScaleInstanceGroup(ctx, params.GroupID, params.Replicas); err != nil {
		return fmt.Errorf("scale instance group: %w", err)
	}
	_, err := a.db.Exec(ctx,
		`UPDATE instance_groups SET desired_replicas = $2, updated_at = now() WHERE id = $1`,
		params.GroupID, params.Replicas,
	)
	if err != nil {
		return fmt.Errorf("record desired replicas: %w", err)
	}
	return nil
}

// TerminateInstanceGroup destroys an instance group's compute and marks it
// terminated. Terminating a group the scheduler no longer knows is a no-op.
func (a *Fleet) TerminateInstanceGroup(ctx context.Context, groupID string) error {
	if err := a.scheduler.TerminateInstanceGroup(ctx, groupID); err != nil {
		return fmt.Errorf("terminate instance group: %w", err)
	}
	_, err := a.db.Exec(ctx,
		`UPDATE instance_groups SET lifecycle_state = $2, ready_replicas = 0, updated_at = now() WHERE id = $1`,
		groupID, model.GroupStateTerminated,
	)
	if err != nil {
		return fmt.Errorf("mark instance group terminated: %w", err)
	}
	return nil
}
