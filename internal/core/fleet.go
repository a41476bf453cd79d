package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/rollout/internal/model"
)

const groupColumns = `id, service_name, artifact_name, artifact_version, artifact_locator, endpoint,
	 desired_replicas, ready_replicas, traffic_weight, lifecycle_state, created_at, updated_at`

// FleetService tracks instance groups and their lifecycle state.
type FleetService struct {
	db DB
}

func NewFleetService(db DB) *FleetService {
	return &FleetService{db: db}
}

// Register records a newly provisioned instance group.
func (s *FleetService) Register(ctx context.Context, g *model.InstanceGroup) error {
	if g.LifecycleState == "" {
		g.LifecycleState = model.GroupStateProvisioning
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO instance_groups (id, service_name, artifact_name, artifact_version, artifact_locator, endpoint, desired_replicas, ready_replicas, traffic_weight, lifecycle_state)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at, updated_at`,
		g.ID, g.ServiceName, g.ArtifactName, g.ArtifactVersion, g.ArtifactLocator, g.Endpoint,
		g.DesiredReplicas, g.ReadyReplicas, g.TrafficWeight, g.LifecycleState,
	).Scan(&g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert instance group: %w", err)
	}
	return nil
}

// GetByID returns an instance group by id.
func (s *FleetService) GetByID(ctx context.Context, id string) (*model.InstanceGroup, error) {
	g, err := s.scanOne(s.db.QueryRow(ctx,
		`SELECT `+groupColumns+` FROM instance_groups WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("instance group %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get instance group %s: %w", id, err)
	}
	return g, nil
}

// ListByService returns all instance groups for a service, oldest first.
func (s *FleetService) ListByService(ctx context.Context, serviceName string) ([]model.InstanceGroup, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+groupColumns+` FROM instance_groups WHERE service_name = $1 ORDER BY created_at`, serviceName)
	if err != nil {
		return nil, fmt.Errorf("list instance groups for %s: %w", serviceName, err)
	}
	defer rows.Close()

	var groups []model.InstanceGroup
	for rows.Next() {
		g, err := s.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance group: %w", err)
		}
		groups = append(groups, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instance groups: %w", err)
	}
	return groups, nil
}

// ServingGroup returns the group currently in the serving state for a
// service, or nil when the service has none (first-ever rollout).
func (s *FleetService) ServingGroup(ctx context.Context, serviceName string) (*model.InstanceGroup, error) {
	g, err := s.scanOne(s.db.QueryRow(ctx,
		`SELECT `+groupColumns+` FROM instance_groups
		 WHERE service_name = $1 AND lifecycle_state = $2
		 ORDER BY created_at DESC LIMIT 1`,
		serviceName, model.GroupStateServing))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get serving group for %s: %w", serviceName, err)
	}
	return g, nil
}

// UpdateLifecycle moves a group to a new lifecycle state. Forward-only
// transitions are enforced with a compare-and-set on the current state, so
// a stale caller cannot drag a group backwards.
func (s *FleetService) UpdateLifecycle(ctx context.Context, id, from, to string) error {
	if !model.GroupStateTransitionAllowed(from, to) {
		return fmt.Errorf("instance group %s: %s -> %s: %w", id, from, to, ErrLifecycleRegression)
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE instance_groups SET lifecycle_state = $3, updated_at = now()
		 WHERE id = $1 AND lifecycle_state = $2`,
		id, from, to,
	)
	if err != nil {
		return fmt.Errorf("update lifecycle for instance group %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		current, getErr := s.GetByID(ctx, id)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("instance group %s: expected state %s, found %s: %w",
			id, from, current.LifecycleState, ErrLifecycleRegression)
	}
	return nil
}

// UpdateReadiness records the observed replica counts for a group.
func (s *FleetService) UpdateReadiness(ctx context.Context, id string, desired, ready int) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE instance_groups SET desired_replicas = $2, ready_replicas = $3, updated_at = now() WHERE id = $1`,
		id, desired, ready,
	)
	if err != nil {
		return fmt.Errorf("update readiness for instance group %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("instance group %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *FleetService) scanOne(row pgx.Row) (*model.InstanceGroup, error) {
	var g model.InstanceGroup
	err := row.Scan(&g.ID, &g.ServiceName, &g.ArtifactName, &g.ArtifactVersion, &g.ArtifactLocator, &g.Endpoint,
		&g.DesiredReplicas, &g.ReadyReplicas, &g.TrafficWeight, &g.LifecycleState, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}
