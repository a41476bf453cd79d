package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/edvin/rollout/internal/metrics"
	"github.com/edvin/rollout/internal/model"
	"github.com/edvin/rollout/internal/platform"
	"github.com/edvin/rollout/internal/traffic"
)

const rolloutColumns = `id, service_name, artifact_name, artifact_version, strategy, params,
	 idempotency_key, state, reason_code, status_message, source_group_id, target_group_id,
	 created_at, updated_at`

// RolloutService accepts rollout requests, enforces the one-active-rollout
// rule, and hands accepted rollouts to the workflow engine.
type RolloutService struct {
	db       DB
	tc       temporalclient.Client
	splitter *traffic.Splitter
}

func NewRolloutService(db DB, tc temporalclient.Client, splitter *traffic.Splitter) *RolloutService {
	return &RolloutService{db: db, tc: tc, splitter: splitter}
}

// CreateRolloutParams is a validated rollout request.
type CreateRolloutParams struct {
	ServiceName     string
	ArtifactName    string
	ArtifactVersion string
	Strategy        string
	Params          model.StrategyParams
	IdempotencyKey  string
}

// Create accepts a rollout request. The returned bool is true when a new
// rollout was started; false means the idempotency key matched an existing
// rollout, which is returned unchanged.
//
// Input errors and conflicts are rejected here, before any state mutation
// and before any workflow starts.
func (s *RolloutService) Create(ctx context.Context, p CreateRolloutParams) (*model.Rollout, bool, error) {
	if !model.ValidStrategy(p.Strategy) {
		return nil, false, fmt.Errorf("%w: unknown strategy %q", ErrInvalidInput, p.Strategy)
	}
	if p.Strategy == model.StrategyCanary && (p.Params.CanaryPercent < 0 || p.Params.CanaryPercent > 100) {
		return nil, false, fmt.Errorf("%w: canary percent must be in [0,100]", ErrInvalidInput)
	}
	for _, step := range p.Params.RampSteps {
		if step <= 0 || step > 100 {
			return nil, false, fmt.Errorf("%w: ramp steps must be in (0,100]", ErrInvalidInput)
		}
	}
	if p.Params.BatchFailurePolicy != "" &&
		p.Params.BatchFailurePolicy != model.BatchPolicyRollback &&
		p.Params.BatchFailurePolicy != model.BatchPolicyHalt {
		return nil, false, fmt.Errorf("%w: unknown batch failure policy %q", ErrInvalidInput, p.Params.BatchFailurePolicy)
	}
	if p.IdempotencyKey == "" {
		p.IdempotencyKey = platform.NewName("req_")
	}

	// Idempotent replay: same key returns the existing rollout, whatever
	// state it is in, without touching the fleet.
	existing, err := s.getByIdempotencyKey(ctx, p.ServiceName, p.IdempotencyKey)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	active, err := s.activeForService(ctx, p.ServiceName)
	if err != nil {
		return nil, false, err
	}
	if active != nil {
		return nil, false, fmt.Errorf("service %s: %w", p.ServiceName, ErrActiveRollout)
	}

	r := &model.Rollout{
		ID:              platform.NewID(),
		ServiceName:     p.ServiceName,
		ArtifactName:    p.ArtifactName,
		ArtifactVersion: p.ArtifactVersion,
		Strategy:        p.Strategy,
		Params:          p.Params,
		IdempotencyKey:  p.IdempotencyKey,
		State:           model.RolloutStatePending,
		ReasonCode:      model.ReasonAccepted,
	}

	err = s.db.QueryRow(ctx,
		`INSERT INTO rollouts (id, service_name, artifact_name, artifact_version, strategy, params, idempotency_key, state, reason_code)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at, updated_at`,
		r.ID, r.ServiceName, r.ArtifactName, r.ArtifactVersion, r.Strategy, r.Params, r.IdempotencyKey, r.State, r.ReasonCode,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		// The partial unique index on non-terminal rollouts closes the
		// race between the existence check above and this insert.
		if isUniqueViolation(err) {
			return nil, false, fmt.Errorf("service %s: %w", p.ServiceName, ErrActiveRollout)
		}
		return nil, false, fmt.Errorf("insert rollout: %w", err)
	}

	_, err = s.tc.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
		ID:        model.RolloutWorkflowID(r.ServiceName),
		TaskQueue: model.TaskQueue,
	}, "RolloutWorkflow", r.ID)
	if err != nil {
		msg := err.Error()
		_, _ = s.db.Exec(ctx,
			`UPDATE rollouts SET state = $2, status_message = $3, updated_at = now() WHERE id = $1`,
			r.ID, model.RolloutStateFailed, &msg,
		)
		return nil, false, fmt.Errorf("start RolloutWorkflow: %w", err)
	}

	metrics.RolloutsStarted.WithLabelValues(r.Strategy).Inc()
	return r, true, nil
}

// GetByID returns a rollout by id.
func (s *RolloutService) GetByID(ctx context.Context, id string) (*model.Rollout, error) {
	r, err := s.scanOne(s.db.QueryRow(ctx,
		`SELECT `+rolloutColumns+` FROM rollouts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("rollout %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get rollout %s: %w", id, err)
	}
	return r, nil
}

// History returns the rollout's append-only transition log, oldest first.
func (s *RolloutService) History(ctx context.Context, rolloutID string) ([]model.Transition, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, rollout_id, from_state, to_state, reason_code, message, created_at
		 FROM rollout_history WHERE rollout_id = $1 ORDER BY id`, rolloutID)
	if err != nil {
		return nil, fmt.Errorf("list history for rollout %s: %w", rolloutID, err)
	}
	defer rows.Close()

	var history []model.Transition
	for rows.Next() {
		var t model.Transition
		if err := rows.Scan(&t.ID, &t.RolloutID, &t.FromState, &t.ToState, &t.ReasonCode, &t.Message, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		history = append(history, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return history, nil
}

// CurrentSplit returns the live traffic split for the rollout's service.
func (s *RolloutService) CurrentSplit(ctx context.Context, serviceName string) (*traffic.Split, error) {
	return s.splitter.Get(ctx, serviceName)
}

// ListByService returns rollouts for a service, newest first, with cursor
// pagination.
func (s *RolloutService) ListByService(ctx context.Context, serviceName string, limit int, cursor string) ([]model.Rollout, bool, error) {
	query := `SELECT ` + rolloutColumns + ` FROM rollouts WHERE service_name = $1`
	args := []any{serviceName}
	argIdx := 2

	if cursor != "" {
		query += fmt.Sprintf(` AND id > $%d`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += fmt.Sprintf(` ORDER BY id LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list rollouts for %s: %w", serviceName, err)
	}
	defer rows.Close()

	var rollouts []model.Rollout
	for rows.Next() {
		r, err := s.scanOne(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan rollout: %w", err)
		}
		rollouts = append(rollouts, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate rollouts: %w", err)
	}

	hasMore := len(rollouts) > limit
	if hasMore {
		rollouts = rollouts[:limit]
	}
	return rollouts, hasMore, nil
}

// Abort signals the running rollout workflow to stop and roll back. It is
// accepted in any non-terminal state.
func (s *RolloutService) Abort(ctx context.Context, id, reason string) error {
	r, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if model.RolloutStateTerminal(r.State) {
		return fmt.Errorf("rollout %s: %w", id, ErrRolloutTerminal)
	}

	err = s.tc.SignalWorkflow(ctx, model.RolloutWorkflowID(r.ServiceName), "",
		model.AbortSignalName, model.AbortRequest{Reason: reason})
	if err != nil {
		return fmt.Errorf("signal abort for rollout %s: %w", id, err)
	}
	return nil
}

func (s *RolloutService) getByIdempotencyKey(ctx context.Context, serviceName, key string) (*model.Rollout, error) {
	r, err := s.scanOne(s.db.QueryRow(ctx,
		`SELECT `+rolloutColumns+` FROM rollouts WHERE service_name = $1 AND idempotency_key = $2`,
		serviceName, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rollout by idempotency key: %w", err)
	}
	return r, nil
}

func (s *RolloutService) activeForService(ctx context.Context, serviceName string) (*model.Rollout, error) {
	r, err := s.scanOne(s.db.QueryRow(ctx,
		`SELECT `+rolloutColumns+` FROM rollouts
		 WHERE service_name = $1 AND state NOT IN ('promoted', 'rolled_back', 'failed')`,
		serviceName))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active rollout for %s: %w", serviceName, err)
	}
	return r, nil
}

func (s *RolloutService) scanOne(row pgx.Row) (*model.Rollout, error) {
	var r model.Rollout
	err := row.Scan(&r.ID, &r.ServiceName, &r.ArtifactName, &r.ArtifactVersion, &r.Strategy, &r.Params,
		&r.IdempotencyKey, &r.State, &r.ReasonCode, &r.StatusMessage, &r.SourceGroupID, &r.TargetGroupID,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
