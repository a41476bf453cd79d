package traffic

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the splitter uses.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	// ErrInvalidWeights is returned when a weight map does not sum to 100
	// (or to 0 in the bootstrap case) or contains out-of-range values.
	ErrInvalidWeights = errors.New("weights must be in [0,100] and sum to 0 or 100")

	// ErrConcurrentUpdate is returned when the versioned write lost the
	// race too many times. Weight writes are serialized per service by the
	// rollout workflow, so this indicates an outside writer.
	ErrConcurrentUpdate = errors.New("concurrent traffic weight update")
)

const casAttempts = 3

// Split is a consistent snapshot of a service's traffic configuration.
// Weights route real traffic; Mirrors duplicate a percentage of it to
// shadow groups without serving their responses.
type Split struct {
	ServiceName string         `json:"service_name"`
	Weights     map[string]int `json:"weights"`
	Mirrors     map[string]int `json:"mirrors,omitempty"`
	Version     int64          `json:"version"`
}

// Splitter owns the authoritative traffic split per service. Every write
// is a single versioned row update, so a reader sees either the old split
// or the new one, never a partial state.
type Splitter struct {
	db DB
}

func NewSplitter(db DB) *Splitter {
	return &Splitter{db: db}
}

// Get returns the current split snapshot. A service with no split yet
// returns an empty split at version 0.
func (s *Splitter) Get(ctx context.Context, serviceName string) (*Split, error) {
	split := &Split{ServiceName: serviceName, Weights: map[string]int{}, Mirrors: map[string]int{}}
	err := s.db.QueryRow(ctx,
		`SELECT weights, mirrors, version FROM traffic_weights WHERE service_name = $1`, serviceName,
	).Scan(&split.Weights, &split.Mirrors, &split.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return split, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get traffic split for %s: %w", serviceName, err)
	}
	return split, nil
}

// SetWeights replaces the service's weight map in one atomic versioned
// write. The map must sum to exactly 100, or to 0 for a service that has
// no serving group yet. Groups of the service absent from the map are set
// to weight 0 in the fleet view.
func (s *Splitter) SetWeights(ctx context.Context, serviceName string, weights map[string]int) error {
	if err := validateWeights(weights); err != nil {
		return err
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		current, err := s.Get(ctx, serviceName)
		if err != nil {
			return err
		}

		tag, err := s.db.Exec(ctx,
			`INSERT INTO traffic_weights (service_name, weights, version) VALUES ($1, $2, 1)
			 ON CONFLICT (service_name) DO UPDATE
			 SET weights = EXCLUDED.weights, version = traffic_weights.version + 1, updated_at = now()
			 WHERE traffic_weights.version = $3`,
			serviceName, weights, current.Version,
		)
		if err != nil {
			return fmt.Errorf("set traffic weights for %s: %w", serviceName, err)
		}
		if tag.RowsAffected() == 0 {
			continue
		}

		return s.refreshGroupWeights(ctx, serviceName, weights)
	}

	return fmt.Errorf("set traffic weights for %s: %w", serviceName, ErrConcurrentUpdate)
}

// SetMirrors replaces the service's mirror map. Mirrored traffic is
// duplicated, not shifted, so the map has no sum constraint; each value
// is a percentage of live traffic copied to that group.
func (s *Splitter) SetMirrors(ctx context.Context, serviceName string, mirrors map[string]int) error {
	for _, pct := range mirrors {
		if pct < 0 || pct > 100 {
			return ErrInvalidWeights
		}
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		current, err := s.Get(ctx, serviceName)
		if err != nil {
			return err
		}

		tag, err := s.db.Exec(ctx,
			`INSERT INTO traffic_weights (service_name, mirrors, version) VALUES ($1, $2, 1)
			 ON CONFLICT (service_name) DO UPDATE
			 SET mirrors = EXCLUDED.mirrors, version = traffic_weights.version + 1, updated_at = now()
			 WHERE traffic_weights.version = $3`,
			serviceName, mirrors, current.Version,
		)
		if err != nil {
			return fmt.Errorf("set traffic mirrors for %s: %w", serviceName, err)
		}
		if tag.RowsAffected() > 0 {
			return nil
		}
	}

	return fmt.Errorf("set traffic mirrors for %s: %w", serviceName, ErrConcurrentUpdate)
}

// refreshGroupWeights updates the cached traffic_weight column on the
// fleet view. The weight table written above is authoritative; this cache
// only serves fleet reads.
func (s *Splitter) refreshGroupWeights(ctx context.Context, serviceName string, weights map[string]int) error {
	ids := make([]string, 0, len(weights))
	for id := range weights {
		ids = append(ids, id)
	}

	_, err := s.db.Exec(ctx,
		`UPDATE instance_groups SET traffic_weight = 0, updated_at = now()
		 WHERE service_name = $1 AND NOT (id = ANY($2))`,
		serviceName, ids,
	)
	if err != nil {
		return fmt.Errorf("zero group weights for %s: %w", serviceName, err)
	}

	for id, weight := range weights {
		_, err := s.db.Exec(ctx,
			`UPDATE instance_groups SET traffic_weight = $2, updated_at = now() WHERE id = $1`,
			id, weight,
		)
		if err != nil {
			return fmt.Errorf("update group %s weight: %w", id, err)
		}
	}
	return nil
}

func validateWeights(weights map[string]int) error {
	sum := 0
	for _, w := range weights {
		if w < 0 || w > 100 {
			return ErrInvalidWeights
		}
		sum += w
	}
	if sum != 0 && sum != 100 {
		return ErrInvalidWeights
	}
	return nil
}
