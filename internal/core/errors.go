package core

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a rollout or instance group does not exist.
	ErrNotFound = errors.New("not found")

	// ErrActiveRollout is returned when a service already has a rollout in
	// a non-terminal state. The caller must wait or abort it first.
	ErrActiveRollout = errors.New("an active rollout already exists for this service")

	// ErrRolloutTerminal is returned when an abort targets a rollout that
	// has already reached a terminal state.
	ErrRolloutTerminal = errors.New("rollout is already in a terminal state")

	// ErrInvalidInput is returned for requests rejected before any state
	// is mutated.
	ErrInvalidInput = errors.New("invalid input")

	// ErrLifecycleRegression is returned when an instance group lifecycle
	// update would move the group backwards.
	ErrLifecycleRegression = errors.New("instance group lifecycle cannot regress")
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
