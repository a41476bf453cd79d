package core

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/edvin/rollout/internal/traffic"
)

// DB is the subset of pgxpool.Pool the services use.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Services struct {
	Rollout *RolloutService
	Fleet   *FleetService
	APIKey  *APIKeyService
}

func NewServices(db DB, tc temporalclient.Client, splitter *traffic.Splitter) *Services {
	return &Services{
		Rollout: NewRolloutService(db, tc, splitter),
		Fleet:   NewFleetService(db),
		APIKey:  NewAPIKeyService(db),
	}
}
