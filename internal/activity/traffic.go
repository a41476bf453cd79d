package activity

import (
	"context"
	"fmt"

	"github.com/edvin/rollout/internal/traffic"
)

// Traffic contains activities that mutate the authoritative traffic split.
type Traffic struct {
	splitter *traffic.Splitter
}

// NewTraffic creates a new Traffic activity struct.
func NewTraffic(splitter *traffic.Splitter) *Traffic {
	return &Traffic{splitter: splitter}
}

// SetTrafficWeightsParams holds the parameters for SetTrafficWeights.
type SetTrafficWeightsParams struct {
	ServiceName string
	Weights     map[string]int
}

// SetTrafficWeights atomically replaces the weight assignment for a service.
func (a *Traffic) SetTrafficWeights(ctx context.Context, params SetTrafficWeightsParams) error {
	if err := a.splitter.SetWeights(ctx, params.ServiceName, params.Weights); err != nil {
		return fmt.Errorf("set traffic weights for %s: %w", params.ServiceName, err)
	}
	return nil
}

// SetMirrorsParams holds the parameters for SetMirrors.
type SetMirrorsParams struct {
	ServiceName string
	Mirrors     map[string]int
}

// SetMirrors replaces the shadow mirror assignment for a service. Mirrored
// traffic is fire-and-forget and never affects the live weight sum.
func (a *Traffic) SetMirrors(ctx context.Context, params SetMirrorsParams) error {
	if err := a.splitter.SetMirrors(ctx, params.ServiceName, params.Mirrors); err != nil {
		return fmt.Errorf("set mirrors for %s: %w", params.ServiceName, err)
	}
	return nil
}
