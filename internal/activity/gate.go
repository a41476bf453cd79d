package activity

import (
	"context"
	"fmt"

	"github.com/edvin/rollout/internal/gate"
	"github.com/edvin/rollout/internal/metrics"
	"github.com/edvin/rollout/internal/model"
)

// Gate contains activities that evaluate health gates against instance groups.
type Gate struct {
	gate   *gate.Gate
	suites *gate.SuiteSet
}

// NewGate creates a new Gate activity struct.
func NewGate(g *gate.Gate, suites *gate.SuiteSet) *Gate {
	return &Gate{gate: g, suites: suites}
}

// RunHealthGateParams holds the parameters for RunHealthGate.
type RunHealthGateParams struct {
	ServiceName string
	GroupID     string
	Endpoint    string
	// Lightweight selects the reduced check suite used when re-checking a
	// rollback target.
	Lightweight bool
}

// RunHealthGate evaluates the service's check suite against an instance
// group. A failed gate is a result, not an activity error: the workflow
// decides what to do with it.
func (a *Gate) RunHealthGate(ctx context.Context, params RunHealthGateParams) (*model.GateResult, error) {
	var (
		checks []gate.Check
		err    error
	)
	if params.Lightweight {
		checks, err = a.suites.Lightweight(params.ServiceName)
	} else {
		checks, err = a.suites.For(params.ServiceName)
	}
	if err != nil {
		return nil, fmt.Errorf("load check suite for %s: %w", params.ServiceName, err)
	}

	result := a.gate.Evaluate(ctx, gate.Target{
		ServiceName: params.ServiceName,
		GroupID:     params.GroupID,
		Endpoint:    params.Endpoint,
	}, checks)

	outcome := "passed"
	if !result.Passed {
		outcome = "failed"
	}
	metrics.HealthGateEvaluations.WithLabelValues(outcome).Inc()
	return &result, nil
}
