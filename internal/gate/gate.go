package gate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/edvin/rollout/internal/model"
)

// Target identifies the instance group a check suite runs against.
type Target struct {
	ServiceName string `json:"service_name"`
	GroupID     string `json:"group_id"`
	Endpoint    string `json:"endpoint"`
}

// Check is one pluggable health check. The gate itself knows nothing
// about what a check does; it only enforces timeouts and aggregates.
type Check interface {
	Name() string
	Timeout() time.Duration
	Run(ctx context.Context, target Target) error
}

// Gate evaluates a suite of checks against a target with bounded
// concurrency. Once any check definitively fails no further checks are
// started, but checks already in flight run to completion so the result
// carries full diagnostics.
type Gate struct {
	// MaxConcurrent bounds how many checks run at once.
	MaxConcurrent int64
	// Grace is added to the longest individual check timeout to form the
	// overall evaluation deadline.
	Grace time.Duration
}

func New() *Gate {
	return &Gate{MaxConcurrent: 4, Grace: 5 * time.Second}
}

// Evaluate runs the suite and aggregates the results. An empty suite
// passes vacuously.
func (g *Gate) Evaluate(ctx context.Context, target Target, checks []Check) model.GateResult {
	if len(checks) == 0 {
		return model.GateResult{Passed: true}
	}

	var maxTimeout time.Duration
	for _, c := range checks {
		if c.Timeout() > maxTimeout {
			maxTimeout = c.Timeout()
		}
	}
	ctx, cancel := context.WithTimeout(ctx, maxTimeout+g.Grace)
	defer cancel()

	sem := semaphore.NewWeighted(g.MaxConcurrent)
	outcomes := make([]model.CheckOutcome, len(checks))

	var failed atomic.Bool
	var wg sync.WaitGroup

	for i, c := range checks {
		if failed.Load() {
			outcomes[i] = model.CheckOutcome{Check: c.Name(), Skipped: true, Reason: "suite already failed"}
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			outcomes[i] = model.CheckOutcome{Check: c.Name(), Reason: "evaluation deadline exceeded"}
			failed.Store(true)
			continue
		}
		if failed.Load() {
			sem.Release(1)
			outcomes[i] = model.CheckOutcome{Check: c.Name(), Skipped: true, Reason: "suite already failed"}
			continue
		}

		wg.Add(1)
		go func(i int, c Check) {
			defer wg.Done()
			defer sem.Release(1)

			start := time.Now()
			checkCtx, checkCancel := context.WithTimeout(ctx, c.Timeout())
			err := c.Run(checkCtx, target)
			checkCancel()

			outcome := model.CheckOutcome{Check: c.Name(), Duration: time.Since(start)}
			if err != nil {
				outcome.Reason = err.Error()
				failed.Store(true)
			} else {
				outcome.Passed = true
			}
			outcomes[i] = outcome
		}(i, c)
	}

	wg.Wait()

	result := model.GateResult{Passed: true, Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Passed {
			continue
		}
		result.Passed = false
		if !o.Skipped {
			result.Failures = append(result.Failures, model.CheckFailure{Check: o.Check, Reason: o.Reason})
		}
	}
	return result
}
