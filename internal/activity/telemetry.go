package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/edvin/rollout/internal/model"
	"github.com/edvin/rollout/internal/telemetry"
)

// Telemetry contains activities that evaluate observed service metrics
// against rollout thresholds.
type Telemetry struct {
	client *telemetry.Client
}

// NewTelemetry creates a new Telemetry activity struct.
func NewTelemetry(client *telemetry.Client) *Telemetry {
	return &Telemetry{client: client}
}

// QuerySoakMetricsParams holds the parameters for QuerySoakMetrics.
type QuerySoakMetricsParams struct {
	ServiceName   string
	GroupID       string
	Thresholds    []model.MetricThreshold
	WindowSeconds int
}

// SoakVerdict is the outcome of one soak tick.
type SoakVerdict struct {
	Breaches []string
	Values   map[string]float64
}

// QuerySoakMetrics samples the group's metrics over the window and reports
// any threshold breaches. A missing metric counts as a breach.
func (a *Telemetry) QuerySoakMetrics(ctx context.Context, params QuerySoakMetricsParams) (*SoakVerdict, error) {
	names := make([]string, 0, len(params.Thresholds))
	for _, t := range params.Thresholds {
		names = append(names, t.Metric)
	}
	window := time.Duration(params.WindowSeconds) * time.Second

	values, err := a.client.Query(ctx, params.ServiceName, params.GroupID, names, window)
	if err != nil {
		return nil, fmt.Errorf("query soak metrics for %s: %w", params.ServiceName, err)
	}
	return &SoakVerdict{
		Breaches: telemetry.EvaluateThresholds(values, params.Thresholds),
		Values:   values,
	}, nil
}

// CompareDivergenceParams holds the parameters for CompareDivergence.
type CompareDivergenceParams struct {
	ServiceName      string
	LiveGroupID      string
	ShadowGroupID    string
	Metrics          []string
	AllowedDeviation float64
	WindowSeconds    int
}

// CompareDivergence samples the same metrics on the live and shadow groups
// and reports metrics whose relative deviation exceeds the allowance.
func (a *Telemetry) CompareDivergence(ctx context.Context, params CompareDivergenceParams) (*SoakVerdict, error) {
	window := time.Duration(params.WindowSeconds) * time.Second

	live, err := a.client.Query(ctx, params.ServiceName, params.LiveGroupID, params.Metrics, window)
	if err != nil {
		return nil, fmt.Errorf("query live metrics for %s: %w", params.ServiceName, err)
	}
	shadow, err := a.client.Query(ctx, params.ServiceName, params.ShadowGroupID, params.Metrics, window)
	if err != nil {
		return nil, fmt.Errorf("query shadow metrics for %s: %w", params.ServiceName, err)
	}
	return &SoakVerdict{
		Breaches: telemetry.CompareDivergence(live, shadow, params.Metrics, params.AllowedDeviation),
		Values:   shadow,
	}, nil
}
