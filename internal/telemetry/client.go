package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/edvin/rollout/internal/model"
)

// Client queries the external metrics backend for per-group telemetry.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, httpClient: &http.Client{}}
}

// Query fetches the current value of each named metric for one instance
// group, aggregated over the trailing window.
func (c *Client) Query(ctx context.Context, serviceName, groupID string, metrics []string, window time.Duration) (map[string]float64, error) {
	q := url.Values{}
	q.Set("service", serviceName)
	q.Set("group", groupID)
	q.Set("metrics", strings.Join(metrics, ","))
	q.Set("window", window.String())

	u := c.baseURL + "/api/v1/query?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("telemetry query request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telemetry query for %s/%s: %w", serviceName, groupID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("telemetry query for %s/%s: status %d: %s", serviceName, groupID, resp.StatusCode, string(body))
	}

	var payload struct {
		Values map[string]float64 `json:"values"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode telemetry response: %w", err)
	}
	return payload.Values, nil
}

// EvaluateThresholds checks queried values against the configured bounds
// and returns a breach description per violated threshold. A metric with
// no data is a breach: soaking must never pass on missing telemetry.
func EvaluateThresholds(values map[string]float64, thresholds []model.MetricThreshold) []string {
	var breaches []string
	for _, th := range thresholds {
		value, ok := values[th.Metric]
		if !ok {
			breaches = append(breaches, fmt.Sprintf("metric %s: no data", th.Metric))
			continue
		}
		if th.Max != nil && value > *th.Max {
			breaches = append(breaches, fmt.Sprintf("metric %s: %g above max %g", th.Metric, value, *th.Max))
		}
		if th.Min != nil && value < *th.Min {
			breaches = append(breaches, fmt.Sprintf("metric %s: %g below min %g", th.Metric, value, *th.Min))
		}
	}
	return breaches
}

// CompareDivergence checks shadow-group metrics against the live group's
// and reports divergences beyond the allowed relative fraction. Used by
// shadow rollouts, which never receive real traffic and are judged only
// on how far their behavior drifts from the serving group.
func CompareDivergence(live, shadow map[string]float64, metrics []string, allowed float64) []string {
	var breaches []string
	for _, name := range metrics {
		liveV, okLive := live[name]
		shadowV, okShadow := shadow[name]
		if !okLive || !okShadow {
			breaches = append(breaches, fmt.Sprintf("metric %s: missing from comparison", name))
			continue
		}
		base := liveV
		if base == 0 {
			base = 1
		}
		drift := (shadowV - liveV) / base
		if drift < 0 {
			drift = -drift
		}
		if drift > allowed {
			breaches = append(breaches, fmt.Sprintf("metric %s: shadow %g diverges from live %g by %.0f%%",
				name, shadowV, liveV, drift*100))
		}
	}
	return breaches
}
