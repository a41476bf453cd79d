package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// MetricQuerier is the telemetry lookup a metric check needs. The
// telemetry client satisfies it.
type MetricQuerier interface {
	Query(ctx context.Context, serviceName, groupID string, metrics []string, window time.Duration) (map[string]float64, error)
}

// ProbeCheck issues a GET against a path on the group endpoint and
// passes on HTTP 200. Used for liveness and readiness probes.
type ProbeCheck struct {
	CheckName  string
	Path       string
	RunTimeout time.Duration
	Client     *http.Client
}

func (c *ProbeCheck) Name() string           { return c.CheckName }
func (c *ProbeCheck) Timeout() time.Duration { return c.RunTimeout }

func (c *ProbeCheck) Run(ctx context.Context, target Target) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.Endpoint+c.Path, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := c.client().Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", c.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("probe %s: status %d", c.Path, resp.StatusCode)
	}
	return nil
}

func (c *ProbeCheck) client() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

// SyntheticCheck issues a synthetic request and verifies the response
// status and, optionally, that the JSON body contains expected fields.
type SyntheticCheck struct {
	CheckName    string
	Method       string
	Path         string
	ExpectStatus int
	ExpectFields []string
	RunTimeout   time.Duration
	Client       *http.Client
}

func (c *SyntheticCheck) Name() string           { return c.CheckName }
func (c *SyntheticCheck) Timeout() time.Duration { return c.RunTimeout }

func (c *SyntheticCheck) Run(ctx context.Context, target Target) error {
	method := c.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, target.Endpoint+c.Path, nil)
	if err != nil {
		return fmt.Errorf("build synthetic request: %w", err)
	}
	resp, err := c.client().Do(req)
	if err != nil {
		return fmt.Errorf("synthetic %s %s: %w", method, c.Path, err)
	}
	defer resp.Body.Close()

	expect := c.ExpectStatus
	if expect == 0 {
		expect = http.StatusOK
	}
	if resp.StatusCode != expect {
		return fmt.Errorf("synthetic %s %s: status %d, want %d", method, c.Path, resp.StatusCode, expect)
	}

	if len(c.ExpectFields) == 0 {
		return nil
	}
	var body map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("synthetic %s %s: decode body: %w", method, c.Path, err)
	}
	for _, field := range c.ExpectFields {
		if _, ok := body[field]; !ok {
			return fmt.Errorf("synthetic %s %s: response missing field %q", method, c.Path, field)
		}
	}
	return nil
}

func (c *SyntheticCheck) client() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

// MetricCheck queries the telemetry source for one metric over a window
// and verifies it against configured bounds.
type MetricCheck struct {
	CheckName  string
	Metric     string
	Max        *float64
	Min        *float64
	Window     time.Duration
	RunTimeout time.Duration
	Querier    MetricQuerier
}

func (c *MetricCheck) Name() string           { return c.CheckName }
func (c *MetricCheck) Timeout() time.Duration { return c.RunTimeout }

func (c *MetricCheck) Run(ctx context.Context, target Target) error {
	values, err := c.Querier.Query(ctx, target.ServiceName, target.GroupID, []string{c.Metric}, c.Window)
	if err != nil {
		return fmt.Errorf("query metric %s: %w", c.Metric, err)
	}
	value, ok := values[c.Metric]
	if !ok {
		return fmt.Errorf("metric %s: no data", c.Metric)
	}
	if c.Max != nil && value > *c.Max {
		return fmt.Errorf("metric %s: %g above max %g", c.Metric, value, *c.Max)
	}
	if c.Min != nil && value < *c.Min {
		return fmt.Errorf("metric %s: %g below min %g", c.Metric, value, *c.Min)
	}
	return nil
}
