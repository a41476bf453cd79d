package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/edvin/rollout/internal/model"
)

// ErrGroupNotFound means the scheduler no longer knows the instance group.
var ErrGroupNotFound = errors.New("instance group not found")

// CreateGroupSpec is the placement request sent to the cluster scheduler.
type CreateGroupSpec struct {
	ServiceName string             `json:"service_name"`
	Artifact    model.ArtifactRef  `json:"artifact"`
	Replicas    int                `json:"replicas"`
}

// CreatedGroup is the scheduler's reply to a placement request.
type CreatedGroup struct {
	ID       string `json:"id"`
	Endpoint string `json:"endpoint"`
}

// Client talks to the external cluster scheduler, which owns replica
// placement. The orchestrator only asks for groups to exist, scale, or
// terminate; it never places individual replicas.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, httpClient: &http.Client{}}
}

// CreateInstanceGroup asks the scheduler to place a new group.
func (c *Client) CreateInstanceGroup(ctx context.Context, spec CreateGroupSpec) (*CreatedGroup, error) {
	body, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("marshal create group spec: %w", err)
	}

	u := c.baseURL + "/api/v1/instance-groups"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create group request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create instance group: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("create instance group: status %d: %s", resp.StatusCode, string(respBody))
	}

	var created CreatedGroup
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decode created group: %w", err)
	}
	return &created, nil
}

// GetReplicaStatus reports how many replicas of a group are ready, and
// whether the scheduler has terminated the group out from under us.
func (c *Client) GetReplicaStatus(ctx context.Context, groupID string) (*model.ReplicaStatus, error) {
	u := fmt.Sprintf("%s/api/v1/instance-groups/%s/status", c.baseURL, url.PathEscape(groupID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("replica status request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get replica status %s: %w", groupID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("get replica status %s: %w", groupID, ErrGroupNotFound)
	}
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("get replica status %s: status %d: %s", groupID, resp.StatusCode, string(respBody))
	}

	var status model.ReplicaStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode replica status: %w", err)
	}
	return &status, nil
}

// ScaleInstanceGroup changes a group's desired replica count. Rolling
// rollouts use this to replace the fleet batch by batch.
func (c *Client) ScaleInstanceGroup(ctx context.Context, groupID string, replicas int) error {
	body, err := json.Marshal(map[string]int{"replicas": replicas})
	if err != nil {
		return fmt.Errorf("marshal scale request: %w", err)
	}

	u := fmt.Sprintf("%s/api/v1/instance-groups/%s/scale", c.baseURL, url.PathEscape(groupID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("scale request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("scale instance group %s: %w", groupID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("scale instance group %s: status %d: %s", groupID, resp.StatusCode, string(respBody))
	}
	return nil
}

// TerminateInstanceGroup tears a group down. Terminating an already-gone
// group is not an error.
func (c *Client) TerminateInstanceGroup(ctx context.Context, groupID string) error {
	u := fmt.Sprintf("%s/api/v1/instance-groups/%s", c.baseURL, url.PathEscape(groupID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("terminate request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("terminate instance group %s: %w", groupID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("terminate instance group %s: status %d: %s", groupID, resp.StatusCode, string(respBody))
	}
	return nil
}
