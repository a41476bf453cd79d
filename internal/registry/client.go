package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/edvin/rollout/internal/model"
)

var (
	// ErrNotFound means the registry has no such artifact version.
	ErrNotFound = errors.New("artifact not found")
	// ErrArtifactInvalid means the registry refused to serve the artifact
	// (corrupt, quarantined, or failed signature verification).
	ErrArtifactInvalid = errors.New("artifact invalid")
)

// Client resolves name+version pairs into immutable artifact references
// against the external artifact registry.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, httpClient: &http.Client{}}
}

// Resolve returns the content-addressed reference for an artifact version.
func (c *Client) Resolve(ctx context.Context, name, version string) (*model.ArtifactRef, error) {
	u := fmt.Sprintf("%s/api/v1/artifacts/%s/%s", c.baseURL, url.PathEscape(name), url.PathEscape(version))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact %s/%s: %w", name, version, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("resolve artifact %s/%s: %w", name, version, ErrNotFound)
	case resp.StatusCode == http.StatusUnprocessableEntity:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("resolve artifact %s/%s: %w: %s", name, version, ErrArtifactInvalid, string(body))
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("resolve artifact %s/%s: status %d: %s", name, version, resp.StatusCode, string(body))
	}

	var ref model.ArtifactRef
	if err := json.NewDecoder(resp.Body).Decode(&ref); err != nil {
		return nil, fmt.Errorf("decode artifact ref: %w", err)
	}
	if ref.Locator == "" {
		return nil, fmt.Errorf("resolve artifact %s/%s: %w: empty locator", name, version, ErrArtifactInvalid)
	}
	return &ref, nil
}
