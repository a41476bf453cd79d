package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/edvin/rollout/internal/model"
)

// Notifier POSTs rollout state-transition events to a webhook. Delivery
// is best-effort: the workflow never blocks promotion or rollback on it.
type Notifier struct {
	url        string
	httpClient *http.Client
}

func NewNotifier(url string) *Notifier {
	return &Notifier{url: url, httpClient: &http.Client{}}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool {
	return n.url != ""
}

func (n *Notifier) Notify(ctx context.Context, event model.Event) error {
	if !n.Enabled() {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify %s: %w", event.ReasonCode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("notify %s: status %d: %s", event.ReasonCode, resp.StatusCode, string(respBody))
	}
	return nil
}
