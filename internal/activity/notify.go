package activity

import (
	"context"

	"github.com/edvin/rollout/internal/model"
	"github.com/edvin/rollout/internal/notify"
)

// Notify contains activities that deliver rollout lifecycle events to the
// configured webhook. Delivery is best-effort; workflows give this activity
// a short retry budget and ignore its error.
type Notify struct {
	notifier *notify.Notifier
}

// NewNotify creates a new Notify activity struct.
func NewNotify(notifier *notify.Notifier) *Notify {
	return &Notify{notifier: notifier}
}

// NotifyEvent posts a rollout lifecycle event to the webhook, if one is
// configured.
func (a *Notify) NotifyEvent(ctx context.Context, event model.Event) error {
	if !a.notifier.Enabled() {
		return nil
	}
	return a.notifier.Notify(ctx, event)
}
