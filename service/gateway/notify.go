package gateway

import (
	"context"
	"time"

	"estategate/logger"
	"estategate/tools/errs"
)

// Notifier persists a notification, then delivers it on the target
// identity's personal channel (every live device). Offline identities
// get it queued for a later fetch_notifications.
type Notifier struct {
	reg     *Registry
	store   NotificationStore
	fan     *Fanout
	offline OfflineQueue // optional
	timeout time.Duration
}

func NewNotifier(reg *Registry, store NotificationStore, fan *Fanout, offline OfflineQueue, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Notifier{reg: reg, store: store, fan: fan, offline: offline, timeout: timeout}
}

func (n *Notifier) Push(ctx context.Context, identityID string, notif Notification) (Notification, error) {
	if identityID == "" {
		return Notification{}, errs.ErrInvalid.WithDetail("identity_id is required")
	}
	notif.IdentityID = identityID

	sctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	saved, err := n.store.SaveNotification(sctx, notif)
	if err != nil {
		return Notification{}, errs.ErrUnavailable.Wrap(err)
	}

	devices := n.reg.ListByIdentity(identityID)
	if len(devices) == 0 {
		if n.offline != nil {
			if err := n.offline.Enqueue(sctx, saved); err != nil {
				logger.Warnf("[notify] offline enqueue failed user=%s: %v", identityID, err)
			}
		}
		return saved, nil
	}

	n.fan.Broadcast("user:"+identityID, devices, "", BuildNotificationReceived(saved))
	return saved, nil
}

// DeliverMissed drains the offline queue to one requesting connection.
func (n *Notifier) DeliverMissed(ctx context.Context, c *Client, limit int) error {
	if n.offline == nil {
		return nil
	}
	if limit <= 0 {
		limit = 100
	}
	sctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	missed, err := n.offline.Drain(sctx, c.Identity.ID, limit)
	if err != nil {
		return errs.ErrUnavailable.Wrap(err)
	}
	for _, m := range missed {
		c.Enqueue(BuildNotificationReceived(m))
	}
	return nil
}
