package gateway

import (
	"context"
	"time"

	"estategate/logger"
	"estategate/tools/errs"
	"estategate/tools/safe"
)

// Relay validates room membership, persists through the conversation
// store, and only then fans out to the room's subscribers. A crash
// between persistence and fan-out loses the live event, never the
// record.
type Relay struct {
	rooms   *Rooms
	store   ConversationStore
	fan     *Fanout
	cache   RecentCache // optional
	timeout time.Duration
}

func NewRelay(rooms *Rooms, store ConversationStore, fan *Fanout, cache RecentCache, timeout time.Duration) *Relay {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Relay{rooms: rooms, store: store, fan: fan, cache: cache, timeout: timeout}
}

// Submit relays one message from a subscribed connection. Fan-out goes
// to every current subscriber except the originating connection; the
// sender's other devices do receive it.
func (r *Relay) Submit(ctx context.Context, sender *Client, conversationID, body string) (Message, error) {
	if conversationID == "" || body == "" {
		return Message{}, errs.ErrInvalid.WithDetail("conversation_id and body are required")
	}
	if !r.rooms.IsMember(sender.ConnID, conversationID) {
		return Message{}, errs.ErrNotAMember.WithDetail("conversation " + conversationID)
	}

	// Persist first: no fan-out until the store confirms.
	sctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	saved, err := r.store.SaveMessage(sctx, Message{
		ConversationID: conversationID,
		SenderID:       sender.Identity.ID,
		SenderName:     sender.Identity.Name,
		Body:           body,
	})
	if err != nil {
		return Message{}, errs.ErrUnavailable.Wrap(err)
	}

	if r.cache != nil {
		safe.Go(func() {
			cctx, ccancel := context.WithTimeout(context.Background(), r.timeout)
			defer ccancel()
			if err := r.cache.Append(cctx, saved); err != nil {
				logger.Warnf("[relay] recent cache append failed conv=%s: %v", conversationID, err)
			}
		})
	}

	r.fan.Broadcast(conversationID, r.rooms.Subscribers(conversationID), sender.ConnID, BuildMessageReceived(saved))
	return saved, nil
}
