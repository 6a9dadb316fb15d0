package gateway

import (
	"sync"
	"time"

	"estategate/tools/errs"
)

// TypingCoordinator broadcasts ephemeral typing state per (conversation,
// identity) with automatic expiry. It is the only component allowed to
// emit a state change without a client event: if neither stop nor a
// refreshing start arrives in time, it emits typing_stopped itself, so a
// crashed client can never leave a stuck indicator.
type TypingCoordinator struct {
	mu     sync.Mutex
	timers map[string]*time.Timer // conversation + "|" + identity
	rooms  *Rooms
	fan    *Fanout
	ttl    time.Duration
}

func NewTypingCoordinator(rooms *Rooms, fan *Fanout, ttl time.Duration) *TypingCoordinator {
	if ttl <= 0 {
		ttl = 6 * time.Second
	}
	return &TypingCoordinator{
		timers: make(map[string]*time.Timer),
		rooms:  rooms,
		fan:    fan,
		ttl:    ttl,
	}
}

func typingKey(conversationID, identityID string) string {
	return conversationID + "|" + identityID
}

// Start broadcasts typing to the room's other subscribers and (re)arms
// the expiry timer. A refresh while already typing only postpones the
// deadline; peers are not re-notified.
func (t *TypingCoordinator) Start(c *Client, conversationID string) error {
	if conversationID == "" {
		return errs.ErrInvalid.WithDetail("conversation_id is required")
	}
	if !t.rooms.IsMember(c.ConnID, conversationID) {
		return errs.ErrNotAMember.WithDetail("conversation " + conversationID)
	}

	key := typingKey(conversationID, c.Identity.ID)
	identityID := c.Identity.ID

	t.mu.Lock()
	prev, refreshing := t.timers[key]
	if refreshing {
		prev.Stop()
	}
	t.timers[key] = time.AfterFunc(t.ttl, func() {
		t.expire(conversationID, identityID)
	})
	t.mu.Unlock()

	if !refreshing {
		t.broadcast(conversationID, c.Identity, false)
	}
	return nil
}

// Stop broadcasts typing_stopped immediately and cancels the timer;
// stopping when not typing is a no-op.
func (t *TypingCoordinator) Stop(c *Client, conversationID string) error {
	if conversationID == "" {
		return errs.ErrInvalid.WithDetail("conversation_id is required")
	}
	key := typingKey(conversationID, c.Identity.ID)

	t.mu.Lock()
	timer, ok := t.timers[key]
	if ok {
		timer.Stop()
		delete(t.timers, key)
	}
	t.mu.Unlock()

	if ok {
		t.broadcast(conversationID, c.Identity, true)
	}
	return nil
}

// expire runs on timer fire; the map entry guard makes the automatic
// typing_stopped fire at most once even against a concurrent Stop.
func (t *TypingCoordinator) expire(conversationID, identityID string) {
	key := typingKey(conversationID, identityID)

	t.mu.Lock()
	_, ok := t.timers[key]
	if ok {
		delete(t.timers, key)
	}
	t.mu.Unlock()

	if ok {
		t.broadcast(conversationID, Identity{ID: identityID}, true)
	}
}

// broadcast excludes every connection of the typist; a device never
// needs its own typing echo.
func (t *TypingCoordinator) broadcast(conversationID string, id Identity, stopped bool) {
	subs := t.rooms.Subscribers(conversationID)
	if len(subs) == 0 {
		return
	}
	targets := subs[:0:0]
	for _, s := range subs {
		if s.Identity.ID == id.ID {
			continue
		}
		targets = append(targets, s)
	}
	var payload []byte
	if stopped {
		payload = BuildTypingStopped(conversationID, id.ID)
	} else {
		payload = BuildTyping(conversationID, id)
	}
	t.fan.Broadcast(conversationID, targets, "", payload)
}

// Shutdown cancels all pending timers without emitting events.
func (t *TypingCoordinator) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, timer := range t.timers {
		timer.Stop()
		delete(t.timers, k)
	}
}
