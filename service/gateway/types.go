package gateway

import (
	"context"
	"time"
)

// Identity is the authenticated account behind a connection. The gateway
// caches display fields at connect time and never mutates the source
// record.
type Identity struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
	Role   string `json:"role,omitempty"`
}

// Message is transported only after the conversation store persisted it;
// ID and CreatedAt are filled by the store.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	SenderName     string    `json:"sender_name,omitempty"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

type Notification struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identity_id"`
	Kind       string    `json:"kind,omitempty"`
	Title      string    `json:"title,omitempty"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// IdentityProvider resolves a verified credential subject to an account
// record (auth service / user collection).
type IdentityProvider interface {
	Lookup(ctx context.Context, identityID string) (Identity, error)
}

// ConversationStore is the persisted conversation collaborator. The
// gateway checks participation before admitting a room subscription and
// persists every message before fan-out.
type ConversationStore interface {
	IsParticipant(ctx context.Context, conversationID, identityID string) (bool, error)
	SaveMessage(ctx context.Context, m Message) (Message, error)
}

type NotificationStore interface {
	SaveNotification(ctx context.Context, n Notification) (Notification, error)
}

// PresenceMirror is a write-through copy of online state for the rest of
// the marketplace to read. The in-process registry stays authoritative;
// mirror failures are logged, never surfaced to clients.
type PresenceMirror interface {
	Online(ctx context.Context, identityID string) error
	Offline(ctx context.Context, identityID string) error
}

// RecentCache keeps a capped tail of delivered messages per conversation
// so clients can cheaply re-fetch after a reconnect.
type RecentCache interface {
	Append(ctx context.Context, m Message) error
	Tail(ctx context.Context, conversationID string, n int) ([]Message, error)
}

// OfflineQueue buffers notifications for identities with no live
// connection; drained by fetch_notifications.
type OfflineQueue interface {
	Enqueue(ctx context.Context, n Notification) error
	Drain(ctx context.Context, identityID string, n int) ([]Notification, error)
}
