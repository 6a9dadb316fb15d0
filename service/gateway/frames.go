package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"estategate/tools/errs"
)

type EventType string

// Client -> gateway events.
const (
	EvtJoinConversation   EventType = "join_conversation"
	EvtLeaveConversation  EventType = "leave_conversation"
	EvtSendMessage        EventType = "send_message"
	EvtTypingStart        EventType = "typing_start"
	EvtTypingStop         EventType = "typing_stop"
	EvtFetchNotifications EventType = "fetch_notifications"
	EvtPing               EventType = "ping"
)

// Gateway -> client events.
const (
	EvtConnectionAck        EventType = "connection_ack"
	EvtIdentityOnline       EventType = "identity_online"
	EvtIdentityOffline      EventType = "identity_offline"
	EvtOnlineSnapshot       EventType = "online_snapshot"
	EvtMessageReceived      EventType = "message_received"
	EvtNotificationReceived EventType = "notification_received"
	EvtTyping               EventType = "typing"
	EvtTypingStopped        EventType = "typing_stopped"
	EvtError                EventType = "error"
	EvtPong                 EventType = "pong"
)

// Frame is the JSON wire unit in both directions. Inbound payloads stay
// opaque maps until a handler decodes them into a typed struct.
type Frame struct {
	Type    EventType      `json:"type"`
	Ts      int64          `json:"ts,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

func ParseFrame(raw []byte) (*Frame, error) {
	f := &Frame{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, fmt.Errorf("unmarshal frame: %w", err)
	}
	if f.Type == "" {
		return nil, fmt.Errorf("frame missing type")
	}
	return f, nil
}

// wireFrame is the outbound shape; payload is typed at the build site.
type wireFrame struct {
	Type    EventType `json:"type"`
	Ts      int64     `json:"ts"`
	Payload any       `json:"payload,omitempty"`
}

func encodeFrame(t EventType, payload any) []byte {
	b, err := json.Marshal(wireFrame{Type: t, Ts: time.Now().UnixMilli(), Payload: payload})
	if err != nil {
		// payloads are our own structs; a marshal failure is a bug
		return []byte(`{"type":"error","payload":{"code":1500,"msg":"internal error"}}`)
	}
	return b
}

// ---- inbound payloads ----

type JoinPayload struct {
	ConversationID string `json:"conversation_id"`
}

type SendMessagePayload struct {
	ConversationID string `json:"conversation_id"`
	Body           string `json:"body"`
}

type TypingPayload struct {
	ConversationID string `json:"conversation_id"`
}

type FetchNotificationsPayload struct {
	Limit int `json:"limit,omitempty"`
}

// ---- outbound builders ----

type presencePayload struct {
	Identity Identity `json:"identity"`
}

type snapshotPayload struct {
	Identities []Identity `json:"identities"`
}

type typingPayload struct {
	ConversationID string `json:"conversation_id"`
	IdentityID     string `json:"identity_id"`
	Name           string `json:"name,omitempty"`
}

type ackPayload struct {
	ConnID         string `json:"conn_id"`
	IdentityID     string `json:"identity_id"`
	PingIntervalMS int64  `json:"ping_interval_ms"`
	PongTimeoutMS  int64  `json:"pong_timeout_ms"`
}

type errorPayload struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
	Ref    string `json:"ref,omitempty"`
}

func BuildConnectionAck(connID, identityID string, pingInterval, pongTimeout time.Duration) []byte {
	return encodeFrame(EvtConnectionAck, ackPayload{
		ConnID:         connID,
		IdentityID:     identityID,
		PingIntervalMS: pingInterval.Milliseconds(),
		PongTimeoutMS:  pongTimeout.Milliseconds(),
	})
}

func BuildIdentityOnline(id Identity) []byte {
	return encodeFrame(EvtIdentityOnline, presencePayload{Identity: id})
}

func BuildIdentityOffline(id Identity) []byte {
	return encodeFrame(EvtIdentityOffline, presencePayload{Identity: id})
}

func BuildOnlineSnapshot(ids []Identity) []byte {
	return encodeFrame(EvtOnlineSnapshot, snapshotPayload{Identities: ids})
}

func BuildMessageReceived(m Message) []byte {
	return encodeFrame(EvtMessageReceived, m)
}

func BuildNotificationReceived(n Notification) []byte {
	return encodeFrame(EvtNotificationReceived, n)
}

func BuildTyping(conversationID string, id Identity) []byte {
	return encodeFrame(EvtTyping, typingPayload{ConversationID: conversationID, IdentityID: id.ID, Name: id.Name})
}

func BuildTypingStopped(conversationID, identityID string) []byte {
	return encodeFrame(EvtTypingStopped, typingPayload{ConversationID: conversationID, IdentityID: identityID})
}

func BuildPong() []byte {
	return encodeFrame(EvtPong, nil)
}

// BuildError turns any error into an error frame for the originating
// connection; ref names the client event that failed.
func BuildError(err error, ref EventType) []byte {
	ce := errs.CodeOf(err)
	return encodeFrame(EvtError, errorPayload{Code: ce.Code, Msg: ce.Msg, Detail: ce.Detail, Ref: string(ref)})
}
