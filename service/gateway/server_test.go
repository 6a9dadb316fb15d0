package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"estategate/tools/errs"
)

func admit(t *testing.T, s *Server, connID string, id Identity) *Client {
	t.Helper()
	c := newTestClient(connID, id)
	s.Admit(c)
	return c
}

func joinFrame(conversationID string) *Frame {
	return &Frame{Type: EvtJoinConversation, Payload: map[string]any{"conversation_id": conversationID}}
}

func sendFrame(conversationID, body string) *Frame {
	return &Frame{Type: EvtSendMessage, Payload: map[string]any{"conversation_id": conversationID, "body": body}}
}

func identityOf(t *testing.T, f Frame) map[string]any {
	t.Helper()
	v, ok := f.Payload["identity"].(map[string]any)
	require.True(t, ok, "payload missing identity object")
	return v
}

// Two participants join the same conversation, one sends. The other
// connection gets exactly the message, the sending connection nothing.
func TestServer_MessageDeliveryWithinConversation(t *testing.T) {
	convs := newFakeConversations()
	convs.addParticipant("conv1", "u1")
	convs.addParticipant("conv1", "u2")
	s := newTestServer(t, Options{Conversations: convs})

	alice := admit(t, s, "ca", Identity{ID: "u1", Name: "Alice"})
	bob := admit(t, s, "cb", Identity{ID: "u2", Name: "Bob"})

	ctx := context.Background()
	s.HandleFrame(ctx, alice, joinFrame("conv1"))
	s.HandleFrame(ctx, bob, joinFrame("conv1"))
	require.True(t, s.Rooms().IsMember("ca", "conv1"))
	require.True(t, s.Rooms().IsMember("cb", "conv1"))

	s.HandleFrame(ctx, alice, sendFrame("conv1", "is the flat still available?"))

	f := recvFrameOfType(t, bob, EvtMessageReceived, time.Second)
	require.Equal(t, "is the flat still available?", payloadString(t, f, "body"))
	require.Equal(t, "u1", payloadString(t, f, "sender_id"))
	require.Equal(t, "Alice", payloadString(t, f, "sender_name"))

	expectNoFrameOfType(t, alice, EvtMessageReceived, 100*time.Millisecond)
	require.Len(t, convs.savedMessages(), 1)
}

// Multi-device presence: only the first device of an identity produces
// identity_online and only the last one leaving produces identity_offline.
func TestServer_MultiDevicePresenceTransitions(t *testing.T) {
	s := newTestServer(t, Options{})

	watcher := admit(t, s, "cw", Identity{ID: "watcher"})
	recvFrameOfType(t, watcher, EvtOnlineSnapshot, time.Second)

	phone := admit(t, s, "cp", Identity{ID: "u1", Name: "Alice"})
	f := recvFrameOfType(t, watcher, EvtIdentityOnline, time.Second)
	require.Equal(t, "u1", identityOf(t, f)["id"])

	laptop := admit(t, s, "cl", Identity{ID: "u1", Name: "Alice"})
	expectNoFrameOfType(t, watcher, EvtIdentityOnline, 150*time.Millisecond)

	s.Teardown(phone)
	expectNoFrameOfType(t, watcher, EvtIdentityOffline, 150*time.Millisecond)
	require.True(t, s.Registry().IsOnline("u1"))

	s.Teardown(laptop)
	f = recvFrameOfType(t, watcher, EvtIdentityOffline, time.Second)
	require.Equal(t, "u1", identityOf(t, f)["id"])
	require.False(t, s.Registry().IsOnline("u1"))
}

// The new connection's own queue carries the ack and the snapshot before
// any live presence event, and the snapshot already includes itself.
func TestServer_AckAndSnapshotPrecedeLiveEvents(t *testing.T) {
	s := newTestServer(t, Options{})

	admit(t, s, "c1", Identity{ID: "u1"})
	c2 := admit(t, s, "c2", Identity{ID: "u2"})

	first := recvFrame(t, c2, time.Second)
	require.Equal(t, EvtConnectionAck, first.Type)
	require.Equal(t, "c2", payloadString(t, first, "conn_id"))

	second := recvFrame(t, c2, time.Second)
	require.Equal(t, EvtOnlineSnapshot, second.Type)
	ids, ok := second.Payload["identities"].([]any)
	require.True(t, ok)
	require.Len(t, ids, 2, "snapshot holds both identities, itself included")
}

// A sender outside the conversation: error frame to the originating
// connection only, nothing persisted, nothing fanned out.
func TestServer_NonMemberSendRejected(t *testing.T) {
	convs := newFakeConversations()
	convs.addParticipant("conv1", "u2")
	s := newTestServer(t, Options{Conversations: convs})

	outsider := admit(t, s, "cx", Identity{ID: "u9"})
	member := admit(t, s, "cm", Identity{ID: "u2"})
	s.HandleFrame(context.Background(), member, joinFrame("conv1"))

	s.HandleFrame(context.Background(), outsider, sendFrame("conv1", "sneak"))

	f := recvFrameOfType(t, outsider, EvtError, time.Second)
	require.EqualValues(t, errs.ErrNotAMember.Code, f.Payload["code"])
	require.Equal(t, string(EvtSendMessage), payloadString(t, f, "ref"))

	expectNoFrameOfType(t, member, EvtMessageReceived, 150*time.Millisecond)
	require.Empty(t, convs.savedMessages())
}

func TestServer_JoinAuthorization(t *testing.T) {
	convs := newFakeConversations()
	convs.addParticipant("conv1", "u1")
	s := newTestServer(t, Options{Conversations: convs})
	ctx := context.Background()

	// never admitted
	stranger := newTestClient("cs", Identity{ID: "u1"})
	require.ErrorIs(t, s.Join(ctx, stranger, "conv1"), errs.ErrNotAuthenticated)

	c := admit(t, s, "c1", Identity{ID: "u1"})
	require.NoError(t, s.Join(ctx, c, "conv1"))

	other := admit(t, s, "c2", Identity{ID: "u2"})
	require.ErrorIs(t, s.Join(ctx, other, "conv1"), errs.ErrForbidden)
	require.False(t, s.Rooms().IsMember("c2", "conv1"))

	convs.failCheck = true
	require.ErrorIs(t, s.Join(ctx, other, "conv1"), errs.ErrUnavailable)
}

func TestServer_LeaveStopsDelivery(t *testing.T) {
	convs := newFakeConversations()
	convs.addParticipant("conv1", "u1")
	convs.addParticipant("conv1", "u2")
	s := newTestServer(t, Options{Conversations: convs})
	ctx := context.Background()

	alice := admit(t, s, "ca", Identity{ID: "u1"})
	bob := admit(t, s, "cb", Identity{ID: "u2"})
	s.HandleFrame(ctx, alice, joinFrame("conv1"))
	s.HandleFrame(ctx, bob, joinFrame("conv1"))

	s.HandleFrame(ctx, bob, &Frame{Type: EvtLeaveConversation, Payload: map[string]any{"conversation_id": "conv1"}})
	require.False(t, s.Rooms().IsMember("cb", "conv1"))

	s.HandleFrame(ctx, alice, sendFrame("conv1", "anyone?"))
	expectNoFrameOfType(t, bob, EvtMessageReceived, 150*time.Millisecond)
}

// Disconnect without explicit leaves: every membership is gone and peers
// in former rooms stop receiving, while presence reflects the exit.
func TestServer_TeardownClearsAllState(t *testing.T) {
	convs := newFakeConversations()
	convs.addParticipant("conv1", "u1")
	convs.addParticipant("conv1", "u2")
	convs.addParticipant("conv2", "u2")
	s := newTestServer(t, Options{Conversations: convs})
	ctx := context.Background()

	alice := admit(t, s, "ca", Identity{ID: "u1"})
	bob := admit(t, s, "cb", Identity{ID: "u2"})
	s.HandleFrame(ctx, alice, joinFrame("conv1"))
	s.HandleFrame(ctx, bob, joinFrame("conv1"))
	s.HandleFrame(ctx, bob, joinFrame("conv2"))

	s.Teardown(bob)
	require.False(t, s.Registry().IsOnline("u2"))
	require.Empty(t, s.Rooms().RoomsOf("cb"))
	require.Len(t, s.Rooms().Subscribers("conv1"), 1)

	// double teardown must not produce a second identity_offline
	s.Teardown(bob)
	require.Equal(t, 1, countFramesOfType(t, alice, EvtIdentityOffline, 200*time.Millisecond))
}

func TestServer_TypingEndToEnd(t *testing.T) {
	convs := newFakeConversations()
	convs.addParticipant("conv1", "u1")
	convs.addParticipant("conv1", "u2")
	s := newTestServer(t, Options{Conversations: convs, TypingTTL: 150 * time.Millisecond})
	ctx := context.Background()

	alice := admit(t, s, "ca", Identity{ID: "u1", Name: "Alice"})
	bob := admit(t, s, "cb", Identity{ID: "u2"})
	s.HandleFrame(ctx, alice, joinFrame("conv1"))
	s.HandleFrame(ctx, bob, joinFrame("conv1"))

	s.HandleFrame(ctx, alice, &Frame{Type: EvtTypingStart, Payload: map[string]any{"conversation_id": "conv1"}})
	f := recvFrameOfType(t, bob, EvtTyping, time.Second)
	require.Equal(t, "u1", payloadString(t, f, "identity_id"))
	require.Equal(t, "Alice", payloadString(t, f, "name"))

	// let the TTL lapse without a typing_stop
	recvFrameOfType(t, bob, EvtTypingStopped, time.Second)
}

func TestServer_PingPong(t *testing.T) {
	s := newTestServer(t, Options{})
	c := admit(t, s, "c1", Identity{ID: "u1"})

	s.HandleFrame(context.Background(), c, &Frame{Type: EvtPing})
	recvFrameOfType(t, c, EvtPong, time.Second)
}

func TestServer_FetchNotificationsDrainsOfflineQueue(t *testing.T) {
	offline := newFakeOffline()
	s := newTestServer(t, Options{Offline: offline})

	_, err := s.Notifier().Push(context.Background(), "u1", Notification{Body: "while away"})
	require.NoError(t, err)

	c := admit(t, s, "c1", Identity{ID: "u1"})
	s.HandleFrame(context.Background(), c, &Frame{Type: EvtFetchNotifications})

	f := recvFrameOfType(t, c, EvtNotificationReceived, time.Second)
	require.Equal(t, "while away", payloadString(t, f, "body"))
}

func TestServer_MalformedPayloadYieldsInvalid(t *testing.T) {
	s := newTestServer(t, Options{})
	c := admit(t, s, "c1", Identity{ID: "u1"})

	s.HandleFrame(context.Background(), c, &Frame{
		Type:    EvtSendMessage,
		Payload: map[string]any{"conversation_id": map[string]any{"nested": true}},
	})
	f := recvFrameOfType(t, c, EvtError, time.Second)
	require.EqualValues(t, errs.ErrInvalid.Code, f.Payload["code"])
}
