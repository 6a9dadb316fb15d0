package gateway

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeIdentities struct {
	mu sync.Mutex
	m  map[string]Identity
}

func newFakeIdentities(ids ...Identity) *fakeIdentities {
	f := &fakeIdentities{m: make(map[string]Identity)}
	for _, id := range ids {
		f.m[id.ID] = id
	}
	return f
}

func (f *fakeIdentities) Lookup(_ context.Context, identityID string) (Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.m[identityID]
	if !ok {
		return Identity{}, errors.New("user not found")
	}
	return id, nil
}

type fakeConversations struct {
	mu           sync.Mutex
	participants map[string]map[string]bool // conversation -> identity -> yes
	saved        []Message
	failSave     bool
	failCheck    bool
	seq          int
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{participants: make(map[string]map[string]bool)}
}

func (f *fakeConversations) addParticipant(conversationID, identityID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.participants[conversationID]
	if m == nil {
		m = make(map[string]bool)
		f.participants[conversationID] = m
	}
	m[identityID] = true
}

func (f *fakeConversations) IsParticipant(_ context.Context, conversationID, identityID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCheck {
		return false, errors.New("store down")
	}
	return f.participants[conversationID][identityID], nil
}

func (f *fakeConversations) SaveMessage(_ context.Context, m Message) (Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return Message{}, errors.New("store down")
	}
	f.seq++
	m.ID = "m" + strconv.Itoa(f.seq)
	m.CreatedAt = time.Now().UTC()
	f.saved = append(f.saved, m)
	return m, nil
}

func (f *fakeConversations) savedMessages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.saved...)
}

type fakeNotifications struct {
	mu       sync.Mutex
	saved    []Notification
	failSave bool
	seq      int
}

func (f *fakeNotifications) SaveNotification(_ context.Context, n Notification) (Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return Notification{}, errors.New("store down")
	}
	f.seq++
	n.ID = "n" + strconv.Itoa(f.seq)
	n.CreatedAt = time.Now().UTC()
	f.saved = append(f.saved, n)
	return n, nil
}

type fakeOffline struct {
	mu sync.Mutex
	m  map[string][]Notification
}

func newFakeOffline() *fakeOffline {
	return &fakeOffline{m: make(map[string][]Notification)}
}

func (f *fakeOffline) Enqueue(_ context.Context, n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m[n.IdentityID] = append(f.m[n.IdentityID], n)
	return nil
}

func (f *fakeOffline) Drain(_ context.Context, identityID string, n int) ([]Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.m[identityID]
	if len(out) > n {
		out = out[:n]
	}
	f.m[identityID] = f.m[identityID][len(out):]
	return out, nil
}

// newTestClient builds a Client with no socket; frames are read straight
// off its Send queue.
func newTestClient(connID string, identity Identity) *Client {
	return NewClient(connID, identity, nil, 64)
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.Identities == nil {
		opts.Identities = newFakeIdentities()
	}
	if opts.Conversations == nil {
		opts.Conversations = newFakeConversations()
	}
	if opts.Notifications == nil {
		opts.Notifications = &fakeNotifications{}
	}
	if opts.JWTSecret == "" {
		opts.JWTSecret = "test-secret"
	}
	s := NewServer(opts)
	t.Cleanup(s.Close)
	return s
}

// recvFrame waits for the next frame on the client's queue.
func recvFrame(t *testing.T, c *Client, timeout time.Duration) Frame {
	t.Helper()
	select {
	case b := <-c.Send:
		var f Frame
		require.NoError(t, json.Unmarshal(b, &f))
		return f
	case <-time.After(timeout):
		t.Fatalf("no frame within %v on conn=%s", timeout, c.ConnID)
		return Frame{}
	}
}

// recvFrameOfType discards frames until one of the wanted type arrives.
func recvFrameOfType(t *testing.T, c *Client, want EventType, timeout time.Duration) Frame {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case b := <-c.Send:
			var f Frame
			require.NoError(t, json.Unmarshal(b, &f))
			if f.Type == want {
				return f
			}
		case <-deadline:
			t.Fatalf("no %s frame within %v on conn=%s", want, timeout, c.ConnID)
			return Frame{}
		}
	}
}

// expectNoFrameOfType asserts the given type does not show up in the
// observation window.
func expectNoFrameOfType(t *testing.T, c *Client, evt EventType, window time.Duration) {
	t.Helper()
	deadline := time.After(window)
	for {
		select {
		case b := <-c.Send:
			var f Frame
			require.NoError(t, json.Unmarshal(b, &f))
			require.NotEqual(t, evt, f.Type, "unexpected %s frame on conn=%s", evt, c.ConnID)
		case <-deadline:
			return
		}
	}
}

// countFramesOfType counts matching frames arriving within the window.
func countFramesOfType(t *testing.T, c *Client, evt EventType, window time.Duration) int {
	t.Helper()
	n := 0
	deadline := time.After(window)
	for {
		select {
		case b := <-c.Send:
			var f Frame
			require.NoError(t, json.Unmarshal(b, &f))
			if f.Type == evt {
				n++
			}
		case <-deadline:
			return n
		}
	}
}

func payloadString(t *testing.T, f Frame, key string) string {
	t.Helper()
	v, ok := f.Payload[key]
	require.True(t, ok, "payload missing %q", key)
	s, ok := v.(string)
	require.True(t, ok, "payload %q not a string", key)
	return s
}
