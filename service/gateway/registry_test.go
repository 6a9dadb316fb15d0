package gateway

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_OnlineIffDeviceSetNonEmpty(t *testing.T) {
	r := NewRegistry()
	u1 := Identity{ID: "u1"}

	require.False(t, r.IsOnline("u1"))

	c1 := newTestClient("c1", u1)
	c2 := newTestClient("c2", u1)

	require.True(t, r.Register(c1), "first device brings the identity online")
	require.True(t, r.IsOnline("u1"))

	require.False(t, r.Register(c2), "second device is not a transition")
	require.True(t, r.IsOnline("u1"))

	_, offline := r.Deregister("c1")
	require.False(t, offline, "one device left")
	require.True(t, r.IsOnline("u1"))

	_, offline = r.Deregister("c2")
	require.True(t, offline, "last device going away is the offline transition")
	require.False(t, r.IsOnline("u1"))
}

func TestRegistry_DeregisterIdempotent(t *testing.T) {
	r := NewRegistry()
	c := newTestClient("c1", Identity{ID: "u1"})
	r.Register(c)

	_, offline := r.Deregister("c1")
	require.True(t, offline)

	gone, offline := r.Deregister("c1")
	require.Nil(t, gone)
	require.False(t, offline, "second deregister observes nothing")

	gone, offline = r.Deregister("never-registered")
	require.Nil(t, gone)
	require.False(t, offline)
}

func TestRegistry_RegisterSameConnTwice(t *testing.T) {
	r := NewRegistry()
	c := newTestClient("c1", Identity{ID: "u1"})

	require.True(t, r.Register(c))
	require.False(t, r.Register(c), "duplicate registration is a no-op")
	require.Len(t, r.ListByIdentity("u1"), 1)
}

// Random interleavings of register/deregister: at every step IsOnline
// must equal "device set non-empty", and online/offline transitions must
// be reported exactly at the empty<->non-empty edges.
func TestRegistry_InterleavingsProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		r := NewRegistry()
		live := make(map[string]*Client) // conn -> client
		perIdentity := map[string]int{}
		next := 0

		for step := 0; step < 60; step++ {
			if rng.Intn(2) == 0 || len(live) == 0 {
				identity := "u" + strconv.Itoa(rng.Intn(4))
				next++
				c := newTestClient("c"+strconv.Itoa(next), Identity{ID: identity})
				came := r.Register(c)
				require.Equal(t, perIdentity[identity] == 0, came,
					"round=%d step=%d identity=%s", round, step, identity)
				live[c.ConnID] = c
				perIdentity[identity]++
			} else {
				// pick any live conn, occasionally a dead one
				var victim *Client
				for _, c := range live {
					victim = c
					break
				}
				if rng.Intn(10) == 0 {
					_, off := r.Deregister("cX")
					require.False(t, off)
				} else {
					_, off := r.Deregister(victim.ConnID)
					perIdentity[victim.Identity.ID]--
					require.Equal(t, perIdentity[victim.Identity.ID] == 0, off,
						"round=%d step=%d identity=%s", round, step, victim.Identity.ID)
					delete(live, victim.ConnID)
				}
			}

			for id, n := range perIdentity {
				require.Equal(t, n > 0, r.IsOnline(id), "round=%d step=%d identity=%s", round, step, id)
				require.Len(t, r.ListByIdentity(id), n)
			}
		}
	}
}

func TestRegistry_SnapshotOneEntryPerIdentity(t *testing.T) {
	r := NewRegistry()
	r.Register(newTestClient("c1", Identity{ID: "u1", Name: "Alice"}))
	r.Register(newTestClient("c2", Identity{ID: "u1", Name: "Alice"}))
	r.Register(newTestClient("c3", Identity{ID: "u2", Name: "Bob"}))

	snap := r.Snapshot()
	require.Len(t, snap, 2, "multi-device identity appears once")

	seen := map[string]bool{}
	for _, id := range snap {
		seen[id.ID] = true
	}
	require.True(t, seen["u1"])
	require.True(t, seen["u2"])
}
