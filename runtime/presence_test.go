package runtime

import (
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPresence_Connect_Disconnect(t *testing.T) {
	req := require.New(t)
	presence := NewPresence(NewRegistry())
	phone, laptop := newRecorder(), newRecorder()

	req.Equal([]string{"alice"}, presence.Connect("alice", phone, nil))
	req.Equal([]string{"alice"}, presence.Connect("alice", laptop, nil))

	// Alice keeps a device, she stays online
	userID, snapshot, changed := presence.Disconnect(phone, nil)
	req.Equal("alice", userID)
	req.False(changed)
	req.Nil(snapshot)
	req.Equal([]string{"alice"}, presence.Snapshot())

	userID, snapshot, changed = presence.Disconnect(laptop, nil)
	req.Equal("alice", userID)
	req.True(changed)
	req.Empty(snapshot)

	// Disconnect is safe to repeat
	_, _, changed = presence.Disconnect(laptop, nil)
	req.False(changed)
}

func TestPresence_Mark(t *testing.T) {
	req := require.New(t)
	presence := NewPresence(NewRegistry())

	req.True(presence.MarkOnline("bob"))
	req.False(presence.MarkOnline("bob"))
	req.True(presence.MarkOnline("alice"))
	req.Equal([]string{"alice", "bob"}, presence.Snapshot())

	req.True(presence.MarkOffline("bob"))
	req.False(presence.MarkOffline("bob"))
	req.Equal([]string{"alice"}, presence.Snapshot())
}

// N users connect, M of them disconnect, all concurrently and in random
// order: the online set ends up with exactly the N-M others.
func TestPresence_Converges_Under_Churn(t *testing.T) {
	req := require.New(t)
	const n, m = 200, 73
	registry := NewRegistry()
	presence := NewPresence(registry)

	users := make([]string, n)
	conns := make([]*recorder, n)
	for i := range users {
		users[i] = fmt.Sprintf("user-%03d", i)
		conns[i] = newRecorder()
	}
	leaving := rand.Perm(n)[:m]

	var wg sync.WaitGroup
	for i := range users {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			presence.Connect(users[i], conns[i], nil)
		}(i)
	}
	wg.Wait()

	for _, i := range leaving {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			presence.Disconnect(conns[i], nil)
			// Duplicate disconnects must not matter
			presence.Disconnect(conns[i], nil)
		}(i)
	}
	wg.Wait()

	var expected []string
	for i, userID := range users {
		if !slices.Contains(leaving, i) {
			expected = append(expected, userID)
		}
	}
	req.Equal(expected, presence.Snapshot())
	req.Len(registry.Connections(), n-m)
}

func TestPresence_Interleaved_Connect_Disconnect_Same_User(t *testing.T) {
	req := require.New(t)
	presence := NewPresence(NewRegistry())
	const devices = 50

	conns := make([]*recorder, devices)
	for i := range conns {
		conns[i] = newRecorder()
	}

	var wg sync.WaitGroup
	for i := range conns {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			presence.Connect("alice", conns[i], nil)
			if i%2 == 0 {
				presence.Disconnect(conns[i], nil)
			}
		}(i)
	}
	wg.Wait()

	// Odd devices are still bound
	req.Equal([]string{"alice"}, presence.Snapshot())

	for i := 1; i < devices; i += 2 {
		presence.Disconnect(conns[i], nil)
	}
	req.Empty(presence.Snapshot())
}

// Sets handed to publish grow one user at a time under concurrent connects:
// no older set is ever published after a newer one.
func TestPresence_Publishes_In_Change_Order(t *testing.T) {
	req := require.New(t)
	presence := NewPresence(NewRegistry())
	const n = 100

	// publish runs under the presence lock
	var published [][]string
	record := func(online []string) { published = append(published, online) }

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			presence.Connect(fmt.Sprintf("user-%03d", i), newRecorder(), record)
		}(i)
	}
	wg.Wait()

	req.Len(published, n)
	for i, online := range published {
		req.Len(online, i+1)
	}
	req.Equal(presence.Snapshot(), published[n-1])

	// A device that is not the last one publishes nothing
	extra := newRecorder()
	presence.Connect("user-000", extra, nil)
	_, _, changed := presence.Disconnect(extra, record)
	req.False(changed)
	req.Len(published, n)
}

func TestPresence_Reset(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	presence := NewPresence(registry)
	phone, laptop, other := newRecorder(), newRecorder(), newRecorder()
	presence.Connect("alice", phone, nil)
	presence.Connect("alice", laptop, nil)
	presence.Connect("bob", other, nil)

	live := presence.Reset()

	req.Len(live, 3)
	req.Empty(presence.Snapshot())
	req.Empty(registry.Connections())

	// Late disconnects of reset connections change nothing
	userID, _, changed := presence.Disconnect(phone, nil)
	req.Empty(userID)
	req.False(changed)
}
