package realtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu       sync.Mutex
	messages [][]byte
	closed   bool
}

func (c *fakeClient) Send(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message)
	return true
}

func (c *fakeClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeClient) received() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func TestHub_PublishTargetsListedUsersOnly(t *testing.T) {
	hub := GetHub()

	alice := &fakeClient{}
	bob := &fakeClient{}
	hub.Register("hub-alice", alice)
	hub.Register("hub-bob", bob)
	defer hub.Unregister("hub-alice", alice)
	defer hub.Unregister("hub-bob", bob)

	hub.Publish([]string{"hub-alice"}, ChangeEvent{
		Table: "tasks",
		Type:  EventInsert,
		New:   map[string]any{"id": "t1"},
	})

	require.Equal(t, 1, alice.received())
	require.Equal(t, 0, bob.received())
	require.Contains(t, string(alice.messages[0]), `"table":"tasks"`)
}

func TestHub_MultipleClientsPerUser(t *testing.T) {
	hub := GetHub()

	tab1 := &fakeClient{}
	tab2 := &fakeClient{}
	hub.Register("hub-multi", tab1)
	hub.Register("hub-multi", tab2)
	defer hub.Unregister("hub-multi", tab1)
	defer hub.Unregister("hub-multi", tab2)

	hub.Broadcast("hub-multi", []byte("ping"))
	require.Equal(t, 1, tab1.received())
	require.Equal(t, 1, tab2.received())
}

func TestHub_DisconnectClosesAllClients(t *testing.T) {
	hub := GetHub()

	c1 := &fakeClient{}
	c2 := &fakeClient{}
	hub.Register("hub-gone", c1)
	hub.Register("hub-gone", c2)

	hub.Disconnect("hub-gone")
	require.True(t, c1.closed)
	require.True(t, c2.closed)

	// Broadcasts to a disconnected user are dropped.
	hub.Broadcast("hub-gone", []byte("ping"))
	require.Equal(t, 0, c1.received())
}
