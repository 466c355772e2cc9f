package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/mathroom/internal/room"
	"github.com/iudanet/mathroom/pkg/api"
)

const waitFor = 2 * time.Second
const tick = 10 * time.Millisecond

func connectMemory(t *testing.T, n *Network, peerID, roomID string) (*Memory, *recorder) {
	t.Helper()
	m := n.NewMemory(peerID)
	rec := &recorder{}
	m.SetHandler(rec)
	require.NoError(t, m.Connect(context.Background(), room.ID(roomID)))
	t.Cleanup(func() { _ = m.Disconnect() })
	return m, rec
}

func TestMemory_PeersLinkAndExchange(t *testing.T) {
	n := NewNetwork()
	a, recA := connectMemory(t, n, "peer-a", "abc")
	b, recB := connectMemory(t, n, "peer-b", "abc")

	assert.Equal(t, Status{State: StateConnected, Peers: 1}, a.Status())
	assert.Equal(t, Status{State: StateConnected, Peers: 1}, b.Status())
	require.Eventually(t, func() bool { return len(recA.Up()) == 1 && len(recB.Up()) == 1 }, waitFor, tick)
	assert.Equal(t, []string{"peer-b"}, recA.Up())
	assert.Equal(t, []string{"peer-a"}, recB.Up())

	for i := 0; i < 10; i++ {
		require.NoError(t, a.Broadcast(api.Envelope{Type: api.TypeUpdate, Payload: []byte{'0' + byte(i)}}))
	}
	require.NoError(t, b.Send("peer-a", api.Envelope{Type: api.TypePresence}))

	require.Eventually(t, func() bool { return len(recB.Messages()) == 10 }, waitFor, tick)
	for i, msg := range recB.Messages() {
		assert.Equal(t, "peer-a", msg.from)
		assert.Equal(t, "peer-a", msg.env.From)
		assert.Equal(t, []byte{'0' + byte(i)}, []byte(msg.env.Payload), "Order between a pair is kept")
	}

	require.Eventually(t, func() bool { return len(recA.Messages()) == 1 }, waitFor, tick)
	assert.Equal(t, api.TypePresence, recA.Messages()[0].env.Type)
}

func TestMemory_RoomIsolation(t *testing.T) {
	n := NewNetwork()
	a, _ := connectMemory(t, n, "peer-a", "one")
	_, recB := connectMemory(t, n, "peer-b", "two")

	require.NoError(t, a.Broadcast(api.Envelope{Type: api.TypeUpdate}))
	assert.ErrorIs(t, a.Send("peer-b", api.Envelope{Type: api.TypeUpdate}), ErrUnknownPeer)

	assert.Never(t, func() bool { return len(recB.Messages()) > 0 || len(recB.Up()) > 0 }, 100*time.Millisecond, tick)
	assert.Equal(t, 0, a.Status().Peers)
}

func TestMemory_DisconnectNotifiesPeers(t *testing.T) {
	n := NewNetwork()
	a, recA := connectMemory(t, n, "peer-a", "abc")
	b := n.NewMemory("peer-b")
	recB := &recorder{}
	b.SetHandler(recB)
	require.NoError(t, b.Connect(context.Background(), "abc"))

	assert.ErrorIs(t, b.Connect(context.Background(), "abc"), ErrAlreadyConnected)

	require.NoError(t, b.Disconnect())
	require.NoError(t, b.Disconnect(), "Second disconnect is a no-op")

	require.Eventually(t, func() bool { return len(recA.Down()) == 1 }, waitFor, tick)
	assert.Equal(t, []string{"peer-b"}, recA.Down())
	assert.Equal(t, []string{"peer-a"}, recB.Down())
	status, ok := recB.LastStatus()
	require.True(t, ok)
	assert.Equal(t, StateDisconnected, status.State)
	assert.Equal(t, Status{State: StateConnected, Peers: 0}, a.Status())

	assert.ErrorIs(t, b.Broadcast(api.Envelope{}), ErrNotConnected)
	assert.ErrorIs(t, b.Send("peer-a", api.Envelope{}), ErrNotConnected)

	// Повторное подключение снова связывает участников
	require.NoError(t, b.Connect(context.Background(), "abc"))
	require.Eventually(t, func() bool { return len(recA.Up()) == 2 }, waitFor, tick)
}

func TestMemory_GeneratesPeerID(t *testing.T) {
	n := NewNetwork()
	assert.NotEmpty(t, n.NewMemory("").PeerID())
	assert.NotEqual(t, n.NewMemory("").PeerID(), n.NewMemory("").PeerID())
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "disconnected", Status{}.String())
	assert.Equal(t, "connecting", Status{State: StateConnecting}.String())
	assert.Equal(t, "connected(3)", Status{State: StateConnected, Peers: 3}.String())
	assert.Equal(t, "state(7)", State(7).String())
}
