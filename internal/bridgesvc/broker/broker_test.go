package broker

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/avvvet/ganggpt-services/internal/bridgesvc/ws"
	"github.com/avvvet/ganggpt-services/internal/comm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHub struct {
	mu        sync.Mutex
	sockets   map[string][]comm.WSMessage
	broadcast []comm.WSMessage
}

func newFakeHub(sockets ...string) *fakeHub {
	h := &fakeHub{sockets: map[string][]comm.WSMessage{}}
	for _, s := range sockets {
		h.sockets[s] = nil
	}
	return h
}

func (h *fakeHub) Send(socketId string, m *comm.WSMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sockets[socketId]; !ok {
		return fmt.Errorf("%w: %s", ws.ErrUnknownSocket, socketId)
	}
	h.sockets[socketId] = append(h.sockets[socketId], *m)
	return nil
}

func (h *fakeHub) Broadcast(m *comm.WSMessage) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcast = append(h.broadcast, *m)
	return len(h.sockets)
}

func payload(t *testing.T, typ, socketId string, remoteId int) []byte {
	t.Helper()
	m, err := comm.NewMessage(typ, map[string]string{"mission_id": "m-1"}, socketId, remoteId)
	require.NoError(t, err)
	data, err := json.Marshal(m)
	require.NoError(t, err)
	return data
}

func TestHandleMessage_RoutesToSocket(t *testing.T) {
	hub := newFakeHub("sock-1", "sock-2")
	b := NewBroker(nil, hub)

	b.HandleMessage(payload(t, comm.EventCompanionReply, "sock-2", 12))

	assert.Empty(t, hub.sockets["sock-1"])
	require.Len(t, hub.sockets["sock-2"], 1)
	got := hub.sockets["sock-2"][0]
	assert.Equal(t, comm.EventCompanionReply, got.Type)
	assert.Equal(t, 12, got.RemoteId)
	assert.Empty(t, hub.broadcast)
}

func TestHandleMessage_BroadcastsWithoutSocket(t *testing.T) {
	hub := newFakeHub("sock-1", "sock-2")
	b := NewBroker(nil, hub)

	b.HandleMessage(payload(t, comm.EventMissionExpired, "", 0))

	require.Len(t, hub.broadcast, 1)
	assert.Equal(t, comm.EventMissionExpired, hub.broadcast[0].Type)
}

func TestHandleMessage_DropsUnknownSocketAndGarbage(t *testing.T) {
	hub := newFakeHub("sock-1")
	b := NewBroker(nil, hub)

	b.HandleMessage(payload(t, comm.EventPlayerWelcome, "gone", 3))
	b.HandleMessage([]byte("{"))

	assert.Empty(t, hub.sockets["sock-1"])
	assert.Empty(t, hub.broadcast)
}
