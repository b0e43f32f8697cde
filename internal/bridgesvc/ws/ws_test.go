package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/avvvet/ganggpt-services/internal/comm"
	natsx "github.com/avvvet/ganggpt-services/internal/nats"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	subj []string
	msgs []comm.WSMessage
	err  error
}

func (r *recorder) Publish(subj string, data []byte) error {
	if r.err != nil {
		return r.err
	}
	var m comm.WSMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subj = append(r.subj, subj)
	r.msgs = append(r.msgs, m)
	return nil
}

// connect opens a websocket to a test server that registers the server side
// with hub under socketId.
func connect(t *testing.T, hub *Ws, socketId string) *websocket.Conn {
	t.Helper()
	stored := make(chan struct{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.StoreConnection(socketId, conn)
		close(stored)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	select {
	case <-stored:
	case <-time.After(2 * time.Second):
		t.Fatal("server side never registered")
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) comm.WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m comm.WSMessage
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestForwardEvent_StampsSocketAndPublishes(t *testing.T) {
	pub := &recorder{}
	hub := NewWs(pub)

	msg := &comm.WSMessage{Type: comm.EventPlayerChat, Data: json.RawMessage(`{"player_id":1}`), SocketId: "spoofed", RemoteId: 7}
	require.NoError(t, hub.ForwardEvent("sock-1", msg))

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, natsx.BridgeEvents, pub.subj[0])
	assert.Equal(t, "sock-1", pub.msgs[0].SocketId)
	assert.Equal(t, 7, pub.msgs[0].RemoteId)
	assert.JSONEq(t, `{"player_id":1}`, string(pub.msgs[0].Data))
}

func TestForwardEvent_RejectsReplyTypes(t *testing.T) {
	pub := &recorder{}
	hub := NewWs(pub)

	for _, typ := range []string{comm.EventPlayerWelcome, comm.EventError, "", "drop-tables"} {
		err := hub.ForwardEvent("sock-1", &comm.WSMessage{Type: typ})
		assert.ErrorIs(t, err, ErrUnknownEvent, typ)
	}
	assert.Empty(t, pub.msgs)
}

func TestForwardEvent_PublishFailure(t *testing.T) {
	hub := NewWs(&recorder{err: errors.New("nats: connection closed")})

	err := hub.ForwardEvent("sock-1", &comm.WSMessage{Type: comm.EventPlayerQuit})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownEvent)
}

func TestSendAndBroadcast(t *testing.T) {
	hub := NewWs(&recorder{})
	a := connect(t, hub, "a")
	b := connect(t, hub, "b")
	assert.Equal(t, 2, hub.Count())

	require.NoError(t, hub.Send("a", &comm.WSMessage{Type: comm.EventCompanionReply, SocketId: "a"}))
	assert.Equal(t, comm.EventCompanionReply, readMessage(t, a).Type)

	assert.Equal(t, 2, hub.Broadcast(&comm.WSMessage{Type: comm.EventMissionExpired}))
	assert.Equal(t, comm.EventMissionExpired, readMessage(t, a).Type)
	assert.Equal(t, comm.EventMissionExpired, readMessage(t, b).Type)

	hub.HandleDisconnect("b")
	assert.Equal(t, 1, hub.Count())
	err := hub.Send("b", &comm.WSMessage{Type: comm.EventError})
	assert.ErrorIs(t, err, ErrUnknownSocket)
}

func TestSend_ConcurrentWritesAreSerialized(t *testing.T) {
	hub := NewWs(&recorder{})
	conn := connect(t, hub, "a")

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, hub.Send("a", &comm.WSMessage{Type: comm.EventCompanionReply}))
		}()
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		assert.Equal(t, comm.EventCompanionReply, readMessage(t, conn).Type)
	}
}

func TestSocketMessage_UnknownEventRepliesError(t *testing.T) {
	pub := &recorder{}
	hub := NewWs(pub)
	conn := connect(t, hub, "a")

	hub.SocketMessage("a", &comm.WSMessage{Type: "player-welcome"})

	m := readMessage(t, conn)
	assert.Equal(t, comm.EventError, m.Type)
	var e comm.ErrorReply
	require.NoError(t, json.Unmarshal(m.Data, &e))
	assert.Equal(t, "player-welcome", e.Event)
	assert.Empty(t, pub.msgs)
}
