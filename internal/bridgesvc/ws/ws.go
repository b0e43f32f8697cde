package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avvvet/ganggpt-services/internal/comm"
	natsx "github.com/avvvet/ganggpt-services/internal/nats"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

var (
	ErrUnknownEvent  = errors.New("unknown event type")
	ErrUnknownSocket = errors.New("unknown socket")
)

const writeWait = 10 * time.Second

// Publisher is the part of *nats.Conn the hub writes to.
type Publisher interface {
	Publish(subj string, data []byte) error
}

// client pairs a connection with the lock that serializes writes to it.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(m *comm.WSMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(m)
}

type Ws struct {
	connMap sync.Map // socketId -> *client
	pub     Publisher
}

func NewWs(pub Publisher) *Ws {
	return &Ws{pub: pub}
}

// handle socket message from game servers
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	if err := s.ForwardEvent(socketId, message); err != nil {
		log.Warnf("socket %s event %q dropped: %v", socketId, message.Type, err)
		s.SendError(socketId, message.Type, err.Error())
	}
}

// ForwardEvent stamps the socket id on a game event and publishes it to
// apisvc. An empty socketId makes replies broadcast.
func (s *Ws) ForwardEvent(socketId string, msg *comm.WSMessage) error {
	if !comm.IsGameEvent(msg.Type) {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, msg.Type)
	}
	msg.SocketId = socketId

	bytes, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Type, err)
	}
	if err := s.pub.Publish(natsx.BridgeEvents, bytes); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Type, err)
	}

	log.Debugf("forwarded %s from socket %q remote %d", msg.Type, socketId, msg.RemoteId)
	return nil
}

func (s *Ws) StoreConnection(socketId string, conn *websocket.Conn) {
	s.connMap.Store(socketId, &client{conn: conn})
}

func (s *Ws) HandleDisconnect(socketId string) {
	s.connMap.Delete(socketId)
}

// Send writes m to one socket.
func (s *Ws) Send(socketId string, m *comm.WSMessage) error {
	c, ok := s.connMap.Load(socketId)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSocket, socketId)
	}
	return c.(*client).write(m)
}

// Broadcast writes m to every connected socket and returns how many got it.
func (s *Ws) Broadcast(m *comm.WSMessage) int {
	sent := 0
	s.connMap.Range(func(key, value interface{}) bool {
		if err := value.(*client).write(m); err != nil {
			log.Warnf("broadcast %s to socket %s: %v", m.Type, key, err)
			return true
		}
		sent++
		return true
	})
	return sent
}

// SendError tells a socket its event was rejected.
func (s *Ws) SendError(socketId, event, message string) {
	m, err := comm.NewMessage(comm.EventError, comm.ErrorReply{Event: event, Message: message}, socketId, 0)
	if err != nil {
		return
	}
	if err := s.Send(socketId, m); err != nil {
		log.Errorf("Failed to send error message to socket %s: %v", socketId, err)
	}
}

func (s *Ws) Count() int {
	n := 0
	s.connMap.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}
