package broker

import (
	"encoding/json"
	"errors"

	"github.com/avvvet/ganggpt-services/internal/bridgesvc/ws"
	"github.com/avvvet/ganggpt-services/internal/comm"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Sender delivers apisvc replies to game server sockets.
type Sender interface {
	Send(socketId string, m *comm.WSMessage) error
	Broadcast(m *comm.WSMessage) int
}

type Broker struct {
	Conn *nats.Conn
	hub  Sender
}

func NewBroker(conn *nats.Conn, hub Sender) *Broker {
	return &Broker{
		Conn: conn,
		hub:  hub,
	}
}

// consume replies and notifications from apisvc
func (b *Broker) Subscribe(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, func(m *nats.Msg) {
		b.HandleMessage(m.Data)
	})
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// HandleMessage routes a message to the socket it names, or to every socket
// when it names none.
func (b *Broker) HandleMessage(data []byte) {
	message := &comm.WSMessage{}
	if err := json.Unmarshal(data, message); err != nil {
		log.Errorf("Error %s", err)
		return
	}

	if message.SocketId == "" {
		n := b.hub.Broadcast(message)
		log.Debugf("broadcast %s to %d sockets", message.Type, n)
		return
	}

	err := b.hub.Send(message.SocketId, message)
	switch {
	case errors.Is(err, ws.ErrUnknownSocket):
		// closed, or held by another bridge instance
		log.Infof("dropping %s for closed socket %s", message.Type, message.SocketId)
	case err != nil:
		log.Errorf("send %s to socket %s: %v", message.Type, message.SocketId, err)
	}
}
