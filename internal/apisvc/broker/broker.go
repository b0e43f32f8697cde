package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avvvet/ganggpt-services/internal/apisvc/service"
	"github.com/avvvet/ganggpt-services/internal/auth"
	"github.com/avvvet/ganggpt-services/internal/comm"
	natsx "github.com/avvvet/ganggpt-services/internal/nats"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// Publisher is the part of *nats.Conn the broker writes to.
type Publisher interface {
	Publish(subj string, data []byte) error
}

type Services struct {
	Players    *service.PlayerService
	Missions   *service.MissionService
	Companions *service.CompanionService
}

type Broker struct {
	Conn       Publisher
	Players    *service.PlayerService
	Missions   *service.MissionService
	Companions *service.CompanionService

	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	timeout time.Duration
}

// NewBroker handles at most workers bridge events at a time.
func NewBroker(conn Publisher, svc Services, workers int, timeout time.Duration) *Broker {
	if workers <= 0 {
		workers = 16
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Broker{
		Conn:       conn,
		Players:    svc.Players,
		Missions:   svc.Missions,
		Companions: svc.Companions,
		sem:        semaphore.NewWeighted(int64(workers)),
		timeout:    timeout,
	}
}

// consume bridge events, load balanced across apisvc instances
func (b *Broker) QueueSubscribe(nc *nats.Conn, topic, queueGroup string) (*nats.Subscription, error) {
	sub, err := nc.QueueSubscribe(topic, queueGroup, func(m *nats.Msg) {
		b.Dispatch(m.Data)
	})
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// Dispatch runs HandleMessage on a worker, blocking while all workers are busy.
func (b *Broker) Dispatch(data []byte) {
	if err := b.sem.Acquire(context.Background(), 1); err != nil {
		log.Errorf("broker acquire worker: %s", err)
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer b.sem.Release(1)
		b.HandleMessage(data)
	}()
}

// Wait blocks until in-flight events are handled.
func (b *Broker) Wait() {
	b.wg.Wait()
}

// HandleMessage processes one bridge event and publishes the reply, if any.
func (b *Broker) HandleMessage(data []byte) {
	msg := &comm.WSMessage{}
	if err := json.Unmarshal(data, msg); err != nil {
		log.Errorf("Error nats message %s", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	var err error
	switch msg.Type {
	case comm.EventPlayerJoin:
		err = b.playerJoin(ctx, msg)
	case comm.EventPlayerQuit:
		err = b.playerQuit(ctx, msg)
	case comm.EventPlayerChat:
		err = b.playerChat(ctx, msg)
	case comm.EventRequestMission:
		err = b.requestMission(ctx, msg)
	case comm.EventMissionComplete:
		err = b.missionComplete(ctx, msg)
	default:
		log.Warnf("unknown bridge event %q from socket %s", msg.Type, msg.SocketId)
		return
	}

	if err != nil {
		log.WithFields(log.Fields{
			"event":  msg.Type,
			"socket": msg.SocketId,
			"remote": msg.RemoteId,
		}).Warnf("bridge event failed: %s", err)
		b.reply(comm.EventError, comm.ErrorReply{Event: msg.Type, Message: err.Error()}, msg)
	}
}

var errBadPayload = errors.New("malformed event payload")

func unmarshal(msg *comm.WSMessage, v interface{}) error {
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return fmt.Errorf("%w: %s", errBadPayload, err)
	}
	return nil
}

func (b *Broker) playerJoin(ctx context.Context, msg *comm.WSMessage) error {
	var req comm.PlayerJoin
	if err := unmarshal(msg, &req); err != nil {
		return err
	}
	// game scripts may send the in-game id in the payload instead
	if msg.RemoteId == 0 {
		msg.RemoteId = req.RemoteId
	}

	p, err := b.Players.GetOrCreateFromGame(ctx, req.SocialClub, req.Name)
	if err != nil {
		return err
	}
	d, err := b.Players.Dashboard(ctx, p.ID)
	if err != nil {
		return err
	}

	welcome := comm.PlayerWelcome{
		PlayerId: p.ID,
		Name:     p.DisplayName,
		Balance:  d.Balance.StringFixed(2),
	}
	if d.Faction != nil {
		welcome.Faction = d.Faction.Name
	}
	b.reply(comm.EventPlayerWelcome, welcome, msg)
	return nil
}

func (b *Broker) playerQuit(ctx context.Context, msg *comm.WSMessage) error {
	var req comm.PlayerRef
	if err := unmarshal(msg, &req); err != nil {
		return err
	}
	return b.Players.SetOffline(ctx, req.PlayerId)
}

func (b *Broker) playerChat(ctx context.Context, msg *comm.WSMessage) error {
	var req comm.PlayerChat
	if err := unmarshal(msg, &req); err != nil {
		return err
	}

	r, err := b.Companions.ChatByName(ctx, req.PlayerId, req.Companion, req.Message)
	if err != nil {
		return err
	}
	b.reply(comm.EventCompanionReply, comm.CompanionReply{
		PlayerId:  req.PlayerId,
		Companion: r.Companion,
		Reply:     r.Reply,
	}, msg)
	return nil
}

func (b *Broker) requestMission(ctx context.Context, msg *comm.WSMessage) error {
	var req comm.MissionRequest
	if err := unmarshal(msg, &req); err != nil {
		return err
	}

	m, err := b.Missions.Generate(ctx, req.PlayerId, req.Difficulty, req.Location)
	if err != nil {
		return err
	}
	b.reply(comm.EventMissionOffer, comm.MissionOffer{
		PlayerId:   m.PlayerID,
		MissionId:  m.ID.String(),
		Title:      m.Title,
		Objectives: m.Objectives,
		Reward:     m.Reward.StringFixed(2),
		ExpiresAt:  m.ExpiresAt.Unix(),
	}, msg)
	return nil
}

func (b *Broker) missionComplete(ctx context.Context, msg *comm.WSMessage) error {
	var req comm.MissionRef
	if err := unmarshal(msg, &req); err != nil {
		return err
	}
	id, err := uuid.Parse(req.MissionId)
	if err != nil {
		return fmt.Errorf("%w: mission id %q", errBadPayload, req.MissionId)
	}

	// the game server names the player; it must own the mission
	if req.PlayerId != 0 {
		if _, err := b.Missions.Get(ctx, req.PlayerId, id); err != nil {
			return err
		}
	}

	res, err := b.Missions.Complete(ctx, auth.RoleService, id)
	if err != nil {
		return err
	}
	if err := b.Companions.RecordMissionEvent(ctx, res.Mission); err != nil {
		log.Warnf("record mission %s for companions: %s", id, err)
	}

	b.reply(comm.EventMissionCompleted, comm.MissionCompleted{
		MissionId: id.String(),
		PlayerId:  res.Mission.PlayerID,
		Reward:    res.Mission.Reward.StringFixed(2),
		Balance:   res.Balance.StringFixed(2),
	}, msg)
	return nil
}

// reply publishes to api.events, addressed to the socket and player handle
// the event came from.
func (b *Broker) reply(t string, v interface{}, to *comm.WSMessage) {
	msg, err := comm.NewMessage(t, v, to.SocketId, to.RemoteId)
	if err != nil {
		log.Errorf("unable to marshal %s for socket %s: %s", t, to.SocketId, err)
		return
	}
	b.PublishMessage(msg)
}

// PublishMessage sends msg to the bridge.
func (b *Broker) PublishMessage(msg *comm.WSMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Error %s", err)
		return err
	}
	return b.Publish(natsx.APIEvents, payload)
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}
