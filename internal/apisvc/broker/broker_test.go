package broker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/avvvet/ganggpt-services/internal/apisvc/models"
	"github.com/avvvet/ganggpt-services/internal/apisvc/service"
	"github.com/avvvet/ganggpt-services/internal/auth"
	"github.com/avvvet/ganggpt-services/internal/catalog"
	"github.com/avvvet/ganggpt-services/internal/comm"
	natsx "github.com/avvvet/ganggpt-services/internal/nats"
	"github.com/avvvet/ganggpt-services/internal/testing/fakes"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type published struct {
	subject string
	msg     comm.WSMessage
}

type recorder struct {
	mu   sync.Mutex
	msgs []published
}

func (r *recorder) Publish(subj string, data []byte) error {
	var m comm.WSMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, published{subject: subj, msg: m})
	return nil
}

func (r *recorder) last(t *testing.T) comm.WSMessage {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.msgs)
	p := r.msgs[len(r.msgs)-1]
	assert.Equal(t, natsx.APIEvents, p.subject)
	return p.msg
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

type fixture struct {
	db  *fakes.DB
	gen *fakes.Generator
	pub *recorder
	b   *Broker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{
		db:  fakes.New(),
		gen: &fakes.Generator{Reply: "You again? Make it quick."},
		pub: &recorder{},
	}
	cat, err := catalog.Default()
	require.NoError(t, err)

	db := fx.db
	svc := Services{
		Players: service.NewPlayerService(db.Players(), db.Ledger(), db.Factions(), db.Missions(), auth.NewTokenAuth("broker-secret-0123456789"), service.PlayerConfig{
			StarterBalance: decimal.NewFromInt(5000),
			HashCost:       bcrypt.MinCost,
		}),
		Missions:   service.NewMissionService(db.Missions(), db.Players(), db.Factions(), fx.gen, cat, service.MissionConfig{MaxActive: 3}),
		Companions: service.NewCompanionService(db.Companions(), db.Memories(), db.Players(), db.Factions(), fx.gen, nil, service.CompanionConfig{Recent: 5, Important: 5}),
	}
	fx.b = NewBroker(fx.pub, svc, 4, time.Second)
	return fx
}

func event(t *testing.T, typ string, v interface{}) []byte {
	t.Helper()
	msg, err := comm.NewMessage(typ, v, "sock-1", 42)
	require.NoError(t, err)
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return data
}

func TestPlayerJoin_WelcomesNewPlayer(t *testing.T) {
	fx := newFixture(t)

	fx.b.HandleMessage(event(t, comm.EventPlayerJoin, comm.PlayerJoin{SocialClub: "Grove_Carl", Name: "CJ"}))

	msg := fx.pub.last(t)
	assert.Equal(t, comm.EventPlayerWelcome, msg.Type)
	assert.Equal(t, "sock-1", msg.SocketId)
	assert.Equal(t, 42, msg.RemoteId)

	var w comm.PlayerWelcome
	require.NoError(t, json.Unmarshal(msg.Data, &w))
	assert.Equal(t, "CJ", w.Name)
	assert.Equal(t, "5000.00", w.Balance)
	assert.NotZero(t, w.PlayerId)

	// second join finds the same player and does not grant again
	fx.b.HandleMessage(event(t, comm.EventPlayerJoin, comm.PlayerJoin{SocialClub: "Grove_Carl", Name: "CJ"}))
	var again comm.PlayerWelcome
	require.NoError(t, json.Unmarshal(fx.pub.last(t).Data, &again))
	assert.Equal(t, w.PlayerId, again.PlayerId)
	assert.Equal(t, "5000.00", again.Balance)
}

func TestPlayerJoin_RemoteIdFromPayload(t *testing.T) {
	fx := newFixture(t)

	fx.b.HandleMessage([]byte(`{"type":"player-join","socketid":"sock-9","data":{"social_club":"Grove_Carl","name":"CJ","remote_id":7}}`))

	msg := fx.pub.last(t)
	assert.Equal(t, comm.EventPlayerWelcome, msg.Type)
	assert.Equal(t, "sock-9", msg.SocketId)
	assert.Equal(t, 7, msg.RemoteId)

	// the envelope wins when both are set
	fx.b.HandleMessage(event(t, comm.EventPlayerJoin, comm.PlayerJoin{SocialClub: "Grove_Carl", Name: "CJ", RemoteId: 7}))
	assert.Equal(t, 42, fx.pub.last(t).RemoteId)
}

func TestPlayerJoin_BannedGetsError(t *testing.T) {
	fx := newFixture(t)
	p := fx.db.SeedPlayer(t, "Grove_Ryder")
	fx.db.MutatePlayer(p.ID, func(p *models.Player) { p.Status = models.PlayerBanned })

	fx.b.HandleMessage(event(t, comm.EventPlayerJoin, comm.PlayerJoin{SocialClub: "Grove_Ryder"}))

	msg := fx.pub.last(t)
	assert.Equal(t, comm.EventError, msg.Type)
	var e comm.ErrorReply
	require.NoError(t, json.Unmarshal(msg.Data, &e))
	assert.Equal(t, comm.EventPlayerJoin, e.Event)
	assert.Equal(t, service.ErrPlayerBanned.Error(), e.Message)
}

func TestPlayerQuit_SetsOfflineSilently(t *testing.T) {
	fx := newFixture(t)
	p := fx.db.SeedPlayer(t, "Grove_Carl")

	fx.b.HandleMessage(event(t, comm.EventPlayerQuit, comm.PlayerRef{PlayerId: p.ID}))

	assert.Zero(t, fx.pub.count())
	got, err := fx.db.Players().GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlayerOffline, got.Status)
}

func TestPlayerChat_RepliesAsCompanion(t *testing.T) {
	fx := newFixture(t)
	p := fx.db.SeedPlayer(t, "Grove_Carl")
	require.NoError(t, fx.db.Companions().Upsert(context.Background(), &models.Companion{Name: "Lucia Gambetti", Persona: "Consigliere."}))

	fx.b.HandleMessage(event(t, comm.EventPlayerChat, comm.PlayerChat{PlayerId: p.ID, Companion: "lucia gambetti", Message: "Any work?"}))

	msg := fx.pub.last(t)
	require.Equal(t, comm.EventCompanionReply, msg.Type)
	var r comm.CompanionReply
	require.NoError(t, json.Unmarshal(msg.Data, &r))
	assert.Equal(t, "Lucia Gambetti", r.Companion)
	assert.Equal(t, "You again? Make it quick.", r.Reply)
	assert.Equal(t, p.ID, r.PlayerId)
}

func TestRequestMissionAndComplete(t *testing.T) {
	fx := newFixture(t)
	p := fx.db.SeedPlayer(t, "Grove_Carl")

	fx.b.HandleMessage(event(t, comm.EventRequestMission, comm.MissionRequest{PlayerId: p.ID, Difficulty: "hard", Location: "Port of LS"}))

	msg := fx.pub.last(t)
	require.Equal(t, comm.EventMissionOffer, msg.Type)
	var offer comm.MissionOffer
	require.NoError(t, json.Unmarshal(msg.Data, &offer))
	assert.NotEmpty(t, offer.Title)
	assert.NotEmpty(t, offer.Objectives)
	assert.Greater(t, offer.ExpiresAt, time.Now().Unix())

	ctx := context.Background()
	svc := fx.b.Missions
	m, err := svc.Get(ctx, p.ID, mustUUID(t, offer.MissionId))
	require.NoError(t, err)
	_, err = svc.Accept(ctx, p.ID, m.ID)
	require.NoError(t, err)

	other := fx.db.SeedPlayer(t, "Ballas_Tony")
	fx.b.HandleMessage(event(t, comm.EventMissionComplete, comm.MissionRef{MissionId: offer.MissionId, PlayerId: other.ID}))
	assert.Equal(t, comm.EventError, fx.pub.last(t).Type)

	fx.b.HandleMessage(event(t, comm.EventMissionComplete, comm.MissionRef{MissionId: offer.MissionId, PlayerId: p.ID}))
	msg = fx.pub.last(t)
	require.Equal(t, comm.EventMissionCompleted, msg.Type)
	var done comm.MissionCompleted
	require.NoError(t, json.Unmarshal(msg.Data, &done))
	assert.Equal(t, offer.Reward, done.Reward)
	assert.Equal(t, offer.Reward, done.Balance)
}

func TestHandleMessage_BadInput(t *testing.T) {
	fx := newFixture(t)

	fx.b.HandleMessage([]byte("not json"))
	fx.b.HandleMessage(event(t, "player-dance", nil))
	assert.Zero(t, fx.pub.count())

	fx.b.HandleMessage(event(t, comm.EventMissionComplete, comm.MissionRef{MissionId: "nope"}))
	msg := fx.pub.last(t)
	assert.Equal(t, comm.EventError, msg.Type)
}

func TestDispatch_HandlesConcurrently(t *testing.T) {
	fx := newFixture(t)
	for i := 0; i < 20; i++ {
		p := fx.db.SeedPlayer(t, "Crew_"+string(rune('A'+i)))
		fx.b.Dispatch(event(t, comm.EventPlayerQuit, comm.PlayerRef{PlayerId: p.ID}))
	}
	fx.b.Wait()

	players, err := fx.db.Players().List(context.Background(), 100, 0)
	require.NoError(t, err)
	for _, p := range players {
		assert.Equal(t, models.PlayerOffline, p.Status, p.SocialClub)
	}
}

func mustUUID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	require.NoError(t, err)
	return id
}
