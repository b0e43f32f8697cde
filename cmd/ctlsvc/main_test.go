package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/avvvet/ganggpt-services/internal/apisvc/models"
	"github.com/avvvet/ganggpt-services/internal/apisvc/service"
	"github.com/avvvet/ganggpt-services/internal/comm"
	natsx "github.com/avvvet/ganggpt-services/internal/nats"
	"github.com/avvvet/ganggpt-services/internal/testing/fakes"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	subjects []string
	msgs     []comm.WSMessage
}

func (r *recorder) Publish(subj string, data []byte) error {
	var m comm.WSMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	r.subjects = append(r.subjects, subj)
	r.msgs = append(r.msgs, m)
	return nil
}

func seedMission(t *testing.T, db *fakes.DB, playerID int64, status string, expiresAt time.Time) *models.Mission {
	t.Helper()
	m := &models.Mission{
		ID:         uuid.New(),
		PlayerID:   playerID,
		Title:      "Corner Run",
		Objectives: []string{"Deliver the package"},
		Difficulty: "easy",
		Reward:     decimal.NewFromInt(500),
		Source:     models.SourceTemplate,
		Status:     status,
		ExpiresAt:  expiresAt,
	}
	require.NoError(t, db.Missions().Create(context.Background(), m))
	return m
}

func TestExpireMissions_PublishesEachExpiry(t *testing.T) {
	db := fakes.New()
	p := db.SeedPlayer(t, "Grove_Carl")
	past := time.Now().Add(-time.Minute)

	overdue := seedMission(t, db, p.ID, models.MissionActive, past)
	stale := seedMission(t, db, p.ID, models.MissionAvailable, past)
	seedMission(t, db, p.ID, models.MissionActive, time.Now().Add(time.Hour))
	seedMission(t, db, p.ID, models.MissionCompleted, past)

	svc := service.NewMissionService(db.Missions(), db.Players(), db.Factions(), nil, nil, service.MissionConfig{MaxActive: 3})
	pub := &recorder{}

	n, err := expireMissions(context.Background(), svc, pub)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, pub.msgs, 2)
	ids := map[string]bool{}
	for i, m := range pub.msgs {
		assert.Equal(t, natsx.APIEvents, pub.subjects[i])
		assert.Equal(t, comm.EventMissionExpired, m.Type)
		assert.Empty(t, m.SocketId)

		var ref comm.MissionRef
		require.NoError(t, json.Unmarshal(m.Data, &ref))
		assert.Equal(t, p.ID, ref.PlayerId)
		ids[ref.MissionId] = true
	}
	assert.True(t, ids[overdue.ID.String()])
	assert.True(t, ids[stale.ID.String()])

	// a second sweep finds nothing
	n, err = expireMissions(context.Background(), svc, pub)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, pub.msgs, 2)
}

func TestPruneMemories(t *testing.T) {
	db := fakes.New()
	p := db.SeedPlayer(t, "Grove_Carl")
	ctx := context.Background()
	dez := &models.Companion{Name: "Dez Morales", Persona: "Retired getaway driver."}
	require.NoError(t, db.Companions().Upsert(ctx, dez))

	old := time.Now().Add(-60 * 24 * time.Hour)
	for _, imp := range []int{2, 3, 9} {
		require.NoError(t, db.Memories().Add(ctx, &models.Memory{
			CompanionID: dez.ID,
			PlayerID:    p.ID,
			Kind:        models.MemoryDialogue,
			Content:     "old talk",
			Importance:  imp,
			CreatedAt:   old,
		}))
	}

	svc := service.NewCompanionService(db.Companions(), db.Memories(), db.Players(), db.Factions(), nil, nil, service.CompanionConfig{
		KeepPerPair: 100,
		Retention:   30 * 24 * time.Hour,
	})
	n, err := pruneMemories(ctx, svc)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 1, db.Memories().Count(dez.ID, p.ID))
}
