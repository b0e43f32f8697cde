package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/avvvet/ganggpt-services/internal/ai"
	"github.com/avvvet/ganggpt-services/internal/apisvc/models"
	"github.com/avvvet/ganggpt-services/internal/testing/fakes"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type companionFixture struct {
	db      *fakes.DB
	gen     *fakes.Generator
	archive *fakes.Archive
	svc     *CompanionService
	dez     *models.Companion
	player  *models.Player
}

func newCompanionFixture(t *testing.T, cfg CompanionConfig) *companionFixture {
	t.Helper()
	fx := &companionFixture{
		db:      fakes.New(),
		gen:     &fakes.Generator{Reply: "Keep your head down, homie."},
		archive: &fakes.Archive{},
	}
	fx.svc = NewCompanionService(fx.db.Companions(), fx.db.Memories(), fx.db.Players(), fx.db.Factions(), fx.gen, fx.archive, cfg)

	fx.dez = &models.Companion{Name: "Dez Morales", Persona: "Retired getaway driver."}
	require.NoError(t, fx.db.Companions().Upsert(context.Background(), fx.dez))
	fx.player = fx.db.SeedPlayer(t, "Grove_Carl")
	return fx
}

func (fx *companionFixture) remember(t *testing.T, content string, importance int, at time.Time) *models.Memory {
	t.Helper()
	m := &models.Memory{
		CompanionID: fx.dez.ID,
		PlayerID:    fx.player.ID,
		Kind:        models.MemoryDialogue,
		Content:     content,
		Importance:  importance,
		CreatedAt:   at,
	}
	require.NoError(t, fx.db.Memories().Add(context.Background(), m))
	return m
}

func TestChat_RemembersAndArchives(t *testing.T) {
	fx := newCompanionFixture(t, CompanionConfig{Recent: 5, Important: 5})
	ctx := context.Background()

	reply, err := fx.svc.Chat(ctx, fx.player.ID, fx.dez.ID, "  I owe the Ballas money, they want revenge!  ")
	require.NoError(t, err)
	assert.Equal(t, "Keep your head down, homie.", reply.Reply)
	assert.Equal(t, "Dez Morales", reply.Companion)
	assert.Equal(t, 7, reply.Importance)

	mem, err := fx.svc.Memories(ctx, fx.player.ID, fx.dez.ID, 10)
	require.NoError(t, err)
	require.Len(t, mem, 1)
	assert.Equal(t, models.MemoryDialogue, mem[0].Kind)
	assert.Contains(t, mem[0].Content, "I owe the Ballas money")
	assert.Contains(t, mem[0].Content, "Keep your head down")

	saved := fx.archive.Saved()
	require.Len(t, saved, 1)
	assert.Equal(t, fx.player.ID, saved[0].PlayerID)
	assert.Equal(t, "I owe the Ballas money, they want revenge!", saved[0].Message)
	assert.Equal(t, 100, saved[0].PromptTokens)
}

func TestChat_PromptCarriesMemoriesInOrder(t *testing.T) {
	fx := newCompanionFixture(t, CompanionConfig{Recent: 2, Important: 1})
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	fx.remember(t, "oldest but vital", 10, base)
	fx.remember(t, "forgettable", 1, base.Add(time.Hour))
	fx.remember(t, "newer", 2, base.Add(2*time.Hour))
	fx.remember(t, "newest", 2, base.Add(3*time.Hour))

	_, err := fx.svc.Chat(context.Background(), fx.player.ID, fx.dez.ID, "what do you remember?")
	require.NoError(t, err)

	calls := fx.gen.Calls()
	require.Len(t, calls, 1)
	sys := calls[0][0].Content
	assert.NotContains(t, sys, "forgettable")

	vital := strings.Index(sys, "oldest but vital")
	newer := strings.Index(sys, "newer")
	newest := strings.Index(sys, "newest")
	require.True(t, vital >= 0 && newer >= 0 && newest >= 0, sys)
	assert.Less(t, vital, newer)
	assert.Less(t, newer, newest)
	assert.Equal(t, ai.User("what do you remember?"), calls[0][1])
}

func TestChat_Errors(t *testing.T) {
	fx := newCompanionFixture(t, CompanionConfig{Recent: 5})
	ctx := context.Background()

	_, err := fx.svc.Chat(ctx, fx.player.ID, fx.dez.ID, "   ")
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = fx.svc.Chat(ctx, fx.player.ID, fx.dez.ID, strings.Repeat("a", 501))
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = fx.svc.Chat(ctx, fx.player.ID, 999, "hi")
	assert.ErrorIs(t, err, ErrCompanionNotFound)

	_, err = fx.svc.Chat(ctx, 999, fx.dez.ID, "hi")
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	fx.gen.Err = fmt.Errorf("wrapped: %w", ai.ErrContentFiltered)
	_, err = fx.svc.Chat(ctx, fx.player.ID, fx.dez.ID, "hi")
	assert.ErrorIs(t, err, ErrContentFiltered)

	fx.gen.Err = &ai.UpstreamError{StatusCode: 500, Message: "boom"}
	_, err = fx.svc.Chat(ctx, fx.player.ID, fx.dez.ID, "hi")
	assert.ErrorIs(t, err, ErrAIUnavailable)

	fx.gen.Err = nil
	fx.gen.Disabled = true
	_, err = fx.svc.Chat(ctx, fx.player.ID, fx.dez.ID, "hi")
	assert.ErrorIs(t, err, ErrAIDisabled)

	assert.Zero(t, fx.db.Memories().Count(fx.dez.ID, fx.player.ID))
}

func TestChat_ArchiveFailureDoesNotFailChat(t *testing.T) {
	fx := newCompanionFixture(t, CompanionConfig{Recent: 5})
	fx.archive.Err = errors.New("mongo down")

	_, err := fx.svc.Chat(context.Background(), fx.player.ID, fx.dez.ID, "hi")
	require.NoError(t, err)
	assert.Equal(t, 1, fx.db.Memories().Count(fx.dez.ID, fx.player.ID))
}

func TestChatByName(t *testing.T) {
	fx := newCompanionFixture(t, CompanionConfig{Recent: 5})

	reply, err := fx.svc.ChatByName(context.Background(), fx.player.ID, " dez morales ", "yo")
	require.NoError(t, err)
	assert.Equal(t, fx.dez.ID, reply.CompanionID)

	_, err = fx.svc.ChatByName(context.Background(), fx.player.ID, "Nobody", "yo")
	assert.ErrorIs(t, err, ErrCompanionNotFound)
}

func TestImportance(t *testing.T) {
	assert.Equal(t, 2, Importance("hey"))
	assert.Equal(t, 3, Importance("hey!"))
	assert.Equal(t, 4, Importance("I made a promise"))
	assert.Equal(t, 8, Importance("kill the snitch, he will betray the family"))
	assert.Equal(t, 10, Importance(strings.Repeat("kill betray owe debt ", 12)+"!"))
}

func TestForgetAndPrune(t *testing.T) {
	fx := newCompanionFixture(t, CompanionConfig{KeepPerPair: 3, Retention: 24 * time.Hour, MinImportance: 5})
	ctx := context.Background()
	now := time.Now()

	fx.remember(t, "ancient trivia", 2, now.Add(-72*time.Hour))
	fx.remember(t, "ancient but important", 9, now.Add(-71*time.Hour))
	for i := 0; i < 3; i++ {
		fx.remember(t, fmt.Sprintf("recent %d", i), 3, now.Add(time.Duration(-i)*time.Minute))
	}

	n, err := fx.svc.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	left, err := fx.svc.Memories(ctx, fx.player.ID, fx.dez.ID, 10)
	require.NoError(t, err)
	require.Len(t, left, 3)
	assert.Equal(t, "recent 0", left[0].Content)

	n, err = fx.svc.Forget(ctx, fx.player.ID, fx.dez.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = fx.svc.Forget(ctx, fx.player.ID, 999)
	assert.ErrorIs(t, err, ErrCompanionNotFound)
}

func TestRecordMissionEvent(t *testing.T) {
	fx := newCompanionFixture(t, CompanionConfig{})
	ctx := context.Background()

	f, err := fx.db.Factions().Seed(ctx, &models.Faction{Name: "Grove Street Saints", Tag: "GSS", Kind: "gang"})
	require.NoError(t, err)
	lucia := &models.Companion{Name: "Lucia", Persona: "bookkeeper", FactionID: &f.ID}
	require.NoError(t, fx.db.Companions().Upsert(ctx, lucia))

	m := &models.Mission{ID: uuid.New(), PlayerID: fx.player.ID, FactionID: &f.ID, Title: "Dock Run", Reward: decimal.NewFromInt(4000)}
	require.NoError(t, fx.svc.RecordMissionEvent(ctx, m))

	assert.Equal(t, 1, fx.db.Memories().Count(lucia.ID, fx.player.ID))
	assert.Zero(t, fx.db.Memories().Count(fx.dez.ID, fx.player.ID))

	mem, err := fx.svc.Memories(ctx, fx.player.ID, lucia.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.MemoryEvent, mem[0].Kind)
	assert.Contains(t, mem[0].Content, `"Dock Run"`)
	assert.Contains(t, mem[0].Content, "$4000")

	m.FactionID = nil
	require.NoError(t, fx.svc.RecordMissionEvent(ctx, m))
}
