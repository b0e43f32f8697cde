package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/avvvet/ganggpt-services/internal/ai"
	"github.com/avvvet/ganggpt-services/internal/apisvc/models"
	"github.com/avvvet/ganggpt-services/internal/archive"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// Words that make an exchange worth remembering for longer.
var memorableWords = []string{
	"kill", "betray", "owe", "debt", "promise", "secret", "family",
	"deal", "heist", "cops", "snitch", "revenge", "boss", "territory",
}

const (
	maxMessageRunes = 500
	baseImportance  = 2
	eventImportance = 6
)

type CompanionConfig struct {
	Recent        int           // newest memories in the prompt
	Important     int           // most important memories in the prompt
	KeepPerPair   int           // memories kept per companion and player
	Retention     time.Duration // age after which unimportant memories go
	MinImportance int           // memories at or above this survive retention
}

type CompanionService struct {
	companions CompanionStore
	memories   MemoryStore
	players    PlayerStore
	factions   FactionStore
	gen        Generator
	archive    Archiver
	cfg        CompanionConfig
	now        func() time.Time
}

func NewCompanionService(companions CompanionStore, memories MemoryStore, players PlayerStore, factions FactionStore, gen Generator, archiver Archiver, cfg CompanionConfig) *CompanionService {
	if cfg.MinImportance <= 0 {
		cfg.MinImportance = 5
	}
	return &CompanionService{
		companions: companions,
		memories:   memories,
		players:    players,
		factions:   factions,
		gen:        gen,
		archive:    archiver,
		cfg:        cfg,
		now:        time.Now,
	}
}

// ChatReply is what the player sees after talking to a companion.
type ChatReply struct {
	CompanionID int64  `json:"companion_id"`
	Companion   string `json:"companion"`
	Reply       string `json:"reply"`
	Importance  int    `json:"importance"`
}

func (s *CompanionService) List(ctx context.Context) ([]*models.Companion, error) {
	return s.companions.List(ctx)
}

func (s *CompanionService) Get(ctx context.Context, id int64) (*models.Companion, error) {
	c, err := s.companions.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrCompanionNotFound)
	}
	return c, nil
}

// Chat sends the player's message to the companion and remembers the exchange.
func (s *CompanionService) Chat(ctx context.Context, playerID, companionID int64, message string) (*ChatReply, error) {
	c, err := s.Get(ctx, companionID)
	if err != nil {
		return nil, err
	}
	return s.chat(ctx, playerID, c, message)
}

// ChatByName is Chat for game servers, which address companions by name.
func (s *CompanionService) ChatByName(ctx context.Context, playerID int64, name, message string) (*ChatReply, error) {
	c, err := s.companions.GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, notFound(err, ErrCompanionNotFound)
	}
	return s.chat(ctx, playerID, c, message)
}

func (s *CompanionService) chat(ctx context.Context, playerID int64, c *models.Companion, message string) (*ChatReply, error) {
	message = strings.TrimSpace(message)
	if n := utf8.RuneCountInString(message); n < 1 || n > maxMessageRunes {
		return nil, ErrInvalidMessage
	}

	p, err := s.players.GetByID(ctx, playerID)
	if err != nil {
		return nil, notFound(err, ErrPlayerNotFound)
	}
	if s.gen == nil || !s.gen.Enabled() {
		return nil, ErrAIDisabled
	}

	remembered, err := s.memoryContext(ctx, c.ID, playerID)
	if err != nil {
		return nil, err
	}

	completion, err := s.gen.Chat(ctx, ai.BuildCompanionMessages(c, s.playerContext(ctx, p), remembered, message), ai.Options{})
	if err != nil {
		return nil, aiError(err)
	}

	importance := Importance(message)
	m := &models.Memory{
		CompanionID: c.ID,
		PlayerID:    playerID,
		Kind:        models.MemoryDialogue,
		Content:     truncate(fmt.Sprintf("%s said: %s / I answered: %s", p.DisplayName, message, completion.Content), 2000),
		Importance:  importance,
	}
	if err := s.memories.Add(ctx, m); err != nil {
		log.Errorf("remember dialogue for companion %d player %d: %v", c.ID, playerID, err)
	}

	if s.archive != nil {
		t := &archive.Transcript{
			PlayerID:         playerID,
			CompanionID:      c.ID,
			Companion:        c.Name,
			Message:          message,
			Reply:            completion.Content,
			PromptTokens:     completion.PromptTokens,
			CompletionTokens: completion.CompletionTokens,
			CreatedAt:        s.now().UTC(),
		}
		if err := s.archive.Save(ctx, t); err != nil {
			log.Warnf("archive transcript: %v", err)
		}
	}

	return &ChatReply{
		CompanionID: c.ID,
		Companion:   c.Name,
		Reply:       completion.Content,
		Importance:  importance,
	}, nil
}

// memoryContext merges the newest and the most important memories, oldest
// first.
func (s *CompanionService) memoryContext(ctx context.Context, companionID, playerID int64) ([]*models.Memory, error) {
	var all []*models.Memory
	if s.cfg.Recent > 0 {
		recent, err := s.memories.Recent(ctx, companionID, playerID, s.cfg.Recent)
		if err != nil {
			return nil, err
		}
		all = append(all, recent...)
	}
	if s.cfg.Important > 0 {
		important, err := s.memories.Important(ctx, companionID, playerID, s.cfg.Important)
		if err != nil {
			return nil, err
		}
		all = append(all, important...)
	}

	merged := lo.UniqBy(all, func(m *models.Memory) int64 { return m.ID })
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].ID < merged[j].ID
		}
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})
	return merged, nil
}

func (s *CompanionService) playerContext(ctx context.Context, p *models.Player) ai.PlayerContext {
	pc := ai.PlayerContext{Name: p.DisplayName, Level: p.Level, Reputation: p.Reputation}
	if p.FactionID == nil {
		return pc
	}
	f, err := s.factions.GetByID(ctx, *p.FactionID)
	if err != nil {
		log.Warnf("faction %d for player %d: %v", *p.FactionID, p.ID, err)
		return pc
	}
	pc.Faction = f.Name
	pc.Rank = models.RankName(p.FactionRank)
	pc.Territory = f.Territory
	return pc
}

// Importance scores how memorable a player message is, from 1 to 10.
func Importance(message string) int {
	lower := strings.ToLower(message)
	score := baseImportance

	hits := lo.CountBy(memorableWords, func(w string) bool { return strings.Contains(lower, w) })
	score += 2 * min(hits, 3)
	if utf8.RuneCountInString(message) > 200 {
		score++
	}
	if strings.Contains(message, "!") {
		score++
	}
	return clamp(score, 1, 10)
}

// RecordMissionEvent lets the companions of the mission's faction remember
// that the player finished it.
func (s *CompanionService) RecordMissionEvent(ctx context.Context, m *models.Mission) error {
	if m.FactionID == nil {
		return nil
	}
	companions, err := s.companions.List(ctx)
	if err != nil {
		return err
	}

	for _, c := range lo.Filter(companions, func(c *models.Companion, _ int) bool {
		return c.FactionID != nil && *c.FactionID == *m.FactionID
	}) {
		err := s.memories.Add(ctx, &models.Memory{
			CompanionID: c.ID,
			PlayerID:    m.PlayerID,
			Kind:        models.MemoryEvent,
			Content:     fmt.Sprintf("They pulled off %q for the crew and earned $%s.", m.Title, m.Reward.StringFixed(0)),
			Importance:  eventImportance,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Memories returns what a companion remembers about the player, newest first.
func (s *CompanionService) Memories(ctx context.Context, playerID, companionID int64, limit int) ([]*models.Memory, error) {
	if _, err := s.Get(ctx, companionID); err != nil {
		return nil, err
	}
	ms, err := s.memories.Recent(ctx, companionID, playerID, clamp(limit, 1, 100))
	if err != nil {
		return nil, err
	}
	if ms == nil {
		ms = []*models.Memory{}
	}
	return ms, nil
}

func (s *CompanionService) Forget(ctx context.Context, playerID, companionID int64) (int64, error) {
	if _, err := s.Get(ctx, companionID); err != nil {
		return 0, err
	}
	n, err := s.memories.Forget(ctx, companionID, playerID)
	if err != nil {
		return 0, err
	}
	log.Infof("companion %d forgot %d memories of player %d", companionID, n, playerID)
	return n, nil
}

// Prune applies the retention policy to all memories.
func (s *CompanionService) Prune(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.cfg.Retention)
	return s.memories.Prune(ctx, s.cfg.KeepPerPair, cutoff, s.cfg.MinImportance)
}
