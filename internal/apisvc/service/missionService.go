package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/avvvet/ganggpt-services/internal/ai"
	"github.com/avvvet/ganggpt-services/internal/apisvc/models"
	"github.com/avvvet/ganggpt-services/internal/apisvc/store"
	"github.com/avvvet/ganggpt-services/internal/auth"
	"github.com/avvvet/ganggpt-services/internal/catalog"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// rewardBand is the cash range allowed for a difficulty.
type rewardBand struct {
	min, max int
}

var rewardBands = map[string]rewardBand{
	"easy":   {500, 2500},
	"medium": {2500, 10000},
	"hard":   {10000, 50000},
}

const (
	maxObjectives     = 6
	minRepReward      = 10
	maxRepReward      = 500
	minDuration       = 10
	maxDuration       = 240
	missionTokenLimit = 700
)

var missionStatuses = []string{
	models.MissionAvailable,
	models.MissionActive,
	models.MissionCompleted,
	models.MissionAbandoned,
	models.MissionExpired,
}

type MissionConfig struct {
	MaxActive int
}

type MissionService struct {
	missions MissionStore
	players  PlayerStore
	factions FactionStore
	gen      Generator
	catalog  *catalog.Catalog
	cfg      MissionConfig
	now      func() time.Time
}

func NewMissionService(missions MissionStore, players PlayerStore, factions FactionStore, gen Generator, cat *catalog.Catalog, cfg MissionConfig) *MissionService {
	if cfg.MaxActive <= 0 {
		cfg.MaxActive = 3
	}
	return &MissionService{
		missions: missions,
		players:  players,
		factions: factions,
		gen:      gen,
		catalog:  cat,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Generate creates a new available mission for the player. The AI writes it
// when configured; otherwise, or when the AI fails, a catalog template is used.
func (s *MissionService) Generate(ctx context.Context, playerID int64, difficulty, location string) (*models.Mission, error) {
	difficulty = strings.ToLower(strings.TrimSpace(difficulty))
	if difficulty == "" {
		difficulty = "medium"
	}
	band, ok := rewardBands[difficulty]
	if !ok {
		return nil, ErrInvalidDifficulty
	}
	location = truncate(location, 80)

	p, err := s.players.GetByID(ctx, playerID)
	if err != nil {
		return nil, notFound(err, ErrPlayerNotFound)
	}
	open, err := s.missions.CountOpen(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if open >= s.cfg.MaxActive {
		return nil, ErrTooManyMissions
	}

	pc := ai.PlayerContext{Name: p.DisplayName, Level: p.Level, Reputation: p.Reputation}
	if p.FactionID != nil {
		if f, err := s.factions.GetByID(ctx, *p.FactionID); err == nil {
			pc.Faction = f.Name
			pc.Rank = models.RankName(p.FactionRank)
			pc.Territory = f.Territory
		}
	}

	m, err := s.fromAI(ctx, pc, difficulty, location, band)
	if err != nil {
		log.Warnf("mission generation for player %d fell back to template: %v", playerID, err)
		m, err = s.fromTemplate(difficulty, band)
		if err != nil {
			return nil, err
		}
	}

	m.ID = uuid.New()
	m.PlayerID = playerID
	m.FactionID = p.FactionID
	m.Difficulty = difficulty
	m.Location = location
	m.Status = models.MissionAvailable

	if err := s.missions.Create(ctx, m); err != nil {
		return nil, err
	}
	log.Infof("mission %s (%s, %s) offered to player %d", m.ID, m.Difficulty, m.Source, playerID)
	return m, nil
}

func (s *MissionService) fromAI(ctx context.Context, pc ai.PlayerContext, difficulty, location string, band rewardBand) (*models.Mission, error) {
	if s.gen == nil || !s.gen.Enabled() {
		return nil, ai.ErrDisabled
	}

	msgs := ai.BuildMissionMessages(ai.MissionRequest{
		Player:     pc,
		Difficulty: difficulty,
		Location:   location,
		MinReward:  band.min,
		MaxReward:  band.max,
	})
	c, err := s.gen.Chat(ctx, msgs, ai.Options{
		MaxTokens:      missionTokenLimit,
		ResponseFormat: ai.MissionResponseFormat(),
	})
	if err != nil {
		return nil, err
	}
	d, err := ai.ParseMissionDraft(c.Content)
	if err != nil {
		return nil, err
	}

	return &models.Mission{
		Title:            truncate(d.Title, 120),
		Description:      truncate(d.Description, 1000),
		Objectives:       lo.Slice(d.Objectives, 0, maxObjectives),
		Reward:           decimal.NewFromInt(int64(clamp(d.Reward, band.min, band.max))),
		ReputationReward: clamp(d.ReputationReward, minRepReward, maxRepReward),
		Source:           models.SourceAI,
		ExpiresAt:        s.now().Add(time.Duration(clamp(d.DurationMinutes, minDuration, maxDuration)) * time.Minute),
	}, nil
}

func (s *MissionService) fromTemplate(difficulty string, band rewardBand) (*models.Mission, error) {
	if s.catalog == nil {
		return nil, ErrAIUnavailable
	}
	t, ok := s.catalog.PickTemplate(difficulty)
	if !ok {
		return nil, ErrAIUnavailable
	}

	return &models.Mission{
		Title:            t.Title,
		Description:      t.Description,
		Objectives:       lo.Slice(t.Objectives, 0, maxObjectives),
		Reward:           decimal.NewFromInt(int64(clamp(t.Reward, band.min, band.max))),
		ReputationReward: clamp(t.Reputation, minRepReward, maxRepReward),
		Source:           models.SourceTemplate,
		ExpiresAt:        s.now().Add(time.Duration(clamp(t.Duration, minDuration, maxDuration)) * time.Minute),
	}, nil
}

// List returns the player's missions, optionally filtered by status.
func (s *MissionService) List(ctx context.Context, playerID int64, status string) ([]*models.Mission, error) {
	if status != "" && !lo.Contains(missionStatuses, status) {
		return nil, ErrInvalidStatus
	}
	ms, err := s.missions.ListByPlayer(ctx, playerID, status)
	if err != nil {
		return nil, err
	}
	if ms == nil {
		ms = []*models.Mission{}
	}
	return ms, nil
}

func (s *MissionService) Get(ctx context.Context, playerID int64, id uuid.UUID) (*models.Mission, error) {
	m, err := s.missions.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrMissionNotFound)
	}
	if m.PlayerID != playerID {
		return nil, ErrNotMissionOwner
	}
	return m, nil
}

// Accept moves an available mission to active.
func (s *MissionService) Accept(ctx context.Context, playerID int64, id uuid.UUID) (*models.Mission, error) {
	return s.transition(ctx, playerID, id, []string{models.MissionAvailable}, models.MissionActive)
}

func (s *MissionService) Abandon(ctx context.Context, playerID int64, id uuid.UUID) (*models.Mission, error) {
	return s.transition(ctx, playerID, id, []string{models.MissionAvailable, models.MissionActive}, models.MissionAbandoned)
}

func (s *MissionService) transition(ctx context.Context, playerID int64, id uuid.UUID, from []string, to string) (*models.Mission, error) {
	if _, err := s.Get(ctx, playerID, id); err != nil {
		return nil, err
	}
	m, err := s.missions.Transition(ctx, id, from, to)
	switch {
	case errors.Is(err, store.ErrConflict):
		return nil, ErrMissionState
	case err != nil:
		return nil, notFound(err, ErrMissionNotFound)
	}
	return m, nil
}

// Complete pays out an active mission. Only game servers and admins report
// completions.
func (s *MissionService) Complete(ctx context.Context, role string, id uuid.UUID) (*models.MissionResult, error) {
	if role != auth.RoleService && role != auth.RoleAdmin {
		return nil, ErrServiceOnly
	}
	res, err := s.missions.Complete(ctx, id)
	switch {
	case errors.Is(err, store.ErrConflict):
		return nil, ErrMissionState
	case err != nil:
		return nil, notFound(err, ErrMissionNotFound)
	}
	log.Infof("mission %s completed by player %d, reward %s", id, res.Mission.PlayerID, res.Mission.Reward.StringFixed(2))
	return res, nil
}

// ExpireOverdue expires up to batch missions whose deadline has passed.
func (s *MissionService) ExpireOverdue(ctx context.Context, batch int) ([]*models.Mission, error) {
	return s.missions.ExpireOverdue(ctx, s.now(), batch)
}
