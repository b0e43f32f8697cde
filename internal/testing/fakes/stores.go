package fakes

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/avvvet/ganggpt-services/internal/apisvc/models"
	"github.com/avvvet/ganggpt-services/internal/apisvc/store"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const missionInfluence = 10

func copyPlayer(p *models.Player) *models.Player {
	c := *p
	return &c
}

type PlayerStore struct{ db *DB }

func (s *PlayerStore) Create(_ context.Context, p *models.Player, starter decimal.Decimal) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, other := range s.db.players {
		if other.SocialClub == p.SocialClub {
			return fmt.Errorf("create player: %w", store.ErrConflict)
		}
		if p.Email != nil && other.Email != nil && *other.Email == *p.Email {
			return fmt.Errorf("create player: %w", store.ErrConflict)
		}
	}

	now := time.Now()
	p.ID = s.db.nextID()
	p.Level = 1
	p.CreatedAt, p.UpdatedAt = now, now
	s.db.players[p.ID] = copyPlayer(p)

	if starter.IsPositive() {
		s.db.book(p.ID, models.TxStarterGrant, starter, decimal.Zero, fmt.Sprintf("STR-%d", p.ID), "welcome to the city")
	}
	return nil
}

func (s *PlayerStore) GetByID(_ context.Context, id int64) (*models.Player, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.players[id]
	if !ok {
		return nil, fmt.Errorf("get player: %w", store.ErrNotFound)
	}
	return copyPlayer(p), nil
}

func (s *PlayerStore) GetBySocialClub(_ context.Context, socialClub string) (*models.Player, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, p := range s.db.players {
		if p.SocialClub == socialClub {
			return copyPlayer(p), nil
		}
	}
	return nil, fmt.Errorf("get player by social club: %w", store.ErrNotFound)
}

func (s *PlayerStore) GetByLogin(_ context.Context, login string) (*models.Player, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, p := range s.db.players {
		if p.Email != nil && *p.Email == login {
			return copyPlayer(p), nil
		}
	}
	for _, p := range s.db.players {
		if p.SocialClub == login {
			return copyPlayer(p), nil
		}
	}
	return nil, fmt.Errorf("get player by login: %w", store.ErrNotFound)
}

func (s *PlayerStore) SetCredentials(_ context.Context, id int64, email, passwordHash string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.players[id]
	if !ok {
		return fmt.Errorf("set credentials: %w", store.ErrNotFound)
	}
	for _, other := range s.db.players {
		if other.ID != id && other.Email != nil && *other.Email == email {
			return fmt.Errorf("set credentials: %w", store.ErrConflict)
		}
	}
	p.Email, p.PasswordHash = &email, &passwordHash
	return nil
}

func (s *PlayerStore) UpdateProfile(_ context.Context, id int64, displayName string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.players[id]
	if !ok {
		return fmt.Errorf("update profile: %w", store.ErrNotFound)
	}
	p.DisplayName = displayName
	return nil
}

func (s *PlayerStore) SetStatus(_ context.Context, id int64, status string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.players[id]
	if !ok {
		return fmt.Errorf("set status: %w", store.ErrNotFound)
	}
	now := time.Now()
	p.Status, p.LastSeenAt = status, &now
	return nil
}

func (s *PlayerStore) List(_ context.Context, limit, offset int) ([]*models.Player, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var out []*models.Player
	for _, p := range s.db.players {
		if p.Role == "player" {
			out = append(out, copyPlayer(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Reputation != out[j].Reputation {
			return out[i].Reputation > out[j].Reputation
		}
		return out[i].ID < out[j].ID
	})
	return page(out, limit, offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	return lo.Slice(items, offset, offset+limit)
}

type FactionStore struct{ db *DB }

func (s *FactionStore) view(f *models.Faction) *models.Faction {
	c := *f
	c.MemberCount = s.db.memberCount(f.ID)
	return &c
}

func (s *FactionStore) Create(_ context.Context, f *models.Faction) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if f.LeaderID != nil {
		leader, ok := s.db.players[*f.LeaderID]
		if !ok {
			return fmt.Errorf("lock leader: %w", store.ErrNotFound)
		}
		if leader.FactionID != nil {
			return fmt.Errorf("leader already in faction: %w", store.ErrConflict)
		}
	}
	for _, other := range s.db.factions {
		if other.Name == f.Name || other.Tag == f.Tag {
			return fmt.Errorf("create faction: %w", store.ErrConflict)
		}
	}

	now := time.Now()
	f.ID = s.db.nextID()
	f.CreatedAt, f.UpdatedAt = now, now
	stored := *f
	s.db.factions[f.ID] = &stored

	if f.LeaderID != nil {
		leader := s.db.players[*f.LeaderID]
		id := f.ID
		leader.FactionID, leader.FactionRank = &id, models.RankLeader
		f.MemberCount = 1
	}
	return nil
}

func (s *FactionStore) Seed(_ context.Context, f *models.Faction) (*models.Faction, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, other := range s.db.factions {
		if other.Name == f.Name {
			return s.view(other), nil
		}
		if other.Tag == f.Tag {
			return nil, fmt.Errorf("seed faction: %w", store.ErrConflict)
		}
	}
	stored := *f
	stored.ID = s.db.nextID()
	stored.AIControlled = true
	stored.CreatedAt, stored.UpdatedAt = time.Now(), time.Now()
	s.db.factions[stored.ID] = &stored
	return s.view(&stored), nil
}

func (s *FactionStore) GetByID(_ context.Context, id int64) (*models.Faction, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	f, ok := s.db.factions[id]
	if !ok {
		return nil, fmt.Errorf("get faction: %w", store.ErrNotFound)
	}
	return s.view(f), nil
}

func (s *FactionStore) List(_ context.Context) ([]*models.Faction, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	out := make([]*models.Faction, 0, len(s.db.factions))
	for _, f := range s.db.factions {
		out = append(out, s.view(f))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Influence != out[j].Influence {
			return out[i].Influence > out[j].Influence
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *FactionStore) Members(_ context.Context, factionID int64) ([]*models.Player, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var out []*models.Player
	for _, p := range s.db.players {
		if p.FactionID != nil && *p.FactionID == factionID {
			out = append(out, copyPlayer(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FactionRank != out[j].FactionRank {
			return out[i].FactionRank > out[j].FactionRank
		}
		return out[i].Reputation > out[j].Reputation
	})
	return out, nil
}

func (s *FactionStore) Join(_ context.Context, playerID, factionID int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.factions[factionID]; !ok {
		return fmt.Errorf("join faction: %w", store.ErrNotFound)
	}
	p, ok := s.db.players[playerID]
	if !ok || p.FactionID != nil {
		return fmt.Errorf("player %d already in a faction: %w", playerID, store.ErrConflict)
	}
	id := factionID
	p.FactionID, p.FactionRank = &id, models.RankRecruit
	return nil
}

func (s *FactionStore) Leave(_ context.Context, playerID int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	p, ok := s.db.players[playerID]
	if !ok || p.FactionID == nil {
		return fmt.Errorf("player %d not in a faction: %w", playerID, store.ErrNotFound)
	}
	p.FactionID, p.FactionRank = nil, models.RankRecruit
	return nil
}

func (s *FactionStore) member(factionID, playerID int64) (*models.Player, error) {
	p, ok := s.db.players[playerID]
	if !ok || p.FactionID == nil || *p.FactionID != factionID {
		return nil, fmt.Errorf("player %d not in faction %d: %w", playerID, factionID, store.ErrNotFound)
	}
	return p, nil
}

func (s *FactionStore) SetRank(_ context.Context, factionID, playerID int64, rank int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	p, err := s.member(factionID, playerID)
	if err != nil {
		return err
	}
	p.FactionRank = rank
	return nil
}

func (s *FactionStore) TransferLeadership(_ context.Context, factionID, fromID, toID int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	to, err := s.member(factionID, toID)
	if err != nil {
		return err
	}
	to.FactionRank = models.RankLeader
	if from, err := s.member(factionID, fromID); err == nil {
		from.FactionRank = models.RankLieutenant
	}
	if f, ok := s.db.factions[factionID]; ok {
		id := toID
		f.LeaderID = &id
	}
	return nil
}

func (s *FactionStore) Delete(_ context.Context, factionID int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.factions[factionID]; !ok {
		return fmt.Errorf("faction %d: %w", factionID, store.ErrNotFound)
	}
	for _, p := range s.db.players {
		if p.FactionID != nil && *p.FactionID == factionID {
			p.FactionID, p.FactionRank = nil, models.RankRecruit
		}
	}
	for _, m := range s.db.missions {
		if m.FactionID != nil && *m.FactionID == factionID {
			m.FactionID = nil
		}
	}
	delete(s.db.factions, factionID)
	return nil
}

type LedgerStore struct{ db *DB }

func (s *LedgerStore) Balance(_ context.Context, playerID int64) (decimal.Decimal, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.db.balance(playerID), nil
}

func (s *LedgerStore) Credit(_ context.Context, playerID int64, ttype string, amount decimal.Decimal, tref, memo string) (*models.Transaction, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.players[playerID]; !ok {
		return nil, fmt.Errorf("credit: %w", store.ErrNotFound)
	}
	if s.db.trefTaken(tref) {
		return nil, fmt.Errorf("credit: %w", store.ErrConflict)
	}
	t := s.db.book(playerID, ttype, amount, decimal.Zero, tref, memo)
	c := *t
	return &c, nil
}

func (s *LedgerStore) Transfer(_ context.Context, fromID, toID int64, amount decimal.Decimal, memo string) (string, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.players[fromID]; !ok {
		return "", fmt.Errorf("lock sender: %w", store.ErrNotFound)
	}
	if _, ok := s.db.players[toID]; !ok {
		return "", fmt.Errorf("recipient %d: %w", toID, store.ErrNotFound)
	}
	if s.db.balance(fromID).LessThan(amount) {
		return "", store.ErrInsufficientFunds
	}

	ref := "TXF-" + uuid.NewString()[:8]
	s.db.book(fromID, models.TxTransferOut, decimal.Zero, amount, ref+"-OUT", memo)
	s.db.book(toID, models.TxTransferIn, amount, decimal.Zero, ref+"-IN", memo)
	return ref, nil
}

func (s *LedgerStore) History(_ context.Context, playerID int64, limit, offset int) ([]*models.Transaction, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var out []*models.Transaction
	for i := len(s.db.txs) - 1; i >= 0; i-- {
		if t := s.db.txs[i]; t.PlayerID == playerID {
			c := *t
			out = append(out, &c)
		}
	}
	return page(out, limit, offset), nil
}

type MissionStore struct{ db *DB }

func copyMission(m *models.Mission) *models.Mission {
	c := *m
	c.Objectives = append([]string(nil), m.Objectives...)
	return &c
}

func (s *MissionStore) Create(_ context.Context, m *models.Mission) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.players[m.PlayerID]; !ok {
		return fmt.Errorf("create mission: %w", store.ErrNotFound)
	}
	if _, ok := s.db.missions[m.ID]; ok {
		return fmt.Errorf("create mission: %w", store.ErrConflict)
	}
	now := time.Now()
	m.CreatedAt, m.UpdatedAt = now, now
	s.db.missions[m.ID] = copyMission(m)
	return nil
}

func (s *MissionStore) GetByID(_ context.Context, id uuid.UUID) (*models.Mission, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	m, ok := s.db.missions[id]
	if !ok {
		return nil, fmt.Errorf("get mission: %w", store.ErrNotFound)
	}
	return copyMission(m), nil
}

func (s *MissionStore) ListByPlayer(_ context.Context, playerID int64, status string) ([]*models.Mission, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var out []*models.Mission
	for _, m := range s.db.missions {
		if m.PlayerID == playerID && (status == "" || m.Status == status) {
			out = append(out, copyMission(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return lo.Slice(out, 0, 50), nil
}

func (s *MissionStore) CountOpen(_ context.Context, playerID int64) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	now := time.Now()
	n := 0
	for _, m := range s.db.missions {
		if m.PlayerID == playerID && isOpen(m.Status) && m.ExpiresAt.After(now) {
			n++
		}
	}
	return n, nil
}

func isOpen(status string) bool {
	return status == models.MissionAvailable || status == models.MissionActive
}

func (s *MissionStore) Transition(_ context.Context, id uuid.UUID, from []string, to string) (*models.Mission, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	m, ok := s.db.missions[id]
	if !ok {
		return nil, fmt.Errorf("get mission: %w", store.ErrNotFound)
	}
	now := time.Now()
	if !lo.Contains(from, m.Status) || (to == models.MissionActive && !m.ExpiresAt.After(now)) {
		return nil, fmt.Errorf("mission %s cannot move to %s: %w", id, to, store.ErrConflict)
	}
	m.Status, m.UpdatedAt = to, now
	if to == models.MissionActive {
		m.AcceptedAt = &now
	}
	return copyMission(m), nil
}

func (s *MissionStore) Complete(_ context.Context, id uuid.UUID) (*models.MissionResult, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	m, ok := s.db.missions[id]
	if !ok {
		return nil, fmt.Errorf("get mission: %w", store.ErrNotFound)
	}
	if m.Status != models.MissionActive {
		return nil, fmt.Errorf("mission %s is not active: %w", id, store.ErrConflict)
	}

	now := time.Now()
	m.Status, m.CompletedAt, m.UpdatedAt = models.MissionCompleted, &now, now
	s.db.book(m.PlayerID, models.TxMissionReward, m.Reward, decimal.Zero, "MSN-"+m.ID.String(), m.Title)

	p := s.db.players[m.PlayerID]
	p.Reputation += m.ReputationReward
	p.Level = models.LevelFor(p.Reputation)

	if p.FactionID != nil {
		if f, ok := s.db.factions[*p.FactionID]; ok {
			f.Influence += missionInfluence
		}
	}

	return &models.MissionResult{
		Mission:    copyMission(m),
		Balance:    s.db.balance(m.PlayerID),
		Reputation: p.Reputation,
		Level:      p.Level,
	}, nil
}

func (s *MissionStore) ExpireOverdue(_ context.Context, now time.Time, batch int) ([]*models.Mission, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var due []*models.Mission
	for _, m := range s.db.missions {
		if isOpen(m.Status) && m.ExpiresAt.Before(now) {
			due = append(due, m)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ExpiresAt.Before(due[j].ExpiresAt) })

	var out []*models.Mission
	for _, m := range lo.Slice(due, 0, batch) {
		m.Status, m.UpdatedAt = models.MissionExpired, time.Now()
		out = append(out, copyMission(m))
	}
	return out, nil
}

type CompanionStore struct{ db *DB }

func (s *CompanionStore) Upsert(_ context.Context, c *models.Companion) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, existing := range s.db.companions {
		if existing.Name == c.Name {
			existing.Persona, existing.FactionID = c.Persona, c.FactionID
			c.ID, c.CreatedAt = existing.ID, existing.CreatedAt
			return nil
		}
	}
	c.ID, c.CreatedAt = s.db.nextID(), time.Now()
	stored := *c
	s.db.companions[c.ID] = &stored
	return nil
}

func (s *CompanionStore) GetByID(_ context.Context, id int64) (*models.Companion, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c, ok := s.db.companions[id]
	if !ok {
		return nil, fmt.Errorf("get companion: %w", store.ErrNotFound)
	}
	out := *c
	return &out, nil
}

func (s *CompanionStore) GetByName(_ context.Context, name string) (*models.Companion, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, c := range s.db.companions {
		if strings.EqualFold(c.Name, name) {
			out := *c
			return &out, nil
		}
	}
	return nil, fmt.Errorf("get companion by name: %w", store.ErrNotFound)
}

func (s *CompanionStore) List(_ context.Context) ([]*models.Companion, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	out := make([]*models.Companion, 0, len(s.db.companions))
	for _, c := range s.db.companions {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type MemoryStore struct{ db *DB }

// Add stores m. A preset CreatedAt is kept so tests can backdate memories.
func (s *MemoryStore) Add(_ context.Context, m *models.Memory) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.companions[m.CompanionID]; !ok {
		return fmt.Errorf("add memory: %w", store.ErrNotFound)
	}
	m.ID = s.db.nextID()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	stored := *m
	s.db.memories = append(s.db.memories, &stored)
	return nil
}

func (s *MemoryStore) pair(companionID, playerID int64) []*models.Memory {
	var out []*models.Memory
	for _, m := range s.db.memories {
		if m.CompanionID == companionID && m.PlayerID == playerID {
			c := *m
			out = append(out, &c)
		}
	}
	return out
}

func newestFirst(ms []*models.Memory) func(i, j int) bool {
	return func(i, j int) bool {
		if ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].ID > ms[j].ID
		}
		return ms[i].CreatedAt.After(ms[j].CreatedAt)
	}
}

func (s *MemoryStore) Recent(_ context.Context, companionID, playerID int64, limit int) ([]*models.Memory, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	ms := s.pair(companionID, playerID)
	sort.Slice(ms, newestFirst(ms))
	return lo.Slice(ms, 0, limit), nil
}

func (s *MemoryStore) Important(_ context.Context, companionID, playerID int64, limit int) ([]*models.Memory, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	ms := s.pair(companionID, playerID)
	newer := newestFirst(ms)
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Importance != ms[j].Importance {
			return ms[i].Importance > ms[j].Importance
		}
		return newer(i, j)
	})
	return lo.Slice(ms, 0, limit), nil
}

func (s *MemoryStore) Forget(_ context.Context, companionID, playerID int64) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	before := len(s.db.memories)
	s.db.memories = lo.Reject(s.db.memories, func(m *models.Memory, _ int) bool {
		return m.CompanionID == companionID && m.PlayerID == playerID
	})
	return int64(before - len(s.db.memories)), nil
}

func (s *MemoryStore) Prune(_ context.Context, keep int, cutoff time.Time, minImportance int) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	type key struct{ c, p int64 }
	groups := lo.GroupBy(s.db.memories, func(m *models.Memory) key { return key{m.CompanionID, m.PlayerID} })

	drop := map[int64]bool{}
	for _, ms := range groups {
		sorted := append([]*models.Memory(nil), ms...)
		sort.Slice(sorted, newestFirst(sorted))
		for i, m := range sorted {
			if i >= keep || (m.CreatedAt.Before(cutoff) && m.Importance < minImportance) {
				drop[m.ID] = true
			}
		}
	}

	before := len(s.db.memories)
	s.db.memories = lo.Reject(s.db.memories, func(m *models.Memory, _ int) bool { return drop[m.ID] })
	return int64(before - len(s.db.memories)), nil
}

// Count returns how many memories the pair has.
func (s *MemoryStore) Count(companionID, playerID int64) int {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return len(s.pair(companionID, playerID))
}
