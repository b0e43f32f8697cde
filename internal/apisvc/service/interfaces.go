package service

import (
	"context"
	"time"

	"github.com/avvvet/ganggpt-services/internal/ai"
	"github.com/avvvet/ganggpt-services/internal/apisvc/models"
	"github.com/avvvet/ganggpt-services/internal/archive"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// The store interfaces are implemented by the pgx stores in package store and
// by the in-memory fakes used in tests.

type PlayerStore interface {
	Create(ctx context.Context, p *models.Player, starter decimal.Decimal) error
	GetByID(ctx context.Context, id int64) (*models.Player, error)
	GetBySocialClub(ctx context.Context, socialClub string) (*models.Player, error)
	GetByLogin(ctx context.Context, login string) (*models.Player, error)
	SetCredentials(ctx context.Context, id int64, email, passwordHash string) error
	UpdateProfile(ctx context.Context, id int64, displayName string) error
	SetStatus(ctx context.Context, id int64, status string) error
	List(ctx context.Context, limit, offset int) ([]*models.Player, error)
}

type FactionStore interface {
	Create(ctx context.Context, f *models.Faction) error
	Seed(ctx context.Context, f *models.Faction) (*models.Faction, error)
	GetByID(ctx context.Context, id int64) (*models.Faction, error)
	List(ctx context.Context) ([]*models.Faction, error)
	Members(ctx context.Context, factionID int64) ([]*models.Player, error)
	Join(ctx context.Context, playerID, factionID int64) error
	Leave(ctx context.Context, playerID int64) error
	SetRank(ctx context.Context, factionID, playerID int64, rank int) error
	TransferLeadership(ctx context.Context, factionID, fromID, toID int64) error
	Delete(ctx context.Context, factionID int64) error
}

type LedgerStore interface {
	Balance(ctx context.Context, playerID int64) (decimal.Decimal, error)
	Credit(ctx context.Context, playerID int64, ttype string, amount decimal.Decimal, tref, memo string) (*models.Transaction, error)
	Transfer(ctx context.Context, fromID, toID int64, amount decimal.Decimal, memo string) (string, error)
	History(ctx context.Context, playerID int64, limit, offset int) ([]*models.Transaction, error)
}

type MissionStore interface {
	Create(ctx context.Context, m *models.Mission) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Mission, error)
	ListByPlayer(ctx context.Context, playerID int64, status string) ([]*models.Mission, error)
	CountOpen(ctx context.Context, playerID int64) (int, error)
	Transition(ctx context.Context, id uuid.UUID, from []string, to string) (*models.Mission, error)
	Complete(ctx context.Context, id uuid.UUID) (*models.MissionResult, error)
	ExpireOverdue(ctx context.Context, now time.Time, batch int) ([]*models.Mission, error)
}

type CompanionStore interface {
	Upsert(ctx context.Context, c *models.Companion) error
	GetByID(ctx context.Context, id int64) (*models.Companion, error)
	GetByName(ctx context.Context, name string) (*models.Companion, error)
	List(ctx context.Context) ([]*models.Companion, error)
}

type MemoryStore interface {
	Add(ctx context.Context, m *models.Memory) error
	Recent(ctx context.Context, companionID, playerID int64, limit int) ([]*models.Memory, error)
	Important(ctx context.Context, companionID, playerID int64, limit int) ([]*models.Memory, error)
	Forget(ctx context.Context, companionID, playerID int64) (int64, error)
	Prune(ctx context.Context, keep int, cutoff time.Time, minImportance int) (int64, error)
}

// Generator is the text generation backend, *ai.Client in production.
type Generator interface {
	Enabled() bool
	Chat(ctx context.Context, messages []ai.Message, opts ai.Options) (*ai.Completion, error)
}

// Archiver keeps chat transcripts, *archive.Archive in production.
type Archiver interface {
	Save(ctx context.Context, t *archive.Transcript) error
}
