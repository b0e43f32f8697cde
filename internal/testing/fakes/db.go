package fakes

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/avvvet/ganggpt-services/internal/apisvc/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DB holds the rows of every fake store.
type DB struct {
	mu         sync.Mutex
	seq        int64
	players    map[int64]*models.Player
	factions   map[int64]*models.Faction
	txs        []*models.Transaction
	missions   map[uuid.UUID]*models.Mission
	companions map[int64]*models.Companion
	memories   []*models.Memory
}

func New() *DB {
	return &DB{
		players:    map[int64]*models.Player{},
		factions:   map[int64]*models.Faction{},
		missions:   map[uuid.UUID]*models.Mission{},
		companions: map[int64]*models.Companion{},
	}
}

func (db *DB) Players() *PlayerStore       { return &PlayerStore{db: db} }
func (db *DB) Factions() *FactionStore     { return &FactionStore{db: db} }
func (db *DB) Ledger() *LedgerStore        { return &LedgerStore{db: db} }
func (db *DB) Missions() *MissionStore     { return &MissionStore{db: db} }
func (db *DB) Companions() *CompanionStore { return &CompanionStore{db: db} }
func (db *DB) Memories() *MemoryStore      { return &MemoryStore{db: db} }

func (db *DB) nextID() int64 {
	db.seq++
	return db.seq
}

// balance must be called with mu held.
func (db *DB) balance(playerID int64) decimal.Decimal {
	total := decimal.Zero
	for _, t := range db.txs {
		if t.PlayerID == playerID && t.Status == "completed" {
			total = total.Add(t.Dr).Sub(t.Cr)
		}
	}
	return total
}

func (db *DB) memberCount(factionID int64) int {
	n := 0
	for _, p := range db.players {
		if p.FactionID != nil && *p.FactionID == factionID {
			n++
		}
	}
	return n
}

func (db *DB) trefTaken(tref string) bool {
	for _, t := range db.txs {
		if t.TRef == tref {
			return true
		}
	}
	return false
}

func (db *DB) book(playerID int64, ttype string, dr, cr decimal.Decimal, tref, memo string) *models.Transaction {
	t := &models.Transaction{
		ID:        db.nextID(),
		PlayerID:  playerID,
		TType:     ttype,
		Dr:        dr,
		Cr:        cr,
		TRef:      tref,
		Status:    "completed",
		Memo:      memo,
		CreatedAt: time.Now(),
	}
	db.txs = append(db.txs, t)
	return t
}

// SeedPlayer inserts an online player without credentials.
func (db *DB) SeedPlayer(t *testing.T, socialClub string) *models.Player {
	t.Helper()
	p := &models.Player{
		SocialClub:  socialClub,
		DisplayName: socialClub,
		Role:        "player",
		Status:      models.PlayerOnline,
	}
	if err := db.Players().Create(context.Background(), p, decimal.Zero); err != nil {
		t.Fatalf("seed player %s: %v", socialClub, err)
	}
	return p
}

// Fund books a credit for playerID.
func (db *DB) Fund(playerID int64, amount decimal.Decimal) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.book(playerID, models.TxAdminGrant, amount, decimal.Zero, uuid.NewString(), "test funds")
}

// MutatePlayer runs fn on the stored player, for tests that need a state the
// public API does not reach (bans, roles, ranks).
func (db *DB) MutatePlayer(id int64, fn func(p *models.Player)) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if p, ok := db.players[id]; ok {
		fn(p)
	}
}

func (db *DB) MutateMission(id uuid.UUID, fn func(m *models.Mission)) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if m, ok := db.missions[id]; ok {
		fn(m)
	}
}

// Transactions returns a copy of every ledger row.
func (db *DB) Transactions() []models.Transaction {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]models.Transaction, 0, len(db.txs))
	for _, t := range db.txs {
		out = append(out, *t)
	}
	return out
}
