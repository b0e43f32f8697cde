package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/ganggpt-services/internal/apisvc/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const factionColumns = `f.id, f.name, f.tag, f.kind, f.color, f.territory, f.description,
	f.leader_id, f.influence, f.ai_controlled,
	(SELECT COUNT(*) FROM players p WHERE p.faction_id = f.id),
	f.created_at, f.updated_at`

type FactionStore struct {
	db *pgxpool.Pool
}

func NewFactionStore(db *pgxpool.Pool) *FactionStore {
	return &FactionStore{db: db}
}

func scanFaction(row pgx.Row) (*models.Faction, error) {
	f := &models.Faction{}
	err := row.Scan(
		&f.ID,
		&f.Name,
		&f.Tag,
		&f.Kind,
		&f.Color,
		&f.Territory,
		&f.Description,
		&f.LeaderID,
		&f.Influence,
		&f.AIControlled,
		&f.MemberCount,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Create inserts the faction and makes its leader a member with leader rank.
// It fails with ErrConflict when the leader already belongs to a faction.
func (s *FactionStore) Create(ctx context.Context, f *models.Faction) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if f.LeaderID != nil {
		var current *int64
		err := tx.QueryRow(ctx, `SELECT faction_id FROM players WHERE id = $1 FOR UPDATE`, *f.LeaderID).Scan(&current)
		if err != nil {
			return translate(err, "lock leader")
		}
		if current != nil {
			return fmt.Errorf("leader %d already in faction %d: %w", *f.LeaderID, *current, ErrConflict)
		}
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO factions (name, tag, kind, color, territory, description, leader_id, ai_controlled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, influence, created_at, updated_at
	`, f.Name, f.Tag, f.Kind, f.Color, f.Territory, f.Description, f.LeaderID, f.AIControlled).Scan(
		&f.ID, &f.Influence, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return translate(err, "create faction")
	}

	if f.LeaderID != nil {
		if _, err := tx.Exec(ctx, `
			UPDATE players SET faction_id = $2, faction_rank = $3, updated_at = now() WHERE id = $1
		`, *f.LeaderID, f.ID, models.RankLeader); err != nil {
			return translate(err, "assign leader")
		}
		f.MemberCount = 1
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Seed inserts an AI-controlled faction unless one with the same name exists,
// and returns the stored row. It fails with ErrConflict when another faction
// already holds the tag.
func (s *FactionStore) Seed(ctx context.Context, f *models.Faction) (*models.Faction, error) {
	_, err := s.db.Exec(ctx, `
		INSERT INTO factions (name, tag, kind, color, territory, description, ai_controlled)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		ON CONFLICT DO NOTHING
	`, f.Name, f.Tag, f.Kind, f.Color, f.Territory, f.Description)
	if err != nil {
		return nil, translate(err, "seed faction")
	}
	row := s.db.QueryRow(ctx, `SELECT `+factionColumns+` FROM factions f WHERE f.name = $1`, f.Name)
	seeded, err := scanFaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("seed faction %s: tag %s taken: %w", f.Name, f.Tag, ErrConflict)
	}
	if err != nil {
		return nil, translate(err, "get seeded faction")
	}
	return seeded, nil
}

func (s *FactionStore) GetByID(ctx context.Context, id int64) (*models.Faction, error) {
	row := s.db.QueryRow(ctx, `SELECT `+factionColumns+` FROM factions f WHERE f.id = $1`, id)
	f, err := scanFaction(row)
	if err != nil {
		return nil, translate(err, "get faction")
	}
	return f, nil
}

func (s *FactionStore) List(ctx context.Context) ([]*models.Faction, error) {
	rows, err := s.db.Query(ctx, `SELECT `+factionColumns+` FROM factions f ORDER BY f.influence DESC, f.name`)
	if err != nil {
		return nil, translate(err, "list factions")
	}
	defer rows.Close()

	var factions []*models.Faction
	for rows.Next() {
		f, err := scanFaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan faction: %w", err)
		}
		factions = append(factions, f)
	}
	return factions, rows.Err()
}

func (s *FactionStore) Members(ctx context.Context, factionID int64) ([]*models.Player, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+playerColumns+`
		FROM players
		WHERE faction_id = $1
		ORDER BY faction_rank DESC, reputation DESC
	`, factionID)
	if err != nil {
		return nil, translate(err, "list members")
	}
	defer rows.Close()

	var members []*models.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, p)
	}
	return members, rows.Err()
}

// Join adds a factionless player as a recruit.
func (s *FactionStore) Join(ctx context.Context, playerID, factionID int64) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE players SET faction_id = $2, faction_rank = $3, updated_at = now()
		WHERE id = $1 AND faction_id IS NULL
	`, playerID, factionID, models.RankRecruit)
	if err != nil {
		return translate(err, "join faction")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("player %d already in a faction: %w", playerID, ErrConflict)
	}
	return nil
}

func (s *FactionStore) Leave(ctx context.Context, playerID int64) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE players SET faction_id = NULL, faction_rank = 0, updated_at = now()
		WHERE id = $1 AND faction_id IS NOT NULL
	`, playerID)
	if err != nil {
		return translate(err, "leave faction")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("player %d not in a faction: %w", playerID, ErrNotFound)
	}
	return nil
}

// SetRank changes a member's rank; the player must still be in factionID.
func (s *FactionStore) SetRank(ctx context.Context, factionID, playerID int64, rank int) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE players SET faction_rank = $3, updated_at = now()
		WHERE id = $1 AND faction_id = $2
	`, playerID, factionID, rank)
	if err != nil {
		return translate(err, "set rank")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("player %d not in faction %d: %w", playerID, factionID, ErrNotFound)
	}
	return nil
}

// TransferLeadership swaps leader rank from one member to another.
func (s *FactionStore) TransferLeadership(ctx context.Context, factionID, fromID, toID int64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE players SET faction_rank = $3, updated_at = now()
		WHERE id = $1 AND faction_id = $2
	`, toID, factionID, models.RankLeader)
	if err != nil {
		return translate(err, "promote leader")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("player %d not in faction %d: %w", toID, factionID, ErrNotFound)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE players SET faction_rank = $3, updated_at = now()
		WHERE id = $1 AND faction_id = $2
	`, fromID, factionID, models.RankLieutenant); err != nil {
		return translate(err, "demote leader")
	}

	if _, err := tx.Exec(ctx, `
		UPDATE factions SET leader_id = $2, updated_at = now() WHERE id = $1
	`, factionID, toID); err != nil {
		return translate(err, "set leader")
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Delete removes the faction; members fall back to no faction.
func (s *FactionStore) Delete(ctx context.Context, factionID int64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE players SET faction_id = NULL, faction_rank = 0, updated_at = now() WHERE faction_id = $1
	`, factionID); err != nil {
		return translate(err, "release members")
	}

	tag, err := tx.Exec(ctx, `DELETE FROM factions WHERE id = $1`, factionID)
	if err != nil {
		return translate(err, "delete faction")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("faction %d: %w", factionID, ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
