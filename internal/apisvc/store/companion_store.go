package store

import (
	"context"
	"fmt"
	"time"

	"github.com/avvvet/ganggpt-services/internal/apisvc/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CompanionStore struct {
	db *pgxpool.Pool
}

func NewCompanionStore(db *pgxpool.Pool) *CompanionStore {
	return &CompanionStore{db: db}
}

func scanCompanion(row pgx.Row) (*models.Companion, error) {
	c := &models.Companion{}
	if err := row.Scan(&c.ID, &c.Name, &c.Persona, &c.FactionID, &c.CreatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

// Upsert creates the companion or refreshes its persona and faction.
func (s *CompanionStore) Upsert(ctx context.Context, c *models.Companion) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO companions (name, persona, faction_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET persona = EXCLUDED.persona, faction_id = EXCLUDED.faction_id
		RETURNING id, created_at
	`, c.Name, c.Persona, c.FactionID).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return translate(err, "upsert companion")
	}
	return nil
}

func (s *CompanionStore) GetByID(ctx context.Context, id int64) (*models.Companion, error) {
	row := s.db.QueryRow(ctx, `SELECT id, name, persona, faction_id, created_at FROM companions WHERE id = $1`, id)
	c, err := scanCompanion(row)
	if err != nil {
		return nil, translate(err, "get companion")
	}
	return c, nil
}

func (s *CompanionStore) GetByName(ctx context.Context, name string) (*models.Companion, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, persona, faction_id, created_at FROM companions WHERE lower(name) = lower($1)
	`, name)
	c, err := scanCompanion(row)
	if err != nil {
		return nil, translate(err, "get companion by name")
	}
	return c, nil
}

func (s *CompanionStore) List(ctx context.Context) ([]*models.Companion, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, persona, faction_id, created_at FROM companions ORDER BY name`)
	if err != nil {
		return nil, translate(err, "list companions")
	}
	defer rows.Close()

	var companions []*models.Companion
	for rows.Next() {
		c, err := scanCompanion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan companion: %w", err)
		}
		companions = append(companions, c)
	}
	return companions, rows.Err()
}

type MemoryStore struct {
	db *pgxpool.Pool
}

func NewMemoryStore(db *pgxpool.Pool) *MemoryStore {
	return &MemoryStore{db: db}
}

// Add stores m. A zero CreatedAt is set by the database.
func (s *MemoryStore) Add(ctx context.Context, m *models.Memory) error {
	var at *time.Time
	if !m.CreatedAt.IsZero() {
		at = &m.CreatedAt
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO memories (companion_id, player_id, kind, content, importance, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
		RETURNING id, created_at
	`, m.CompanionID, m.PlayerID, m.Kind, m.Content, m.Importance, at).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return translate(err, "add memory")
	}
	return nil
}

// Recent returns the newest memories of a pair, newest first.
func (s *MemoryStore) Recent(ctx context.Context, companionID, playerID int64, limit int) ([]*models.Memory, error) {
	return s.query(ctx, `
		SELECT id, companion_id, player_id, kind, content, importance, created_at
		FROM memories
		WHERE companion_id = $1 AND player_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, companionID, playerID, limit)
}

// Important returns the highest-importance memories of a pair.
func (s *MemoryStore) Important(ctx context.Context, companionID, playerID int64, limit int) ([]*models.Memory, error) {
	return s.query(ctx, `
		SELECT id, companion_id, player_id, kind, content, importance, created_at
		FROM memories
		WHERE companion_id = $1 AND player_id = $2
		ORDER BY importance DESC, created_at DESC
		LIMIT $3
	`, companionID, playerID, limit)
}

func (s *MemoryStore) query(ctx context.Context, sql string, args ...any) ([]*models.Memory, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, translate(err, "query memories")
	}
	defer rows.Close()

	var memories []*models.Memory
	for rows.Next() {
		m := &models.Memory{}
		if err := rows.Scan(&m.ID, &m.CompanionID, &m.PlayerID, &m.Kind, &m.Content, &m.Importance, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

func (s *MemoryStore) Forget(ctx context.Context, companionID, playerID int64) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM memories WHERE companion_id = $1 AND player_id = $2`, companionID, playerID)
	if err != nil {
		return 0, translate(err, "forget memories")
	}
	return tag.RowsAffected(), nil
}

// Prune keeps the newest keep memories of every pair and drops anything older
// than cutoff whose importance is below minImportance.
func (s *MemoryStore) Prune(ctx context.Context, keep int, cutoff time.Time, minImportance int) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM memories
		WHERE id IN (
			SELECT id FROM (
				SELECT id, row_number() OVER (
					PARTITION BY companion_id, player_id ORDER BY created_at DESC, id DESC
				) AS rn
				FROM memories
			) ranked
			WHERE rn > $1
		)
		OR (created_at < $2 AND importance < $3)
	`, keep, cutoff, minImportance)
	if err != nil {
		return 0, translate(err, "prune memories")
	}
	return tag.RowsAffected(), nil
}
