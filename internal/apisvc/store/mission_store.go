package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avvvet/ganggpt-services/internal/apisvc/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const missionColumns = `id, player_id, faction_id, title, description, objectives, difficulty,
	reward, reputation_reward, location, source, status, expires_at, accepted_at, completed_at,
	created_at, updated_at`

// influence a faction gains per mission completed by one of its members
const missionInfluence = 10

type MissionStore struct {
	db *pgxpool.Pool
}

func NewMissionStore(db *pgxpool.Pool) *MissionStore {
	return &MissionStore{db: db}
}

func scanMission(row pgx.Row) (*models.Mission, error) {
	m := &models.Mission{}
	err := row.Scan(
		&m.ID,
		&m.PlayerID,
		&m.FactionID,
		&m.Title,
		&m.Description,
		&m.Objectives,
		&m.Difficulty,
		&m.Reward,
		&m.ReputationReward,
		&m.Location,
		&m.Source,
		&m.Status,
		&m.ExpiresAt,
		&m.AcceptedAt,
		&m.CompletedAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func collectMissions(rows pgx.Rows) ([]*models.Mission, error) {
	defer rows.Close()

	var missions []*models.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mission: %w", err)
		}
		missions = append(missions, m)
	}
	return missions, rows.Err()
}

func (s *MissionStore) Create(ctx context.Context, m *models.Mission) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO missions (id, player_id, faction_id, title, description, objectives, difficulty,
			reward, reputation_reward, location, source, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`, m.ID, m.PlayerID, m.FactionID, m.Title, m.Description, m.Objectives, m.Difficulty,
		m.Reward, m.ReputationReward, m.Location, m.Source, m.Status, m.ExpiresAt,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return translate(err, "create mission")
	}
	return nil
}

func (s *MissionStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Mission, error) {
	row := s.db.QueryRow(ctx, `SELECT `+missionColumns+` FROM missions WHERE id = $1`, id)
	m, err := scanMission(row)
	if err != nil {
		return nil, translate(err, "get mission")
	}
	return m, nil
}

// ListByPlayer returns the player's newest missions; an empty status means all.
func (s *MissionStore) ListByPlayer(ctx context.Context, playerID int64, status string) ([]*models.Mission, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+missionColumns+`
		FROM missions
		WHERE player_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT 50
	`, playerID, status)
	if err != nil {
		return nil, translate(err, "list missions")
	}
	return collectMissions(rows)
}

// CountOpen counts missions that are available or active and not yet expired.
func (s *MissionStore) CountOpen(ctx context.Context, playerID int64) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM missions
		WHERE player_id = $1 AND status IN ('available', 'active') AND expires_at > now()
	`, playerID).Scan(&n)
	if err != nil {
		return 0, translate(err, "count open missions")
	}
	return n, nil
}

// Transition moves a mission from one of the given states to the target state.
// Activating an expired mission is refused. A mission in any other state
// yields ErrConflict.
func (s *MissionStore) Transition(ctx context.Context, id uuid.UUID, from []string, to string) (*models.Mission, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE missions
		SET status = $2,
			accepted_at = CASE WHEN $2 = 'active' THEN now() ELSE accepted_at END,
			updated_at = now()
		WHERE id = $1
		  AND status = ANY($3)
		  AND ($2 <> 'active' OR expires_at > now())
		RETURNING `+missionColumns, id, to, from)
	m, err := scanMission(row)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, translate(err, "transition mission")
	}

	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("mission %s cannot move to %s: %w", id, to, ErrConflict)
}

// Complete closes an active mission and pays it out: ledger credit, player
// reputation and level, faction influence. All in one transaction.
func (s *MissionStore) Complete(ctx context.Context, id uuid.UUID) (*models.MissionResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE missions
		SET status = 'completed', completed_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'active'
		RETURNING `+missionColumns, id)
	m, err := scanMission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := s.GetByID(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, fmt.Errorf("mission %s is not active: %w", id, ErrConflict)
		}
		return nil, translate(err, "complete mission")
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO transactions (player_id, ttype, dr, cr, tref, status, memo)
		VALUES ($1, $2, $3, 0, $4, 'completed', $5)
	`, m.PlayerID, models.TxMissionReward, m.Reward, "MSN-"+m.ID.String(), m.Title); err != nil {
		return nil, translate(err, "mission reward")
	}

	// influence goes to the faction the player is in now
	var factionID *int64
	res := &models.MissionResult{Mission: m}
	if err := tx.QueryRow(ctx, `
		UPDATE players
		SET reputation = reputation + $2,
			level = 1 + (reputation + $2) / 1000,
			updated_at = now()
		WHERE id = $1
		RETURNING reputation, level, faction_id
	`, m.PlayerID, m.ReputationReward).Scan(&res.Reputation, &res.Level, &factionID); err != nil {
		return nil, translate(err, "player reputation")
	}

	if factionID != nil {
		if _, err := tx.Exec(ctx, `
			UPDATE factions SET influence = influence + $2, updated_at = now() WHERE id = $1
		`, *factionID, missionInfluence); err != nil {
			return nil, translate(err, "faction influence")
		}
	}

	var totalDr, totalCr decimal.Decimal
	if err := tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(dr), 0), COALESCE(SUM(cr), 0)
		FROM transactions WHERE player_id = $1 AND status = 'completed'
	`, m.PlayerID).Scan(&totalDr, &totalCr); err != nil {
		return nil, translate(err, "balance")
	}
	res.Balance = totalDr.Sub(totalCr)

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return res, nil
}

// ExpireOverdue marks open missions past their deadline as expired. Rows
// locked by another sweeper are skipped.
func (s *MissionStore) ExpireOverdue(ctx context.Context, now time.Time, batch int) ([]*models.Mission, error) {
	rows, err := s.db.Query(ctx, `
		UPDATE missions
		SET status = 'expired', updated_at = now()
		WHERE id IN (
			SELECT id FROM missions
			WHERE status IN ('available', 'active') AND expires_at < $1
			ORDER BY expires_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+missionColumns, now, batch)
	if err != nil {
		return nil, translate(err, "expire missions")
	}
	return collectMissions(rows)
}
