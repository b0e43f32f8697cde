package store

import (
	"context"
	"fmt"

	"github.com/avvvet/ganggpt-services/internal/apisvc/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const playerColumns = `id, social_club, display_name, email, password_hash, role, status,
	faction_id, faction_rank, reputation, level, last_seen_at, created_at, updated_at`

type PlayerStore struct {
	db *pgxpool.Pool
}

func NewPlayerStore(db *pgxpool.Pool) *PlayerStore {
	return &PlayerStore{db: db}
}

func scanPlayer(row pgx.Row) (*models.Player, error) {
	p := &models.Player{}
	err := row.Scan(
		&p.ID,
		&p.SocialClub,
		&p.DisplayName,
		&p.Email,
		&p.PasswordHash,
		&p.Role,
		&p.Status,
		&p.FactionID,
		&p.FactionRank,
		&p.Reputation,
		&p.Level,
		&p.LastSeenAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts the player and, when starter is positive, its starter grant
// in the same transaction.
func (s *PlayerStore) Create(ctx context.Context, p *models.Player, starter decimal.Decimal) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO players (social_club, display_name, email, password_hash, role, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, faction_rank, reputation, level, created_at, updated_at
	`, p.SocialClub, p.DisplayName, p.Email, p.PasswordHash, p.Role, p.Status).Scan(
		&p.ID, &p.FactionRank, &p.Reputation, &p.Level, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return translate(err, "create player")
	}

	if starter.IsPositive() {
		if _, err := tx.Exec(ctx, `
			INSERT INTO transactions (player_id, ttype, dr, cr, tref, status, memo)
			VALUES ($1, $2, $3, 0, $4, 'completed', 'welcome to the city')
		`, p.ID, models.TxStarterGrant, starter, fmt.Sprintf("STR-%d", p.ID)); err != nil {
			return translate(err, "starter grant")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PlayerStore) GetByID(ctx context.Context, id int64) (*models.Player, error) {
	row := s.db.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, id)
	p, err := scanPlayer(row)
	if err != nil {
		return nil, translate(err, "get player")
	}
	return p, nil
}

func (s *PlayerStore) GetBySocialClub(ctx context.Context, socialClub string) (*models.Player, error) {
	row := s.db.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE social_club = $1`, socialClub)
	p, err := scanPlayer(row)
	if err != nil {
		return nil, translate(err, "get player by social club")
	}
	return p, nil
}

// GetByLogin matches either the email or the social club name.
func (s *PlayerStore) GetByLogin(ctx context.Context, login string) (*models.Player, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+playerColumns+`
		FROM players
		WHERE email = $1 OR social_club = $1
		ORDER BY (email = $1) DESC NULLS LAST
		LIMIT 1
	`, login)
	p, err := scanPlayer(row)
	if err != nil {
		return nil, translate(err, "get player by login")
	}
	return p, nil
}

func (s *PlayerStore) SetCredentials(ctx context.Context, id int64, email, passwordHash string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE players SET email = $2, password_hash = $3, updated_at = now()
		WHERE id = $1
	`, id, email, passwordHash)
	if err != nil {
		return translate(err, "set credentials")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set credentials: %w", ErrNotFound)
	}
	return nil
}

func (s *PlayerStore) UpdateProfile(ctx context.Context, id int64, displayName string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE players SET display_name = $2, updated_at = now() WHERE id = $1
	`, id, displayName)
	if err != nil {
		return translate(err, "update profile")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update profile: %w", ErrNotFound)
	}
	return nil
}

func (s *PlayerStore) SetStatus(ctx context.Context, id int64, status string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE players SET status = $2, last_seen_at = now(), updated_at = now() WHERE id = $1
	`, id, status)
	if err != nil {
		return translate(err, "set status")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set status: %w", ErrNotFound)
	}
	return nil
}

// List returns players ordered by reputation, highest first.
func (s *PlayerStore) List(ctx context.Context, limit, offset int) ([]*models.Player, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+playerColumns+`
		FROM players
		WHERE role = 'player'
		ORDER BY reputation DESC, id ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, translate(err, "list players")
	}
	defer rows.Close()

	var players []*models.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}
