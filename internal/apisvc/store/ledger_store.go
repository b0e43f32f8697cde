package store

import (
	"context"
	"fmt"

	"github.com/avvvet/ganggpt-services/internal/apisvc/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type LedgerStore struct {
	db *pgxpool.Pool
}

func NewLedgerStore(db *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{db: db}
}

func (c *LedgerStore) Balance(ctx context.Context, playerID int64) (decimal.Decimal, error) {
	var totalDr, totalCr decimal.Decimal

	err := c.db.QueryRow(ctx, `
        SELECT
            COALESCE(SUM(dr), 0),
            COALESCE(SUM(cr), 0)
        FROM transactions
        WHERE player_id = $1 AND status = 'completed'
    `, playerID).Scan(&totalDr, &totalCr)

	if err != nil {
		return decimal.Zero, translate(err, "balance")
	}

	return totalDr.Sub(totalCr), nil
}

// Credit books a positive amount to a player under a unique reference.
func (c *LedgerStore) Credit(ctx context.Context, playerID int64, ttype string, amount decimal.Decimal, tref, memo string) (*models.Transaction, error) {
	t := &models.Transaction{
		PlayerID: playerID,
		TType:    ttype,
		Dr:       amount,
		Cr:       decimal.Zero,
		TRef:     tref,
		Status:   "completed",
		Memo:     memo,
	}
	err := c.db.QueryRow(ctx, `
		INSERT INTO transactions (player_id, ttype, dr, cr, tref, status, memo)
		VALUES ($1, $2, $3, 0, $4, 'completed', $5)
		RETURNING id, created_at
	`, playerID, ttype, amount, tref, memo).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return nil, translate(err, "credit")
	}
	return t, nil
}

// Transfer moves amount between players. The sender row is locked for the
// duration so concurrent transfers from one player serialize.
func (c *LedgerStore) Transfer(ctx context.Context, fromID, toID int64, amount decimal.Decimal, memo string) (string, error) {
	tx, err := c.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var lockedID int64
	if err := tx.QueryRow(ctx, `SELECT id FROM players WHERE id = $1 FOR UPDATE`, fromID).Scan(&lockedID); err != nil {
		return "", translate(err, "lock sender")
	}

	var recipientExists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM players WHERE id = $1)`, toID).Scan(&recipientExists); err != nil {
		return "", translate(err, "recipient check")
	}
	if !recipientExists {
		return "", fmt.Errorf("recipient %d: %w", toID, ErrNotFound)
	}

	var totalDr, totalCr decimal.Decimal
	if err := tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(dr), 0), COALESCE(SUM(cr), 0)
		FROM transactions
		WHERE player_id = $1 AND status = 'completed'
	`, fromID).Scan(&totalDr, &totalCr); err != nil {
		return "", translate(err, "sender balance")
	}

	if totalDr.Sub(totalCr).LessThan(amount) {
		return "", ErrInsufficientFunds
	}

	transactionID := uuid.New().String()
	baseRef := fmt.Sprintf("TXF-%s", transactionID[:8])

	if _, err := tx.Exec(ctx, `
		INSERT INTO transactions (player_id, ttype, dr, cr, tref, status, memo)
		VALUES ($1, $2, 0, $3, $4, 'completed', $5)
	`, fromID, models.TxTransferOut, amount, baseRef+"-OUT", memo); err != nil {
		return "", translate(err, "insert sender record")
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO transactions (player_id, ttype, dr, cr, tref, status, memo)
		VALUES ($1, $2, $3, 0, $4, 'completed', $5)
	`, toID, models.TxTransferIn, amount, baseRef+"-IN", memo); err != nil {
		return "", translate(err, "insert receiver record")
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit tx: %w", err)
	}
	return baseRef, nil
}

func (c *LedgerStore) History(ctx context.Context, playerID int64, limit, offset int) ([]*models.Transaction, error) {
	rows, err := c.db.Query(ctx, `
		SELECT id, player_id, ttype, dr, cr, tref, status, memo, created_at
		FROM transactions
		WHERE player_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, playerID, limit, offset)
	if err != nil {
		return nil, translate(err, "history")
	}
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		t := &models.Transaction{}
		if err := rows.Scan(&t.ID, &t.PlayerID, &t.TType, &t.Dr, &t.Cr, &t.TRef, &t.Status, &t.Memo, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
