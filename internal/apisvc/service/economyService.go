package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/avvvet/ganggpt-services/internal/apisvc/models"
	"github.com/avvvet/ganggpt-services/internal/apisvc/store"
	"github.com/avvvet/ganggpt-services/internal/auth"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var maxTransfer = decimal.NewFromInt(1_000_000)

type EconomyService struct {
	ledger  LedgerStore
	players PlayerStore
}

func NewEconomyService(ledger LedgerStore, players PlayerStore) *EconomyService {
	return &EconomyService{ledger: ledger, players: players}
}

// TransferResult is returned to the sender after a transfer.
type TransferResult struct {
	Ref     string          `json:"ref"`
	Amount  decimal.Decimal `json:"amount"`
	Balance decimal.Decimal `json:"balance"`
}

func validAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || amount.GreaterThan(maxTransfer) || !amount.Equal(amount.Round(2)) {
		return ErrInvalidAmount
	}
	return nil
}

func (s *EconomyService) Balance(ctx context.Context, playerID int64) (decimal.Decimal, error) {
	return s.ledger.Balance(ctx, playerID)
}

func (s *EconomyService) History(ctx context.Context, playerID int64, limit, offset int) ([]*models.Transaction, error) {
	limit = clamp(limit, 1, 100)
	if offset < 0 {
		offset = 0
	}
	return s.ledger.History(ctx, playerID, limit, offset)
}

// Transfer moves money between two players atomically.
func (s *EconomyService) Transfer(ctx context.Context, fromID, toID int64, amount decimal.Decimal, memo string) (*TransferResult, error) {
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	if fromID == toID {
		return nil, ErrSelfTransfer
	}

	ref, err := s.ledger.Transfer(ctx, fromID, toID, amount, truncate(memo, 140))
	switch {
	case errors.Is(err, store.ErrInsufficientFunds):
		return nil, ErrInsufficientFunds
	case err != nil:
		return nil, notFound(err, ErrPlayerNotFound)
	}

	balance, err := s.ledger.Balance(ctx, fromID)
	if err != nil {
		return nil, err
	}
	log.Infof("transfer %s: %s from %d to %d", ref, amount.StringFixed(2), fromID, toID)
	return &TransferResult{Ref: ref, Amount: amount, Balance: balance}, nil
}

// Grant credits a player out of thin air. Admin only.
func (s *EconomyService) Grant(ctx context.Context, role string, playerID int64, amount decimal.Decimal, memo string) (*models.Transaction, error) {
	if role != auth.RoleAdmin {
		return nil, ErrAdminOnly
	}
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	if _, err := s.players.GetByID(ctx, playerID); err != nil {
		return nil, notFound(err, ErrPlayerNotFound)
	}

	ref := fmt.Sprintf("ADM-%s", uuid.New().String()[:8])
	t, err := s.ledger.Credit(ctx, playerID, models.TxAdminGrant, amount, ref, truncate(memo, 140))
	if err != nil {
		return nil, notFound(err, ErrPlayerNotFound)
	}
	log.Infof("admin grant %s: %s to %d", ref, amount.StringFixed(2), playerID)
	return t, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
