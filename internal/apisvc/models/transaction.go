package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ledger entry types.
const (
	TxStarterGrant  = "starter_grant"
	TxMissionReward = "mission_reward"
	TxTransferIn    = "transfer_in"
	TxTransferOut   = "transfer_out"
	TxAdminGrant    = "admin_grant"
)

// Transaction is one ledger row. Balance is the sum of dr minus the sum of cr.
type Transaction struct {
	ID        int64           `json:"id"`
	PlayerID  int64           `json:"player_id"`
	TType     string          `json:"ttype"`
	Dr        decimal.Decimal `json:"dr"`
	Cr        decimal.Decimal `json:"cr"`
	TRef      string          `json:"tref"`
	Status    string          `json:"status"`
	Memo      string          `json:"memo,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
