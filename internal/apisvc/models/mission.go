package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MissionAvailable = "available"
	MissionActive    = "active"
	MissionCompleted = "completed"
	MissionAbandoned = "abandoned"
	MissionExpired   = "expired"
)

const (
	SourceAI       = "ai"
	SourceTemplate = "template"
)

var Difficulties = []string{"easy", "medium", "hard"}

type Mission struct {
	ID               uuid.UUID       `json:"id"`
	PlayerID         int64           `json:"player_id"`
	FactionID        *int64          `json:"faction_id,omitempty"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	Objectives       []string        `json:"objectives"`
	Difficulty       string          `json:"difficulty"`
	Reward           decimal.Decimal `json:"reward"`
	ReputationReward int             `json:"reputation_reward"`
	Location         string          `json:"location"`
	Source           string          `json:"source"`
	Status           string          `json:"status"`
	ExpiresAt        time.Time       `json:"expires_at"`
	AcceptedAt       *time.Time      `json:"accepted_at,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// MissionResult is what a completed mission paid out.
type MissionResult struct {
	Mission    *Mission        `json:"mission"`
	Balance    decimal.Decimal `json:"balance"`
	Reputation int             `json:"reputation"`
	Level      int             `json:"level"`
}
