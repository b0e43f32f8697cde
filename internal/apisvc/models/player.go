package models

import (
	"time"
)

const (
	PlayerOffline = "offline"
	PlayerOnline  = "online"
	PlayerBanned  = "banned"
)

// Faction ranks, lowest first.
const (
	RankRecruit    = 0
	RankMember     = 1
	RankLieutenant = 2
	RankLeader     = 3
)

var rankNames = []string{"recruit", "member", "lieutenant", "leader"}

func RankName(rank int) string {
	if rank < 0 || rank >= len(rankNames) {
		return "unknown"
	}
	return rankNames[rank]
}

// Player represents the players table in the database.
type Player struct {
	ID           int64      `json:"id"`
	SocialClub   string     `json:"social_club"`
	DisplayName  string     `json:"display_name"`
	Email        *string    `json:"email,omitempty"`
	PasswordHash *string    `json:"-"`
	Role         string     `json:"role"`
	Status       string     `json:"status"`
	FactionID    *int64     `json:"faction_id,omitempty"`
	FactionRank  int        `json:"faction_rank"`
	Reputation   int        `json:"reputation"`
	Level        int        `json:"level"`
	LastSeenAt   *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (p *Player) HasCredentials() bool {
	return p.PasswordHash != nil && *p.PasswordHash != ""
}

func (p *Player) InFaction() bool {
	return p.FactionID != nil
}

// LevelFor derives the player level from reputation.
func LevelFor(reputation int) int {
	if reputation < 0 {
		return 1
	}
	return 1 + reputation/1000
}
