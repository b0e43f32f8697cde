package models

import "time"

var FactionKinds = []string{"gang", "mafia", "cartel", "biker", "crew"}

type Faction struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Tag          string    `json:"tag"`
	Kind         string    `json:"kind"`
	Color        string    `json:"color"`
	Territory    string    `json:"territory"`
	Description  string    `json:"description"`
	LeaderID     *int64    `json:"leader_id,omitempty"`
	Influence    int       `json:"influence"`
	AIControlled bool      `json:"ai_controlled"`
	MemberCount  int       `json:"member_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
