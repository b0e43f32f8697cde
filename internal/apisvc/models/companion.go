package models

import "time"

// Companion is an AI-voiced character players talk to in game.
type Companion struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Persona   string    `json:"persona"`
	FactionID *int64    `json:"faction_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	MemoryDialogue = "dialogue"
	MemoryEvent    = "event"
	MemoryFact     = "fact"
)

// Memory is something a companion remembers about one player.
type Memory struct {
	ID          int64     `json:"id"`
	CompanionID int64     `json:"companion_id"`
	PlayerID    int64     `json:"player_id"`
	Kind        string    `json:"kind"`
	Content     string    `json:"content"`
	Importance  int       `json:"importance"`
	CreatedAt   time.Time `json:"created_at"`
}
