package ai

import (
	"fmt"
	"strings"

	"github.com/avvvet/ganggpt-services/internal/apisvc/models"
)

// PlayerContext is what the model is told about the player.
type PlayerContext struct {
	Name       string
	Level      int
	Reputation int
	Faction    string
	Rank       string
	Territory  string
}

func (p PlayerContext) describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s, level %d, reputation %d", p.Name, p.Level, p.Reputation)
	if p.Faction != "" {
		fmt.Fprintf(&b, ", %s of %s", p.Rank, p.Faction)
		if p.Territory != "" {
			fmt.Fprintf(&b, " (turf: %s)", p.Territory)
		}
	} else {
		b.WriteString(", no crew")
	}
	return b.String()
}

// BuildCompanionMessages assembles a dialogue prompt. Memories are expected
// oldest first.
func BuildCompanionMessages(c *models.Companion, player PlayerContext, memories []*models.Memory, message string) []Message {
	var sys strings.Builder
	fmt.Fprintf(&sys, "You are %s, a character on the streets of Los Santos.\n", c.Name)
	sys.WriteString(strings.TrimSpace(c.Persona))
	sys.WriteString("\nStay in character. Answer in at most three sentences. Never mention being an AI or a game.\n")
	fmt.Fprintf(&sys, "You are talking to %s.\n", player.describe())

	if len(memories) > 0 {
		sys.WriteString("What you remember about them:\n")
		for _, m := range memories {
			fmt.Fprintf(&sys, "- [%s] %s\n", m.CreatedAt.Format("2006-01-02"), m.Content)
		}
	}

	return []Message{
		System(sys.String()),
		User(message),
	}
}

// MissionRequest describes the mission a player asked for.
type MissionRequest struct {
	Player     PlayerContext
	Difficulty string
	Location   string
	MinReward  int
	MaxReward  int
}

func BuildMissionMessages(req MissionRequest) []Message {
	sys := "You design short missions for a Grand Theft Auto V roleplay server. " +
		"Missions must be playable with standard game mechanics: driving, deliveries, " +
		"escorts, races, heists on NPC targets, territory patrols. " +
		"Respond only with JSON matching the mission_draft schema."

	var user strings.Builder
	fmt.Fprintf(&user, "Player: %s.\n", req.Player.describe())
	fmt.Fprintf(&user, "Difficulty: %s.\n", req.Difficulty)
	if req.Location != "" {
		fmt.Fprintf(&user, "Start location: %s.\n", req.Location)
	}
	fmt.Fprintf(&user, "Cash reward between %d and %d dollars. 1 to 6 objectives. Duration between 10 and 240 minutes.",
		req.MinReward, req.MaxReward)

	return []Message{
		System(sys),
		User(user.String()),
	}
}
