package ai

import (
	"testing"
	"time"

	"github.com/avvvet/ganggpt-services/internal/apisvc/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCompanionMessages(t *testing.T) {
	c := &models.Companion{Name: "Dez Morales", Persona: "A retired getaway driver from Strawberry."}
	player := PlayerContext{Name: "Vinewood_Vic", Level: 3, Reputation: 2100, Faction: "Grove Street Saints", Rank: "lieutenant"}
	memories := []*models.Memory{
		{Content: "Vic helped me fix my Buffalo.", CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}

	msgs := BuildCompanionMessages(c, player, memories, "Got any work?")
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "You are Dez Morales")
	assert.Contains(t, msgs[0].Content, "retired getaway driver")
	assert.Contains(t, msgs[0].Content, "lieutenant of Grove Street Saints")
	assert.Contains(t, msgs[0].Content, "- [2026-03-01] Vic helped me fix my Buffalo.")
	assert.Equal(t, User("Got any work?"), msgs[1])
}

func TestBuildCompanionMessages_NoMemories(t *testing.T) {
	msgs := BuildCompanionMessages(&models.Companion{Name: "Ray"}, PlayerContext{Name: "p"}, nil, "hi")
	assert.NotContains(t, msgs[0].Content, "What you remember")
	assert.Contains(t, msgs[0].Content, "no crew")
}

func TestBuildMissionMessages(t *testing.T) {
	msgs := BuildMissionMessages(MissionRequest{
		Player:     PlayerContext{Name: "p", Level: 1},
		Difficulty: "hard",
		Location:   "Sandy Shores airfield",
		MinReward:  10000,
		MaxReward:  50000,
	})
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Content, "mission_draft")
	assert.Contains(t, msgs[1].Content, "Difficulty: hard.")
	assert.Contains(t, msgs[1].Content, "Sandy Shores airfield")
	assert.Contains(t, msgs[1].Content, "between 10000 and 50000")
}
