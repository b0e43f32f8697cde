package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

var ErrInvalidDraft = errors.New("ai: invalid mission draft")

// MissionDraft is the structured answer requested from the model.
type MissionDraft struct {
	Title            string   `json:"title" jsonschema:"description=Short punchy mission title"`
	Description      string   `json:"description" jsonschema:"description=Two or three sentences of briefing"`
	Objectives       []string `json:"objectives" jsonschema:"description=Ordered in-game objectives"`
	Difficulty       string   `json:"difficulty" jsonschema:"enum=easy,enum=medium,enum=hard"`
	Reward           int      `json:"reward" jsonschema:"description=Cash reward in dollars"`
	ReputationReward int      `json:"reputation_reward"`
	DurationMinutes  int      `json:"duration_minutes" jsonschema:"description=Minutes the player has to finish"`
}

type ResponseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *JSONSchema `json:"json_schema,omitempty"`
}

type JSONSchema struct {
	Name   string             `json:"name"`
	Strict bool               `json:"strict"`
	Schema *jsonschema.Schema `json:"schema"`
}

// MissionResponseFormat asks for a MissionDraft in strict JSON schema mode.
func MissionResponseFormat() *ResponseFormat {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		Anonymous:      true,
	}
	schema := r.Reflect(&MissionDraft{})
	schema.Version = ""

	return &ResponseFormat{
		Type: "json_schema",
		JSONSchema: &JSONSchema{
			Name:   "mission_draft",
			Strict: true,
			Schema: schema,
		},
	}
}

// ParseMissionDraft decodes a completion into a draft. Markdown code fences
// around the JSON are tolerated.
func ParseMissionDraft(content string) (*MissionDraft, error) {
	body := strings.TrimSpace(content)
	if strings.HasPrefix(body, "```") {
		body = strings.TrimPrefix(body, "```json")
		body = strings.TrimPrefix(body, "```")
		body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	}

	var d MissionDraft
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}

	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return nil, fmt.Errorf("%w: missing title", ErrInvalidDraft)
	}

	objectives := d.Objectives[:0]
	for _, o := range d.Objectives {
		if o = strings.TrimSpace(o); o != "" {
			objectives = append(objectives, o)
		}
	}
	d.Objectives = objectives
	if len(d.Objectives) == 0 {
		return nil, fmt.Errorf("%w: no objectives", ErrInvalidDraft)
	}

	return &d, nil
}
