// Package catalog holds the seed content shipped with the services: the
// AI controlled factions, the companion personas and the mission templates
// used when the AI is unavailable.
package catalog

import (
	_ "embed"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/avvvet/ganggpt-services/internal/apisvc/models"
)

//go:embed default.yaml
var defaultYAML []byte

type Faction struct {
	Name        string `yaml:"name"`
	Tag         string `yaml:"tag"`
	Kind        string `yaml:"kind"`
	Color       string `yaml:"color"`
	Territory   string `yaml:"territory"`
	Description string `yaml:"description"`
}

type Companion struct {
	Name    string `yaml:"name"`
	Faction string `yaml:"faction"` // faction tag, optional
	Persona string `yaml:"persona"`
}

type MissionTemplate struct {
	Difficulty  string   `yaml:"difficulty"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Objectives  []string `yaml:"objectives"`
	Reward      int      `yaml:"reward"`
	Reputation  int      `yaml:"reputation"`
	Duration    int      `yaml:"duration"` // minutes
}

type Catalog struct {
	Factions   []Faction         `yaml:"factions"`
	Companions []Companion       `yaml:"companions"`
	Missions   []MissionTemplate `yaml:"missions"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultYAML)
}

// Load reads a catalog file, or the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	names := map[string]bool{}
	tags := map[string]bool{}
	for _, f := range c.Factions {
		if f.Name == "" || f.Tag == "" {
			return fmt.Errorf("catalog: faction needs name and tag")
		}
		if names[strings.ToLower(f.Name)] {
			return fmt.Errorf("catalog: duplicate faction name %q", f.Name)
		}
		if tags[f.Tag] {
			return fmt.Errorf("catalog: duplicate faction tag %q", f.Tag)
		}
		if !lo.Contains(models.FactionKinds, f.Kind) {
			return fmt.Errorf("catalog: faction %q has unknown kind %q", f.Name, f.Kind)
		}
		names[strings.ToLower(f.Name)] = true
		tags[f.Tag] = true
	}

	companions := map[string]bool{}
	for _, cp := range c.Companions {
		key := strings.ToLower(cp.Name)
		if key == "" || companions[key] {
			return fmt.Errorf("catalog: missing or duplicate companion name %q", cp.Name)
		}
		if cp.Faction != "" && !tags[cp.Faction] {
			return fmt.Errorf("catalog: companion %q references unknown faction %q", cp.Name, cp.Faction)
		}
		companions[key] = true
	}

	for _, m := range c.Missions {
		if !lo.Contains(models.Difficulties, m.Difficulty) {
			return fmt.Errorf("catalog: mission %q has unknown difficulty %q", m.Title, m.Difficulty)
		}
		if m.Title == "" || len(m.Objectives) == 0 {
			return fmt.Errorf("catalog: mission %q needs a title and objectives", m.Title)
		}
	}
	return nil
}

func (c *Catalog) Templates(difficulty string) []MissionTemplate {
	return lo.Filter(c.Missions, func(m MissionTemplate, _ int) bool {
		return m.Difficulty == difficulty
	})
}

// PickTemplate returns a random template of the given difficulty.
func (c *Catalog) PickTemplate(difficulty string) (MissionTemplate, bool) {
	ts := c.Templates(difficulty)
	if len(ts) == 0 {
		return MissionTemplate{}, false
	}
	return ts[rand.Intn(len(ts))], true
}
