package data

import (
	"fmt"
	"os"

	"github.com/dinoarena/server/internal/core/geom"
	"gopkg.in/yaml.v3"
)

// CampEntry is a respawning enemy with its home and patrol route.
type CampEntry struct {
	Kind   string      `yaml:"kind"`
	Home   geom.Vec2   `yaml:"home"`
	Patrol []geom.Vec2 `yaml:"patrol"`
}

// PlacedEntry is a fixed structure (turret, headquarters).
type PlacedEntry struct {
	Kind string    `yaml:"kind"`
	Pos  geom.Vec2 `yaml:"pos"`
}

// Arena is the static layout of a match.
type Arena struct {
	DinosaurSpawn geom.Vec2     `yaml:"dinosaur_spawn"`
	OperatorSpawn geom.Vec2     `yaml:"operator_spawn"`
	DroneLaunch   geom.Vec2     `yaml:"drone_launch"`
	Structures    []PlacedEntry `yaml:"structures"`
	Camps         []CampEntry   `yaml:"camps"`
}

type arenaFile struct {
	Arena Arena `yaml:"arena"`
}

// LoadArena loads and validates the arena layout.
func LoadArena(path string) (*Arena, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read arena: %w", err)
	}
	return ParseArena(raw)
}

func ParseArena(raw []byte) (*Arena, error) {
	if err := validate(arenaSchema, raw); err != nil {
		return nil, fmt.Errorf("validate arena: %w", err)
	}
	var f arenaFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse arena: %w", err)
	}
	return &f.Arena, nil
}

// Check verifies every kind the layout places has a template.
func (a *Arena) Check(units *UnitTable) error {
	for _, s := range a.Structures {
		if err := units.Require(s.Kind); err != nil {
			return fmt.Errorf("arena structure: %w", err)
		}
	}
	for _, c := range a.Camps {
		if err := units.Require(c.Kind); err != nil {
			return fmt.Errorf("arena camp: %w", err)
		}
	}
	return nil
}
