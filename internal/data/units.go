package data

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// UnitTemplate holds static stats for one entity kind loaded from YAML.
// Fields a kind does not use stay zero.
type UnitTemplate struct {
	Kind     string  `yaml:"kind"`
	MaxHP    int32   `yaml:"max_hp"`
	Speed    float64 `yaml:"speed"`
	RunSpeed float64 `yaml:"run_speed"`
	Exp      int32   `yaml:"exp"` // experience awarded to the killer

	Damage       int32         `yaml:"damage"`
	Radius       float64       `yaml:"radius"`        // attack, hit or blast radius
	AttackWindow time.Duration `yaml:"attack_window"` // melee swing duration
	Cooldown     time.Duration `yaml:"cooldown"`      // action cooldown (drone bomb)
	Range        float64       `yaml:"range"`         // turret acquisition range
	FireRate     float64       `yaml:"fire_rate"`     // shots per second
	Lifetime     time.Duration `yaml:"lifetime"`      // projectiles and effects
	Fuse         time.Duration `yaml:"fuse"`          // bomb fall time
	DeathDelay   time.Duration `yaml:"death_delay"`   // corpse time before despawn
	Detect       float64       `yaml:"detect"`        // chase trigger distance
	Accept       float64       `yaml:"accept"`        // patrol waypoint tolerance

	Targets []string `yaml:"targets"` // kinds this unit seeks or hits
	Immune  []string `yaml:"immune"`  // kinds this unit never damages
	Spawns  string   `yaml:"spawns"`  // kind spawned on fire or detonation
}

// TargetsKind reports whether k is listed in Targets.
func (u *UnitTemplate) TargetsKind(k string) bool { return contains(u.Targets, k) }

// ImmuneKind reports whether k is listed in Immune.
func (u *UnitTemplate) ImmuneKind(k string) bool { return contains(u.Immune, k) }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type unitListFile struct {
	Units []UnitTemplate `yaml:"units"`
}

// UnitTable holds all unit templates indexed by kind.
type UnitTable struct {
	templates map[string]*UnitTemplate
}

// LoadUnitTable loads and validates unit templates from a YAML file.
func LoadUnitTable(path string) (*UnitTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read units: %w", err)
	}
	return ParseUnitTable(raw)
}

// ParseUnitTable validates raw YAML against the units schema and decodes it.
func ParseUnitTable(raw []byte) (*UnitTable, error) {
	if err := validate(unitsSchema, raw); err != nil {
		return nil, fmt.Errorf("validate units: %w", err)
	}
	var f unitListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse units: %w", err)
	}
	t := &UnitTable{templates: make(map[string]*UnitTemplate, len(f.Units))}
	for i := range f.Units {
		u := &f.Units[i]
		if _, dup := t.templates[u.Kind]; dup {
			return nil, fmt.Errorf("parse units: duplicate kind %q", u.Kind)
		}
		t.templates[u.Kind] = u
	}
	return t, nil
}

// Get returns a template by kind, or nil if not found.
func (t *UnitTable) Get(kind string) *UnitTemplate {
	return t.templates[kind]
}

// Require fails naming the first kind without a template.
func (t *UnitTable) Require(kinds ...string) error {
	for _, k := range kinds {
		if t.templates[k] == nil {
			return fmt.Errorf("units: missing template %q", k)
		}
	}
	return nil
}

// Kinds returns every loaded kind, sorted.
func (t *UnitTable) Kinds() []string {
	out := make([]string, 0, len(t.templates))
	for k := range t.templates {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of loaded templates.
func (t *UnitTable) Count() int {
	return len(t.templates)
}
