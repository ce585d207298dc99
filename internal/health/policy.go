package health

import (
	"fmt"

	"github.com/dinoarena/server/internal/core/ecs"
)

// Mode is what happens to an entity after its terminal transition.
type Mode int

const (
	// DespawnImmediately frees ephemeral units (drones) on death.
	DespawnImmediately Mode = iota
	// DespawnAfter keeps the corpse for Delay ticks (death animation).
	DespawnAfter
	// HoldForRespawn leaves the entity dead but present until revived.
	HoldForRespawn
)

func (m Mode) String() string {
	switch m {
	case DespawnImmediately:
		return "despawn"
	case DespawnAfter:
		return "despawn_after"
	case HoldForRespawn:
		return "hold"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// DeathPolicy pairs a mode with its delay in ticks.
type DeathPolicy struct {
	Mode  Mode
	Delay uint32
}

func Immediately() DeathPolicy       { return DeathPolicy{Mode: DespawnImmediately} }
func After(ticks uint32) DeathPolicy { return DeathPolicy{Mode: DespawnAfter, Delay: ticks} }
func Hold() DeathPolicy              { return DeathPolicy{Mode: HoldForRespawn} }
func (p DeathPolicy) String() string { return fmt.Sprintf("%s/%d", p.Mode, p.Delay) }

type kindPair struct {
	attacker ecs.Kind
	victim   ecs.Kind
}

// Exclusions decides which attacker/victim pairs may not deal damage.
// Self damage and same-kind damage are switches; specific pairs are listed.
type Exclusions struct {
	allowSelf     bool
	allowSameKind bool
	pairs         map[kindPair]struct{}
}

func NewExclusions(allowSelf, allowSameKind bool) *Exclusions {
	return &Exclusions{
		allowSelf:     allowSelf,
		allowSameKind: allowSameKind,
		pairs:         make(map[kindPair]struct{}),
	}
}

// Exclude forbids attacker-kind damage on victim-kind.
func (e *Exclusions) Exclude(attacker, victim ecs.Kind) {
	e.pairs[kindPair{attacker, victim}] = struct{}{}
}

// Excluded reports whether the hit must be ignored.
func (e *Exclusions) Excluded(attacker, victim ecs.EntityID, ak, vk ecs.Kind) bool {
	if attacker.IsZero() {
		return false // environmental damage
	}
	if attacker == victim {
		return !e.allowSelf
	}
	if ak == vk && !e.allowSameKind {
		return true
	}
	_, ok := e.pairs[kindPair{ak, vk}]
	return ok
}
