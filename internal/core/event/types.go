package event

import (
	"github.com/dinoarena/server/internal/authority"
	"github.com/dinoarena/server/internal/core/ecs"
	"github.com/dinoarena/server/internal/core/tick"
)

type EntitySpawned struct {
	Entity ecs.EntityID
	Kind   ecs.Kind
	State  authority.PeerID
	Input  authority.PeerID
	Tick   tick.Tick
}

type EntityDespawned struct {
	Entity ecs.EntityID
	Kind   ecs.Kind
	Tick   tick.Tick
}

// EntityDamaged is the non-terminal hit notification (hit reaction, sound).
type EntityDamaged struct {
	Entity   ecs.EntityID
	Kind     ecs.Kind
	Attacker ecs.EntityID
	Amount   int32
	Current  int32
	Max      int32
	Tick     tick.Tick
}

// EntityDied fires exactly once per terminal transition.
type EntityDied struct {
	Entity ecs.EntityID
	Kind   ecs.Kind
	Killer ecs.EntityID
	Tick   tick.Tick
}

type EntityRevived struct {
	Entity ecs.EntityID
	Kind   ecs.Kind
	Tick   tick.Tick
}

type LevelUp struct {
	Entity ecs.EntityID
	Level  int32
	Tick   tick.Tick
}

type PeerJoined struct {
	Peer   authority.PeerID
	Name   string
	Role   string
	Avatar ecs.EntityID
}

type PeerLeft struct {
	Peer authority.PeerID
}

type MatchEnded struct {
	MatchID string
	Winner  string // "dinosaur" or "operator"
	Reason  string
	Tick    tick.Tick
}
