package world

import (
	"github.com/dinoarena/server/internal/authority"
	"github.com/dinoarena/server/internal/core/ecs"
	"github.com/dinoarena/server/internal/core/geom"
	"github.com/dinoarena/server/internal/core/timer"
)

// Capability components. An entity's behavior is the set of components it
// carries; systems iterate the stores they care about.

// Transform is the authoritative position and heading.
type Transform struct {
	Pos    geom.Vec2
	Facing geom.Vec2
}

// Mover holds movement speed and the latest intent.
type Mover struct {
	Speed    float64
	RunSpeed float64
	Intent   geom.Vec2 // unit direction or zero
	Running  bool
	Dest     geom.Vec2 // drone move order target
	HasDest  bool
}

// Damageable marks an entity that HealthResolution may hit. The health
// values live in the replicated block (hp, max_hp, dead).
type Damageable struct{}

// Melee is a close-range swing (dinosaur Attack command).
type Melee struct {
	Damage int32
	Radius float64
	Window uint32 // ticks
	Swing  timer.Countdown
}

// Patrol walks a looped route of waypoints.
type Patrol struct {
	Points []geom.Vec2
	Next   int
	Accept float64
}

// Chaser pursues the nearest target kind within Detect.
type Chaser struct {
	Detect float64
	Kind   ecs.Kind
}

// Turret acquires the nearest target in range and fires on a timer.
type Turret struct {
	Range    float64
	Interval uint32
	Fire     timer.Countdown
	Target   ecs.EntityID
	Targets  []ecs.Kind
}

// Projectile flies straight and damages the first matching target it touches.
type Projectile struct {
	Dir       geom.Vec2
	Speed     float64
	Damage    int32
	HitRadius float64
	Owner     ecs.EntityID
	Targets   []ecs.Kind
}

// Explosive detonates when its fuse expires, damaging everything in radius
// except the immune kinds.
type Explosive struct {
	Fuse   timer.Countdown
	Radius float64
	Damage int32
	Owner  ecs.EntityID
	Immune []ecs.Kind
}

// Lifetime despawns the entity when it expires.
type Lifetime struct {
	Timer timer.Countdown
}

// Bounty is the experience awarded to the killer.
type Bounty struct {
	Exp int32
}

// Camp ties a respawning enemy to its home.
type Camp struct {
	Home    geom.Vec2
	Respawn timer.Countdown
	Waiting bool
}

// Slot is one drone bay position.
type Slot struct {
	Drone    ecs.EntityID
	Cooldown timer.Countdown
}

// DroneBay belongs to the operator avatar.
type DroneBay struct {
	Slots []Slot
}

// Drone is a bay-launched unit.
type Drone struct {
	Bay      ecs.EntityID // operator avatar
	Slot     int
	Bomb     timer.Countdown
	Cooldown uint32
}

// Avatar is the entity a peer controls directly.
type Avatar struct {
	Peer authority.PeerID
	Name string
	Role string // "dinosaur" or "operator"
}

// Leveling accumulates experience and applies level scaling.
type Leveling struct {
	Level     int32
	Exp       int32
	BaseSpeed float64
	BaseDmg   int32
	BaseHP    int32
}

// Goal marks a structure whose destruction ends the match.
type Goal struct{}
