package world

import (
	"fmt"
	"time"

	"github.com/dinoarena/server/internal/authority"
	"github.com/dinoarena/server/internal/core/ecs"
	"github.com/dinoarena/server/internal/core/geom"
	"github.com/dinoarena/server/internal/core/tick"
	"github.com/dinoarena/server/internal/core/timer"
	"github.com/dinoarena/server/internal/data"
	"github.com/dinoarena/server/internal/replication"
)

// Prefabs turns unit templates into spawn specs. The host is state
// authority of everything it builds.
type Prefabs struct {
	units *data.UnitTable
	rate  time.Duration
	host  authority.PeerID
}

func NewPrefabs(units *data.UnitTable, rate time.Duration, host authority.PeerID) (*Prefabs, error) {
	if err := units.Require(
		string(KindDinosaur), string(KindOperator), string(KindDrone), string(KindBomb),
		string(KindExplosion), string(KindTurret), string(KindBullet), string(KindHQ),
	); err != nil {
		return nil, fmt.Errorf("prefabs: %w", err)
	}
	return &Prefabs{units: units, rate: rate, host: host}, nil
}

// Template returns the unit template of a kind.
func (p *Prefabs) Template(kind ecs.Kind) *data.UnitTemplate { return p.units.Get(string(kind)) }

// Ticks converts a template duration at the simulation rate.
func (p *Prefabs) Ticks(d time.Duration) uint32 { return tick.TicksFor(d, p.rate) }

func (p *Prefabs) Dinosaur(w *World, peer authority.PeerID, name string, pos geom.Vec2) SpawnSpec {
	t := p.Template(KindDinosaur)
	return SpawnSpec{
		Kind: KindDinosaur, Pos: pos, State: p.host, Input: peer, MaxHP: t.MaxHP,
		Fields: []replication.Value{
			replication.V(FieldName, name),
			replication.V(FieldRunning, false),
			replication.V(FieldAttacking, false),
			replication.V(FieldLevel, int32(1)),
			replication.V(FieldExp, int32(0)),
			replication.V(FieldResult, ""),
		},
		Setup: func(id ecs.EntityID) {
			w.Movers.Set(id, &Mover{Speed: t.Speed, RunSpeed: t.RunSpeed})
			w.Melees.Set(id, &Melee{Damage: t.Damage, Radius: t.Radius, Window: p.Ticks(t.AttackWindow)})
			w.Avatars.Set(id, &Avatar{Peer: peer, Name: name, Role: "dinosaur"})
			w.Levels.Set(id, &Leveling{Level: 1, BaseSpeed: t.Speed, BaseDmg: t.Damage, BaseHP: t.MaxHP})
		},
	}
}

func (p *Prefabs) Operator(w *World, peer authority.PeerID, name string, pos geom.Vec2, slots int) SpawnSpec {
	t := p.Template(KindOperator)
	return SpawnSpec{
		Kind: KindOperator, Pos: pos, State: p.host, Input: peer,
		Fields: []replication.Value{
			replication.V(FieldName, name),
			replication.V(FieldResult, ""),
		},
		Setup: func(id ecs.EntityID) {
			w.Movers.Set(id, &Mover{Speed: t.Speed})
			w.Avatars.Set(id, &Avatar{Peer: peer, Name: name, Role: "operator"})
			w.Bays.Set(id, &DroneBay{Slots: make([]Slot, slots)})
		},
	}
}

// Drone is spawned with the host as input authority; the bay hands input
// authority to the operator once the drone exists.
func (p *Prefabs) Drone(w *World, bay ecs.EntityID, slot int, pos geom.Vec2) SpawnSpec {
	t := p.Template(KindDrone)
	return SpawnSpec{
		Kind: KindDrone, Pos: pos, State: p.host, Input: p.host, MaxHP: t.MaxHP,
		Fields: []replication.Value{
			replication.V(FieldWalking, false),
			replication.V(FieldReadyAt, uint64(0)),
		},
		Setup: func(id ecs.EntityID) {
			w.Movers.Set(id, &Mover{Speed: t.Speed})
			w.Drones.Set(id, &Drone{Bay: bay, Slot: slot, Cooldown: p.Ticks(t.Cooldown)})
		},
	}
}

func (p *Prefabs) Bomb(w *World, owner ecs.EntityID, pos geom.Vec2) SpawnSpec {
	t := p.Template(KindBomb)
	return SpawnSpec{
		Kind: KindBomb, Pos: pos, State: p.host,
		Setup: func(id ecs.EntityID) {
			w.Explosives.Set(id, &Explosive{
				Fuse:   timer.Start(w.Clock(), p.Ticks(t.Fuse)),
				Radius: t.Radius,
				Damage: t.Damage,
				Owner:  owner,
				Immune: Kinds(t.Immune),
			})
		},
	}
}

func (p *Prefabs) Explosion(w *World, pos geom.Vec2) SpawnSpec {
	t := p.Template(KindExplosion)
	return SpawnSpec{
		Kind: KindExplosion, Pos: pos, State: p.host,
		Setup: func(id ecs.EntityID) {
			w.Lifetimes.Set(id, &Lifetime{Timer: timer.Start(w.Clock(), p.Ticks(t.Lifetime))})
		},
	}
}

func (p *Prefabs) Turret(w *World, pos geom.Vec2) SpawnSpec {
	t := p.Template(KindTurret)
	interval := uint32(1)
	if t.FireRate > 0 {
		interval = p.Ticks(time.Duration(float64(time.Second) / t.FireRate))
	}
	return SpawnSpec{
		Kind: KindTurret, Pos: pos, State: p.host, Input: p.host, MaxHP: t.MaxHP,
		Fields: []replication.Value{replication.V(FieldAttacking, false)},
		Setup: func(id ecs.EntityID) {
			w.Turrets.Set(id, &Turret{
				Range:    t.Range,
				Interval: interval,
				Fire:     timer.Start(w.Clock(), interval),
				Targets:  Kinds(t.Targets),
			})
		},
	}
}

func (p *Prefabs) Bullet(w *World, owner ecs.EntityID, pos, dir geom.Vec2) SpawnSpec {
	t := p.Template(KindBullet)
	return SpawnSpec{
		Kind: KindBullet, Pos: pos, State: p.host,
		Setup: func(id ecs.EntityID) {
			w.Projectiles.Set(id, &Projectile{
				Dir:       dir.Norm(),
				Speed:     t.Speed,
				Damage:    t.Damage,
				HitRadius: t.Radius,
				Owner:     owner,
				Targets:   Kinds(t.Targets),
			})
			w.Lifetimes.Set(id, &Lifetime{Timer: timer.Start(w.Clock(), p.Ticks(t.Lifetime))})
		},
	}
}

func (p *Prefabs) HQ(w *World, pos geom.Vec2) SpawnSpec {
	t := p.Template(KindHQ)
	return SpawnSpec{
		Kind: KindHQ, Pos: pos, State: p.host, MaxHP: t.MaxHP,
		Setup: func(id ecs.EntityID) {
			w.Goals.Set(id, &Goal{})
		},
	}
}

// Structure dispatches a placed arena entry.
func (p *Prefabs) Structure(w *World, e data.PlacedEntry) (SpawnSpec, error) {
	switch ecs.Kind(e.Kind) {
	case KindHQ:
		return p.HQ(w, e.Pos), nil
	case KindTurret:
		return p.Turret(w, e.Pos), nil
	default:
		return SpawnSpec{}, fmt.Errorf("prefab: %q is not a structure", e.Kind)
	}
}

// Enemy builds a camp-bound enemy from its template.
func (p *Prefabs) Enemy(w *World, camp data.CampEntry) (SpawnSpec, error) {
	kind := ecs.Kind(camp.Kind)
	t := p.Template(kind)
	if t == nil {
		return SpawnSpec{}, fmt.Errorf("prefab: no template for %q", camp.Kind)
	}
	return SpawnSpec{
		Kind: kind, Pos: camp.Home, State: p.host, Input: p.host, MaxHP: t.MaxHP,
		Fields: []replication.Value{replication.V(FieldWalking, false)},
		Setup: func(id ecs.EntityID) {
			w.Movers.Set(id, &Mover{Speed: t.Speed})
			if len(camp.Patrol) > 0 {
				pts := make([]geom.Vec2, len(camp.Patrol))
				copy(pts, camp.Patrol)
				w.Patrols.Set(id, &Patrol{Points: pts, Accept: t.Accept})
			}
			if t.Detect > 0 && len(t.Targets) > 0 {
				w.Chasers.Set(id, &Chaser{Detect: t.Detect, Kind: ecs.Kind(t.Targets[0])})
			}
			if t.Exp > 0 {
				w.Bounties.Set(id, &Bounty{Exp: t.Exp})
			}
			w.Camps.Set(id, &Camp{Home: camp.Home})
		},
	}, nil
}
