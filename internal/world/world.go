// Package world is the explicit container passed to every system: entity
// lifecycle, authority, replicated state, capability components and the
// spatial index. There are no package-level registries.
package world

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dinoarena/server/internal/authority"
	"github.com/dinoarena/server/internal/core/ecs"
	"github.com/dinoarena/server/internal/core/event"
	"github.com/dinoarena/server/internal/core/geom"
	"github.com/dinoarena/server/internal/core/tick"
	"github.com/dinoarena/server/internal/replication"
	"go.uber.org/zap"
)

var (
	ErrNotActive = errors.New("entity is not active")
	ErrNoState   = errors.New("spawn needs a state authority")
)

// DespawnHook is a local cleanup callback run when an entity leaves Active.
type DespawnHook func(id ecs.EntityID, kind ecs.Kind)

// SpawnSpec describes one entity to create.
type SpawnSpec struct {
	Kind  ecs.Kind
	Pos   geom.Vec2
	State authority.PeerID
	Input authority.PeerID
	// MaxHP > 0 makes the entity damageable and initializes hp = max_hp.
	MaxHP  int32
	Fields []replication.Value
	// Setup attaches capability components before the spawn is announced.
	Setup func(id ecs.EntityID)
}

type World struct {
	ECS   *ecs.World
	Auth  *authority.Registry
	State *replication.Store
	Bus   *event.Bus
	Grid  *Grid

	clock tick.Source
	local authority.PeerID
	log   *zap.Logger
	kinds map[ecs.EntityID]ecs.Kind
	hooks []DespawnHook

	Transforms  *ecs.PtrComponentStore[Transform]
	Movers      *ecs.PtrComponentStore[Mover]
	Damageables *ecs.PtrComponentStore[Damageable]
	Melees      *ecs.PtrComponentStore[Melee]
	Patrols     *ecs.PtrComponentStore[Patrol]
	Chasers     *ecs.PtrComponentStore[Chaser]
	Turrets     *ecs.PtrComponentStore[Turret]
	Projectiles *ecs.PtrComponentStore[Projectile]
	Explosives  *ecs.PtrComponentStore[Explosive]
	Lifetimes   *ecs.PtrComponentStore[Lifetime]
	Bounties    *ecs.PtrComponentStore[Bounty]
	Camps       *ecs.PtrComponentStore[Camp]
	Bays        *ecs.PtrComponentStore[DroneBay]
	Drones      *ecs.PtrComponentStore[Drone]
	Avatars     *ecs.PtrComponentStore[Avatar]
	Levels      *ecs.PtrComponentStore[Leveling]
	Goals       *ecs.PtrComponentStore[Goal]
}

// New builds a world whose mutations are performed as the local peer.
func New(local authority.PeerID, clock tick.Source, cellSize float64, log *zap.Logger) *World {
	e := ecs.NewWorld()
	auth := authority.NewRegistry()
	w := &World{
		ECS:   e,
		Auth:  auth,
		State: replication.NewStore(auth, e, clock, log),
		Bus:   event.NewBus(),
		Grid:  NewGrid(cellSize),
		clock: clock,
		local: local,
		log:   log,
		kinds: make(map[ecs.EntityID]ecs.Kind, 256),
	}
	r := e.Registry()
	w.Transforms = ecs.NewStore[Transform](r)
	w.Movers = ecs.NewStore[Mover](r)
	w.Damageables = ecs.NewStore[Damageable](r)
	w.Melees = ecs.NewStore[Melee](r)
	w.Patrols = ecs.NewStore[Patrol](r)
	w.Chasers = ecs.NewStore[Chaser](r)
	w.Turrets = ecs.NewStore[Turret](r)
	w.Projectiles = ecs.NewStore[Projectile](r)
	w.Explosives = ecs.NewStore[Explosive](r)
	w.Lifetimes = ecs.NewStore[Lifetime](r)
	w.Bounties = ecs.NewStore[Bounty](r)
	w.Camps = ecs.NewStore[Camp](r)
	w.Bays = ecs.NewStore[DroneBay](r)
	w.Drones = ecs.NewStore[Drone](r)
	w.Avatars = ecs.NewStore[Avatar](r)
	w.Levels = ecs.NewStore[Leveling](r)
	w.Goals = ecs.NewStore[Goal](r)
	r.Register(w.Grid)
	r.Register(w.State)
	r.Register(auth)
	r.Register(ecs.RemoveFunc(func(id ecs.EntityID) { delete(w.kinds, id) }))
	return w
}

func (w *World) Local() authority.PeerID { return w.local }
func (w *World) Now() tick.Tick          { return w.clock.Now() }
func (w *World) Clock() tick.Source      { return w.clock }
func (w *World) Log() *zap.Logger        { return w.log }

// OnDespawn registers a cleanup hook.
func (w *World) OnDespawn(h DespawnHook) { w.hooks = append(w.hooks, h) }

// Spawn allocates an id, assigns authority, initializes the replicated
// block and moves the entity to Active.
func (w *World) Spawn(spec SpawnSpec) (ecs.EntityID, error) {
	if spec.State == authority.NoPeer {
		return 0, fmt.Errorf("spawn %s: %w", spec.Kind, ErrNoState)
	}
	id := w.ECS.CreateEntity()
	if err := w.Auth.Assign(id, spec.State, spec.Input); err != nil {
		w.ECS.MarkForDestruction(id)
		return 0, fmt.Errorf("spawn %s: %w", spec.Kind, err)
	}
	w.kinds[id] = spec.Kind
	w.Transforms.Set(id, &Transform{Pos: spec.Pos})
	w.Grid.Add(id, spec.Pos)

	values := make([]replication.Value, 0, 4+len(spec.Fields))
	values = append(values,
		replication.V(FieldKind, string(spec.Kind)),
		replication.V(FieldPos, spec.Pos),
	)
	if spec.MaxHP > 0 {
		w.Damageables.Set(id, &Damageable{})
		values = append(values,
			replication.V(FieldHP, spec.MaxHP),
			replication.V(FieldMaxHP, spec.MaxHP),
			replication.V(FieldDead, false),
		)
	}
	values = append(values, spec.Fields...)
	if err := w.State.Init(id, values...); err != nil {
		return 0, fmt.Errorf("spawn %s: %w", spec.Kind, err)
	}
	if spec.Setup != nil {
		spec.Setup(id)
	}

	event.Emit(w.Bus, event.EntitySpawned{
		Entity: id,
		Kind:   spec.Kind,
		State:  spec.State,
		Input:  spec.Input,
		Tick:   w.clock.Now(),
	})
	w.log.Debug("entity spawned",
		zap.Stringer("entity", id),
		zap.String("kind", string(spec.Kind)),
		zap.Stringer("state", spec.State),
		zap.Stringer("input", spec.Input),
	)
	return id, nil
}

// Despawn moves an Active entity to Despawning on behalf of peer and runs
// the cleanup hooks. The id is freed by Flush at the end of the tick.
// Despawning an entity that is already leaving is a logged no-op.
func (w *World) Despawn(by authority.PeerID, id ecs.EntityID) error {
	if !w.ECS.IsActive(id) {
		w.log.Debug("despawn of inactive entity ignored",
			zap.Stringer("entity", id),
			zap.Stringer("state", w.ECS.StateOf(id)),
		)
		return fmt.Errorf("despawn %s: %w", id, ErrNotActive)
	}
	if err := w.Auth.Check(id, by); err != nil {
		w.log.Warn("despawn rejected",
			zap.Stringer("entity", id),
			zap.Stringer("peer", by),
			zap.Error(err),
		)
		return err
	}
	kind := w.kinds[id]
	w.ECS.MarkForDestruction(id)
	w.Grid.Remove(id)
	for _, h := range w.hooks {
		h(id, kind)
	}
	event.Emit(w.Bus, event.EntityDespawned{Entity: id, Kind: kind, Tick: w.clock.Now()})
	return nil
}

// Flush frees every Despawning entity. Called at PhaseCleanup.
func (w *World) Flush() []ecs.EntityID {
	return w.ECS.FlushDestroyQueue()
}

// IsActive reports whether the entity accepts commands and writes.
func (w *World) IsActive(id ecs.EntityID) bool { return w.ECS.IsActive(id) }

// KindOf returns the entity kind, or "" for unknown ids.
func (w *World) KindOf(id ecs.EntityID) ecs.Kind { return w.kinds[id] }

// ByKind returns the active entities of a kind in id order.
func (w *World) ByKind(kind ecs.Kind) []ecs.EntityID {
	var out []ecs.EntityID
	for id, k := range w.kinds {
		if k == kind && w.ECS.IsActive(id) {
			out = append(out, id)
		}
	}
	ecs.SortIDs(out)
	return out
}

// Position returns the authoritative position.
func (w *World) Position(id ecs.EntityID) (geom.Vec2, bool) {
	t, ok := w.Transforms.Get(id)
	if !ok {
		return geom.Vec2{}, false
	}
	return t.Pos, true
}

// MoveTo sets a new position, reindexes it and replicates it.
func (w *World) MoveTo(id ecs.EntityID, p geom.Vec2) error {
	t, ok := w.Transforms.Get(id)
	if !ok {
		return fmt.Errorf("move %s: %w", id, ErrNotActive)
	}
	if err := replication.Set(w.State, w.local, id, FieldPos, p); err != nil {
		return err
	}
	if d := p.Sub(t.Pos); !d.IsZero() {
		t.Facing = d.Norm()
	}
	t.Pos = p
	w.Grid.Move(id, p)
	return nil
}

// Filter selects entities in a spatial query.
type Filter func(id ecs.EntityID, kind ecs.Kind) bool

// OfKinds matches any of the listed kinds.
func OfKinds(kinds ...ecs.Kind) Filter {
	return func(_ ecs.EntityID, k ecs.Kind) bool { return HasKind(kinds, k) }
}

// Nearby returns active entities within radius of p, nearest first (ties
// broken by id). A nil filter matches everything.
func (w *World) Nearby(p geom.Vec2, radius float64, filter Filter) []ecs.EntityID {
	type hit struct {
		id ecs.EntityID
		d  float64
	}
	var hits []hit
	r2 := radius * radius
	for _, id := range w.Grid.Candidates(p, radius) {
		if !w.ECS.IsActive(id) {
			continue
		}
		if filter != nil && !filter(id, w.kinds[id]) {
			continue
		}
		t, ok := w.Transforms.Get(id)
		if !ok {
			continue
		}
		if d := t.Pos.DistSq(p); d <= r2 {
			hits = append(hits, hit{id, d})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].d != hits[j].d {
			return hits[i].d < hits[j].d
		}
		return hits[i].id < hits[j].id
	})
	out := make([]ecs.EntityID, len(hits))
	for i, h := range hits {
		out[i] = h.id
	}
	return out
}

// Set writes a replicated field as the local peer.
func Set[T comparable](w *World, id ecs.EntityID, f replication.Field[T], v T) error {
	return replication.Set(w.State, w.local, id, f, v)
}

// Get reads the authoritative value of a replicated field.
func Get[T comparable](w *World, id ecs.EntityID, f replication.Field[T]) T {
	v, _ := replication.Get(w.State, id, f)
	return v
}
