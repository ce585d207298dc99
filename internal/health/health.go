// Package health is the one damage and death pipeline every damageable
// kind goes through. Health lives in the replicated block (hp, max_hp,
// dead); only the victim's state authority may change it.
package health

import (
	"errors"
	"fmt"

	"github.com/dinoarena/server/internal/authority"
	"github.com/dinoarena/server/internal/core/ecs"
	"github.com/dinoarena/server/internal/core/event"
	"github.com/dinoarena/server/internal/core/tick"
	"github.com/dinoarena/server/internal/core/timer"
	"github.com/dinoarena/server/internal/world"
	"go.uber.org/zap"
)

var (
	ErrDead          = errors.New("entity is already dead")
	ErrAlive         = errors.New("entity is alive")
	ErrExcluded      = errors.New("damage excluded for this pair")
	ErrNotDamageable = errors.New("entity is not damageable")
	ErrBadAmount     = errors.New("damage amount must not be negative")
)

// Hit is one damage application. Attacker may be zero.
type Hit struct {
	Victim   ecs.EntityID
	Attacker ecs.EntityID
	Amount   int32
}

// Outcome reports what a hit did.
type Outcome struct {
	Current int32
	Max     int32
	Applied int32
	Died    bool
}

// Death describes a terminal transition for listeners.
type Death struct {
	Victim     ecs.EntityID
	VictimKind ecs.Kind
	Killer     ecs.EntityID
	KillerKind ecs.Kind
	Tick       tick.Tick
}

// DeathListener reacts to a terminal transition in the same tick (experience
// credit, match result).
type DeathListener func(d Death)

type scheduled struct {
	id    ecs.EntityID
	timer timer.Countdown
}

// Resolver applies damage and performs terminal transitions.
type Resolver struct {
	w         *world.World
	excl      *Exclusions
	byKind    map[ecs.Kind]DeathPolicy
	byEntity  map[ecs.EntityID]DeathPolicy
	listeners []DeathListener
	pending   []scheduled
	log       *zap.Logger
}

func NewResolver(w *world.World, excl *Exclusions, log *zap.Logger) *Resolver {
	if excl == nil {
		excl = NewExclusions(false, false)
	}
	r := &Resolver{
		w:        w,
		excl:     excl,
		byKind:   make(map[ecs.Kind]DeathPolicy),
		byEntity: make(map[ecs.EntityID]DeathPolicy),
		log:      log,
	}
	w.ECS.Registry().Register(ecs.RemoveFunc(func(id ecs.EntityID) { delete(r.byEntity, id) }))
	return r
}

// SetKindPolicy sets the default death policy of a kind.
func (r *Resolver) SetKindPolicy(kind ecs.Kind, p DeathPolicy) { r.byKind[kind] = p }

// SetPolicy overrides the death policy of one entity (camp members).
func (r *Resolver) SetPolicy(id ecs.EntityID, p DeathPolicy) { r.byEntity[id] = p }

// PolicyOf returns the effective policy; kinds without one despawn at once.
func (r *Resolver) PolicyOf(id ecs.EntityID) DeathPolicy {
	if p, ok := r.byEntity[id]; ok {
		return p
	}
	if p, ok := r.byKind[r.w.KindOf(id)]; ok {
		return p
	}
	return Immediately()
}

// OnDeath registers a listener.
func (r *Resolver) OnDeath(l DeathListener) { r.listeners = append(r.listeners, l) }

func (r *Resolver) Exclusions() *Exclusions { return r.excl }

// ApplyDamage is callable only by the victim's state authority. Damage
// clamps at zero; the first hit reaching zero performs the terminal
// transition exactly once and every later hit is a no-op.
func (r *Resolver) ApplyDamage(by authority.PeerID, hit Hit) (Outcome, error) {
	w := r.w
	id := hit.Victim
	if !w.IsActive(id) {
		r.log.Debug("damage to inactive entity dropped", zap.Stringer("entity", id))
		return Outcome{}, fmt.Errorf("damage %s: %w", id, world.ErrNotActive)
	}
	if err := w.Auth.Check(id, by); err != nil {
		r.log.Warn("damage rejected",
			zap.Stringer("entity", id),
			zap.Stringer("peer", by),
			zap.Error(err),
		)
		return Outcome{}, err
	}
	if !w.Damageables.Has(id) {
		return Outcome{}, fmt.Errorf("damage %s: %w", id, ErrNotDamageable)
	}
	if hit.Amount < 0 {
		r.log.Warn("negative damage rejected", zap.Stringer("entity", id), zap.Int32("amount", hit.Amount))
		return Outcome{}, fmt.Errorf("damage %s: %w", id, ErrBadAmount)
	}

	vk, ak := w.KindOf(id), w.KindOf(hit.Attacker)
	if r.excl.Excluded(hit.Attacker, id, ak, vk) {
		return Outcome{}, fmt.Errorf("damage %s by %s: %w", vk, ak, ErrExcluded)
	}

	cur := world.Get(w, id, world.FieldHP)
	maxHP := world.Get(w, id, world.FieldMaxHP)
	if world.Get(w, id, world.FieldDead) {
		return Outcome{Current: cur, Max: maxHP}, fmt.Errorf("damage %s: %w", id, ErrDead)
	}
	if hit.Amount == 0 {
		return Outcome{Current: cur, Max: maxHP}, nil
	}

	next := cur - hit.Amount
	if next < 0 || next > cur { // overflow guard
		next = 0
	}
	if next > maxHP {
		next = maxHP
	}
	if err := world.Set(w, id, world.FieldHP, next); err != nil {
		return Outcome{}, err
	}
	out := Outcome{Current: next, Max: maxHP, Applied: cur - next}
	now := w.Now()

	if next > 0 {
		event.Emit(w.Bus, event.EntityDamaged{
			Entity: id, Kind: vk, Attacker: hit.Attacker,
			Amount: out.Applied, Current: next, Max: maxHP, Tick: now,
		})
		return out, nil
	}

	out.Died = true
	if err := world.Set(w, id, world.FieldDead, true); err != nil {
		return out, err
	}
	killer := r.creditedKiller(hit.Attacker)
	d := Death{Victim: id, VictimKind: vk, Killer: killer, KillerKind: w.KindOf(killer), Tick: now}
	event.Emit(w.Bus, event.EntityDied{Entity: id, Kind: vk, Killer: killer, Tick: now})
	r.log.Debug("entity died",
		zap.Stringer("entity", id),
		zap.String("kind", string(vk)),
		zap.Stringer("killer", killer),
	)
	for _, l := range r.listeners {
		l(d)
	}
	r.afterDeath(id)
	return out, nil
}

// creditedKiller resolves projectiles and bombs to the unit that fired them.
func (r *Resolver) creditedKiller(attacker ecs.EntityID) ecs.EntityID {
	if p, ok := r.w.Projectiles.Get(attacker); ok && !p.Owner.IsZero() {
		return p.Owner
	}
	if x, ok := r.w.Explosives.Get(attacker); ok && !x.Owner.IsZero() {
		return x.Owner
	}
	return attacker
}

func (r *Resolver) afterDeath(id ecs.EntityID) {
	p := r.PolicyOf(id)
	switch p.Mode {
	case DespawnImmediately:
		_ = r.w.Despawn(r.w.Local(), id)
	case DespawnAfter:
		r.pending = append(r.pending, scheduled{id: id, timer: timer.Start(r.w.Clock(), p.Delay)})
	case HoldForRespawn:
	}
}

// Tick despawns corpses whose delay has run out. Called once per tick.
func (r *Resolver) Tick() int {
	if len(r.pending) == 0 {
		return 0
	}
	now := r.w.Now()
	n := 0
	kept := r.pending[:0]
	for _, s := range r.pending {
		if !s.timer.Expired(now) {
			kept = append(kept, s)
			continue
		}
		if r.w.IsActive(s.id) {
			_ = r.w.Despawn(r.w.Local(), s.id)
			n++
		}
	}
	r.pending = kept
	return n
}

// PendingDespawns returns the number of corpses waiting for their delay.
func (r *Resolver) PendingDespawns() int { return len(r.pending) }

// Revive restores a dead, held entity to full health.
func (r *Resolver) Revive(by authority.PeerID, id ecs.EntityID) error {
	w := r.w
	if !w.IsActive(id) {
		return fmt.Errorf("revive %s: %w", id, world.ErrNotActive)
	}
	if err := w.Auth.Check(id, by); err != nil {
		r.log.Warn("revive rejected", zap.Stringer("entity", id), zap.Stringer("peer", by), zap.Error(err))
		return err
	}
	if !world.Get(w, id, world.FieldDead) {
		return fmt.Errorf("revive %s: %w", id, ErrAlive)
	}
	maxHP := world.Get(w, id, world.FieldMaxHP)
	if err := world.Set(w, id, world.FieldHP, maxHP); err != nil {
		return err
	}
	if err := world.Set(w, id, world.FieldDead, false); err != nil {
		return err
	}
	event.Emit(w.Bus, event.EntityRevived{Entity: id, Kind: w.KindOf(id), Tick: w.Now()})
	return nil
}

// SetMax changes max_hp keeping the damage taken (level-up scaling).
func (r *Resolver) SetMax(id ecs.EntityID, maxHP int32) error {
	w := r.w
	if maxHP <= 0 {
		return fmt.Errorf("set max %s: %w", id, ErrBadAmount)
	}
	if world.Get(w, id, world.FieldDead) {
		return fmt.Errorf("set max %s: %w", id, ErrDead)
	}
	oldMax := world.Get(w, id, world.FieldMaxHP)
	cur := world.Get(w, id, world.FieldHP) + (maxHP - oldMax)
	if cur < 1 {
		cur = 1
	}
	if cur > maxHP {
		cur = maxHP
	}
	if err := world.Set(w, id, world.FieldMaxHP, maxHP); err != nil {
		return err
	}
	return world.Set(w, id, world.FieldHP, cur)
}

// Current reads the authoritative health record.
func Current(w *world.World, id ecs.EntityID) (cur, maxHP int32, dead bool) {
	return world.Get(w, id, world.FieldHP), world.Get(w, id, world.FieldMaxHP), world.Get(w, id, world.FieldDead)
}
