package system

import (
	"errors"
	"time"

	"github.com/dinoarena/server/internal/core/ecs"
	coresys "github.com/dinoarena/server/internal/core/system"
	"github.com/dinoarena/server/internal/health"
	"github.com/dinoarena/server/internal/world"
	"go.uber.org/zap"
)

// ProjectileSystem flies bullets, detonates bombs and expires timed
// entities. PhaseUpdate.
type ProjectileSystem struct {
	w       *world.World
	res     *health.Resolver
	prefabs *world.Prefabs
	bounds  float64
	log     *zap.Logger
}

func NewProjectileSystem(w *world.World, res *health.Resolver, prefabs *world.Prefabs, bounds float64, log *zap.Logger) *ProjectileSystem {
	return &ProjectileSystem{w: w, res: res, prefabs: prefabs, bounds: bounds, log: log}
}

func (s *ProjectileSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *ProjectileSystem) Update(dt time.Duration) {
	s.flyBullets(dt)
	s.detonate()
	s.expire()
}

func (s *ProjectileSystem) flyBullets(dt time.Duration) {
	w := s.w
	for _, id := range w.Projectiles.IDs() {
		p, _ := w.Projectiles.Get(id)
		if !w.IsActive(id) {
			continue
		}
		pos, _ := w.Position(id)
		next := pos.Add(p.Dir.Scale(p.Speed * dt.Seconds()))
		if s.bounds > 0 && (next.X < -s.bounds || next.X > s.bounds || next.Y < -s.bounds || next.Y > s.bounds) {
			_ = w.Despawn(w.Local(), id)
			continue
		}
		_ = w.MoveTo(id, next)
		for _, v := range w.Nearby(next, p.HitRadius, world.OfKinds(p.Targets...)) {
			if world.Get(w, v, world.FieldDead) {
				continue
			}
			s.hit(v, id, p.Damage)
			_ = w.Despawn(w.Local(), id)
			break
		}
	}
}

func (s *ProjectileSystem) detonate() {
	w := s.w
	now := w.Now()
	for _, id := range w.Explosives.IDs() {
		x, _ := w.Explosives.Get(id)
		if !w.IsActive(id) || !x.Fuse.Expired(now) {
			continue
		}
		pos, _ := w.Position(id)
		if _, err := w.Spawn(s.prefabs.Explosion(w, pos)); err != nil {
			s.log.Warn("explosion spawn failed", zap.Error(err))
		}
		victims := w.Nearby(pos, x.Radius, func(v ecs.EntityID, k ecs.Kind) bool {
			return w.Damageables.Has(v) && !world.HasKind(x.Immune, k)
		})
		for _, v := range victims {
			s.hit(v, id, x.Damage)
		}
		_ = w.Despawn(w.Local(), id)
	}
}

func (s *ProjectileSystem) expire() {
	w := s.w
	now := w.Now()
	for _, id := range w.Lifetimes.IDs() {
		l, _ := w.Lifetimes.Get(id)
		if w.IsActive(id) && l.Timer.Expired(now) {
			_ = w.Despawn(w.Local(), id)
		}
	}
}

func (s *ProjectileSystem) hit(victim, attacker ecs.EntityID, amount int32) {
	_, err := s.res.ApplyDamage(s.w.Local(), health.Hit{Victim: victim, Attacker: attacker, Amount: amount})
	if err != nil && !errors.Is(err, health.ErrDead) && !errors.Is(err, health.ErrExcluded) {
		s.log.Debug("projectile hit failed", zap.Stringer("victim", victim), zap.Error(err))
	}
}
