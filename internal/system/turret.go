package system

import (
	"time"

	"github.com/dinoarena/server/internal/core/ecs"
	coresys "github.com/dinoarena/server/internal/core/system"
	"github.com/dinoarena/server/internal/core/timer"
	"github.com/dinoarena/server/internal/world"
	"go.uber.org/zap"
)

// TurretSystem acquires the nearest living target in range and fires a
// bullet each time the fire timer expires. PhaseUpdate.
type TurretSystem struct {
	w       *world.World
	prefabs *world.Prefabs
	log     *zap.Logger
}

func NewTurretSystem(w *world.World, prefabs *world.Prefabs, log *zap.Logger) *TurretSystem {
	return &TurretSystem{w: w, prefabs: prefabs, log: log}
}

func (s *TurretSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *TurretSystem) Update(_ time.Duration) {
	w := s.w
	now := w.Now()
	for _, id := range w.Turrets.IDs() {
		t, _ := w.Turrets.Get(id)
		if !w.IsActive(id) {
			continue
		}
		if world.Get(w, id, world.FieldDead) {
			t.Target = 0
			_ = world.Set(w, id, world.FieldAttacking, false)
			continue
		}
		pos, _ := w.Position(id)
		t.Target = 0
		for _, c := range w.Nearby(pos, t.Range, world.OfKinds(t.Targets...)) {
			if !world.Get(w, c, world.FieldDead) {
				t.Target = c
				break
			}
		}
		_ = world.Set(w, id, world.FieldAttacking, !t.Target.IsZero())
		if t.Target.IsZero() || !t.Fire.Expired(now) {
			continue
		}
		tp, _ := w.Position(t.Target)
		if _, err := w.Spawn(s.prefabs.Bullet(w, id, pos, tp.Sub(pos))); err != nil {
			s.log.Warn("turret fire failed", zap.Stringer("turret", id), zap.Error(err))
			continue
		}
		t.Fire = timer.Start(w.Clock(), t.Interval)
	}
}

// Target returns the current target of a turret (zero if none).
func (s *TurretSystem) Target(id ecs.EntityID) ecs.EntityID {
	if t, ok := s.w.Turrets.Get(id); ok {
		return t.Target
	}
	return 0
}
