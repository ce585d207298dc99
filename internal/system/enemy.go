package system

import (
	"time"

	"github.com/dinoarena/server/internal/core/ecs"
	"github.com/dinoarena/server/internal/core/geom"
	coresys "github.com/dinoarena/server/internal/core/system"
	"github.com/dinoarena/server/internal/world"
)

// EnemySystem drives camp enemies: chase the nearest target kind within
// detect range, otherwise walk the patrol loop. Dead enemies stand still.
// PhaseUpdate.
type EnemySystem struct {
	w *world.World
}

func NewEnemySystem(w *world.World) *EnemySystem {
	return &EnemySystem{w: w}
}

func (s *EnemySystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *EnemySystem) Update(dt time.Duration) {
	w := s.w
	step := dt.Seconds()
	w.Camps.Each(func(id ecs.EntityID, _ *world.Camp) {
		if !w.IsActive(id) {
			return
		}
		m, ok := w.Movers.Get(id)
		if !ok {
			return
		}
		walking := false
		if !world.Get(w, id, world.FieldDead) {
			if dest, ok := s.destination(id); ok {
				pos, _ := w.Position(id)
				accept := 0.0
				if p, ok := w.Patrols.Get(id); ok {
					accept = p.Accept
				}
				if pos.Dist(dest) > accept {
					_ = w.MoveTo(id, pos.MoveToward(dest, m.Speed*step))
					walking = true
				}
			}
		}
		_ = world.Set(w, id, world.FieldWalking, walking)
	})
}

// destination picks the chase target or the current waypoint, advancing
// the patrol index when the waypoint is reached.
func (s *EnemySystem) destination(id ecs.EntityID) (geom.Vec2, bool) {
	w := s.w
	pos, _ := w.Position(id)
	if c, ok := w.Chasers.Get(id); ok {
		for _, t := range w.Nearby(pos, c.Detect, world.OfKinds(c.Kind)) {
			if world.Get(w, t, world.FieldDead) {
				continue
			}
			tp, _ := w.Position(t)
			return tp, true
		}
	}
	p, ok := w.Patrols.Get(id)
	if !ok || len(p.Points) == 0 {
		return geom.Vec2{}, false
	}
	if pos.Dist(p.Points[p.Next]) <= p.Accept {
		p.Next = (p.Next + 1) % len(p.Points)
	}
	return p.Points[p.Next], true
}
