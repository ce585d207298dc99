package system

import (
	"time"

	"github.com/dinoarena/server/internal/core/ecs"
	"github.com/dinoarena/server/internal/core/event"
	coresys "github.com/dinoarena/server/internal/core/system"
	"github.com/dinoarena/server/internal/health"
	"github.com/dinoarena/server/internal/scripting"
	"github.com/dinoarena/server/internal/world"
	"go.uber.org/zap"
)

// Curve is the leveling formula set.
type Curve interface {
	LevelFor(exp int32) int32
	StatsFor(level int32, base scripting.Stats) scripting.Stats
}

type credit struct {
	killer ecs.EntityID
	exp    int32
}

// LevelingSystem credits bounties to killers that can level and applies the
// scaled stats when a level is reached. Credits are queued by the death
// listener and applied in PhasePostUpdate.
type LevelingSystem struct {
	w       *world.World
	res     *health.Resolver
	curve   Curve
	pending []credit
	log     *zap.Logger
}

func NewLevelingSystem(w *world.World, res *health.Resolver, curve Curve, log *zap.Logger) *LevelingSystem {
	s := &LevelingSystem{w: w, res: res, curve: curve, log: log}
	res.OnDeath(s.onDeath)
	return s
}

func (s *LevelingSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *LevelingSystem) onDeath(d health.Death) {
	b, ok := s.w.Bounties.Get(d.Victim)
	if !ok || b.Exp <= 0 || !s.w.Levels.Has(d.Killer) {
		return
	}
	s.pending = append(s.pending, credit{killer: d.Killer, exp: b.Exp})
}

func (s *LevelingSystem) Update(_ time.Duration) {
	for _, c := range s.pending {
		s.apply(c)
	}
	s.pending = s.pending[:0]
}

func (s *LevelingSystem) apply(c credit) {
	w := s.w
	lv, ok := w.Levels.Get(c.killer)
	if !ok || !w.IsActive(c.killer) {
		return
	}
	lv.Exp += c.exp
	_ = world.Set(w, c.killer, world.FieldExp, lv.Exp)

	next := s.curve.LevelFor(lv.Exp)
	if next <= lv.Level {
		return
	}
	lv.Level = next
	st := s.curve.StatsFor(next, scripting.Stats{Speed: lv.BaseSpeed, Damage: lv.BaseDmg, MaxHP: lv.BaseHP})
	if m, ok := w.Movers.Get(c.killer); ok {
		if m.Speed > 0 && m.RunSpeed > 0 {
			m.RunSpeed = m.RunSpeed * st.Speed / m.Speed
		}
		m.Speed = st.Speed
	}
	if mel, ok := w.Melees.Get(c.killer); ok {
		mel.Damage = st.Damage
	}
	if err := s.res.SetMax(c.killer, st.MaxHP); err != nil {
		s.log.Debug("level up max hp not applied", zap.Stringer("entity", c.killer), zap.Error(err))
	}
	_ = world.Set(w, c.killer, world.FieldLevel, next)
	event.Emit(w.Bus, event.LevelUp{Entity: c.killer, Level: next, Tick: w.Now()})
	s.log.Info("level up",
		zap.Stringer("entity", c.killer),
		zap.Int32("level", next),
		zap.Int32("exp", lv.Exp),
	)
}
