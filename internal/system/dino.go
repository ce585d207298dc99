package system

import (
	"errors"
	"fmt"
	"time"

	"github.com/dinoarena/server/internal/command"
	"github.com/dinoarena/server/internal/core/ecs"
	coresys "github.com/dinoarena/server/internal/core/system"
	"github.com/dinoarena/server/internal/core/timer"
	"github.com/dinoarena/server/internal/health"
	"github.com/dinoarena/server/internal/world"
	"go.uber.org/zap"
)

// DinoSystem moves the dinosaur from its latest input and resolves the
// Attack command. PhaseUpdate.
type DinoSystem struct {
	w      *world.World
	res    *health.Resolver
	bounds float64
	log    *zap.Logger
}

func NewDinoSystem(w *world.World, res *health.Resolver, ch *command.Channel, bounds float64, log *zap.Logger) (*DinoSystem, error) {
	s := &DinoSystem{w: w, res: res, bounds: bounds, log: log}
	if err := ch.Register(CmdAttack, inputToState, s.handleAttack); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *DinoSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *DinoSystem) Update(dt time.Duration) {
	w := s.w
	now := w.Now()
	for _, id := range w.ByKind(world.KindDinosaur) {
		m, ok := w.Movers.Get(id)
		if !ok {
			continue
		}
		moving := false
		if !world.Get(w, id, world.FieldDead) && !m.Intent.IsZero() {
			speed := m.Speed
			if m.Running && m.RunSpeed > 0 {
				speed = m.RunSpeed
			}
			pos, _ := w.Position(id)
			next := clampArena(pos.Add(m.Intent.Norm().Scale(speed*dt.Seconds())), s.bounds)
			if err := w.MoveTo(id, next); err != nil {
				s.log.Debug("dinosaur move failed", zap.Stringer("entity", id), zap.Error(err))
			}
			moving = true
		}
		_ = world.Set(w, id, world.FieldRunning, moving)

		if mel, ok := w.Melees.Get(id); ok && mel.Swing.IsSet() && mel.Swing.Expired(now) {
			mel.Swing = timer.Countdown{}
			_ = world.Set(w, id, world.FieldAttacking, false)
		}
	}
}

// handleAttack starts a swing unless one is already running and applies
// the hit at once to every damageable in the arc in front of the dinosaur.
func (s *DinoSystem) handleAttack(cmd command.Command) error {
	w := s.w
	id := cmd.Target
	if w.KindOf(id) != world.KindDinosaur {
		return fmt.Errorf("%s on %s: %w", cmd.Name, w.KindOf(id), ErrWrongKind)
	}
	if world.Get(w, id, world.FieldDead) {
		return fmt.Errorf("%s: %w", cmd.Name, health.ErrDead)
	}
	mel, ok := w.Melees.Get(id)
	if !ok {
		return fmt.Errorf("%s: %w", cmd.Name, ErrWrongKind)
	}
	if mel.Swing.Running(w.Now()) {
		return fmt.Errorf("%s: %w", cmd.Name, ErrBusy)
	}
	mel.Swing = timer.Start(w.Clock(), mel.Window)
	if err := world.Set(w, id, world.FieldAttacking, true); err != nil {
		return err
	}

	t, _ := w.Transforms.Get(id)
	center := t.Pos
	if !t.Facing.IsZero() {
		center = center.Add(t.Facing.Scale(mel.Radius * 0.5))
	}
	amount := mel.Damage
	targets := w.Nearby(center, mel.Radius, func(v ecs.EntityID, _ ecs.Kind) bool {
		return v != id && w.Damageables.Has(v)
	})
	for _, v := range targets {
		_, err := s.res.ApplyDamage(w.Local(), health.Hit{Victim: v, Attacker: id, Amount: amount})
		if err != nil && !errors.Is(err, health.ErrDead) && !errors.Is(err, health.ErrExcluded) {
			s.log.Debug("attack hit failed", zap.Stringer("victim", v), zap.Error(err))
		}
	}
	return nil
}
