package system

import (
	"fmt"
	"time"

	"github.com/dinoarena/server/internal/command"
	"github.com/dinoarena/server/internal/core/ecs"
	"github.com/dinoarena/server/internal/core/geom"
	coresys "github.com/dinoarena/server/internal/core/system"
	"github.com/dinoarena/server/internal/core/tick"
	"github.com/dinoarena/server/internal/core/timer"
	"github.com/dinoarena/server/internal/world"
	"go.uber.org/zap"
)

// OperatorOptions configures the drone bay.
type OperatorOptions struct {
	Launch        geom.Vec2
	SpawnCooldown time.Duration
	Policy        timer.TriggerPolicy
	Bounds        float64
}

// OperatorSystem pans the operator camera, launches drones from the bay and
// executes drone orders. PhaseUpdate.
type OperatorSystem struct {
	w       *world.World
	prefabs *world.Prefabs
	opts    OperatorOptions
	log     *zap.Logger
}

func NewOperatorSystem(w *world.World, prefabs *world.Prefabs, ch *command.Channel, opts OperatorOptions, log *zap.Logger) (*OperatorSystem, error) {
	s := &OperatorSystem{w: w, prefabs: prefabs, opts: opts, log: log}
	for name, h := range map[string]command.Handler{
		CmdRequestSpawn: s.handleRequestSpawn,
		CmdOrderMove:    s.handleOrderMove,
		CmdOrderAction:  s.handleOrderAction,
	} {
		if err := ch.Register(name, inputToState, h); err != nil {
			return nil, err
		}
	}
	w.OnDespawn(s.onDespawn)
	return s, nil
}

func (s *OperatorSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *OperatorSystem) Update(dt time.Duration) {
	w := s.w
	step := dt.Seconds()
	for _, id := range w.ByKind(world.KindOperator) {
		m, ok := w.Movers.Get(id)
		if !ok || m.Intent.IsZero() {
			continue
		}
		pos, _ := w.Position(id)
		_ = w.MoveTo(id, clampArena(pos.Add(m.Intent.Norm().Scale(m.Speed*step)), s.opts.Bounds))
	}
	for _, id := range w.ByKind(world.KindDrone) {
		m, ok := w.Movers.Get(id)
		if !ok || !m.HasDest {
			continue
		}
		pos, _ := w.Position(id)
		next := pos.MoveToward(m.Dest, m.Speed*step)
		_ = w.MoveTo(id, next)
		if next.DistSq(m.Dest) < 1e-6 {
			m.HasDest = false
			_ = world.Set(w, id, world.FieldWalking, false)
		}
	}
}

func (s *OperatorSystem) slot(bay ecs.EntityID, n int) (*world.Slot, error) {
	b, ok := s.w.Bays.Get(bay)
	if !ok {
		return nil, ErrWrongKind
	}
	if n < 0 || n >= len(b.Slots) {
		return nil, fmt.Errorf("slot %d: %w", n, ErrBadSlot)
	}
	return &b.Slots[n], nil
}

func (s *OperatorSystem) handleRequestSpawn(cmd command.Command) error {
	var args SlotArgs
	if err := cmd.Decode(&args); err != nil {
		return err
	}
	w := s.w
	sl, err := s.slot(cmd.Target, args.Slot)
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Name, err)
	}
	if !sl.Drone.IsZero() {
		return fmt.Errorf("%s slot %d: %w", cmd.Name, args.Slot, ErrSlotInUse)
	}
	if sl.Cooldown.Running(w.Now()) {
		return fmt.Errorf("%s slot %d: %w", cmd.Name, args.Slot, ErrCooldown)
	}

	drone, err := w.Spawn(s.prefabs.Drone(w, cmd.Target, args.Slot, s.opts.Launch))
	if err != nil {
		return err
	}
	// The drone answers to the operator who launched it.
	if err := w.Auth.TransferInput(drone, w.Local(), cmd.Source); err != nil {
		_ = w.Despawn(w.Local(), drone)
		return err
	}
	sl.Drone = drone
	if s.opts.Policy == timer.ResetOnTrigger {
		sl.Cooldown = timer.Start(w.Clock(), s.prefabs.Ticks(s.opts.SpawnCooldown))
	}
	s.log.Debug("drone launched",
		zap.Stringer("bay", cmd.Target),
		zap.Int("slot", args.Slot),
		zap.Stringer("drone", drone),
		zap.Stringer("peer", cmd.Source),
	)
	return nil
}

func (s *OperatorSystem) handleOrderMove(cmd command.Command) error {
	var args MoveArgs
	if err := cmd.Decode(&args); err != nil {
		return err
	}
	w := s.w
	if w.KindOf(cmd.Target) != world.KindDrone {
		return fmt.Errorf("%s on %s: %w", cmd.Name, w.KindOf(cmd.Target), ErrWrongKind)
	}
	m, ok := w.Movers.Get(cmd.Target)
	if !ok {
		return fmt.Errorf("%s: %w", cmd.Name, ErrWrongKind)
	}
	m.Dest = clampArena(args.Point, s.opts.Bounds)
	m.HasDest = true
	return world.Set(w, cmd.Target, world.FieldWalking, true)
}

// handleOrderAction drops a bomb. The bomb cooldown restarts on every drop.
func (s *OperatorSystem) handleOrderAction(cmd command.Command) error {
	w := s.w
	d, ok := w.Drones.Get(cmd.Target)
	if !ok {
		return fmt.Errorf("%s on %s: %w", cmd.Name, w.KindOf(cmd.Target), ErrWrongKind)
	}
	now := w.Now()
	if d.Bomb.Running(now) {
		return fmt.Errorf("%s: %w", cmd.Name, ErrCooldown)
	}
	pos, _ := w.Position(cmd.Target)
	if _, err := w.Spawn(s.prefabs.Bomb(w, cmd.Target, pos)); err != nil {
		return err
	}
	d.Bomb = timer.Start(w.Clock(), d.Cooldown)
	return world.Set(w, cmd.Target, world.FieldReadyAt, uint64(now)+uint64(d.Cooldown))
}

// onDespawn frees the bay slot of a lost drone.
func (s *OperatorSystem) onDespawn(id ecs.EntityID, kind ecs.Kind) {
	if kind != world.KindDrone {
		return
	}
	d, ok := s.w.Drones.Get(id)
	if !ok {
		return
	}
	sl, err := s.slot(d.Bay, d.Slot)
	if err != nil || sl.Drone != id {
		return
	}
	sl.Drone = 0
	if s.opts.Policy == timer.ResetOnDespawn {
		sl.Cooldown = timer.Start(s.w.Clock(), s.prefabs.Ticks(s.opts.SpawnCooldown))
	}
}

// SlotReadyAt reports when a bay slot can launch again (UI cooldown).
func (s *OperatorSystem) SlotReadyAt(bay ecs.EntityID, n int) (tick.Tick, error) {
	sl, err := s.slot(bay, n)
	if err != nil {
		return 0, err
	}
	if !sl.Cooldown.IsSet() {
		return 0, nil
	}
	return sl.Cooldown.StartTick() + tick.Tick(sl.Cooldown.Duration()), nil
}
