package system

import (
	"time"

	"github.com/dinoarena/server/internal/core/ecs"
	coresys "github.com/dinoarena/server/internal/core/system"
	"github.com/dinoarena/server/internal/core/timer"
	"github.com/dinoarena/server/internal/data"
	"github.com/dinoarena/server/internal/health"
	"github.com/dinoarena/server/internal/world"
	"go.uber.org/zap"
)

type vacancy struct {
	entry data.CampEntry
	timer timer.Countdown
}

// CampSystem keeps every camp populated. With ResetOnTrigger the dead
// member is held in place and revived at home when the respawn delay
// (started at death) runs out. With ResetOnDespawn the corpse is removed
// after its death delay and a fresh member is spawned once the respawn
// delay (started at despawn) runs out. PhasePostUpdate.
type CampSystem struct {
	w       *world.World
	res     *health.Resolver
	prefabs *world.Prefabs
	policy  timer.TriggerPolicy
	delay   uint32
	entries map[ecs.EntityID]data.CampEntry
	vacant  []vacancy
	log     *zap.Logger
}

func NewCampSystem(w *world.World, res *health.Resolver, prefabs *world.Prefabs, policy timer.TriggerPolicy, respawn time.Duration, log *zap.Logger) *CampSystem {
	s := &CampSystem{
		w:       w,
		res:     res,
		prefabs: prefabs,
		policy:  policy,
		delay:   prefabs.Ticks(respawn),
		entries: make(map[ecs.EntityID]data.CampEntry),
		log:     log,
	}
	res.OnDeath(s.onDeath)
	w.OnDespawn(s.onDespawn)
	return s
}

func (s *CampSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

// Populate spawns one member per camp entry.
func (s *CampSystem) Populate(camps []data.CampEntry) error {
	for _, c := range camps {
		if _, err := s.spawn(c); err != nil {
			return err
		}
	}
	return nil
}

func (s *CampSystem) spawn(c data.CampEntry) (ecs.EntityID, error) {
	spec, err := s.prefabs.Enemy(s.w, c)
	if err != nil {
		return 0, err
	}
	id, err := s.w.Spawn(spec)
	if err != nil {
		return 0, err
	}
	s.entries[id] = c
	if s.policy == timer.ResetOnTrigger {
		s.res.SetPolicy(id, health.Hold())
	}
	return id, nil
}

func (s *CampSystem) onDeath(d health.Death) {
	if s.policy != timer.ResetOnTrigger {
		return
	}
	c, ok := s.w.Camps.Get(d.Victim)
	if !ok {
		return
	}
	c.Respawn = timer.Start(s.w.Clock(), s.delay)
	c.Waiting = true
	s.log.Debug("camp member down", zap.Stringer("entity", d.Victim), zap.Uint32("respawn_ticks", s.delay))
}

func (s *CampSystem) onDespawn(id ecs.EntityID, _ ecs.Kind) {
	entry, ok := s.entries[id]
	if !ok {
		return
	}
	delete(s.entries, id)
	if s.policy == timer.ResetOnDespawn {
		s.vacant = append(s.vacant, vacancy{entry: entry, timer: timer.Start(s.w.Clock(), s.delay)})
	}
}

func (s *CampSystem) Update(_ time.Duration) {
	w := s.w
	now := w.Now()
	for _, id := range w.Camps.IDs() {
		c, _ := w.Camps.Get(id)
		if !c.Waiting || !w.IsActive(id) || !c.Respawn.Expired(now) {
			continue
		}
		if err := s.res.Revive(w.Local(), id); err != nil {
			s.log.Warn("camp revive failed", zap.Stringer("entity", id), zap.Error(err))
			continue
		}
		c.Waiting = false
		if p, ok := w.Patrols.Get(id); ok {
			p.Next = 0
		}
		_ = w.MoveTo(id, c.Home)
	}

	kept := s.vacant[:0]
	for _, v := range s.vacant {
		if !v.timer.Expired(now) {
			kept = append(kept, v)
			continue
		}
		if _, err := s.spawn(v.entry); err != nil {
			s.log.Warn("camp respawn failed", zap.String("kind", v.entry.Kind), zap.Error(err))
		}
	}
	s.vacant = kept
}

// Vacancies returns the number of camps waiting to spawn a new member.
func (s *CampSystem) Vacancies() int { return len(s.vacant) }
