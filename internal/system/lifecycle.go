package system

import (
	"time"

	coresys "github.com/dinoarena/server/internal/core/system"
	"github.com/dinoarena/server/internal/health"
	"github.com/dinoarena/server/internal/world"
)

// EventSystem delivers the events emitted during the previous tick.
// Phase 1 (PreUpdate).
type EventSystem struct {
	w *world.World
}

func NewEventSystem(w *world.World) *EventSystem { return &EventSystem{w: w} }

func (s *EventSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *EventSystem) Update(_ time.Duration) {
	s.w.Bus.SwapBuffers()
	s.w.Bus.DispatchAll()
}

// CorpseSystem removes corpses whose death delay has run out.
// Phase 3 (PostUpdate).
type CorpseSystem struct {
	res *health.Resolver
}

func NewCorpseSystem(res *health.Resolver) *CorpseSystem { return &CorpseSystem{res: res} }

func (s *CorpseSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *CorpseSystem) Update(_ time.Duration) { s.res.Tick() }

// CleanupSystem flushes the deferred entity destruction queue at tick end.
// Phase 6 (Cleanup).
type CleanupSystem struct {
	w *world.World
}

func NewCleanupSystem(w *world.World) *CleanupSystem {
	return &CleanupSystem{w: w}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	s.w.Flush()
}
