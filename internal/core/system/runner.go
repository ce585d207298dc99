package system

import (
	"sort"
	"time"

	"github.com/dinoarena/server/internal/core/tick"
)

// Runner executes systems in phase order each tick. Systems sharing a phase
// run in registration order.
type Runner struct {
	clock   *tick.Clock
	systems []System
	sorted  bool
}

func NewRunner(clock *tick.Clock) *Runner {
	return &Runner{
		clock:   clock,
		systems: make([]System, 0, 16),
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

// Tick advances the simulation clock by one step and runs every system.
// All state-authority mutations of the tick happen inside this call, on the
// caller's goroutine.
func (r *Runner) Tick(dt time.Duration) tick.Tick {
	r.ensureSorted()
	now := r.clock.Advance()
	for _, s := range r.systems {
		s.Update(dt)
	}
	return now
}

// TickPhase runs only the systems of one phase without advancing the clock.
// Used for high-frequency input polling between full ticks.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	r.ensureSorted()
	for _, s := range r.systems {
		if s.Phase() == phase {
			s.Update(dt)
		}
	}
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
