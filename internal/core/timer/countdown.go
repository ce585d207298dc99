package timer

import (
	"fmt"
	"time"

	"github.com/dinoarena/server/internal/core/tick"
)

// Countdown is a tick-stamped expiry used for cooldowns, projectile
// lifetimes and respawn delays. The zero value is an unset timer and is
// always expired. Only the entity's state authority starts or overwrites it.
type Countdown struct {
	start    tick.Tick
	duration uint32
	set      bool
}

// Start returns a countdown of d ticks beginning at src.Now().
func Start(src tick.Source, d uint32) Countdown {
	return Countdown{start: src.Now(), duration: d, set: true}
}

// StartFor starts a countdown for a wall duration converted at the clock's
// tick rate, rounded up.
func StartFor(clock *tick.Clock, d time.Duration) Countdown {
	return Start(clock, clock.TicksFor(d))
}

// At builds a countdown from raw values (replay, wire decode).
func At(start tick.Tick, d uint32) Countdown {
	return Countdown{start: start, duration: d, set: true}
}

func (c Countdown) IsSet() bool          { return c.set }
func (c Countdown) StartTick() tick.Tick { return c.start }
func (c Countdown) Duration() uint32     { return c.duration }

// Expired reports now - start >= duration. Unset timers are expired.
func (c Countdown) Expired(now tick.Tick) bool {
	if !c.set {
		return true
	}
	if now < c.start {
		return false
	}
	return uint64(now-c.start) >= uint64(c.duration)
}

// Remaining returns max(0, duration - (now - start)) in ticks.
func (c Countdown) Remaining(now tick.Tick) uint32 {
	if !c.set {
		return 0
	}
	if now < c.start {
		return c.duration
	}
	elapsed := uint64(now - c.start)
	if elapsed >= uint64(c.duration) {
		return 0
	}
	return c.duration - uint32(elapsed)
}

// Running is true for a set timer that has not expired yet.
func (c Countdown) Running(now tick.Tick) bool {
	return c.set && !c.Expired(now)
}

// Progress is the elapsed fraction in [0,1]; unset timers report 1.
// The UI collaborator draws cooldown overlays from it.
func (c Countdown) Progress(now tick.Tick) float64 {
	if !c.set || c.duration == 0 {
		return 1
	}
	return 1 - float64(c.Remaining(now))/float64(c.duration)
}

func (c Countdown) String() string {
	if !c.set {
		return "unset"
	}
	return fmt.Sprintf("%d+%d", c.start, c.duration)
}

// TriggerPolicy names when a cooldown-style timer is (re)started.
type TriggerPolicy int

const (
	// ResetOnTrigger starts the timer when the triggering event happens
	// (a bomb is dropped, a drone is spawned, a camp member dies).
	ResetOnTrigger TriggerPolicy = iota
	// ResetOnDespawn starts the timer when the resulting entity despawns.
	ResetOnDespawn
)

func (p TriggerPolicy) String() string {
	switch p {
	case ResetOnTrigger:
		return "on_trigger"
	case ResetOnDespawn:
		return "on_despawn"
	default:
		return fmt.Sprintf("TriggerPolicy(%d)", int(p))
	}
}

// ParsePolicy maps config strings onto policies.
func ParsePolicy(s string) (TriggerPolicy, error) {
	switch s {
	case "", "on_trigger":
		return ResetOnTrigger, nil
	case "on_despawn":
		return ResetOnDespawn, nil
	default:
		return ResetOnTrigger, fmt.Errorf("unknown timer trigger policy %q", s)
	}
}
