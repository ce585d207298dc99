package tick

import "time"

// Tick is one fixed-size step of the authoritative simulation clock.
type Tick uint64

// Source is anything that can report the current tick. Timers and
// authority checks only ever need this read side.
type Source interface {
	Now() Tick
}

// Clock is the process-wide monotonic simulation clock. It is advanced
// exactly once per game loop iteration and read from the game loop only.
type Clock struct {
	now  Tick
	rate time.Duration
}

func NewClock(rate time.Duration) *Clock {
	if rate <= 0 {
		rate = 200 * time.Millisecond
	}
	return &Clock{rate: rate}
}

func (c *Clock) Now() Tick           { return c.now }
func (c *Clock) Rate() time.Duration { return c.rate }

// Advance moves the clock forward by one tick and returns the new tick.
func (c *Clock) Advance() Tick {
	c.now++
	return c.now
}

// TicksFor converts a wall duration into a tick count, rounding up so a
// non-zero duration never collapses into an already-expired timer.
func (c *Clock) TicksFor(d time.Duration) uint32 {
	return TicksFor(d, c.rate)
}

// TicksFor converts d into ticks at the given tick rate (rounded up).
func TicksFor(d, rate time.Duration) uint32 {
	if d <= 0 || rate <= 0 {
		return 0
	}
	n := (d + rate - 1) / rate
	return uint32(n)
}

// Manual is a Source whose tick is set directly. Used by tests and replay.
type Manual struct {
	T Tick
}

func (m *Manual) Now() Tick { return m.T }
