package timer

import (
	"testing"
	"time"

	"github.com/dinoarena/server/internal/core/tick"
)

func TestUnsetIsExpired(t *testing.T) {
	var c Countdown
	if !c.Expired(0) || !c.Expired(1000) {
		t.Fatal("unset countdown not expired")
	}
	if c.Remaining(1000) != 0 {
		t.Fatal("unset countdown has remaining time")
	}
	if c.Running(5) {
		t.Fatal("unset countdown running")
	}
}

func TestStartAtTenForFive(t *testing.T) {
	clock := &tick.Manual{T: 10}
	c := Start(clock, 5)

	if c.Expired(10) {
		t.Fatal("expired immediately after start")
	}
	if c.Expired(14) {
		t.Fatal("expired at tick 14")
	}
	if !c.Expired(15) {
		t.Fatal("not expired at tick 15")
	}
	if got := c.Remaining(14); got != 1 {
		t.Fatalf("Remaining(14) = %d, want 1", got)
	}
	if got := c.Remaining(15); got != 0 {
		t.Fatalf("Remaining(15) = %d, want 0", got)
	}
	if got := c.Remaining(100); got != 0 {
		t.Fatalf("Remaining(100) = %d, want 0", got)
	}
}

func TestRemainingNeverNegativeAndMonotonic(t *testing.T) {
	c := At(3, 7)
	prev := c.Remaining(3)
	for now := tick.Tick(3); now < 20; now++ {
		r := c.Remaining(now)
		if r > prev {
			t.Fatalf("Remaining grew at %d: %d > %d", now, r, prev)
		}
		if (r == 0) != c.Expired(now) {
			t.Fatalf("at %d remaining=%d expired=%v", now, r, c.Expired(now))
		}
		prev = r
	}
}

func TestRestartOverwrites(t *testing.T) {
	clock := &tick.Manual{T: 0}
	c := Start(clock, 2)
	clock.T = 2
	if !c.Expired(clock.Now()) {
		t.Fatal("first run not expired")
	}
	c = Start(clock, 2)
	if c.Expired(clock.Now()) {
		t.Fatal("restarted countdown expired")
	}
}

func TestStartFor(t *testing.T) {
	clock := tick.NewClock(200 * time.Millisecond)
	c := StartFor(clock, 700*time.Millisecond)
	if c.Duration() != 4 {
		t.Fatalf("Duration = %d, want 4", c.Duration())
	}
}

func TestProgress(t *testing.T) {
	c := At(0, 4)
	if got := c.Progress(1); got != 0.25 {
		t.Fatalf("Progress(1) = %v", got)
	}
	var unset Countdown
	if unset.Progress(0) != 1 {
		t.Fatal("unset progress should be 1")
	}
}

func TestParsePolicy(t *testing.T) {
	for _, p := range []TriggerPolicy{ResetOnTrigger, ResetOnDespawn} {
		got, err := ParsePolicy(p.String())
		if err != nil || got != p {
			t.Fatalf("ParsePolicy(%q) = %v, %v", p.String(), got, err)
		}
	}
	if _, err := ParsePolicy("sometimes"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}
