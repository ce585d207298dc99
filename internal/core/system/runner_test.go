package system

import (
	"testing"
	"time"

	"github.com/dinoarena/server/internal/core/tick"
)

type probe struct {
	phase Phase
	name  string
	log   *[]string
}

func (p probe) Phase() Phase         { return p.phase }
func (p probe) Update(time.Duration) { *p.log = append(*p.log, p.name) }

func TestRunnerPhaseOrder(t *testing.T) {
	var log []string
	clock := tick.NewClock(50 * time.Millisecond)
	r := NewRunner(clock)
	r.Register(probe{PhaseCleanup, "cleanup", &log})
	r.Register(probe{PhaseUpdate, "update-a", &log})
	r.Register(probe{PhaseInput, "input", &log})
	r.Register(probe{PhaseUpdate, "update-b", &log})

	if now := r.Tick(clock.Rate()); now != 1 {
		t.Fatalf("tick = %d, want 1", now)
	}
	want := []string{"input", "update-a", "update-b", "cleanup"}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("order = %v, want %v", log, want)
		}
	}
}
