package system

import (
	"time"

	coresys "github.com/dinoarena/server/internal/core/system"
	"github.com/dinoarena/server/internal/core/tick"
	"github.com/dinoarena/server/internal/replication"
	"github.com/dinoarena/server/internal/world"
)

// Endpoint receives replicated state once per tick: it drains the views it
// owns and pushes the result to its transport.
type Endpoint interface {
	Sync(st *replication.Store, now tick.Tick)
}

// ChangeRecorder observes every propagated batch (journal).
type ChangeRecorder interface {
	RecordChanges(now tick.Tick, changes []replication.Change)
}

// ReplicationSystem propagates the tick's writes to every view in
// per-entity FIFO order, then lets each endpoint drain and send.
// Phase 4 (Output).
type ReplicationSystem struct {
	w         *world.World
	endpoints []Endpoint
	recorders []ChangeRecorder
}

func NewReplicationSystem(w *world.World, endpoints ...Endpoint) *ReplicationSystem {
	return &ReplicationSystem{w: w, endpoints: endpoints}
}

func (s *ReplicationSystem) AddEndpoint(e Endpoint)       { s.endpoints = append(s.endpoints, e) }
func (s *ReplicationSystem) AddRecorder(r ChangeRecorder) { s.recorders = append(s.recorders, r) }

func (s *ReplicationSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *ReplicationSystem) Update(_ time.Duration) {
	now := s.w.Now()
	changes := s.w.State.Flush()
	if len(changes) > 0 {
		for _, r := range s.recorders {
			r.RecordChanges(now, changes)
		}
	}
	for _, e := range s.endpoints {
		e.Sync(s.w.State, now)
	}
}
