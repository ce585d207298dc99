// Package observer serves read-only spectators over HTTP: a health probe,
// the recent matches from the store and a websocket stream of replicated
// changes. Every spectator is a proxy View attached to the store.
package observer

import (
	"encoding/json"
	"sort"
	"sync/atomic"

	"github.com/dinoarena/server/internal/authority"
	"github.com/dinoarena/server/internal/core/tick"
	"github.com/dinoarena/server/internal/replication"
	"go.uber.org/zap"
)

// Batch is one websocket message: the transitions a spectator saw this tick.
type Batch struct {
	Tick    tick.Tick            `json:"tick"`
	Changes []replication.Change `json:"changes"`
}

type spectator struct {
	id      string
	out     chan []byte
	view    *replication.View
	pending []replication.Change
}

func (sp *spectator) Replicate(c replication.Change) {
	sp.pending = append(sp.pending, c)
}

// Hub hands replicated changes from the game loop to spectator streams.
// Join and leave requests arrive on channels from HTTP goroutines and are
// applied in Sync, so the store and the views stay game-loop only.
type Hub struct {
	joinCh  chan *spectator
	leaveCh chan string
	specs   map[string]*spectator
	log     *zap.Logger

	tick  atomic.Uint64
	count atomic.Int64
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		joinCh:  make(chan *spectator, 16),
		leaveCh: make(chan string, 64),
		specs:   make(map[string]*spectator),
		log:     log,
	}
}

// join queues a spectator; false when the game loop is not keeping up.
func (h *Hub) join(sp *spectator) bool {
	select {
	case h.joinCh <- sp:
		return true
	default:
		return false
	}
}

func (h *Hub) leave(id string) {
	select {
	case h.leaveCh <- id:
	default:
	}
}

// Tick is the last tick synced (any goroutine).
func (h *Hub) Tick() tick.Tick { return tick.Tick(h.tick.Load()) }

// Spectators is the number of attached streams (any goroutine).
func (h *Hub) Spectators() int { return int(h.count.Load()) }

// Sync implements the replication endpoint. Game loop only.
func (h *Hub) Sync(st *replication.Store, now tick.Tick) {
	h.tick.Store(uint64(now))
	h.applyMembership(st)
	if len(h.specs) == 0 {
		return
	}

	ids := make([]string, 0, len(h.specs))
	for id := range h.specs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		sp := h.specs[id]
		sp.view.Drain()
		if len(sp.pending) == 0 {
			continue
		}
		b, err := json.Marshal(Batch{Tick: now, Changes: sp.pending})
		sp.pending = sp.pending[:0]
		if err != nil {
			h.log.Error("encode spectator batch", zap.String("spectator", id), zap.Error(err))
			continue
		}
		select {
		case sp.out <- b:
		default:
			h.log.Warn("spectator too slow, dropping", zap.String("spectator", id))
			h.remove(st, id)
		}
	}
}

// applyMembership attaches every queued join before it applies any leave, so
// a stream that closed right after connecting is detached in the same Sync.
func (h *Hub) applyMembership(st *replication.Store) {
	for joined := false; !joined; {
		select {
		case sp := <-h.joinCh:
			sp.view = replication.NewView(authority.NoPeer)
			sp.view.AddSink(sp)
			st.Attach(sp.view)
			h.specs[sp.id] = sp
			h.count.Store(int64(len(h.specs)))
			h.log.Info("spectator attached", zap.String("spectator", sp.id))
		default:
			joined = true
		}
	}
	for {
		select {
		case id := <-h.leaveCh:
			h.remove(st, id)
		default:
			return
		}
	}
}

func (h *Hub) remove(st *replication.Store, id string) {
	sp, ok := h.specs[id]
	if !ok {
		return
	}
	st.Detach(sp.view)
	delete(h.specs, id)
	close(sp.out)
	h.count.Store(int64(len(h.specs)))
	h.log.Info("spectator detached", zap.String("spectator", id))
}
