package handler

import (
	"fmt"
	"sort"

	"github.com/dinoarena/server/internal/authority"
	"github.com/dinoarena/server/internal/command"
	"github.com/dinoarena/server/internal/core/ecs"
	"github.com/dinoarena/server/internal/core/tick"
	"github.com/dinoarena/server/internal/net"
	"github.com/dinoarena/server/internal/net/packet"
	"github.com/dinoarena/server/internal/replication"
	"github.com/dinoarena/server/internal/world"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// stateBudget keeps an S_STATE batch under the frame limit.
const stateBudget = net.MaxPayload - 1024

// Hub links joined sessions to the replicated store. Every session owns a
// View; once per tick the hub drains the views and encodes the transitions
// as S_SPAWN / S_STATE / S_DESPAWN, then flushes every session's outbox.
// It is also the channel's route to remote peers. Game loop only.
type Hub struct {
	w        *world.World
	sessions *net.SessionStore
	links    map[authority.PeerID]*link
	log      *zap.Logger
}

func NewHub(w *world.World, sessions *net.SessionStore, log *zap.Logger) *Hub {
	return &Hub{
		w:        w,
		sessions: sessions,
		links:    make(map[authority.PeerID]*link),
		log:      log,
	}
}

// Attach gives a joined session its view, seeded with the current state.
func (h *Hub) Attach(sess *net.Session) {
	if _, ok := h.links[sess.Peer]; ok {
		return
	}
	l := &link{
		hub:   h,
		sess:  sess,
		view:  replication.NewView(sess.Peer),
		known: make(map[ecs.EntityID]bool, 64),
	}
	l.view.AddSink(l)
	h.w.State.Attach(l.view)
	h.links[sess.Peer] = l
}

// Detach stops replicating to a peer.
func (h *Hub) Detach(peer authority.PeerID) {
	l, ok := h.links[peer]
	if !ok {
		return
	}
	h.w.State.Detach(l.view)
	delete(h.links, peer)
}

// View returns the mirror of a peer.
func (h *Hub) View(peer authority.PeerID) (*replication.View, bool) {
	l, ok := h.links[peer]
	if !ok {
		return nil, false
	}
	return l.view, true
}

// Sync drains every view and flushes all session outboxes.
func (h *Hub) Sync(_ *replication.Store, now tick.Tick) {
	peers := make([]authority.PeerID, 0, len(h.links))
	for p := range h.links {
		peers = append(peers, p)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })
	for _, p := range peers {
		l := h.links[p]
		l.now = now
		l.view.Drain()
		l.flushState()
	}
	h.sessions.ForEach(func(s *net.Session) {
		s.FlushOutput()
	})
}

// Deliver implements command.Deliverer:
// S_COMMAND [version H][name S][target Q][source D][seq Q][tick Q][args blob].
func (h *Hub) Deliver(peer authority.PeerID, cmd command.Command) {
	sess := h.sessions.ByPeer(peer)
	if sess == nil {
		h.log.Debug("command for unknown peer dropped",
			zap.String("command", cmd.Name),
			zap.Stringer("peer", peer),
		)
		return
	}
	w := packet.NewWriterWithOpcode(packet.S_COMMAND)
	w.WriteH(cmd.Version)
	w.WriteS(cmd.Name)
	w.WriteQ(uint64(cmd.Target))
	w.WriteD(int32(cmd.Source))
	w.WriteQ(cmd.Seq)
	w.WriteQ(uint64(cmd.Tick))
	w.WriteBlob(cmd.Args)
	sess.Send(w.Bytes())
}

// Peers implements command.Peers.
func (h *Hub) Peers() []authority.PeerID { return h.sessions.Peers() }

// RecordCommand tells the sender about a rejected command. Routine drops
// of stale targets are not reported.
func (h *Hub) RecordCommand(cmd command.Command, err error) {
	if err == nil || command.IsSoft(err) || cmd.Source == h.w.Local() {
		return
	}
	sess := h.sessions.ByPeer(cmd.Source)
	if sess == nil {
		return
	}
	sendReject(sess, packet.RejectCommand, fmt.Sprintf("%s: %v", cmd.Name, err))
}

type stateEntry struct {
	entity ecs.EntityID
	field  string
	value  []byte
}

// link is the per-session replication sink.
type link struct {
	hub   *Hub
	sess  *net.Session
	view  *replication.View
	known map[ecs.EntityID]bool
	now   tick.Tick

	batch []stateEntry
	size  int
}

// Replicate encodes one drained transition. Entities are announced with
// S_SPAWN on first sight; the kind field travels in the spawn only.
func (l *link) Replicate(c replication.Change) {
	if c.Removed {
		if !l.known[c.Entity] {
			return
		}
		l.flushState()
		delete(l.known, c.Entity)
		w := packet.NewWriterWithOpcode(packet.S_DESPAWN)
		w.WriteQ(uint64(c.Entity))
		l.sess.Send(w.Bytes())
		return
	}
	if !l.known[c.Entity] {
		l.flushState()
		l.known[c.Entity] = true
		l.sendSpawn(c.Entity)
	}
	if c.Field == world.FieldKind.Name {
		return
	}
	val, err := msgpack.Marshal(c.Value)
	if err != nil {
		l.hub.log.Error("encode replicated value",
			zap.Stringer("entity", c.Entity),
			zap.String("field", c.Field),
			zap.Error(err),
		)
		return
	}
	n := 8 + 2 + len(c.Field) + 2 + len(val)
	if l.size+n > stateBudget {
		l.flushState()
	}
	l.batch = append(l.batch, stateEntry{entity: c.Entity, field: c.Field, value: val})
	l.size += n
}

// sendSpawn: [entity Q][kind S][role of the receiving peer C]
func (l *link) sendSpawn(id ecs.EntityID) {
	w := packet.NewWriterWithOpcode(packet.S_SPAWN)
	w.WriteQ(uint64(id))
	w.WriteS(string(l.hub.w.KindOf(id)))
	w.WriteC(byte(l.hub.w.Auth.RoleOf(id, l.view.Peer())))
	l.sess.Send(w.Bytes())
}

// flushState: S_STATE [tick Q][count H]{[entity Q][field S][value blob]}
func (l *link) flushState() {
	if len(l.batch) == 0 {
		return
	}
	w := packet.NewWriterWithOpcode(packet.S_STATE)
	w.WriteQ(uint64(l.now))
	w.WriteH(uint16(len(l.batch)))
	for _, e := range l.batch {
		w.WriteQ(uint64(e.entity))
		w.WriteS(e.field)
		w.WriteBlob(e.value)
	}
	l.sess.Send(w.Bytes())
	l.batch = l.batch[:0]
	l.size = 0
}
