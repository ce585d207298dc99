package net

import (
	"sort"

	"github.com/dinoarena/server/internal/authority"
)

// SessionStore indexes live sessions by id and by joined peer.
// Game loop only.
type SessionStore struct {
	byID   map[uint64]*Session
	byPeer map[authority.PeerID]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		byID:   make(map[uint64]*Session),
		byPeer: make(map[authority.PeerID]*Session),
	}
}

func (st *SessionStore) Add(s *Session) {
	st.byID[s.ID] = s
}

// Bind records the peer a session joined as.
func (st *SessionStore) Bind(s *Session, peer authority.PeerID) {
	s.Peer = peer
	st.byPeer[peer] = s
}

func (st *SessionStore) Remove(id uint64) *Session {
	s, ok := st.byID[id]
	if !ok {
		return nil
	}
	delete(st.byID, id)
	if s.Peer != authority.NoPeer && st.byPeer[s.Peer] == s {
		delete(st.byPeer, s.Peer)
	}
	return s
}

func (st *SessionStore) Get(id uint64) *Session {
	return st.byID[id]
}

func (st *SessionStore) ByPeer(peer authority.PeerID) *Session {
	return st.byPeer[peer]
}

// Peers returns the joined peers in ascending order.
func (st *SessionStore) Peers() []authority.PeerID {
	out := make([]authority.PeerID, 0, len(st.byPeer))
	for p := range st.byPeer {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ForEach visits sessions in id order.
func (st *SessionStore) ForEach(fn func(*Session)) {
	ids := make([]uint64, 0, len(st.byID))
	for id := range st.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fn(st.byID[id])
	}
}

func (st *SessionStore) Len() int {
	return len(st.byID)
}
