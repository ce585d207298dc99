// Package authority tracks, per entity, which peer is State Authority (may
// mutate canonical state) and which peer, if any, is Input Authority (may
// submit intents). Every mutation boundary in the server asks this registry.
package authority

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dinoarena/server/internal/core/ecs"
)

// PeerID identifies a participant in the session. NoPeer is "nobody".
type PeerID uint32

const (
	NoPeer PeerID = 0
	// Host is the authoritative simulation peer run by this process.
	Host PeerID = 1
)

func (p PeerID) String() string {
	switch p {
	case NoPeer:
		return "none"
	case Host:
		return "host"
	default:
		return fmt.Sprintf("peer-%d", uint32(p))
	}
}

// Role is a peer's relation to one entity.
type Role uint8

const (
	RoleProxy Role = 1 << iota
	RoleInputAuthority
	RoleStateAuthority

	// RoleAll is used as a delivery target: every peer observing the entity.
	RoleAll = RoleProxy | RoleInputAuthority | RoleStateAuthority
)

func (r Role) String() string {
	if r == RoleAll {
		return "All"
	}
	var parts []string
	if r&RoleStateAuthority != 0 {
		parts = append(parts, "StateAuthority")
	}
	if r&RoleInputAuthority != 0 {
		parts = append(parts, "InputAuthority")
	}
	if r&RoleProxy != 0 {
		parts = append(parts, "Proxy")
	}
	if len(parts) == 0 {
		return "None"
	}
	return strings.Join(parts, "|")
}

// Has reports whether any bit of other is present in r.
func (r Role) Has(other Role) bool { return r&other != 0 }

var (
	ErrNotStateAuthority = errors.New("peer is not state authority")
	ErrNotInputAuthority = errors.New("peer is not input authority")
	ErrAlreadyAssigned   = errors.New("entity already has an authority assignment")
	ErrUnassigned        = errors.New("entity has no authority assignment")
	ErrInert             = errors.New("entity has no reachable state authority")
)

// Assignment is the authority pair of one entity.
type Assignment struct {
	State PeerID
	Input PeerID
}

// Registry holds assignments. Accessed only from the game loop goroutine.
type Registry struct {
	entries map[ecs.EntityID]*Assignment
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[ecs.EntityID]*Assignment, 256)}
}

// Assign sets the authority pair of an entity. It happens once, at spawn.
func (r *Registry) Assign(id ecs.EntityID, state, input PeerID) error {
	if id.IsZero() {
		return fmt.Errorf("assign %s: %w", id, ErrUnassigned)
	}
	if _, ok := r.entries[id]; ok {
		return fmt.Errorf("assign %s: %w", id, ErrAlreadyAssigned)
	}
	if state == NoPeer {
		return fmt.Errorf("assign %s: %w", id, ErrInert)
	}
	r.entries[id] = &Assignment{State: state, Input: input}
	return nil
}

// TransferInput atomically hands input authority to another peer (a drone
// handed to its commanding operator). Only the state authority may do it.
func (r *Registry) TransferInput(id ecs.EntityID, by, to PeerID) error {
	a, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("transfer input %s: %w", id, ErrUnassigned)
	}
	if a.State == NoPeer || a.State != by {
		return fmt.Errorf("transfer input %s by %s: %w", id, by, ErrNotStateAuthority)
	}
	a.Input = to
	return nil
}

// Reassign gives an inert entity a new state authority. Live assignments
// are never migrated.
func (r *Registry) Reassign(id ecs.EntityID, state PeerID) error {
	a, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("reassign %s: %w", id, ErrUnassigned)
	}
	if a.State != NoPeer {
		return fmt.Errorf("reassign %s: %w", id, ErrAlreadyAssigned)
	}
	if state == NoPeer {
		return fmt.Errorf("reassign %s: %w", id, ErrInert)
	}
	a.State = state
	return nil
}

// Release forgets an entity. Called when its id is freed.
func (r *Registry) Release(id ecs.EntityID) {
	delete(r.entries, id)
}

// Remove implements ecs.Removable so the registry is cleared with the world.
func (r *Registry) Remove(id ecs.EntityID) { r.Release(id) }

// DropPeer handles a departed peer: input authority it held is cleared and
// entities it was state authority for become inert. Returns the inert ids.
func (r *Registry) DropPeer(peer PeerID) []ecs.EntityID {
	if peer == NoPeer {
		return nil
	}
	var inert []ecs.EntityID
	for id, a := range r.entries {
		if a.Input == peer {
			a.Input = NoPeer
		}
		if a.State == peer {
			a.State = NoPeer
			inert = append(inert, id)
		}
	}
	ecs.SortIDs(inert)
	return inert
}

func (r *Registry) Get(id ecs.EntityID) (Assignment, bool) {
	a, ok := r.entries[id]
	if !ok {
		return Assignment{}, false
	}
	return *a, true
}

func (r *Registry) StateAuthority(id ecs.EntityID) PeerID {
	if a, ok := r.entries[id]; ok {
		return a.State
	}
	return NoPeer
}

func (r *Registry) InputAuthority(id ecs.EntityID) PeerID {
	if a, ok := r.entries[id]; ok {
		return a.Input
	}
	return NoPeer
}

func (r *Registry) IsStateAuthority(id ecs.EntityID, peer PeerID) bool {
	return peer != NoPeer && r.StateAuthority(id) == peer
}

func (r *Registry) IsInputAuthority(id ecs.EntityID, peer PeerID) bool {
	return peer != NoPeer && r.InputAuthority(id) == peer
}

// RoleOf returns every role peer holds for the entity. A peer that is both
// state and input authority (host-controlled units) holds both bits.
func (r *Registry) RoleOf(id ecs.EntityID, peer PeerID) Role {
	a, ok := r.entries[id]
	if !ok || peer == NoPeer {
		return 0
	}
	var role Role
	if a.State == peer {
		role |= RoleStateAuthority
	}
	if a.Input == peer {
		role |= RoleInputAuthority
	}
	if role == 0 {
		role = RoleProxy
	}
	return role
}

// Check is the boundary guard for state mutation.
func (r *Registry) Check(id ecs.EntityID, peer PeerID) error {
	a, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("entity %s: %w", id, ErrUnassigned)
	}
	if a.State == NoPeer {
		return fmt.Errorf("entity %s: %w", id, ErrInert)
	}
	if a.State != peer {
		return fmt.Errorf("entity %s peer %s: %w", id, peer, ErrNotStateAuthority)
	}
	return nil
}

// ControlledBy returns the ids whose input authority is peer.
func (r *Registry) ControlledBy(peer PeerID) []ecs.EntityID {
	var out []ecs.EntityID
	for id, a := range r.entries {
		if a.Input == peer && peer != NoPeer {
			out = append(out, id)
		}
	}
	ecs.SortIDs(out)
	return out
}

func (r *Registry) Len() int { return len(r.entries) }
