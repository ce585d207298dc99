package replication

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dinoarena/server/internal/authority"
	"github.com/dinoarena/server/internal/core/ecs"
	"github.com/dinoarena/server/internal/core/tick"
	"go.uber.org/zap"
)

var (
	ErrUnknownEntity = errors.New("entity has no replicated block")
	ErrNotActive     = errors.New("entity is not active")
	ErrUnknownField  = errors.New("field is not part of the entity block")
)

// Guard is the mutation boundary: authority.Registry satisfies it.
type Guard interface {
	Check(id ecs.EntityID, peer authority.PeerID) error
}

// Liveness reports whether an entity still accepts writes.
type Liveness interface {
	IsActive(id ecs.EntityID) bool
}

// Store is the authoritative copy of every replicated block.
// Single writer per entity, accessed from the game loop only.
type Store struct {
	guard  Guard
	live   Liveness
	clock  tick.Source
	log    *zap.Logger
	blocks map[ecs.EntityID]map[string]any

	pending []Change
	seq     uint64
	views   []*View
}

func NewStore(guard Guard, live Liveness, clock tick.Source, log *zap.Logger) *Store {
	return &Store{
		guard:   guard,
		live:    live,
		clock:   clock,
		log:     log,
		blocks:  make(map[ecs.EntityID]map[string]any, 256),
		pending: make([]Change, 0, 256),
	}
}

// Init creates the block for a freshly spawned entity and queues its
// initial values so every peer learns them on the next flush.
func (s *Store) Init(id ecs.EntityID, values ...Value) error {
	if _, ok := s.blocks[id]; ok {
		return fmt.Errorf("init %s: block exists", id)
	}
	block := make(map[string]any, len(values))
	s.blocks[id] = block
	for _, v := range values {
		block[v.Field] = v.Value
		s.enqueue(Change{Entity: id, Field: v.Field, Value: v.Value})
	}
	return nil
}

// Set writes a typed value on behalf of peer. Writes by anyone but the
// entity's state authority are rejected at this boundary and logged.
// Equal-to-equal writes are accepted but produce no change.
func Set[T comparable](s *Store, peer authority.PeerID, id ecs.EntityID, f Field[T], v T) error {
	return s.write(peer, id, f.Name, v)
}

// Get reads the authoritative value. Only the state authority's own logic
// should use it; everybody else reads through a View.
func Get[T comparable](s *Store, id ecs.EntityID, f Field[T]) (T, bool) {
	var zero T
	block, ok := s.blocks[id]
	if !ok {
		return zero, false
	}
	raw, ok := block[f.Name]
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	return v, ok
}

func (s *Store) write(peer authority.PeerID, id ecs.EntityID, field string, value any) error {
	if err := s.guard.Check(id, peer); err != nil {
		s.log.Warn("replicated write rejected",
			zap.Stringer("entity", id),
			zap.Stringer("peer", peer),
			zap.String("field", field),
			zap.Error(err),
		)
		return err
	}
	if !s.live.IsActive(id) {
		s.log.Debug("replicated write to inactive entity dropped",
			zap.Stringer("entity", id),
			zap.String("field", field),
		)
		return fmt.Errorf("write %s.%s: %w", id, field, ErrNotActive)
	}
	block, ok := s.blocks[id]
	if !ok {
		return fmt.Errorf("write %s.%s: %w", id, field, ErrUnknownEntity)
	}
	old, ok := block[field]
	if !ok {
		return fmt.Errorf("write %s.%s: %w", id, field, ErrUnknownField)
	}
	if old == value {
		return nil
	}
	block[field] = value
	s.enqueue(Change{Entity: id, Field: field, Value: value})
	return nil
}

func (s *Store) enqueue(c Change) {
	s.seq++
	c.Seq = s.seq
	c.Tick = s.clock.Now()
	s.pending = append(s.pending, c)
}

// Remove drops the block of a freed entity and tells every view.
// Implements ecs.Removable.
func (s *Store) Remove(id ecs.EntityID) {
	if _, ok := s.blocks[id]; !ok {
		return
	}
	delete(s.blocks, id)
	s.enqueue(Change{Entity: id, Removed: true})
}

// Has reports whether the entity has a replicated block.
func (s *Store) Has(id ecs.EntityID) bool {
	_, ok := s.blocks[id]
	return ok
}

// Attach registers a peer view and seeds it with the current snapshot so a
// late joiner starts from the same values everyone else holds.
func (s *Store) Attach(v *View) {
	s.views = append(s.views, v)
	ids := make([]ecs.EntityID, 0, len(s.blocks))
	for id := range s.blocks {
		ids = append(ids, id)
	}
	ecs.SortIDs(ids)
	now := s.clock.Now()
	for _, id := range ids {
		block := s.blocks[id]
		names := make([]string, 0, len(block))
		for name := range block {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			v.apply(Change{Tick: now, Entity: id, Field: name, Value: block[name]})
		}
	}
}

// Detach stops propagation to a view.
func (s *Store) Detach(v *View) {
	for i, x := range s.views {
		if x == v {
			s.views = append(s.views[:i], s.views[i+1:]...)
			return
		}
	}
}

// Flush propagates all pending writes to every attached view, in write order,
// and returns the batch. Called once per tick in PhaseOutput.
func (s *Store) Flush() []Change {
	if len(s.pending) == 0 {
		return nil
	}
	batch := make([]Change, len(s.pending))
	copy(batch, s.pending)
	s.pending = s.pending[:0]
	for _, v := range s.views {
		for _, c := range batch {
			v.apply(c)
		}
	}
	return batch
}

// Pending returns the number of writes waiting for the next flush.
func (s *Store) Pending() int { return len(s.pending) }

// Views returns the attached views.
func (s *Store) Views() []*View { return s.views }
