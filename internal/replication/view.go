package replication

import (
	"github.com/dinoarena/server/internal/authority"
	"github.com/dinoarena/server/internal/core/ecs"
)

type fieldKey struct {
	entity ecs.EntityID
	field  string
}

// Sink receives every drained change of a view, after the field callbacks.
// Remote sessions and spectator streams encode changes through it.
type Sink interface {
	Replicate(c Change)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(c Change)

func (f SinkFunc) Replicate(c Change) { f(c) }

// View is one peer's read-only mirror. Reads return the last value
// propagated to this peer. Transitions are queued when propagated and
// their callbacks run on Drain, once per tick, in propagation order.
type View struct {
	peer   authority.PeerID
	values map[ecs.EntityID]map[string]any
	queue  []Change

	byField map[fieldKey][]func(Change)
	byName  map[string][]func(Change)
	sinks   []Sink
}

func NewView(peer authority.PeerID) *View {
	return &View{
		peer:    peer,
		values:  make(map[ecs.EntityID]map[string]any, 256),
		queue:   make([]Change, 0, 64),
		byField: make(map[fieldKey][]func(Change)),
		byName:  make(map[string][]func(Change)),
	}
}

func (v *View) Peer() authority.PeerID { return v.peer }

// apply mirrors one propagated change. Equal-to-equal updates are not
// transitions and are not queued.
func (v *View) apply(c Change) {
	if c.Removed {
		if _, ok := v.values[c.Entity]; !ok {
			return
		}
		delete(v.values, c.Entity)
		v.queue = append(v.queue, c)
		return
	}
	block, ok := v.values[c.Entity]
	if !ok {
		block = make(map[string]any, 8)
		v.values[c.Entity] = block
	}
	if old, seen := block[c.Field]; seen && old == c.Value {
		return
	}
	block[c.Field] = c.Value
	v.queue = append(v.queue, c)
}

// Read returns the last value of f propagated to this view.
func Read[T comparable](v *View, id ecs.EntityID, f Field[T]) (T, bool) {
	var zero T
	raw, ok := v.values[id][f.Name]
	if !ok {
		return zero, false
	}
	t, ok := raw.(T)
	return t, ok
}

// OnChange registers fn for transitions of one entity field.
func OnChange[T comparable](v *View, id ecs.EntityID, f Field[T], fn func(T)) {
	k := fieldKey{entity: id, field: f.Name}
	v.byField[k] = append(v.byField[k], func(c Change) {
		if t, ok := c.Value.(T); ok {
			fn(t)
		}
	})
}

// OnField registers fn for transitions of a field on any entity.
func OnField[T comparable](v *View, f Field[T], fn func(ecs.EntityID, T)) {
	v.byName[f.Name] = append(v.byName[f.Name], func(c Change) {
		if t, ok := c.Value.(T); ok {
			fn(c.Entity, t)
		}
	})
}

// AddSink attaches a sink that sees every drained change, removals included.
func (v *View) AddSink(s Sink) { v.sinks = append(v.sinks, s) }

// Drain runs the callbacks of every queued transition in order and
// returns how many were delivered.
func (v *View) Drain() int {
	n := len(v.queue)
	if n == 0 {
		return 0
	}
	// callbacks may read the view but never write it, so the queue is stable
	batch := v.queue
	v.queue = make([]Change, 0, cap(batch))
	for _, c := range batch {
		if c.Removed {
			v.forget(c.Entity)
		} else {
			for _, fn := range v.byField[fieldKey{c.Entity, c.Field}] {
				fn(c)
			}
			for _, fn := range v.byName[c.Field] {
				fn(c)
			}
		}
		for _, s := range v.sinks {
			s.Replicate(c)
		}
	}
	return n
}

// forget drops per-entity callbacks of a removed entity.
func (v *View) forget(id ecs.EntityID) {
	for k := range v.byField {
		if k.entity == id {
			delete(v.byField, k)
		}
	}
}

// Queued returns the number of transitions waiting for Drain.
func (v *View) Queued() int { return len(v.queue) }

// Entities returns the ids this view currently mirrors, in id order.
func (v *View) Entities() []ecs.EntityID {
	ids := make([]ecs.EntityID, 0, len(v.values))
	for id := range v.values {
		ids = append(ids, id)
	}
	ecs.SortIDs(ids)
	return ids
}

// Snapshot copies the mirrored block of one entity.
func (v *View) Snapshot(id ecs.EntityID) map[string]any {
	block, ok := v.values[id]
	if !ok {
		return nil
	}
	out := make(map[string]any, len(block))
	for k, val := range block {
		out[k] = val
	}
	return out
}
