package ecs

import "fmt"

// State is an entity's lifecycle position:
// Unspawned -> Active -> Despawning -> Freed.
type State int

const (
	Unspawned State = iota
	Active
	Despawning
	Freed
)

func (s State) String() string {
	switch s {
	case Unspawned:
		return "Unspawned"
	case Active:
		return "Active"
	case Despawning:
		return "Despawning"
	case Freed:
		return "Freed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// World is the top-level ECS container. It owns the entity pool, the component
// registry, and a deferred destruction queue flushed by CleanupSystem each tick.
type World struct {
	pool         *EntityPool
	registry     *Registry
	states       map[EntityID]State
	destroyQueue []EntityID
}

func NewWorld() *World {
	return &World{
		pool:         NewEntityPool(),
		registry:     NewRegistry(),
		states:       make(map[EntityID]State, 256),
		destroyQueue: make([]EntityID, 0, 64),
	}
}

func (w *World) Pool() *EntityPool   { return w.pool }
func (w *World) Registry() *Registry { return w.registry }

// CreateEntity allocates an id and marks it Active.
func (w *World) CreateEntity() EntityID {
	id := w.pool.Create()
	w.states[id] = Active
	return id
}

// Alive is true while the id is allocated (Active or Despawning).
func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

// StateOf reports the lifecycle state. Ids that were never allocated report
// Unspawned; ids whose slot has been recycled report Freed.
func (w *World) StateOf(id EntityID) State {
	if st, ok := w.states[id]; ok {
		return st
	}
	if id.IsZero() || id.Index() >= w.pool.nextIndex {
		return Unspawned
	}
	if w.pool.generations[id.Index()] > id.Generation() {
		return Freed
	}
	return Unspawned
}

// IsActive is the liveness check used at every mutation boundary.
func (w *World) IsActive(id EntityID) bool {
	return w.states[id] == Active
}

// MarkForDestruction moves an Active entity to Despawning and queues it for
// end-of-tick cleanup. Returns false if the entity was not Active.
func (w *World) MarkForDestruction(id EntityID) bool {
	if w.states[id] != Active {
		return false
	}
	w.states[id] = Despawning
	w.destroyQueue = append(w.destroyQueue, id)
	return true
}

// FlushDestroyQueue destroys all queued entities and clears their components.
// Called by CleanupSystem at the end of each tick. Returns the freed ids.
func (w *World) FlushDestroyQueue() []EntityID {
	if len(w.destroyQueue) == 0 {
		return nil
	}
	freed := make([]EntityID, len(w.destroyQueue))
	copy(freed, w.destroyQueue)
	for _, id := range w.destroyQueue {
		w.registry.RemoveAll(id)
		w.pool.Destroy(id)
		delete(w.states, id)
	}
	w.destroyQueue = w.destroyQueue[:0]
	return freed
}

// PendingDestroy returns the number of entities waiting for cleanup.
func (w *World) PendingDestroy() int { return len(w.destroyQueue) }
