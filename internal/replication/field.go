// Package replication holds per-entity replicated fields. Values are written
// only by the entity's state authority into the Store and propagated, once
// per tick and in write order, to every peer's View.
package replication

import (
	"github.com/dinoarena/server/internal/core/ecs"
	"github.com/dinoarena/server/internal/core/tick"
)

// Field is a typed key for a replicated value.
type Field[T comparable] struct {
	Name string
}

func NewField[T comparable](name string) Field[T] {
	return Field[T]{Name: name}
}

// Change is one propagated write. Removed marks the end of an entity's block.
type Change struct {
	Seq     uint64       `json:"seq" msgpack:"seq"`
	Tick    tick.Tick    `json:"tick" msgpack:"tick"`
	Entity  ecs.EntityID `json:"entity" msgpack:"entity"`
	Field   string       `json:"field,omitempty" msgpack:"field,omitempty"`
	Value   any          `json:"value,omitempty" msgpack:"value,omitempty"`
	Removed bool         `json:"removed,omitempty" msgpack:"removed,omitempty"`
}

// Value pairs a field name with an initial value for Store.Init.
type Value struct {
	Field string
	Value any
}

// V builds an initial value for a typed field.
func V[T comparable](f Field[T], v T) Value {
	return Value{Field: f.Name, Value: v}
}
