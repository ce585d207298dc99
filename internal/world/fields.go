package world

import (
	"github.com/dinoarena/server/internal/core/geom"
	"github.com/dinoarena/server/internal/replication"
)

// Replicated fields shared by every kind. Names are the wire keys.
var (
	FieldKind      = replication.NewField[string]("kind")
	FieldPos       = replication.NewField[geom.Vec2]("pos")
	FieldHP        = replication.NewField[int32]("hp")
	FieldMaxHP     = replication.NewField[int32]("max_hp")
	FieldDead      = replication.NewField[bool]("dead")
	FieldWalking   = replication.NewField[bool]("walking")
	FieldRunning   = replication.NewField[bool]("running")
	FieldAttacking = replication.NewField[bool]("attacking")
	FieldLevel     = replication.NewField[int32]("level")
	FieldExp       = replication.NewField[int32]("exp")
	// FieldReadyAt is the tick a cooldown ends; UIs derive remaining time.
	FieldReadyAt = replication.NewField[uint64]("ready_at")
	FieldResult  = replication.NewField[string]("result")
	FieldName    = replication.NewField[string]("name")
)
