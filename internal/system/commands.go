package system

import (
	"errors"

	"github.com/dinoarena/server/internal/authority"
	"github.com/dinoarena/server/internal/command"
	"github.com/dinoarena/server/internal/core/geom"
)

// Command names on the wire.
const (
	CmdAttack       = "Attack"
	CmdRequestSpawn = "RequestSpawn"
	CmdOrderMove    = "OrderMove"
	CmdOrderAction  = "OrderAction"
	CmdShowResult   = "ShowResult"
)

// Input authority asks the state authority to act.
var inputToState = command.Rule{
	Sources: authority.RoleInputAuthority,
	Target:  authority.RoleStateAuthority,
}

var (
	ErrBusy       = errors.New("action already in progress")
	ErrCooldown   = errors.New("cooldown running")
	ErrBadSlot    = errors.New("no such drone slot")
	ErrSlotInUse  = errors.New("drone slot already occupied")
	ErrEmptySlot  = errors.New("drone slot is empty")
	ErrWrongKind  = errors.New("command sent to the wrong kind of entity")
	ErrMatchEnded = errors.New("match has ended")
)

// SlotArgs addresses one drone bay slot.
type SlotArgs struct {
	Slot int `msgpack:"slot"`
}

// MoveArgs orders a drone to a point.
type MoveArgs struct {
	Point geom.Vec2 `msgpack:"point"`
}

// ResultArgs tells a peer how the match ended for it.
type ResultArgs struct {
	Result string `msgpack:"result"` // "win" or "lose"
	Winner string `msgpack:"winner"`
	Reason string `msgpack:"reason"`
}

func clampArena(p geom.Vec2, half float64) geom.Vec2 {
	if half <= 0 {
		return p
	}
	p.X = min(max(p.X, -half), half)
	p.Y = min(max(p.Y, -half), half)
	return p
}
