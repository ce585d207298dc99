// Package command carries named, versioned requests from a peer to the
// authority of a target entity. Every command name is declared once with the
// roles allowed to send it and the role it is delivered to; the channel
// checks that table in one place before any handler runs.
package command

import (
	"errors"
	"fmt"

	"github.com/dinoarena/server/internal/authority"
	"github.com/dinoarena/server/internal/core/ecs"
	"github.com/dinoarena/server/internal/core/tick"
	"github.com/vmihailenco/msgpack/v5"
)

// Version is the command wire version this build speaks.
const Version uint16 = 1

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrNotAllowed     = errors.New("sender role not allowed for command")
	ErrStaleTarget    = errors.New("command target is gone or unassigned")
	ErrVersion        = errors.New("command version mismatch")
	ErrDuplicate      = errors.New("command already registered")
	ErrHandlerPanic   = errors.New("command handler panicked")
)

// Command is one request. Source is filled in by the transport from the
// session, never taken from the payload.
type Command struct {
	Version uint16           `json:"v" msgpack:"v"`
	Name    string           `json:"name" msgpack:"name"`
	Target  ecs.EntityID     `json:"target" msgpack:"target"`
	Args    []byte           `json:"args,omitempty" msgpack:"args,omitempty"`
	Source  authority.PeerID `json:"source" msgpack:"source"`
	Seq     uint64           `json:"seq" msgpack:"seq"`
	Tick    tick.Tick        `json:"tick" msgpack:"tick"`
}

// New builds a command with msgpack-encoded args. A nil args value sends none.
func New(name string, target ecs.EntityID, source authority.PeerID, args any) (Command, error) {
	cmd := Command{Version: Version, Name: name, Target: target, Source: source}
	if args == nil {
		return cmd, nil
	}
	b, err := msgpack.Marshal(args)
	if err != nil {
		return Command{}, fmt.Errorf("encode %s args: %w", name, err)
	}
	cmd.Args = b
	return cmd, nil
}

// Decode unpacks the args into v.
func (c Command) Decode(v any) error {
	if len(c.Args) == 0 {
		return nil
	}
	if err := msgpack.Unmarshal(c.Args, v); err != nil {
		return fmt.Errorf("decode %s args: %w", c.Name, err)
	}
	return nil
}

// Rule is the authorization entry of one command name.
type Rule struct {
	// Sources is the set of roles (relative to the target) allowed to send.
	Sources authority.Role
	// Target is the role the command is delivered to: RoleStateAuthority,
	// RoleInputAuthority or RoleAll.
	Target authority.Role
}

// Handler runs a delivered command on this process's tick goroutine.
type Handler func(cmd Command) error
