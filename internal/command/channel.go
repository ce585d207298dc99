package command

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/dinoarena/server/internal/authority"
	"github.com/dinoarena/server/internal/core/ecs"
	"github.com/dinoarena/server/internal/core/tick"
	"go.uber.org/zap"
)

// Deliverer hands a command to a remote peer (its session outbox).
type Deliverer interface {
	Deliver(peer authority.PeerID, cmd Command)
}

// DeliverFunc adapts a function to Deliverer.
type DeliverFunc func(peer authority.PeerID, cmd Command)

func (f DeliverFunc) Deliver(peer authority.PeerID, cmd Command) { f(peer, cmd) }

// Peers lists the remote peers a RoleAll command fans out to.
type Peers interface {
	Peers() []authority.PeerID
}

// Recorder sees the outcome of every dispatched command (journal).
type Recorder interface {
	RecordCommand(cmd Command, err error)
}

// Liveness reports whether an entity still accepts commands.
type Liveness interface {
	IsActive(id ecs.EntityID) bool
}

type entry struct {
	rule    Rule
	handler Handler
}

// Stats counts dispatch outcomes since start.
type Stats struct {
	Handled   uint64
	Delivered uint64
	Dropped   uint64
	Rejected  uint64
	Failed    uint64
}

// Channel is the command boundary of one process. Send may be called from
// any goroutine; handlers only ever run on the goroutine calling Drain, or
// inside Send for the local short circuit, which is the tick goroutine.
type Channel struct {
	local authority.PeerID
	auth  *authority.Registry
	live  Liveness
	clock tick.Source
	log   *zap.Logger

	entries   map[string]entry
	deliverer Deliverer
	peers     Peers
	recorders []Recorder

	mu    sync.Mutex
	inbox []Command
	spare []Command
	seq   uint64

	stats Stats
}

func NewChannel(local authority.PeerID, auth *authority.Registry, live Liveness, clock tick.Source, log *zap.Logger) *Channel {
	return &Channel{
		local:   local,
		auth:    auth,
		live:    live,
		clock:   clock,
		log:     log,
		entries: make(map[string]entry, 32),
		inbox:   make([]Command, 0, 128),
		spare:   make([]Command, 0, 128),
	}
}

// SetDeliverer wires the outbound path to remote peers.
func (c *Channel) SetDeliverer(d Deliverer, peers Peers) {
	c.deliverer = d
	c.peers = peers
}

// AddRecorder adds an observer of dispatch outcomes.
func (c *Channel) AddRecorder(r Recorder) { c.recorders = append(c.recorders, r) }

// Register declares a command name with its authorization rule. The handler
// may be nil for commands this process only forwards to remote peers.
func (c *Channel) Register(name string, rule Rule, h Handler) error {
	if _, ok := c.entries[name]; ok {
		return fmt.Errorf("register %q: %w", name, ErrDuplicate)
	}
	switch rule.Target {
	case authority.RoleStateAuthority, authority.RoleInputAuthority, authority.RoleAll:
	default:
		return fmt.Errorf("register %q: invalid target role %s", name, rule.Target)
	}
	c.entries[name] = entry{rule: rule, handler: h}
	return nil
}

// Rule returns the authorization entry of a command name.
func (c *Channel) Rule(name string) (Rule, bool) {
	e, ok := c.entries[name]
	return e.rule, ok
}

// Names returns every registered command name, sorted.
func (c *Channel) Names() []string {
	out := make([]string, 0, len(c.entries))
	for n := range c.entries {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Send submits a command without waiting for its effect. When this process
// already holds state authority over the target and is itself the sender,
// the command bypasses the queue and is dispatched immediately; the checks
// and the handler are the same as for a queued command.
func (c *Channel) Send(cmd Command) error {
	if cmd.Version == 0 {
		cmd.Version = Version
	}
	if cmd.Source == c.local {
		if e, ok := c.entries[cmd.Name]; ok && e.rule.Target == authority.RoleStateAuthority &&
			c.auth.IsStateAuthority(cmd.Target, c.local) {
			c.mu.Lock()
			c.seq++
			cmd.Seq = c.seq
			c.mu.Unlock()
			cmd.Tick = c.clock.Now()
			return c.dispatch(cmd)
		}
	}
	c.mu.Lock()
	c.seq++
	cmd.Seq = c.seq
	c.inbox = append(c.inbox, cmd)
	c.mu.Unlock()
	return nil
}

// Drain dispatches every queued command in arrival order. Called once per
// tick at PhaseInput. Returns the number of commands taken from the queue.
func (c *Channel) Drain() int {
	c.mu.Lock()
	batch := c.inbox
	c.inbox = c.spare[:0]
	c.mu.Unlock()

	now := c.clock.Now()
	for i := range batch {
		batch[i].Tick = now
		_ = c.dispatch(batch[i])
	}
	n := len(batch)
	c.spare = batch[:0]
	return n
}

// Queued returns the number of commands waiting for Drain.
func (c *Channel) Queued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inbox)
}

func (c *Channel) Stats() Stats { return c.stats }

// dispatch is the single authorization boundary.
func (c *Channel) dispatch(cmd Command) error {
	err := c.route(cmd)
	for _, r := range c.recorders {
		r.RecordCommand(cmd, err)
	}
	return err
}

func (c *Channel) route(cmd Command) error {
	fields := func(err error) []zap.Field {
		return []zap.Field{
			zap.String("command", cmd.Name),
			zap.Stringer("entity", cmd.Target),
			zap.Stringer("peer", cmd.Source),
			zap.Error(err),
		}
	}

	if cmd.Version != Version {
		c.stats.Rejected++
		err := fmt.Errorf("%s v%d: %w", cmd.Name, cmd.Version, ErrVersion)
		c.log.Warn("command rejected", fields(err)...)
		return err
	}
	e, ok := c.entries[cmd.Name]
	if !ok {
		c.stats.Rejected++
		err := fmt.Errorf("%q: %w", cmd.Name, ErrUnknownCommand)
		c.log.Warn("command rejected", fields(err)...)
		return err
	}

	// Stale or unassigned targets are routine: drop without noise.
	a, assigned := c.auth.Get(cmd.Target)
	if !assigned || a.State == authority.NoPeer || !c.live.IsActive(cmd.Target) {
		c.stats.Dropped++
		err := fmt.Errorf("%s -> %s: %w", cmd.Name, cmd.Target, ErrStaleTarget)
		c.log.Debug("command dropped", fields(err)...)
		return err
	}

	role := c.auth.RoleOf(cmd.Target, cmd.Source)
	if !role.Has(e.rule.Sources) {
		c.stats.Rejected++
		err := fmt.Errorf("%s from %s (%s): %w", cmd.Name, cmd.Source, role, ErrNotAllowed)
		c.log.Warn("command rejected", fields(err)...)
		return err
	}

	switch e.rule.Target {
	case authority.RoleStateAuthority:
		return c.deliverTo(a.State, e, cmd)
	case authority.RoleInputAuthority:
		if a.Input == authority.NoPeer {
			c.stats.Dropped++
			err := fmt.Errorf("%s -> %s: %w", cmd.Name, cmd.Target, ErrStaleTarget)
			c.log.Debug("command dropped", fields(err)...)
			return err
		}
		return c.deliverTo(a.Input, e, cmd)
	default: // RoleAll
		var first error
		if e.handler != nil {
			first = c.invoke(e, cmd)
		}
		if c.peers != nil {
			for _, p := range c.peers.Peers() {
				if p != c.local {
					c.forward(p, cmd)
				}
			}
		}
		return first
	}
}

func (c *Channel) deliverTo(peer authority.PeerID, e entry, cmd Command) error {
	if peer == c.local {
		if e.handler == nil {
			return nil
		}
		return c.invoke(e, cmd)
	}
	c.forward(peer, cmd)
	return nil
}

func (c *Channel) forward(peer authority.PeerID, cmd Command) {
	if c.deliverer == nil {
		c.stats.Dropped++
		c.log.Debug("command has no route to peer",
			zap.String("command", cmd.Name),
			zap.Stringer("peer", peer),
		)
		return
	}
	c.stats.Delivered++
	c.deliverer.Deliver(peer, cmd)
}

// invoke runs a handler, recovering panics so one bad command cannot
// take down the tick.
func (c *Channel) invoke(e entry, cmd Command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.stats.Failed++
			c.log.Error("command handler panic",
				zap.String("command", cmd.Name),
				zap.Stringer("entity", cmd.Target),
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("%s: %w", cmd.Name, ErrHandlerPanic)
		}
	}()
	if err := e.handler(cmd); err != nil {
		c.stats.Failed++
		c.log.Debug("command handler failed",
			zap.String("command", cmd.Name),
			zap.Stringer("entity", cmd.Target),
			zap.Error(err),
		)
		return err
	}
	c.stats.Handled++
	return nil
}

// IsSoft reports whether err is a routine drop rather than a rejection.
func IsSoft(err error) bool {
	return errors.Is(err, ErrStaleTarget)
}
