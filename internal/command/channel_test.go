package command

import (
	"errors"
	"testing"

	"github.com/dinoarena/server/internal/authority"
	"github.com/dinoarena/server/internal/core/ecs"
	"github.com/dinoarena/server/internal/core/tick"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	operator authority.PeerID = 2
	intruder authority.PeerID = 3
)

type moveArgs struct {
	X, Y float64
}

type fixture struct {
	world *ecs.World
	auth  *authority.Registry
	ch    *Channel
	logs  *observer.ObservedLogs
	drone ecs.EntityID
	moves []moveArgs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	f := &fixture{world: ecs.NewWorld(), auth: authority.NewRegistry(), logs: logs}
	f.ch = NewChannel(authority.Host, f.auth, f.world, &tick.Manual{T: 3}, zap.New(core))
	f.drone = f.world.CreateEntity()
	if err := f.auth.Assign(f.drone, authority.Host, operator); err != nil {
		t.Fatal(err)
	}
	err := f.ch.Register("OrderMove", Rule{Sources: authority.RoleInputAuthority, Target: authority.RoleStateAuthority},
		func(cmd Command) error {
			var a moveArgs
			if err := cmd.Decode(&a); err != nil {
				return err
			}
			f.moves = append(f.moves, a)
			return nil
		})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func mustNew(t *testing.T, name string, target ecs.EntityID, src authority.PeerID, args any) Command {
	t.Helper()
	cmd, err := New(name, target, src, args)
	if err != nil {
		t.Fatal(err)
	}
	return cmd
}

func TestInputAuthorityCommandIsQueuedThenHandled(t *testing.T) {
	f := newFixture(t)
	if err := f.ch.Send(mustNew(t, "OrderMove", f.drone, operator, moveArgs{X: 4, Y: 2})); err != nil {
		t.Fatal(err)
	}
	if len(f.moves) != 0 {
		t.Fatal("remote command handled before drain")
	}
	if n := f.ch.Drain(); n != 1 {
		t.Fatalf("drained %d, want 1", n)
	}
	if len(f.moves) != 1 || f.moves[0] != (moveArgs{X: 4, Y: 2}) {
		t.Fatalf("moves = %+v", f.moves)
	}
}

func TestCommandFromNonInputAuthorityIsDropped(t *testing.T) {
	f := newFixture(t)
	var got error
	f.ch.AddRecorder(recorderFunc(func(_ Command, err error) { got = err }))

	_ = f.ch.Send(mustNew(t, "OrderMove", f.drone, intruder, moveArgs{X: 9}))
	f.ch.Drain()

	if len(f.moves) != 0 {
		t.Fatalf("handler ran for unauthorized sender: %+v", f.moves)
	}
	if !errors.Is(got, ErrNotAllowed) {
		t.Fatalf("outcome = %v, want ErrNotAllowed", got)
	}
	if f.logs.FilterMessage("command rejected").Len() != 1 {
		t.Fatal("rejection not logged")
	}
	if f.ch.Stats().Rejected != 1 {
		t.Fatalf("stats = %+v", f.ch.Stats())
	}
}

func TestStaleTargetDroppedSilently(t *testing.T) {
	f := newFixture(t)
	_ = f.ch.Send(mustNew(t, "OrderMove", f.drone, operator, moveArgs{X: 1}))
	f.world.MarkForDestruction(f.drone)
	f.ch.Drain()
	if len(f.moves) != 0 {
		t.Fatal("handler ran for despawning target")
	}
	if f.logs.FilterLevelExact(zapcore.WarnLevel).Len() != 0 {
		t.Fatal("stale target should not warn")
	}
	if f.ch.Stats().Dropped != 1 {
		t.Fatalf("stats = %+v", f.ch.Stats())
	}
}

func TestUnassignedTargetDropped(t *testing.T) {
	f := newFixture(t)
	pending := f.world.CreateEntity()
	var got error
	f.ch.AddRecorder(recorderFunc(func(_ Command, err error) { got = err }))
	_ = f.ch.Send(mustNew(t, "OrderMove", pending, operator, nil))
	f.ch.Drain()
	if !IsSoft(got) {
		t.Fatalf("outcome = %v, want soft drop", got)
	}
}

func TestLocalShortCircuitMatchesRemotePath(t *testing.T) {
	f := newFixture(t)
	hostUnit := f.world.CreateEntity()
	if err := f.auth.Assign(hostUnit, authority.Host, authority.Host); err != nil {
		t.Fatal(err)
	}

	// local: handled inside Send, nothing queued
	if err := f.ch.Send(mustNew(t, "OrderMove", hostUnit, authority.Host, moveArgs{X: 1, Y: 1})); err != nil {
		t.Fatal(err)
	}
	if f.ch.Queued() != 0 || len(f.moves) != 1 {
		t.Fatalf("queued = %d, moves = %d; want 0, 1", f.ch.Queued(), len(f.moves))
	}

	// remote: same args through the queue end in the same handler state
	_ = f.ch.Send(mustNew(t, "OrderMove", f.drone, operator, moveArgs{X: 1, Y: 1}))
	f.ch.Drain()
	if len(f.moves) != 2 || f.moves[0] != f.moves[1] {
		t.Fatalf("moves = %+v", f.moves)
	}
}

func TestLocalSendStillChecksRole(t *testing.T) {
	f := newFixture(t)
	// host is state authority of the drone but not its input authority
	err := f.ch.Send(mustNew(t, "OrderMove", f.drone, authority.Host, moveArgs{}))
	if !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("err = %v, want ErrNotAllowed", err)
	}
	if len(f.moves) != 0 {
		t.Fatal("handler ran")
	}
}

func TestVersionMismatchRejected(t *testing.T) {
	f := newFixture(t)
	cmd := mustNew(t, "OrderMove", f.drone, operator, moveArgs{})
	cmd.Version = Version + 1
	_ = f.ch.Send(cmd)
	f.ch.Drain()
	if len(f.moves) != 0 {
		t.Fatal("handler ran for wrong version")
	}
}

func TestUnknownCommandRejected(t *testing.T) {
	f := newFixture(t)
	var got error
	f.ch.AddRecorder(recorderFunc(func(_ Command, err error) { got = err }))
	_ = f.ch.Send(Command{Name: "Teleport", Target: f.drone, Source: operator})
	f.ch.Drain()
	if !errors.Is(got, ErrUnknownCommand) {
		t.Fatalf("outcome = %v", got)
	}
}

func TestDeliveryToInputAuthority(t *testing.T) {
	f := newFixture(t)
	if err := f.ch.Register("ShowResult", Rule{Sources: authority.RoleStateAuthority, Target: authority.RoleInputAuthority}, nil); err != nil {
		t.Fatal(err)
	}
	var delivered []authority.PeerID
	f.ch.SetDeliverer(DeliverFunc(func(p authority.PeerID, _ Command) { delivered = append(delivered, p) }), nil)

	_ = f.ch.Send(mustNew(t, "ShowResult", f.drone, authority.Host, map[string]string{"result": "win"}))
	f.ch.Drain()
	if len(delivered) != 1 || delivered[0] != operator {
		t.Fatalf("delivered = %v, want [%s]", delivered, operator)
	}
}

func TestBroadcastFansOut(t *testing.T) {
	f := newFixture(t)
	local := 0
	if err := f.ch.Register("Explode", Rule{Sources: authority.RoleStateAuthority, Target: authority.RoleAll},
		func(Command) error { local++; return nil }); err != nil {
		t.Fatal(err)
	}
	var delivered []authority.PeerID
	f.ch.SetDeliverer(
		DeliverFunc(func(p authority.PeerID, _ Command) { delivered = append(delivered, p) }),
		peerList{authority.Host, operator, intruder},
	)
	_ = f.ch.Send(mustNew(t, "Explode", f.drone, authority.Host, nil))
	f.ch.Drain()
	if local != 1 || len(delivered) != 2 {
		t.Fatalf("local = %d, delivered = %v", local, delivered)
	}
}

func TestHandlerPanicRecovered(t *testing.T) {
	f := newFixture(t)
	if err := f.ch.Register("Boom", Rule{Sources: authority.RoleInputAuthority, Target: authority.RoleStateAuthority},
		func(Command) error { panic("boom") }); err != nil {
		t.Fatal(err)
	}
	var got error
	f.ch.AddRecorder(recorderFunc(func(_ Command, err error) { got = err }))
	_ = f.ch.Send(mustNew(t, "Boom", f.drone, operator, nil))
	f.ch.Drain()
	if !errors.Is(got, ErrHandlerPanic) {
		t.Fatalf("outcome = %v", got)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	f := newFixture(t)
	err := f.ch.Register("OrderMove", Rule{Sources: authority.RoleInputAuthority, Target: authority.RoleStateAuthority}, nil)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v", err)
	}
}

func TestFIFOPerSender(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		_ = f.ch.Send(mustNew(t, "OrderMove", f.drone, operator, moveArgs{X: float64(i)}))
	}
	f.ch.Drain()
	for i, m := range f.moves {
		if m.X != float64(i) {
			t.Fatalf("moves out of order: %+v", f.moves)
		}
	}
}

type recorderFunc func(Command, error)

func (f recorderFunc) RecordCommand(cmd Command, err error) { f(cmd, err) }

type peerList []authority.PeerID

func (p peerList) Peers() []authority.PeerID { return p }
