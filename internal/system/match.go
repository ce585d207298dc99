package system

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dinoarena/server/internal/authority"
	"github.com/dinoarena/server/internal/command"
	"github.com/dinoarena/server/internal/core/ecs"
	"github.com/dinoarena/server/internal/core/event"
	coresys "github.com/dinoarena/server/internal/core/system"
	"github.com/dinoarena/server/internal/core/tick"
	"github.com/dinoarena/server/internal/data"
	"github.com/dinoarena/server/internal/health"
	"github.com/dinoarena/server/internal/world"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Roles a peer can join as.
const (
	RoleDinosaur = "dinosaur"
	RoleOperator = "operator"
)

// Outcomes.
const (
	ReasonHQDestroyed  = "hq_destroyed"
	ReasonDinosaurDown = "dinosaur_killed"
)

var (
	ErrRoleFull    = errors.New("role is full")
	ErrUnknownRole = errors.New("unknown role")
)

// Kill is one terminal transition recorded for the match log.
type Kill struct {
	Victim     ecs.EntityID
	VictimKind ecs.Kind
	Killer     ecs.EntityID
	KillerKind ecs.Kind
	Tick       tick.Tick
	At         time.Time
}

// Result is the final state of a match.
type Result struct {
	MatchID string
	Winner  string
	Reason  string
	Tick    tick.Tick
	Started time.Time
	Ended   time.Time
}

// MatchOptions sizes the roster.
type MatchOptions struct {
	Arena        *data.Arena
	MaxOperators int
	MaxDinosaurs int
	DroneSlots   int
}

// MatchSystem owns the roster and the win condition: the HQ falling wins
// the match for the dinosaur, the dinosaur falling wins it for the
// operator. PhasePostUpdate.
type MatchSystem struct {
	w       *world.World
	prefabs *world.Prefabs
	ch      *command.Channel
	opts    MatchOptions

	id      string
	started time.Time
	avatars map[authority.PeerID]ecs.EntityID
	roles   map[authority.PeerID]string
	kills   []Kill
	ended   *Result
	pending *Result // set by the death listener, published in Update
	log     *zap.Logger
}

func NewMatchSystem(w *world.World, prefabs *world.Prefabs, res *health.Resolver, ch *command.Channel, opts MatchOptions, log *zap.Logger) (*MatchSystem, error) {
	s := &MatchSystem{
		w:       w,
		prefabs: prefabs,
		ch:      ch,
		opts:    opts,
		id:      uuid.NewString(),
		started: time.Now(),
		avatars: make(map[authority.PeerID]ecs.EntityID),
		roles:   make(map[authority.PeerID]string),
		log:     log,
	}
	rule := command.Rule{Sources: authority.RoleStateAuthority, Target: authority.RoleInputAuthority}
	if err := ch.Register(CmdShowResult, rule, s.handleShowResult); err != nil {
		return nil, err
	}
	res.OnDeath(s.onDeath)
	return s, nil
}

func (s *MatchSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *MatchSystem) ID() string         { return s.id }
func (s *MatchSystem) Started() time.Time { return s.started }

// Start places the arena structures.
func (s *MatchSystem) Start() error {
	for _, e := range s.opts.Arena.Structures {
		spec, err := s.prefabs.Structure(s.w, e)
		if err != nil {
			return err
		}
		if _, err := s.w.Spawn(spec); err != nil {
			return err
		}
	}
	s.log.Info("match started", zap.String("match", s.id), zap.Int("structures", len(s.opts.Arena.Structures)))
	return nil
}

// Join spawns the avatar of a new peer. The host stays state authority;
// the peer becomes input authority of its avatar.
func (s *MatchSystem) Join(peer authority.PeerID, name, role string) (ecs.EntityID, error) {
	if s.ended != nil {
		return 0, ErrMatchEnded
	}
	if _, ok := s.avatars[peer]; ok {
		return 0, fmt.Errorf("join %s: %w", peer, authority.ErrAlreadyAssigned)
	}
	var spec world.SpawnSpec
	switch role {
	case RoleDinosaur:
		if s.count(role) >= s.opts.MaxDinosaurs {
			return 0, fmt.Errorf("join %s as %s: %w", peer, role, ErrRoleFull)
		}
		spec = s.prefabs.Dinosaur(s.w, peer, name, s.opts.Arena.DinosaurSpawn)
	case RoleOperator:
		if s.count(role) >= s.opts.MaxOperators {
			return 0, fmt.Errorf("join %s as %s: %w", peer, role, ErrRoleFull)
		}
		spec = s.prefabs.Operator(s.w, peer, name, s.opts.Arena.OperatorSpawn, s.opts.DroneSlots)
	default:
		return 0, fmt.Errorf("join as %q: %w", role, ErrUnknownRole)
	}
	id, err := s.w.Spawn(spec)
	if err != nil {
		return 0, err
	}
	s.avatars[peer] = id
	s.roles[peer] = role
	event.Emit(s.w.Bus, event.PeerJoined{Peer: peer, Name: name, Role: role, Avatar: id})
	s.log.Info("peer joined",
		zap.Stringer("peer", peer),
		zap.String("name", name),
		zap.String("role", role),
		zap.Stringer("avatar", id),
	)
	return id, nil
}

// Leave removes a peer: its avatar and every unit it commands are
// despawned, then its authority is dropped.
func (s *MatchSystem) Leave(peer authority.PeerID) {
	w := s.w
	if _, ok := s.avatars[peer]; !ok {
		return
	}
	for _, id := range w.Auth.ControlledBy(peer) {
		if w.IsActive(id) {
			_ = w.Despawn(w.Local(), id)
		}
	}
	w.Auth.DropPeer(peer)
	delete(s.avatars, peer)
	delete(s.roles, peer)
	event.Emit(w.Bus, event.PeerLeft{Peer: peer})
	s.log.Info("peer left", zap.Stringer("peer", peer))
}

// Avatar returns the avatar of a peer.
func (s *MatchSystem) Avatar(peer authority.PeerID) (ecs.EntityID, bool) {
	id, ok := s.avatars[peer]
	return id, ok
}

func (s *MatchSystem) count(role string) int {
	n := 0
	for _, r := range s.roles {
		if r == role {
			n++
		}
	}
	return n
}

func (s *MatchSystem) onDeath(d health.Death) {
	s.kills = append(s.kills, Kill{
		Victim: d.Victim, VictimKind: d.VictimKind,
		Killer: d.Killer, KillerKind: d.KillerKind,
		Tick: d.Tick, At: time.Now(),
	})
	if s.ended != nil || s.pending != nil {
		return
	}
	switch {
	case s.w.Goals.Has(d.Victim):
		s.pending = &Result{Winner: RoleDinosaur, Reason: ReasonHQDestroyed}
	case d.VictimKind == world.KindDinosaur:
		s.pending = &Result{Winner: RoleOperator, Reason: ReasonDinosaurDown}
	}
}

func (s *MatchSystem) Update(_ time.Duration) {
	if s.pending == nil {
		return
	}
	r := s.pending
	s.pending = nil
	r.MatchID = s.id
	r.Tick = s.w.Now()
	r.Started = s.started
	r.Ended = time.Now()
	s.ended = r

	for _, peer := range sortedPeers(s.avatars) {
		id := s.avatars[peer]
		outcome := "lose"
		if s.roles[peer] == r.Winner {
			outcome = "win"
		}
		_ = world.Set(s.w, id, world.FieldResult, outcome)
		cmd, err := command.New(CmdShowResult, id, s.w.Local(), ResultArgs{Result: outcome, Winner: r.Winner, Reason: r.Reason})
		if err != nil {
			s.log.Error("encode result", zap.Error(err))
			continue
		}
		if err := s.ch.Send(cmd); err != nil && !command.IsSoft(err) {
			s.log.Warn("result not delivered", zap.Stringer("peer", peer), zap.Error(err))
		}
	}
	event.Emit(s.w.Bus, event.MatchEnded{MatchID: s.id, Winner: r.Winner, Reason: r.Reason, Tick: r.Tick})
	s.log.Info("match ended",
		zap.String("match", s.id),
		zap.String("winner", r.Winner),
		zap.String("reason", r.Reason),
		zap.Uint64("tick", uint64(r.Tick)),
	)
}

// handleShowResult runs when the result is addressed to an avatar the host
// itself drives; remote peers get it over the wire.
func (s *MatchSystem) handleShowResult(cmd command.Command) error {
	var args ResultArgs
	if err := cmd.Decode(&args); err != nil {
		return err
	}
	s.log.Info("result", zap.Stringer("avatar", cmd.Target), zap.String("result", args.Result))
	return nil
}

// Result returns the final result once the match has ended.
func (s *MatchSystem) Result() (Result, bool) {
	if s.ended == nil {
		return Result{}, false
	}
	return *s.ended, true
}

// TakeKills returns and clears the buffered kill log.
func (s *MatchSystem) TakeKills() []Kill {
	out := s.kills
	s.kills = nil
	return out
}

func sortedPeers(m map[authority.PeerID]ecs.EntityID) []authority.PeerID {
	out := make([]authority.PeerID, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
