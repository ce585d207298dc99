package system

import (
	"time"

	"github.com/dinoarena/server/internal/command"
	coresys "github.com/dinoarena/server/internal/core/system"
	"github.com/dinoarena/server/internal/net"
	"github.com/dinoarena/server/internal/net/packet"
	"go.uber.org/zap"
)

// Disconnector cleans up after a closed session (avatar, authority, view).
type Disconnector func(sess *net.Session)

// InputSystem accepts sessions, drains packet queues through the packet
// registry and then drains the command inbox. Phase 0 (Input).
type InputSystem struct {
	netServer    *net.Server
	registry     *packet.Registry
	store        *net.SessionStore
	channel      *command.Channel
	maxPerTick   int
	onDisconnect Disconnector
	log          *zap.Logger
}

func NewInputSystem(
	netServer *net.Server,
	registry *packet.Registry,
	store *net.SessionStore,
	channel *command.Channel,
	maxPerTick int,
	onDisconnect Disconnector,
	log *zap.Logger,
) *InputSystem {
	return &InputSystem{
		netServer:    netServer,
		registry:     registry,
		store:        store,
		channel:      channel,
		maxPerTick:   maxPerTick,
		onDisconnect: onDisconnect,
		log:          log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	if s.netServer != nil {
		s.acceptSessions()
	}

	var closed []*net.Session
	s.store.ForEach(func(sess *net.Session) {
		if sess.IsClosed() {
			// Packets sent just before the disconnect still count.
			s.drain(sess)
			closed = append(closed, sess)
			return
		}
		s.drain(sess)
	})
	for _, sess := range closed {
		if s.onDisconnect != nil {
			s.onDisconnect(sess)
		}
		s.store.Remove(sess.ID)
		if s.netServer != nil {
			s.netServer.NotifyDead(sess.ID)
		}
	}

	s.channel.Drain()
}

func (s *InputSystem) acceptSessions() {
	for {
		select {
		case sess := <-s.netServer.NewSessions():
			s.store.Add(sess)
		default:
			goto doneNew
		}
	}
doneNew:

	for {
		select {
		case id := <-s.netServer.DeadSessions():
			s.store.Remove(id)
		default:
			return
		}
	}
}

// drain dispatches up to maxPerTick packets of one session.
func (s *InputSystem) drain(sess *net.Session) {
	for i := 0; i < s.maxPerTick; i++ {
		select {
		case data := <-sess.InQueue:
			if err := s.registry.Dispatch(sess, sess.State(), data); err != nil {
				s.log.Debug("packet dispatch error",
					zap.Uint64("session", sess.ID),
					zap.Error(err),
				)
			}
		default:
			return
		}
	}
}

// SessionCount returns the current number of sessions.
func (s *InputSystem) SessionCount() int {
	return s.store.Len()
}
