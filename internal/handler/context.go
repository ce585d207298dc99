package handler

import (
	"github.com/dinoarena/server/internal/authority"
	"github.com/dinoarena/server/internal/command"
	"github.com/dinoarena/server/internal/config"
	"github.com/dinoarena/server/internal/net"
	"github.com/dinoarena/server/internal/net/packet"
	"github.com/dinoarena/server/internal/system"
	"github.com/dinoarena/server/internal/world"
	"go.uber.org/zap"
)

// Deps holds shared dependencies injected into all packet handlers.
type Deps struct {
	Config   *config.Config
	Log      *zap.Logger
	World    *world.World
	Channel  *command.Channel
	Match    *system.MatchSystem
	Sessions *net.SessionStore
	Hub      *Hub
}

// RegisterAll registers all packet handlers into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	reg.Register(packet.C_HELLO,
		[]packet.SessionState{packet.StateHandshake},
		func(sess any, r *packet.Reader) {
			HandleHello(sess.(*net.Session), r, deps)
		},
	)

	joined := []packet.SessionState{packet.StateJoined}

	reg.Register(packet.C_INPUT, joined,
		func(sess any, r *packet.Reader) {
			HandleInput(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_COMMAND, joined,
		func(sess any, r *packet.Reader) {
			HandleCommand(sess.(*net.Session), r, deps)
		},
	)

	connected := []packet.SessionState{packet.StateHandshake, packet.StateJoined}

	reg.Register(packet.C_PING, connected,
		func(sess any, r *packet.Reader) {
			HandlePing(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_BYE, connected,
		func(sess any, r *packet.Reader) {
			HandleBye(sess.(*net.Session), r, deps)
		},
	)
}

// PeerFor maps a session id onto its peer id. Peer 1 is the host.
func PeerFor(sessionID uint64) authority.PeerID {
	return authority.PeerID(sessionID + 1)
}

func sendReject(sess *net.Session, code byte, msg string) {
	w := packet.NewWriterWithOpcode(packet.S_REJECT)
	w.WriteC(code)
	w.WriteS(msg)
	sess.Send(w.Bytes())
}
