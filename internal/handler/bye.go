package handler

import (
	"github.com/dinoarena/server/internal/authority"
	"github.com/dinoarena/server/internal/net"
	"github.com/dinoarena/server/internal/net/packet"
	"go.uber.org/zap"
)

// HandleBye processes C_BYE. Cleanup happens in HandleDisconnect once the
// input system sees the closed session.
func HandleBye(sess *net.Session, _ *packet.Reader, deps *Deps) {
	deps.Log.Info("peer said goodbye", zap.Uint64("session", sess.ID), zap.String("name", sess.Name))
	sess.Close()
}

// HandleDisconnect removes a closed session's avatar, units and view.
// Runs on the game loop via InputSystem.
func HandleDisconnect(sess *net.Session, deps *Deps) {
	if sess.Peer == authority.NoPeer {
		return
	}
	deps.Hub.Detach(sess.Peer)
	deps.Match.Leave(sess.Peer)
}
