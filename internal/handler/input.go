package handler

import (
	"math"

	"github.com/dinoarena/server/internal/command"
	"github.com/dinoarena/server/internal/core/geom"
	"github.com/dinoarena/server/internal/net"
	"github.com/dinoarena/server/internal/net/packet"
	"github.com/dinoarena/server/internal/system"
	"go.uber.org/zap"
)

// HandleInput processes C_INPUT: [client tick Q][dx F][dy F][flags C].
// Only the avatar's input authority may steer it; the latest vector wins.
func HandleInput(sess *net.Session, r *packet.Reader, deps *Deps) {
	_ = r.ReadQ()
	dx := r.ReadF()
	dy := r.ReadF()
	flags := r.ReadC()
	if r.Short() {
		return
	}

	w := deps.World
	id := sess.Avatar
	if !w.IsActive(id) || !w.Auth.IsInputAuthority(id, sess.Peer) {
		deps.Log.Debug("input for unowned avatar dropped",
			zap.Stringer("peer", sess.Peer),
			zap.Stringer("entity", id),
		)
		return
	}
	m, ok := w.Movers.Get(id)
	if !ok {
		return
	}
	if !finite(dx) || !finite(dy) {
		dx, dy = 0, 0
	}
	m.Intent = geom.V(dx, dy)
	if m.Intent.LenSq() > 1 {
		m.Intent = m.Intent.Norm()
	}
	m.Running = flags&packet.InputRun != 0

	if flags&packet.InputAttack != 0 {
		cmd, _ := command.New(system.CmdAttack, id, sess.Peer, nil)
		_ = deps.Channel.Send(cmd)
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
