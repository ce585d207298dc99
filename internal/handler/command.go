package handler

import (
	"github.com/dinoarena/server/internal/command"
	"github.com/dinoarena/server/internal/core/ecs"
	"github.com/dinoarena/server/internal/net"
	"github.com/dinoarena/server/internal/net/packet"
)

// HandleCommand processes C_COMMAND: [version H][name S][target Q][args blob].
// The source is always the session's peer. The command is queued for the
// next drain; a rejection comes back as S_REJECT through the hub.
func HandleCommand(sess *net.Session, r *packet.Reader, deps *Deps) {
	version := r.ReadH()
	name := r.ReadS()
	target := r.ReadQ()
	args := r.ReadBlob()
	if r.Short() {
		sendReject(sess, packet.RejectCommand, "malformed command")
		return
	}
	_ = deps.Channel.Send(command.Command{
		Version: version,
		Name:    name,
		Target:  ecs.EntityID(target),
		Args:    args,
		Source:  sess.Peer,
	})
}
