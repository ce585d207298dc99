package handler

import (
	"github.com/dinoarena/server/internal/net"
	"github.com/dinoarena/server/internal/net/packet"
)

// HandlePing processes C_PING: [client timestamp Q]. Replies S_PONG with the
// echoed timestamp and the server tick.
func HandlePing(sess *net.Session, r *packet.Reader, deps *Deps) {
	ts := r.ReadQ()
	w := packet.NewWriterWithOpcode(packet.S_PONG)
	w.WriteQ(ts)
	w.WriteQ(uint64(deps.World.Now()))
	sess.Send(w.Bytes())
}
