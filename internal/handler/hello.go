package handler

import (
	"errors"

	"github.com/dinoarena/server/internal/authority"
	"github.com/dinoarena/server/internal/command"
	"github.com/dinoarena/server/internal/core/ecs"
	"github.com/dinoarena/server/internal/net"
	"github.com/dinoarena/server/internal/net/packet"
	"github.com/dinoarena/server/internal/system"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// HandleHello processes C_HELLO: [name S][role S][password S].
// On success the peer's avatar is spawned, S_WELCOME is sent and the
// session moves to Joined. Failures answer S_REJECT and leave the session
// in Handshake so the client may retry.
func HandleHello(sess *net.Session, r *packet.Reader, deps *Deps) {
	rawName := r.ReadS()
	role := r.ReadS()
	password := r.ReadS()
	if r.Short() {
		deps.Log.Warn("malformed hello, closing", zap.Uint64("session", sess.ID))
		sess.Close()
		return
	}

	if !checkPassword(deps.Config.Session.PasswordHash, password) {
		deps.Log.Warn("join rejected: bad password",
			zap.Uint64("session", sess.ID),
			zap.String("ip", sess.IP),
		)
		sendReject(sess, packet.RejectBadPassword, "wrong password")
		return
	}

	name, err := NormalizeName(rawName, deps.Config.Session.MaxNameWidth)
	if err != nil {
		sendReject(sess, packet.RejectBadName, err.Error())
		return
	}

	peer := PeerFor(sess.ID)
	avatar, err := deps.Match.Join(peer, name, role)
	if err != nil {
		deps.Log.Info("join rejected",
			zap.Uint64("session", sess.ID),
			zap.String("name", name),
			zap.String("role", role),
			zap.Error(err),
		)
		sendReject(sess, rejectCode(err), err.Error())
		return
	}

	deps.Sessions.Bind(sess, peer)
	sess.Name = name
	sess.Role = role
	sess.Avatar = avatar

	sendWelcome(sess, deps, peer, avatar)
	deps.Hub.Attach(sess)
	sess.SetState(packet.StateJoined)
}

// sendWelcome: [peer D][avatar Q][tick Q][tick rate ms D][command version H][match S][role S]
// [reconcile snap F][reconcile blend F]
func sendWelcome(sess *net.Session, deps *Deps, peer authority.PeerID, avatar ecs.EntityID) {
	w := packet.NewWriterWithOpcode(packet.S_WELCOME)
	w.WriteD(int32(peer))
	w.WriteQ(uint64(avatar))
	w.WriteQ(uint64(deps.World.Now()))
	w.WriteD(int32(deps.Config.Network.TickRate.Milliseconds()))
	w.WriteH(command.Version)
	w.WriteS(deps.Match.ID())
	w.WriteS(sess.Role)
	w.WriteF(deps.Config.Gameplay.ReconcileSnap)
	w.WriteF(deps.Config.Gameplay.ReconcileBlend)
	sess.Send(w.Bytes())
}

// checkPassword accepts anything when no hash is configured.
func checkPassword(hash, password string) bool {
	if hash == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func rejectCode(err error) byte {
	switch {
	case errors.Is(err, system.ErrRoleFull):
		return packet.RejectRoleFull
	case errors.Is(err, system.ErrMatchEnded):
		return packet.RejectMatchOver
	default:
		return packet.RejectBadRole
	}
}
