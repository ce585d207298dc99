package system

import (
	"github.com/dinoarena/server/internal/core/ecs"
	"github.com/dinoarena/server/internal/core/tick"
	"github.com/dinoarena/server/internal/replication"
	"github.com/dinoarena/server/internal/world"
	"go.uber.org/zap"
)

// HostView is the host's own mirror of the replicated state. The host holds
// state authority, yet its reactions run from the same propagated
// transitions every remote peer drains.
type HostView struct {
	view *replication.View
	log  *zap.Logger
}

// NewHostView attaches a view for the local peer and registers the host
// reactions on it.
func NewHostView(w *world.World, log *zap.Logger) *HostView {
	h := &HostView{view: replication.NewView(w.Local()), log: log}
	w.State.Attach(h.view)
	replication.OnField(h.view, world.FieldDead, h.onDead)
	replication.OnField(h.view, world.FieldLevel, h.onLevel)
	replication.OnField(h.view, world.FieldResult, h.onResult)
	return h
}

func (h *HostView) View() *replication.View { return h.view }

// Sync implements Endpoint.
func (h *HostView) Sync(_ *replication.Store, _ tick.Tick) {
	h.view.Drain()
}

func (h *HostView) onDead(id ecs.EntityID, dead bool) {
	if dead {
		h.log.Debug("host observed death", zap.Stringer("entity", id))
	}
}

func (h *HostView) onLevel(id ecs.EntityID, level int32) {
	if level > 1 {
		h.log.Debug("host observed level up", zap.Stringer("entity", id), zap.Int32("level", level))
	}
}

func (h *HostView) onResult(id ecs.EntityID, result string) {
	if result != "" {
		h.log.Info("host observed result", zap.Stringer("entity", id), zap.String("result", result))
	}
}
