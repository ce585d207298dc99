package world

import "github.com/dinoarena/server/internal/core/ecs"

const (
	KindDinosaur   ecs.Kind = "dinosaur"
	KindOperator   ecs.Kind = "operator"
	KindDrone      ecs.Kind = "drone"
	KindBomb       ecs.Kind = "bomb"
	KindExplosion  ecs.Kind = "explosion"
	KindTurret     ecs.Kind = "turret"
	KindBullet     ecs.Kind = "bullet"
	KindHQ         ecs.Kind = "hq"
	KindAnkylo     ecs.Kind = "ankylo"
	KindPteranodon ecs.Kind = "pteranodon"
)

// Kinds converts template kind names.
func Kinds(names []string) []ecs.Kind {
	out := make([]ecs.Kind, len(names))
	for i, n := range names {
		out[i] = ecs.Kind(n)
	}
	return out
}

// HasKind reports whether k is in list.
func HasKind(list []ecs.Kind, k ecs.Kind) bool {
	for _, v := range list {
		if v == k {
			return true
		}
	}
	return false
}
