package replication

import "github.com/dinoarena/server/internal/core/geom"

// Reconcile moves a locally predicted position toward the authoritative one.
// Divergence beyond threshold snaps immediately to bound the error; smaller
// divergence blends by the given factor. Reports whether it snapped.
func Reconcile(predicted, authoritative geom.Vec2, threshold, blend float64) (geom.Vec2, bool) {
	if predicted.DistSq(authoritative) > threshold*threshold {
		return authoritative, true
	}
	return predicted.Lerp(authoritative, blend), false
}
