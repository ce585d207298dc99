package ecs

// Each2 iterates over entities that have both component A and B, in id order.
// It walks the smaller store and probes the larger one.
func Each2[A, B any](sa *PtrComponentStore[A], sb *PtrComponentStore[B], fn func(EntityID, *A, *B)) {
	var ids []EntityID
	if sa.Len() <= sb.Len() {
		ids = sa.IDs()
	} else {
		ids = sb.IDs()
	}
	for _, id := range ids {
		a, ok := sa.data[id]
		if !ok {
			continue
		}
		b, ok := sb.data[id]
		if !ok {
			continue
		}
		fn(id, a, b)
	}
}
