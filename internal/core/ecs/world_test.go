package ecs

import "testing"

func TestIDsNeverReusedWhileActive(t *testing.T) {
	w := NewWorld()
	seen := make(map[EntityID]bool)
	for i := 0; i < 100; i++ {
		id := w.CreateEntity()
		if id.IsZero() {
			t.Fatal("zero id handed out")
		}
		if seen[id] {
			t.Fatalf("id %s reused", id)
		}
		seen[id] = true
	}
}

func TestLifecycle(t *testing.T) {
	w := NewWorld()
	id := w.CreateEntity()
	if w.StateOf(id) != Active {
		t.Fatalf("state = %s, want Active", w.StateOf(id))
	}
	if !w.MarkForDestruction(id) {
		t.Fatal("mark failed")
	}
	if w.StateOf(id) != Despawning || w.IsActive(id) {
		t.Fatalf("state = %s, want Despawning", w.StateOf(id))
	}
	if w.MarkForDestruction(id) {
		t.Fatal("second mark accepted")
	}
	freed := w.FlushDestroyQueue()
	if len(freed) != 1 || freed[0] != id {
		t.Fatalf("freed = %v", freed)
	}
	if w.StateOf(id) != Freed || w.Alive(id) {
		t.Fatalf("state = %s, want Freed", w.StateOf(id))
	}

	next := w.CreateEntity()
	if next.Index() != id.Index() || next.Generation() == id.Generation() {
		t.Fatalf("recycled slot %s should bump generation of %s", next, id)
	}
	if w.StateOf(id) != Freed {
		t.Fatal("stale id resurrected by slot reuse")
	}
}

func TestFlushClearsRegisteredStores(t *testing.T) {
	type hp struct{ v int }
	w := NewWorld()
	store := NewStore[hp](w.Registry())
	id := w.CreateEntity()
	store.Set(id, &hp{v: 1})
	w.MarkForDestruction(id)
	w.FlushDestroyQueue()
	if store.Has(id) {
		t.Fatal("component survived destroy")
	}
}

func TestEachInIDOrder(t *testing.T) {
	w := NewWorld()
	store := NewPtrComponentStore[int]()
	var ids []EntityID
	for i := 0; i < 10; i++ {
		id := w.CreateEntity()
		ids = append(ids, id)
		v := i
		store.Set(id, &v)
	}
	var got []EntityID
	store.Each(func(id EntityID, _ *int) { got = append(got, id) })
	for i := range ids {
		if got[i] != ids[i] {
			t.Fatalf("order = %v, want %v", got, ids)
		}
	}
}
