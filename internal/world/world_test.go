package world

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dinoarena/server/internal/authority"
	"github.com/dinoarena/server/internal/core/ecs"
	"github.com/dinoarena/server/internal/core/event"
	"github.com/dinoarena/server/internal/core/geom"
	"github.com/dinoarena/server/internal/core/tick"
	"github.com/dinoarena/server/internal/data"
	"github.com/dinoarena/server/internal/replication"
	"go.uber.org/zap"
)

func newWorld(t *testing.T) (*World, *tick.Manual) {
	t.Helper()
	clock := &tick.Manual{T: 1}
	return New(authority.Host, clock, 4, zap.NewNop()), clock
}

func TestSpawnInitializesHealth(t *testing.T) {
	w, _ := newWorld(t)
	id, err := w.Spawn(SpawnSpec{Kind: KindHQ, Pos: geom.V(1, 2), State: authority.Host, MaxHP: 100})
	if err != nil {
		t.Fatal(err)
	}
	if w.ECS.StateOf(id) != ecs.Active {
		t.Fatalf("state = %s", w.ECS.StateOf(id))
	}
	if hp := Get(w, id, FieldHP); hp != 100 {
		t.Fatalf("hp = %d, want 100", hp)
	}
	if !w.Damageables.Has(id) {
		t.Fatal("not damageable")
	}
	if !w.Auth.IsStateAuthority(id, authority.Host) {
		t.Fatal("authority not assigned")
	}
}

func TestSpawnWithoutStateAuthority(t *testing.T) {
	w, _ := newWorld(t)
	if _, err := w.Spawn(SpawnSpec{Kind: KindHQ}); !errors.Is(err, ErrNoState) {
		t.Fatalf("err = %v", err)
	}
}

func TestDespawnLifecycle(t *testing.T) {
	w, _ := newWorld(t)
	id, _ := w.Spawn(SpawnSpec{Kind: KindBullet, State: authority.Host, Input: 2})

	var hooked []ecs.EntityID
	w.OnDespawn(func(id ecs.EntityID, kind ecs.Kind) {
		if kind != KindBullet {
			t.Errorf("hook kind = %s", kind)
		}
		hooked = append(hooked, id)
	})

	// input authority may not despawn
	if err := w.Despawn(2, id); !errors.Is(err, authority.ErrNotStateAuthority) {
		t.Fatalf("despawn by input authority err = %v", err)
	}
	if err := w.Despawn(authority.Host, id); err != nil {
		t.Fatal(err)
	}
	if w.ECS.StateOf(id) != ecs.Despawning {
		t.Fatalf("state = %s, want Despawning", w.ECS.StateOf(id))
	}
	if len(hooked) != 1 {
		t.Fatalf("hooks ran %d times", len(hooked))
	}
	// writes and second despawn are no-ops
	if err := Set(w, id, FieldPos, geom.V(5, 5)); err == nil {
		t.Fatal("write to despawning entity accepted")
	}
	if err := w.Despawn(authority.Host, id); !errors.Is(err, ErrNotActive) {
		t.Fatalf("second despawn err = %v", err)
	}
	if len(hooked) != 1 {
		t.Fatal("hooks ran twice")
	}

	freed := w.Flush()
	if len(freed) != 1 || w.ECS.StateOf(id) != ecs.Freed {
		t.Fatalf("freed = %v state = %s", freed, w.ECS.StateOf(id))
	}
	if w.KindOf(id) != "" || w.Transforms.Has(id) || w.State.Has(id) || w.Auth.Len() != 0 {
		t.Fatal("freed entity left data behind")
	}
}

func TestSpawnAndDespawnEvents(t *testing.T) {
	w, _ := newWorld(t)
	var spawned, despawned int
	event.Subscribe(w.Bus, func(event.EntitySpawned) { spawned++ })
	event.Subscribe(w.Bus, func(event.EntityDespawned) { despawned++ })
	id, _ := w.Spawn(SpawnSpec{Kind: KindBomb, State: authority.Host})
	_ = w.Despawn(authority.Host, id)
	w.Bus.SwapBuffers()
	w.Bus.DispatchAll()
	if spawned != 1 || despawned != 1 {
		t.Fatalf("spawned = %d despawned = %d", spawned, despawned)
	}
}

func TestNearbyOrderedAndFiltered(t *testing.T) {
	w, _ := newWorld(t)
	far, _ := w.Spawn(SpawnSpec{Kind: KindAnkylo, Pos: geom.V(3, 0), State: authority.Host})
	near, _ := w.Spawn(SpawnSpec{Kind: KindAnkylo, Pos: geom.V(1, 0), State: authority.Host})
	drone, _ := w.Spawn(SpawnSpec{Kind: KindDrone, Pos: geom.V(0.5, 0), State: authority.Host})
	_, _ = w.Spawn(SpawnSpec{Kind: KindAnkylo, Pos: geom.V(30, 30), State: authority.Host})

	got := w.Nearby(geom.V(0, 0), 4, nil)
	want := []ecs.EntityID{drone, near, far}
	if len(got) != len(want) {
		t.Fatalf("Nearby = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Nearby = %v, want %v", got, want)
		}
	}

	got = w.Nearby(geom.V(0, 0), 4, OfKinds(KindAnkylo))
	if len(got) != 2 || got[0] != near {
		t.Fatalf("filtered Nearby = %v", got)
	}

	_ = w.Despawn(authority.Host, near)
	if got := w.Nearby(geom.V(0, 0), 4, OfKinds(KindAnkylo)); len(got) != 1 || got[0] != far {
		t.Fatalf("despawning entity still found: %v", got)
	}
}

func TestMoveToReindexes(t *testing.T) {
	w, _ := newWorld(t)
	id, _ := w.Spawn(SpawnSpec{Kind: KindDrone, Pos: geom.V(0, 0), State: authority.Host})
	if err := w.MoveTo(id, geom.V(40, 40)); err != nil {
		t.Fatal(err)
	}
	if got := w.Nearby(geom.V(0, 0), 5, nil); len(got) != 0 {
		t.Fatalf("old cell still indexed: %v", got)
	}
	if got := w.Nearby(geom.V(40, 40), 1, nil); len(got) != 1 {
		t.Fatalf("new cell not indexed: %v", got)
	}
	if p := Get(w, id, FieldPos); p != geom.V(40, 40) {
		t.Fatalf("replicated pos = %v", p)
	}
}

func TestByKind(t *testing.T) {
	w, _ := newWorld(t)
	a, _ := w.Spawn(SpawnSpec{Kind: KindTurret, State: authority.Host})
	b, _ := w.Spawn(SpawnSpec{Kind: KindTurret, State: authority.Host})
	_, _ = w.Spawn(SpawnSpec{Kind: KindHQ, State: authority.Host})
	got := w.ByKind(KindTurret)
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("ByKind = %v", got)
	}
}

func TestGridNegativeCoordinates(t *testing.T) {
	g := NewGrid(4)
	id := ecs.NewEntityID(1, 0)
	g.Add(id, geom.V(-0.5, -0.5))
	if c := g.Candidates(geom.V(0.1, 0.1), 0.5); len(c) != 1 {
		t.Fatalf("candidates = %v", c)
	}
	g.Remove(id)
	if g.Len() != 0 {
		t.Fatal("grid not empty")
	}
}

func TestPrefabsFromShippedTemplates(t *testing.T) {
	units, err := data.LoadUnitTable(filepath.Join("..", "..", "data", "units.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	p, err := NewPrefabs(units, 50*time.Millisecond, authority.Host)
	if err != nil {
		t.Fatal(err)
	}
	w, _ := newWorld(t)
	dino, err := w.Spawn(p.Dinosaur(w, 2, "rex", geom.V(0, 0)))
	if err != nil {
		t.Fatal(err)
	}
	m, ok := w.Melees.Get(dino)
	if !ok || m.Window != 14 || m.Damage != 10 {
		t.Fatalf("melee = %+v", m)
	}
	if !w.Auth.IsInputAuthority(dino, 2) {
		t.Fatal("dinosaur input authority")
	}
	if name, _ := replication.Get(w.State, dino, FieldName); name != "rex" {
		t.Fatalf("name = %q", name)
	}

	turret, _ := w.Spawn(p.Turret(w, geom.V(5, 5)))
	tc, _ := w.Turrets.Get(turret)
	if tc.Interval != 20 || tc.Range != 20 || !HasKind(tc.Targets, KindDinosaur) {
		t.Fatalf("turret = %+v", tc)
	}
}
