package authority

import (
	"errors"
	"testing"

	"github.com/dinoarena/server/internal/core/ecs"
)

func newIDs(n int) []ecs.EntityID {
	pool := ecs.NewEntityPool()
	ids := make([]ecs.EntityID, n)
	for i := range ids {
		ids[i] = pool.Create()
	}
	return ids
}

func TestAssignOnce(t *testing.T) {
	r := NewRegistry()
	id := newIDs(1)[0]
	if err := r.Assign(id, Host, 2); err != nil {
		t.Fatal(err)
	}
	if err := r.Assign(id, 3, 3); !errors.Is(err, ErrAlreadyAssigned) {
		t.Fatalf("second assign err = %v", err)
	}
	if !r.IsStateAuthority(id, Host) || r.IsStateAuthority(id, 3) {
		t.Fatal("state authority changed by rejected assign")
	}
}

func TestAtMostOneStateAuthority(t *testing.T) {
	r := NewRegistry()
	ids := newIDs(4)
	peers := []PeerID{Host, 2, 3, 4}
	for i, id := range ids {
		if err := r.Assign(id, peers[i], peers[(i+1)%len(peers)]); err != nil {
			t.Fatal(err)
		}
	}
	for _, id := range ids {
		n := 0
		for _, p := range peers {
			if r.IsStateAuthority(id, p) {
				n++
			}
		}
		if n != 1 {
			t.Fatalf("%s has %d state authorities", id, n)
		}
	}
}

func TestRoleOf(t *testing.T) {
	r := NewRegistry()
	ids := newIDs(2)
	_ = r.Assign(ids[0], Host, 2)
	_ = r.Assign(ids[1], Host, Host)

	tests := []struct {
		id   ecs.EntityID
		peer PeerID
		want Role
	}{
		{ids[0], Host, RoleStateAuthority},
		{ids[0], 2, RoleInputAuthority},
		{ids[0], 5, RoleProxy},
		{ids[1], Host, RoleStateAuthority | RoleInputAuthority},
		{ids[0], NoPeer, 0},
	}
	for _, tt := range tests {
		if got := r.RoleOf(tt.id, tt.peer); got != tt.want {
			t.Errorf("RoleOf(%s, %s) = %s, want %s", tt.id, tt.peer, got, tt.want)
		}
	}
}

func TestCheck(t *testing.T) {
	r := NewRegistry()
	ids := newIDs(2)
	_ = r.Assign(ids[0], Host, 2)

	if err := r.Check(ids[0], Host); err != nil {
		t.Fatalf("host check: %v", err)
	}
	if err := r.Check(ids[0], 2); !errors.Is(err, ErrNotStateAuthority) {
		t.Fatalf("input authority check err = %v", err)
	}
	if err := r.Check(ids[1], Host); !errors.Is(err, ErrUnassigned) {
		t.Fatalf("unassigned check err = %v", err)
	}
}

func TestTransferInput(t *testing.T) {
	r := NewRegistry()
	id := newIDs(1)[0]
	_ = r.Assign(id, Host, NoPeer)

	if err := r.TransferInput(id, 2, 2); !errors.Is(err, ErrNotStateAuthority) {
		t.Fatalf("transfer by non-authority err = %v", err)
	}
	if err := r.TransferInput(id, Host, 2); err != nil {
		t.Fatal(err)
	}
	if !r.IsInputAuthority(id, 2) {
		t.Fatal("input authority not transferred")
	}
}

func TestDropPeer(t *testing.T) {
	r := NewRegistry()
	ids := newIDs(3)
	_ = r.Assign(ids[0], Host, 2)
	_ = r.Assign(ids[1], 2, 2)
	_ = r.Assign(ids[2], Host, 3)

	inert := r.DropPeer(2)
	if len(inert) != 1 || inert[0] != ids[1] {
		t.Fatalf("inert = %v, want [%s]", inert, ids[1])
	}
	if r.InputAuthority(ids[0]) != NoPeer {
		t.Fatal("input authority survived drop")
	}
	if err := r.Check(ids[1], 2); !errors.Is(err, ErrInert) {
		t.Fatalf("inert check err = %v", err)
	}
	if r.InputAuthority(ids[2]) != 3 {
		t.Fatal("unrelated entity touched")
	}

	if err := r.Reassign(ids[1], Host); err != nil {
		t.Fatal(err)
	}
	if err := r.Reassign(ids[0], 4); !errors.Is(err, ErrAlreadyAssigned) {
		t.Fatalf("reassign of live entity err = %v", err)
	}
	if err := r.Check(ids[1], Host); err != nil {
		t.Fatalf("reassigned check: %v", err)
	}
}

func TestControlledBy(t *testing.T) {
	r := NewRegistry()
	ids := newIDs(3)
	_ = r.Assign(ids[2], Host, 2)
	_ = r.Assign(ids[0], Host, 2)
	_ = r.Assign(ids[1], Host, 3)
	got := r.ControlledBy(2)
	if len(got) != 2 || got[0] != ids[0] || got[1] != ids[2] {
		t.Fatalf("ControlledBy = %v", got)
	}
}
