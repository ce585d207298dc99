package data

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestShippedDataLoads(t *testing.T) {
	units, err := LoadUnitTable(filepath.Join("..", "..", "data", "units.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	arena, err := LoadArena(filepath.Join("..", "..", "data", "arena.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if err := arena.Check(units); err != nil {
		t.Fatal(err)
	}

	dino := units.Get("dinosaur")
	if dino == nil || dino.AttackWindow != 700*time.Millisecond || dino.Radius != 2 || dino.Damage != 10 {
		t.Fatalf("dinosaur = %+v", dino)
	}
	bomb := units.Get("bomb")
	if bomb == nil || !bomb.ImmuneKind("drone") || bomb.ImmuneKind("dinosaur") {
		t.Fatalf("bomb = %+v", bomb)
	}
	if units.Get("hq").MaxHP != 100 {
		t.Fatal("hq max hp")
	}
}

func TestSchemaRejectsUnknownField(t *testing.T) {
	_, err := ParseUnitTable([]byte("units:\n  - kind: drone\n    max_hp: 30\n    wings: 4\n"))
	if err == nil {
		t.Fatal("expected schema error")
	}
}

func TestSchemaRejectsBadDuration(t *testing.T) {
	_, err := ParseUnitTable([]byte("units:\n  - kind: bullet\n    lifetime: three seconds\n"))
	if err == nil || !strings.Contains(err.Error(), "validate units") {
		t.Fatalf("err = %v", err)
	}
}

func TestDuplicateKind(t *testing.T) {
	_, err := ParseUnitTable([]byte("units:\n  - kind: hq\n  - kind: hq\n"))
	if err == nil {
		t.Fatal("expected duplicate error")
	}
}

func TestArenaCheckMissingTemplate(t *testing.T) {
	units, err := ParseUnitTable([]byte("units:\n  - kind: hq\n    max_hp: 100\n"))
	if err != nil {
		t.Fatal(err)
	}
	arena, err := ParseArena([]byte(`
arena:
  dinosaur_spawn: {x: 0, y: 0}
  operator_spawn: {x: 1, y: 1}
  structures:
    - {kind: hq, pos: {x: 5, y: 5}}
  camps:
    - {kind: raptor, home: {x: 2, y: 2}}
`))
	if err != nil {
		t.Fatal(err)
	}
	if err := arena.Check(units); err == nil {
		t.Fatal("missing raptor template not reported")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := LoadUnitTable(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error")
	}
}
