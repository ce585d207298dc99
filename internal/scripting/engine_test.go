package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(filepath.Join("..", "..", "scripts"), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(e.Close)
	return e
}

func TestLevelCurve(t *testing.T) {
	e := newEngine(t)
	tests := []struct {
		exp  int32
		want int32
	}{
		{0, 1}, {99, 1}, {100, 2}, {199, 2}, {200, 3}, {5000, 3},
	}
	for _, tt := range tests {
		if got := e.LevelFor(tt.exp); got != tt.want {
			t.Errorf("LevelFor(%d) = %d, want %d", tt.exp, got, tt.want)
		}
	}
	if e.MaxLevel() != 3 {
		t.Fatalf("MaxLevel = %d", e.MaxLevel())
	}
}

func TestStatsDoublePerLevel(t *testing.T) {
	e := newEngine(t)
	base := Stats{Speed: 5, Damage: 10, MaxHP: 200}
	tests := []struct {
		level int32
		want  Stats
	}{
		{1, base},
		{2, Stats{Speed: 10, Damage: 20, MaxHP: 400}},
		{3, Stats{Speed: 20, Damage: 40, MaxHP: 800}},
	}
	for _, tt := range tests {
		if got := e.StatsFor(tt.level, base); got != tt.want {
			t.Errorf("StatsFor(%d) = %+v, want %+v", tt.level, got, tt.want)
		}
	}
}

func TestMissingFunctionRejected(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "only.lua"), []byte("function level_for(e) return 1 end"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewEngine(dir, zap.NewNop()); err == nil {
		t.Fatal("expected error for missing formulas")
	}
}
