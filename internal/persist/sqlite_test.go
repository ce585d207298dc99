package persist

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dinoarena/server/internal/config"
	"go.uber.org/zap"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	cfg := config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "arena.db")}
	s, err := OpenSQLite(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteMatchLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := s.CreateMatch(ctx, MatchRow{ID: "m-1", ServerName: "test", StartedAt: start}); err != nil {
		t.Fatal(err)
	}
	kills := []KillRow{
		{MatchID: "m-1", Tick: 40, Victim: 7, VictimKind: "ankylo", Killer: 3, KillerKind: "dinosaur", KilledAt: start.Add(2 * time.Second)},
		{MatchID: "m-1", Tick: 90, Victim: 4, VictimKind: "hq", Killer: 3, KillerKind: "dinosaur", KilledAt: start.Add(5 * time.Second)},
	}
	if err := s.InsertKills(ctx, kills); err != nil {
		t.Fatal(err)
	}
	if err := s.FinishMatch(ctx, "m-1", "dinosaur", "hq_destroyed", 90, start.Add(5*time.Second)); err != nil {
		t.Fatal(err)
	}

	ms, err := s.RecentMatches(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ms) != 1 || ms[0].Winner != "dinosaur" || ms[0].EndTick != 90 || ms[0].EndedAt == nil {
		t.Fatalf("matches = %+v", ms)
	}
	if !ms[0].StartedAt.Equal(start) {
		t.Fatalf("started_at = %v", ms[0].StartedAt)
	}

	got, err := s.Kills(ctx, "m-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].VictimKind != "ankylo" || got[1].Tick != 90 {
		t.Fatalf("kills = %+v", got)
	}
}

func TestSQLiteKillBatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if err := s.CreateMatch(ctx, MatchRow{ID: "m-2", ServerName: "test", StartedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	// The second row references a missing match: the whole batch rolls back.
	batch := []KillRow{
		{MatchID: "m-2", Tick: 1, Victim: 1, VictimKind: "drone", KilledAt: time.Now()},
		{MatchID: "missing", Tick: 2, Victim: 2, VictimKind: "drone", KilledAt: time.Now()},
	}
	if err := s.InsertKills(ctx, batch); err == nil {
		t.Fatal("expected foreign key failure")
	}
	got, err := s.Kills(ctx, "m-2")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("partial batch committed: %+v", got)
	}
}

func TestFinishUnknownMatch(t *testing.T) {
	s := openTestStore(t)
	err := s.FinishMatch(context.Background(), "nope", "operator", "dinosaur_killed", 1, time.Now())
	if !errors.Is(err, ErrUnknownMatch) {
		t.Fatalf("err = %v", err)
	}
}

func TestFinishedRows(t *testing.T) {
	if err := finished("m-1", 1); err != nil {
		t.Fatalf("one row: %v", err)
	}
	if err := finished("m-1", 0); !errors.Is(err, ErrUnknownMatch) {
		t.Fatalf("no rows: %v", err)
	}
}

func TestOpenDisabled(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{}, zap.NewNop())
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v", err)
	}
}
