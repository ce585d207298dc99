// Package persist stores finished matches and their kill logs in
// PostgreSQL (pgx) or SQLite (modernc), migrated with goose.
package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dinoarena/server/internal/config"
	"go.uber.org/zap"
)

var (
	// ErrDisabled is returned by Open when no driver is configured.
	ErrDisabled = errors.New("match store disabled")

	// ErrUnknownMatch is returned by FinishMatch when no row has the id.
	ErrUnknownMatch = errors.New("unknown match")
)

// finished maps the rows touched by a FinishMatch update to its result, so
// both backends report a missing match the same way.
func finished(id string, rows int64) error {
	if rows == 0 {
		return fmt.Errorf("finish match %s: %w", id, ErrUnknownMatch)
	}
	return nil
}

// MatchRow is one match.
type MatchRow struct {
	ID         string     `json:"id"`
	ServerName string     `json:"server"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Winner     string     `json:"winner"`
	Reason     string     `json:"reason"`
	EndTick    uint64     `json:"end_tick"`
}

// KillRow is one terminal transition.
type KillRow struct {
	MatchID    string    `json:"match_id"`
	Tick       uint64    `json:"tick"`
	Victim     uint64    `json:"victim"`
	VictimKind string    `json:"victim_kind"`
	Killer     uint64    `json:"killer"`
	KillerKind string    `json:"killer_kind"`
	KilledAt   time.Time `json:"killed_at"`
}

// MatchStore is implemented by both backends.
type MatchStore interface {
	CreateMatch(ctx context.Context, m MatchRow) error
	// InsertKills writes a batch in one transaction.
	InsertKills(ctx context.Context, kills []KillRow) error
	FinishMatch(ctx context.Context, id, winner, reason string, endTick uint64, endedAt time.Time) error
	RecentMatches(ctx context.Context, limit int) ([]MatchRow, error)
	Kills(ctx context.Context, matchID string) ([]KillRow, error)
	Close() error
}

// Open connects the configured backend and applies pending migrations.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (MatchStore, error) {
	switch cfg.Driver {
	case "":
		return nil, ErrDisabled
	case "postgres":
		db, err := NewDB(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		if err := RunMigrations(ctx, db.Pool); err != nil {
			db.Close()
			return nil, err
		}
		return NewMatchRepo(db), nil
	case "sqlite":
		return OpenSQLite(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
