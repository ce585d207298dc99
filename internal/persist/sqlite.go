package persist

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dinoarena/server/internal/config"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the embedded MatchStore.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
}

// OpenSQLite opens the database at cfg.DSN and migrates it.
func OpenSQLite(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under the persist phase.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	for _, p := range []string{
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite pragma: %w", err)
		}
	}
	if err := RunSQLiteMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info("opened sqlite match store", zap.String("dsn", cfg.DSN))
	return &SQLiteStore{db: db, log: log}, nil
}

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

func (s *SQLiteStore) CreateMatch(ctx context.Context, m MatchRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO matches (id, server_name, started_at) VALUES (?, ?, ?)`,
		m.ID, m.ServerName, fmtTime(m.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("create match: %w", err)
	}
	return nil
}

// InsertKills writes a batch of kills in a single transaction.
func (s *SQLiteStore) InsertKills(ctx context.Context, kills []KillRow) error {
	if len(kills) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("kill log begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO kill_log (match_id, tick, victim, victim_kind, killer, killer_kind, killed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("kill log prepare: %w", err)
	}
	defer stmt.Close()

	for _, k := range kills {
		if _, err := stmt.ExecContext(ctx,
			k.MatchID, int64(k.Tick), int64(k.Victim), k.VictimKind, int64(k.Killer), k.KillerKind, fmtTime(k.KilledAt),
		); err != nil {
			return fmt.Errorf("kill log insert: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) FinishMatch(ctx context.Context, id, winner, reason string, endTick uint64, endedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE matches SET winner = ?, reason = ?, end_tick = ?, ended_at = ? WHERE id = ?`,
		winner, reason, int64(endTick), fmtTime(endedAt), id,
	)
	if err != nil {
		return fmt.Errorf("finish match: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish match: %w", err)
	}
	return finished(id, n)
}

func (s *SQLiteStore) RecentMatches(ctx context.Context, limit int) ([]MatchRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, server_name, started_at, ended_at, winner, reason, end_tick
		 FROM matches ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent matches: %w", err)
	}
	defer rows.Close()

	var out []MatchRow
	for rows.Next() {
		var (
			m       MatchRow
			started string
			ended   sql.NullString
			endTick int64
		)
		if err := rows.Scan(&m.ID, &m.ServerName, &started, &ended, &m.Winner, &m.Reason, &endTick); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		if m.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("match %s started_at: %w", m.ID, err)
		}
		if ended.Valid {
			t, err := parseTime(ended.String)
			if err != nil {
				return nil, fmt.Errorf("match %s ended_at: %w", m.ID, err)
			}
			m.EndedAt = &t
		}
		m.EndTick = uint64(endTick)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Kills(ctx context.Context, matchID string) ([]KillRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT match_id, tick, victim, victim_kind, killer, killer_kind, killed_at
		 FROM kill_log WHERE match_id = ? ORDER BY tick, id`, matchID)
	if err != nil {
		return nil, fmt.Errorf("kills: %w", err)
	}
	defer rows.Close()

	var out []KillRow
	for rows.Next() {
		var (
			k        KillRow
			t, v, kl int64
			killedAt string
		)
		if err := rows.Scan(&k.MatchID, &t, &v, &k.VictimKind, &kl, &k.KillerKind, &killedAt); err != nil {
			return nil, fmt.Errorf("scan kill: %w", err)
		}
		if k.KilledAt, err = parseTime(killedAt); err != nil {
			return nil, fmt.Errorf("kill killed_at: %w", err)
		}
		k.Tick, k.Victim, k.Killer = uint64(t), uint64(v), uint64(kl)
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
