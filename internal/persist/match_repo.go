package persist

import (
	"context"
	"fmt"
	"time"
)

// MatchRepo is the postgres MatchStore.
type MatchRepo struct {
	db *DB
}

func NewMatchRepo(db *DB) *MatchRepo {
	return &MatchRepo{db: db}
}

func (r *MatchRepo) CreateMatch(ctx context.Context, m MatchRow) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO matches (id, server_name, started_at) VALUES ($1, $2, $3)`,
		m.ID, m.ServerName, m.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("create match: %w", err)
	}
	return nil
}

// InsertKills atomically writes a batch of kills in a single transaction.
func (r *MatchRepo) InsertKills(ctx context.Context, kills []KillRow) error {
	if len(kills) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("kill log begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, k := range kills {
		if _, err := tx.Exec(ctx,
			`INSERT INTO kill_log (match_id, tick, victim, victim_kind, killer, killer_kind, killed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			k.MatchID, int64(k.Tick), int64(k.Victim), k.VictimKind, int64(k.Killer), k.KillerKind, k.KilledAt,
		); err != nil {
			return fmt.Errorf("kill log insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *MatchRepo) FinishMatch(ctx context.Context, id, winner, reason string, endTick uint64, endedAt time.Time) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE matches SET winner = $2, reason = $3, end_tick = $4, ended_at = $5 WHERE id = $1`,
		id, winner, reason, int64(endTick), endedAt,
	)
	if err != nil {
		return fmt.Errorf("finish match: %w", err)
	}
	return finished(id, tag.RowsAffected())
}

func (r *MatchRepo) RecentMatches(ctx context.Context, limit int) ([]MatchRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id::text, server_name, started_at, ended_at, winner, reason, end_tick
		 FROM matches ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent matches: %w", err)
	}
	defer rows.Close()

	var out []MatchRow
	for rows.Next() {
		var m MatchRow
		var endTick int64
		if err := rows.Scan(&m.ID, &m.ServerName, &m.StartedAt, &m.EndedAt, &m.Winner, &m.Reason, &endTick); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.EndTick = uint64(endTick)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MatchRepo) Kills(ctx context.Context, matchID string) ([]KillRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT match_id::text, tick, victim, victim_kind, killer, killer_kind, killed_at
		 FROM kill_log WHERE match_id = $1 ORDER BY tick, id`, matchID)
	if err != nil {
		return nil, fmt.Errorf("kills: %w", err)
	}
	defer rows.Close()

	var out []KillRow
	for rows.Next() {
		var k KillRow
		var t, v, kl int64
		if err := rows.Scan(&k.MatchID, &t, &v, &k.VictimKind, &kl, &k.KillerKind, &k.KilledAt); err != nil {
			return nil, fmt.Errorf("scan kill: %w", err)
		}
		k.Tick, k.Victim, k.Killer = uint64(t), uint64(v), uint64(kl)
		out = append(out, k)
	}
	return out, rows.Err()
}

func (r *MatchRepo) Close() error {
	r.db.Close()
	return nil
}
