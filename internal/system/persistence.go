package system

import (
	"context"
	"time"

	coresys "github.com/dinoarena/server/internal/core/system"
	"github.com/dinoarena/server/internal/persist"
	"go.uber.org/zap"
)

// PersistenceSystem writes the match row on start, the buffered kill log
// every interval ticks, and the result once the match has ended.
// Phase 5 (Persist).
type PersistenceSystem struct {
	match      *MatchSystem
	store      persist.MatchStore
	serverName string
	log        *zap.Logger
	tickCount  int
	interval   int // flush kills every N ticks

	created  bool
	finished bool
}

// NewPersistenceSystem returns a system that only drains the kill buffer
// when store is nil.
func NewPersistenceSystem(match *MatchSystem, store persist.MatchStore, serverName string, intervalTicks int, log *zap.Logger) *PersistenceSystem {
	if intervalTicks < 1 {
		intervalTicks = 1
	}
	return &PersistenceSystem{
		match:      match,
		store:      store,
		serverName: serverName,
		log:        log,
		interval:   intervalTicks,
	}
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(_ time.Duration) {
	if !s.created {
		s.createMatch()
	}
	_, ended := s.match.Result()
	s.tickCount++
	if s.tickCount < s.interval && !ended {
		return
	}
	s.tickCount = 0
	s.save()
}

// Flush writes everything still buffered. Called on graceful shutdown.
func (s *PersistenceSystem) Flush() {
	if !s.created {
		s.createMatch()
	}
	s.save()
}

func (s *PersistenceSystem) createMatch() {
	s.created = true
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	row := persist.MatchRow{ID: s.match.ID(), ServerName: s.serverName, StartedAt: s.match.Started()}
	if err := s.store.CreateMatch(ctx, row); err != nil {
		s.log.Error("create match row failed", zap.String("match", row.ID), zap.Error(err))
	}
}

func (s *PersistenceSystem) save() {
	kills := s.match.TakeKills()
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(kills) > 0 {
		rows := make([]persist.KillRow, len(kills))
		for i, k := range kills {
			rows[i] = persist.KillRow{
				MatchID:    s.match.ID(),
				Tick:       uint64(k.Tick),
				Victim:     uint64(k.Victim),
				VictimKind: string(k.VictimKind),
				Killer:     uint64(k.Killer),
				KillerKind: string(k.KillerKind),
				KilledAt:   k.At,
			}
		}
		if err := s.store.InsertKills(ctx, rows); err != nil {
			s.log.Error("save kill log failed", zap.Int("kills", len(rows)), zap.Error(err))
		} else {
			s.log.Debug("kill log saved", zap.Int("kills", len(rows)))
		}
	}

	r, ended := s.match.Result()
	if !ended || s.finished {
		return
	}
	s.finished = true
	if err := s.store.FinishMatch(ctx, r.MatchID, r.Winner, r.Reason, uint64(r.Tick), r.Ended); err != nil {
		s.log.Error("finish match row failed", zap.String("match", r.MatchID), zap.Error(err))
		return
	}
	s.log.Info("match saved", zap.String("match", r.MatchID), zap.String("winner", r.Winner))
}
