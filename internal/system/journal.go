package system

import (
	"time"

	coresys "github.com/dinoarena/server/internal/core/system"
	"github.com/dinoarena/server/internal/journal"
	"go.uber.org/zap"
)

// JournalSystem appends the tick's commands and changes to the journal and
// closes it with the result once the match has ended. Phase 5 (Persist).
type JournalSystem struct {
	j     *journal.Writer
	match *MatchSystem
	done  bool
	log   *zap.Logger
}

func NewJournalSystem(j *journal.Writer, match *MatchSystem, log *zap.Logger) *JournalSystem {
	return &JournalSystem{j: j, match: match, log: log}
}

func (s *JournalSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *JournalSystem) Update(_ time.Duration) {
	if s.done {
		return
	}
	now := s.match.w.Now()
	if r, ended := s.match.Result(); ended {
		s.done = true
		if err := s.j.Finish(now, r.Winner, r.Reason); err != nil {
			s.log.Error("journal finish failed", zap.Error(err))
		}
		return
	}
	if err := s.j.Flush(now); err != nil {
		s.log.Error("journal write failed, disabling journal", zap.Error(err))
		s.done = true
		_ = s.j.Close()
	}
}

// Close writes what is buffered and closes the file. Safe after Finish.
func (s *JournalSystem) Close() {
	if !s.done {
		_ = s.j.Flush(s.match.w.Now())
		s.done = true
	}
	if err := s.j.Close(); err != nil {
		s.log.Error("journal close failed", zap.Error(err))
	}
}
