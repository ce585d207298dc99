// Package journal records every dispatched command and every propagated
// replicated change, one zstd-compressed JSON line per tick, so a match can
// be inspected offline with cmd/replay.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dinoarena/server/internal/command"
	"github.com/dinoarena/server/internal/core/tick"
	"github.com/dinoarena/server/internal/replication"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

// Ext is the file extension of a journal.
const Ext = ".jsonl.zst"

var ErrClosed = errors.New("journal closed")

// CommandRecord is one dispatch outcome. Err is empty for accepted commands.
type CommandRecord struct {
	Command command.Command `json:"cmd"`
	Err     string          `json:"err,omitempty"`
}

// End closes the match.
type End struct {
	Winner string `json:"winner"`
	Reason string `json:"reason"`
}

// Entry is one journal line.
type Entry struct {
	Tick     tick.Tick            `json:"tick"`
	Match    string               `json:"match,omitempty"`
	Commands []CommandRecord      `json:"commands,omitempty"`
	Changes  []replication.Change `json:"changes,omitempty"`
	End      *End                 `json:"end,omitempty"`
}

func (e *Entry) empty() bool {
	return len(e.Commands) == 0 && len(e.Changes) == 0 && e.End == nil
}

// Writer buffers the records of the current tick and appends them as one
// line on Flush. Recording runs on the tick goroutine; Close may race with
// it on shutdown, hence the mutex.
type Writer struct {
	match string
	path  string
	log   *zap.Logger

	mu     sync.Mutex
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
	cur    Entry
	lines  int
	closed bool
}

// Create opens <dir>/<match>.jsonl.zst for writing.
func Create(dir, match string, log *zap.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal dir: %w", err)
	}
	path := filepath.Join(dir, match+Ext)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("journal encoder: %w", err)
	}
	log.Info("journal opened", zap.String("path", path))
	return &Writer{
		match: match,
		path:  path,
		log:   log,
		f:     f,
		enc:   enc,
		w:     bufio.NewWriterSize(enc, 64*1024),
	}, nil
}

func (j *Writer) Path() string { return j.path }

// RecordCommand implements command.Recorder. Records after Finish or Close
// are dropped.
func (j *Writer) RecordCommand(cmd command.Command, err error) {
	rec := CommandRecord{Command: cmd}
	if err != nil {
		rec.Err = err.Error()
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	j.cur.Commands = append(j.cur.Commands, rec)
}

// RecordChanges receives the batch propagated by the replication store.
func (j *Writer) RecordChanges(_ tick.Tick, changes []replication.Change) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	j.cur.Changes = append(j.cur.Changes, changes...)
}

// Flush writes the current tick's entry if it holds anything.
func (j *Writer) Flush(now tick.Tick) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.flushLocked(now)
}

func (j *Writer) flushLocked(now tick.Tick) error {
	if j.closed {
		return ErrClosed
	}
	if j.cur.empty() {
		return nil
	}
	j.cur.Tick = now
	if j.lines == 0 {
		j.cur.Match = j.match
	}
	b, err := json.Marshal(&j.cur)
	j.cur = Entry{}
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}
	if _, err := j.w.Write(b); err != nil {
		return err
	}
	if err := j.w.WriteByte('\n'); err != nil {
		return err
	}
	j.lines++
	return nil
}

// Finish writes the end record and closes the journal.
func (j *Writer) Finish(now tick.Tick, winner, reason string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cur.End = &End{Winner: winner, Reason: reason}
	if err := j.flushLocked(now); err != nil {
		return err
	}
	return j.closeLocked()
}

// Close flushes buffered lines and the zstd frame.
func (j *Writer) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closeLocked()
}

func (j *Writer) closeLocked() error {
	if j.closed {
		return nil
	}
	j.closed = true
	var first error
	if err := j.w.Flush(); err != nil {
		first = err
	}
	if err := j.enc.Close(); err != nil && first == nil {
		first = err
	}
	if err := j.f.Close(); err != nil && first == nil {
		first = err
	}
	j.log.Info("journal closed", zap.String("path", j.path), zap.Int("lines", j.lines))
	return first
}
