package journal

import (
	"errors"
	"io"
	"testing"

	"github.com/dinoarena/server/internal/command"
	"github.com/dinoarena/server/internal/replication"
	"go.uber.org/zap"
)

func TestWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	w, err := Create(dir, "m-1", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	w.RecordCommand(command.Command{Version: 1, Name: "Attack", Target: 5, Source: 2}, nil)
	w.RecordCommand(command.Command{Version: 1, Name: "Attack", Target: 5, Source: 3}, command.ErrNotAllowed)
	w.RecordChanges(1, []replication.Change{{Seq: 1, Tick: 1, Entity: 5, Field: "attacking", Value: true}})
	if err := w.Flush(1); err != nil {
		t.Fatal(err)
	}
	// empty ticks write nothing
	if err := w.Flush(2); err != nil {
		t.Fatal(err)
	}
	w.RecordChanges(3, []replication.Change{{Seq: 2, Tick: 3, Entity: 5, Removed: true}})
	if err := w.Finish(3, "dinosaur", "hq_destroyed"); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(4); !errors.Is(err, ErrClosed) {
		t.Fatalf("flush after finish: %v", err)
	}

	files, err := List(dir)
	if err != nil || len(files) != 1 {
		t.Fatalf("list = %v, %v", files, err)
	}
	r, err := Open(files[0])
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	first, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if first.Tick != 1 || first.Match != "m-1" || len(first.Commands) != 2 || len(first.Changes) != 1 {
		t.Fatalf("first = %+v", first)
	}
	if first.Commands[0].Err != "" || first.Commands[1].Err == "" {
		t.Fatalf("command outcomes = %+v", first.Commands)
	}
	if first.Changes[0].Value != true {
		t.Fatalf("value = %#v", first.Changes[0].Value)
	}

	last, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if last.Tick != 3 || last.Match != "" || last.End == nil || last.End.Winner != "dinosaur" || !last.Changes[0].Removed {
		t.Fatalf("last = %+v", last)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("want EOF, got %v", err)
	}
}

func TestRecordsDroppedAfterClose(t *testing.T) {
	tests := []struct {
		name  string
		close func(w *Writer) error
	}{
		{"finish", func(w *Writer) error { return w.Finish(1, "operator", "dinosaur_down") }},
		{"close", func(w *Writer) error { return w.Close() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := Create(t.TempDir(), "m-"+tt.name, zap.NewNop())
			if err != nil {
				t.Fatal(err)
			}
			if err := tt.close(w); err != nil {
				t.Fatal(err)
			}
			for i := 0; i < 1000; i++ {
				w.RecordCommand(command.Command{Version: 1, Name: "Attack", Target: 5, Source: 2}, nil)
				w.RecordChanges(2, []replication.Change{{Seq: uint64(i), Tick: 2, Entity: 5, Field: "pos"}})
			}
			if len(w.cur.Commands) != 0 || len(w.cur.Changes) != 0 {
				t.Fatalf("buffered after close: commands=%d changes=%d", len(w.cur.Commands), len(w.cur.Changes))
			}
		})
	}
}
