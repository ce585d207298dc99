package packet

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	w := NewWriterWithOpcode(C_INPUT)
	w.WriteQ(42)
	w.WriteF(-1.5)
	w.WriteS("rex")
	w.WriteBlob([]byte{0x91, 0x01})
	w.WriteC(InputRun)

	r := NewReader(w.Bytes())
	if r.Opcode() != C_INPUT {
		t.Fatalf("opcode = %d", r.Opcode())
	}
	if got := r.ReadQ(); got != 42 {
		t.Fatalf("ReadQ = %d", got)
	}
	if got := r.ReadF(); got != -1.5 {
		t.Fatalf("ReadF = %v", got)
	}
	if got := r.ReadS(); got != "rex" {
		t.Fatalf("ReadS = %q", got)
	}
	if got := r.ReadBlob(); len(got) != 2 || got[0] != 0x91 {
		t.Fatalf("ReadBlob = %v", got)
	}
	if got := r.ReadC(); got != InputRun {
		t.Fatalf("ReadC = %d", got)
	}
	if r.Short() || r.Remaining() != 0 {
		t.Fatalf("short=%v remaining=%d", r.Short(), r.Remaining())
	}
}

func TestReaderShortPayload(t *testing.T) {
	r := NewReader([]byte{C_HELLO, 0x05, 0x00, 'a'})
	if s := r.ReadS(); s != "" {
		t.Fatalf("truncated string = %q", s)
	}
	if !r.Short() {
		t.Fatal("expected Short after truncated read")
	}
	if v := r.ReadD(); v != 0 {
		t.Fatalf("read after end = %d", v)
	}
}

func TestRegistryStateGate(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	reg := NewRegistry(zap.New(core))

	calls := 0
	reg.Register(C_INPUT, []SessionState{StateJoined}, func(_ any, r *Reader) {
		calls++
	})

	if err := reg.Dispatch(nil, StateHandshake, []byte{C_INPUT}); err == nil {
		t.Fatal("expected state error")
	}
	if calls != 0 {
		t.Fatal("handler ran in wrong state")
	}
	if logs.FilterMessage("opcode not allowed in state").Len() != 1 {
		t.Fatal("state rejection not logged")
	}
	if err := reg.Dispatch(nil, StateJoined, []byte{C_INPUT}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
	if err := reg.Dispatch(nil, StateJoined, []byte{0xEE}); err != nil {
		t.Fatalf("unknown opcode should be ignored: %v", err)
	}
	if err := reg.Dispatch(nil, StateJoined, nil); err == nil {
		t.Fatal("empty packet accepted")
	}
}

func TestRegistryRecoversPanic(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	reg.Register(C_PING, []SessionState{StateJoined}, func(_ any, _ *Reader) {
		panic("boom")
	})
	if err := reg.Dispatch(nil, StateJoined, []byte{C_PING}); err == nil {
		t.Fatal("expected panic to surface as error")
	}
}
