package event

import "testing"

type ping struct{ n int }
type pong struct{ n int }

func TestEventsVisibleNextTick(t *testing.T) {
	b := NewBus()
	var got []int
	Subscribe(b, func(p ping) { got = append(got, p.n) })

	Emit(b, ping{1})
	b.DispatchAll()
	if len(got) != 0 {
		t.Fatal("event dispatched in the tick it was emitted")
	}
	b.SwapBuffers()
	b.DispatchAll()
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("got = %v", got)
	}
	b.SwapBuffers()
	b.DispatchAll()
	if len(got) != 1 {
		t.Fatal("event dispatched twice")
	}
}

func TestDispatchKeepsEmissionOrder(t *testing.T) {
	b := NewBus()
	var order []string
	Subscribe(b, func(ping) { order = append(order, "ping") })
	Subscribe(b, func(pong) { order = append(order, "pong") })
	Emit(b, pong{})
	Emit(b, ping{})
	Emit(b, pong{})
	b.SwapBuffers()
	b.DispatchAll()
	want := []string{"pong", "ping", "pong"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}
