package events

import (
	"testing"

	"rewardcenter/core/types"
)

type sample struct{ kind string }

func (s sample) EventType() string { return s.kind }

func TestBufferCollectsTypedEvents(t *testing.T) {
	var buf Buffer
	buf.Emit(&types.Event{Type: "a", Attributes: map[string]string{"k": "v"}})
	buf.Emit(sample{kind: "b"})
	got := buf.Events()
	if len(got) != 1 || got[0].Type != "a" {
		t.Fatalf("unexpected events %+v", got)
	}
	got[0].Attributes["k"] = "mutated"
	if buf.Events()[0].Attributes["k"] != "v" {
		t.Fatalf("events should be copies")
	}
	buf.Reset()
	if len(buf.Events()) != 0 {
		t.Fatalf("reset should clear the buffer")
	}
}

func TestHubFansOutAndCountsDrops(t *testing.T) {
	hub := NewHub()
	drops := 0
	hub.OnDrop(func() { drops++ })
	fast, cancelFast := hub.Subscribe(4)
	defer cancelFast()
	slow, cancelSlow := hub.Subscribe(1)

	hub.Publish(Committed{Seq: 1})
	hub.Publish(Committed{Seq: 2})

	if msg := <-fast; msg.Seq != 1 {
		t.Fatalf("fast subscriber got seq %d", msg.Seq)
	}
	if msg := <-fast; msg.Seq != 2 {
		t.Fatalf("fast subscriber got seq %d", msg.Seq)
	}
	if msg := <-slow; msg.Seq != 1 {
		t.Fatalf("slow subscriber got seq %d", msg.Seq)
	}
	if drops != 1 {
		t.Fatalf("drops = %d, want 1", drops)
	}
	cancelSlow()
	cancelSlow()
	if _, ok := <-slow; ok {
		t.Fatalf("cancelled channel should be closed")
	}
	var nilHub *Hub
	nilHub.Publish(Committed{})
}
