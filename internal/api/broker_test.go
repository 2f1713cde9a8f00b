package api

import (
	"testing"
	"time"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe(TopicPlanning)

	evt := SSEEvent{Type: "routes.optimized", Data: map[string]any{"routes": 2}}
	b.Publish(TopicPlanning, evt)

	select {
	case got := <-ch:
		if got.Type != evt.Type {
			t.Fatalf("got type %s, want %s", got.Type, evt.Type)
		}
		if got.Data["routes"].(int) != 2 {
			t.Fatalf("bad payload: %+v", got.Data)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	// events on other topics do not cross over
	b.Publish("route-xyz", SSEEvent{Type: "route.created"})
	select {
	case got := <-ch:
		t.Fatalf("unexpected event on planning topic: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}

	b.Unsubscribe(TopicPlanning, ch)
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("channel should be closed after unsubscribe")
		}
	case <-time.After(50 * time.Millisecond):
		// acceptable if already drained and closed
	}
}

func TestBrokerDropsSlowSubscribers(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe(TopicPlanning)
	defer b.Unsubscribe(TopicPlanning, ch)

	// fill the buffer and then some; publish must never block
	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			b.Publish(TopicPlanning, SSEEvent{Type: "allocation.applied"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}
