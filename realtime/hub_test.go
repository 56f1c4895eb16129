package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"streakbot/core"
)

func TestHubSubscribeBroadcastUnsubscribe(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe(1)

	ev := core.NewRewardClaimed("bob", 10, 10)
	h.Broadcast(context.Background(), ev)

	received := <-ch
	if received.UserID != "bob" || received.Type != core.EventRewardClaimed {
		t.Fatalf("unexpected event: %+v", received)
	}

	h.Unsubscribe(id)
	_, ok := <-ch
	if ok {
		t.Fatal("expected channel closed after unsubscribe")
	}
}

func TestHubTypeFilter(t *testing.T) {
	h := NewHub()
	_, ch := h.Subscribe(2, core.EventStreakBroken)

	h.Broadcast(context.Background(), core.NewGuessStarted("alice"))
	h.Broadcast(context.Background(), core.NewStreakBroken("alice", 4))

	received := <-ch
	if received.Type != core.EventStreakBroken || received.Streak != 4 {
		t.Fatalf("filter leaked: %+v", received)
	}
	select {
	case ev := <-ch:
		t.Fatalf("unexpected second event: %+v", ev)
	default:
	}
}

func TestHubDropsWhenFull(t *testing.T) {
	h := NewHub()
	_, ch := h.Subscribe(1)

	h.Broadcast(context.Background(), core.NewGuessStarted("a"))
	h.Broadcast(context.Background(), core.NewGuessStarted("b"))

	received := <-ch
	if received.UserID != "a" {
		t.Fatalf("unexpected event: %+v", received)
	}
	select {
	case ev := <-ch:
		t.Fatalf("overflow event delivered: %+v", ev)
	default:
	}
}

func TestHubBroadcastDuringUnsubscribe(t *testing.T) {
	h := NewHub()
	ev := core.NewGuessStarted("a")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10000; i++ {
			h.Broadcast(context.Background(), ev)
		}
	}()

	// Churn subscribers while broadcasts run; a send racing the close
	// would panic.
	for i := 0; i < 2000; i++ {
		id, _ := h.Subscribe(1)
		h.Unsubscribe(id)
	}
	<-done
}

func TestRelay(t *testing.T) {
	h := NewHub()
	handlers := map[core.EventType]func(context.Context, core.Event){}
	subscribe := func(typ core.EventType, fn func(context.Context, core.Event)) func() {
		handlers[typ] = fn
		return func() { delete(handlers, typ) }
	}

	detach := h.Relay(subscribe, core.EventUserReset)
	if len(handlers) != 1 {
		t.Fatalf("subscriptions = %d", len(handlers))
	}

	_, ch := h.Subscribe(1)
	handlers[core.EventUserReset](context.Background(), core.NewUserReset("u1"))
	received := <-ch
	if received.Type != core.EventUserReset {
		t.Fatalf("unexpected event: %+v", received)
	}

	detach()
	if len(handlers) != 0 {
		t.Fatal("detach left subscriptions behind")
	}
}

func TestMarshalJSON(t *testing.T) {
	ev := core.NewGuessResolved("alice", true, 3)
	b := MarshalJSON(ev)
	var out core.Event
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.Correct || out.Streak != 3 {
		t.Fatalf("unexpected event: %+v", out)
	}
}
