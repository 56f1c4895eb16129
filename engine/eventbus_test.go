package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"streakbot/core"
)

func TestSyncDispatchDeliversToMatchingType(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	defer bus.Close()

	var got, other int32
	bus.Subscribe(core.EventStreakAdvanced, func(_ context.Context, ev core.Event) {
		atomic.AddInt32(&got, 1)
	})
	bus.Subscribe(core.EventUserReset, func(_ context.Context, ev core.Event) {
		atomic.AddInt32(&other, 1)
	})

	bus.Publish(context.Background(), core.Event{Type: core.EventStreakAdvanced, UserID: "u1"})

	if got != 1 {
		t.Fatalf("deliveries = %d", got)
	}
	if other != 0 {
		t.Fatal("delivered to wrong type")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	defer bus.Close()

	var n int32
	unsub := bus.Subscribe(core.EventUserReset, func(_ context.Context, ev core.Event) {
		atomic.AddInt32(&n, 1)
	})

	bus.Publish(context.Background(), core.Event{Type: core.EventUserReset})
	unsub()
	bus.Publish(context.Background(), core.Event{Type: core.EventUserReset})

	if n != 1 {
		t.Fatalf("deliveries after unsubscribe = %d", n)
	}
}

func TestAsyncDispatchEventuallyDelivers(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	defer bus.Close()

	var wg sync.WaitGroup
	wg.Add(10)
	bus.Subscribe(core.EventGuessResolved, func(_ context.Context, ev core.Event) {
		wg.Done()
	})

	for i := 0; i < 10; i++ {
		bus.Publish(context.Background(), core.Event{Type: core.EventGuessResolved})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async deliveries timed out")
	}
}

func TestConcurrentSubscribePublish(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	defer bus.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unsub := bus.Subscribe(core.EventStreakBroken, func(context.Context, core.Event) {})
			unsub()
		}()
		go func() {
			defer wg.Done()
			bus.Publish(context.Background(), core.Event{Type: core.EventStreakBroken})
		}()
	}
	wg.Wait()
}
