package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"streakbot/core"
)

// SubscribeFunc matches the engine bus subscription signature so the hub can
// be wired without importing the engine package.
type SubscribeFunc func(core.EventType, func(context.Context, core.Event)) func()

type subscriber struct {
	ch    chan core.Event
	types map[core.EventType]bool // nil means all types
}

// Hub fans domain events out to channel subscribers, each with an optional
// event-type filter. Sends never block; a full subscriber drops the event.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

func NewHub() *Hub { return &Hub{subs: map[int]subscriber{}} }

// Subscribe registers a buffered channel. With no types listed, the
// subscriber receives every event.
func (h *Hub) Subscribe(buffer int, types ...core.EventType) (int, <-chan core.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	sub := subscriber{ch: make(chan core.Event, buffer)}
	if len(types) > 0 {
		sub.types = make(map[core.EventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}
	h.subs[id] = sub
	return id, sub.ch
}

func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.ch)
	}
}

func (h *Hub) Broadcast(_ context.Context, ev core.Event) {
	// Sends are non-blocking, so they stay under the read lock; Unsubscribe
	// holds the write lock and cannot close a channel mid-send.
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.types != nil && !sub.types[ev.Type] {
			continue
		}
		select {
		case sub.ch <- ev:
		default: // drop if full
		}
	}
}

// Relay subscribes the hub's Broadcast to the given event types on a bus and
// returns a func that detaches everything.
func (h *Hub) Relay(subscribe SubscribeFunc, types ...core.EventType) func() {
	if len(types) == 0 {
		types = []core.EventType{
			core.EventStreakAdvanced, core.EventStreakBroken,
			core.EventRewardClaimed, core.EventGuessStarted,
			core.EventGuessResolved, core.EventUserReset,
		}
	}
	unsubs := make([]func(), 0, len(types))
	for _, t := range types {
		unsubs = append(unsubs, subscribe(t, h.Broadcast))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// MarshalJSON converts an event to JSON bytes for WebSocket/SSE transports.
func MarshalJSON(ev core.Event) []byte {
	b, _ := json.Marshal(ev)
	return b
}
