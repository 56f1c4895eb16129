package engine

import (
	"context"
	"sync"
	"time"

	"streakbot/core"
)

type DispatchMode int

const (
	DispatchSync DispatchMode = iota
	DispatchAsync
)

const (
	asyncQueueSize = 1024
	asyncWorkers   = 4
)

type subscription struct {
	id  int64
	typ core.EventType
	fn  func(context.Context, core.Event)
}

// EventBus provides thread-safe pub/sub with sync and async dispatch.
type EventBus struct {
	mode       DispatchMode
	mu         sync.RWMutex
	subs       map[core.EventType]map[int64]subscription
	nextID     int64
	asyncQueue chan core.Event
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewEventBus(mode DispatchMode) *EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	eb := &EventBus{
		mode:       mode,
		subs:       make(map[core.EventType]map[int64]subscription),
		asyncQueue: make(chan core.Event, asyncQueueSize),
		ctx:        ctx,
		cancel:     cancel,
	}
	if mode == DispatchAsync {
		for i := 0; i < asyncWorkers; i++ {
			go eb.worker()
		}
	}
	return eb
}

func (e *EventBus) worker() {
	for {
		select {
		case ev := <-e.asyncQueue:
			e.dispatchSync(context.Background(), ev)
		case <-e.ctx.Done():
			return
		}
	}
}

// Close stops async workers.
func (e *EventBus) Close() {
	e.cancel()
	// allow workers to drain briefly
	time.Sleep(10 * time.Millisecond)
}

// Subscribe registers a handler for an event type. Returns an unsubscribe func.
func (e *EventBus) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	if e.subs[typ] == nil {
		e.subs[typ] = make(map[int64]subscription)
	}
	e.subs[typ][id] = subscription{id: id, typ: typ, fn: handler}
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if m := e.subs[typ]; m != nil {
			delete(m, id)
		}
	}
}

// Publish sends an event to subscribers. In async mode the event is dropped
// if the queue is full; delivery of derived events is best-effort.
func (e *EventBus) Publish(ctx context.Context, ev core.Event) {
	if e.mode == DispatchAsync {
		select {
		case e.asyncQueue <- ev:
		default:
		}
		return
	}
	e.dispatchSync(ctx, ev)
}

func (e *EventBus) dispatchSync(ctx context.Context, ev core.Event) {
	e.mu.RLock()
	subs := e.subs[ev.Type]
	// copy to avoid holding the lock during callbacks
	handlers := make([]func(context.Context, core.Event), 0, len(subs))
	for _, s := range subs {
		handlers = append(handlers, s.fn)
	}
	e.mu.RUnlock()
	for _, h := range handlers {
		h(ctx, ev)
	}
}
