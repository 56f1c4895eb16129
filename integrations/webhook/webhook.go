package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"streakbot/core"
)

// Sink posts domain events to configured HTTP endpoints, typically to
// announce streak milestones to external services. Delivery is synchronous
// and best-effort; hang it on an async bus if the endpoints are slow.
type Sink struct {
	client    *http.Client
	endpoints []string
	filter    map[core.EventType]bool // nil means all types
	logger    *slog.Logger
}

// Option configures a Sink.
type Option func(*Sink)

// WithClient overrides the HTTP client (defaults to 2s timeout).
func WithClient(c *http.Client) Option {
	return func(s *Sink) {
		if c != nil {
			s.client = c
		}
	}
}

// WithEventTypes restricts delivery to the listed event types.
func WithEventTypes(types ...core.EventType) Option {
	return func(s *Sink) {
		s.filter = make(map[core.EventType]bool, len(types))
		for _, t := range types {
			s.filter[t] = true
		}
	}
}

// WithLogger overrides the logger used for delivery failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a webhook sink.
func New(endpoints []string, opts ...Option) *Sink {
	s := &Sink{
		client: &http.Client{Timeout: 2 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.endpoints = append([]string{}, endpoints...)
	return s
}

// Handler adapts the sink to the bus subscription signature.
func (s *Sink) Handler() func(context.Context, core.Event) {
	return func(ctx context.Context, ev core.Event) { s.deliver(ctx, ev) }
}

// OnEvent posts the event JSON to all endpoints.
func (s *Sink) OnEvent(ev core.Event) {
	s.deliver(context.Background(), ev)
}

func (s *Sink) deliver(ctx context.Context, ev core.Event) {
	if len(s.endpoints) == 0 {
		return
	}
	if s.filter != nil && !s.filter[ev.Type] {
		return
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return
	}
	for _, ep := range s.endpoints {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep, bytes.NewReader(body))
		if err != nil {
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := s.client.Do(req)
		if err != nil {
			s.logger.Warn("webhook delivery failed", "endpoint", ep, "event", ev.Type, "error", err)
			continue
		}
		if resp.StatusCode >= 300 {
			s.logger.Warn("webhook rejected", "endpoint", ep, "event", ev.Type, "status", resp.StatusCode)
		}
		_ = resp.Body.Close()
	}
}
