// Package streak is the batteries-included entry point: one call builds a
// fully wired StreakService for embedding in a bot or server.
package streak

import (
	"streakbot/adapters/memory"
	"streakbot/engine"
	"streakbot/realtime"
)

// Option configures the service builder.
type Option func(*config)

type config struct {
	storage engine.Storage
	mode    engine.DispatchMode
	hub     *realtime.Hub
	params  engine.Params
}

// WithStorage sets the persistence adapter.
func WithStorage(s engine.Storage) Option { return func(c *config) { c.storage = s } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithRealtime wires a realtime hub to receive all engine events.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithClock overrides the time source (useful for tests).
func WithClock(clock engine.Clock) Option { return func(c *config) { c.params.Clock = clock } }

// WithDailyAward sets the points granted by the daily reward.
func WithDailyAward(n int64) Option { return func(c *config) { c.params.DailyAward = n } }

// WithGuessAward sets the points granted for winning a guessing round.
func WithGuessAward(n int64) Option { return func(c *config) { c.params.GuessAward = n } }

// WithAdmin sets the predicate deciding who may reset users.
func WithAdmin(fn engine.AdminFunc) Option { return func(c *config) { c.params.Admin = fn } }

// New builds a configured StreakService. Defaults: in-memory storage, async
// dispatch, no admins.
func New(opts ...Option) *engine.StreakService {
	cfg := &config{mode: engine.DispatchAsync}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.storage == nil {
		cfg.storage = memory.New()
	}
	bus := engine.NewEventBus(cfg.mode)
	svc := engine.NewStreakService(cfg.storage, bus, cfg.params)
	if cfg.hub != nil {
		cfg.hub.Relay(bus.Subscribe)
	}
	return svc
}
