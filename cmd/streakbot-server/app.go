package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	jsonfileAdapter "streakbot/adapters/jsonfile"
	mem "streakbot/adapters/memory"
	redisAdapter "streakbot/adapters/redis"
	sqlxAdapter "streakbot/adapters/sqlx"
	"streakbot/api/httpapi"
	"streakbot/bot"
	"streakbot/config"
	"streakbot/core"
	"streakbot/engine"
	"streakbot/integrations/webhook"
	"streakbot/leaderboard"
	"streakbot/realtime"
	"streakbot/stats"
	"streakbot/streak"
)

// App aggregates the assembled server components.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Hub     *realtime.Hub
	Storage engine.Storage
	Service *engine.StreakService
	Board   *leaderboard.Service
	Tracker *stats.Tracker
	Bot     *bot.Bot
	Handler http.Handler
	Server  *http.Server
}

func provideConfig(ctx context.Context) (*config.Config, error) {
	return config.Load()
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideStorage(ctx context.Context, cfg *config.Config) (engine.Storage, error) {
	return setupStorage(ctx, cfg)
}

func provideService(cfg *config.Config, hub *realtime.Hub, storage engine.Storage) *engine.StreakService {
	svc := streak.New(
		streak.WithRealtime(hub),
		streak.WithStorage(storage),
		streak.WithDispatchMode(engine.DispatchAsync),
		streak.WithDailyAward(cfg.Engine.DailyAward),
		streak.WithGuessAward(cfg.Engine.GuessAward),
		streak.WithAdmin(cfg.Discord.IsAdmin),
	)
	if len(cfg.Webhooks.Endpoints) > 0 {
		sink := webhook.New(cfg.Webhooks.Endpoints, webhook.WithEventTypes(
			core.EventRewardClaimed, core.EventStreakBroken, core.EventUserReset,
		))
		for _, typ := range []core.EventType{core.EventRewardClaimed, core.EventStreakBroken, core.EventUserReset} {
			svc.Subscribe(typ, sink.Handler())
		}
	}
	return svc
}

func provideBoard(storage engine.Storage) *leaderboard.Service {
	return leaderboard.NewService(storage)
}

func provideTracker(svc *engine.StreakService) *stats.Tracker {
	tracker := stats.NewTracker()
	tracker.Attach(svc.Subscribe)
	return tracker
}

func provideBot(cfg *config.Config, svc *engine.StreakService, board *leaderboard.Service, logger *slog.Logger) (*bot.Bot, error) {
	if !cfg.Discord.Enabled {
		return nil, nil
	}
	router := bot.NewRouter(cfg.Discord.Prefix, svc, board)
	return bot.New(bot.Config{Token: cfg.Discord.Token, Prefix: cfg.Discord.Prefix}, router, logger)
}

func provideHandler(cfg *config.Config, svc *engine.StreakService, board *leaderboard.Service, tracker *stats.Tracker, hub *realtime.Hub, storage engine.Storage) http.Handler {
	return httpapi.NewMux(httpapi.Deps{
		Service: svc,
		Board:   board,
		Tracker: tracker,
		Hub:     hub,
		Storage: storage,
	}, httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
	})
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	out := os.Stdout
	if cfg.Logging.Output == "stderr" {
		out = os.Stderr
	}

	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// convertAttributes converts map[string]string to []slog.Attr.
func convertAttributes(attrs map[string]string) []slog.Attr {
	var result []slog.Attr
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// setupStorage creates the appropriate storage adapter based on configuration.
func setupStorage(ctx context.Context, cfg *config.Config) (engine.Storage, error) {
	switch cfg.Storage.Adapter {
	case "memory":
		return mem.New(), nil
	case "redis":
		return redisAdapter.New(cfg.Storage.Redis)
	case "sql":
		return sqlxAdapter.New(cfg.Storage.SQL)
	case "file":
		return jsonfileAdapter.New(cfg.Storage.File.Path)
	default:
		return nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}
}
