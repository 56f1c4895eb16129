package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	mem "streakbot/adapters/memory"
	ws "streakbot/adapters/websocket"
	"streakbot/core"
	"streakbot/engine"
	"streakbot/leaderboard"
	"streakbot/realtime"
)

func main() {
	// Use readable text logging for development/demo
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(textHandler))

	ctx := context.Background()
	store := mem.New()
	bus := engine.NewEventBus(engine.DispatchAsync)
	svc := engine.NewStreakService(store, bus, engine.Params{})
	board := leaderboard.NewService(store)
	hub := realtime.NewHub()

	// Forward engine events to WebSocket clients
	stop := hub.Relay(bus.Subscribe)
	defer stop()

	http.Handle("/ws", ws.Handler(hub))
	http.HandleFunc("/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(leaderboard.Render(board.TopN(r.Context(), 10))))
	})
	http.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
		// routes: POST /users/{id}/daily, POST /users/{id}/guess?n=7, GET /users/{id}
		parts := split(r.URL.Path, '/')
		if len(parts) < 2 {
			http.NotFound(w, r)
			return
		}
		user := core.UserID(parts[1])
		switch r.Method {
		case http.MethodPost:
			if _, err := svc.EnsureUser(ctx, user, string(user), ""); err != nil {
				http.Error(w, err.Error(), 500)
				return
			}
			if len(parts) >= 3 && parts[2] == "daily" {
				res, err := svc.ClaimDailyReward(ctx, user)
				writeJSON(w, map[string]any{"result": res, "err": errString(err)})
				return
			}
			if len(parts) >= 3 && parts[2] == "guess" {
				raw := r.URL.Query().Get("n")
				if raw == "" {
					res, err := svc.StartGuess(ctx, user)
					writeJSON(w, map[string]any{"result": res, "err": errString(err)})
					return
				}
				n, _ := strconv.Atoi(raw)
				res, err := svc.SubmitGuess(ctx, user, n)
				writeJSON(w, map[string]any{"result": res, "err": errString(err)})
				return
			}
		case http.MethodGet:
			rec, err := svc.GetRecord(ctx, user)
			if err != nil {
				http.Error(w, err.Error(), 500)
				return
			}
			writeJSON(w, rec)
			return
		}
		http.NotFound(w, r)
	})

	slog.Info("starting demo server on :8080")

	if err := http.ListenAndServe(":8080", nil); err != nil {
		slog.Error("demo server crashed", "error", err)
		os.Exit(1)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func errString(err error) any {
	if err == nil {
		return nil
	}
	return err.Error()
}

func split(p string, sep rune) []string {
	var parts []string
	current := make([]rune, 0, len(p))

	for _, r := range p {
		if r == sep {
			if len(current) > 0 {
				parts = append(parts, string(current))
				current = current[:0]
			}
			continue
		}
		current = append(current, r)
	}
	if len(current) > 0 {
		parts = append(parts, string(current))
	}
	return parts
}
