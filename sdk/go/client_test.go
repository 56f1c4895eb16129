package sdk

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mem "streakbot/adapters/memory"
	"streakbot/api/httpapi"
	"streakbot/core"
	"streakbot/engine"
	"streakbot/leaderboard"
	"streakbot/realtime"
	"streakbot/stats"
)

// newTestServer runs the real API over memory storage.
func newTestServer(t *testing.T) (*httptest.Server, *engine.StreakService, *realtime.Hub) {
	t.Helper()
	storage := mem.New()
	bus := engine.NewEventBus(engine.DispatchSync)
	svc := engine.NewStreakService(storage, bus, engine.Params{
		Admin: func(id core.UserID) bool { return id == "boss" },
	})
	t.Cleanup(svc.Close)

	hub := realtime.NewHub()
	hub.Relay(svc.Subscribe)
	tracker := stats.NewTracker()
	tracker.Attach(svc.Subscribe)

	handler := httpapi.NewMux(httpapi.Deps{
		Service: svc,
		Board:   leaderboard.NewService(storage),
		Tracker: tracker,
		Hub:     hub,
		Storage: storage,
	}, httpapi.Options{PathPrefix: "/api"})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, svc, hub
}

func TestClient_UserLeaderboardStatsHealth(t *testing.T) {
	srv, svc, _ := newTestServer(t)
	ctx := context.Background()

	if _, err := svc.EnsureUser(ctx, "alice", "Alice", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ClaimDailyReward(ctx, "alice"); err != nil {
		t.Fatal(err)
	}

	client, err := NewClient(srv.URL + "/api")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	rec, err := client.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if rec.ID != "alice" || rec.TotalScore == 0 {
		t.Fatalf("unexpected record: %+v", rec)
	}

	entries, err := client.Leaderboard(ctx, 5)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "alice" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	text, err := client.LeaderboardText(ctx, 5)
	if err != nil {
		t.Fatalf("leaderboard text: %v", err)
	}
	if !strings.Contains(text, "🥇") {
		t.Fatalf("unexpected board text:\n%s", text)
	}

	snap, err := client.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if snap.RewardsToday != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	health, err := client.Health(ctx)
	if err != nil || health.Status != "healthy" {
		t.Fatalf("health: %+v err=%v", health, err)
	}
}

func TestClient_ResetUser(t *testing.T) {
	srv, svc, _ := newTestServer(t)
	ctx := context.Background()

	if _, err := svc.EnsureUser(ctx, "alice", "", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ClaimDailyReward(ctx, "alice"); err != nil {
		t.Fatal(err)
	}

	client, err := NewClient(srv.URL + "/api")
	if err != nil {
		t.Fatal(err)
	}

	if err := client.ResetUser(ctx, "mallory", "alice"); err == nil {
		t.Fatal("non-admin reset succeeded")
	}
	if err := client.ResetUser(ctx, "boss", "alice"); err != nil {
		t.Fatalf("admin reset: %v", err)
	}

	rec, err := client.GetUser(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if rec.TotalScore != 0 {
		t.Fatalf("record not reset: %+v", rec)
	}
}

func TestClient_SubscribeEvents(t *testing.T) {
	srv, svc, _ := newTestServer(t)

	client, err := NewClient(srv.URL + "/api")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events, err := client.SubscribeEvents(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// give the server-side subscriber a moment to register
	time.Sleep(20 * time.Millisecond)

	if _, err := svc.EnsureUser(ctx, "alice", "", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ClaimDailyReward(ctx, "alice"); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-events:
		if evt.UserID != "alice" {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient("  "); err == nil {
		t.Fatal("expected error for empty base URL")
	}
	c, err := NewClient("https://bot.example.com/api/")
	if err != nil {
		t.Fatal(err)
	}
	if c.wsURL != "wss://bot.example.com/api/ws" {
		t.Fatalf("ws url = %q", c.wsURL)
	}
}
