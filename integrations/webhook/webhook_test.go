package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"streakbot/core"
)

func TestSink_OnEventPostsToEndpoints(t *testing.T) {
	var hits int32
	var lastBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		lastBody, _ = io.ReadAll(r.Body)
		_ = r.Body.Close()
	}))
	defer srv.Close()

	sink := New([]string{srv.URL})
	sink.OnEvent(core.NewRewardClaimed("u1", 10, 50))

	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", hits)
	}
	var ev core.Event
	if err := json.Unmarshal(lastBody, &ev); err != nil {
		t.Fatalf("decode posted event: %v", err)
	}
	if ev.Type != core.EventRewardClaimed || ev.Total != 50 {
		t.Fatalf("unexpected payload: %+v", ev)
	}
}

func TestSink_EventTypeFilter(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	sink := New([]string{srv.URL}, WithEventTypes(core.EventStreakBroken))
	sink.OnEvent(core.NewGuessStarted("u1"))
	sink.OnEvent(core.NewStreakBroken("u1", 3))

	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", hits)
	}
}

func TestSink_NoEndpointsNoop(t *testing.T) {
	sink := New(nil)
	sink.OnEvent(core.NewUserReset("u1")) // must not panic
}
