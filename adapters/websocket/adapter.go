package websocket

import (
	"net/http"
	"strings"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"streakbot/core"
	"streakbot/realtime"
)

const writeTimeout = 5 * time.Second

// Handler upgrades to WebSocket and streams hub events to the client. A
// comma-separated ?types= query restricts the stream to those event types.
func Handler(hub *realtime.Hub) http.Handler {
	upgrader := gorillaws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		id, ch := hub.Subscribe(256, parseTypes(r.URL.Query().Get("types"))...)
		defer hub.Unsubscribe(id)

		// Drain client frames so peer close is noticed promptly.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(gorillaws.TextMessage, realtime.MarshalJSON(ev)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	})
}

func parseTypes(raw string) []core.EventType {
	if raw == "" {
		return nil
	}
	var types []core.EventType
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			types = append(types, core.EventType(part))
		}
	}
	return types
}
