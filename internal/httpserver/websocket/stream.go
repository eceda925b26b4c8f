// Package websocket streams provisioning progress to API clients.
package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sitesmith-tech/sitesmith/internal/progress"
)

const (
	// writeWait is the time allowed to write a message.
	writeWait = 10 * time.Second
	// pongWait is the time allowed to read a pong message.
	pongWait = 60 * time.Second
	// pingPeriod is the frequency of ping messages (must be < pongWait).
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize is the maximum inbound message size allowed.
	maxMessageSize = 4 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by CORS middleware.
		return true
	},
}

// Streamer upgrades requests to websocket connections that follow one
// provisioning run each, relaying its progress events until the run closes.
type Streamer struct {
	bus *progress.Bus
}

// NewStreamer creates a streamer over the given progress bus.
func NewStreamer(bus *progress.Bus) *Streamer {
	return &Streamer{bus: bus}
}

// ServeRun upgrades the connection and streams the run's progress events.
// The connection closes when the run reaches a terminal state or the client
// goes away.
func (s *Streamer) ServeRun(w http.ResponseWriter, r *http.Request, runID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err, "run_id", runID)
		return
	}

	events, unsubscribe := s.bus.Subscribe(runID)
	done := make(chan struct{})

	go s.readPump(conn, done)
	s.writePump(conn, events, done)

	unsubscribe()
	_ = conn.Close()
}

// readPump drains inbound frames so pong handlers run. Clients are not
// expected to send anything.
func (s *Streamer) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read error", "error", err)
			}
			return
		}
	}
}

// writePump relays progress events until the subscription or the client
// closes.
func (s *Streamer) writePump(conn *websocket.Conn, events <-chan progress.Event, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Run closed; say goodbye cleanly.
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"),
					time.Now().Add(writeWait))
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				slog.Error("failed to marshal progress event", "error", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}
