package console

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// upgrader accepts connections from any origin; the operator dashboard is
// deployed behind its own auth/reverse proxy, not this process.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const writeWait = 10 * time.Second

// ServeWS upgrades the request to a websocket and streams every broadcast
// Event to the client as JSON until the connection closes or write fails
// (spec.md §6 "A WebSocket endpoint streams per-channel log events").
func (b *Broadcaster) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn("console: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	id, events := b.Subscribe(64)
	defer b.Unsubscribe(id)

	// Drain and discard client reads so gorilla's control-frame handling
	// (ping/close) keeps running; the dashboard never sends us data.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	for evt := range events {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(evt); err != nil {
			return
		}
	}
}

// Handler returns an http.HandlerFunc wrapping ServeWS, for direct
// registration on a ServeMux.
func (b *Broadcaster) Handler() http.HandlerFunc {
	return b.ServeWS
}
