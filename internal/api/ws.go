package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oitbase/roomledger/internal/events"
)

const (
	writeWait      = 10 * time.Second
	eventQueueSize = 16
)

type wsEnvelope struct {
	Event string       `json:"event"`
	Data  events.Event `json:"data"`
}

// serveWs streams domain events to the authenticated client. Slow
// consumers have events dropped rather than blocking the publisher.
func (s *RoomLedgerApp) serveWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return slices.Contains(s.allowedOrigins, origin)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Printf("websocket upgrade: %v", err)
		return
	}

	queue := make(chan events.Event, eventQueueSize)
	unsubscribe := s.bus.Subscribe(func(e events.Event) {
		select {
		case queue <- e:
		default:
			s.log.Printf("event stream backlogged, dropping %s", e.Name())
		}
	})

	done := make(chan struct{})

	// reader exists only to observe the close handshake
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		defer unsubscribe()
		defer conn.Close()

		for {
			select {
			case e := <-queue:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(wsEnvelope{Event: e.Name(), Data: e}); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()
}
