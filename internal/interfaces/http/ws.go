package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The relay is read-only market data; any origin may subscribe.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handlePricesWS relays the prices channel to a websocket client. Each
// connection holds its own bus subscription; a slow client drops ticks
// rather than backing up the publisher.
func (s *Server) handlePricesWS(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		writeError(w, http.StatusServiceUnavailable, "price stream unavailable")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	ticks, err := s.bus.Subscribe(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to subscribe websocket client to price stream")
		return
	}

	log.Debug().Str("remote", r.RemoteAddr).Msg("Websocket price subscriber connected")

	// Reader goroutine: the client sends nothing we care about, but
	// reading is how close frames and ping/pong get processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pinger := time.NewTicker(wsPingInterval)
	defer pinger.Stop()

	for {
		select {
		case <-done:
			return
		case <-pinger.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case tick, ok := <-ticks:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream closed"))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(tick); err != nil {
				log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("Websocket subscriber dropped")
				return
			}
		}
	}
}
