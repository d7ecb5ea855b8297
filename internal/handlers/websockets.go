package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"coffee_roaster/internal/logger"
	"coffee_roaster/internal/service"
	"coffee_roaster/internal/telemetry"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = wsPongWait * 9 / 10
	wsReadLimit = 4 << 10
	relayBuffer = 64
)

// Envelope types.
const (
	envState   = "state"
	envRelayed = "message"
	envError   = "error"
)

// Accepted ?interval= / ?interval_ms= range for state pushes.
const (
	defaultInterval = time.Second
	maxInterval     = 10 * time.Second
)

// wsEnvelope is one frame sent to the dashboard: a "state" reading, a
// relayed "message" or an "error".
type wsEnvelope struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// The dashboard is served from the same host on the plant network.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// stateStream feeds one dashboard connection.
type stateStream struct {
	conn       *websocket.Conn
	monitoring service.Monitoring
	log        *logger.Logger
}

func (h *Handler) wsConnect(c *gin.Context) {
	every := h.parseInterval(c)
	log := h.log
	if log == nil {
		log = logger.Nop()
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorw("ws_upgrade_failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	var relay <-chan telemetry.Message
	if h.services.Relay != nil {
		ch, stop := h.services.Relay.Listen(relayBuffer)
		defer stop()
		relay = ch
	}

	s := &stateStream{conn: conn, monitoring: h.services.Monitoring, log: log}
	s.serve(c.Request.Context(), every, relay)
}

// serve pushes a reading right away and then every tick, forwards relayed
// messages as they come and pings the peer. It returns when the peer goes
// away or a write fails.
func (s *stateStream) serve(ctx context.Context, every time.Duration, relay <-chan telemetry.Message) {
	gone := s.watchPeer()

	if err := s.pushState(ctx); err != nil {
		s.log.Infow("ws_initial_state_failed", "err", err)
		return
	}

	states := time.NewTicker(every)
	defer states.Stop()
	pings := time.NewTicker(wsPingEvery)
	defer pings.Stop()

	for {
		var err error
		select {
		case <-gone:
			return
		case <-ctx.Done():
			return
		case <-pings.C:
			err = s.ping()
		case <-states.C:
			err = s.pushState(ctx)
		case msg, ok := <-relay:
			if !ok {
				// the relay went away, readings keep flowing
				relay = nil
				continue
			}
			err = s.writeEnvelope(wsEnvelope{Type: envRelayed, Data: msg})
		}
		if err != nil {
			s.log.Infow("ws_write_failed", "err", err)
			return
		}
	}
}

// watchPeer drains the connection so pongs and close frames are handled.
// The returned channel closes once the peer is gone.
func (s *stateStream) watchPeer() <-chan struct{} {
	s.conn.SetReadLimit(wsReadLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := s.conn.ReadMessage(); err != nil {
				s.log.Infow("ws_peer_gone", "err", err)
				return
			}
		}
	}()
	return gone
}

func (s *stateStream) pushState(ctx context.Context) error {
	tick, err := s.monitoring.GetState(ctx)
	if err != nil {
		s.log.Errorw("ws_get_state_failed", "err", err)
		_ = s.writeEnvelope(wsEnvelope{Type: envError, Error: "state unavailable"})
		return err
	}
	return s.writeEnvelope(wsEnvelope{Type: envState, Data: tick})
}

func (s *stateStream) writeEnvelope(env wsEnvelope) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteJSON(env)
}

func (s *stateStream) ping() error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

// parseInterval picks the push period from ?interval=2s, then
// ?interval_ms=2000, falling back to one second when neither is usable.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	if d, err := time.ParseDuration(c.Query("interval")); err == nil && validInterval(d) {
		return d
	}
	if ms, err := strconv.Atoi(c.Query("interval_ms")); err == nil && ms > 0 && ms <= int(maxInterval/time.Millisecond) {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultInterval
}

func validInterval(d time.Duration) bool { return d > 0 && d <= maxInterval }
