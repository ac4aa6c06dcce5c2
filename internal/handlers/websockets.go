package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"petfeeder/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12 // 4 KB
	defaultInterval  = 1 * time.Second
	maxInterval      = 10 * time.Second
	maxIntervalMilli = 10_000
	changePoll       = 100 * time.Millisecond
)

type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// The dashboard is served from another origin on the LAN.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// statusStream tracks what the client last saw.
type statusStream struct {
	conn *websocket.Conn
	last models.DispenseState
	sent bool
}

// @Summary      Status stream
// @Description  WebSocket. Sends {"type":"status"} every interval and whenever the dispense state changes.
// @Tags         feeder
// @Param        interval     query  string  false  "Period, e.g. 2s (max 10s)"
// @Param        interval_ms  query  int     false  "Period in milliseconds"
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	interval := h.parseInterval(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go h.startReader(conn, done)

	ticker := time.NewTicker(interval)
	poll := time.NewTicker(changePoll)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		poll.Stop()
		ping.Stop()
	}()

	ctx := c.Request.Context()
	stream := &statusStream{conn: conn}
	if err := h.sendStatus(ctx, stream, true); err != nil {
		if h.log != nil {
			h.log.Infow("ws_write_failed_initial", "err", err)
		}
		return
	}

	for {
		var err error
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = conn.WriteMessage(websocket.PingMessage, nil)
		case <-ticker.C:
			err = h.sendStatus(ctx, stream, true)
		case <-poll.C:
			err = h.sendStatus(ctx, stream, false)
		}
		if err != nil {
			if h.log != nil {
				h.log.Infow("ws_write_failed", "err", err)
			}
			return
		}
	}
}

// parseInterval reads ?interval=2s or ?interval_ms=2000 with bounds.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}
	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			return time.Duration(v) * time.Millisecond
		}
	}
	return defaultInterval
}

// startReader drains incoming frames so pongs and close are processed.
func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if h.log != nil {
				h.log.Infow("ws_read_closed", "err", err)
			}
			return
		}
	}
}

// sendStatus writes the current status. Unless force is set it writes only
// when the dispense state differs from the last one sent.
func (h *Handler) sendStatus(ctx context.Context, s *statusStream, force bool) error {
	st, err := h.services.Monitoring.GetStatus(ctx)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_get_status_failed", "err", err)
		}
		return err
	}
	if !force && s.sent && st.State == s.last {
		return nil
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(wsEnvelope{Type: "status", Data: st}); err != nil {
		return err
	}
	s.last, s.sent = st.State, true
	return nil
}
