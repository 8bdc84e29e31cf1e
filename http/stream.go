package http

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// streamError is sent in place of a snapshot when a streamed report is
// rejected. The connection stays open.
type streamError struct {
	Error string `json:"error"`
}

func newUpgrader(allowed []string) websocket.Upgrader {
	u := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if len(allowed) > 0 {
		u.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			o, err := url.Parse(origin)
			if err != nil {
				return false
			}
			for _, host := range allowed {
				if strings.EqualFold(o.Host, host) {
					return true
				}
			}
			return false
		}
	}
	return u
}

// StreamHandler upgrades the request to a WebSocket over which a client
// sends one Report per message and receives a SnapshotResponse for each.
// The session of the first accepted report is kept for the connection.
func (b *Beacon) StreamHandler() http.Handler {
	return http.HandlerFunc(b.serveStream)
}

func (b *Beacon) serveStream(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.DebugContext(r.Context(), "beacon stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	pongWait := b.cfg.StreamPongWait
	writeWait := b.cfg.StreamWriteWait

	conn.SetReadLimit(b.cfg.MaxBodyBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go b.pingLoop(conn, pongWait*9/10, writeWait, done)

	write := func(v any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(v)
	}

	var pinned string
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.logger.DebugContext(r.Context(), "beacon stream read failed", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var rep Report
		if err := json.Unmarshal(msg, &rep); err != nil {
			if write(streamError{Error: "invalid report: " + err.Error()}) != nil {
				return
			}
			continue
		}
		if pinned != "" {
			rep.Session = pinned
		}
		if err := rep.validate(b.cfg.MaxFrames, b.cfg.MaxFrameMs); err != nil {
			if write(streamError{Error: "invalid report: " + err.Error()}) != nil {
				return
			}
			continue
		}

		id, snap, err := b.Report(rep)
		if err != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
				time.Now().Add(writeWait))
			return
		}
		pinned = id
		if err := write(NewSnapshotResponse(id, snap)); err != nil {
			return
		}
	}
}

func (b *Beacon) pingLoop(conn *websocket.Conn, period, writeWait time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
