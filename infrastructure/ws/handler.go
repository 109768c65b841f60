// Package ws serves the realtime protocol over websockets.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"wallet-chat/auth"
	"wallet-chat/domain/event"
	"wallet-chat/errors"
	"wallet-chat/runtime"
	"wallet-chat/sink"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameLength = 16 * 1024
)

// Handler authenticates the connection before upgrading it, then pumps
// frames between the socket and the presence layer.
type Handler struct {
	log        *slog.Logger
	presence   *runtime.Presence
	upgrader   websocket.Upgrader
	bufferSize int
}

func NewHandler(log *slog.Logger, presence *runtime.Presence, bufferSize int, allowedOrigins []string) *Handler {
	return &Handler{
		log:        log,
		presence:   presence,
		bufferSize: bufferSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowedOrigins) == 0 || origin == "" || lo.Contains(allowedOrigins, origin)
			},
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := sink.NewConnectionSink(h.bufferSize)
	defer out.Close()

	session, err := h.presence.Connect(ctx, auth.BearerToken(r), out)
	if err != nil {
		h.log.Debug("Realtime connection refused", "remote_host", r.RemoteAddr, "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(errors.HTTPStatus(err))
		_ = json.NewEncoder(w).Encode(map[string]string{"error": errors.Code(err), "message": errors.Message(err)})
		return
	}
	defer h.presence.Disconnect(session)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "session_id", session.ID, "error", err)
		return
	}
	defer conn.Close()

	go h.writePump(conn, out)
	h.readPump(ctx, conn, session)
}

// readPump handles the inbound commands of one connection one after the other.
func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, session runtime.Session) {
	conn.SetReadLimit(maxFrameLength)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("Websocket closed unexpectedly", "session_id", session.ID, "error", err)
			}
			return
		}
		cmd, ref, err := event.Decode(frame)
		if err != nil {
			h.presence.Reject(ctx, session, err, ref)
			continue
		}
		h.presence.Handle(ctx, session, cmd, ref)
	}
}

func (h *Handler) writePump(conn *websocket.Conn, out *sink.ConnectionSink) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-out.Frames():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.log.Debug("Websocket write failed", "error", err)
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		case <-out.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
