package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/mcoot/roomchat/internal/transport"
)

// ConnHandler runs the chat protocol on an accepted connection until it ends
type ConnHandler interface {
	HandleConn(conn transport.Conn)
}

// WebSocketHandler bridges WebSocket clients onto the chat protocol, one text
// frame per line
type WebSocketHandler struct {
	chat     ConnHandler
	upgrader websocket.Upgrader
	connCfg  transport.Config
	logger   *slog.Logger
}

// NewWebSocketHandler creates a WebSocket handler. With no allowed origins every
// origin is accepted.
func NewWebSocketHandler(chat ConnHandler, allowedOrigins []string, connCfg transport.Config, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		chat: chat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		connCfg: connCfg,
		logger:  logger,
	}
}

// Serve handles GET /ws
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.logger.Warn("websocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()))
		return
	}

	h.chat.HandleConn(transport.NewWebSocketConn(ws, r.RemoteAddr, h.connCfg))
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
