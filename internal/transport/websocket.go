package transport

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketConn carries the line protocol over WebSocket, one text frame per line
type WebSocketConn struct {
	conn *websocket.Conn
	cfg  Config
	addr string

	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ Conn = (*WebSocketConn)(nil)

// NewWebSocketConn wraps an upgraded websocket connection
func NewWebSocketConn(conn *websocket.Conn, remoteAddr string, cfg Config) *WebSocketConn {
	if cfg.MaxLineLength <= 0 {
		cfg.MaxLineLength = DefaultConfig().MaxLineLength
	}
	conn.SetReadLimit(int64(cfg.MaxLineLength))

	return &WebSocketConn{
		conn: conn,
		cfg:  cfg,
		addr: remoteAddr,
	}
}

func (c *WebSocketConn) ReadLine() (string, error) {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return "", ErrClosed
			}
			return "", err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
}

func (c *WebSocketConn) WriteLine(line string) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.cfg.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
		_ = c.Close()
		return err
	}
	return nil
}

func (c *WebSocketConn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		// WriteControl may run concurrently with WriteMessage
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *WebSocketConn) Closed() bool {
	return c.closed.Load()
}

func (c *WebSocketConn) RemoteAddr() string {
	return c.addr
}
