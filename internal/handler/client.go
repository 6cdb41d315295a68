package handler

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/mcoot/roomchat/internal/chat"
	"github.com/mcoot/roomchat/internal/transport"
)

// client is the per-connection state. It is the chat.Member rooms hold.
type client struct {
	conn    transport.Conn
	limiter *rate.Limiter

	mu            sync.RWMutex
	username      string
	token         string
	authenticated bool
	room          *chat.Room
}

var _ chat.Member = (*client)(nil)

func newClient(conn transport.Conn, cfg Config) *client {
	limit := rate.Inf
	if cfg.MessagesPerSecond > 0 {
		limit = rate.Limit(cfg.MessagesPerSecond)
	}
	burst := cfg.MessageBurst
	if burst <= 0 {
		burst = 1
	}
	return &client{
		conn:    conn,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (c *client) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

func (c *client) Send(line string) error {
	return c.conn.WriteLine(line)
}

func (c *client) Connected() bool {
	return !c.conn.Closed()
}

// send writes a line to this client. Write failures close the transport,
// which the read loop then observes.
func (c *client) send(lines ...string) {
	for _, line := range lines {
		if err := c.conn.WriteLine(line); err != nil {
			return
		}
	}
}

func (c *client) setIdentity(username, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.username = username
	c.token = token
	c.authenticated = true
}

func (c *client) clearIdentity() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.username = ""
	c.token = ""
	c.authenticated = false
	c.room = nil
}

func (c *client) identity() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username, c.authenticated
}

func (c *client) sessionToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *client) currentRoom() *chat.Room {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.room
}

func (c *client) setRoom(room *chat.Room) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = room
}
