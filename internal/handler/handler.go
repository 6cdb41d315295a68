package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/mcoot/roomchat/internal/chat"
	"github.com/mcoot/roomchat/internal/metrics"
	"github.com/mcoot/roomchat/internal/model"
	"github.com/mcoot/roomchat/internal/transport"
)

// Credentials is the subset of the credential store the handler needs
type Credentials interface {
	// Login checks the password and marks the user logged in, atomically.
	// The error says why a login was refused.
	Login(username, password string) error
	// Claim marks the user logged in without a password; false if already logged in
	Claim(username string) bool
	Logout(username string)
}

// Sessions issues and checks reconnection tokens
type Sessions interface {
	CreateSession(ctx context.Context, username string) (*model.Session, error)
	ValidateSession(ctx context.Context, token string) (string, error)
	InvalidateSession(ctx context.Context, token string) error
}

// Rooms is the room registry
type Rooms interface {
	CreateRoom(name string) (*chat.Room, error)
	CreateAIRoom(name, prompt string) (*chat.Room, error)
	GetRoom(name string) (*chat.Room, error)
	Rooms() []*chat.Room
	RoomForUser(username string) (string, bool)
	SetRoomForUser(username, room string)
	ClearRoomForUser(username string)
}

// Config holds per-connection limits
type Config struct {
	// MaxLoginAttempts is the number of failed authentication attempts before the connection is dropped
	MaxLoginAttempts int
	// HistoryReplay is how many recent lines a joining member receives
	HistoryReplay int
	// MessagesPerSecond and MessageBurst rate-limit chat lines per connection.
	// Zero or less disables the limiter.
	MessagesPerSecond float64
	MessageBurst      int
}

// DefaultConfig returns default handler limits
func DefaultConfig() Config {
	return Config{
		MaxLoginAttempts: 3,
		HistoryReplay:    20,
	}
}

type state int

const (
	stateUnauthenticated state = iota
	stateAuthenticated
	stateDisconnected
)

func (s state) String() string {
	switch s {
	case stateUnauthenticated:
		return "unauthenticated"
	case stateAuthenticated:
		return "authenticated"
	default:
		return "disconnected"
	}
}

// Handler runs the chat protocol for a single connection at a time.
// One Handler is shared by every connection.
type Handler struct {
	creds    Credentials
	sessions Sessions
	rooms    Rooms
	cfg      Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New creates a handler
func New(creds Credentials, sessions Sessions, rooms Rooms, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Handler {
	if cfg.MaxLoginAttempts <= 0 {
		cfg.MaxLoginAttempts = DefaultConfig().MaxLoginAttempts
	}
	if cfg.HistoryReplay <= 0 {
		cfg.HistoryReplay = DefaultConfig().HistoryReplay
	}
	return &Handler{
		creds:    creds,
		sessions: sessions,
		rooms:    rooms,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "handler")),
		metrics:  m,
	}
}

// Serve runs the protocol on conn until the client exits, fails authentication
// or the transport closes. The connection is closed on return.
func (h *Handler) Serve(ctx context.Context, conn transport.Conn) {
	start := time.Now()
	c := newClient(conn, h.cfg)
	logger := h.logger.With(slog.String("remote_addr", conn.RemoteAddr()))

	h.metrics.ConnectionOpened()
	logger.Info("client connected")

	defer func() {
		h.cleanup(c, logger)
		h.metrics.ConnectionClosed()
		logger.Info("client disconnected", slog.Duration("duration", time.Since(start)))
	}()

	c.send(msgWelcome)

	st := stateUnauthenticated
	for st != stateDisconnected {
		next := stateDisconnected
		switch st {
		case stateUnauthenticated:
			next = h.authenticate(ctx, c, logger)
		case stateAuthenticated:
			next = h.processCommands(ctx, c, logger)
		}
		if next != st {
			logger.Debug("state change",
				slog.String("from", st.String()),
				slog.String("to", next.String()),
				slog.String("username", c.Username()))
		}
		st = next
	}
}

// cleanup releases everything the connection holds. The last-room record and
// the session token survive so the user can reconnect.
func (h *Handler) cleanup(c *client, logger *slog.Logger) {
	_ = c.conn.Close()

	username, authenticated := c.identity()
	if !authenticated {
		return
	}
	if room := c.currentRoom(); room != nil {
		room.RemoveMember(c)
		room.Announce(noticeLeft(username), c)
		c.setRoom(nil)
	}
	h.creds.Logout(username)
	c.clearIdentity()
	logger.Info("user logged out on disconnect", slog.String("username", username))
}
