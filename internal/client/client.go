package client

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mcoot/roomchat/internal/transport"
)

// Server line prefixes the client reacts to
const (
	prefixAuthOK        = "AUTH_OK:"
	prefixTooManyFailed = "AUTH_FAIL: Too many failed"
	markerToken         = "Your session token: "
	markerWelcomeBack   = "Welcome back, "
	markerReconnected   = "reconnected to room: "
	prefixJoined        = "You joined room: "
	prefixLeft          = "You left room: "
	lineSessionInvalid  = "AUTH_FAIL: Invalid or expired session token"
	lineLoggedOut       = "You have been logged out."
)

// Config holds client connection settings
type Config struct {
	// Addr is the chat server host:port
	Addr string
	// ClientID selects the token file, so several clients can share a machine
	ClientID string
	// TokenDir holds the token files
	TokenDir string
	// TLS is the client TLS configuration; nil dials plain TCP
	TLS         *tls.Config
	DialTimeout time.Duration
}

// DefaultConfig returns default client settings
func DefaultConfig() Config {
	return Config{
		Addr:        "localhost:8888",
		ClientID:    "default",
		TokenDir:    DefaultTokenDir(),
		DialTimeout: 10 * time.Second,
	}
}

// State is what the client has learned from server lines
type State struct {
	Authenticated bool
	Username      string
	Room          string
}

// Client relays console lines to the chat server and prints what comes back
type Client struct {
	cfg    Config
	tokens *TokenStore
	in     io.Reader
	out    io.Writer
	logger *slog.Logger

	mu    sync.Mutex
	state State
}

// New creates a client reading commands from in and printing to out
func New(cfg Config, in io.Reader, out io.Writer, logger *slog.Logger) *Client {
	if cfg.TokenDir == "" {
		cfg.TokenDir = DefaultTokenDir()
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultConfig().ClientID
	}
	return &Client{
		cfg:    cfg,
		tokens: NewTokenStore(cfg.TokenDir, cfg.ClientID),
		in:     in,
		out:    out,
		logger: logger.With(slog.String("component", "client")),
	}
}

// Tokens returns the client's token store
func (c *Client) Tokens() *TokenStore {
	return c.tokens
}

// State returns a snapshot of the session state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run connects and relays until the server closes the connection, the console
// reaches EOF or ctx is cancelled
func (c *Client) Run(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	lc := transport.NewLineConn(conn, transport.DefaultConfig())
	defer lc.Close()

	c.printf("Connected to %s (client ID: %s)\n", c.cfg.Addr, c.cfg.ClientID)

	token, err := c.tokens.Load()
	if err != nil {
		c.logger.Warn("could not read saved session", slog.String("error", err.Error()))
	}
	if token != "" {
		c.printf("Attempting to authenticate with saved session token...\n")
		if err := lc.WriteLine("SESSION_TOKEN:" + token); err != nil {
			return fmt.Errorf("failed to send session token: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	console := c.readConsole()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return c.readServer(lc)
	})
	g.Go(func() error {
		return c.sendLoop(gctx, lc, console)
	})
	g.Go(func() error {
		<-gctx.Done()
		return lc.Close()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, transport.ErrClosed) {
		return err
	}
	return nil
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: c.cfg.DialTimeout}
	if c.cfg.TLS == nil {
		conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Addr)
		if err != nil {
			return nil, fmt.Errorf("could not connect to server at %s: %w", c.cfg.Addr, err)
		}
		return conn, nil
	}

	tlsDialer := &tls.Dialer{NetDialer: dialer, Config: c.cfg.TLS}
	conn, err := tlsDialer.DialContext(ctx, "tcp", c.cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("could not connect securely to server at %s: %w", c.cfg.Addr, err)
	}
	return conn, nil
}

// readConsole feeds console lines into a channel, closed at EOF
func (c *Client) readConsole() <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func (c *Client) sendLoop(ctx context.Context, conn transport.Conn, console <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-console:
			if !ok {
				// Console closed; ask the server to end the session cleanly
				_ = conn.WriteLine("/exit")
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if err := conn.WriteLine(line); err != nil {
				return err
			}
			if strings.EqualFold(line, "/logout") {
				c.clearToken()
			}
		}
	}
}

func (c *Client) readServer(conn transport.Conn) error {
	for {
		line, err := conn.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, transport.ErrClosed) || errors.Is(err, net.ErrClosed) {
				c.printf("Disconnected from server.\n")
				return nil
			}
			return fmt.Errorf("connection to server lost: %w", err)
		}
		c.printf("%s\n", line)
		c.handleServerLine(line)
	}
}

// handleServerLine updates session state and the saved token from one server line
func (c *Client) handleServerLine(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case strings.HasPrefix(line, prefixAuthOK):
		c.state.Authenticated = true
		if _, rest, ok := strings.Cut(line, markerWelcomeBack); ok {
			if name, _, ok := strings.Cut(rest, "!"); ok {
				c.state.Username = name
			}
		} else if _, rest, ok := strings.Cut(line, "Welcome, "); ok {
			if name, _, ok := strings.Cut(rest, "!"); ok {
				c.state.Username = name
			}
		}
		if _, room, ok := strings.Cut(line, markerReconnected); ok {
			c.state.Room = strings.TrimSpace(room)
		}
		if _, token, ok := strings.Cut(line, markerToken); ok {
			if err := c.tokens.Save(strings.TrimSpace(token)); err != nil {
				c.logger.Warn("could not save session", slog.String("error", err.Error()))
			}
		}
	case line == lineSessionInvalid:
		c.clearTokenLocked()
	case line == lineLoggedOut:
		c.state = State{}
		c.clearTokenLocked()
	case strings.HasPrefix(line, prefixJoined):
		c.state.Room = strings.TrimPrefix(line, prefixJoined)
	case strings.HasPrefix(line, prefixLeft):
		c.state.Room = ""
	case strings.HasPrefix(line, prefixTooManyFailed):
		c.state = State{}
	}
}

func (c *Client) clearToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearTokenLocked()
}

func (c *Client) clearTokenLocked() {
	if err := c.tokens.Clear(); err != nil {
		c.logger.Warn("could not clear session", slog.String("error", err.Error()))
	}
}

func (c *Client) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}
