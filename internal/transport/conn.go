package transport

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned by operations on a closed connection
var ErrClosed = errors.New("connection closed")

// Conn is a line-oriented client connection
type Conn interface {
	// ReadLine blocks for the next line, without its terminator
	ReadLine() (string, error)
	// WriteLine writes one line; safe for concurrent use
	WriteLine(line string) error
	// Close is idempotent
	Close() error
	// Closed reports whether the connection has been closed or has failed a write
	Closed() bool
	RemoteAddr() string
}

// Config holds limits applied to line connections
type Config struct {
	// MaxLineLength is the longest accepted inbound line in bytes
	MaxLineLength int
	// WriteTimeout bounds a single line write
	WriteTimeout time.Duration
}

// DefaultConfig returns default connection limits
func DefaultConfig() Config {
	return Config{
		MaxLineLength: 4096,
		WriteTimeout:  10 * time.Second,
	}
}

// LineConn frames a byte stream (plain TCP or TLS) as newline-terminated UTF-8 lines
type LineConn struct {
	conn    net.Conn
	scanner *bufio.Scanner
	cfg     Config

	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ Conn = (*LineConn)(nil)

// NewLineConn wraps conn
func NewLineConn(conn net.Conn, cfg Config) *LineConn {
	if cfg.MaxLineLength <= 0 {
		cfg.MaxLineLength = DefaultConfig().MaxLineLength
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 1024), cfg.MaxLineLength)

	return &LineConn{
		conn:    conn,
		scanner: scanner,
		cfg:     cfg,
	}
}

func (c *LineConn) ReadLine() (string, error) {
	if c.scanner.Scan() {
		return strings.TrimRight(c.scanner.Text(), "\r"), nil
	}
	if err := c.scanner.Err(); err != nil {
		return "", err
	}
	return "", ErrClosed
}

func (c *LineConn) WriteLine(line string) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.cfg.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		// A failed write means the peer is gone; mark it so rooms reap it
		_ = c.Close()
		return err
	}
	return nil
}

func (c *LineConn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *LineConn) Closed() bool {
	return c.closed.Load()
}

func (c *LineConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
