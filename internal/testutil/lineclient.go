package testutil

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// DefaultWait bounds how long LineClient waits for a server line
const DefaultWait = 2 * time.Second

// LineClient is the test side of a line-oriented chat connection.
// Inbound lines are drained continuously so server writes never block.
type LineClient struct {
	t     testing.TB
	w     io.WriteCloser
	lines chan string
}

// NewLineClient starts reading lines from conn
func NewLineClient(t testing.TB, conn io.ReadWriteCloser) *LineClient {
	t.Helper()
	c := &LineClient{
		t:     t,
		w:     conn,
		lines: make(chan string, 256),
	}
	go func() {
		defer close(c.lines)
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			c.lines <- strings.TrimRight(scanner.Text(), "\r")
		}
	}()
	t.Cleanup(func() { _ = conn.Close() })
	return c
}

// Send writes one line
func (c *LineClient) Send(line string) {
	c.t.Helper()
	_, err := fmt.Fprintf(c.w, "%s\n", line)
	require.NoError(c.t, err)
}

// Next returns the next line, failing the test if none arrives in time
func (c *LineClient) Next() string {
	c.t.Helper()
	select {
	case line, ok := <-c.lines:
		require.True(c.t, ok, "connection closed while waiting for a line")
		return line
	case <-time.After(DefaultWait):
		require.FailNow(c.t, "timed out waiting for a line")
		return ""
	}
}

// Expect fails unless the next lines equal want, in order
func (c *LineClient) Expect(want ...string) {
	c.t.Helper()
	for _, w := range want {
		require.Equal(c.t, w, c.Next())
	}
}

// ExpectPrefix fails unless the next line starts with prefix, and returns it
func (c *LineClient) ExpectPrefix(prefix string) string {
	c.t.Helper()
	line := c.Next()
	require.True(c.t, strings.HasPrefix(line, prefix), "expected prefix %q, got %q", prefix, line)
	return line
}

// ExpectClosed fails unless the server closes the connection with no further lines
func (c *LineClient) ExpectClosed() {
	c.t.Helper()
	select {
	case line, ok := <-c.lines:
		require.False(c.t, ok, "expected close, got line %q", line)
	case <-time.After(DefaultWait):
		require.FailNow(c.t, "timed out waiting for close")
	}
}

// ExpectSilence fails if a line arrives within d
func (c *LineClient) ExpectSilence(d time.Duration) {
	c.t.Helper()
	select {
	case line, ok := <-c.lines:
		if ok {
			require.FailNow(c.t, "unexpected line", line)
		}
	case <-time.After(d):
	}
}

// Login sends /login and returns the issued session token
func (c *LineClient) Login(username, password string) string {
	c.t.Helper()
	c.Send("/login " + username + " " + password)
	line := c.ExpectPrefix("AUTH_OK: Welcome, " + username + "!")
	_, token, found := strings.Cut(line, "Your session token: ")
	require.True(c.t, found, "no token in %q", line)
	c.Expect("Type /help to see available commands")
	return token
}

// Close closes the client side of the connection
func (c *LineClient) Close() {
	_ = c.w.Close()
}
