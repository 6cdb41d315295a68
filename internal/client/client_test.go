package client

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/roomchat/internal/dependencies/mocks"
	"github.com/mcoot/roomchat/internal/server"
	"github.com/mcoot/roomchat/internal/services/credentials"
	"github.com/mcoot/roomchat/internal/services/session"
	"github.com/mcoot/roomchat/internal/storage/memory"
	"github.com/mcoot/roomchat/internal/testutil"
)

// syncBuffer is a bytes.Buffer safe for one writer and concurrent readers
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// clientRun drives one client run from a test
type clientRun struct {
	client *Client
	input  *io.PipeWriter
	output *syncBuffer
	done   chan error
}

func (r *clientRun) send(line string) {
	_, _ = io.WriteString(r.input, line+"\n")
}

type ClientSuite struct {
	suite.Suite
	server   *server.Server
	creds    *credentials.Store
	addr     string
	tokenDir string
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.creds = credentials.New(map[string]string{"alice": "secret"}, testutil.NopLogger())
	clk := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	sessions := session.New(memory.New(), clk, session.DefaultConfig(), testutil.NopLogger())

	cfg := server.DefaultConfig()
	cfg.DrainTimeout = 100 * time.Millisecond
	s.server = server.New(cfg, s.creds, sessions, nil, nil, testutil.NopLogger(), nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	s.addr = ln.Addr().String()
	srv := s.server
	go func() { _ = srv.Serve(ln) }()

	s.tokenDir = s.T().TempDir()
}

func (s *ClientSuite) TearDownTest() {
	_ = s.server.Shutdown(context.Background())
}

func (s *ClientSuite) start() *clientRun {
	in, inWriter := io.Pipe()
	out := &syncBuffer{}
	c := New(Config{
		Addr:        s.addr,
		ClientID:    "test",
		TokenDir:    s.tokenDir,
		DialTimeout: time.Second,
	}, in, out, testutil.NopLogger())

	sess := &clientRun{client: c, input: inWriter, output: out, done: make(chan error, 1)}
	go func() { sess.done <- c.Run(context.Background()) }()
	s.T().Cleanup(func() { _ = inWriter.Close() })
	return sess
}

func (s *ClientSuite) waitFor(sess *clientRun, text string) {
	s.Eventually(func() bool { return strings.Contains(sess.output.String(), text) },
		2*time.Second, 10*time.Millisecond, "output never contained %q", text)
}

func (s *ClientSuite) waitDone(sess *clientRun) {
	select {
	case err := <-sess.done:
		s.NoError(err)
	case <-time.After(2 * time.Second):
		s.FailNow("client did not exit")
	}
}

func (s *ClientSuite) TestLoginSavesToken() {
	sess := s.start()
	s.waitFor(sess, "Welcome to the chat server!")

	sess.send("/login alice secret")
	s.waitFor(sess, "Your session token:")

	token, err := sess.client.Tokens().Load()
	s.Require().NoError(err)
	s.NotEmpty(token)
	s.Eventually(func() bool { return sess.client.State().Authenticated }, time.Second, 10*time.Millisecond)
	s.Equal("alice", sess.client.State().Username)

	sess.send("/exit")
	s.waitFor(sess, "Goodbye!")
	s.waitDone(sess)
}

func (s *ClientSuite) TestReconnectsWithSavedToken() {
	first := s.start()
	first.send("/login alice secret")
	s.waitFor(first, "Your session token:")
	first.send("/join general")
	s.waitFor(first, "You joined room: general")
	first.send("/exit")
	s.waitDone(first)
	s.Eventually(func() bool { return !s.creds.IsLoggedIn("alice") }, time.Second, 10*time.Millisecond)

	second := s.start()
	s.waitFor(second, "Attempting to authenticate with saved session token...")
	s.waitFor(second, "AUTH_OK: Welcome back, alice! You have been reconnected to room: general")
	s.Eventually(func() bool { return second.client.State().Room == "general" }, time.Second, 10*time.Millisecond)

	_ = second.input.Close()
	s.waitDone(second)
}

func (s *ClientSuite) TestLogoutClearsToken() {
	sess := s.start()
	sess.send("/login alice secret")
	s.waitFor(sess, "Your session token:")

	sess.send("/logout")
	s.waitFor(sess, "You have been logged out.")

	token, err := sess.client.Tokens().Load()
	s.Require().NoError(err)
	s.Empty(token)
	s.False(sess.client.State().Authenticated)
}

func (s *ClientSuite) TestInvalidSavedTokenIsCleared() {
	store := NewTokenStore(s.tokenDir, "test")
	s.Require().NoError(store.Save("stale-token"))

	sess := s.start()
	s.waitFor(sess, "AUTH_FAIL: Invalid or expired session token")

	s.Eventually(func() bool {
		token, err := store.Load()
		return err == nil && token == ""
	}, time.Second, 10*time.Millisecond)
}

func (s *ClientSuite) TestExitsWhenServerCloses() {
	sess := s.start()
	s.waitFor(sess, "Welcome to the chat server!")
	for range 3 {
		sess.send("/login alice wrong")
	}
	s.waitFor(sess, "AUTH_FAIL: Too many failed login attempts. Connection closed.")
	s.waitDone(sess)
}

func (s *ClientSuite) TestConnectFailure() {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	addr := ln.Addr().String()
	s.Require().NoError(ln.Close())

	c := New(Config{Addr: addr, TokenDir: s.tokenDir, DialTimeout: time.Second}, strings.NewReader(""), io.Discard, testutil.NopLogger())
	err = c.Run(context.Background())
	s.ErrorContains(err, "could not connect")
}

func TestHandleServerLineTracksState(t *testing.T) {
	c := New(Config{TokenDir: t.TempDir(), ClientID: "unit"}, strings.NewReader(""), io.Discard, testutil.NopLogger())

	c.handleServerLine("AUTH_OK: Welcome back, bob! You have been reconnected to room: books")
	if got := c.State(); got != (State{Authenticated: true, Username: "bob", Room: "books"}) {
		t.Fatalf("unexpected state after reconnect: %+v", got)
	}

	c.handleServerLine("You left room: books")
	if got := c.State().Room; got != "" {
		t.Fatalf("room not cleared: %q", got)
	}

	c.handleServerLine("You joined room: games")
	if got := c.State().Room; got != "games" {
		t.Fatalf("room not set: %q", got)
	}

	c.handleServerLine("You have been logged out.")
	if got := c.State(); got != (State{}) {
		t.Fatalf("state not reset: %+v", got)
	}
}

func TestTokenStore(t *testing.T) {
	dir := t.TempDir()
	store := NewTokenStore(dir, "../escape")

	if filepath.Dir(store.Path()) != dir {
		t.Fatalf("token path escaped directory: %s", store.Path())
	}

	token, err := store.Load()
	if err != nil || token != "" {
		t.Fatalf("Load on missing file = %q, %v", token, err)
	}

	if err := store.Save("abc\n"); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(store.Path())
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("token file mode = %v", info.Mode().Perm())
	}

	token, err = store.Load()
	if err != nil || token != "abc" {
		t.Fatalf("Load = %q, %v", token, err)
	}

	if err := store.Clear(); err != nil {
		t.Fatal(err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
}
