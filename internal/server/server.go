package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mcoot/roomchat/internal/chat"
	"github.com/mcoot/roomchat/internal/handler"
	"github.com/mcoot/roomchat/internal/metrics"
	"github.com/mcoot/roomchat/internal/transport"
)

// ShutdownNotice is sent to every live connection when the server stops
const ShutdownNotice = "Server is shutting down"

// ErrServerClosed is returned by Serve and ListenAndServe after Shutdown
var ErrServerClosed = errors.New("chat server closed")

// Server owns the room registry and every live chat connection
type Server struct {
	cfg       Config
	tlsConfig *tls.Config
	ai        chat.Responder
	handler   *handler.Handler
	logger    *slog.Logger
	metrics   *metrics.Metrics

	roomsMu sync.RWMutex
	rooms   map[string]*chat.Room

	lastMu   sync.RWMutex
	lastRoom map[string]string

	connMu    sync.Mutex
	conns     map[transport.Conn]struct{}
	listeners []net.Listener
	closing   bool
	wg        sync.WaitGroup

	cron *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a server with its default room and starts the periodic sweep.
// A nil ai disables AI rooms. A nil tlsConfig makes ListenAndServe use plain TCP.
func New(
	cfg Config,
	creds handler.Credentials,
	sessions handler.Sessions,
	ai chat.Responder,
	tlsConfig *tls.Config,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cfg:       cfg,
		tlsConfig: tlsConfig,
		ai:        ai,
		logger:    logger.With(slog.String("component", "server")),
		metrics:   m,
		rooms:     make(map[string]*chat.Room),
		lastRoom:  make(map[string]string),
		conns:     make(map[transport.Conn]struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.handler = handler.New(creds, sessions, s, cfg.Handler, logger, m)

	if cfg.DefaultRoom != "" {
		if _, err := s.CreateRoom(cfg.DefaultRoom); err != nil {
			s.logger.Error("failed to create default room", slog.String("error", err.Error()))
		}
	}

	s.cron = cron.New(cron.WithChain(cron.Recover(cronLogger{s.logger})))
	if cfg.SweepInterval > 0 {
		s.cron.Schedule(cron.Every(cfg.SweepInterval), cron.FuncJob(func() { s.Sweep() }))
	}
	s.cron.Start()

	return s
}

// ListenAndServe listens on the configured address and serves until Shutdown
func (s *Server) ListenAndServe() error {
	ln, err := transport.Listen(s.cfg.Addr, s.tlsConfig)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln, one goroutine each, until Shutdown.
// It takes ownership of ln.
func (s *Server) Serve(ln net.Listener) error {
	if !s.trackListener(ln) {
		_ = ln.Close()
		return ErrServerClosed
	}
	s.logger.Info("chat server listening",
		slog.String("addr", ln.Addr().String()),
		slog.Bool("tls", s.tlsConfig != nil))

	for {
		raw, err := ln.Accept()
		if err != nil {
			if s.isClosing() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.logger.Warn("accept error", slog.String("error", err.Error()))
			time.Sleep(50 * time.Millisecond)
			continue
		}

		conn := transport.NewLineConn(raw, s.cfg.Conn)
		if !s.trackConn(conn) {
			_ = conn.Close()
			continue
		}
		go func() {
			defer s.untrackConn(conn)
			s.handler.Serve(s.ctx, conn)
		}()
	}
}

// HandleConn runs the chat protocol on conn and blocks until it ends.
// It is the entry point for transports accepted elsewhere, such as WebSocket.
func (s *Server) HandleConn(conn transport.Conn) {
	if !s.trackConn(conn) {
		_ = conn.Close()
		return
	}
	defer s.untrackConn(conn)
	s.handler.Serve(s.ctx, conn)
}

// Addrs returns the addresses of the active listeners
func (s *Server) Addrs() []net.Addr {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	addrs := make([]net.Addr, 0, len(s.listeners))
	for _, ln := range s.listeners {
		addrs = append(addrs, ln.Addr())
	}
	return addrs
}

// ConnCount returns the number of live connections
func (s *Server) ConnCount() int {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return len(s.conns)
}

// Sweep removes disconnected members from every room and returns how many were removed
func (s *Server) Sweep() int {
	removed := 0
	for _, room := range s.Rooms() {
		removed += room.CleanDisconnectedClients()
	}
	s.metrics.MembersSwept(removed)
	if removed > 0 {
		s.logger.Info("swept disconnected members", slog.Int("removed", removed))
	}
	return removed
}

// Shutdown stops accepting, stops the sweep, notifies clients and waits for
// them to leave. Connections still open after DrainTimeout or ctx expiry are
// closed and context.DeadlineExceeded is returned. Later calls return the
// first call's result.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.shutdownErr = s.shutdown(ctx)
	})
	return s.shutdownErr
}

func (s *Server) shutdown(ctx context.Context) error {
	s.logger.Info("shutting down chat server")

	s.connMu.Lock()
	s.closing = true
	listeners := s.listeners
	conns := s.snapshotConnsLocked()
	s.connMu.Unlock()

	for _, ln := range listeners {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn("failed to close listener", slog.String("error", err.Error()))
		}
	}

	<-s.cron.Stop().Done()

	for _, conn := range conns {
		_ = conn.WriteLine(ShutdownNotice)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	drainCtx, cancel := context.WithTimeout(ctx, s.cfg.DrainTimeout)
	defer cancel()

	var err error
	select {
	case <-done:
	case <-drainCtx.Done():
		s.connMu.Lock()
		remaining := s.snapshotConnsLocked()
		s.connMu.Unlock()

		s.logger.Warn("drain timeout, closing connections", slog.Int("remaining", len(remaining)))
		for _, conn := range remaining {
			_ = conn.Close()
		}
		err = context.DeadlineExceeded
	}

	s.cancel()
	for _, room := range s.Rooms() {
		room.Close()
	}

	s.logger.Info("chat server stopped")
	return err
}

func (s *Server) isClosing() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.closing
}

func (s *Server) trackListener(ln net.Listener) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.closing {
		return false
	}
	s.listeners = append(s.listeners, ln)
	return true
}

// trackConn registers conn with the wait group; it refuses once shutdown has begun
func (s *Server) trackConn(conn transport.Conn) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.closing {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrackConn(conn transport.Conn) {
	s.connMu.Lock()
	delete(s.conns, conn)
	s.connMu.Unlock()
	s.wg.Done()
}

func (s *Server) snapshotConnsLocked() []transport.Conn {
	conns := make([]transport.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	return conns
}

// cronLogger routes cron's logging through slog
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, slog.String("error", err.Error()))...)
}
