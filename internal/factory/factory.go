package factory

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mcoot/roomchat/internal/ai"
	"github.com/mcoot/roomchat/internal/api"
	"github.com/mcoot/roomchat/internal/chat"
	"github.com/mcoot/roomchat/internal/dependencies/clock"
	"github.com/mcoot/roomchat/internal/metrics"
	"github.com/mcoot/roomchat/internal/server"
	"github.com/mcoot/roomchat/internal/services/credentials"
	"github.com/mcoot/roomchat/internal/services/session"
	"github.com/mcoot/roomchat/internal/storage"
	"github.com/mcoot/roomchat/internal/storage/memory"
	redisstorage "github.com/mcoot/roomchat/internal/storage/redis"
	"github.com/mcoot/roomchat/internal/transport"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock clock.Clock

	// Services
	Credentials *credentials.Store
	Sessions    *session.Service
	AI          *ai.Service

	// Observability
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Server *server.Server

	logger     *slog.Logger
	routerOpts RouterOptions
	connCfg    transport.Config
}

// RouterOptions configures the ops HTTP router
type RouterOptions struct {
	// AdminToken enables room creation over HTTP when set
	AdminToken string
	// AllowedOrigins restricts WebSocket upgrades; empty allows all
	AllowedOrigins []string
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the session storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// UsersFile is the credentials file; failure to load it is fatal
	UsersFile string
	// Users supplies credentials inline instead of UsersFile
	Users map[string]string
	// SessionConfig holds configuration for the session service (optional)
	// If zero value, defaults to session.DefaultConfig()
	SessionConfig session.Config
	// AI configures the bot responder; nil disables AI rooms
	AI *ai.Config
	// ServerConfig is the chat server configuration (optional)
	// If Addr is empty, defaults to server.DefaultConfig()
	ServerConfig server.Config
	// TLS enables TLS on the chat listener; nil means plain TCP
	TLS    *tls.Config
	Router RouterOptions
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	clk := clock.New()

	// Create storage based on type
	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig, clk)
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	var creds *credentials.Store
	switch {
	case cfg.Users != nil:
		creds = credentials.New(cfg.Users, logger)
	case cfg.UsersFile != "":
		loaded, err := credentials.Load(cfg.UsersFile, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to load credentials: %w", err)
		}
		creds = loaded
	default:
		return nil, errors.New("UsersFile or Users required")
	}

	var aiService *ai.Service
	if cfg.AI != nil {
		svc, err := ai.New(ctx, *cfg.AI, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create AI service: %w", err)
		}
		aiService = svc
	}

	// Keep a nil *ai.Service out of the interface so AI rooms stay disabled
	var responder chat.Responder
	if aiService != nil {
		responder = aiService
	}

	app := newWithDependencies(store, clk, creds, responder, cfg, logger)
	app.AI = aiService
	return app, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing).
// A nil responder disables AI rooms.
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	creds *credentials.Store,
	responder chat.Responder,
	cfg Config,
	logger *slog.Logger,
) *App {
	sessionCfg := cfg.SessionConfig
	if sessionCfg.SessionDuration == 0 {
		sessionCfg = session.DefaultConfig()
	}
	serverCfg := cfg.ServerConfig
	if serverCfg.Addr == "" {
		serverCfg = server.DefaultConfig()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	sessions := session.New(store, clk, sessionCfg, logger)
	srv := server.New(serverCfg, creds, sessions, responder, cfg.TLS, logger, m)

	return &App{
		Storage:     store,
		Clock:       clk,
		Credentials: creds,
		Sessions:    sessions,
		Registry:    registry,
		Metrics:     m,
		Server:      srv,
		logger:      logger,
		routerOpts:  cfg.Router,
		connCfg:     serverCfg.Conn,
	}
}

// Router builds the ops HTTP router over the chat server
func (a *App) Router() http.Handler {
	return api.NewRouter(api.RouterConfig{
		Logger:         a.logger,
		Chat:           a.Server,
		Gatherer:       a.Registry,
		AdminToken:     a.routerOpts.AdminToken,
		AllowedOrigins: a.routerOpts.AllowedOrigins,
		Conn:           a.connCfg,
	})
}

// Close releases storage connections. Call after the server has shut down.
func (a *App) Close() error {
	if closer, ok := a.Storage.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
