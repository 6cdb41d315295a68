package main

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"golang.org/x/sync/errgroup"

	"github.com/mcoot/roomchat/internal/ai"
	"github.com/mcoot/roomchat/internal/api"
	"github.com/mcoot/roomchat/internal/factory"
	"github.com/mcoot/roomchat/internal/server"
	redisstorage "github.com/mcoot/roomchat/internal/storage/redis"
	"github.com/mcoot/roomchat/internal/transport"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(os.Getenv("LOG_LEVEL")),
	}))
	slog.SetDefault(logger)

	serverCfg := server.DefaultConfig()
	serverCfg.Addr = getEnv("CHAT_ADDR", serverCfg.Addr)
	// Flood limiting stays off unless CHAT_MESSAGES_PER_SECOND is positive
	if rate, err := strconv.ParseFloat(os.Getenv("CHAT_MESSAGES_PER_SECOND"), 64); err == nil {
		serverCfg.Handler.MessagesPerSecond = rate
	}
	if burst, err := strconv.Atoi(os.Getenv("CHAT_MESSAGE_BURST")); err == nil {
		serverCfg.Handler.MessageBurst = burst
	}

	// Build factory config from environment
	cfg := factory.Config{
		Logger:       logger,
		StorageType:  os.Getenv("STORAGE_TYPE"),
		UsersFile:    getEnv("CHAT_USERS_FILE", "resources/users.txt"),
		ServerConfig: serverCfg,
		Router: factory.RouterOptions{
			AdminToken:     os.Getenv("OPS_ADMIN_TOKEN"),
			AllowedOrigins: splitList(os.Getenv("OPS_ALLOWED_ORIGINS")),
		},
	}

	// Configure Redis if storage type is redis
	if cfg.StorageType == factory.StorageTypeRedis {
		redisURL := os.Getenv("REDIS_URL")
		if redisURL == "" {
			logger.Error("REDIS_URL required when STORAGE_TYPE=redis")
			os.Exit(1)
		}
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = redisURL
		cfg.RedisConfig = &redisCfg
	}

	tlsConfig, err := tlsFromEnv(logger)
	if err != nil {
		logger.Error("failed to configure TLS", slog.String("error", err.Error()))
		os.Exit(1)
	}
	cfg.TLS = tlsConfig

	cfg.AI = aiFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create application factory
	app, err := factory.New(ctx, cfg)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var opsServer *api.Server
	opsCfg := api.DefaultServerConfig()
	if addr, ok := os.LookupEnv("OPS_ADDR"); ok {
		// Set but empty disables the ops HTTP server
		opsCfg.Addr = addr
	}
	if opsCfg.Addr != "" {
		opsServer = api.NewServer(app.Router(), opsCfg, logger)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := app.Server.ListenAndServe(); err != nil && !errors.Is(err, server.ErrServerClosed) {
			return err
		}
		return nil
	})
	if opsServer != nil {
		g.Go(opsServer.Start)
	}
	g.Go(func() error {
		if err := app.Credentials.Watch(gctx); err != nil {
			logger.Warn("credentials hot reload disabled", slog.String("error", err.Error()))
		}
		return nil
	})

	go func() {
		if err := g.Wait(); err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	operations := map[string]gfshutdown.Operation{
		"chat-server": func(ctx context.Context) error {
			logger.Info("shutdown signal received")
			return app.Server.Shutdown(ctx)
		},
	}
	if opsServer != nil {
		operations["ops-http"] = opsServer.Shutdown
	}
	wait := gfshutdown.GracefulShutdown(context.Background(), shutdownTimeout, operations)

	exitCode := <-wait
	cancel()
	if err := app.Close(); err != nil {
		logger.Warn("failed to close storage", slog.String("error", err.Error()))
	}
	logger.Info("server stopped", slog.Int("exit_code", exitCode))
	os.Exit(exitCode)
}

// tlsFromEnv loads the listener certificate. Plain TCP needs CHAT_INSECURE=true.
func tlsFromEnv(logger *slog.Logger) (*tls.Config, error) {
	certFile, keyFile := os.Getenv("CHAT_TLS_CERT"), os.Getenv("CHAT_TLS_KEY")
	if certFile != "" && keyFile != "" {
		return transport.ServerTLSConfig(certFile, keyFile)
	}
	if insecure, _ := strconv.ParseBool(os.Getenv("CHAT_INSECURE")); insecure {
		logger.Warn("TLS disabled, chat traffic is unencrypted")
		return nil, nil
	}
	return nil, errors.New("CHAT_TLS_CERT and CHAT_TLS_KEY are required unless CHAT_INSECURE=true")
}

// aiFromEnv returns nil when AI rooms are turned off with AI_PROVIDER=none
func aiFromEnv() *ai.Config {
	provider := getEnv("AI_PROVIDER", ai.ProviderOllama)
	if provider == "none" {
		return nil
	}

	cfg := ai.DefaultConfig()
	cfg.Provider = provider
	if provider != ai.ProviderOllama {
		// Provider SDKs pick their own endpoint and model defaults
		cfg.Model = ""
		cfg.BaseURL = ""
	}
	cfg.Model = getEnv("AI_MODEL", cfg.Model)
	cfg.BaseURL = getEnv("AI_BASE_URL", cfg.BaseURL)
	cfg.APIKey = os.Getenv("AI_API_KEY")
	return &cfg
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
