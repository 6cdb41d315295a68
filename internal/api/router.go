package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mcoot/roomchat/internal/api/handler"
	"github.com/mcoot/roomchat/internal/api/middleware"
	"github.com/mcoot/roomchat/internal/transport"
)

// ChatServer is what the ops API needs from the chat server
type ChatServer interface {
	handler.RoomRegistry
	handler.RoomCounter
	handler.ConnHandler
}

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger *slog.Logger
	Chat   ChatServer
	// Gatherer backs /metrics; nil uses the default registry
	Gatherer prometheus.Gatherer
	// AdminToken enables POST /api/v1/rooms when set
	AdminToken string
	// AllowedOrigins restricts WebSocket upgrades; empty allows all
	AllowedOrigins []string
	Conn           transport.Config
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	roomHandler := handler.NewRoomHandler(cfg.Chat)
	wsHandler := handler.NewWebSocketHandler(cfg.Chat, cfg.AllowedOrigins, cfg.Conn, cfg.Logger)

	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	api.HandleFunc("/health", handler.Health(cfg.Chat)).Methods(http.MethodGet)
	api.HandleFunc("/rooms", roomHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{name}", roomHandler.Get).Methods(http.MethodGet)

	if cfg.AdminToken != "" {
		admin := api.PathPrefix("/rooms").Subrouter()
		admin.Use(middleware.AdminToken(cfg.AdminToken))
		admin.HandleFunc("", roomHandler.Create).Methods(http.MethodPost)
	}

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	// The upgrade hijacks the connection, so only logging wraps it
	r.Handle("/ws", loggingMiddleware(http.HandlerFunc(wsHandler.Serve))).Methods(http.MethodGet)

	return r
}
