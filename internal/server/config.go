package server

import (
	"time"

	"github.com/mcoot/roomchat/internal/handler"
	"github.com/mcoot/roomchat/internal/transport"
)

// Config holds configuration for the chat server
type Config struct {
	// Addr is the chat listen address
	Addr string
	// DefaultRoom is created at startup
	DefaultRoom string
	// SweepInterval is how often disconnected members are removed from rooms
	SweepInterval time.Duration
	// DrainTimeout bounds how long Shutdown waits for clients to leave before closing them
	DrainTimeout time.Duration

	Handler handler.Config
	Conn    transport.Config
}

// DefaultConfig returns sensible defaults for the chat server
func DefaultConfig() Config {
	return Config{
		Addr:          ":8888",
		DefaultRoom:   "general",
		SweepInterval: 60 * time.Second,
		DrainTimeout:  5 * time.Second,
		Handler:       handler.DefaultConfig(),
		Conn:          transport.DefaultConfig(),
	}
}
