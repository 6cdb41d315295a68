package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/roomchat/internal/dependencies/clock"
	"github.com/mcoot/roomchat/internal/model"
	"github.com/mcoot/roomchat/internal/storage"
)

// Service issues, validates and invalidates reconnection tokens.
// Tokens stay valid across any number of reconnects until they expire or are invalidated.
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	logger  *slog.Logger

	sessionDuration time.Duration
}

// Config holds configuration for the session service
type Config struct {
	SessionDuration time.Duration
}

// DefaultConfig returns default session configuration
func DefaultConfig() Config {
	return Config{
		SessionDuration: 30 * time.Minute,
	}
}

// New creates a new session Service
func New(storage storage.Storage, clock clock.Clock, cfg Config, logger *slog.Logger) *Service {
	if cfg.SessionDuration == 0 {
		cfg.SessionDuration = DefaultConfig().SessionDuration
	}
	return &Service{
		storage:         storage,
		clock:           clock,
		logger:          logger.With(slog.String("component", "session")),
		sessionDuration: cfg.SessionDuration,
	}
}

// CreateSession issues a new token for the user
func (s *Service) CreateSession(ctx context.Context, username string) (*model.Session, error) {
	now := s.clock.Now()
	session := &model.Session{
		Token:     uuid.New().String(),
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionDuration),
	}

	if err := s.storage.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.logger.Debug("session created",
		slog.String("username", username),
		slog.Time("expires_at", session.ExpiresAt))
	return session, nil
}

// ValidateSession returns the username bound to a live token.
// Expired tokens are removed when they are looked up.
func (s *Service) ValidateSession(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", model.ErrInvalidSession
	}

	session, err := s.storage.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			return "", model.ErrInvalidSession
		}
		return "", fmt.Errorf("get session: %w", err)
	}

	if session.Expired(s.clock.Now()) {
		if err := s.storage.DeleteSession(ctx, token); err != nil {
			s.logger.Warn("failed to delete expired session", slog.String("error", err.Error()))
		}
		return "", model.ErrInvalidSession
	}

	return session.Username, nil
}

// InvalidateSession removes a token; unknown tokens are ignored
func (s *Service) InvalidateSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.storage.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
