package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mcoot/roomchat/internal/model"
)

// Provider names accepted in Config.Provider
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// FallbackReply replaces replies too short to be useful
const FallbackReply = "I'm sorry, I couldn't generate a proper response."

// minReplyLength is the shortest trimmed reply accepted from a provider
const minReplyLength = 5

// Provider completes a single prompt against a text-generation backend
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Config holds configuration for AI replies
type Config struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string

	// Timeout bounds a single generation round trip
	Timeout time.Duration
	// HistoryWindow is how many recent room lines are included in the prompt
	HistoryWindow int
	// MaxTokens caps reply length for providers that require it
	MaxTokens int
}

// DefaultConfig returns a local Ollama configuration
func DefaultConfig() Config {
	return Config{
		Provider:      ProviderOllama,
		Model:         defaultOllamaModel,
		BaseURL:       defaultOllamaBaseURL,
		Timeout:       30 * time.Second,
		HistoryWindow: 10,
		MaxTokens:     512,
	}
}

// Service turns a room's base prompt and recent history into a bot reply
type Service struct {
	provider Provider
	cfg      Config
	logger   *slog.Logger
}

// NewService wraps an already constructed provider
func NewService(provider Provider, cfg Config, logger *slog.Logger) *Service {
	defaults := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = defaults.HistoryWindow
	}
	return &Service{
		provider: provider,
		cfg:      cfg,
		logger: logger.With(
			slog.String("component", "ai"),
			slog.String("model", provider.Model())),
	}
}

// New builds the provider named in cfg and wraps it in a Service
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Service, error) {
	var (
		provider Provider
		err      error
	)

	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOllama:
		provider, err = NewOllamaProvider(cfg.BaseURL, cfg.Model, cfg.Timeout)
	case ProviderOpenAI:
		provider, err = NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.MaxTokens)
	case ProviderAnthropic:
		provider, err = NewAnthropicProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.MaxTokens)
	case ProviderGemini:
		provider, err = NewGeminiProvider(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewService(provider, cfg, logger), nil
}

// Respond generates a reply for the room. Provider failures are wrapped in
// model.ErrGenerationFailed; the underlying detail is logged, never returned to clients.
func (s *Service) Respond(ctx context.Context, basePrompt string, history []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	prompt := BuildPrompt(basePrompt, history, s.cfg.HistoryWindow)

	start := time.Now()
	reply, err := s.provider.Complete(ctx, prompt)
	if err != nil {
		s.logger.Warn("generation failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: timed out after %s", model.ErrGenerationFailed, s.cfg.Timeout)
		}
		return "", fmt.Errorf("%w: %v", model.ErrGenerationFailed, err)
	}

	reply = strings.TrimSpace(reply)
	if len(reply) < minReplyLength {
		s.logger.Info("short reply replaced with fallback", slog.Int("length", len(reply)))
		return FallbackReply, nil
	}

	s.logger.Debug("generation complete",
		slog.Int("length", len(reply)),
		slog.Duration("duration", time.Since(start)))
	return reply, nil
}
