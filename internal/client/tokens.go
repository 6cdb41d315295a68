package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TokenStore persists the last session token for one client ID
type TokenStore struct {
	path string
}

// NewTokenStore stores the token for clientID under dir
func NewTokenStore(dir, clientID string) *TokenStore {
	return &TokenStore{path: filepath.Join(dir, "session_"+sanitizeID(clientID))}
}

// DefaultTokenDir returns ~/.roomchat, or .roomchat when the home directory is unknown
func DefaultTokenDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".roomchat"
	}
	return filepath.Join(home, ".roomchat")
}

// Path returns the token file path
func (s *TokenStore) Path() string {
	return s.path
}

// Load returns the saved token, or "" if there is none
func (s *TokenStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save writes the token, creating the directory if needed
func (s *TokenStore) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	return os.WriteFile(s.path, []byte(token), 0600)
}

// Clear removes the saved token; a missing file is not an error
func (s *TokenStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// sanitizeID keeps client IDs from escaping the token directory
func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
