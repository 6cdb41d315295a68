package credentials

import (
	"crypto/subtle"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/roomchat/internal/model"
)

// Store holds the known users and enforces at most one active login per user
type Store struct {
	path   string
	logger *slog.Logger

	usersMu sync.RWMutex
	users   map[string]string

	loginMu  sync.Mutex
	loggedIn map[string]bool
}

// New creates a Store from an in-memory username -> password map
func New(users map[string]string, logger *slog.Logger) *Store {
	copied := make(map[string]string, len(users))
	for u, p := range users {
		copied[u] = p
	}
	return &Store{
		logger:   logger.With(slog.String("component", "credentials")),
		users:    copied,
		loggedIn: make(map[string]bool),
	}
}

// Load creates a Store from a credentials file
func Load(path string, logger *slog.Logger) (*Store, error) {
	users, err := loadUsersFile(path, logger)
	if err != nil {
		return nil, err
	}

	s := New(users, logger)
	s.path = path
	s.logger.Info("credentials loaded",
		slog.String("path", path),
		slog.Int("users", len(users)))
	return s, nil
}

// Authenticate reports whether the credentials match and the user was not already
// logged in, marking the user logged in on success.
func (s *Store) Authenticate(username, password string) bool {
	return s.Login(username, password) == nil
}

// Login is Authenticate with the rejection reason: model.ErrUserNotFound,
// model.ErrInvalidCredentials or model.ErrAlreadyLoggedIn. The flag check and
// the mark happen under one lock, so concurrent logins for a user cannot both succeed.
func (s *Store) Login(username, password string) error {
	s.usersMu.RLock()
	stored, ok := s.users[username]
	s.usersMu.RUnlock()

	if !ok {
		return model.ErrUserNotFound
	}
	if !passwordMatches(stored, password) {
		return model.ErrInvalidCredentials
	}

	s.loginMu.Lock()
	defer s.loginMu.Unlock()
	if s.loggedIn[username] {
		return model.ErrAlreadyLoggedIn
	}

	s.loggedIn[username] = true
	return nil
}

// Claim marks a known user logged in without a password check.
// It fails when the user is unknown or already logged in.
func (s *Store) Claim(username string) bool {
	if !s.UserExists(username) {
		return false
	}

	s.loginMu.Lock()
	defer s.loginMu.Unlock()
	if s.loggedIn[username] {
		return false
	}
	s.loggedIn[username] = true
	return true
}

// Logout clears the user's logged-in flag
func (s *Store) Logout(username string) {
	s.loginMu.Lock()
	delete(s.loggedIn, username)
	s.loginMu.Unlock()
}

// UserExists reports whether the user is known
func (s *Store) UserExists(username string) bool {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	_, ok := s.users[username]
	return ok
}

// IsLoggedIn reports whether the user currently holds a login
func (s *Store) IsLoggedIn(username string) bool {
	s.loginMu.Lock()
	defer s.loginMu.Unlock()
	return s.loggedIn[username]
}

// UserCount returns the number of known users
func (s *Store) UserCount() int {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	return len(s.users)
}

// Reload re-reads the credentials file and swaps in the new users.
// Login flags survive the reload, including those of users that were removed.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}

	users, err := loadUsersFile(s.path, s.logger)
	if err != nil {
		return err
	}

	s.usersMu.Lock()
	s.users = users
	s.usersMu.Unlock()

	s.logger.Info("credentials reloaded", slog.Int("users", len(users)))
	return nil
}

func isBcryptHash(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") ||
		strings.HasPrefix(stored, "$2b$") ||
		strings.HasPrefix(stored, "$2y$")
}

func passwordMatches(stored, supplied string) bool {
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(supplied)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}

// HashPassword returns a bcrypt hash suitable for the credentials file
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
