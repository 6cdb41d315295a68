package credentials

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// parseUsers reads newline-delimited username:password entries.
// Blank lines and lines starting with # are skipped; the password is everything after the first colon.
func parseUsers(r io.Reader, logger *slog.Logger) (map[string]string, error) {
	users := make(map[string]string)
	scanner := bufio.NewScanner(r)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		username, password, ok := strings.Cut(line, ":")
		username = strings.TrimSpace(username)
		if !ok || username == "" {
			logger.Warn("skipping malformed credentials line", slog.Int("line", lineNo))
			continue
		}
		users[username] = password
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func loadUsersFile(path string, logger *slog.Logger) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open credentials file: %w", err)
	}
	defer func() { _ = f.Close() }()

	users, err := parseUsers(f, logger)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}
	return users, nil
}
