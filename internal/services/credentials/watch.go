package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the credentials file whenever it changes on disk, until ctx is done.
// The parent directory is watched so editors that replace the file by rename are picked up.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return errors.New("credentials store was not loaded from a file")
	}

	absPath, err := filepath.Abs(s.path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(absPath), err)
	}

	s.logger.Info("watching credentials file", slog.String("path", absPath))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := s.Reload(); err != nil {
				// A rename leaves a short window with no file; keep the old users until the next event
				s.logger.Warn("credentials reload failed", slog.String("error", err.Error()))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("credentials watcher error", slog.String("error", err.Error()))
		}
	}
}
