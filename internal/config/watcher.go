package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultWatchDebounce = 200 * time.Millisecond

// Watcher reloads the configuration when the file at Path changes. The
// parent directory is watched so editors that save by rename are seen.
type Watcher struct {
	Path     string
	Debounce time.Duration
	Logger   *slog.Logger

	// OnChange receives every successfully loaded and validated config.
	OnChange func(*Config)
}

// Run watches until ctx is cancelled. Invalid configs are logged and
// skipped; the previous config stays in effect.
func (w *Watcher) Run(ctx context.Context) error {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = defaultWatchDebounce
	}

	target, err := canonicalPath(w.Path)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	logger.Info("watching config", "path", target)

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "error", err)
		case <-timer.C:
			res, err := LoadFromPath(target)
			if err != nil {
				logger.Warn("config reload rejected", "path", target, "error", err)
				continue
			}
			logger.Info("config reloaded", "path", target)
			if w.OnChange != nil {
				w.OnChange(res.Config)
			}
		}
	}
}
