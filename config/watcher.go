package config

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file when it changes on disk and hands the
// result to a callback. Editors replace files rather than writing in
// place, so the parent directory is watched and events are filtered by
// name.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	done    chan struct{}
}

// Watch starts watching path and invokes onChange with each successfully
// reloaded config. Invalid intermediate states are logged and skipped.
func Watch(path string, logger *slog.Logger, onChange func(*Config)) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{
		path:    path,
		watcher: fw,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go w.run(onChange)
	return w, nil
}

func (w *Watcher) run(onChange func(*Config)) {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			reloaded, err := LoadFromFile(w.path)
			if err != nil {
				w.logger.Warn("Failed to reload config", slog.String("path", w.path), slog.String("error", err.Error()))
				continue
			}
			merged := DefaultConfig()
			merged.Merge(reloaded)
			if err := merged.Validate(); err != nil {
				w.logger.Warn("Ignoring invalid config change", slog.String("error", err.Error()))
				continue
			}

			w.logger.Info("Config reloaded", slog.String("path", w.path))
			onChange(merged)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watcher error", slog.String("error", err.Error()))
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
