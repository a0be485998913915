package config

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ReloadCallback receives the configuration after the file changed.
type ReloadCallback func(cfg *Config)

// Watcher watches the config file and reloads it when it changes.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	filePath string
	onReload ReloadCallback
	done     chan struct{}
	stopped  chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewWatcher creates a watcher for the config file at path.
func NewWatcher(path string, onReload ReloadCallback, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = ConfigPath()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:  watcher,
		logger:   logger,
		filePath: path,
		onReload: onReload,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}, nil
}

// Start begins watching the file for changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// Watch the directory containing the file (editors replace files on save)
	dir := filepath.Dir(w.filePath)
	if err := w.watcher.Add(dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}

	go w.watch()
	w.logger.Debug("config watcher started", "path", w.filePath)
	return nil
}

// watch is the main watch loop.
func (w *Watcher) watch() {
	defer close(w.stopped)
	filename := filepath.Base(w.filePath)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != filename {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.reload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

// reload parses the file and hands it to the callback. Invalid files are
// logged and skipped so the previous configuration stays in effect.
func (w *Watcher) reload() {
	cfg, err := LoadConfig(w.filePath)
	if err != nil {
		w.logger.Warn("failed to reload config", "path", w.filePath, "error", err)
		return
	}

	w.logger.Info("config file changed, reloaded", "path", w.filePath)
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return w.watcher.Close()
	}

	w.running = false
	close(w.done)
	err := w.watcher.Close()
	<-w.stopped
	return err
}
