package services

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultReloadDebounce = 2 * time.Second

// Watcher reloads the analytics store when one of the source files changes.
// Bursts of events are collapsed into a single reload.
type Watcher struct {
	files    map[string]struct{}
	reload   func(ctx context.Context) error
	debounce time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	timer    *time.Timer
	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher watches paths and calls reload after changes settle for debounce.
func NewWatcher(paths []string, debounce time.Duration, reload func(ctx context.Context) error, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = defaultReloadDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	files := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		files[filepath.Clean(p)] = struct{}{}
	}
	return &Watcher{
		files:    files,
		reload:   reload,
		debounce: debounce,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start watches the parent directories of the files, so editors that replace
// a file by rename are still seen. It returns once the watch is installed.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dirs := make(map[string]struct{})
	for f := range w.files {
		dirs[filepath.Dir(f)] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return err
		}
	}

	w.mu.Lock()
	w.watcher = fw
	w.mu.Unlock()

	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return
	}
	if _, ok := w.files[filepath.Clean(ev.Name)]; !ok {
		return
	}
	w.logger.Debug("data file changed", "op", ev.Op.String(), "path", ev.Name)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if err := w.reload(ctx); err != nil {
			w.logger.Error("reload failed, keeping previous data", "error", err)
		}
	})
}

// Stop releases the watch. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.timer != nil {
			w.timer.Stop()
		}
		if w.watcher != nil {
			w.watcher.Close()
		}
	})
}
