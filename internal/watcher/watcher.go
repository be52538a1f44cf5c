// Package watcher watches the ingest directory for new book source files.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/takebo/hondana/internal/source"
)

const defaultDebounce = 400 * time.Millisecond

// IngestWatcher watches a single drop directory (non-recursive) and invokes a
// callback for each book source file that appears or changes. Writes are
// debounced so a file being copied in triggers one callback, not one per
// write event.
type IngestWatcher struct {
	dir      string
	onBook   func(path string)
	debounce time.Duration
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	timers   map[string]*time.Timer
	done     chan struct{}
	started  bool
	stopOnce sync.Once
	logger   *zap.Logger
}

// Option configures an IngestWatcher.
type Option func(*IngestWatcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *IngestWatcher) { w.logger = l }
}

// WithDebounce overrides the write-event debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(w *IngestWatcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher over dir. onBook is called with the path of each
// book source file that lands in the directory.
func New(dir string, onBook func(path string), opts ...Option) *IngestWatcher {
	w := &IngestWatcher{
		dir:      dir,
		onBook:   onBook,
		debounce: defaultDebounce,
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. The directory is created if missing. Runs until ctx
// is cancelled or Stop is called.
func (w *IngestWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		w.mu.Unlock()
		return err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		w.mu.Unlock()
		return err
	}
	w.watcher = fsw
	w.started = true
	w.mu.Unlock()

	w.logger.Debug("ingest watcher started", zap.String("dir", w.dir))
	go w.run(ctx)
	return nil
}

// SyncExisting invokes the callback for book files already in the directory.
// Call after Start to pick up files dropped while the process was down.
func (w *IngestWatcher) SyncExisting() error {
	files, err := source.ListBookFiles(w.dir)
	if err != nil {
		return err
	}
	for _, path := range files {
		w.logger.Debug("ingest sync found book file", zap.String("path", path))
		w.onBook(path)
	}
	return nil
}

func (w *IngestWatcher) run(ctx context.Context) {
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
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("ingest watcher error", zap.Error(err))
			}
		}
	}
}

func (w *IngestWatcher) handleEvent(ev fsnotify.Event) {
	if !source.IsBookFile(ev.Name) {
		return
	}
	switch {
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		if info, err := os.Stat(ev.Name); err != nil || info.IsDir() {
			return
		}
		w.logger.Debug("ingest event", zap.String("op", ev.Op.String()), zap.String("path", ev.Name))
		w.schedule(ev.Name)
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		w.cancel(ev.Name)
	}
}

func (w *IngestWatcher) schedule(path string) {
	path = filepath.Clean(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.logger.Debug("ingest indexing book file", zap.String("path", path))
		w.onBook(path)
	})
}

func (w *IngestWatcher) cancel(path string) {
	path = filepath.Clean(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
}

// Stop stops the watcher and releases resources.
func (w *IngestWatcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
