// Package watch monitors a directory and submits an analysis task whenever a
// SAS file is created or modified. Rapid saves of the same file are debounced
// into one submission.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"sasbridge/internal/task"
)

// Submitter accepts file analysis submissions. *task.Service satisfies it.
type Submitter interface {
	SubmitFile(path string) (*task.Task, error)
}

// Config tunes the watcher.
type Config struct {
	// Directory to watch. Not recursive.
	Dir string

	// Quiet period a file must hold before it is submitted
	Debounce time.Duration
}

// DefaultDebounce is the settle window applied when Config.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

// Watcher turns filesystem events into analysis submissions.
type Watcher struct {
	config  Config
	tasks   Submitter
	logger  *zap.Logger
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]time.Time
	running bool
	stopped bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a watcher for dir with the default debounce.
func New(dir string, tasks Submitter, logger *zap.Logger) (*Watcher, error) {
	return NewWithConfig(Config{Dir: dir}, tasks, logger)
}

// NewWithConfig creates a watcher. The directory is not touched until Start.
func NewWithConfig(config Config, tasks Submitter, logger *zap.Logger) (*Watcher, error) {
	if strings.TrimSpace(config.Dir) == "" {
		return nil, fmt.Errorf("watch directory is required")
	}
	config.Dir = filepath.Clean(config.Dir)
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &Watcher{
		config:  config,
		tasks:   tasks,
		logger:  logger,
		watcher: fw,
		pending: make(map[string]time.Time),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs until ctx is
// canceled, Stop is called, or the watched directory disappears. Calling
// Start on a running watcher is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	if err := w.watcher.Add(w.config.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.config.Dir, err)
	}
	w.running = true
	w.logger.Info("Watching directory", zap.String("dir", w.config.Dir))
	go w.run(ctx)
	return nil
}

// Stop ends the event loop and releases the filesystem watch. Safe to call
// more than once, and safe after the loop already exited on its own.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}
	if err := w.watcher.Close(); err != nil {
		w.logger.Warn("Failed to close watcher", zap.Error(err))
	}
	w.logger.Info("Watcher stopped")
}

// Done is closed when the event loop has exited.
func (w *Watcher) Done() <-chan struct{} {
	return w.doneCh
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	// The settle ticker drains events that have sat quiet past the debounce
	// window.
	interval := 100 * time.Millisecond
	if w.config.Debounce < interval {
		interval = w.config.Debounce
	}
	settle := time.NewTicker(interval)
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.rootRemoved(event) {
				w.logger.Warn("Watched directory removed, stopping", zap.String("dir", w.config.Dir))
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watch error", zap.Error(err))
		case <-settle.C:
			w.submitSettled()
		}
	}
}

func (w *Watcher) rootRemoved(event fsnotify.Event) bool {
	return filepath.Clean(event.Name) == w.config.Dir &&
		event.Op&(fsnotify.Remove|fsnotify.Rename) != 0
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !strings.EqualFold(filepath.Ext(event.Name), ".sas") {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	w.logger.Debug("File changed",
		zap.String("path", event.Name),
		zap.String("op", event.Op.String()))
	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) submitSettled() {
	w.mu.Lock()
	now := time.Now()
	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.config.Debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		fi, err := os.Stat(path)
		if err != nil || fi.IsDir() {
			// Gone or not a file by the time it settled.
			continue
		}
		t, err := w.tasks.SubmitFile(path)
		if err != nil {
			w.logger.Error("Failed to submit analysis",
				zap.String("path", path),
				zap.Error(err))
			continue
		}
		w.logger.Info("Submitted analysis",
			zap.String("path", path),
			zap.String("task", t.ID),
			zap.String("state", string(t.State)))
	}
}
