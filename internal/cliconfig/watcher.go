package cliconfig

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/stdio-inspect/pkg/log"
)

// DefaultWatchDelay coalesces the burst of events editors produce on save.
const DefaultWatchDelay = 100 * time.Millisecond

// Watcher calls onChange after the config file is written or replaced.
// It watches the parent directory so atomic renames are seen too.
type Watcher struct {
	path     string
	delay    time.Duration
	onChange func()
	logger   log.Logger
	fsw      *fsnotify.Watcher

	mu       sync.Mutex
	debounce *time.Timer
	stopped  bool
}

// NewWatcher starts watching path. Call Run to deliver events.
func NewWatcher(path string, delay time.Duration, onChange func(), logger log.Logger) (*Watcher, error) {
	if delay <= 0 {
		delay = DefaultWatchDelay
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config watcher: watch %s: %w", filepath.Dir(path), err)
	}
	return &Watcher{
		path:     filepath.Clean(path),
		delay:    delay,
		onChange: onChange,
		logger:   logger,
		fsw:      fsw,
	}, nil
}

// Run delivers change notifications until ctx is cancelled, then releases
// the underlying watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.schedule()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", log.Err(err))
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.delay, w.fire)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if !stopped {
		w.onChange()
	}
}

func (w *Watcher) stop() {
	w.mu.Lock()
	w.stopped = true
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.mu.Unlock()
	w.fsw.Close()
}
