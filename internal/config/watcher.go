package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/indyzai/api-gateway/internal/observability"
)

// DefaultDebounceDelay coalesces the burst of events one save produces.
const DefaultDebounceDelay = 100 * time.Millisecond

// ConfigCallback receives every configuration that reloaded cleanly.
type ConfigCallback func(*Config)

// ErrorCallback receives reload and watch failures.
type ErrorCallback func(error)

// Watcher reloads a configuration file whenever it changes on disk. A file
// that fails to load or validate is reported and otherwise ignored, so the
// last good configuration stays in effect.
type Watcher struct {
	path     string
	loader   *Loader
	fs       *fsnotify.Watcher
	onChange ConfigCallback
	onError  ErrorCallback
	logger   observability.Logger
	debounce time.Duration

	mu      sync.RWMutex
	current *Config

	started  bool
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDelay overrides DefaultDebounceDelay.
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger sets the watcher's logger.
func WithLogger(logger observability.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = logger }
}

// WithErrorCallback registers fn for reload failures.
func WithErrorCallback(fn ErrorCallback) WatcherOption {
	return func(w *Watcher) { w.onError = fn }
}

// WithLoader replaces the default Loader.
func WithLoader(loader *Loader) WatcherOption {
	return func(w *Watcher) { w.loader = loader }
}

// NewWatcher prepares a watcher for path. Nothing is read until Start.
func NewWatcher(path string, onChange ConfigCallback, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	w := &Watcher{
		path:     abs,
		loader:   NewLoader(),
		fs:       fs,
		onChange: onChange,
		logger:   observability.NopLogger(),
		debounce: DefaultDebounceDelay,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start performs the initial load and then watches the file's directory;
// editors that save by rename would otherwise detach a file-level watch.
// The watch ends when ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	cfg, err := w.loader.Load(w.path)
	if err != nil {
		return err
	}
	w.store(cfg)

	if err := w.fs.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	w.mu.Lock()
	w.started = true
	w.mu.Unlock()

	w.logger.Info("watching configuration file", observability.String("path", w.path))
	go w.loop(ctx)
	return nil
}

// Stop ends the watch and releases the underlying watcher. It may be called
// any number of times, including after a failed Start.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.quit)
		w.mu.RLock()
		started := w.started
		w.mu.RUnlock()
		if started {
			<-w.done
		}
		err = w.fs.Close()
	})
	return err
}

// LastConfig returns the most recent configuration that loaded cleanly.
func (w *Watcher) LastConfig() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *Watcher) store(cfg *Config) {
	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	return filepath.Clean(ev.Name) == w.path && ev.Has(fsnotify.Write|fsnotify.Create)
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	pending := time.NewTimer(w.debounce)
	pending.Stop()
	defer pending.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.quit:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("configuration file event",
				observability.String("op", ev.Op.String()))
			pending.Reset(w.debounce)
		case <-pending.C:
			w.reload()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.report("configuration watch error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := w.loader.Load(w.path)
	if err != nil {
		w.report("configuration reload rejected", err)
		return
	}
	w.store(cfg)
	w.logger.Info("configuration reloaded", observability.String("path", w.path))
	if w.onChange != nil {
		w.onChange(cfg)
	}
}

func (w *Watcher) report(msg string, err error) {
	w.logger.Error(msg, observability.Error(err))
	if w.onError != nil {
		w.onError(err)
	}
}
