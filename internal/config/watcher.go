package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads the config file when it changes on disk.
//
// The parent directory is watched rather than the file itself so that editors
// replacing the file through a rename are still picked up. Reloaded configs that
// fail Validate are reported on Errors and never published on Changes.
type Watcher struct {
	path     string
	changes  chan *Config
	errs     chan error
	debounce time.Duration
	override func(*Config)
	logger   *zap.SugaredLogger

	mu      sync.Mutex
	current *Config
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithOverride applies fn to every reloaded config before it is validated.
func WithOverride(fn func(*Config)) WatcherOption {
	return func(w *Watcher) {
		w.override = fn
	}
}

// NewWatcher creates a watcher for the config file at path.
func NewWatcher(path string, log *zap.SugaredLogger, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		path:     filepath.Clean(path),
		changes:  make(chan *Config, 1),
		errs:     make(chan error, 1),
		debounce: 100 * time.Millisecond,
		logger:   log.Named("ConfigWatcher"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Changes returns the channel receiving valid reloaded configs.
func (w *Watcher) Changes() <-chan *Config {
	return w.changes
}

// Errors returns the channel receiving reload and watch errors.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Current returns the last config published on Changes, or nil.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Start begins watching in the background until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	w.logger.Debugf("watching config file: %s", w.path)
	go w.loop(ctx, fsw)
	return nil
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer fsw.Close()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
	}

	for {
		select {
		case <-ctx.Done():
			stopTimer()
			w.logger.Debug("config watcher stopped")
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			w.logger.Debugf("config change detected: op=%s", event.Op)
			stopTimer()
			timer = time.NewTimer(w.debounce)
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("fsnotify error: %v", err)
			w.report(err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Errorf("failed to reload config: %v", err)
		w.report(err)
		return
	}
	if w.override != nil {
		w.override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		w.logger.Errorf("reloaded config rejected: %v", err)
		w.report(err)
		return
	}

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()

	w.logger.Infof("config reloaded: path=%s", w.path)

	// Keep only the newest pending config.
	select {
	case <-w.changes:
	default:
	}
	select {
	case w.changes <- cfg:
	default:
	}
}

func (w *Watcher) report(err error) {
	select {
	case w.errs <- err:
	default:
	}
}
