package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// debounceDelay is how long to wait for more writes before reloading.
const debounceDelay = 200 * time.Millisecond

// Watcher keeps the current configuration and reloads it when the file
// changes. An invalid edit is reported and the previous snapshot is kept.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  zerolog.Logger

	mu      sync.RWMutex
	current Config

	changes chan struct{}

	// OnInvalid, if set, is called when a reload fails validation.
	OnInvalid func(error)
}

// NewWatcher starts watching the directory of path. Watching the directory
// rather than the file survives editors that save by rename.
func NewWatcher(path string, initial *Config, logger zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		path:    path,
		watcher: fsw,
		logger:  logger,
		current: *initial,
		changes: make(chan struct{}, 1),
	}, nil
}

// Snapshot implements Provider.
func (w *Watcher) Snapshot() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Changes receives a value after each successful reload. Reloads that happen
// before the previous one was consumed are coalesced.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Run processes file events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	var debounce *time.Timer
	var fire <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	name := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(debounceDelay)
			} else {
				debounce.Reset(debounceDelay)
			}
			fire = debounce.C

		case <-fire:
			fire = nil
			w.Reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("Config watcher error")
		}
	}
}

// Reload re-reads the file and swaps the snapshot if it is valid.
func (w *Watcher) Reload() bool {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error().Err(err).Str("path", w.path).Msg("Ignoring invalid configuration change")
		if w.OnInvalid != nil {
			w.OnInvalid(err)
		}
		return false
	}

	w.mu.Lock()
	w.current = *cfg
	w.mu.Unlock()

	w.logger.Info().Str("path", w.path).Msg("Updating configuration.")
	select {
	case w.changes <- struct{}{}:
	default:
	}
	return true
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
