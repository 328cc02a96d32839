// Package watch signals when add-on manifests change on disk so callers can
// reload them and re-resolve the whole mapping.
package watch

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors a manifests directory with debouncing.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	dir       string
	debounce  time.Duration
	onChange  chan struct{}
	errs      chan error
	done      chan struct{}
}

// Config holds watcher configuration options.
type Config struct {
	Dir         string
	DebounceDur time.Duration
}

// DefaultConfig returns the defaults for dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:         dir,
		DebounceDur: 300 * time.Millisecond,
	}
}

// New creates a manifests watcher.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: creating fsnotify watcher: %w", err)
	}
	debounce := cfg.DebounceDur
	if debounce <= 0 {
		debounce = DefaultConfig(cfg.Dir).DebounceDur
	}
	return &Watcher{
		fsWatcher: fsw,
		dir:       cfg.Dir,
		debounce:  debounce,
		onChange:  make(chan struct{}, 1),
		errs:      make(chan error, 1),
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching the manifests directory. The returned channel
// receives a signal after each burst of manifest changes settles.
func (w *Watcher) Start() (<-chan struct{}, error) {
	if err := w.fsWatcher.Add(w.dir); err != nil {
		return nil, fmt.Errorf("watch: watching directory %s: %w", w.dir, err)
	}
	go w.loop()
	return w.onChange, nil
}

// Errors reports fsnotify errors. Only the most recent undelivered error is
// kept.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsWatcher.Close()
}

func (w *Watcher) loop() {
	var (
		timer   *time.Timer
		pending bool
	)
	for {
		var fire <-chan time.Time
		if timer != nil {
			fire = timer.C
		}
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !IsRelevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			pending = true

		case <-fire:
			if pending {
				select {
				case w.onChange <- struct{}{}:
				default:
				}
				pending = false
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// IsRelevant reports whether event touches a manifest file.
func IsRelevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	name := strings.ToLower(filepath.Base(event.Name))
	if strings.HasPrefix(name, ".") {
		return false
	}
	switch filepath.Ext(name) {
	case ".yaml", ".yml", ".go":
		return true
	}
	return false
}
