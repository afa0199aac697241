package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc receives the newly loaded configuration, or the error that
// prevented loading it.
type ReloadFunc func(cfg Config, err error)

// Watcher reloads the config file when it changes on disk.
//
// The parent directory is watched rather than the file itself, so editors
// that replace the file on save are still noticed. Bursts of events are
// debounced into a single reload.
type Watcher struct {
	loader   *Loader
	onReload ReloadFunc
	debounce time.Duration

	fsw  *fsnotify.Watcher
	name string

	closeOnce sync.Once
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long the watcher waits for further events before
// reloading.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// NewWatcher starts watching the loader's config file. overrides are
// passed to every reload.
func NewWatcher(loader *Loader, overrides map[string]any, onReload ReloadFunc, opts ...WatcherOption) (*Watcher, error) {
	if loader.Path() == "" {
		return nil, fmt.Errorf("watch config: no config file")
	}

	abs, err := filepath.Abs(loader.Path())
	if err != nil {
		return nil, fmt.Errorf("watch config: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch config: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch config: %w", err)
	}

	w := &Watcher{
		loader:   loader,
		onReload: onReload,
		debounce: 100 * time.Millisecond,
		fsw:      fsw,
		name:     filepath.Base(abs),
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.wg.Add(1)
	go w.loop(overrides)

	return w, nil
}

func (w *Watcher) loop(overrides map[string]any) {
	defer w.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.closeCh:
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != w.name {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.onReload != nil {
				w.onReload(Config{}, fmt.Errorf("watch config: %w", err))
			}

		case <-fire:
			fire = nil
			cfg, err := w.loader.Load(overrides)
			if w.onReload != nil {
				w.onReload(cfg, err)
			}
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closeCh)
		err = w.fsw.Close()
		w.wg.Wait()
	})
	return err
}
