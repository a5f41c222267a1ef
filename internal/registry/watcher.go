package registry

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"warden/internal/events"
	"warden/pkg/logging"
)

// DefaultDebounce is used when NewWatcher gets a zero interval.
const DefaultDebounce = 500 * time.Millisecond

// Watcher turns changes of definition files into ReloadConfig events.
//
// Bursts of filesystem events (editors writing temp files, renames,
// several files copied at once) are collapsed into a single reload once
// the directory has been quiet for the debounce interval.
type Watcher struct {
	mu sync.Mutex

	// dir is the watched services directory
	dir string

	// sink receives ReloadConfig events
	sink events.Sink

	watcher *fsnotify.Watcher

	// debounceInterval is how long to wait for additional changes
	debounceInterval time.Duration

	// timer is the pending debounced reload, nil when idle
	timer *time.Timer

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewWatcher creates a watcher for dir posting to sink.
func NewWatcher(dir string, debounceInterval time.Duration, sink events.Sink) *Watcher {
	if debounceInterval <= 0 {
		debounceInterval = DefaultDebounce
	}
	return &Watcher{
		dir:              dir,
		sink:             sink,
		debounceInterval: debounceInterval,
	}
}

// Start begins watching. The directory is created if missing.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return err
	}

	w.watcher = watcher
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	go w.processEvents(ctx, watcher, w.stopCh, w.doneCh)

	logging.Info("Registry", "Watching %s for definition changes", w.dir)
	return nil
}

func (w *Watcher) processEvents(ctx context.Context, watcher *fsnotify.Watcher, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	for {
		select {
		case <-ctx.Done():
			w.cancelPending()
			return

		case <-stopCh:
			w.cancelPending()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleFsEvent(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error("Registry", err, "Filesystem watcher error")
		}
	}
}

func (w *Watcher) handleFsEvent(event fsnotify.Event) {
	if !isYAMLFile(event.Name) {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	logging.Debug("Registry", "Definition change: %s %s", event.Op, event.Name)
	w.debounce()
}

// debounce (re)arms the reload timer.
func (w *Watcher) debounce() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounceInterval, func() {
		w.mu.Lock()
		w.timer = nil
		w.mu.Unlock()

		logging.Info("Registry", "Definitions changed, requesting reload")
		w.sink.Push(events.ReloadConfig{})
	})
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// Stop ends watching and waits for the event goroutine.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	doneCh := w.doneCh
	watcher := w.watcher
	w.watcher = nil
	w.mu.Unlock()

	<-doneCh
	if err := watcher.Close(); err != nil {
		logging.Error("Registry", err, "Error closing filesystem watcher")
		return err
	}
	logging.Info("Registry", "Stopped watching %s", w.dir)
	return nil
}
