package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"

	"warden/internal/events"
	"warden/pkg/logging"
)

// ReadPIDFile parses a pid file: a single positive decimal number.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid file %s: %w", path, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid pid %d in %s", pid, path)
	}
	return pid, nil
}

// WatchPIDFile waits for path to hold a valid pid and queues PIDFileReady
// for owner. Watcher errors are reported as PIDFileFailed. The wait has no
// deadline of its own; the caller's start timeout bounds it and
// CancelReadiness ends it.
func (s *Supervisor) WatchPIDFile(owner events.Owner, path string) error {
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create pid file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	done := make(chan struct{})
	var once sync.Once
	cancel := func() { once.Do(func() { close(done) }) }

	s.mu.Lock()
	s.waiters[owner] = cancel
	s.mu.Unlock()

	s.workers.Go(func(sctx *stopper.Context) error {
		defer watcher.Close()
		defer s.forgetWaiter(owner)

		check := func() bool {
			pid, err := ReadPIDFile(path)
			if err != nil {
				return false
			}
			s.sink.Push(events.PIDFileReady{Owner: owner, PID: pid})
			return true
		}

		// The file may already exist when the parent exits.
		if check() {
			return nil
		}

		for {
			select {
			case <-sctx.Stopping():
				return nil
			case <-done:
				return nil
			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(ev.Name) != path {
					continue
				}
				if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename) {
					if check() {
						return nil
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				logging.Warn("Supervisor", "pid file watcher for %s failed: %v", path, err)
				s.sink.Push(events.PIDFileFailed{Owner: owner, Err: err})
				return nil
			}
		}
	})
	return nil
}

func (s *Supervisor) forgetWaiter(owner events.Owner) {
	s.mu.Lock()
	delete(s.waiters, owner)
	s.mu.Unlock()
}
