package creds

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"instagram-mcp/pkg/logging"
)

// defaultDebounceInterval is how long the watcher waits for further events
// before firing. Saves are temp-write-then-rename, which produces a burst of
// filesystem events for a single logical change.
const defaultDebounceInterval = 250 * time.Millisecond

// StoreWatcher observes the credential file for external changes, so a
// long-running server picks up a record written by `auth login` in another
// process. The watch is on the parent directory: the store replaces the file
// by rename, which a file-scoped watch would lose.
type StoreWatcher struct {
	mu sync.Mutex

	path     string
	watcher  *fsnotify.Watcher
	onChange func()

	debounceInterval time.Duration
	pending          *time.Timer

	stopCh  chan struct{}
	running bool
}

// NewStoreWatcher creates a watcher for the given credential file path.
// onChange fires (debounced) after the file is created, replaced, or removed.
func NewStoreWatcher(path string, onChange func()) *StoreWatcher {
	return &StoreWatcher{
		path:             path,
		onChange:         onChange,
		debounceInterval: defaultDebounceInterval,
		stopCh:           make(chan struct{}),
	}
}

// Start begins watching. The credential directory must exist; callers create
// it by saving a record or via config setup.
func (w *StoreWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return err
	}

	w.watcher = watcher
	w.running = true

	go w.loop()

	logging.Debug("Creds", "Watching %s for external credential changes", w.path)
	return nil
}

// Stop terminates the watcher.
func (w *StoreWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.running = false
	close(w.stopCh)
	w.watcher.Close()
	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}
}

func (w *StoreWatcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) != 0 {
				w.scheduleNotify()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("Creds", "Credential watcher error: %v", err)
		case <-w.stopCh:
			return
		}
	}
}

// scheduleNotify debounces bursts of events into a single onChange call.
func (w *StoreWatcher) scheduleNotify() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounceInterval, func() {
		logging.Debug("Creds", "Credential file changed externally, invalidating cache")
		w.onChange()
	})
}
