package resmap

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/selune/selune/internal/config"
)

// Watcher watches the module roots for file changes and triggers a rebuild
// of the resource map. Loader instances created after a rebuild see the new
// map; existing instances keep the map they were constructed with.
type Watcher struct {
	config  *config.Config
	watcher *fsnotify.Watcher
	rebuilt func(*ResourceMap) // callback invoked with each freshly built map

	watchedDirs map[string]int // dir path -> reference count
	mu          sync.Mutex

	// Debouncing
	pendingChanges map[string]time.Time
	debounceMu     sync.Mutex
	debounceDelay  time.Duration

	done chan struct{}
}

// NewWatcher creates a watcher over the configured module roots.
// rebuilt is called with the new map after each successful rescan.
func NewWatcher(cfg *config.Config, rebuilt func(*ResourceMap)) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		config:         cfg,
		watcher:        watcher,
		rebuilt:        rebuilt,
		watchedDirs:    make(map[string]int),
		pendingChanges: make(map[string]time.Time),
		debounceDelay:  100 * time.Millisecond,
		done:           make(chan struct{}),
	}

	return w, nil
}

// Start begins watching for file changes.
func (w *Watcher) Start() error {
	for _, root := range w.config.Modules.Roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return err
		}
		if err := w.watchTree(absRoot); err != nil {
			return err
		}
	}

	go w.eventLoop()
	go w.debounceLoop()

	w.config.Log(1, "resmap: watching %v for changes", w.config.Modules.Roots)
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}

// watchTree adds a directory and all its subdirectories to the watch list.
func (w *Watcher) watchTree(dir string) error {
	if err := w.addWatch(dir); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			if err := w.watchTree(filepath.Join(dir, entry.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

// addWatch adds a directory to the watch list.
func (w *Watcher) addWatch(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.watchedDirs[dir]++
	if w.watchedDirs[dir] == 1 {
		if err := w.watcher.Add(dir); err != nil {
			w.watchedDirs[dir]--
			return err
		}
		w.config.Log(2, "resmap: added watch for %s", dir)
	}
	return nil
}

// eventLoop processes file system events.
func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.config.Log(1, "resmap: watcher error: %v", err)
		}
	}
}

// handleEvent records a relevant change for debounced processing.
// New directories are added to the watch list immediately.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watchTree(event.Name); err != nil {
				w.config.Log(1, "resmap: cannot watch new dir %s: %v", event.Name, err)
			}
		}
	}

	if !strings.HasSuffix(event.Name, w.config.Modules.SourceExt) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	w.debounceMu.Lock()
	w.pendingChanges[event.Name] = time.Now()
	w.debounceMu.Unlock()
}

// debounceLoop rescans after changes settle for debounceDelay.
func (w *Watcher) debounceLoop() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.processPending()
		}
	}
}

// processPending rebuilds the map once all pending changes are old enough.
func (w *Watcher) processPending() {
	w.debounceMu.Lock()
	if len(w.pendingChanges) == 0 {
		w.debounceMu.Unlock()
		return
	}
	now := time.Now()
	for _, at := range w.pendingChanges {
		if now.Sub(at) < w.debounceDelay {
			w.debounceMu.Unlock()
			return
		}
	}
	changed := len(w.pendingChanges)
	w.pendingChanges = make(map[string]time.Time)
	w.debounceMu.Unlock()

	w.config.Log(1, "resmap: %d files changed, rescanning", changed)
	m, err := Build(w.config)
	if err != nil {
		w.config.Log(1, "resmap: rescan failed: %v", err)
		return
	}
	if w.rebuilt != nil {
		w.rebuilt(m)
	}
}
