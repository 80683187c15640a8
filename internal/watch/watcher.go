// Package watch turns an inbox directory into a stream of resume batches.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"resumerank/internal/errors"
	"resumerank/internal/utils"
)

// InboxWatcher watches a directory and reports new or modified files in
// debounced batches
type InboxWatcher struct {
	mu sync.Mutex

	dir string

	// modification time of each file when it was last reported
	lastModTime map[string]time.Time
	pending     map[string]struct{}

	// Watcher components
	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration
	debounceTimer *time.Timer

	// Control channels
	stopChan  chan struct{}
	flushChan chan struct{}
	done      chan struct{}

	onBatch func(paths []string)
	logger  *errors.Logger

	running bool
}

// NewInboxWatcher creates a watcher for dir. onBatch is called from the
// watcher goroutine with absolute paths sorted by name.
func NewInboxWatcher(dir string, debounceDelay time.Duration, onBatch func(paths []string), logger *errors.Logger) (*InboxWatcher, error) {
	if err := utils.ValidateDirectory(dir); err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("Cannot watch %s", dir), err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	if debounceDelay <= 0 {
		debounceDelay = time.Second
	}
	if logger == nil {
		logger = errors.Discard()
	}

	return &InboxWatcher{
		dir:           abs,
		lastModTime:   make(map[string]time.Time),
		pending:       make(map[string]struct{}),
		debounceDelay: debounceDelay,
		stopChan:      make(chan struct{}),
		flushChan:     make(chan struct{}, 1),
		done:          make(chan struct{}),
		onBatch:       onBatch,
		logger:        logger,
	}, nil
}

// Start begins watching. With processExisting, files already in the
// directory form the first batch; otherwise they are remembered and only
// reported once modified.
func (w *InboxWatcher) Start(processExisting bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("inbox watcher is already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			w.logger.LogError(closeErr, "Failed to close file watcher during cleanup")
		}
		return fmt.Errorf("failed to watch directory %s: %w", w.dir, err)
	}
	w.fsWatcher = watcher

	existing, err := w.scanExisting(processExisting)
	if err != nil {
		w.cleanupWatcher()
		return err
	}

	w.running = true
	go w.watchLoop()

	w.logger.Info("Inbox watcher started",
		"directory", w.dir,
		"existing_files", len(existing),
		"process_existing", processExisting,
		"debounce_delay", w.debounceDelay)

	if processExisting && len(existing) > 0 {
		w.requestFlush()
	}
	return nil
}

// scanExisting lists the files already present. They are either queued for
// the first batch or recorded as already reported.
func (w *InboxWatcher) scanExisting(processExisting bool) ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", w.dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || utils.IsHiddenFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		if processExisting {
			w.pending[path] = struct{}{}
		} else {
			w.lastModTime[path] = info.ModTime()
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (w *InboxWatcher) cleanupWatcher() {
	if w.fsWatcher != nil {
		if closeErr := w.fsWatcher.Close(); closeErr != nil {
			w.logger.LogError(closeErr, "Failed to close file watcher during cleanup")
		}
		w.fsWatcher = nil
	}
}

// Stop stops the watcher and waits for the event loop to exit. A batch
// callback already running is allowed to finish.
func (w *InboxWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}

	close(w.stopChan)
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	var closeErr error
	if w.fsWatcher != nil {
		if err := w.fsWatcher.Close(); err != nil {
			w.logger.LogError(err, "Failed to close file system watcher")
			closeErr = err
		}
	}
	w.running = false
	w.mu.Unlock()

	<-w.done
	w.logger.Info("Inbox watcher stopped")
	return closeErr
}

// watchLoop is the main event loop for file watching
func (w *InboxWatcher) watchLoop() {
	defer close(w.done)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if w.shouldProcessEvent(event) {
				w.markPending(event.Name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.LogError(err, "File watcher error")

		case <-w.flushChan:
			if batch := w.takeChanged(); len(batch) > 0 {
				w.logger.Info("New files in inbox", "count", len(batch))
				w.onBatch(batch)
			}

		case <-w.stopChan:
			return
		}
	}
}

// shouldProcessEvent reports create, write and rename-into events for
// visible files directly inside the inbox
func (w *InboxWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	if filepath.Dir(event.Name) != w.dir || utils.IsHiddenFile(event.Name) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (w *InboxWatcher) markPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = struct{}{}

	// Reset the debounce timer
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.requestFlush)
}

func (w *InboxWatcher) requestFlush() {
	select {
	case w.flushChan <- struct{}{}:
	default:
		// flush already scheduled
	}
}

// takeChanged drains the pending set, keeping only regular files that are
// new or modified since they were last reported
func (w *InboxWatcher) takeChanged() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var batch []string
	for path := range w.pending {
		delete(w.pending, path)

		stat, err := os.Stat(path)
		if err != nil || !stat.Mode().IsRegular() {
			continue
		}

		if lastMod, seen := w.lastModTime[path]; seen && !stat.ModTime().After(lastMod) {
			continue
		}
		w.lastModTime[path] = stat.ModTime()
		batch = append(batch, path)
	}
	sort.Strings(batch)
	return batch
}

// IsRunning returns whether the watcher is currently running
func (w *InboxWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Dir returns the absolute inbox path
func (w *InboxWatcher) Dir() string {
	return w.dir
}
