package filewatcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ajkula/notifytrigger/domain/port/outbound"
)

// DefaultDebounce groups the bursts of writes editors produce on save
const DefaultDebounce = 500 * time.Millisecond

// FsWatcher reports debounced create and write events for watched files.
// It watches the parent directory so atomic saves (write then rename) are seen.
type FsWatcher struct {
	watcher     *fsnotify.Watcher
	debounce    time.Duration
	events      chan outbound.FileChangeEvent
	errors      chan error
	debouncer   map[string]*time.Timer
	watchedDirs map[string]bool
	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	running     bool
	stopped     bool
	closed      chan struct{}
}

var _ outbound.FileWatcher = (*FsWatcher)(nil)

func NewFSWatcher(debounce time.Duration) (*FsWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	ctx, cancel := context.WithCancel(context.Background())

	fw := &FsWatcher{
		watcher:     fsWatcher,
		debounce:    debounce,
		events:      make(chan outbound.FileChangeEvent, 100),
		errors:      make(chan error, 10),
		debouncer:   make(map[string]*time.Timer),
		watchedDirs: make(map[string]bool),
		ctx:         ctx,
		cancel:      cancel,
		closed:      make(chan struct{}),
	}

	go fw.filterEvents()

	return fw, nil
}

func (fw *FsWatcher) Watch(ctx context.Context, path string) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.stopped {
		return fmt.Errorf("watcher is stopped")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for %s: %w", path, err)
	}

	// for file paths, we need to watch the directory and filter events
	dir := filepath.Dir(absPath)

	if fw.watchedDirs[dir] {
		return nil
	}

	if err := fw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	fw.watchedDirs[dir] = true
	fw.running = true

	return nil
}

// Stop releases the fsnotify watcher. Events and Errors are not closed,
// consumers stop on their own context.
func (fw *FsWatcher) Stop() error {
	fw.mu.Lock()
	if fw.stopped {
		fw.mu.Unlock()
		return nil
	}
	fw.stopped = true
	fw.running = false
	fw.cancel()
	fw.cleanupDebouncers()
	fw.mu.Unlock()

	err := fw.watcher.Close()
	<-fw.closed

	if err != nil {
		return fmt.Errorf("failed to close fsnotify watcher: %w", err)
	}
	return nil
}

func (fw *FsWatcher) Events() <-chan outbound.FileChangeEvent {
	return fw.events
}

func (fw *FsWatcher) Errors() <-chan error {
	return fw.errors
}

func (fw *FsWatcher) IsWatching() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.running
}

func (fw *FsWatcher) GetWatchedPaths() []string {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	paths := make([]string, 0, len(fw.watchedDirs))
	for path := range fw.watchedDirs {
		paths = append(paths, path)
	}
	return paths
}

// filterEvents keeps Write and Create events and debounces them per file
func (fw *FsWatcher) filterEvents() {
	defer close(fw.closed)

	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				fw.debounceEvent(event)
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			select {
			case fw.errors <- err:
			case <-fw.ctx.Done():
				return
			}
		}
	}
}

// debounceEvent restarts the per-file timer; only the last event of a burst is emitted
func (fw *FsWatcher) debounceEvent(event fsnotify.Event) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.stopped {
		return
	}

	if timer, exists := fw.debouncer[event.Name]; exists {
		timer.Stop()
	}

	fw.debouncer[event.Name] = time.AfterFunc(fw.debounce, func() {
		fw.mu.Lock()
		delete(fw.debouncer, event.Name)
		fw.mu.Unlock()

		select {
		case fw.events <- convertEvent(event):
		case <-fw.ctx.Done():
		}
	})
}

// cleanupDebouncers stops and removes all debounce timers, mu must be held
func (fw *FsWatcher) cleanupDebouncers() {
	for _, timer := range fw.debouncer {
		timer.Stop()
	}
	fw.debouncer = make(map[string]*time.Timer)
}

func convertEvent(event fsnotify.Event) outbound.FileChangeEvent {
	eventType := "modify"
	if event.Has(fsnotify.Create) {
		eventType = "create"
	}

	return outbound.FileChangeEvent{
		FilePath:  event.Name,
		EventType: eventType,
	}
}
