package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajkula/notifytrigger/domain/port/outbound"
)

type fakeFileWatcher struct {
	events   chan outbound.FileChangeEvent
	errors   chan error
	watchErr error

	mu      sync.Mutex
	watched []string
	stopped bool
}

func newFakeFileWatcher() *fakeFileWatcher {
	return &fakeFileWatcher{
		events: make(chan outbound.FileChangeEvent, 10),
		errors: make(chan error, 10),
	}
}

func (w *fakeFileWatcher) Watch(ctx context.Context, path string) error {
	if w.watchErr != nil {
		return w.watchErr
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watched = append(w.watched, path)
	return nil
}

func (w *fakeFileWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	return nil
}

func (w *fakeFileWatcher) Events() <-chan outbound.FileChangeEvent { return w.events }
func (w *fakeFileWatcher) Errors() <-chan error                    { return w.errors }

func (w *fakeFileWatcher) IsWatching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watched) > 0 && !w.stopped
}

func (w *fakeFileWatcher) GetWatchedPaths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.watched...)
}

type fakeLevelController struct {
	mu     sync.Mutex
	levels []string
}

func (c *fakeLevelController) UpdateLevel(level string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.levels = append(c.levels, level)
}

func (c *fakeLevelController) applied() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.levels...)
}

// levelFile serves whatever level the test last wrote
type levelFile struct {
	mu    sync.Mutex
	level string
	err   error
	reads int
}

func (f *levelFile) set(level string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.level = level
	f.err = err
}

func (f *levelFile) load(path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.level, f.err
}

func (f *levelFile) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func TestConfigWatcherService_ReloadsLevel(t *testing.T) {
	watcher := newFakeFileWatcher()
	levels := &fakeLevelController{}
	file := &levelFile{level: "info"}

	svc := NewConfigWatcherService(watcher, levels, file.load, "INFO", &mockLogger{})

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, svc.Start(context.Background(), configPath))
	defer svc.Stop()

	assert.Equal(t, []string{configPath}, watcher.GetWatchedPaths())

	// same level, nothing to apply
	watcher.events <- outbound.FileChangeEvent{FilePath: configPath, EventType: "modify"}
	require.Eventually(t, func() bool { return file.readCount() == 1 }, time.Second, 10*time.Millisecond)
	assert.Empty(t, levels.applied())

	// other files in the directory are ignored
	watcher.events <- outbound.FileChangeEvent{FilePath: filepath.Join(filepath.Dir(configPath), "other.yaml"), EventType: "modify"}

	file.set("DEBUG", nil)
	watcher.events <- outbound.FileChangeEvent{FilePath: configPath, EventType: "modify"}
	require.Eventually(t, func() bool { return len(levels.applied()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"debug"}, levels.applied())
	assert.Equal(t, 2, file.readCount())

	file.set("", errors.New("yaml: line 3: mapping values are not allowed"))
	watcher.events <- outbound.FileChangeEvent{FilePath: configPath, EventType: "modify"}
	require.Eventually(t, func() bool { return file.readCount() == 3 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"debug"}, levels.applied())

	watcher.errors <- errors.New("inotify overflow")

	file.set("warn", nil)
	watcher.events <- outbound.FileChangeEvent{FilePath: configPath, EventType: "create"}
	require.Eventually(t, func() bool { return len(levels.applied()) == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"debug", "warn"}, levels.applied())
}

func TestConfigWatcherService_StartTwiceAndStop(t *testing.T) {
	watcher := newFakeFileWatcher()
	svc := NewConfigWatcherService(watcher, &fakeLevelController{}, (&levelFile{}).load, "info", &mockLogger{})

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, svc.Start(context.Background(), configPath))
	require.NoError(t, svc.Start(context.Background(), configPath))
	assert.Len(t, watcher.GetWatchedPaths(), 1)

	require.NoError(t, svc.Stop())
	assert.False(t, watcher.IsWatching())

	// second stop is a no-op
	require.NoError(t, svc.Stop())
}

func TestConfigWatcherService_WatchFailure(t *testing.T) {
	watcher := newFakeFileWatcher()
	watcher.watchErr = errors.New("no such directory")

	svc := NewConfigWatcherService(watcher, &fakeLevelController{}, (&levelFile{}).load, "info", &mockLogger{})

	err := svc.Start(context.Background(), "/missing/config.yaml")
	assert.Error(t, err)
	assert.NoError(t, svc.Stop())
}
