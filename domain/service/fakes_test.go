package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/ajkula/notifytrigger/domain/model"
	"github.com/ajkula/notifytrigger/domain/port/outbound"
)

type mockLogger struct{}

func (m *mockLogger) Error(msg string, args ...any) {}
func (m *mockLogger) Warn(msg string, args ...any)  {}
func (m *mockLogger) Info(msg string, args ...any)  {}
func (m *mockLogger) Debug(msg string, args ...any) {}

// callLog records the order of remote calls across fakes
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type deletion struct {
	name string
	dir  string
}

type fakeDirectory struct {
	log       *callLog
	listings  map[string][]*model.RemoteFileInfo
	listErr   error
	contents  map[string][]byte
	chunkSize int
	deleteErr error

	mu      sync.Mutex
	deleted []deletion
}

func newFakeDirectory(log *callLog) *fakeDirectory {
	return &fakeDirectory{
		log:       log,
		listings:  make(map[string][]*model.RemoteFileInfo),
		contents:  make(map[string][]byte),
		chunkSize: 2,
	}
}

func (d *fakeDirectory) ListFiles(ctx context.Context, dirPath string) ([]*model.RemoteFileInfo, error) {
	d.log.add("list " + dirPath)
	if d.listErr != nil {
		return nil, d.listErr
	}
	return d.listings[dirPath], nil
}

func (d *fakeDirectory) DownloadFile(ctx context.Context, filePath string, handle outbound.ChunkHandler) error {
	d.log.add("download " + filePath)
	data, ok := d.contents[filePath]
	if !ok {
		return fmt.Errorf("%w: %s not found", model.ErrTransport, filePath)
	}
	for start := 0; start < len(data); start += d.chunkSize {
		end := start + d.chunkSize
		if end > len(data) {
			end = len(data)
		}
		if err := handle(data[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (d *fakeDirectory) DeleteResource(ctx context.Context, name, dirPath string) error {
	d.log.add("delete " + dirPath + "/" + name)
	if d.deleteErr != nil {
		return d.deleteErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deleted = append(d.deleted, deletion{name: name, dir: dirPath})
	return nil
}

func (d *fakeDirectory) deletions() []deletion {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]deletion(nil), d.deleted...)
}

type streamItem struct {
	notification *model.Notification
	err          error
}

// fakeStream hands out whatever the test pushes on items
type fakeStream struct {
	items  chan streamItem
	closed chan struct{}
	once   sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		items:  make(chan streamItem, 16),
		closed: make(chan struct{}),
	}
}

func (s *fakeStream) push(kind, body string) {
	s.items <- streamItem{notification: &model.Notification{Type: kind, Body: []byte(body)}}
}

func (s *fakeStream) fail(err error) {
	s.items <- streamItem{err: err}
}

func (s *fakeStream) Next(ctx context.Context) (*model.Notification, error) {
	select {
	case item := <-s.items:
		return item.notification, item.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type fakeSource struct {
	log        *callLog
	stream     *fakeStream
	connectErr error
}

func (s *fakeSource) Connect(ctx context.Context) (outbound.NotificationStream, error) {
	s.log.add("connect")
	if s.connectErr != nil {
		return nil, s.connectErr
	}
	return s.stream, nil
}

type fakeTrigger struct {
	log      *callLog
	outcome  *model.ProcessingOutcome
	startErr error
	// block makes Execute wait for ctx, as a long running command would
	block   bool
	started chan string

	mu    sync.Mutex
	files []string
}

func newFakeTrigger() *fakeTrigger {
	return &fakeTrigger{
		outcome: &model.ProcessingOutcome{Succeeded: true},
		started: make(chan string, 16),
	}
}

func (t *fakeTrigger) Execute(ctx context.Context, command, filePath string, sink outbound.OutputSink) (*model.ProcessingOutcome, error) {
	t.mu.Lock()
	t.files = append(t.files, filePath)
	t.mu.Unlock()
	if t.log != nil {
		t.log.add("trigger " + filepath.Base(filePath))
	}
	t.started <- filePath

	if t.startErr != nil {
		return nil, t.startErr
	}
	sink.Stdout("processing " + filePath)

	if t.block {
		<-ctx.Done()
		return &model.ProcessingOutcome{Succeeded: false, ExitCode: -1}, nil
	}
	return t.outcome, nil
}

func (t *fakeTrigger) executed() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.files...)
}

func remoteFile(name, dir string) *model.RemoteFileInfo {
	info, err := model.NewRemoteFileInfo(name, dir, 10, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	if err != nil {
		panic(err)
	}
	return info
}

func fileChanged(path string) string {
	return fmt.Sprintf(`{"eventType":"FileChangedEvent","fullPath":%q}`, path)
}
