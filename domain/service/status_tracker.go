package service

import (
	"sync"
	"time"

	"github.com/ajkula/notifytrigger/domain/model"
	"github.com/ajkula/notifytrigger/domain/port/inbound"
)

// StatusTracker keeps the live PipelineStatus shared by the funnel, the
// processor and the status adapters
type StatusTracker struct {
	mu        sync.RWMutex
	status    model.PipelineStatus
	listeners []inbound.StatusListener

	// notifyMu orders listener deliveries the same way updates were applied
	notifyMu sync.Mutex
}

func NewStatusTracker(nodeID string) *StatusTracker {
	return &StatusTracker{
		status: model.PipelineStatus{
			NodeID:      nodeID,
			StartedAt:   time.Now().UTC(),
			FunnelState: model.FunnelNotStarted,
		},
		listeners: make([]inbound.StatusListener, 0),
	}
}

// AddListener registers a callback run after each state change.
// Listeners are called synchronously, one snapshot at a time, and must
// neither block nor update the tracker.
func (t *StatusTracker) AddListener(listener inbound.StatusListener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, listener)
}

func (t *StatusTracker) Snapshot() model.PipelineStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

func (t *StatusTracker) SetFunnelState(state model.FunnelState) {
	t.update(true, func(s *model.PipelineStatus) {
		s.FunnelState = state
	})
}

func (t *StatusTracker) SetItemState(path string, state model.ItemState) {
	t.update(state == model.ItemFatalError, func(s *model.PipelineStatus) {
		s.CurrentPath = path
		s.CurrentState = state
	})
}

func (t *StatusTracker) RecordCatchUpEvent() {
	t.update(false, func(s *model.PipelineStatus) { s.CatchUpEvents++ })
}

func (t *StatusTracker) RecordLiveEvent() {
	t.update(false, func(s *model.PipelineStatus) { s.LiveEvents++ })
}

func (t *StatusTracker) RecordIgnoredNotification() {
	t.update(false, func(s *model.PipelineStatus) { s.IgnoredNotifications++ })
}

func (t *StatusTracker) RecordSkipped(path string) {
	t.update(false, func(s *model.PipelineStatus) {
		s.Skipped++
		s.CurrentPath = path
		s.CurrentState = model.ItemSkipped
	})
}

func (t *StatusTracker) RecordProcessed(path string, deleted bool) {
	t.update(false, func(s *model.PipelineStatus) {
		s.Processed++
		if deleted {
			s.Deleted++
		}
		s.CurrentPath = path
		s.CurrentState = model.ItemDone
		s.LastProcessedPath = path
		s.LastProcessedAt = time.Now().UTC()
	})
}

// RecordFatal keeps the first fatal error only
func (t *StatusTracker) RecordFatal(err error) {
	if err == nil {
		return
	}
	t.update(true, func(s *model.PipelineStatus) {
		if s.FatalError == "" {
			s.FatalError = err.Error()
		}
	})
}

func (t *StatusTracker) update(notify bool, apply func(*model.PipelineStatus)) {
	if notify {
		t.notifyMu.Lock()
		defer t.notifyMu.Unlock()
	}

	t.mu.Lock()
	apply(&t.status)
	snapshot := t.status
	var listeners []inbound.StatusListener
	if notify {
		listeners = make([]inbound.StatusListener, len(t.listeners))
		copy(listeners, t.listeners)
	}
	t.mu.Unlock()

	for _, listener := range listeners {
		listener(snapshot)
	}
}
