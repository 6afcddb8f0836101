package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ajkula/notifytrigger/domain/model"
	"github.com/ajkula/notifytrigger/domain/port/outbound"
)

var errFunnelAlreadyStarted = errors.New("event funnel already started")

// EventFunnel merges the initial listing of the watched directories with the
// live notification stream into one ordered EventQueue.
//
// Catch-up runs to completion, directory by directory in configured order,
// before the live subscription is opened, so no live event can overtake a
// catch-up event.
type EventFunnel struct {
	directory        outbound.RemoteFileDirectory
	source           outbound.NotificationSource
	patterns         []*model.InterestPattern
	watchDirectories []string
	tracker          *StatusTracker
	logger           outbound.Logger

	mu    sync.RWMutex
	state model.FunnelState
}

func NewEventFunnel(
	directory outbound.RemoteFileDirectory,
	source outbound.NotificationSource,
	patterns []*model.InterestPattern,
	watchDirectories []string,
	tracker *StatusTracker,
	logger outbound.Logger,
) *EventFunnel {
	return &EventFunnel{
		directory:        directory,
		source:           source,
		patterns:         patterns,
		watchDirectories: watchDirectories,
		tracker:          tracker,
		logger:           logger,
		state:            model.FunnelNotStarted,
	}
}

func (f *EventFunnel) State() model.FunnelState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// Run performs catch-up then forwards live events until the subscription
// ends, ctx is cancelled, or an error occurs. On error the queue is failed,
// cancel is called with the error, and the error is returned.
func (f *EventFunnel) Run(ctx context.Context, cancel context.CancelCauseFunc, queue *model.EventQueue) error {
	f.mu.Lock()
	if f.state != model.FunnelNotStarted {
		f.mu.Unlock()
		return errFunnelAlreadyStarted
	}
	f.state = model.FunnelCatchingUp
	f.mu.Unlock()
	f.tracker.SetFunnelState(model.FunnelCatchingUp)

	if err := f.catchUp(ctx, queue); err != nil {
		if ctx.Err() != nil {
			f.logger.Info("Catch-up interrupted by cancellation")
			return f.stopped()
		}
		return f.fail(err, queue, cancel)
	}

	if ctx.Err() != nil {
		return f.stopped()
	}

	stream, err := f.source.Connect(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return f.stopped()
		}
		return f.fail(err, queue, cancel)
	}

	f.setState(model.FunnelSubscribed)
	f.logger.Info("Subscribed to change notifications")

	err = f.forward(ctx, stream, queue)
	closeErr := stream.Close()

	switch {
	case err == nil:
		if closeErr != nil {
			f.logger.Warn("Failed to close notification stream", "error", closeErr)
		}
		f.setState(model.FunnelCompleted)
		f.logger.Warn("Notification stream ended by the server")
		queue.Complete()
		return nil
	case ctx.Err() != nil:
		f.logger.Info("Notification subscription stopped")
		return f.stopped()
	default:
		return f.fail(err, queue, cancel)
	}
}

func (f *EventFunnel) catchUp(ctx context.Context, queue *model.EventQueue) error {
	for _, dir := range f.watchDirectories {
		files, err := f.directory.ListFiles(ctx, dir)
		if err != nil {
			return fmt.Errorf("initial load of %s: %w", dir, err)
		}

		matched := 0
		for _, file := range files {
			if !model.Matches(file.FullPath(), f.patterns) {
				continue
			}

			event, err := model.NewChangeEvent(file.FullPath())
			if err != nil {
				return err
			}
			if err := queue.Enqueue(ctx, event); err != nil {
				return err
			}
			f.tracker.RecordCatchUpEvent()
			matched++
		}

		f.logger.Info("Initial load of directory done",
			"directory", dir, "files", len(files), "queued", matched)
	}
	return nil
}

func (f *EventFunnel) forward(ctx context.Context, stream outbound.NotificationStream, queue *model.EventQueue) error {
	for {
		notification, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if !notification.IsFileChanged() {
			f.tracker.RecordIgnoredNotification()
			f.logger.Debug("Ignoring notification", "type", notification.Type)
			continue
		}

		event, err := model.DecodeChangeEvent(notification.Body)
		if err != nil {
			return err
		}

		f.logger.Debug("Received file changed event",
			"eventId", event.ID().String(), "path", event.FullPath())

		if err := queue.Enqueue(ctx, event); err != nil {
			return err
		}
		f.tracker.RecordLiveEvent()
	}
}

func (f *EventFunnel) fail(err error, queue *model.EventQueue, cancel context.CancelCauseFunc) error {
	f.setState(model.FunnelFailed)
	f.tracker.RecordFatal(err)
	queue.Fail(err)
	cancel(err)
	f.logger.Error("Event funnel failed", "error", err)
	return err
}

// stopped ends a cancelled run. The queue is left to the cancellation.
func (f *EventFunnel) stopped() error {
	f.setState(model.FunnelCompleted)
	return nil
}

func (f *EventFunnel) setState(state model.FunnelState) {
	f.mu.Lock()
	f.state = state
	f.mu.Unlock()
	f.tracker.SetFunnelState(state)
}
