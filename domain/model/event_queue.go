package model

import (
	"context"
	"sync"
)

// EventQueue is the single hand-off point between the event funnel and the
// file processor. It is unbounded, strictly FIFO, and can be closed either
// normally (Complete, remaining items are still delivered) or with an error
// (Fail, every pending and future read returns that error at once).
type EventQueue struct {
	mu     sync.Mutex
	items  []*ChangeEvent
	signal chan struct{}
	done   chan struct{}
	closed bool
	err    error
}

// NewEventQueue creates an empty open queue
func NewEventQueue() *EventQueue {
	return &EventQueue{
		items:  make([]*ChangeEvent, 0),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Enqueue appends an event. Writes after ctx is cancelled or after the queue
// was closed are dropped without error.
func (q *EventQueue) Enqueue(ctx context.Context, event *ChangeEvent) error {
	if ctx.Err() != nil {
		return nil
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.items = append(q.items, event)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
		// reader already has a pending wake-up
	}
	return nil
}

// Dequeue blocks until an event is available, the queue is closed, or ctx is done.
// It returns the failure error of a failed queue, ErrQueueCompleted once a
// completed queue is drained, and context.Cause(ctx) on cancellation.
func (q *EventQueue) Dequeue(ctx context.Context) (*ChangeEvent, error) {
	for {
		q.mu.Lock()
		if q.err != nil {
			err := q.err
			q.mu.Unlock()
			return nil, err
		}
		if len(q.items) > 0 {
			event := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return event, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueCompleted
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		case <-q.done:
		case <-q.signal:
		}
	}
}

// Complete closes the queue normally
func (q *EventQueue) Complete() {
	q.close(nil)
}

// Fail closes the queue with err. Only the first close is recorded.
func (q *EventQueue) Fail(err error) {
	if err == nil {
		err = ErrQueueClosed
	}
	q.close(err)
}

// Err returns the failure error, nil if the queue is open or completed normally
func (q *EventQueue) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// Len returns the number of buffered events
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *EventQueue) close(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.err = err
	if err != nil {
		q.items = nil
	}
	close(q.done)
}
