package event

import (
	"log/slog"
	"runtime"
	"sync/atomic"
)

// Default queue sizing.
const (
	DefaultCapacity = 10
	DefaultRetries  = 10
)

// Queue is a bounded FIFO of events. Any number of producers may Push
// concurrently; a single consumer drains it with TryPop.
type Queue struct {
	ch      chan Event
	retries int
	dropped atomic.Uint64
	logger  *slog.Logger

	// retryHook, if set, is called before every retry. Tests only.
	retryHook func(attempt int)
}

// NewQueue creates a queue holding up to capacity events. A full queue is
// retried up to retries times before the event is dropped.
func NewQueue(capacity, retries int, logger *slog.Logger) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if retries < 0 {
		retries = 0
	}
	return &Queue{
		ch:      make(chan Event, capacity),
		retries: retries,
		logger:  logger,
	}
}

// Push enqueues e without blocking. When the queue is full the push is
// retried; after the last retry the event is dropped, logged and
// ErrTimedOut is returned.
func (q *Queue) Push(e Event) error {
	if err := TrySend(q.ch, e, q.retries, q.retryHook); err != nil {
		q.dropped.Add(1)
		if q.logger != nil {
			q.logger.Warn("event dropped, queue full", "event", e.String(), "retries", q.retries)
		}
		return err
	}
	return nil
}

// TrySend sends v on ch without blocking. While ch is full the send is
// retried up to retries times, yielding the processor in between, and then
// abandoned with ErrTimedOut. onRetry, if set, is called before each retry.
func TrySend[T any](ch chan<- T, v T, retries int, onRetry func(attempt int)) error {
	for attempt := 0; ; attempt++ {
		select {
		case ch <- v:
			return nil
		default:
		}
		if attempt >= retries {
			return ErrTimedOut
		}
		if onRetry != nil {
			onRetry(attempt + 1)
		}
		runtime.Gosched()
	}
}

// TryPop removes the oldest event. ok is false when the queue is empty.
func (q *Queue) TryPop() (e Event, ok bool) {
	select {
	case e = <-q.ch:
		return e, true
	default:
		return Event{}, false
	}
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}

// Dropped returns how many events were dropped since creation.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}
