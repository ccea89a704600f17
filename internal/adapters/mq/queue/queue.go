// Package queue decouples cue emission on the tick path from sink delivery.
//
// Enqueue never blocks: a full or closed queue rejects the event and the
// tick moves on.
package queue

import (
	"context"
	"sync"

	"github.com/okian/repsense/internal/domain/cue"
	"github.com/okian/repsense/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 64
	defaultBufferSize    = 64
)

// Event is the payload flowing through the queue.
type Event = cue.Event

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an event to the queue.
	// Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, e Event) bool

	// Dequeue returns a channel that receives events as they become available.
	// The channel is closed when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Event

	// Len returns the current number of queued events.
	Len(ctx context.Context) int

	// Drain discards every queued event and returns how many were dropped.
	Drain(ctx context.Context) int

	// Close stops accepting events.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	events     chan Event
	capacity   int
	bufferSize int
	mu         sync.RWMutex
	closed     bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity:   defaultQueueCapacity,
		bufferSize: defaultBufferSize,
	}

	for _, opt := range opts {
		opt(q)
	}
	if q.bufferSize < q.capacity {
		q.bufferSize = q.capacity
	}

	q.events = make(chan Event, q.bufferSize)
	metrics.UpdateDispatchQueueSize(0)

	return q
}

// Enqueue adds an event to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, e Event) bool { //nolint:gocritic // hugeParam: Event is passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordDispatchDropped("closed")
		return false
	}

	if len(q.events) >= q.capacity {
		metrics.RecordDispatchDropped("full")
		return false
	}

	select {
	case q.events <- e:
		metrics.UpdateDispatchQueueSize(len(q.events))
		return true
	case <-ctx.Done():
		metrics.RecordDispatchDropped("context_cancelled")
		return false
	default:
		metrics.RecordDispatchDropped("full")
		return false
	}
}

// Dequeue returns a channel that will receive events as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		for event := range q.events {
			select {
			case out <- event:
				metrics.UpdateDispatchQueueSize(len(q.events))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued events.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	size := len(q.events)
	metrics.UpdateDispatchQueueSize(size)
	return size
}

// Drain discards every queued event.
func (q *InMemoryQueue) Drain(ctx context.Context) int {
	n := 0
	for {
		select {
		case _, ok := <-q.events:
			if !ok {
				metrics.UpdateDispatchQueueSize(0)
				return n
			}
			n++
		default:
			metrics.UpdateDispatchQueueSize(0)
			return n
		}
	}
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	close(q.events)
	q.closed = true

	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
