// Package queue buffers rating updates between the calibration flow and the
// workers that write them to the store.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/calibrate/internal/domain/model"
	"github.com/okian/calibrate/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 10000
)

// Update is the payload flowing through the queue.
type Update = model.RatingUpdate

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an update without blocking. It returns ErrBackpressure
	// when the queue is full and ErrClosed after Close.
	Enqueue(ctx context.Context, u Update) error

	// Dequeue returns a channel that receives updates as they become
	// available. The channel is closed when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Update

	// Len returns the current number of queued updates.
	Len() int

	// Cap returns the configured capacity.
	Cap() int

	// Close stops accepting updates. Queued updates remain readable.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	updates  chan Update
	capacity int
	mu       sync.RWMutex
	closed   bool
	now      func() time.Time
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.updates = make(chan Update, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds an update to the queue, stamping EnqueuedAt when unset.
func (q *InMemoryQueue) Enqueue(ctx context.Context, u Update) error {
	if u.EnqueuedAt.IsZero() {
		u.EnqueuedAt = q.now()
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError("context_cancelled")
		return err
	}

	select {
	case q.updates <- u:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.updates))
		return nil
	default:
		metrics.RecordQueueEnqueueError("queue_full")
		return ErrBackpressure
	}
}

// Dequeue returns a channel that will receive updates as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Update {
	out := make(chan Update)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-q.updates:
				if !ok {
					return
				}
				select {
				case out <- u:
					metrics.UpdateQueueSize(len(q.updates))
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Len returns the current number of queued updates.
func (q *InMemoryQueue) Len() int {
	return len(q.updates)
}

// Cap returns the queue capacity.
func (q *InMemoryQueue) Cap() int {
	return q.capacity
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.updates)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
