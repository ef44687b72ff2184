// Package worker applies queued rating updates to the store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/calibrate/internal/adapters/mq/queue"
	"github.com/okian/calibrate/pkg/logger"
	"github.com/okian/calibrate/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount  = 4
	defaultMaxRetries   = 3
	defaultRetryBackoff = 50 * time.Millisecond
	maxRetryBackoff     = 2 * time.Second
)

// Update abstracts what workers read off the queue.
type Update = queue.Update

// Updater durably stores an item's new rating.
type Updater interface {
	UpdateRating(ctx context.Context, owner, itemID string, rating float64) error
}

// Queue defines how workers receive updates.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Update
}

// Worker processes updates from a queue.
type Worker interface {
	// Run consumes updates until the queue is drained and closed or ctx is
	// canceled.
	Run(ctx context.Context)

	// Done is closed when Run returns.
	Done() <-chan struct{}
}

// InMemoryWorker applies updates with bounded retries.
type InMemoryWorker struct {
	queue   Queue
	updater Updater
	name    string

	maxRetries int
	backoff    time.Duration
	permanent  func(error) bool

	processed atomic.Int64
	failed    atomic.Int64

	done   chan struct{}
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, updater Updater, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:      q,
		updater:    updater,
		name:       "worker",
		maxRetries: defaultMaxRetries,
		backoff:    defaultRetryBackoff,
		permanent:  func(error) bool { return false },
		done:       make(chan struct{}),
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	updates := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := w.apply(ctx, u); err != nil {
				w.failed.Add(1)
				w.logger.Error(ctx, "rating update dropped",
					logger.String("owner", u.Owner),
					logger.String("item_id", u.ItemID),
					logger.String("session_id", u.SessionID),
					logger.Error(err),
				)
				continue
			}
			w.processed.Add(1)
		}
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// Processed returns how many updates were applied.
func (w *InMemoryWorker) Processed() int64 { return w.processed.Load() }

// Failed returns how many updates were dropped after retries.
func (w *InMemoryWorker) Failed() int64 { return w.failed.Load() }

// apply writes one update, retrying transient errors with exponential backoff.
func (w *InMemoryWorker) apply(ctx context.Context, u Update) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerApplyLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	backoff := w.backoff
	var err error
	for attempt := 0; ; attempt++ {
		err = w.updater.UpdateRating(ctx, u.Owner, u.ItemID, u.Rating)
		if err == nil {
			return nil
		}
		metrics.RecordWorkerError()
		if w.permanent(err) || attempt >= w.maxRetries || errors.Is(err, context.Canceled) {
			break
		}

		metrics.RecordWorkerRetry()
		w.logger.Debug(ctx, "retrying rating update",
			logger.String("item_id", u.ItemID),
			logger.Int("attempt", attempt+1),
			logger.Duration("backoff", backoff),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("apply %s: %w", u.ItemID, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxRetryBackoff {
			backoff = maxRetryBackoff
		}
	}
	return fmt.Errorf("apply %s: %w", u.ItemID, err)
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	cancel   context.CancelFunc
	started  bool
	stopOnce sync.Once

	logger logger.Logger
}

// NewPool creates a worker pool. opts are applied to every worker.
func NewPool(workerCount int, q Queue, updater Updater, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Nop(),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{}, opts...)
		wopts = append(wopts, WithName("worker-"+strconv.Itoa(i)))
		pool.workers[i] = NewInMemoryWorker(q, updater, wopts...)
	}
	pool.logger = pool.workers[0].logger
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.started = true
	for _, w := range p.workers {
		go w.Run(runCtx)
	}
	metrics.UpdateWorkerActiveCount(len(p.workers))
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns the number of updates applied by all workers.
func (p *Pool) Processed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Processed()
	}
	return n
}

// Failed returns the number of updates dropped by all workers.
func (p *Pool) Failed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Failed()
	}
	return n
}

// Shutdown closes the queue and lets workers drain it. Workers still running
// when ctx expires are cancelled; their in-flight updates are lost.
func (p *Pool) Shutdown(ctx context.Context) error {
	var err error
	p.stopOnce.Do(func() {
		if closer, ok := p.queue.(interface{ Close() error }); ok {
			if cerr := closer.Close(); cerr != nil {
				p.logger.Error(ctx, "error closing queue", logger.Error(cerr))
			}
		}

		if !p.started {
			return
		}
		for i, w := range p.workers {
			select {
			case <-w.Done():
			case <-ctx.Done():
				p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
				err = fmt.Errorf("shutdown timed out: %w", ctx.Err())
			}
			if err != nil {
				break
			}
		}
		if p.cancel != nil {
			p.cancel()
		}
		for _, w := range p.workers {
			<-w.Done()
		}
		metrics.UpdateWorkerActiveCount(0)
	})
	return err
}
