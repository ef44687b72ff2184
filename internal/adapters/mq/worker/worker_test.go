package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/calibrate/internal/adapters/mq/queue"
	worker "github.com/okian/calibrate/internal/adapters/mq/worker"
	"github.com/smartystreets/goconvey/convey"
)

var errNotFound = errors.New("not found")

// mockUpdater records writes and fails a configurable number of times per item.
type mockUpdater struct {
	mu       sync.Mutex
	ratings  map[string]float64
	attempts map[string]int
	failures map[string]int
	errs     map[string]error
}

func newMockUpdater() *mockUpdater {
	return &mockUpdater{
		ratings:  make(map[string]float64),
		attempts: make(map[string]int),
		failures: make(map[string]int),
		errs:     make(map[string]error),
	}
}

func (m *mockUpdater) UpdateRating(_ context.Context, owner, itemID string, rating float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := owner + "/" + itemID
	m.attempts[key]++
	if err, ok := m.errs[key]; ok {
		return err
	}
	if m.failures[key] > 0 {
		m.failures[key]--
		return errors.New("transient")
	}
	m.ratings[key] = rating
	return nil
}

func (m *mockUpdater) rating(key string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.ratings[key]
	return r, ok
}

func (m *mockUpdater) attemptsFor(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts[key]
}

func TestWorker(t *testing.T) {
	convey.Convey("Given a worker reading from a queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		up := newMockUpdater()
		w := worker.NewInMemoryWorker(q, up,
			worker.WithName("test"),
			worker.WithRetries(2, time.Millisecond),
			worker.WithPermanentError(func(err error) bool { return errors.Is(err, errNotFound) }),
		)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When an update is enqueued", func() {
			convey.So(q.Enqueue(ctx, queue.Update{Owner: "u", ItemID: "a", Rating: 8.2}), convey.ShouldBeNil)
			_ = q.Close()
			<-w.Done()

			convey.Convey("Then it is applied to the updater", func() {
				r, ok := up.rating("u/a")
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(r, convey.ShouldEqual, 8.2)
				convey.So(w.Processed(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the updater fails transiently", func() {
			up.failures["u/b"] = 2
			_ = q.Enqueue(ctx, queue.Update{Owner: "u", ItemID: "b", Rating: 4.4})
			_ = q.Close()
			<-w.Done()

			convey.Convey("Then the update is retried until it succeeds", func() {
				r, _ := up.rating("u/b")
				convey.So(r, convey.ShouldEqual, 4.4)
				convey.So(up.attemptsFor("u/b"), convey.ShouldEqual, 3)
				convey.So(w.Failed(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the updater keeps failing", func() {
			up.failures["u/c"] = 10
			_ = q.Enqueue(ctx, queue.Update{Owner: "u", ItemID: "c", Rating: 3})
			_ = q.Close()
			<-w.Done()

			convey.Convey("Then it gives up after the retry budget", func() {
				convey.So(up.attemptsFor("u/c"), convey.ShouldEqual, 3)
				convey.So(w.Failed(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the error is permanent", func() {
			up.errs["u/gone"] = fmt.Errorf("lookup: %w", errNotFound)
			_ = q.Enqueue(ctx, queue.Update{Owner: "u", ItemID: "gone", Rating: 3})
			_ = q.Enqueue(ctx, queue.Update{Owner: "u", ItemID: "d", Rating: 6})
			_ = q.Close()
			<-w.Done()

			convey.Convey("Then it is not retried and later updates still apply", func() {
				convey.So(up.attemptsFor("u/gone"), convey.ShouldEqual, 1)
				_, ok := up.rating("u/d")
				convey.So(ok, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the context is cancelled", func() {
			cancel()
			select {
			case <-w.Done():
				convey.So(true, convey.ShouldBeTrue)
			case <-time.After(time.Second):
				convey.So("worker still running", convey.ShouldBeEmpty)
			}
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of workers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(1000))
		up := newMockUpdater()
		pool := worker.NewPool(4, q, up, worker.WithRetries(0, time.Millisecond))
		convey.So(pool.Size(), convey.ShouldEqual, 4)

		ctx := context.Background()
		pool.Start(ctx)

		convey.Convey("When many updates are queued and the pool shuts down", func() {
			for i := 0; i < 200; i++ {
				convey.So(q.Enqueue(ctx, queue.Update{Owner: "u", ItemID: fmt.Sprintf("i%d", i), Rating: 5}), convey.ShouldBeNil)
			}
			sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			err := pool.Shutdown(sctx)

			convey.Convey("Then the queue is drained before workers exit", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(pool.Processed(), convey.ShouldEqual, 200)
				convey.So(pool.Failed(), convey.ShouldEqual, 0)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
				convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a pool that was never started", t, func() {
		q := queue.NewInMemoryQueue()
		pool := worker.NewPool(0, q, newMockUpdater())

		convey.Convey("Then shutdown only closes the queue", func() {
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
			convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
			convey.So(q.IsClosed(), convey.ShouldBeTrue)
		})
	})
}
