package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if c := q.Cap(); c != 2 {
		t.Errorf("expected capacity 2, got %d", c)
	}

	u := Update{Owner: "u1", ItemID: "item1", Rating: 7.5, SessionID: "s1"}
	if err := q.Enqueue(ctx, u); err != nil {
		t.Fatalf("expected enqueue to succeed: %v", err)
	}
	if l := q.Len(); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.ItemID != "item1" || got.Rating != 7.5 || got.Owner != "u1" {
		t.Errorf("unexpected update %+v", got)
	}
	if got.EnqueuedAt.IsZero() {
		t.Error("expected EnqueuedAt to be stamped")
	}
}

func TestInMemoryQueue_Backpressure(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := q.Enqueue(ctx, Update{ItemID: fmt.Sprintf("item%d", i)}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if err := q.Enqueue(ctx, Update{ItemID: "overflow"}); !errors.Is(err, ErrBackpressure) {
		t.Errorf("expected ErrBackpressure, got %v", err)
	}
	if l := q.Len(); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_ClockAndExplicitStamp(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	q := NewInMemoryQueue(WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	earlier := fixed.Add(-time.Hour)
	_ = q.Enqueue(ctx, Update{ItemID: "a"})
	_ = q.Enqueue(ctx, Update{ItemID: "b", EnqueuedAt: earlier})

	ch := q.Dequeue(ctx)
	if a := <-ch; !a.EnqueuedAt.Equal(fixed) {
		t.Errorf("expected clock stamp, got %v", a.EnqueuedAt)
	}
	if b := <-ch; !b.EnqueuedAt.Equal(earlier) {
		t.Errorf("expected caller stamp to be kept, got %v", b.EnqueuedAt)
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	_ = q.Enqueue(ctx, Update{ItemID: "kept"})
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second close should be a no-op: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to report closed")
	}
	if err := q.Enqueue(ctx, Update{ItemID: "late"}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	var drained []string
	for u := range q.Dequeue(ctx) {
		drained = append(drained, u.ItemID)
	}
	if len(drained) != 1 || drained[0] != "kept" {
		t.Errorf("expected queued update to drain after close, got %v", drained)
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := q.Enqueue(ctx, Update{ItemID: "x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	select {
	case _, ok := <-q.Dequeue(ctx):
		if ok {
			t.Error("expected dequeue channel to close on cancelled context")
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue channel did not close")
	}
}

func TestInMemoryQueue_ConcurrentProducers(t *testing.T) {
	const producers, each = 8, 50
	q := NewInMemoryQueue(WithCapacity(producers * each))
	ctx := context.Background()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				if err := q.Enqueue(ctx, Update{ItemID: fmt.Sprintf("%d-%d", p, i)}); err != nil {
					t.Errorf("enqueue: %v", err)
				}
			}
		}(p)
	}
	wg.Wait()
	_ = q.Close()

	seen := make(map[string]bool, producers*each)
	for u := range q.Dequeue(ctx) {
		if seen[u.ItemID] {
			t.Errorf("duplicate update %s", u.ItemID)
		}
		seen[u.ItemID] = true
	}
	if len(seen) != producers*each {
		t.Errorf("expected %d updates, got %d", producers*each, len(seen))
	}
}
