package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func job(seq int) Job {
	return Job{Seq: seq, Line: []byte(fmt.Sprintf(`{"seq":%d}`, seq))}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	// Test empty queue
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	// Test enqueue
	if !q.Enqueue(ctx, job(1)) {
		t.Error("expected enqueue to succeed")
	}

	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	// Test dequeue
	jobs := q.Dequeue(ctx)
	got := <-jobs
	if got.Seq != 1 || string(got.Line) != `{"seq":1}` {
		t.Errorf("expected job 1, got %+v", got)
	}

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, job(1)) || !q.Enqueue(ctx, job(2)) {
		t.Fatal("expected enqueue to succeed")
	}

	// Try to enqueue when full
	if q.Enqueue(ctx, job(3)) {
		t.Error("expected enqueue to fail when full")
	}

	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_EnqueueWait(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx := context.Background()

	if err := q.EnqueueWait(ctx, job(1)); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}

	// A full queue blocks until the context ends.
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := q.EnqueueWait(short, job(2)); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	// Draining makes room for a waiting producer.
	jobs := q.Dequeue(ctx)
	done := make(chan error, 1)
	go func() { done <- q.EnqueueWait(ctx, job(3)) }()

	if got := <-jobs; got.Seq != 1 {
		t.Errorf("expected job 1, got %d", got.Seq)
	}
	if err := <-done; err != nil {
		t.Errorf("expected waiting enqueue to succeed, got %v", err)
	}
	if got := <-jobs; got.Seq != 3 {
		t.Errorf("expected job 3, got %d", got.Seq)
	}

	_ = q.Close()
	if err := q.EnqueueWait(ctx, job(4)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(16))
	ctx := context.Background()
	numProducers := 10
	numJobs := 100

	var consumed sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[int]bool)
	jobs := q.Dequeue(ctx)
	for i := 0; i < 4; i++ {
		consumed.Add(1)
		go func() {
			defer consumed.Done()
			for j := range jobs {
				mu.Lock()
				seen[j.Seq] = true
				mu.Unlock()
			}
		}()
	}

	var produced sync.WaitGroup
	for i := 0; i < numProducers; i++ {
		produced.Add(1)
		go func(id int) {
			defer produced.Done()
			for j := 0; j < numJobs; j++ {
				if err := q.EnqueueWait(ctx, job(id*numJobs+j)); err != nil {
					t.Errorf("enqueue failed: %v", err)
					return
				}
			}
		}(i)
	}

	produced.Wait()
	_ = q.Close()
	consumed.Wait()

	if len(seen) != numProducers*numJobs {
		t.Errorf("expected %d distinct jobs, got %d", numProducers*numJobs, len(seen))
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if !q.Enqueue(ctx, job(1)) || !q.Enqueue(ctx, job(2)) {
		t.Fatal("expected enqueue to succeed")
	}

	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}

	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}

	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}

	// Try to enqueue after closing (should fail)
	if q.Enqueue(ctx, job(3)) {
		t.Error("expected enqueue to fail after closing")
	}

	// Queued jobs are still delivered, then the channel closes.
	var got []int
	timeout := time.After(time.Second)
	jobs := q.Dequeue(ctx)
	for {
		select {
		case j, ok := <-jobs:
			if !ok {
				if len(got) != 2 || got[0] != 1 || got[1] != 2 {
					t.Errorf("expected jobs [1 2], got %v", got)
				}
				// Close again should not error
				if err := q.Close(); err != nil {
					t.Errorf("expected second close to succeed, got error: %v", err)
				}
				return
			}
			got = append(got, j.Seq)
		case <-timeout:
			t.Fatal("expected dequeue channel to be closed within timeout")
		}
	}
}
