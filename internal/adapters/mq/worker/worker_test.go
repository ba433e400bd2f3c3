package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/puzzlerating/internal/adapters/mq/queue"
	"github.com/okian/puzzlerating/internal/adapters/mq/worker"
	"github.com/okian/puzzlerating/internal/domain/rating"
	"github.com/smartystreets/goconvey/convey"
)

const validLine = `{"successRate":10,"avgHints":0,"avgAttempts":3,"avgRatingDiff":0,"highRatedSuccesses":0,"veryHighRatedSuccesses":0}`

// Mock implementations for testing.
type mockQueue struct {
	jobs chan queue.Job
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 16)}
}

func (mq *mockQueue) Dequeue(_ context.Context) <-chan queue.Job {
	return mq.jobs
}

func (mq *mockQueue) add(seq int, line string) {
	mq.jobs <- queue.Job{Seq: seq, LineNo: seq + 1, Line: []byte(line)}
}

type mockEvaluator struct {
	mu       sync.Mutex
	err      error
	calls    int
	rejected []error
}

func (me *mockEvaluator) Evaluate(_ context.Context, m rating.Metrics) (rating.Breakdown, error) {
	me.mu.Lock()
	defer me.mu.Unlock()
	me.calls++
	if me.err != nil {
		return rating.Breakdown{}, me.err
	}
	return rating.Explain(m), nil
}

func (me *mockEvaluator) Reject(err error) {
	me.mu.Lock()
	defer me.mu.Unlock()
	me.rejected = append(me.rejected, err)
}

func (me *mockEvaluator) counts() (calls, rejected int) {
	me.mu.Lock()
	defer me.mu.Unlock()
	return me.calls, len(me.rejected)
}

func receive(results <-chan worker.Result) worker.Result {
	select {
	case r := <-results:
		return r
	case <-time.After(time.Second):
		panic("timed out waiting for a result")
	}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a new InMemoryWorker", t, func() {
		q := newMockQueue()
		eval := &mockEvaluator{}
		results := make(chan worker.Result, 16)

		convey.Convey("When creating a worker with default options", func() {
			w := worker.NewInMemoryWorker(q.jobs, eval, results)

			convey.Convey("Then it should be created successfully", func() {
				convey.So(w, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When running a worker", func() {
			w := worker.NewInMemoryWorker(q.jobs, eval, results, worker.WithName("test-worker"))
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go w.Run(ctx)

			convey.Convey("And when processing a valid line", func() {
				q.add(4, validLine)
				r := receive(results)

				convey.Convey("Then it should produce the breakdown for that seq", func() {
					convey.So(r.Err, convey.ShouldBeNil)
					convey.So(r.Seq, convey.ShouldEqual, 4)
					convey.So(r.Breakdown.Delta, convey.ShouldEqual, 1740)
				})
			})

			convey.Convey("And when the line is not JSON", func() {
				q.add(0, `{"successRate":`)
				r := receive(results)

				convey.Convey("Then it should be rejected without evaluation", func() {
					convey.So(errors.Is(r.Err, rating.ErrParse), convey.ShouldBeTrue)
					convey.So(r.Err.Error(), convey.ShouldStartWith, "line 1:")
					calls, rejected := eval.counts()
					convey.So(calls, convey.ShouldEqual, 0)
					convey.So(rejected, convey.ShouldEqual, 1)
				})
			})

			convey.Convey("And when a field is missing", func() {
				q.add(2, `{"successRate":10}`)
				r := receive(results)

				convey.Convey("Then it should carry an invalid input error", func() {
					convey.So(errors.Is(r.Err, rating.ErrInvalidInput), convey.ShouldBeTrue)
					convey.So(r.Err.Error(), convey.ShouldStartWith, "line 3:")
				})
			})

			convey.Convey("And when evaluation fails", func() {
				eval.err = fmt.Errorf("evaluate: %w", rating.ErrInvalidInput)
				q.add(1, validLine)
				r := receive(results)

				convey.Convey("Then the error should be passed through", func() {
					convey.So(errors.Is(r.Err, rating.ErrInvalidInput), convey.ShouldBeTrue)
					_, rejected := eval.counts()
					convey.So(rejected, convey.ShouldEqual, 0)
				})
			})

			convey.Convey("And when shutting down", func() {
				err := w.Shutdown(context.Background())

				convey.Convey("Then it should shutdown gracefully", func() {
					convey.So(err, convey.ShouldBeNil)
					convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
				})
			})
		})

		convey.Convey("When context is cancelled", func() {
			w := worker.NewInMemoryWorker(q.jobs, eval, results)
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				w.Run(ctx)
				close(done)
			}()
			cancel()

			convey.Convey("Then worker should stop", func() {
				select {
				case <-done:
					convey.So(true, convey.ShouldBeTrue)
				case <-time.After(time.Second):
					convey.So("worker still running", convey.ShouldBeEmpty)
				}
			})
		})

		convey.Convey("When the job channel is closed", func() {
			w := worker.NewInMemoryWorker(q.jobs, eval, results)
			close(q.jobs)
			done := make(chan struct{})
			go func() {
				w.Run(context.Background())
				close(done)
			}()

			convey.Convey("Then worker should stop", func() {
				select {
				case <-done:
					convey.So(true, convey.ShouldBeTrue)
				case <-time.After(time.Second):
					convey.So("worker still running", convey.ShouldBeEmpty)
				}
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a new worker pool", t, func() {
		eval := &mockEvaluator{}
		results := make(chan worker.Result, 64)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		convey.Convey("When creating a pool with default count", func() {
			pool := worker.NewPool(ctx, 0, newMockQueue(), eval, results)

			convey.Convey("Then it should size itself to the machine", func() {
				convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When processing lines from a real queue", func() {
			q := queue.NewInMemoryQueue(queue.WithCapacity(8))
			pool := worker.NewPool(ctx, 3, q, eval, results)
			pool.Start(ctx)

			const n = 40
			go func() {
				for i := 0; i < n; i++ {
					_ = q.EnqueueWait(ctx, queue.Job{Seq: i, Line: []byte(validLine)})
				}
				_ = q.Close()
			}()
			pool.Wait()
			close(results)

			convey.Convey("Then every seq should be answered once", func() {
				seen := make(map[int]bool)
				for r := range results {
					convey.So(r.Err, convey.ShouldBeNil)
					convey.So(r.Breakdown.Delta, convey.ShouldEqual, 1740)
					seen[r.Seq] = true
				}
				convey.So(len(seen), convey.ShouldEqual, n)
				calls, _ := eval.counts()
				convey.So(calls, convey.ShouldEqual, n)
			})
		})

		convey.Convey("When stopping an idle pool", func() {
			pool := worker.NewPool(ctx, 4, newMockQueue(), eval, results)
			pool.Start(ctx)
			err := pool.Shutdown(context.Background())

			convey.Convey("Then all workers should be stopped", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(pool.Size(), convey.ShouldEqual, 4)
			})
		})
	})
}
