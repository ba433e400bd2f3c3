// Package worker runs batch jobs through the rating evaluator.
package worker

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/puzzlerating/internal/adapters/mq/queue"
	"github.com/okian/puzzlerating/internal/adapters/wire"
	"github.com/okian/puzzlerating/internal/domain/rating"
	"github.com/okian/puzzlerating/pkg/logger"
	"github.com/okian/puzzlerating/pkg/metrics"
)

// Default worker configuration constants.
const (
	poolShutdownTimeout = 30 * time.Second
)

// Evaluator computes a breakdown for decoded metrics and counts inputs that
// never reach it.
type Evaluator interface {
	Evaluate(ctx context.Context, m rating.Metrics) (rating.Breakdown, error)
	Reject(err error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Result is the outcome of one job. Exactly one of Breakdown and Err is
// meaningful.
type Result struct {
	Seq       int
	Breakdown rating.Breakdown
	Err       error
}

// Worker processes jobs until the queue closes or it is stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for decoding and evaluating jobs.
type InMemoryWorker struct {
	jobs      <-chan queue.Job
	evaluator Evaluator
	results   chan<- Result
	name      string

	// Shutdown control
	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	// Logging
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker reading from jobs.
func NewInMemoryWorker(jobs <-chan queue.Job, evaluator Evaluator, results chan<- Result, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		jobs:      jobs,
		evaluator: evaluator,
		results:   results,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Nop(),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-w.jobs:
			if !ok {
				return
			}
			res := w.process(ctx, job)
			select {
			case w.results <- res:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process decodes and evaluates a single job.
func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) Result {
	m, err := wire.Decode(bytes.NewReader(job.Line))
	if err != nil {
		err = fmt.Errorf("line %d: %w", job.LineNo, err)
		w.evaluator.Reject(err)
		w.logger.Debug(ctx, "job rejected", logger.Int("seq", job.Seq), logger.Error(err))
		return Result{Seq: job.Seq, Err: err}
	}

	b, err := w.evaluator.Evaluate(ctx, m)
	if err != nil {
		return Result{Seq: job.Seq, Err: fmt.Errorf("line %d: %w", job.LineNo, err)}
	}
	return Result{Seq: job.Seq, Breakdown: b}
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	logger  logger.Logger
}

// NewPool creates a worker pool. A non-positive workerCount defaults to the
// number of CPUs.
func NewPool(ctx context.Context, workerCount int, q Queue, evaluator Evaluator, results chan<- Result, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		logger:  logger.Nop(),
	}

	jobs := q.Dequeue(ctx)
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(jobs, evaluator, results, wopts...)
	}
	if len(pool.workers) > 0 {
		pool.logger = pool.workers[0].logger
	}

	metrics.UpdateWorkerActiveCount(0)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
	metrics.UpdateWorkerActiveCount(len(p.workers))
}

// Wait blocks until every worker has returned.
func (p *Pool) Wait() {
	for _, worker := range p.workers {
		<-worker.done
	}
	metrics.UpdateWorkerActiveCount(0)
}

// Shutdown stops every worker, waiting at most poolShutdownTimeout.
func (p *Pool) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var firstErr error
	for i, worker := range p.workers {
		if err := worker.Shutdown(shutdownCtx); err != nil && firstErr == nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			firstErr = err
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	return firstErr
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}
