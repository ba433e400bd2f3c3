package service

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/okian/puzzlerating/internal/adapters/mq/queue"
	"github.com/okian/puzzlerating/internal/adapters/mq/worker"
	"github.com/okian/puzzlerating/internal/adapters/wire"
	"github.com/okian/puzzlerating/pkg/logger"
)

// Batch defaults.
const (
	maxBatchLineBytes    = 1 << 20
	defaultBatchCapacity = 1024
)

// BatchOptions tunes a batch run. Zero values select defaults.
type BatchOptions struct {
	// Workers is the number of concurrent evaluators; zero means one per CPU.
	Workers int
	// QueueCapacity bounds how many lines are read ahead of evaluation.
	QueueCapacity int
}

// BatchStats summarizes a batch run.
type BatchStats struct {
	Records  int           `json:"records"`
	OK       int           `json:"ok"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Batch evaluates newline-delimited metrics records from r and writes one
// result line per record to w, in input order. Blank lines are skipped.
// Per-record failures are written in-band and do not fail the batch; the
// returned error reports only read, write and cancellation failures.
func (s *Service) Batch(ctx context.Context, r io.Reader, w io.Writer, opts BatchOptions) (BatchStats, error) {
	start := time.Now()
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = defaultBatchCapacity
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	q := queue.NewInMemoryQueue(queue.WithCapacity(opts.QueueCapacity))
	results := make(chan worker.Result, opts.QueueCapacity)
	pool := worker.NewPool(runCtx, opts.Workers, q, s, results, worker.WithLogger(s.logger))
	pool.Start(runCtx)

	readErr := make(chan error, 1)
	go func() {
		readErr <- feed(runCtx, r, q)
	}()
	go func() {
		pool.Wait()
		close(results)
	}()

	var (
		stats    BatchStats
		writeErr error
		next     int
		pending  = make(map[int]worker.Result)
	)
	for res := range results {
		pending[res.Seq] = res
		for writeErr == nil {
			p, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++

			if err := wire.EncodeLine(w, p.Breakdown.Delta, p.Err); err != nil {
				writeErr = err
				cancel()
				break
			}
			stats.Records++
			if p.Err != nil {
				stats.Failed++
			} else {
				stats.OK++
			}
		}
	}
	stats.Duration = time.Since(start)

	s.logger.Info(ctx, "batch finished",
		logger.Int("records", stats.Records),
		logger.Int("ok", stats.OK),
		logger.Int("failed", stats.Failed),
		logger.Int("workers", pool.Size()),
		logger.Duration("duration", stats.Duration),
	)

	switch err := <-readErr; {
	case writeErr != nil:
		return stats, writeErr
	case ctx.Err() != nil:
		return stats, fmt.Errorf("batch: %w", ctx.Err())
	case err != nil:
		return stats, err
	}
	return stats, nil
}

// feed scans r line by line into q and closes q when done.
func feed(ctx context.Context, r io.Reader, q *queue.InMemoryQueue) error {
	defer func() { _ = q.Close() }()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxBatchLineBytes)

	seq, lineNo := 0, 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		job := queue.Job{Seq: seq, LineNo: lineNo, Line: bytes.Clone(line)}
		if err := q.EnqueueWait(ctx, job); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		seq++
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read line %d: %w", lineNo+1, err)
	}
	return nil
}
