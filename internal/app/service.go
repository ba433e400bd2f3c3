// Package service provides the evaluation service that backs both the CLI
// and the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/puzzlerating/internal/domain/rating"
	"github.com/okian/puzzlerating/pkg/logger"
	"github.com/okian/puzzlerating/pkg/metrics"
)

// Service evaluates puzzle metrics and keeps running counters.
type Service struct {
	mu sync.RWMutex

	// State
	started   bool
	startedAt time.Time

	// Counters
	evaluations atomic.Int64
	rejected    atomic.Int64
	lastDelta   atomic.Int64

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Nop()
	}

	return s
}

// Start marks the service as running.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "rating service started")
	return nil
}

// Stop marks the service as stopped. Evaluations keep working after Stop;
// only the uptime figure is affected.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.started = false
	s.logger.Info(context.Background(), "rating service stopped",
		logger.Int64("evaluations", s.evaluations.Load()),
		logger.Int64("rejected", s.rejected.Load()),
	)
}

// Evaluate validates m and runs the adjustment. Returned errors wrap
// rating.ErrInvalidInput or the context error.
func (s *Service) Evaluate(ctx context.Context, m rating.Metrics) (rating.Breakdown, error) {
	if err := ctx.Err(); err != nil {
		err = fmt.Errorf("evaluate: %w", err)
		s.Reject(err)
		return rating.Breakdown{}, err
	}

	if err := m.Validate(); err != nil {
		err = fmt.Errorf("evaluate: %w", err)
		s.Reject(err)
		s.logger.Debug(ctx, "rejected metrics", logger.Error(err))
		return rating.Breakdown{}, err
	}

	start := time.Now()
	b := rating.Explain(m)
	elapsed := time.Since(start)

	s.evaluations.Add(1)
	s.lastDelta.Store(int64(b.Delta))

	metrics.RecordEvaluation(metrics.OutcomeOK)
	metrics.RecordRatingDelta(b.Delta)
	metrics.RecordEvaluationLatency(float64(elapsed.Nanoseconds()) / float64(time.Millisecond))
	for _, stage := range triggeredStages(b) {
		if err := metrics.RecordStage(stage); err != nil {
			s.logger.Warn(ctx, "stage not recorded", logger.Error(err))
		}
	}

	s.logger.Debug(ctx, "evaluated metrics",
		logger.Float64("successRate", m.SuccessRate),
		logger.Float64("avgAttempts", m.AvgAttempts),
		logger.Int("ratingDelta", b.Delta),
		logger.Duration("elapsed", elapsed),
	)

	return b, nil
}

// Compute is Evaluate without the breakdown.
func (s *Service) Compute(ctx context.Context, m rating.Metrics) (int, error) {
	b, err := s.Evaluate(ctx, m)
	if err != nil {
		return 0, err
	}
	return b.Delta, nil
}

// Reject counts an input that produced no delta, such as a body that failed
// to parse. The metrics outcome is derived from err.
func (s *Service) Reject(err error) {
	s.rejected.Add(1)
	metrics.RecordEvaluation(Outcome(err))
}

// Outcome maps an evaluation or decoding error to its metrics outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, rating.ErrParse):
		return metrics.OutcomeParseError
	case errors.Is(err, rating.ErrInvalidInput):
		return metrics.OutcomeInvalidInput
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeCancelled
	default:
		return metrics.OutcomeInternal
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"evaluations": s.evaluations.Load(),
		"rejected":    s.rejected.Load(),
		"lastDelta":   s.lastDelta.Load(),
	}

	if s.started {
		stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())
	}

	return stats
}

func triggeredStages(b rating.Breakdown) []string {
	var stages []string
	switch {
	case b.Base < 0:
		stages = append(stages, metrics.StageEasyMalus)
	case b.Base > 0:
		stages = append(stages, metrics.StageHardBonus)
	}
	if b.HintPenalty < 0 {
		stages = append(stages, metrics.StageHintPenalty)
	}
	if b.RatingBonus > 0 {
		stages = append(stages, metrics.StageRatingBonus)
	}
	if b.FloorApplied {
		stages = append(stages, metrics.StageFloor)
	}
	if b.FloorLift > 0 {
		stages = append(stages, metrics.StageFloorLift)
	}
	if b.ChallengeBonus > 0 {
		stages = append(stages, metrics.StageChallengeBonus)
	}
	return stages
}
