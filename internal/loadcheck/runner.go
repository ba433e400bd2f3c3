package loadcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/puzzlerating/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// Run executes a complete load check: health probe, case generation (or
// replay), concurrent submission and comparison. The returned error wraps
// ErrMismatch or ErrRequests when any case disagreed or failed.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	if err := validate(config); err != nil {
		return nil, err
	}
	log := config.log()
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting load check",
		logger.String("baseURL", config.BaseURL),
		logger.Int("records", config.NumRecords),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
		logger.String("seedFile", config.SeedFile))

	client := NewHTTPClient(config.BaseURL, config.Timeout)
	if err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	cases, err := loadCases(ctx, config)
	if err != nil {
		return nil, err
	}
	stats.Generated = len(cases)

	if config.OutputFile != "" {
		if err := SaveCases(config.OutputFile, cases); err != nil {
			log.Warn(ctx, "failed to save cases to file", logger.Error(err))
		} else {
			log.Info(ctx, "cases saved to file", logger.String("filename", config.OutputFile))
		}
	}

	submit(ctx, config, client, cases, stats)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)

	var errs []error
	if stats.Mismatched > 0 {
		errs = append(errs, fmt.Errorf("%w: %d of %d", ErrMismatch, stats.Mismatched, stats.Submitted))
	}
	if stats.Failed > 0 {
		errs = append(errs, fmt.Errorf("%w: %d of %d", ErrRequests, stats.Failed, stats.Submitted))
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return stats, errors.Join(errs...)
}

func validate(config *Config) error {
	switch {
	case config == nil:
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	case config.BaseURL == "":
		return fmt.Errorf("%w: url must not be empty", ErrInvalidConfig)
	case config.Workers <= 0:
		return fmt.Errorf("%w: workers must be > 0", ErrInvalidConfig)
	case config.SeedFile == "" && config.NumRecords <= 0:
		return fmt.Errorf("%w: records must be > 0", ErrInvalidConfig)
	}
	return nil
}

func loadCases(ctx context.Context, config *Config) ([]Case, error) {
	if config.SeedFile != "" {
		cases, err := LoadCases(config.SeedFile)
		if err != nil {
			return nil, err
		}
		config.log().Info(ctx, "replaying cases", logger.Int("count", len(cases)))
		return cases, nil
	}
	cases, err := Generate(ctx, config.NumRecords, config.Seed)
	if err != nil {
		return nil, fmt.Errorf("case generation failed: %w", err)
	}
	config.log().Info(ctx, "generated cases", logger.Int("count", len(cases)))
	return cases, nil
}

// submit posts cases through a pool of config.Workers goroutines.
func submit(ctx context.Context, config *Config, client *HTTPClient, cases []Case, stats *Stats) {
	log := config.log()

	var submitted, matched, mismatched, failed atomic.Int64

	caseChan := make(chan Case, config.Workers*2)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tc := range caseChan {
				got, err := client.Evaluate(ctx, tc)
				submitted.Add(1)
				switch {
				case err != nil:
					failed.Add(1)
					log.Debug(ctx, "request failed", logger.String("id", tc.ID), logger.Error(err))
				case got != tc.Expected:
					mismatched.Add(1)
					log.Warn(ctx, "delta mismatch",
						logger.String("id", tc.ID),
						logger.String("profile", tc.Profile),
						logger.Int("expected", tc.Expected),
						logger.Int("got", got))
				default:
					matched.Add(1)
				}
			}
		}()
	}

	go func() {
		defer close(caseChan)
		for _, tc := range cases {
			select {
			case <-ctx.Done():
				return
			case caseChan <- tc:
			}
		}
	}()

	wg.Wait()

	stats.Submitted = int(submitted.Load())
	stats.Matched = int(matched.Load())
	stats.Mismatched = int(mismatched.Load())
	stats.Failed = int(failed.Load())
}

// SaveCases writes cases as an indented JSON array.
func SaveCases(filename string, cases []Case) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(cases, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cases: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), filePermission); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return nil
}

// LoadCases reads cases written by SaveCases.
func LoadCases(filename string) ([]Case, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	var cases []Case
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("%w: %s holds no cases", ErrInvalidConfig, filename)
	}
	return cases, nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var requestsPerSecond float64
	if stats.Duration > 0 {
		requestsPerSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	log.Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("matched", stats.Matched),
		logger.Int("mismatched", stats.Mismatched),
		logger.Int("failed", stats.Failed),
		logger.Duration("duration", stats.Duration),
		logger.Float64("requestsPerSecond", requestsPerSecond))
}
