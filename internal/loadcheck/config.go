// Package loadcheck drives a running rating service with generated metrics
// records and checks every returned delta against the local calculator.
package loadcheck

import (
	"time"

	"github.com/okian/puzzlerating/internal/adapters/wire"
	"github.com/okian/puzzlerating/pkg/logger"
)

// Config holds configuration for a load check run.
type Config struct {
	BaseURL    string        // Base URL of the service
	NumRecords int           // Number of records to generate
	Workers    int           // Number of concurrent workers
	Timeout    time.Duration // HTTP request timeout
	Seed       uint64        // Generator seed; equal seeds give equal records
	SeedFile   string        // Replay cases from this file instead of generating
	OutputFile string        // Write the cases here when set
	Logger     logger.Logger // Defaults to a no-op logger
}

// Case is one request of a run together with the delta the local calculator
// expects for it.
type Case struct {
	ID       string      `json:"id"`
	Profile  string      `json:"profile"`
	Record   wire.Record `json:"record"`
	Expected int         `json:"expected"`
}

// Stats holds run statistics.
type Stats struct {
	Generated  int
	Submitted  int
	Matched    int
	Mismatched int
	Failed     int
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}

func (c *Config) log() logger.Logger {
	if c.Logger == nil {
		return logger.Nop()
	}
	return c.Logger
}
