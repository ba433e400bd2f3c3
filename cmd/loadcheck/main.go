// Command loadcheck posts generated metrics records to a running rating
// service and verifies every delta against the local calculator.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/okian/puzzlerating/internal/loadcheck"
	"github.com/okian/puzzlerating/pkg/logger"
	"github.com/spf13/cobra"
)

// Default configuration constants.
const (
	defaultNumRecords  = 10000
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

type flags struct {
	url       string
	records   int
	workers   int
	timeout   time.Duration
	seed      uint64
	seedFile  string
	output    string
	logFormat string
	verbose   bool
}

func main() {
	if err := newRootCmd(os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "load check failed:", err)
		os.Exit(1)
	}
}

func newRootCmd(logOut io.Writer) *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:           "loadcheck",
		Short:         "Verify a running rating service against the local calculator",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoadCheck(cmd.Context(), logOut, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.url, "url", "http://localhost:9080", "Base URL of the service")
	fl.IntVar(&f.records, "records", defaultNumRecords, "Number of records to generate and submit")
	fl.IntVar(&f.workers, "workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
	fl.DurationVar(&f.timeout, "timeout", defaultTimeout, "HTTP request timeout")
	fl.Uint64Var(&f.seed, "seed", uint64(time.Now().UnixNano()), "Generator seed")
	fl.StringVar(&f.seedFile, "seed-file", "", "Replay cases saved by a previous --output run")
	fl.StringVar(&f.output, "output", "", "Write the submitted cases to this JSON file")
	fl.StringVar(&f.logFormat, "log-format", logger.FormatText, "Log format: text or json")
	fl.BoolVar(&f.verbose, "verbose", false, "Enable debug logging")
	return cmd
}

func runLoadCheck(ctx context.Context, logOut io.Writer, f *flags) error {
	if err := logger.Init(logger.WithOutput(logOut), logger.WithFormat(f.logFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	if f.verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTestTimeout)
	defer cancel()

	_, err := loadcheck.Run(ctx, &loadcheck.Config{
		BaseURL:    f.url,
		NumRecords: f.records,
		Workers:    f.workers,
		Timeout:    f.timeout,
		Seed:       f.seed,
		SeedFile:   f.seedFile,
		OutputFile: f.output,
		Logger:     logger.Named("loadcheck"),
	})
	return err
}
