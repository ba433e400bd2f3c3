package main

import (
	"os"

	service "github.com/okian/puzzlerating/internal/app"
	"github.com/okian/puzzlerating/internal/config"
	"github.com/okian/puzzlerating/pkg/logger"
	"github.com/spf13/cobra"
)

type batchFlags struct {
	in      string
	out     string
	workers int
}

func newBatchCmd() *cobra.Command {
	f := &batchFlags{}

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Evaluate newline-delimited metrics records concurrently",
		Long: "Reads one metrics record per line and writes one result line per record,\n" +
			"in input order: {\"ratingDelta\": n} or {\"error\": {\"code\", \"message\"}}.\n" +
			"Blank lines are skipped. Invalid records do not change the exit code.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBatch(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.in, "in", "", "Input file path (default: stdin)")
	flags.StringVar(&f.out, "out", "", "Output file path (default: stdout)")
	flags.IntVar(&f.workers, "workers", 0, "Concurrent evaluators (default: batch_workers, or one per CPU)")
	return cmd
}

func runBatch(cmd *cobra.Command, f *batchFlags) error {
	ctx := cmd.Context()

	cfg, err := config.Load(ctx)
	if err != nil {
		return exitError(exitFailure, "failed to load config: %v", err)
	}
	if err := logger.Init(logger.WithOutput(cmd.ErrOrStderr()), logger.WithFormat(cfg.LogFormat)); err != nil {
		return exitError(exitFailure, "failed to initialize logging: %v", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return exitError(exitFailure, "invalid log_level: %v", err)
	}
	log := logger.Named("batch")

	if f.workers < 0 {
		return exitError(exitFailure, "--workers must not be negative")
	}
	opts := service.BatchOptions{Workers: cfg.BatchWorkers, QueueCapacity: cfg.BatchQueueCapacity}
	if f.workers > 0 {
		opts.Workers = f.workers
	}

	in := cmd.InOrStdin()
	if f.in != "" {
		file, err := os.Open(f.in)
		if err != nil {
			return exitError(exitFailure, "failed to open input: %v", err)
		}
		defer func() { _ = file.Close() }()
		in = file
	}

	out, closeOut, err := openOutput(cmd, f.out)
	if err != nil {
		return err
	}
	defer func() { _ = closeOut() }()

	svc := service.New(service.WithLogger(log))
	if _, err := svc.Batch(ctx, in, out, opts); err != nil {
		return exitError(exitFailure, "batch failed: %v", err)
	}
	return closeOut()
}
