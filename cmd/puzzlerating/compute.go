package main

import (
	"errors"
	"os"

	"github.com/okian/puzzlerating/internal/adapters/wire"
	service "github.com/okian/puzzlerating/internal/app"
	"github.com/okian/puzzlerating/internal/config"
	"github.com/okian/puzzlerating/internal/domain/rating"
	"github.com/okian/puzzlerating/pkg/logger"
	"github.com/spf13/cobra"
)

type computeFlags struct {
	in      string
	out     string
	explain bool
}

func newComputeCmd() *cobra.Command {
	f := &computeFlags{}

	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Read one metrics record and write its rating delta",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompute(cmd, f)
		},
	}
	addComputeFlags(cmd, f)
	return cmd
}

func addComputeFlags(cmd *cobra.Command, f *computeFlags) {
	flags := cmd.Flags()
	flags.StringVar(&f.in, "in", "", "Input file path (default: stdin)")
	flags.StringVar(&f.out, "out", "", "Output file path (default: stdout)")
	flags.BoolVar(&f.explain, "explain", false, "Include the per-stage breakdown")
}

// runCompute performs one evaluation. Logs go to stderr so that stdout
// carries only the result record.
func runCompute(cmd *cobra.Command, f *computeFlags) error {
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
	log := logger.Named("compute")

	in := cmd.InOrStdin()
	if f.in != "" {
		file, err := os.Open(f.in)
		if err != nil {
			return exitError(exitFailure, "failed to open input: %v", err)
		}
		defer func() { _ = file.Close() }()
		in = file
	}

	svc := service.New(service.WithLogger(log))

	m, err := wire.Decode(in)
	if err != nil {
		svc.Reject(err)
		return classify(err)
	}

	b, err := svc.Evaluate(ctx, m)
	if err != nil {
		return classify(err)
	}

	out, closeOut, err := openOutput(cmd, f.out)
	if err != nil {
		return err
	}
	defer func() { _ = closeOut() }()

	if f.explain {
		err = wire.EncodeExplained(out, b)
	} else {
		err = wire.Encode(out, b.Delta)
	}
	if err != nil {
		return exitError(exitFailure, "%v", err)
	}
	if err := closeOut(); err != nil {
		return err
	}

	log.Debug(ctx, "rating delta written", logger.Int("ratingDelta", b.Delta))
	return nil
}

// classify maps calculator failures to exit codes.
func classify(err error) error {
	switch {
	case errors.Is(err, rating.ErrParse):
		return exitError(exitParse, "%v", err)
	case errors.Is(err, rating.ErrInvalidInput):
		return exitError(exitInvalid, "%v", err)
	default:
		return exitError(exitFailure, "%v", err)
	}
}
