// Command puzzlerating computes puzzle rating deltas from aggregated solving
// metrics: once over stdin/stdout, over a newline-delimited batch, or as an
// HTTP service.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// Process exit codes.
const (
	exitFailure = 1
	exitParse   = 2
	exitInvalid = 3
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the command tree and maps the result to an exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(stderr, ee.msg)
			return ee.code
		}
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	return 0
}

func newRootCmd() *cobra.Command {
	f := &computeFlags{}

	root := &cobra.Command{
		Use:   "puzzlerating",
		Short: "Compute the rating adjustment for a puzzle from its solving metrics",
		Long: "Reads one metrics record as JSON and writes {\"ratingDelta\": n}.\n" +
			"Without a subcommand it behaves like \"compute\".",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompute(cmd, f)
		},
	}
	addComputeFlags(root, f)

	root.AddCommand(newComputeCmd())
	root.AddCommand(newBatchCmd())
	root.AddCommand(newServeCmd())
	return root
}

type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func exitError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}
