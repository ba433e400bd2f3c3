package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

// outputFile is where --out results are written.
type outputFile interface {
	io.Writer
	Close() error
}

var createOutput = func(path string) (outputFile, error) { return os.Create(path) }

// openOutput returns the result writer for path, or stdout when path is
// empty, plus a close func. The close func is safe to call more than once;
// only the first call closes, and its failure is reported as an exit error.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	file, err := createOutput(path)
	if err != nil {
		return nil, nil, exitError(exitFailure, "failed to create output: %v", err)
	}

	closed := false
	closeOut := func() error {
		if closed {
			return nil
		}
		closed = true
		if err := file.Close(); err != nil {
			return exitError(exitFailure, "failed to close output: %v", err)
		}
		return nil
	}
	return file, closeOut, nil
}
