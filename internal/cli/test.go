package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/stripe/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run YAML scenarios against the reference executor",
		Long: `Run every .yaml and .yml scenario under a directory. Each scenario
names a program, optional inputs and execution settings, and the outputs,
counters, trace or error it expects.

Example:
  stripe test ./scenarios
  stripe test ./scenarios --filter 'agg_*'

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Directory could not be read or the filter is malformed`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose file name matches this glob")

	return cmd
}

func runTest(opts *TestOptions, dir string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	paths, err := harness.DiscoverScenarios(dir)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("failed to scan scenarios: %v", err), nil)
	}
	if opts.Filter != "" {
		kept := paths[:0]
		for _, path := range paths {
			ok, err := filepath.Match(opts.Filter, filepath.Base(path))
			if err != nil {
				return f.fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("invalid --filter: %v", err), nil)
			}
			if ok {
				kept = append(kept, path)
			}
		}
		paths = kept
	}
	f.VerboseLog("Running %d scenario(s) from %s", len(paths), dir)

	result, err := harness.RunScenarios(commandContext(cmd.Context()), paths)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	if result.Failed > 0 {
		msg := fmt.Sprintf("%d of %d scenario(s) failed", result.Failed, result.Total)
		if f.Format == "json" {
			if err := f.Error(ErrCodeScenarios, msg, result); err != nil {
				return err
			}
		} else {
			for _, fail := range result.Failures {
				fmt.Fprintf(f.Writer, "✗ %s (%s)\n", fail.Scenario, fail.Path)
				for _, e := range fail.Errors {
					fmt.Fprintf(f.Writer, "    %s\n", e)
				}
			}
			fmt.Fprintln(f.Writer, msg)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", ErrCodeScenarios, msg))
	}

	return f.Emit(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %d scenario(s) passed\n", result.Passed)
	})
}
