package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/stripe/internal/compiler"
	"github.com/roach88/stripe/internal/engine"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Parallelism int
	Seed        uint64
	Inputs      []string
}

// TraceOutput is the ordered list of executed statements of one run.
type TraceOutput struct {
	RunID  string              `json:"run_id"`
	Events []engine.TraceEvent `json:"events"`
	Stats  engine.Stats        `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <program>",
		Short: "Execute a program and print every executed statement",
		Long: `Execute a program and print one line per executed statement: the
sequence number, block path, index tuple, statement position and kind.

Events are ordered by sequence number. Under --parallel the interleaving
of tuples differs between runs.

Example:
  stripe trace ./programs/matmul.cue
  stripe trace ./programs/matmul.cue --seed 7 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Parallelism, "parallel", 1, "number of tuples executed concurrently")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "execute statements in a seeded random dependency order")
	cmd.Flags().StringArrayVar(&opts.Inputs, "input", nil, "buffer input as name=file.json (repeatable)")

	return cmd
}

func runTrace(opts *TraceOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	if opts.Parallelism < 1 {
		return f.fail(ExitCommandError, ErrCodeGeneric, "--parallel must be at least 1", nil)
	}

	p, err := loadOrFail(f, path)
	if err != nil {
		return err
	}
	if err := applyInputs(p, opts.Inputs); err != nil {
		return f.fail(ExitCommandError, ErrCodeInput, err.Error(), nil)
	}
	if errs := compiler.Validate(p, engine.DefaultRegistry()); len(errs) > 0 {
		return reportValidation(f, errs)
	}

	rec := &engine.TraceRecorder{}
	settings := execSettings{Parallelism: opts.Parallelism, Trace: rec.Record}
	if cmd.Flags().Changed("seed") {
		settings.Seed = &opts.Seed
	}
	res, err := engine.New(settings.options(opts.logger())...).Run(commandContext(cmd.Context()), p)
	if err != nil {
		return reportRunError(f, err)
	}

	out := TraceOutput{RunID: res.RunID, Events: rec.Events(), Stats: res.Stats}
	return f.Emit(out, func(w io.Writer) {
		for _, ev := range out.Events {
			fmt.Fprintf(w, "%6d  %-24s %-12v #%d %s\n", ev.Seq, ev.Path, ev.Tuple, ev.Stmt, ev.Kind)
		}
	})
}
