package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/stripe/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database      string
	Program       string
	Status        string
	ErrorKind     string
	MinStatements int64
}

// RunsOutput lists persisted runs.
type RunsOutput struct {
	Runs []store.RunRecord `json:"runs"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Long: `List the runs recorded with "stripe run --db", oldest first.
Filters combine: a run is listed when it matches all of them.

Example:
  stripe runs --db ./stripe.db
  stripe runs --db ./stripe.db --program <hash>
  stripe runs --db ./stripe.db --status failed --kind OutOfBounds`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Program, "program", "", "only list runs of this program hash")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only list runs with this status (succeeded|failed)")
	cmd.Flags().StringVar(&opts.ErrorKind, "kind", "", "only list failed runs with this error kind")
	cmd.Flags().Int64Var(&opts.MinStatements, "min-statements", 0, "only list runs that executed at least this many statements")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to open database: %v", err), nil)
	}
	defer st.Close()

	runs, err := st.QueryRuns(commandContext(cmd.Context()), opts.filter())
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}

	return f.Emit(RunsOutput{Runs: runs}, func(w io.Writer) {
		if len(runs) == 0 {
			fmt.Fprintln(w, "no runs")
			return
		}
		for _, r := range runs {
			status := string(r.Status)
			if r.Status == store.RunFailed && r.ErrorKind != "" {
				status += " (" + r.ErrorKind + ")"
			}
			fmt.Fprintf(w, "%s  %s  %s  parallel=%d statements=%d\n",
				r.ID, r.ProgramHash, status, r.Parallelism, r.Stats.Statements)
		}
	})
}

// filter combines the set flags into one store predicate.
func (o *RunsOptions) filter() store.Predicate {
	var preds []store.Predicate
	if o.Program != "" {
		preds = append(preds, store.Equals{Column: "program_hash", Value: o.Program})
	}
	if o.Status != "" {
		preds = append(preds, store.Equals{Column: "status", Value: o.Status})
	}
	if o.ErrorKind != "" {
		preds = append(preds, store.Equals{Column: "error_kind", Value: o.ErrorKind})
	}
	if o.MinStatements > 0 {
		preds = append(preds, store.AtLeast{Column: "statements", Value: o.MinStatements})
	}
	return store.And{Predicates: preds}
}
