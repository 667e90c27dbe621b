package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"

	"github.com/roach88/stripe/internal/engine"
	"github.com/roach88/stripe/internal/ir"
	"github.com/roach88/stripe/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
}

// ReplayOutput is the result of re-executing a recorded run.
type ReplayOutput struct {
	RunID       string   `json:"run_id"`
	ProgramHash string   `json:"program_hash"`
	Status      string   `json:"status"`
	Match       bool     `json:"match"`
	Mismatches  []string `json:"mismatches,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <run-id>",
		Short: "Re-execute a recorded run and compare the results",
		Long: `Re-execute a run recorded with "stripe run --db" using the stored
program and the run's parallelism, then compare the outcome with the
recorded one.

A succeeded run must reproduce every output buffer byte for byte. A failed
run must fail again with the same error kind. Programs whose unordered
stores race under --parallel may legitimately differ.

Example:
  stripe replay --db ./stripe.db 019a...

Exit codes:
  0 - Results match
  1 - Results differ
  2 - Run or program not found, database error`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runReplay(opts *ReplayOptions, runID string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd.Context())

	st, err := store.Open(opts.Database)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to open database: %v", err), nil)
	}
	defer st.Close()

	rec, p, err := loadRecordedRun(ctx, st, runID)
	if errors.Is(err, store.ErrNotFound) {
		return f.fail(ExitCommandError, ErrCodeNotFound, err.Error(), nil)
	}
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}

	f.VerboseLog("Replaying %s (program %s, parallel=%d)", rec.ID, rec.ProgramHash, rec.Parallelism)
	settings := execSettings{
		RunID:         rec.ID,
		Parallelism:   max(rec.Parallelism, 1),
		Seed:          rec.Seed,
		MaxStatements: rec.MaxStatements,
	}
	res, runErr := engine.New(settings.options(opts.logger())...).Run(ctx, p)

	out := ReplayOutput{
		RunID:       rec.ID,
		ProgramHash: rec.ProgramHash,
		Status:      string(rec.Status),
		Mismatches:  compareReplay(rec, res, runErr),
	}
	out.Match = len(out.Mismatches) == 0

	if !out.Match {
		msg := fmt.Sprintf("replay of %s differs from the recorded run", rec.ID)
		if f.Format == "json" {
			if err := f.Error(ErrCodeNonDeterministic, msg, out); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(f.Writer, "✗ %s\n", msg)
			for _, m := range out.Mismatches {
				fmt.Fprintf(f.Writer, "    %s\n", m)
			}
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", ErrCodeNonDeterministic, msg))
	}
	return f.Emit(out, func(w io.Writer) {
		fmt.Fprintf(w, "✓ replay of %s matches (%s)\n", out.RunID, out.Status)
	})
}

func loadRecordedRun(ctx context.Context, st *store.Store, runID string) (store.RunRecord, *ir.Program, error) {
	rec, err := st.ReadRun(ctx, runID)
	if err != nil {
		return store.RunRecord{}, nil, err
	}
	p, err := st.ReadProgram(ctx, rec.ProgramHash)
	if err != nil {
		return store.RunRecord{}, nil, err
	}
	return rec, p, nil
}

// compareReplay lists the differences between a recorded run and its
// re-execution.
func compareReplay(rec store.RunRecord, res *engine.Result, runErr error) []string {
	if rec.Status == store.RunFailed {
		if runErr == nil {
			return []string{fmt.Sprintf("recorded run failed with %q, replay succeeded", rec.ErrorKind)}
		}
		if got := string(ir.KindOf(runErr)); got != rec.ErrorKind {
			return []string{fmt.Sprintf("error kind: recorded %q, replay %q", rec.ErrorKind, got)}
		}
		return nil
	}

	if runErr != nil {
		return []string{fmt.Sprintf("recorded run succeeded, replay failed: %v", runErr)}
	}
	var diffs []string
	names := maps.Keys(rec.Outputs)
	slices.Sort(names)
	for _, name := range names {
		got, ok := res.Buffers[name]
		if !ok {
			diffs = append(diffs, fmt.Sprintf("buffer %q: missing from replay", name))
			continue
		}
		if !bytes.Equal(got.Data(), rec.Outputs[name].Data()) {
			diffs = append(diffs, fmt.Sprintf("buffer %q: contents differ", name))
		}
	}
	return diffs
}
