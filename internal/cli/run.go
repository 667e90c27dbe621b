package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/stripe/internal/compiler"
	"github.com/roach88/stripe/internal/engine"
	"github.com/roach88/stripe/internal/ir"
	"github.com/roach88/stripe/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database      string
	Parallelism   int
	Inputs        []string // name=file.json
	Seed          uint64
	MaxStatements int64
	TracePath     string
	Metrics       bool

	// RunIDs allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// RunOutput is the result of a successful run.
type RunOutput struct {
	RunID       string           `json:"run_id"`
	ProgramHash string           `json:"program_hash"`
	Stats       engine.Stats     `json:"stats"`
	Buffers     map[string][]any `json:"buffers"`
	Persisted   bool             `json:"persisted"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <program>",
		Short: "Validate and execute a program",
		Long: `Validate a program, execute it on the reference executor and print
every buffer decoded by its element type.

Each --input replaces a buffer's data before the run; the file holds a JSON
array with one value per element. With --db the program and the run,
successful or not, are recorded for "stripe runs" and "stripe replay".

Example:
  stripe run ./programs/matmul.cue --input a=a.json --input b=b.json
  stripe run ./programs/matmul.cue --db ./stripe.db --parallel 8
  stripe run ./programs/matmul.cue --trace trace.jsonl --metrics

Exit codes:
  0 - Run succeeded
  1 - Validation or execution failed
  2 - Command error (unreadable program or input, database error)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database to record the run in")
	cmd.Flags().IntVar(&opts.Parallelism, "parallel", 1, "number of tuples executed concurrently")
	cmd.Flags().StringArrayVar(&opts.Inputs, "input", nil, "buffer input as name=file.json (repeatable)")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "execute statements in a seeded random dependency order")
	cmd.Flags().Int64Var(&opts.MaxStatements, "max-statements", 0, "abort after this many statements (0 = unlimited)")
	cmd.Flags().StringVar(&opts.TracePath, "trace", "", "write executed statements as JSON lines to this file (- for stderr)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print execution counters to stderr")

	return cmd
}

func runProgram(opts *RunOptions, path string, cmd *cobra.Command) error {
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
	hash, err := ir.ProgramHash(p)
	if err != nil {
		return f.fail(ExitFailure, ErrCodeSchema, err.Error(), nil)
	}

	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to open database: %v", err), nil)
		}
		defer st.Close()
	}

	traceOut, closeTrace, err := openTrace(opts.TracePath, f.GetErrWriter())
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	defer closeTrace()

	gen := opts.RunIDs
	if gen == nil {
		gen = engine.UUIDv7Generator{}
	}
	settings := execSettings{
		RunID:         gen.Generate(),
		Parallelism:   opts.Parallelism,
		MaxStatements: opts.MaxStatements,
	}
	if cmd.Flags().Changed("seed") {
		settings.Seed = &opts.Seed
	}
	if traceOut != nil {
		settings.Trace = jsonLinesSink(traceOut)
	}
	reg := prometheus.NewRegistry()
	if opts.Metrics {
		settings.Metrics = engine.NewMetrics(reg)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd.Context()), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f.VerboseLog("Running %s as %s", hash, settings.RunID)
	res, runErr := engine.New(settings.options(opts.logger())...).Run(ctx, p)

	if opts.Metrics {
		writeMetrics(f.GetErrWriter(), reg)
	}
	if st != nil {
		if err := persistRun(ctx, st, p, settings, res, runErr); err != nil {
			return f.fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
		f.VerboseLog("Recorded run %s in %s", settings.RunID, opts.Database)
	}
	if runErr != nil {
		return reportRunError(f, runErr)
	}

	decoded, err := engine.DecodeBuffers(p, res.Buffers)
	if err != nil {
		return f.fail(ExitFailure, ErrCodeRunFailed, err.Error(), nil)
	}
	out := RunOutput{
		RunID:       res.RunID,
		ProgramHash: hash,
		Stats:       res.Stats,
		Buffers:     scalarValues(decoded),
		Persisted:   st != nil,
	}
	return f.Emit(out, func(w io.Writer) {
		fmt.Fprintf(w, "run %s (program %s)\n", out.RunID, out.ProgramHash)
		writeBuffers(w, decoded)
		fmt.Fprintf(w, "stats: activations=%d tuples=%d/%d statements=%d\n",
			out.Stats.Activations, out.Stats.TuplesAdmitted, out.Stats.TuplesVisited, out.Stats.Statements)
	})
}

// applyInputs parses name=file.json arguments and replaces buffer data.
func applyInputs(p *ir.Program, args []string) error {
	for _, arg := range args {
		name, file, ok := strings.Cut(arg, "=")
		if !ok || name == "" || file == "" {
			return fmt.Errorf("invalid --input %q: want name=file.json", arg)
		}
		vals, err := readValues(file)
		if err != nil {
			return fmt.Errorf("input %s: %w", name, err)
		}
		if err := engine.SetInput(p, name, vals); err != nil {
			return fmt.Errorf("input %s: %w", name, err)
		}
	}
	return nil
}

// readValues reads a JSON array of numbers or bools.
func readValues(path string) ([]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var vals []any
	if err := dec.Decode(&vals); err != nil {
		return nil, fmt.Errorf("%s: want a JSON array: %w", path, err)
	}
	return vals, nil
}

// persistRun records the program and the outcome of a run. Failed runs are
// recorded with their error kind and no outputs.
func persistRun(ctx context.Context, st *store.Store, p *ir.Program, s execSettings, res *engine.Result, runErr error) error {
	// An interrupted run is still recorded.
	ctx = context.WithoutCancel(ctx)

	hash, err := st.WriteProgram(ctx, p)
	if err != nil {
		return err
	}
	rec := store.RunRecord{
		ID:            s.RunID,
		ProgramHash:   hash,
		Status:        store.RunSucceeded,
		Parallelism:   s.Parallelism,
		MaxStatements: s.MaxStatements,
		Seed:          s.Seed,
	}
	if runErr != nil {
		rec.Status = store.RunFailed
		rec.ErrorKind = string(ir.KindOf(runErr))
		rec.ErrorMessage = runErr.Error()
	} else {
		rec.Stats = store.RunStats(res.Stats)
		rec.Outputs = res.Buffers
	}
	return st.WriteRun(ctx, rec)
}
