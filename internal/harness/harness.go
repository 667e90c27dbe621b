package harness

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/exp/maps"

	"github.com/roach88/stripe/internal/compiler"
	"github.com/roach88/stripe/internal/engine"
	"github.com/roach88/stripe/internal/ir"
	"github.com/roach88/stripe/internal/store"
	"github.com/roach88/stripe/internal/testutil"
)

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Load the program and apply inputs
// 2. Store the program in a fresh in-memory database
// 3. Execute with a fixed run ID and a zeroed clock
// 4. Persist the run and read its outputs back
// 5. Check the expected error or evaluate assertions
//
// The returned error reports harness failures (unreadable program, store
// errors); a run that fails unexpectedly is a failed Result, not an error.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	p, err := compiler.LoadFile(scenario.Program)
	if err != nil {
		return nil, fmt.Errorf("failed to load program: %w", err)
	}
	inputs := maps.Keys(scenario.Inputs)
	slices.Sort(inputs)
	for _, name := range inputs {
		if err := engine.SetInput(p, name, scenario.Inputs[name]); err != nil {
			return nil, fmt.Errorf("failed to apply input %q: %w", name, err)
		}
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	hash, err := st.WriteProgram(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to store program: %w", err)
	}

	d := testutil.NewDeterministic(scenario.RunID, executorOptions(scenario)...)
	res, runErr := d.Executor.Run(ctx, p)

	result := NewResult()
	result.RunID = d.RunID
	result.ProgramHash = hash
	result.Trace = d.Trace.Events()

	record := store.RunRecord{
		ID:          d.RunID,
		ProgramHash: hash,
		Status:      store.RunSucceeded,
		Parallelism: max(scenario.Parallelism, 1),
	}
	if runErr != nil {
		result.RunErr = toRunError(runErr)
		record.Status = store.RunFailed
		record.ErrorKind = result.RunErr.Kind
		record.ErrorMessage = result.RunErr.Message
	} else {
		result.Stats = res.Stats
		record.Stats = store.RunStats(res.Stats)
		record.Outputs = res.Buffers
	}
	if err := st.WriteRun(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store run: %w", err)
	}

	if runErr == nil {
		stored, err := st.ReadRun(ctx, d.RunID)
		if err != nil {
			return nil, fmt.Errorf("failed to read run back: %w", err)
		}
		decoded, err := engine.DecodeBuffers(p, stored.Outputs)
		if err != nil {
			return nil, fmt.Errorf("failed to decode outputs: %w", err)
		}
		for name, vals := range decoded {
			out := make([]any, len(vals))
			for i, v := range vals {
				out[i] = v.Value()
			}
			result.Outputs[name] = out
		}
	}

	checkExpectation(result, scenario.Expect)
	if result.Pass && runErr == nil {
		for _, msg := range EvaluateAssertions(result, p, scenario.Assertions) {
			result.AddError(msg)
		}
	}
	return result, nil
}

func executorOptions(s *Scenario) []engine.Option {
	var opts []engine.Option
	if s.Parallelism > 1 {
		opts = append(opts, engine.WithParallelism(s.Parallelism))
	}
	if s.Seed != nil {
		opts = append(opts, engine.WithScheduler(engine.NewShuffledScheduler(*s.Seed)))
	}
	if s.MaxStatements > 0 {
		opts = append(opts, engine.WithMaxStatements(s.MaxStatements))
	}
	return opts
}

func toRunError(err error) *RunError {
	var e *ir.Error
	if errors.As(err, &e) {
		return &RunError{Kind: string(e.Kind), Path: e.Path, Message: e.Message}
	}
	return &RunError{Message: err.Error()}
}

// checkExpectation compares how the run ended with the scenario's expect
// clause.
func checkExpectation(result *Result, expect *ExpectClause) {
	got := result.RunErr
	switch {
	case expect == nil && got != nil:
		result.AddError(fmt.Sprintf("run failed: %s: %s", got.Kind, got.Message))
	case expect == nil:
	case got == nil:
		result.AddError(fmt.Sprintf("expected error %s, run succeeded", expect.Error))
	case got.Kind != expect.Error:
		result.AddError(fmt.Sprintf("expected error %s, got %s: %s", expect.Error, got.Kind, got.Message))
	case expect.Path != "" && got.Path != expect.Path:
		result.AddError(fmt.Sprintf("expected error at %s, got %s", expect.Path, got.Path))
	}
}
