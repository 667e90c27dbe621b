package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stripe/internal/engine"
	"github.com/roach88/stripe/internal/ir"
	"github.com/roach88/stripe/internal/store"
)

func TestReplayMatchesSucceededRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "stripe.db")
	_, _, err := execute(newRunCommand(runCommand("text", "run-1")), program("double.cue"),
		"--db", db, "--parallel", "3", "--input", "x="+filepath.Join("testdata", "inputs", "x.json"))
	require.NoError(t, err)

	out, _, err := execute(NewReplayCommand(&RootOptions{Format: "json"}), "--db", db, "run-1")
	require.NoError(t, err)

	var result ReplayOutput
	decodeResponse(t, out, &result)
	assert.True(t, result.Match)
	assert.Equal(t, "succeeded", result.Status)
}

func TestReplayMatchesFailedRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "stripe.db")
	recordRun(t, db, "run-bad", "out_of_bounds.cue")

	out, _, err := execute(NewReplayCommand(&RootOptions{Format: "text"}), "--db", db, "run-bad")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ replay of run-bad matches (failed)")
}

func TestReplayRestoresStatementBudget(t *testing.T) {
	db := filepath.Join(t.TempDir(), "stripe.db")
	_, _, err := execute(newRunCommand(runCommand("text", "run-budget")), program("load_index.cue"),
		"--db", db, "--max-statements", "3", "--seed", "42")
	require.Error(t, err)

	st, err := store.Open(db)
	require.NoError(t, err)
	rec, err := st.ReadRun(context.Background(), "run-budget")
	require.NoError(t, err)
	require.NoError(t, st.Close())
	assert.Equal(t, store.RunFailed, rec.Status)
	assert.Equal(t, int64(3), rec.MaxStatements)
	require.NotNil(t, rec.Seed)
	assert.Equal(t, uint64(42), *rec.Seed)

	out, _, err := execute(NewReplayCommand(&RootOptions{Format: "text"}), "--db", db, "run-budget")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ replay of run-budget matches (failed)")
}

func TestReplayDetectsTamperedOutputs(t *testing.T) {
	db := filepath.Join(t.TempDir(), "stripe.db")
	ctx := context.Background()

	st, err := store.Open(db)
	require.NoError(t, err)
	p, err := LoadProgram(program("load_index.cue"))
	require.NoError(t, err)
	res, err := engine.New().Run(ctx, p)
	require.NoError(t, err)

	r := res.Buffers["r"].Clone()
	r.Sections[ir.DataSection][0] ^= 0xff
	hash, err := st.WriteProgram(ctx, p)
	require.NoError(t, err)
	require.NoError(t, st.WriteRun(ctx, store.RunRecord{
		ID:          "tampered",
		ProgramHash: hash,
		Status:      store.RunSucceeded,
		Parallelism: 1,
		Outputs:     map[string]ir.Buffer{"r": r},
	}))
	require.NoError(t, st.Close())

	out, _, err := execute(NewReplayCommand(&RootOptions{Format: "text"}), "--db", db, "tampered")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNonDeterministic)
	assert.Contains(t, out, `buffer "r": contents differ`)
}

func TestReplayUnknownRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "stripe.db")
	_, _, err := execute(NewReplayCommand(&RootOptions{Format: "text"}), "--db", db, "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
}
