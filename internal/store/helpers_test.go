package store

import (
	"path/filepath"
	"testing"

	"github.com/gx-org/backend/dtype"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stripe/internal/ir"
)

// createTestStore creates a store in a temp directory for testing.
// The store is automatically closed when the test completes.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func testProgram() *ir.Program {
	return ir.NewProgram(ir.NewBlock("main").
		Idx("i", 4, ir.Const(0)).
		Ref("r", &ir.Refinement{Shape: ir.SimpleShape(dtype.Int64, 4), Access: []ir.Affine{ir.Idx("i")}}).
		Stmt(&ir.LoadIndex{From: ir.Idx("i"), Into: "s0"}).
		Stmt(&ir.Store{From: "s0", Into: "r"}).
		Build())
}
