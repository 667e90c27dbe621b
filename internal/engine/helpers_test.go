package engine

import (
	"context"
	"log/slog"
	"testing"

	"github.com/gx-org/backend/dtype"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stripe/internal/ir"
)

func i64(sizes ...uint64) ir.Shape {
	return ir.SimpleShape(dtype.Int64, sizes...)
}

func quiet(opts ...Option) *Executor {
	return New(append([]Option{WithLogger(slog.New(slog.DiscardHandler))}, opts...)...)
}

// loadIndexProgram stores i into r[i] for i in [0,4).
func loadIndexProgram() *ir.Program {
	return ir.NewProgram(ir.NewBlock("main").
		Idx("i", 4, ir.Const(0)).
		Ref("r", &ir.Refinement{Shape: i64(4), Access: []ir.Affine{ir.Idx("i")}}).
		Stmt(&ir.LoadIndex{From: ir.Idx("i"), Into: "s0"}).
		Stmt(&ir.Store{From: "s0", Into: "r"}).
		Build())
}

// aggProgram stores the constant 1 into a single cell from each of four
// tuples, combining with agg.
func aggProgram(agg string) *ir.Program {
	return ir.NewProgram(ir.NewBlock("main").
		Idx("i", 4, ir.Const(0)).
		Ref("r", &ir.Refinement{Shape: i64(1), AggOp: agg}).
		Stmt(&ir.Constant{Name: "one", Value: ir.IntConst(1)}).
		Stmt(&ir.Store{From: "one", Into: "r"}).
		Build())
}

// constraintProgram writes i into r[i] for the tuples admitted by i - 5 >= 0.
func constraintProgram() *ir.Program {
	return ir.NewProgram(ir.NewBlock("main").
		Idx("i", 10, ir.Const(0)).
		Constraint(ir.MustParseAffine("i - 5")).
		Ref("r", &ir.Refinement{Shape: i64(10), Access: []ir.Affine{ir.Idx("i")}}).
		Stmt(&ir.LoadIndex{From: ir.Idx("i"), Into: "s"}).
		Stmt(&ir.Store{From: "s", Into: "r"}).
		Build())
}

// nestedProgram fills r[3*i + j] with 3*i + j through a row view and a
// cell view.
func nestedProgram() *ir.Program {
	cell := ir.NewBlock("cell").
		Idx("j", 3, ir.Const(0)).
		Ref("c", &ir.Refinement{Dir: ir.DirOut, From: "row", Shape: i64(1), Access: []ir.Affine{ir.Idx("j")}}).
		Stmt(&ir.LoadIndex{From: ir.MustParseAffine("3*i + j"), Into: "s"}).
		Stmt(&ir.Store{From: "s", Into: "c"}).
		Build()
	row := ir.NewBlock("row").
		Idx("i", 2, ir.Const(0)).
		Ref("row", &ir.Refinement{Dir: ir.DirOut, From: "r", Shape: i64(3), Access: []ir.Affine{ir.Term("i", 3)}}).
		Stmt(cell).
		Build()
	return ir.NewProgram(ir.NewBlock("main").
		Ref("r", &ir.Refinement{Shape: i64(6)}).
		Stmt(row).
		Build())
}

func mustRun(t *testing.T, e *Executor, p *ir.Program) *Result {
	t.Helper()
	res, err := e.Run(context.Background(), p)
	require.NoError(t, err)
	return res
}

func int64s(t *testing.T, res *Result, buffer string) []int64 {
	t.Helper()
	vals, err := DecodeElements(dtype.Int64, res.Buffers[buffer].Data())
	require.NoError(t, err)
	out := make([]int64, len(vals))
	for i, v := range vals {
		out[i] = v.Int()
	}
	return out
}
