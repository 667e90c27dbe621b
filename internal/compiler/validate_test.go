package compiler

import (
	"testing"

	"github.com/gx-org/backend/dtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stripe/internal/ir"
)

type testCatalog struct{}

func (testCatalog) IntrinsicArity(name string) (int, int, bool) {
	switch name {
	case "add", "mul":
		return 2, 1, true
	case "neg":
		return 1, 1, true
	}
	return 0, 0, false
}

func (testCatalog) HasAgg(name string) bool     { return name == "add" || name == "assign" }
func (testCatalog) HasSpecial(name string) bool { return name == "zero" }

func i64(sizes ...uint64) ir.Shape {
	return ir.SimpleShape(dtype.Int64, sizes...)
}

// codes returns the error codes in order.
func codes(errs []ValidationError) []ir.ErrorKind {
	out := make([]ir.ErrorKind, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

// validNested builds main{i<4, r[4]} -> inner{j<2, view of r at i}.
func validNested() *ir.Program {
	inner := ir.NewBlock("inner").
		Idx("j", 2, ir.Idx("i")).
		Constraint(ir.Const(3).Add(ir.Term("j", -1))).
		Ref("v", &ir.Refinement{Dir: ir.DirOut, From: "r", Access: []ir.Affine{ir.Idx("i")}, Shape: i64(), AggOp: "add"}).
		Stmt(&ir.LoadIndex{From: ir.Idx("j").Add(ir.Idx("i")), Into: "x"}).
		Stmt(&ir.Constant{Name: "one", Value: ir.IntConst(1)}).
		Stmt(&ir.Intrinsic{Name: "add", Type: dtype.Int64, Inputs: []string{"x", "one"}, Outputs: []string{"y"}}).
		Stmt(&ir.Store{StmtMeta: ir.StmtMeta{Deps: []int{2}}, From: "y", Into: "v"}).
		Build()
	main := ir.NewBlock("main").
		Idx("i", 4, ir.Const(0)).
		Ref("r", &ir.Refinement{Shape: i64(4)}).
		Stmt(inner).
		Build()
	return ir.NewProgram(main)
}

func TestValidateValidProgram(t *testing.T) {
	errs := Validate(validNested(), testCatalog{})
	assert.Empty(t, errs, "valid program should have no errors")
	assert.NoError(t, Check(validNested(), testCatalog{}))
}

func TestValidateEntryNotBlock(t *testing.T) {
	errs := Validate(&ir.Program{Entry: &ir.Load{From: "a", Into: "b"}}, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, ir.ErrEntryNotBlock, errs[0].Code)
	assert.Equal(t, "entry", errs[0].Path)

	errs = Validate(&ir.Program{}, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, ir.ErrEntryNotBlock, errs[0].Code)
}

func TestValidateDuplicateSSA(t *testing.T) {
	main := ir.NewBlock("main").
		Stmt(&ir.Constant{Name: "x", Value: ir.IntConst(1)}).
		Stmt(&ir.Constant{Name: "x", Value: ir.IntConst(2)}).
		Build()

	errs := Validate(ir.NewProgram(main), nil)
	require.Len(t, errs, 1)
	assert.Equal(t, ir.ErrDuplicateSSADefinition, errs[0].Code)
	assert.Equal(t, "main#1", errs[0].Path)
}

func TestValidateSSAScopesAreFreshPerBlock(t *testing.T) {
	inner := ir.NewBlock("inner").Stmt(&ir.Constant{Name: "x", Value: ir.IntConst(2)}).Build()
	main := ir.NewBlock("main").
		Stmt(&ir.Constant{Name: "x", Value: ir.IntConst(1)}).
		Stmt(inner).
		Build()
	assert.Empty(t, Validate(ir.NewProgram(main), nil))
}

func TestValidateScalarsDoNotCrossBlocks(t *testing.T) {
	inner := ir.NewBlock("inner").
		Ref("o", &ir.Refinement{Dir: ir.DirOut, From: "r", Shape: i64()}).
		Stmt(&ir.Store{From: "x", Into: "o"}).
		Build()
	main := ir.NewBlock("main").
		Ref("r", &ir.Refinement{Shape: i64()}).
		Stmt(&ir.Constant{Name: "x", Value: ir.IntConst(1)}).
		Stmt(inner).
		Build()

	errs := Validate(ir.NewProgram(main), nil)
	require.Len(t, errs, 1)
	assert.Equal(t, ir.ErrUndefinedScalar, errs[0].Code)
	assert.Equal(t, "main/inner#0", errs[0].Path)
}

func TestValidateUseBeforeDef(t *testing.T) {
	main := ir.NewBlock("main").
		Stmt(&ir.Intrinsic{Name: "neg", Type: dtype.Int64, Inputs: []string{"a"}, Outputs: []string{"b"}}).
		Stmt(&ir.Constant{Name: "a", Value: ir.IntConst(1)}).
		Build()
	assert.Equal(t, []ir.ErrorKind{ir.ErrUndefinedScalar}, codes(Validate(ir.NewProgram(main), testCatalog{})))
}

func TestValidateDeps(t *testing.T) {
	tests := []struct {
		name string
		deps []int
		n    int
	}{
		{"forward", []int{2}, 1},
		{"self", []int{1}, 1},
		{"negative", []int{-1}, 1},
		{"repeated", []int{0, 0}, 1},
		{"valid", []int{0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			main := ir.NewBlock("main").
				Stmt(&ir.Constant{Name: "a", Value: ir.IntConst(1)}).
				Stmt(&ir.Constant{StmtMeta: ir.StmtMeta{Deps: tt.deps}, Name: "b", Value: ir.IntConst(2)}).
				Stmt(&ir.Constant{Name: "c", Value: ir.IntConst(3)}).
				Build()
			errs := Validate(ir.NewProgram(main), nil)
			require.Len(t, errs, tt.n)
			for _, e := range errs {
				assert.Equal(t, ir.ErrCyclicOrInvalidDependency, e.Code)
				assert.Equal(t, "main#1", e.Path)
			}
		})
	}
}

func TestValidateIndexScopes(t *testing.T) {
	t.Run("index affine cannot see sibling indices", func(t *testing.T) {
		main := ir.NewBlock("main").Idx("i", 2, ir.Const(0)).Idx("j", 2, ir.Idx("i")).Build()
		errs := Validate(ir.NewProgram(main), nil)
		require.Len(t, errs, 1)
		assert.Equal(t, ir.ErrUnboundIndex, errs[0].Code)
		assert.Equal(t, "main.idxs[1]", errs[0].Path)
	})

	t.Run("constraint on unknown index", func(t *testing.T) {
		main := ir.NewBlock("main").Idx("i", 2, ir.Const(0)).Constraint(ir.Idx("k")).Build()
		assert.Equal(t, []ir.ErrorKind{ir.ErrUnboundIndex}, codes(Validate(ir.NewProgram(main), nil)))
	})

	t.Run("load index sees enclosing indices", func(t *testing.T) {
		inner := ir.NewBlock("inner").Idx("j", 2, ir.Const(0)).
			Stmt(&ir.LoadIndex{From: ir.Idx("i").Add(ir.Idx("j")), Into: "s"}).Build()
		main := ir.NewBlock("main").Idx("i", 2, ir.Const(0)).Stmt(inner).Build()
		assert.Empty(t, Validate(ir.NewProgram(main), nil))
	})

	t.Run("inner indices are not visible outside", func(t *testing.T) {
		inner := ir.NewBlock("inner").Idx("j", 2, ir.Const(0)).Build()
		main := ir.NewBlock("main").Stmt(inner).Stmt(&ir.LoadIndex{From: ir.Idx("j"), Into: "s"}).Build()
		assert.Equal(t, []ir.ErrorKind{ir.ErrUnboundIndex}, codes(Validate(ir.NewProgram(main), nil)))
	})

	t.Run("duplicate index", func(t *testing.T) {
		main := ir.NewBlock("main").Idx("i", 2, ir.Const(0)).Idx("i", 3, ir.Const(0)).Build()
		assert.Equal(t, []ir.ErrorKind{ir.ErrDuplicateIndex}, codes(Validate(ir.NewProgram(main), nil)))
	})
}

func TestValidateRefinementLinks(t *testing.T) {
	nested := func(r *ir.Refinement, parent *ir.Refinement) *ir.Program {
		inner := ir.NewBlock("inner").Ref("v", r).Build()
		main := ir.NewBlock("main").Ref("r", parent).Stmt(inner).Build()
		return ir.NewProgram(main)
	}

	tests := []struct {
		name   string
		ref    *ir.Refinement
		parent *ir.Refinement
		code   ir.ErrorKind
	}{
		{"dir without from", &ir.Refinement{Dir: ir.DirIn, Shape: i64()}, &ir.Refinement{Shape: i64(4)}, ir.ErrMalformedRefinementLink},
		{"from without dir", &ir.Refinement{From: "r", Access: []ir.Affine{ir.Const(0)}, Shape: i64()}, &ir.Refinement{Shape: i64(4)}, ir.ErrMalformedRefinementLink},
		{"unknown parent", &ir.Refinement{Dir: ir.DirIn, From: "q", Shape: i64()}, &ir.Refinement{Shape: i64(4)}, ir.ErrUndefinedRefinement},
		{"access rank", &ir.Refinement{Dir: ir.DirIn, From: "r", Shape: i64()}, &ir.Refinement{Shape: i64(4)}, ir.ErrMalformedRefinementLink},
		{"dtype", &ir.Refinement{Dir: ir.DirIn, From: "r", Access: []ir.Affine{ir.Const(0)}, Shape: ir.SimpleShape(dtype.Float32)}, &ir.Refinement{Shape: i64(4)}, ir.ErrTypeMismatch},
		{"unknown agg", &ir.Refinement{Dir: ir.DirOut, From: "r", Access: []ir.Affine{ir.Const(0)}, Shape: i64(), AggOp: "xor"}, &ir.Refinement{Shape: i64(4)}, ir.ErrUnknownIntrinsic},
		{"fresh access rank", &ir.Refinement{Access: []ir.Affine{ir.Const(0)}, Shape: i64(2, 2)}, &ir.Refinement{Shape: i64(4)}, ir.ErrMalformedRefinementLink},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(nested(tt.ref, tt.parent), testCatalog{})
			require.Len(t, errs, 1, "errors: %v", errs)
			assert.Equal(t, tt.code, errs[0].Code)
			assert.Equal(t, "main/inner.refs.v", errs[0].Path)
		})
	}
}

func TestValidateWritesThroughReadOnly(t *testing.T) {
	leaf := ir.NewBlock("leaf").
		Ref("w", &ir.Refinement{Dir: ir.DirOut, From: "v", Shape: i64()}).
		Build()
	inner := ir.NewBlock("inner").
		Ref("v", &ir.Refinement{Dir: ir.DirIn, From: "r", Access: []ir.Affine{ir.Const(0)}, Shape: i64()}).
		Stmt(&ir.Constant{Name: "c", Value: ir.IntConst(1)}).
		Stmt(&ir.Store{From: "c", Into: "v"}).
		Stmt(leaf).
		Build()
	main := ir.NewBlock("main").Ref("r", &ir.Refinement{Shape: i64(4)}).Stmt(inner).Build()

	errs := Validate(ir.NewProgram(main), nil)
	assert.Equal(t, []ir.ErrorKind{ir.ErrMalformedRefinementLink, ir.ErrMalformedRefinementLink}, codes(errs))
	assert.Equal(t, "main/inner#1", errs[0].Path)
	assert.Equal(t, "main/inner/leaf.refs.w", errs[1].Path)
}

func TestValidateRootBuffers(t *testing.T) {
	main := ir.NewBlock("main").
		Ref("a", &ir.Refinement{Shape: i64(2)}).
		Ref("b", &ir.Refinement{Dir: ir.DirIn, From: "buf", Shape: i64(2)}).
		Build()
	p := &ir.Program{Entry: main, Buffers: map[string]ir.Buffer{"a": ir.NewBuffer(make([]byte, 16))}}

	errs := Validate(p, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, ir.ErrUndefinedRefinement, errs[0].Code)
	assert.Contains(t, errs[0].Message, `"buf"`)

	p.AllocateMissing()
	assert.Empty(t, Validate(p, nil))
}

func TestValidateStatementRefs(t *testing.T) {
	main := ir.NewBlock("main").
		Ref("r", &ir.Refinement{Shape: i64()}).
		Stmt(&ir.Load{From: "missing", Into: "x"}).
		Stmt(&ir.Store{From: "x", Into: "nowhere"}).
		Stmt(&ir.Special{Name: "zero", Outputs: []string{"gone"}}).
		Build()

	errs := Validate(ir.NewProgram(main), testCatalog{})
	assert.Equal(t, []ir.ErrorKind{ir.ErrUndefinedRefinement, ir.ErrUndefinedRefinement, ir.ErrUndefinedRefinement}, codes(errs))
}

func TestValidateCatalog(t *testing.T) {
	main := ir.NewBlock("main").
		Ref("r", &ir.Refinement{Shape: i64()}).
		Stmt(&ir.Constant{Name: "a", Value: ir.IntConst(1)}).
		Stmt(&ir.Intrinsic{Name: "frobnicate", Type: dtype.Int64, Inputs: []string{"a"}, Outputs: []string{"b"}}).
		Stmt(&ir.Intrinsic{Name: "add", Type: dtype.Int64, Inputs: []string{"a"}, Outputs: []string{"c"}}).
		Stmt(&ir.Special{Name: "launch", Outputs: []string{"r"}}).
		Build()

	errs := Validate(ir.NewProgram(main), testCatalog{})
	assert.Equal(t, []ir.ErrorKind{ir.ErrUnknownIntrinsic, ir.ErrArityMismatch, ir.ErrUnknownIntrinsic}, codes(errs))

	// Without a catalog names are not checked.
	assert.Empty(t, Validate(ir.NewProgram(main), nil))
}

func TestValidateCollectsAllErrors(t *testing.T) {
	main := ir.NewBlock("main").
		Idx("i", 2, ir.Idx("ghost")).
		Ref("r", &ir.Refinement{Dir: ir.DirOut, Shape: i64()}).
		Stmt(&ir.Constant{Name: "x", Value: ir.IntConst(1)}).
		Stmt(&ir.Constant{Name: "x", Value: ir.IntConst(1)}).
		Build()

	err := Check(ir.NewProgram(main), nil)
	require.Error(t, err)
	assert.True(t, ir.IsKind(err, ir.ErrUnboundIndex))
	assert.True(t, ir.IsKind(err, ir.ErrMalformedRefinementLink))
	assert.True(t, ir.IsKind(err, ir.ErrDuplicateSSADefinition))
}

func TestValidatePlacementMetadataIsIgnored(t *testing.T) {
	p := validNested()
	inner := p.Root().Stmts[0].(*ir.Block)
	inner.Refs["v"].Offset = 4096
	inner.Refs["v"].BankDim = &ir.BankDimension{DimPos: 0}
	inner.Refs["v"].Location = ir.Location{Devs: []ir.Device{{Name: "SRAM", Units: []ir.Affine{ir.Idx("j").Add(ir.Const(1))}}}}
	inner.Location = ir.Location{Devs: []ir.Device{{Name: "PE", Units: []ir.Affine{ir.Idx("i")}}}}

	assert.Empty(t, Validate(p, testCatalog{}))
}

func TestValidateLocationUnits(t *testing.T) {
	t.Run("block unit on unknown index", func(t *testing.T) {
		p := validNested()
		inner := p.Root().Stmts[0].(*ir.Block)
		inner.Location = ir.Location{Devs: []ir.Device{{Name: "DRAM"}, {Name: "PE", Units: []ir.Affine{ir.Idx("nowhere")}}}}

		errs := Validate(p, testCatalog{})
		require.Len(t, errs, 1)
		assert.Equal(t, ir.ErrUnboundIndex, errs[0].Code)
		assert.Equal(t, "main/inner.location.devs[1].units[0]", errs[0].Path)
	})

	t.Run("refinement unit on unknown index", func(t *testing.T) {
		p := validNested()
		inner := p.Root().Stmts[0].(*ir.Block)
		inner.Refs["v"].Location = ir.Location{Devs: []ir.Device{{Name: "SRAM", Units: []ir.Affine{ir.Idx("j"), ir.Idx("nowhere")}}}}

		errs := Validate(p, testCatalog{})
		require.Len(t, errs, 1)
		assert.Equal(t, ir.ErrUnboundIndex, errs[0].Code)
		assert.Equal(t, "main/inner.refs.v.location.devs[0].units[1]", errs[0].Path)
	})

	t.Run("root units cannot see inner indices", func(t *testing.T) {
		p := validNested()
		p.Root().Location = ir.Location{Devs: []ir.Device{{Name: "PE", Units: []ir.Affine{ir.Idx("j")}}}}

		assert.Equal(t, []ir.ErrorKind{ir.ErrUnboundIndex}, codes(Validate(p, testCatalog{})))
	})
}
