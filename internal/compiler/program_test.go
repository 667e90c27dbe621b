package compiler

import (
	"errors"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/gx-org/backend/dtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stripe/internal/ir"
)

func TestCompileProgramBasic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		#n: 4
		program: entry: block: {
			name: "main"
			idxs: [{name: "i", range: #n}]
			refs: r: {
				shape: {dtype: "int64", dims: [{size: #n, stride: 1}]}
				access: ["i"]
			}
			stmts: [
				{load_index: {from: "i", into: "s0"}},
				{store: {from: "s0", into: "r"}, deps: [0]},
			]
		}
	`)
	require.NoError(t, v.Err())

	p, err := CompileProgram(v.LookupPath(cue.ParsePath("program")))
	require.NoError(t, err)

	root := p.Root()
	require.NotNil(t, root)
	assert.Equal(t, "main", root.Name)
	require.Len(t, root.Idxs, 1)
	assert.Equal(t, uint64(4), root.Idxs[0].Range)
	assert.Equal(t, ir.SimpleShape(dtype.Int64, 4), root.Refs["r"].Shape)
	assert.Equal(t, []int{0}, root.Stmts[1].Meta().Deps)

	// Missing root buffers are allocated.
	assert.Len(t, p.Buffers["r"].Data(), 32)
	assert.Empty(t, Validate(p, nil))
}

func TestCompileProgramComprehension(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		program: entry: block: {
			name: "main"
			refs: {
				for n in ["a", "b", "c"] {
					(n): shape: dtype: "float32"
				}
			}
			stmts: [
				for i, n in ["a", "b", "c"] {
					constant: {name: "k\(i)", "float": 0.5 * i}
				},
			]
		}
	`)
	require.NoError(t, v.Err())

	p, err := CompileProgram(v.LookupPath(cue.ParsePath("program")))
	require.NoError(t, err)

	root := p.Root()
	assert.Equal(t, []string{"a", "b", "c"}, root.RefNames())
	require.Len(t, root.Stmts, 3)
	c, ok := root.Stmts[2].(*ir.Constant)
	require.True(t, ok)
	assert.Equal(t, "k2", c.Name)
	assert.Equal(t, ir.FloatConst(1.0), c.Value)
}

func TestCompileProgramSchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"bad dtype", `program: entry: block: {name: "m", refs: x: shape: dtype: "complex"}`},
		{"unknown field", `program: entry: block: {name: "m", bogus: 1}`},
		{"negative range", `program: entry: block: {name: "m", idxs: [{name: "i", range: -1}]}`},
		{"not concrete", `program: entry: block: {name: string}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := cuecontext.New()
			v := ctx.CompileString(tt.src)
			require.NoError(t, v.Err())

			_, err := CompileProgram(v.LookupPath(cue.ParsePath("program")))
			require.Error(t, err)
			var ce *CompileError
			assert.True(t, errors.As(err, &ce), "want *CompileError, got %T: %v", err, err)
		})
	}
}

func TestCompileProgramDecoderErrors(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`program: entry: {
		load: {from: "a", into: "b"}
		store: {from: "b", into: "a"}
	}`)
	require.NoError(t, v.Err())

	_, err := CompileProgram(v.LookupPath(cue.ParsePath("program")))
	require.Error(t, err)
	assert.True(t, ir.IsKind(err, ir.ErrSchemaMismatch))
}

func TestCompileProgramMissingValue(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`other: 1`)
	_, err := CompileProgram(v.LookupPath(cue.ParsePath("program")))
	require.Error(t, err)
}

func TestCompileErrorFormatting(t *testing.T) {
	err := &CompileError{Field: "program", Message: "bad"}
	assert.Equal(t, "program: bad", err.Error())
}
