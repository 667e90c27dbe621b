package engine

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/roach88/stripe/internal/ir"
)

func collect(t *testing.T, b *ir.Block, outer *Scope) []Tuple {
	t.Helper()
	seq, err := Tuples(b, outer)
	require.NoError(t, err)
	var out []Tuple
	for tup := range seq {
		out = append(out, tup)
	}
	return out
}

func TestTuplesOrderFirstIndexSlowest(t *testing.T) {
	b := ir.NewBlock("b").Idx("i", 2, ir.Const(0)).Idx("j", 3, ir.Const(10)).Build()

	assert.Equal(t, []Tuple{
		{0, 10}, {0, 11}, {0, 12},
		{1, 10}, {1, 11}, {1, 12},
	}, collect(t, b, nil))
}

func TestTuplesConstraintFiltering(t *testing.T) {
	got := collect(t, constraintProgram().Root(), nil)
	assert.Equal(t, []Tuple{{5}, {6}, {7}, {8}, {9}}, got)

	n, err := CountTuples(constraintProgram().Root(), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), n)
}

func TestTuplesEdgeCases(t *testing.T) {
	empty := ir.NewBlock("b").Idx("i", 3, ir.Const(0)).Idx("j", 0, ir.Const(0)).Build()
	assert.Empty(t, collect(t, empty, nil), "a zero-range index empties the space")

	scalar := ir.NewBlock("b").Build()
	assert.Equal(t, []Tuple{{}}, collect(t, scalar, nil), "no indexes is one empty tuple")

	never := ir.NewBlock("b").Idx("i", 4, ir.Const(0)).Constraint(ir.Const(-1)).Build()
	assert.Empty(t, collect(t, never, nil))
}

func TestTuplesStartsUseOuterScope(t *testing.T) {
	outer := (*Scope)(nil).Push([]string{"o"}, []int64{7})
	b := ir.NewBlock("b").
		Idx("i", 2, ir.MustParseAffine("2*o + 1")).
		Constraint(ir.MustParseAffine("o - i + 8")).
		Build()

	assert.Equal(t, []Tuple{{15}}, collect(t, b, outer))
}

func TestTuplesUnboundIndex(t *testing.T) {
	b := ir.NewBlock("b").Idx("i", 2, ir.Idx("missing")).Build()
	_, err := Tuples(b, nil)
	assert.True(t, ir.IsKind(err, ir.ErrUnboundIndex))

	c := ir.NewBlock("b").Idx("i", 2, ir.Const(0)).Constraint(ir.Idx("k")).Build()
	_, err = Tuples(c, nil)
	assert.True(t, ir.IsKind(err, ir.ErrUnboundIndex))
}

func TestTuplesRestartable(t *testing.T) {
	seq, err := Tuples(constraintProgram().Root(), nil)
	require.NoError(t, err)

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Equal(t, first, second)
}

func TestTuplesEarlyBreak(t *testing.T) {
	b := ir.NewBlock("b").Idx("i", 100, ir.Const(0)).Build()
	seq, err := Tuples(b, nil)
	require.NoError(t, err)

	n := 0
	for range seq {
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
}

// bruteForce enumerates the space with nested loops, evaluating starts and
// constraints through Affine.Eval.
func bruteForce(t *rapid.T, b *ir.Block, outer ir.Env) []Tuple {
	var out []Tuple
	env := ir.Env{}
	for k, v := range outer {
		env[k] = v
	}
	var rec func(d int, cur Tuple)
	rec = func(d int, cur Tuple) {
		if d == len(b.Idxs) {
			for _, c := range b.Constraints {
				v, err := c.Eval(env)
				if err != nil {
					t.Fatalf("constraint eval: %v", err)
				}
				if v < 0 {
					return
				}
			}
			out = append(out, slices.Clone(cur))
			return
		}
		idx := b.Idxs[d]
		start, err := idx.Affine.Eval(ir.Env(outer))
		if err != nil {
			t.Fatalf("start eval: %v", err)
		}
		for k := uint64(0); k < idx.Range; k++ {
			env[idx.Name] = start + int64(k)
			rec(d+1, append(cur, start+int64(k)))
		}
		delete(env, idx.Name)
	}
	rec(0, Tuple{})
	return out
}

func TestTuplesMatchBruteForce(t *testing.T) {
	names := []string{"i", "j", "k"}
	rapid.Check(t, func(t *rapid.T) {
		o := rapid.Int64Range(-5, 5).Draw(t, "o")
		outer := ir.Env{"o": o}

		n := rapid.IntRange(0, 3).Draw(t, "nidx")
		bb := ir.NewBlock("b")
		for d := 0; d < n; d++ {
			start := ir.Const(rapid.Int64Range(-3, 3).Draw(t, "start")).
				Add(ir.Term("o", rapid.Int64Range(-1, 1).Draw(t, "ocoeff")))
			bb.Idx(names[d], rapid.Uint64Range(0, 4).Draw(t, "range"), start)
		}
		for c := rapid.IntRange(0, 2).Draw(t, "ncons"); c > 0; c-- {
			a := ir.Const(rapid.Int64Range(-6, 6).Draw(t, "coff")).
				Add(ir.Term("o", rapid.Int64Range(-2, 2).Draw(t, "co")))
			for d := 0; d < n; d++ {
				a = a.Add(ir.Term(names[d], rapid.Int64Range(-2, 2).Draw(t, "cc")))
			}
			bb.Constraint(a)
		}
		b := bb.Build()

		seq, err := Tuples(b, (*Scope)(nil).Push([]string{"o"}, []int64{o}))
		if err != nil {
			t.Fatalf("Tuples: %v", err)
		}
		got := slices.Collect(seq)
		want := bruteForce(t, b, outer)
		if !slices.EqualFunc(got, want, slices.Equal[Tuple]) {
			t.Fatalf("Tuples = %v, brute force = %v", got, want)
		}
	})
}
