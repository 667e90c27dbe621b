package harness

import (
	"testing"

	"github.com/gx-org/backend/dtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stripe/internal/engine"
	"github.com/roach88/stripe/internal/ir"
)

func floatProgram() *ir.Program {
	return ir.NewProgram(ir.NewBlock("main").
		Ref("f", &ir.Refinement{Shape: ir.SimpleShape(dtype.Float32, 2)}).
		Build())
}

func trace(kinds ...ir.StmtKind) []engine.TraceEvent {
	out := make([]engine.TraceEvent, len(kinds))
	for i, k := range kinds {
		out[i] = engine.TraceEvent{Seq: int64(i + 1), Path: "main", Kind: k}
	}
	return out
}

func TestAssertBufferEquals(t *testing.T) {
	p := floatProgram()
	result := &Result{Outputs: map[string][]any{"f": {0.5, 2.0}}}

	assert.NoError(t, evaluate(result, p, Assertion{Type: AssertBufferEquals, Buffer: "f", Values: []any{0.5, 2}}))

	err := evaluate(result, p, Assertion{Type: AssertBufferEquals, Buffer: "f", Values: []any{0.5}})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertBufferEquals, ae.Type)

	err = evaluate(result, p, Assertion{Type: AssertBufferEquals, Buffer: "g", Values: []any{1}})
	assert.ErrorContains(t, err, `program has no buffer "g"`)
}

func TestAssertBufferOneOf(t *testing.T) {
	p := floatProgram()
	result := &Result{Outputs: map[string][]any{"f": {0.5, 2.0}}}

	assert.NoError(t, evaluate(result, p, Assertion{Type: AssertBufferOneOf, Buffer: "f", Index: 1, Values: []any{1, 2}}))
	assert.Error(t, evaluate(result, p, Assertion{Type: AssertBufferOneOf, Buffer: "f", Index: 0, Values: []any{1, 2}}))
	assert.ErrorContains(t, evaluate(result, p, Assertion{Type: AssertBufferOneOf, Buffer: "f", Index: 5, Values: []any{1}}), "outside buffer")
}

func TestAssertStats(t *testing.T) {
	stats := engine.Stats{Activations: 1, TuplesVisited: 4, TuplesAdmitted: 2, Statements: 6}

	assert.NoError(t, assertStats(stats, Assertion{Stats: map[string]int64{"tuples_admitted": 2, "statements": 6}}))
	err := assertStats(stats, Assertion{Stats: map[string]int64{"tuples_visited": 3}})
	assert.ErrorContains(t, err, "tuples_visited = 4")
}

func TestAssertTraceCount(t *testing.T) {
	tr := trace(ir.KindLoadIndex, ir.KindStore, ir.KindLoadIndex, ir.KindStore)

	assert.NoError(t, assertTraceCount(tr, Assertion{Kind: "store", Count: 2}))
	assert.NoError(t, assertTraceCount(tr, Assertion{Kind: "special", Count: 0}))
	assert.ErrorContains(t, assertTraceCount(tr, Assertion{Kind: "store", Count: 3}), "store executed 2 times")
}

func TestAssertTraceOrder(t *testing.T) {
	tr := trace(ir.KindLoad, ir.KindIntrinsic, ir.KindStore, ir.KindLoad)

	assert.NoError(t, assertTraceOrder(tr, Assertion{Kinds: []string{"load", "store"}}))
	assert.NoError(t, assertTraceOrder(tr, Assertion{Kinds: []string{"load", "intrinsic", "store"}}))

	err := assertTraceOrder(tr, Assertion{Kinds: []string{"store", "load"}})
	assert.ErrorContains(t, err, "store (pos 3) should be before load (pos 1)")

	err = assertTraceOrder(tr, Assertion{Kinds: []string{"load", "special"}})
	assert.ErrorContains(t, err, "missing kind: special")
}

func TestEvaluateAssertions_CollectsAll(t *testing.T) {
	result := &Result{Stats: engine.Stats{Statements: 1}, Trace: trace(ir.KindConstant)}
	msgs := EvaluateAssertions(result, floatProgram(), []Assertion{
		{Type: AssertStats, Stats: map[string]int64{"statements": 2}},
		{Type: AssertTraceCount, Kind: "constant", Count: 1},
		{Type: AssertTraceCount, Kind: "store", Count: 1},
	})
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "assertions[0]")
	assert.Contains(t, msgs[1], "assertions[2]")
}
