package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/stripe/internal/engine"
	"github.com/roach88/stripe/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions runs every assertion against a successful run and
// returns the failure messages.
func EvaluateAssertions(result *Result, p *ir.Program, assertions []Assertion) []string {
	var msgs []string
	for i, a := range assertions {
		if err := evaluate(result, p, a); err != nil {
			msgs = append(msgs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return msgs
}

func evaluate(result *Result, p *ir.Program, a Assertion) error {
	switch a.Type {
	case AssertBufferEquals:
		return assertBufferEquals(result, p, a)
	case AssertBufferOneOf:
		return assertBufferOneOf(result, p, a)
	case AssertStats:
		return assertStats(result.Stats, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// outputScalars returns the buffer's values and the expected values, both
// typed by the buffer's element type.
func outputScalars(result *Result, p *ir.Program, a Assertion) (got, want []engine.Scalar, err error) {
	shape, ok := p.BufferShape(a.Buffer)
	if !ok {
		return nil, nil, fmt.Errorf("program has no buffer %q", a.Buffer)
	}
	raw, ok := result.Outputs[a.Buffer]
	if !ok {
		return nil, nil, fmt.Errorf("run produced no buffer %q", a.Buffer)
	}
	if got, err = engine.ParseScalars(shape.DType, raw); err != nil {
		return nil, nil, err
	}
	if want, err = engine.ParseScalars(shape.DType, a.Values); err != nil {
		return nil, nil, fmt.Errorf("expected values: %w", err)
	}
	return got, want, nil
}

func assertBufferEquals(result *Result, p *ir.Program, a Assertion) error {
	got, want, err := outputScalars(result, p, a)
	if err != nil {
		return err
	}
	equal := len(got) == len(want)
	for i := 0; equal && i < len(got); i++ {
		equal = got[i].Equal(want[i])
	}
	if !equal {
		return &AssertionError{
			Type:     AssertBufferEquals,
			Expected: fmt.Sprintf("%s = %v", a.Buffer, want),
			Actual:   fmt.Sprintf("%s = %v", a.Buffer, got),
		}
	}
	return nil
}

// assertBufferOneOf accepts any of several values for one element, for
// results that depend on which concurrent writer landed last.
func assertBufferOneOf(result *Result, p *ir.Program, a Assertion) error {
	got, want, err := outputScalars(result, p, a)
	if err != nil {
		return err
	}
	if a.Index >= len(got) {
		return fmt.Errorf("index %d outside buffer %q of %d elements", a.Index, a.Buffer, len(got))
	}
	for _, w := range want {
		if got[a.Index].Equal(w) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertBufferOneOf,
		Expected: fmt.Sprintf("%s[%d] in %v", a.Buffer, a.Index, want),
		Actual:   fmt.Sprintf("%s[%d] = %v", a.Buffer, a.Index, got[a.Index]),
	}
}

func assertStats(stats engine.Stats, a Assertion) error {
	actual := map[string]int64{
		"activations":     stats.Activations,
		"tuples_visited":  stats.TuplesVisited,
		"tuples_admitted": stats.TuplesAdmitted,
		"statements":      stats.Statements,
	}
	for _, name := range sortedNames(a.Stats) {
		if actual[name] != a.Stats[name] {
			return &AssertionError{
				Type:     AssertStats,
				Expected: fmt.Sprintf("%s = %d", name, a.Stats[name]),
				Actual:   fmt.Sprintf("%s = %d", name, actual[name]),
			}
		}
	}
	return nil
}

// assertTraceCount checks that statements of the kind ran exactly Count times.
func assertTraceCount(trace []engine.TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if string(ev.Kind) == a.Kind {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s executed %d times", a.Kind, a.Count),
			Actual:   fmt.Sprintf("%s executed %d times", a.Kind, count),
		}
	}
	return nil
}

// assertTraceOrder checks that the first execution of each kind appears in
// the given order. Kinds don't need to be consecutive.
func assertTraceOrder(trace []engine.TraceEvent, a Assertion) error {
	first := make(map[string]int)
	for i, ev := range trace {
		if _, seen := first[string(ev.Kind)]; !seen {
			first[string(ev.Kind)] = i + 1 // 1-indexed for readability
		}
	}

	for _, kind := range a.Kinds {
		if first[kind] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all kinds present: %v", a.Kinds),
				Actual:   fmt.Sprintf("missing kind: %s", kind),
			}
		}
	}
	for i := 1; i < len(a.Kinds); i++ {
		prev, curr := a.Kinds[i-1], a.Kinds[i]
		if first[prev] >= first[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("kinds in order: %v", a.Kinds),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, first[prev], curr, first[curr]),
			}
		}
	}
	return nil
}
