package harness

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/sebdah/goldie/v2"
	"golang.org/x/exp/maps"

	"github.com/roach88/stripe/internal/ir"
)

// traceSnapshot is the golden form of a run: everything that must be
// reproducible for a fixed scenario. The program hash is left out so that
// golden files survive wire format changes.
type traceSnapshot struct {
	ScenarioName string           `json:"scenario_name"`
	RunID        string           `json:"run_id"`
	RunErr       *RunError        `json:"run_error,omitempty"`
	Outputs      map[string][]any `json:"outputs"`
	Stats        any              `json:"stats"`
	Trace        []snapshotEvent  `json:"trace"`
}

type snapshotEvent struct {
	Seq   int64   `json:"seq"`
	Path  string  `json:"path"`
	Tuple []int64 `json:"tuple"`
	Stmt  int     `json:"stmt"`
	Kind  string  `json:"kind"`
}

// Snapshot renders a result as canonical JSON. Null never appears, so the
// output is accepted by ir.CanonicalizeJSON.
func Snapshot(name string, result *Result) ([]byte, error) {
	snap := traceSnapshot{
		ScenarioName: name,
		RunID:        result.RunID,
		RunErr:       result.RunErr,
		Outputs:      map[string][]any{},
		Stats:        result.Stats,
		Trace:        make([]snapshotEvent, len(result.Trace)),
	}
	for _, k := range sortedNames(result.Outputs) {
		vals := result.Outputs[k]
		if vals == nil {
			vals = []any{}
		}
		snap.Outputs[k] = vals
	}
	for i, ev := range result.Trace {
		tuple := []int64(ev.Tuple)
		if tuple == nil {
			tuple = []int64{}
		}
		snap.Trace[i] = snapshotEvent{Seq: ev.Seq, Path: ev.Path, Tuple: tuple, Stmt: ev.Stmt, Kind: string(ev.Kind)}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	return ir.CanonicalizeJSON(data)
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Scenarios compared this way must run with parallelism 1; parallel traces
// interleave differently from run to run.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(t.Context(), scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's snapshot against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}

func sortedNames[V any](m map[string]V) []string {
	names := maps.Keys(m)
	slices.Sort(names)
	return names
}
