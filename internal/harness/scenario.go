package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test: a program, its inputs and
// execution settings, and what the run must produce.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Program is the program file or CUE directory to execute.
	// Resolved relative to the scenario file by LoadScenario.
	Program string `yaml:"program"`

	// RunID fixes the run ID stamped on the trace.
	// Defaults to testutil.DefaultRunID.
	RunID string `yaml:"run_id,omitempty"`

	// Parallelism is the number of tuples executed concurrently.
	Parallelism int `yaml:"parallelism,omitempty"`

	// Seed, when set, executes statements in a seeded random order that
	// respects dependencies.
	Seed *uint64 `yaml:"seed,omitempty"`

	// MaxStatements bounds the run; 0 means unlimited.
	MaxStatements int64 `yaml:"max_statements,omitempty"`

	// Inputs replace buffer data sections before the run.
	Inputs map[string][]any `yaml:"inputs,omitempty"`

	// Expect describes an expected failure. Nil means the run must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`

	// Assertions validate the outputs, counters and trace of a
	// successful run.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ExpectClause names the error a run must fail with.
type ExpectClause struct {
	// Error is the expected ir.ErrorKind (e.g. "OutOfBounds").
	Error string `yaml:"error"`

	// Path, if set, must equal the error's path.
	Path string `yaml:"path,omitempty"`
}

// Assertion validates run outputs or trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "buffer_equals": Buffer holds exactly Values
	// - "buffer_one_of": Element Index of Buffer is one of Values
	// - "stats": Stats counters match
	// - "trace_count": Kind ran exactly Count times
	// - "trace_order": first occurrences of Kinds are ordered
	Type string `yaml:"type"`

	// Buffer is the output buffer name (buffer_equals, buffer_one_of).
	Buffer string `yaml:"buffer,omitempty"`

	// Index is the element position (buffer_one_of).
	Index int `yaml:"index,omitempty"`

	// Values are element values, converted to the buffer's dtype.
	Values []any `yaml:"values,omitempty"`

	// Stats maps counter names (activations, tuples_visited,
	// tuples_admitted, statements) to expected values.
	Stats map[string]int64 `yaml:"stats,omitempty"`

	// Kind is a statement kind such as "store" (trace_count).
	Kind string `yaml:"kind,omitempty"`

	// Count is the expected number of executions (trace_count).
	Count int `yaml:"count,omitempty"`

	// Kinds is the expected order (trace_order).
	Kinds []string `yaml:"kinds,omitempty"`
}

// Assertion type constants.
const (
	AssertBufferEquals = "buffer_equals"
	AssertBufferOneOf  = "buffer_one_of"
	AssertStats        = "stats"
	AssertTraceCount   = "trace_count"
	AssertTraceOrder   = "trace_order"
)

// LoadScenario reads and parses a scenario YAML file, resolving its
// program path relative to the file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Program != "" && !filepath.IsAbs(scenario.Program) {
		scenario.Program = filepath.Join(filepath.Dir(path), scenario.Program)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Program == "" {
		return fmt.Errorf("program is required")
	}
	if _, err := os.Stat(s.Program); os.IsNotExist(err) {
		return fmt.Errorf("program file not found: %s", s.Program)
	}
	if s.Parallelism < 0 {
		return fmt.Errorf("parallelism must be non-negative")
	}
	if s.MaxStatements < 0 {
		return fmt.Errorf("max_statements must be non-negative")
	}

	if s.Expect != nil {
		if s.Expect.Error == "" {
			return fmt.Errorf("expect: error is required")
		}
		if len(s.Assertions) > 0 {
			return fmt.Errorf("assertions cannot be combined with an expected error")
		}
		return nil
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required when no error is expected")
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

var statKeys = map[string]bool{
	"activations":     true,
	"tuples_visited":  true,
	"tuples_admitted": true,
	"statements":      true,
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertBufferEquals:
		if a.Buffer == "" {
			return fmt.Errorf("assertions[%d]: buffer is required for buffer_equals", index)
		}
	case AssertBufferOneOf:
		if a.Buffer == "" {
			return fmt.Errorf("assertions[%d]: buffer is required for buffer_one_of", index)
		}
		if a.Index < 0 {
			return fmt.Errorf("assertions[%d]: index must be non-negative for buffer_one_of", index)
		}
		if len(a.Values) == 0 {
			return fmt.Errorf("assertions[%d]: values list is required for buffer_one_of", index)
		}
	case AssertStats:
		if len(a.Stats) == 0 {
			return fmt.Errorf("assertions[%d]: stats is required for stats", index)
		}
		for k := range a.Stats {
			if !statKeys[k] {
				return fmt.Errorf("assertions[%d]: unknown counter %q", index, k)
			}
		}
	case AssertTraceCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for trace_order", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
