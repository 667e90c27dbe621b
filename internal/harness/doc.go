// Package harness runs conformance scenarios against the reference
// executor.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: load_index
//	description: "LoadIndex then Store writes each index into its cell"
//	program: programs/load_index.cue   # .cue, .json or a CUE directory
//	parallelism: 1                     # optional, default 1
//	seed: 7                            # optional, shuffles statement order
//	inputs:
//	  x: [1, 2, 3]                     # data section values, by buffer dtype
//	expect:
//	  error: OutOfBounds               # optional, the run must fail with it
//	  path: main#1                     # optional, and at this path
//	assertions:
//	  - type: buffer_equals
//	    buffer: r
//	    values: [0, 1, 2, 3]
//
// Program paths are relative to the scenario file.
//
// # Assertion Types
//
//   - buffer_equals: the output buffer holds exactly values
//   - buffer_one_of: element index of the output buffer is one of values
//   - stats: the named run counters have the given values
//   - trace_count: statements of kind ran exactly count times
//   - trace_order: the first execution of each kind appears in this order
//
// # Deterministic Testing
//
// Every scenario runs with a fixed run ID (scenario run_id or
// testutil.DefaultRunID) and a logical clock starting at zero, and is
// persisted to a fresh in-memory store; buffer assertions read the outputs
// back from the store. With parallelism 1 the trace is identical across
// runs, so it can be compared against golden files.
package harness
