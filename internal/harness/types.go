package harness

import "github.com/roach88/stripe/internal/engine"

// RunError is the failure a scenario run ended with.
type RunError struct {
	Kind    string `json:"kind"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success: the run ended as expected and
	// every assertion held.
	Pass bool `json:"pass"`

	RunID       string `json:"run_id"`
	ProgramHash string `json:"program_hash"`

	// RunErr is set when the run failed, whether or not that was expected.
	RunErr *RunError `json:"run_error,omitempty"`

	// Outputs holds each output buffer's data section decoded by dtype.
	// Values are bool, int64, uint64 or float64.
	Outputs map[string][]any `json:"outputs,omitempty"`

	Stats engine.Stats `json:"stats"`

	// Trace contains every executed statement in sequence order.
	Trace []engine.TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Outputs: map[string][]any{},
		Trace:   []engine.TraceEvent{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
