package store

import "github.com/roach88/stripe/internal/ir"

// RunStatus is the terminal state of a persisted run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunStats mirrors the executor's counters for one run.
type RunStats struct {
	Activations    int64 `json:"activations"`
	TuplesVisited  int64 `json:"tuples_visited"`
	TuplesAdmitted int64 `json:"tuples_admitted"`
	Statements     int64 `json:"statements"`
}

// RunRecord is one execution of a stored program.
//
// MaxStatements (0 = unlimited) and Seed (nil = declaration order) are the
// limits the run executed under, so a replay can reproduce budget failures
// and shuffled statement orders.
//
// Outputs is only populated for succeeded runs. ErrorKind holds the
// ir.ErrorKind of a failed run, or "" when the failure was not an IR error
// (cancellation, budget).
type RunRecord struct {
	ID            string               `json:"id"`
	ProgramHash   string               `json:"program_hash"`
	Status        RunStatus            `json:"status"`
	ErrorKind     string               `json:"error_kind,omitempty"`
	ErrorMessage  string               `json:"error_message,omitempty"`
	Parallelism   int                  `json:"parallelism"`
	MaxStatements int64                `json:"max_statements,omitempty"`
	Seed          *uint64              `json:"seed,omitempty"`
	Stats         RunStats             `json:"stats"`
	EngineVersion string               `json:"engine_version"`
	Outputs       map[string]ir.Buffer `json:"-"`
}
