package engine

import "sync/atomic"

// DefaultMaxStatements disables the statement budget.
const DefaultMaxStatements = 0

// statementBudget counts executed statements across every tuple of a run
// and enforces WithMaxStatements. Safe for concurrent use.
type statementBudget struct {
	runID string
	limit int64
	used  atomic.Int64
}

func newStatementBudget(runID string, limit int64) *statementBudget {
	return &statementBudget{runID: runID, limit: limit}
}

// spend charges one statement. Returns a StatementBudgetError once the
// limit is exceeded. A limit <= 0 never fails.
func (b *statementBudget) spend() error {
	n := b.used.Add(1)
	if b.limit > 0 && n > b.limit {
		return &StatementBudgetError{RunID: b.runID, Executed: n, Limit: b.limit}
	}
	return nil
}

// Used returns the number of statements charged so far.
func (b *statementBudget) Used() int64 {
	return b.used.Load()
}
