package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/stripe/internal/ir"
)

// runtimeErrorf builds an *ir.Error for a failure detected while executing.
// Execution errors share the kinds of static validation, plus OutOfBounds,
// SpecialFailed, IntrinsicFailed and TypeMismatch which only show up with
// concrete data.
func runtimeErrorf(kind ir.ErrorKind, path, format string, args ...any) *ir.Error {
	return ir.Errorf(kind, path, format, args...)
}

// wrapRuntime attaches cause to a new *ir.Error of the given kind.
func wrapRuntime(kind ir.ErrorKind, path string, cause error, format string, args ...any) *ir.Error {
	e := ir.Errorf(kind, path, format, args...)
	e.Message = fmt.Sprintf("%s: %v", e.Message, cause)
	e.Err = cause
	return e
}

// IsOutOfBounds returns true if err reports an address outside storage.
func IsOutOfBounds(err error) bool {
	return ir.IsKind(err, ir.ErrOutOfBounds)
}

// IsSpecialFailed returns true if a special operation's handler failed.
func IsSpecialFailed(err error) bool {
	return ir.IsKind(err, ir.ErrSpecialFailed)
}

// StatementBudgetError is returned when a run executes more statements than
// WithMaxStatements allows. The run stops at the first statement over the
// limit.
type StatementBudgetError struct {
	RunID    string
	Executed int64
	Limit    int64
}

func (e *StatementBudgetError) Error() string {
	return fmt.Sprintf("statement budget exceeded (%d > %d) in run %s", e.Executed, e.Limit, e.RunID)
}

// IsBudgetError returns true if err is a StatementBudgetError.
// Uses errors.As to handle wrapped errors.
func IsBudgetError(err error) bool {
	var be *StatementBudgetError
	return errors.As(err, &be)
}
