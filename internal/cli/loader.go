package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/roach88/stripe/internal/compiler"
	"github.com/roach88/stripe/internal/ir"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric          = "E001" // Generic/unknown error
	ErrCodeValidation       = "E002" // Program failed validation
	ErrCodeRunFailed        = "E003" // Execution error
	ErrCodeLoadFailed       = "E004" // CUE load or compile failed
	ErrCodeNotFound         = "E005" // Path, program or run not found
	ErrCodeSchema           = "E006" // Wire form does not match the schema
	ErrCodeStore            = "E007" // Database error
	ErrCodeInput            = "E008" // Bad --input value
	ErrCodeNonDeterministic = "E009" // Replay produced different outputs
	ErrCodeScenarios        = "E010" // Scenarios failed
)

// LoadError represents an error that occurred while loading a program.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadProgram reads a .cue, .json or CUE directory program and classifies
// failures with CLI error codes.
func LoadProgram(path string) (*ir.Program, error) {
	p, err := compiler.LoadFile(path)
	if err == nil {
		return p, nil
	}

	var compileErr *compiler.CompileError
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("program not found: %s", path)}
	case errors.As(err, &compileErr):
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: compileErr.Message, Pos: compileErr.Pos}
	case ir.IsKind(err, ir.ErrSchemaMismatch):
		return nil, &LoadError{Code: ErrCodeSchema, Message: err.Error()}
	default:
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
	}
}

// loadOrFail loads a program, reporting a load failure through f with
// ExitCommandError.
func loadOrFail(f *OutputFormatter, path string) (*ir.Program, error) {
	p, err := LoadProgram(path)
	if err == nil {
		f.VerboseLog("Loaded %s", path)
		return p, nil
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return nil, f.fail(ExitCommandError, loadErr.Code, loadErr.Error(), nil)
	}
	return nil, f.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
}
