package compiler

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/stripe/internal/ir"
)

//go:embed schema.cue
var schemaSource []byte

// CompileProgram turns a CUE value into a Program.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value is unified with the #Program schema, so CUE references,
// comprehensions and defaults are resolved before decoding:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`program: { entry: block: { name: "main", ... } }`)
//	p, err := CompileProgram(v.LookupPath(cue.ParsePath("program")))
//
// Root refinements without a buffer get zero-filled ones.
func CompileProgram(v cue.Value) (*ir.Program, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if !v.Exists() {
		return nil, &CompileError{Field: "program", Message: "program value does not exist", Pos: v.Pos()}
	}

	schema := v.Context().CompileBytes(schemaSource, cue.Filename("stripe/schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	unified := schema.LookupPath(cue.ParsePath("#Program")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	data, err := unified.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(err)
	}
	p, err := ir.UnmarshalProgram(data)
	if err != nil {
		return nil, &CompileError{Field: "program", Message: err.Error(), Pos: v.Pos(), Err: err}
	}
	p.AllocateMissing()
	return p, nil
}

// CompileError is an authoring error with its CUE source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
	Err     error
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap returns the decoding error, if any.
func (e *CompileError) Unwrap() error {
	return e.Err
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return &CompileError{Field: "cue", Message: firstErr.Error()}
}
