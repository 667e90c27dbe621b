package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/stripe/internal/compiler"
	"github.com/roach88/stripe/internal/engine"
	"github.com/roach88/stripe/internal/ir"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Hash   string                     `json:"hash,omitempty"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <program>",
		Short: "Check a program without executing it",
		Long: `Load a program and run every static check: scoping of indexes and
scalars, refinement links, dependencies, and the names of intrinsics,
aggregations and specials against the built-in registry.

All problems are reported, not just the first.

Exit codes:
  0 - Program valid
  1 - Validation errors
  2 - Program could not be loaded`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	p, err := loadOrFail(f, path)
	if err != nil {
		return err
	}

	if errs := compiler.Validate(p, engine.DefaultRegistry()); len(errs) > 0 {
		return reportValidation(f, errs)
	}

	result := ValidationResult{Valid: true}
	if hash, err := ir.ProgramHash(p); err == nil {
		result.Hash = hash
	}
	return f.Emit(result, func(w io.Writer) {
		fmt.Fprintln(w, "✓ Program valid")
	})
}

// reportValidation prints every validation error and returns the matching
// ExitError.
func reportValidation(f *OutputFormatter, errs []compiler.ValidationError) error {
	msg := fmt.Sprintf("validation failed with %d error(s)", len(errs))
	if f.Format == "json" {
		if err := f.Error(ErrCodeValidation, msg, errs); err != nil {
			return err
		}
	} else {
		for _, e := range errs {
			fmt.Fprintf(f.Writer, "%s %s: %s\n", e.Code, e.Path, e.Message)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", ErrCodeValidation, msg))
}
