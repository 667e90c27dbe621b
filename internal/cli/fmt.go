package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/stripe/internal/ir"
)

// NewFmtCommand creates the fmt command.
func NewFmtCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fmt <program>",
		Short: "Print a program in canonical wire form",
		Long: `Print the canonical JSON encoding of a program: sorted keys, no
insignificant whitespace, NFC-normalized strings. This is the exact byte
sequence the content hash is computed over.

A CUE program printed this way can be loaded again as a .json file.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			p, err := loadOrFail(f, args[0])
			if err != nil {
				return err
			}
			wire, err := ir.MarshalCanonical(p)
			if err != nil {
				return f.fail(ExitFailure, ErrCodeSchema, err.Error(), nil)
			}
			return f.Emit(json.RawMessage(wire), func(w io.Writer) {
				fmt.Fprintln(w, string(wire))
			})
		},
	}
}

// HashResult is the output of the hash command.
type HashResult struct {
	Hash string `json:"hash"`
}

// NewHashCommand creates the hash command.
func NewHashCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hash <program>",
		Short: "Print a program's content hash",
		Long: `Print the content hash of a program. Programs that differ only in
map ordering or formatting hash equal; buffers are part of the hash.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			p, err := loadOrFail(f, args[0])
			if err != nil {
				return err
			}
			hash, err := ir.ProgramHash(p)
			if err != nil {
				return f.fail(ExitFailure, ErrCodeSchema, err.Error(), nil)
			}
			return f.Emit(HashResult{Hash: hash}, func(w io.Writer) {
				fmt.Fprintln(w, hash)
			})
		},
	}
}
