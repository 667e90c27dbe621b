package store

import (
	"github.com/pkg/errors"

	"github.com/roach88/stripe/internal/ir"
)

// encodeProgram returns the canonical wire form of p and its content hash.
// The stored text is exactly the bytes that were hashed, so a program read
// back hashes to its key.
func encodeProgram(p *ir.Program) (wire []byte, hash string, err error) {
	wire, err = ir.MarshalCanonical(p)
	if err != nil {
		return nil, "", errors.Wrap(err, "canonicalize program")
	}
	hash, err = ir.ProgramHash(p)
	if err != nil {
		return nil, "", errors.Wrap(err, "hash program")
	}
	return wire, hash, nil
}

func decodeProgram(wire string) (*ir.Program, error) {
	p, err := ir.UnmarshalProgram([]byte(wire))
	if err != nil {
		return nil, errors.Wrap(err, "decode program")
	}
	return p, nil
}

// entryName returns the name of the program's entry block, or "" when the
// entry is not a block.
func entryName(p *ir.Program) string {
	if b := p.Root(); b != nil {
		return b.Name
	}
	return ""
}
