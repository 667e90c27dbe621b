package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainProgram = "stripe/program/v1"
	DomainBlock   = "stripe/block/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ProgramHash computes the content hash of a program, buffers included.
// Two programs that differ only in map iteration order hash equal.
func ProgramHash(p *Program) (string, error) {
	canonical, err := MarshalCanonical(p)
	if err != nil {
		return "", fmt.Errorf("ProgramHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainProgram, canonical), nil
}

// BlockHash computes the content hash of a block tree alone.
func BlockHash(b *Block) (string, error) {
	wire, err := MarshalStatement(b)
	if err != nil {
		return "", fmt.Errorf("BlockHash: failed to marshal: %w", err)
	}
	canonical, err := CanonicalizeJSON(wire)
	if err != nil {
		return "", fmt.Errorf("BlockHash: %w", err)
	}
	return hashWithDomain(DomainBlock, canonical), nil
}

// MustProgramHash is like ProgramHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustProgramHash(p *Program) string {
	h, err := ProgramHash(p)
	if err != nil {
		panic(err)
	}
	return h
}
