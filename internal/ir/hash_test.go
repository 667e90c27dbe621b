package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/gx-org/backend/dtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgramHashDeterminism(t *testing.T) {
	h1, err := ProgramHash(scenarioProgram())
	require.NoError(t, err)
	h2, err := ProgramHash(scenarioProgram())
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "ProgramHash must be deterministic")
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestProgramHashChangesWithBuffers(t *testing.T) {
	p := scenarioProgram()
	before := MustProgramHash(p)

	p.Buffers["r"].Data()[0] = 7
	after := MustProgramHash(p)

	assert.NotEqual(t, before, after, "buffer contents are part of program identity")
}

func TestProgramHashChangesWithTree(t *testing.T) {
	p1 := scenarioProgram()
	p2 := scenarioProgram()
	p2.Root().Idxs[0].Range = 5

	assert.NotEqual(t, MustProgramHash(p1), MustProgramHash(p2))
}

func TestProgramHashIncludesComments(t *testing.T) {
	p1 := scenarioProgram()
	p2 := scenarioProgram()
	p2.Root().Comments = "note"
	assert.NotEqual(t, MustProgramHash(p1), MustProgramHash(p2))
}

func TestBlockHashDomainSeparation(t *testing.T) {
	b := NewBlock("main").Idx("i", 2, Const(0)).Build()
	p := &Program{Entry: b}

	bh, err := BlockHash(b)
	require.NoError(t, err)
	ph, err := ProgramHash(p)
	require.NoError(t, err)

	assert.NotEqual(t, bh, ph, "domains must not collide even for near-identical content")
}

func TestHashWithDomainNullSeparator(t *testing.T) {
	data := []byte(`{"a":1}`)
	h := sha256.New()
	h.Write([]byte(DomainProgram))
	h.Write([]byte{0})
	h.Write(data)
	assert.Equal(t, hex.EncodeToString(h.Sum(nil)), hashWithDomain(DomainProgram, data))

	// Moving the boundary between domain and data changes the hash.
	assert.NotEqual(t, hashWithDomain("ab", []byte("c")), hashWithDomain("a", []byte("bc")))
}

func TestMustProgramHashPanics(t *testing.T) {
	bad := &Program{Entry: NewBlock("main").Ref("x", &Refinement{Shape: Shape{DType: dtype.Invalid}}).Build()}
	assert.Panics(t, func() { MustProgramHash(bad) })
}
