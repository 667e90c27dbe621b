package ir

import (
	"fmt"
	"slices"

	"golang.org/x/exp/maps"
)

// Index is one dimension of a block's iteration space. Iteration covers
// [start, start+Range) where start is Affine evaluated over the indices of
// enclosing blocks.
type Index struct {
	Name   string
	Range  uint64
	Affine Affine
	Tags   Tags
}

// RefDir is the data direction of a refinement relative to its parent.
type RefDir int

const (
	DirNone RefDir = iota
	DirIn
	DirOut
	DirInOut
)

var refDirNames = [...]string{"none", "in", "out", "inout"}

// String returns the wire name of the direction.
func (d RefDir) String() string {
	if d < 0 || int(d) >= len(refDirNames) {
		return fmt.Sprintf("RefDir(%d)", int(d))
	}
	return refDirNames[d]
}

// ParseRefDir resolves a wire name to a direction.
func ParseRefDir(s string) (RefDir, error) {
	for i, name := range refDirNames {
		if name == s {
			return RefDir(i), nil
		}
	}
	return DirNone, fmt.Errorf("unknown refinement direction %q", s)
}

// Device is one level of a placement path.
type Device struct {
	Name  string
	Units []Affine
}

// Location is a placement path, outermost device first. Descriptive only.
type Location struct {
	Devs []Device
}

// IsZero returns true for the empty location.
func (l Location) IsZero() bool {
	return len(l.Devs) == 0
}

// BankDimension is placement metadata naming the banked dimension.
type BankDimension struct {
	DimPos uint64
}

// Refinement is a named view onto a buffer.
//
// With Dir == DirNone and no From the refinement is freshly allocated (or,
// at the root, binds to the program buffer of the same name). Otherwise From
// names a refinement of the parent block and Access holds one affine per
// parent dimension giving the view's origin.
//
// Offset and BankDim are populated by placement passes and never affect
// validation or execution.
type Refinement struct {
	Dir      RefDir
	From     string
	Access   []Affine
	Shape    Shape
	AggOp    string
	Location Location
	Offset   uint64
	BankDim  *BankDimension
	Tags     Tags
}

// Block is a nested iteration scope. A Block is also a Statement.
type Block struct {
	StmtMeta
	Name        string
	Comments    string
	Idxs        []Index
	Constraints []Affine
	Refs        map[string]*Refinement
	Stmts       []Statement
	Location    Location
}

// RefNames returns the block's refinement names, sorted.
func (b *Block) RefNames() []string {
	names := maps.Keys(b.Refs)
	slices.Sort(names)
	return names
}

// SubBlocks returns the nested blocks in statement order.
func (b *Block) SubBlocks() []*Block {
	var out []*Block
	for _, s := range b.Stmts {
		if sub, ok := s.(*Block); ok {
			out = append(out, sub)
		}
	}
	return out
}
