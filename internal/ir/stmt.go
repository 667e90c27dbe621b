package ir

import "github.com/gx-org/backend/dtype"

// StmtKind names a statement variant. The values double as the oneof keys
// of the wire form.
type StmtKind string

const (
	KindLoad      StmtKind = "load"
	KindStore     StmtKind = "store"
	KindLoadIndex StmtKind = "load_index"
	KindIntrinsic StmtKind = "intrinsic"
	KindConstant  StmtKind = "constant"
	KindBlock     StmtKind = "block"
	KindSpecial   StmtKind = "special"
)

// Statement is a sealed interface over the statement variants:
// *Load, *Store, *LoadIndex, *Intrinsic, *Constant, *Block and *Special.
type Statement interface {
	stmtNode()
	Kind() StmtKind
	Meta() *StmtMeta
}

// StmtMeta holds the fields shared by every statement.
// Deps are indices of strictly earlier statements in the same block.
type StmtMeta struct {
	Deps []int
	Tags Tags
}

// Meta returns the shared statement fields.
func (m *StmtMeta) Meta() *StmtMeta { return m }

// Load reads the element of refinement From at its current position into
// scalar Into.
type Load struct {
	StmtMeta
	From string
	Into string
}

// Store combines scalar From into refinement Into using Into's aggregation.
type Store struct {
	StmtMeta
	From string
	Into string
}

// LoadIndex defines scalar Into as the value of an affine over the
// current index tuple.
type LoadIndex struct {
	StmtMeta
	From Affine
	Into string
}

// Intrinsic is a named pure scalar operation computed at element type Type.
type Intrinsic struct {
	StmtMeta
	Name    string
	Type    dtype.DataType
	Inputs  []string
	Outputs []string
}

// Constant defines scalar Name from a literal.
type Constant struct {
	StmtMeta
	Name  string
	Value ConstValue
}

// Special is a named opaque operation over whole refinements.
type Special struct {
	StmtMeta
	Name    string
	Inputs  []string
	Outputs []string
	Params  map[string]Attribute
}

func (*Load) stmtNode()      {}
func (*Store) stmtNode()     {}
func (*LoadIndex) stmtNode() {}
func (*Intrinsic) stmtNode() {}
func (*Constant) stmtNode()  {}
func (*Block) stmtNode()     {}
func (*Special) stmtNode()   {}

func (*Load) Kind() StmtKind      { return KindLoad }
func (*Store) Kind() StmtKind     { return KindStore }
func (*LoadIndex) Kind() StmtKind { return KindLoadIndex }
func (*Intrinsic) Kind() StmtKind { return KindIntrinsic }
func (*Constant) Kind() StmtKind  { return KindConstant }
func (*Block) Kind() StmtKind     { return KindBlock }
func (*Special) Kind() StmtKind   { return KindSpecial }

// ScalarDefs returns the scalar names a statement defines.
func ScalarDefs(s Statement) []string {
	switch st := s.(type) {
	case *Load:
		return []string{st.Into}
	case *LoadIndex:
		return []string{st.Into}
	case *Intrinsic:
		return st.Outputs
	case *Constant:
		return []string{st.Name}
	default:
		return nil
	}
}

// ScalarUses returns the scalar names a statement reads.
func ScalarUses(s Statement) []string {
	switch st := s.(type) {
	case *Store:
		return []string{st.From}
	case *Intrinsic:
		return st.Inputs
	default:
		return nil
	}
}

// RefReads returns the refinement names a statement reads in this block.
// A nested block reads every refinement one of its own refinements derives
// from with dir In or InOut.
func RefReads(s Statement) []string {
	switch st := s.(type) {
	case *Load:
		return []string{st.From}
	case *Special:
		return st.Inputs
	case *Block:
		var out []string
		for _, name := range st.RefNames() {
			r := st.Refs[name]
			if r.From != "" && (r.Dir == DirIn || r.Dir == DirInOut) {
				out = append(out, r.From)
			}
		}
		return out
	default:
		return nil
	}
}

// RefWrites returns the refinement names a statement writes in this block.
func RefWrites(s Statement) []string {
	switch st := s.(type) {
	case *Store:
		return []string{st.Into}
	case *Special:
		return st.Outputs
	case *Block:
		var out []string
		for _, name := range st.RefNames() {
			r := st.Refs[name]
			if r.From != "" && (r.Dir == DirOut || r.Dir == DirInOut) {
				out = append(out, r.From)
			}
		}
		return out
	default:
		return nil
	}
}
