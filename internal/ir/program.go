package ir

import (
	"slices"

	"golang.org/x/exp/maps"
)

// DataSection is the buffer section holding a refinement's element data.
const DataSection = "data"

// Buffer is raw keyed storage owned by a Program.
type Buffer struct {
	Sections map[string][]byte
}

// NewBuffer returns a buffer whose data section holds data.
func NewBuffer(data []byte) Buffer {
	return Buffer{Sections: map[string][]byte{DataSection: data}}
}

// Data returns the data section.
func (b Buffer) Data() []byte {
	return b.Sections[DataSection]
}

// Clone returns a deep copy.
func (b Buffer) Clone() Buffer {
	if b.Sections == nil {
		return Buffer{}
	}
	out := Buffer{Sections: make(map[string][]byte, len(b.Sections))}
	for k, v := range b.Sections {
		out.Sections[k] = slices.Clone(v)
	}
	return out
}

// Program is the root container: an entry statement and named buffers.
type Program struct {
	Entry   Statement
	Buffers map[string]Buffer
}

// NewProgram wraps entry in a Program and allocates zero-filled buffers for
// every root refinement that lacks one.
func NewProgram(entry *Block) *Program {
	p := &Program{Entry: entry, Buffers: map[string]Buffer{}}
	p.AllocateMissing()
	return p
}

// Root returns the entry block, or nil if the entry is not a block.
func (p *Program) Root() *Block {
	b, _ := p.Entry.(*Block)
	return b
}

// BufferName returns the program buffer a root refinement binds to.
func BufferName(name string, r *Refinement) string {
	if r.From != "" {
		return r.From
	}
	return name
}

// AllocateMissing adds a zero-filled buffer for each root refinement whose
// buffer does not exist yet. Existing buffers are left untouched.
func (p *Program) AllocateMissing() {
	root := p.Root()
	if root == nil {
		return
	}
	if p.Buffers == nil {
		p.Buffers = map[string]Buffer{}
	}
	for _, name := range root.RefNames() {
		r := root.Refs[name]
		buf := BufferName(name, r)
		if _, ok := p.Buffers[buf]; ok {
			continue
		}
		p.Buffers[buf] = NewBuffer(make([]byte, r.Shape.ByteSize()))
	}
}

// BufferShape returns the shape under which the root block addresses
// buffer name. When several root refinements bind the buffer, the first in
// name order wins.
func (p *Program) BufferShape(name string) (Shape, bool) {
	root := p.Root()
	if root == nil {
		return Shape{}, false
	}
	for _, ref := range root.RefNames() {
		r := root.Refs[ref]
		if BufferName(ref, r) == name {
			return r.Shape, true
		}
	}
	return Shape{}, false
}

// BufferNames returns the buffer names, sorted.
func (p *Program) BufferNames() []string {
	names := maps.Keys(p.Buffers)
	slices.Sort(names)
	return names
}

// Clone returns a deep copy of the program.
func (p *Program) Clone() *Program {
	out := &Program{Buffers: make(map[string]Buffer, len(p.Buffers))}
	for k, v := range p.Buffers {
		out.Buffers[k] = v.Clone()
	}
	if p.Entry != nil {
		out.Entry = CloneStmt(p.Entry)
	}
	return out
}

// CloneStmt returns a deep copy of a statement tree.
func CloneStmt(s Statement) Statement {
	switch st := s.(type) {
	case *Load:
		c := *st
		c.StmtMeta = st.cloneMeta()
		return &c
	case *Store:
		c := *st
		c.StmtMeta = st.cloneMeta()
		return &c
	case *LoadIndex:
		c := *st
		c.StmtMeta = st.cloneMeta()
		c.From = cloneAffine(st.From)
		return &c
	case *Intrinsic:
		c := *st
		c.StmtMeta = st.cloneMeta()
		c.Inputs = slices.Clone(st.Inputs)
		c.Outputs = slices.Clone(st.Outputs)
		return &c
	case *Constant:
		c := *st
		c.StmtMeta = st.cloneMeta()
		return &c
	case *Special:
		c := *st
		c.StmtMeta = st.cloneMeta()
		c.Inputs = slices.Clone(st.Inputs)
		c.Outputs = slices.Clone(st.Outputs)
		c.Params = map[string]Attribute(Tags(st.Params).Clone())
		return &c
	case *Block:
		return cloneBlock(st)
	default:
		return s
	}
}

func (m *StmtMeta) cloneMeta() StmtMeta {
	return StmtMeta{Deps: slices.Clone(m.Deps), Tags: m.Tags.Clone()}
}

func cloneAffine(a Affine) Affine {
	if a.Terms == nil {
		return a
	}
	out := Affine{Offset: a.Offset, Terms: make(map[string]int64, len(a.Terms))}
	for k, v := range a.Terms {
		out.Terms[k] = v
	}
	return out
}

func cloneAffines(as []Affine) []Affine {
	if as == nil {
		return nil
	}
	out := make([]Affine, len(as))
	for i, a := range as {
		out[i] = cloneAffine(a)
	}
	return out
}

func cloneLocation(l Location) Location {
	if l.Devs == nil {
		return Location{}
	}
	out := Location{Devs: make([]Device, len(l.Devs))}
	for i, d := range l.Devs {
		out.Devs[i] = Device{Name: d.Name, Units: cloneAffines(d.Units)}
	}
	return out
}

func cloneBlock(b *Block) *Block {
	c := &Block{
		StmtMeta:    b.cloneMeta(),
		Name:        b.Name,
		Comments:    b.Comments,
		Constraints: cloneAffines(b.Constraints),
		Location:    cloneLocation(b.Location),
	}
	if b.Idxs != nil {
		c.Idxs = make([]Index, len(b.Idxs))
		for i, idx := range b.Idxs {
			c.Idxs[i] = Index{Name: idx.Name, Range: idx.Range, Affine: cloneAffine(idx.Affine), Tags: idx.Tags.Clone()}
		}
	}
	if b.Refs != nil {
		c.Refs = make(map[string]*Refinement, len(b.Refs))
		for name, r := range b.Refs {
			rc := *r
			rc.Access = cloneAffines(r.Access)
			rc.Shape.Dims = slices.Clone(r.Shape.Dims)
			rc.Location = cloneLocation(r.Location)
			rc.Tags = r.Tags.Clone()
			if r.BankDim != nil {
				bd := *r.BankDim
				rc.BankDim = &bd
			}
			c.Refs[name] = &rc
		}
	}
	if b.Stmts != nil {
		c.Stmts = make([]Statement, len(b.Stmts))
		for i, s := range b.Stmts {
			c.Stmts[i] = CloneStmt(s)
		}
	}
	return c
}
