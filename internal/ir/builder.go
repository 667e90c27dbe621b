package ir

// BlockBuilder assembles a Block fluently.
//
//	b := NewBlock("main").
//		Idx("i", 4, Const(0)).
//		Ref("r", &Refinement{Shape: SimpleShape(dtype.Int64, 4), Access: []Affine{Idx("i")}}).
//		Stmt(&LoadIndex{From: Idx("i"), Into: "s0"}).
//		Stmt(&Store{From: "s0", Into: "r"}).
//		Build()
type BlockBuilder struct {
	b *Block
}

// NewBlock starts a block with the given name.
func NewBlock(name string) *BlockBuilder {
	return &BlockBuilder{b: &Block{Name: name, Refs: map[string]*Refinement{}}}
}

// Idx appends an index.
func (bb *BlockBuilder) Idx(name string, rng uint64, start Affine) *BlockBuilder {
	bb.b.Idxs = append(bb.b.Idxs, Index{Name: name, Range: rng, Affine: start})
	return bb
}

// Constraint appends a constraint; tuples are admitted when it is >= 0.
func (bb *BlockBuilder) Constraint(a Affine) *BlockBuilder {
	bb.b.Constraints = append(bb.b.Constraints, a)
	return bb
}

// Ref adds a refinement.
func (bb *BlockBuilder) Ref(name string, r *Refinement) *BlockBuilder {
	bb.b.Refs[name] = r
	return bb
}

// Stmt appends a statement.
func (bb *BlockBuilder) Stmt(s Statement) *BlockBuilder {
	bb.b.Stmts = append(bb.b.Stmts, s)
	return bb
}

// Comment sets the non-semantic comment text.
func (bb *BlockBuilder) Comment(text string) *BlockBuilder {
	bb.b.Comments = text
	return bb
}

// Build returns the block. The builder must not be reused.
func (bb *BlockBuilder) Build() *Block {
	return bb.b
}
