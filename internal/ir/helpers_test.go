package ir

import (
	"fmt"

	"github.com/gx-org/backend/dtype"
	"pgregory.net/rapid"
)

// scenarioProgram builds the LoadIndex -> Store program over i in [0,4).
func scenarioProgram() *Program {
	main := NewBlock("main").
		Idx("i", 4, Const(0)).
		Ref("r", &Refinement{Shape: SimpleShape(dtype.Int64, 4), Access: []Affine{Idx("i")}}).
		Stmt(&LoadIndex{From: Idx("i"), Into: "s0"}).
		Stmt(&Store{From: "s0", Into: "r"}).
		Build()
	return NewProgram(main)
}

var genName = rapid.StringMatching(`[a-z][a-z0-9_]{0,5}`)

var genDType = rapid.SampledFrom([]dtype.DataType{
	dtype.Bool, dtype.Int32, dtype.Int64, dtype.Uint32, dtype.Uint64, dtype.Float32, dtype.Float64,
})

func genAffine() *rapid.Generator[Affine] {
	return rapid.Custom(func(t *rapid.T) Affine {
		a := Const(rapid.Int64Range(-100, 100).Draw(t, "offset"))
		n := rapid.IntRange(0, 3).Draw(t, "terms")
		for i := 0; i < n; i++ {
			a = a.Add(Term(genName.Draw(t, "name"), rapid.Int64Range(-9, 9).Draw(t, "coeff")))
		}
		return a
	})
}

func genTags() *rapid.Generator[Tags] {
	return rapid.Custom(func(t *rapid.T) Tags {
		n := rapid.IntRange(0, 2).Draw(t, "ntags")
		if n == 0 {
			return nil
		}
		tags := Tags{}
		for i := 0; i < n; i++ {
			var v Attribute
			switch rapid.IntRange(0, 4).Draw(t, "kind") {
			case 0:
				v = BoolAttr(rapid.Bool().Draw(t, "bool"))
			case 1:
				v = IntAttr(rapid.Int64().Draw(t, "int"))
			case 2:
				v = FloatAttr(rapid.Float64Range(-1e9, 1e9).Draw(t, "float"))
			case 3:
				v = StringAttr(rapid.String().Draw(t, "string"))
			default:
				v = AnyAttr{TypeURL: "type.example/" + genName.Draw(t, "url"), Value: rapid.SliceOfN(rapid.Byte(), 1, 8).Draw(t, "blob")}
			}
			tags[genName.Draw(t, "tag")] = v
		}
		return tags
	})
}

func genRefinement() *rapid.Generator[*Refinement] {
	return rapid.Custom(func(t *rapid.T) *Refinement {
		rank := rapid.IntRange(0, 3).Draw(t, "rank")
		sizes := rapid.SliceOfN(rapid.Uint64Range(1, 5), rank, rank).Draw(t, "sizes")
		r := &Refinement{
			Dir:   RefDir(rapid.IntRange(0, 3).Draw(t, "dir")),
			Shape: SimpleShape(genDType.Draw(t, "dtype"), sizes...),
			AggOp: rapid.SampledFrom([]string{"", "add", "max"}).Draw(t, "agg"),
			Tags:  genTags().Draw(t, "tags"),
		}
		if r.Dir != DirNone {
			r.From = genName.Draw(t, "from")
		}
		for i := 0; i < rank; i++ {
			r.Access = append(r.Access, genAffine().Draw(t, "access"))
		}
		if rapid.Bool().Draw(t, "placed") {
			r.Offset = rapid.Uint64Range(0, 1<<20).Draw(t, "offset")
			r.BankDim = &BankDimension{DimPos: rapid.Uint64Range(0, 3).Draw(t, "bank")}
			r.Location = Location{Devs: []Device{{Name: "DRAM", Units: []Affine{genAffine().Draw(t, "unit")}}}}
		}
		return r
	})
}

func genStatement(depth int) *rapid.Generator[Statement] {
	return rapid.Custom(func(t *rapid.T) Statement {
		maxKind := 5
		if depth > 0 {
			maxKind = 6
		}
		meta := StmtMeta{Tags: genTags().Draw(t, "stmt_tags")}
		switch rapid.IntRange(0, maxKind).Draw(t, "stmt") {
		case 0:
			return &Load{StmtMeta: meta, From: genName.Draw(t, "from"), Into: genName.Draw(t, "into")}
		case 1:
			return &Store{StmtMeta: meta, From: genName.Draw(t, "from"), Into: genName.Draw(t, "into")}
		case 2:
			return &LoadIndex{StmtMeta: meta, From: genAffine().Draw(t, "affine"), Into: genName.Draw(t, "into")}
		case 3:
			return &Intrinsic{
				StmtMeta: meta,
				Name:     rapid.SampledFrom([]string{"add", "mul", "neg"}).Draw(t, "intrinsic"),
				Type:     genDType.Draw(t, "type"),
				Inputs:   rapid.SliceOfN(genName, 1, 3).Draw(t, "inputs"),
				Outputs:  rapid.SliceOfN(genName, 1, 2).Draw(t, "outputs"),
			}
		case 4:
			var v ConstValue = IntConst(rapid.Int64().Draw(t, "int"))
			if rapid.Bool().Draw(t, "is_float") {
				v = FloatConst(rapid.Float64Range(-1e12, 1e12).Draw(t, "float"))
			}
			return &Constant{StmtMeta: meta, Name: genName.Draw(t, "const"), Value: v}
		case 5:
			return &Special{
				StmtMeta: meta,
				Name:     "copy",
				Inputs:   rapid.SliceOfN(genName, 0, 2).Draw(t, "inputs"),
				Outputs:  rapid.SliceOfN(genName, 0, 2).Draw(t, "outputs"),
				Params:   map[string]Attribute(genTags().Draw(t, "params")),
			}
		default:
			b := genBlock(depth - 1).Draw(t, "block")
			b.StmtMeta = meta
			return b
		}
	})
}

func genBlock(depth int) *rapid.Generator[*Block] {
	return rapid.Custom(func(t *rapid.T) *Block {
		bb := NewBlock(genName.Draw(t, "block_name"))
		nidx := rapid.IntRange(0, 3).Draw(t, "nidx")
		for i := 0; i < nidx; i++ {
			bb.Idx(fmt.Sprintf("i%d", i), rapid.Uint64Range(0, 8).Draw(t, "range"), genAffine().Draw(t, "start"))
		}
		for i := rapid.IntRange(0, 2).Draw(t, "ncons"); i > 0; i-- {
			bb.Constraint(genAffine().Draw(t, "constraint"))
		}
		for i := rapid.IntRange(0, 3).Draw(t, "nrefs"); i > 0; i-- {
			bb.Ref(genName.Draw(t, "ref"), genRefinement().Draw(t, "refinement"))
		}
		nstmts := rapid.IntRange(0, 4).Draw(t, "nstmts")
		for i := 0; i < nstmts; i++ {
			s := genStatement(depth).Draw(t, "stmt")
			if i > 0 && rapid.Bool().Draw(t, "has_deps") {
				s.Meta().Deps = []int{rapid.IntRange(0, i-1).Draw(t, "dep")}
			}
			bb.Stmt(s)
		}
		if rapid.Bool().Draw(t, "commented") {
			bb.Comment(rapid.String().Draw(t, "comment"))
		}
		return bb.Build()
	})
}

func genProgram() *rapid.Generator[*Program] {
	return rapid.Custom(func(t *rapid.T) *Program {
		p := NewProgram(genBlock(2).Draw(t, "entry"))
		if rapid.Bool().Draw(t, "extra_section") {
			p.Buffers["extra"] = Buffer{Sections: map[string][]byte{
				"data":  rapid.SliceOfN(rapid.Byte(), 0, 16).Draw(t, "data"),
				"attrs": rapid.SliceOfN(rapid.Byte(), 1, 4).Draw(t, "attrs"),
			}}
		}
		return p
	})
}
