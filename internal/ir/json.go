package ir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
)

// Wire form. Statements are oneof objects with exactly one variant key plus
// deps and tags; see MarshalProgram.

type programJSON struct {
	Entry   *stmtJSON             `json:"entry"`
	Buffers map[string]bufferJSON `json:"buffers,omitempty"`
}

type bufferJSON struct {
	Sections map[string][]byte `json:"sections,omitempty"`
}

type stmtJSON struct {
	Load      *loadJSON      `json:"load,omitempty"`
	Store     *storeJSON     `json:"store,omitempty"`
	LoadIndex *loadIndexJSON `json:"load_index,omitempty"`
	Intrinsic *intrinsicJSON `json:"intrinsic,omitempty"`
	Constant  *constantJSON  `json:"constant,omitempty"`
	Block     *blockJSON     `json:"block,omitempty"`
	Special   *specialJSON   `json:"special,omitempty"`
	Deps      []int          `json:"deps,omitempty"`
	Tags      tagsJSON       `json:"tags,omitempty"`
}

type loadJSON struct {
	From string `json:"from"`
	Into string `json:"into"`
}

type storeJSON struct {
	From string `json:"from"`
	Into string `json:"into"`
}

type loadIndexJSON struct {
	From affineJSON `json:"from"`
	Into string     `json:"into"`
}

type intrinsicJSON struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Inputs  []string `json:"inputs,omitempty"`
	Outputs []string `json:"outputs,omitempty"`
}

type constantJSON struct {
	Name  string   `json:"name"`
	Int   *int64   `json:"int,omitempty"`
	Float *float64 `json:"float,omitempty"`
}

type specialJSON struct {
	Name    string   `json:"name"`
	Inputs  []string `json:"inputs,omitempty"`
	Outputs []string `json:"outputs,omitempty"`
	Params  tagsJSON `json:"params,omitempty"`
}

type blockJSON struct {
	Name        string             `json:"name"`
	Comments    string             `json:"comments,omitempty"`
	Idxs        []indexJSON        `json:"idxs,omitempty"`
	Constraints []affineJSON       `json:"constraints,omitempty"`
	Refs        map[string]refJSON `json:"refs,omitempty"`
	Stmts       []stmtJSON         `json:"stmts,omitempty"`
	Location    *locationJSON      `json:"location,omitempty"`
}

type indexJSON struct {
	Name   string     `json:"name"`
	Range  uint64     `json:"range"`
	Affine affineJSON `json:"affine,omitzero"`
	Tags   tagsJSON   `json:"tags,omitempty"`
}

type refJSON struct {
	Dir      string        `json:"dir,omitempty"`
	From     string        `json:"from,omitempty"`
	Access   []affineJSON  `json:"access,omitempty"`
	Shape    shapeJSON     `json:"shape"`
	AggOp    string        `json:"agg_op,omitempty"`
	Location *locationJSON `json:"location,omitempty"`
	Offset   uint64        `json:"offset,omitempty"`
	BankDim  *bankDimJSON  `json:"bank_dim,omitempty"`
	Tags     tagsJSON      `json:"tags,omitempty"`
}

type shapeJSON struct {
	DType string    `json:"dtype"`
	Dims  []dimJSON `json:"dims,omitempty"`
}

type dimJSON struct {
	Size   uint64 `json:"size"`
	Stride int64  `json:"stride"`
}

type bankDimJSON struct {
	DimPos uint64 `json:"dim_pos"`
}

type locationJSON struct {
	Devs []deviceJSON `json:"devs,omitempty"`
}

type deviceJSON struct {
	Name  string       `json:"name"`
	Units []affineJSON `json:"units,omitempty"`
}

type tagsJSON map[string]attrJSON

type attrJSON struct {
	Bool   *bool    `json:"bool,omitempty"`
	Int    *int64   `json:"int,omitempty"`
	Float  *float64 `json:"float,omitempty"`
	String *string  `json:"string,omitempty"`
	Any    *anyJSON `json:"any,omitempty"`
}

type anyJSON struct {
	TypeURL string `json:"type_url"`
	Value   []byte `json:"value"`
}

// affineJSON marshals as {"offset": n, "terms": {...}} and unmarshals from
// that object or from the text form.
type affineJSON Affine

type affineObjJSON struct {
	Offset int64            `json:"offset,omitempty"`
	Terms  map[string]int64 `json:"terms,omitempty"`
}

func (a affineJSON) MarshalJSON() ([]byte, error) {
	return json.Marshal(affineObjJSON{Offset: a.Offset, Terms: a.Terms})
}

func (a *affineJSON) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		parsed, err := ParseAffine(text)
		if err != nil {
			return err
		}
		*a = affineJSON(parsed)
		return nil
	}
	var obj affineObjJSON
	if err := decodeStrict(data, &obj); err != nil {
		return err
	}
	out := Const(obj.Offset)
	for name, c := range obj.Terms {
		out = out.addTerm(name, c)
	}
	*a = affineJSON(out)
	return nil
}

// decodeStrict decodes exactly one JSON value, rejecting unknown fields
// and trailing data.
func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("unexpected data after JSON value")
	}
	return nil
}

// MarshalProgram encodes a program in the wire form.
func MarshalProgram(p *Program) ([]byte, error) {
	w, err := programToJSON(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// UnmarshalProgram decodes the wire form strictly. Unknown fields, oneof
// objects with zero or several variant keys, unknown dtypes and unknown
// directions fail with SerializationSchemaMismatch.
func UnmarshalProgram(data []byte) (*Program, error) {
	var w programJSON
	if err := decodeStrict(data, &w); err != nil {
		return nil, &Error{Kind: ErrSchemaMismatch, Message: err.Error(), Err: err}
	}
	if w.Entry == nil {
		return nil, Errorf(ErrSchemaMismatch, "", "missing entry")
	}
	entry, err := stmtFromJSON(w.Entry, "", -1)
	if err != nil {
		return nil, err
	}
	p := &Program{Entry: entry, Buffers: make(map[string]Buffer, len(w.Buffers))}
	for name, b := range w.Buffers {
		p.Buffers[name] = Buffer{Sections: b.Sections}
	}
	return p, nil
}

// MarshalStatement encodes a single statement in the wire form.
func MarshalStatement(s Statement) ([]byte, error) {
	w, err := stmtToJSON(s)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// UnmarshalStatement decodes a single wire statement strictly.
func UnmarshalStatement(data []byte) (Statement, error) {
	var w stmtJSON
	if err := decodeStrict(data, &w); err != nil {
		return nil, &Error{Kind: ErrSchemaMismatch, Message: err.Error(), Err: err}
	}
	return stmtFromJSON(&w, "", -1)
}

func programToJSON(p *Program) (*programJSON, error) {
	if p.Entry == nil {
		return nil, Errorf(ErrEntryNotBlock, "", "program has no entry")
	}
	entry, err := stmtToJSON(p.Entry)
	if err != nil {
		return nil, err
	}
	w := &programJSON{Entry: entry}
	if len(p.Buffers) > 0 {
		w.Buffers = make(map[string]bufferJSON, len(p.Buffers))
		for name, b := range p.Buffers {
			var sections map[string][]byte
			if b.Sections != nil {
				sections = make(map[string][]byte, len(b.Sections))
				for k, v := range b.Sections {
					if v == nil {
						v = []byte{}
					}
					sections[k] = v
				}
			}
			w.Buffers[name] = bufferJSON{Sections: sections}
		}
	}
	return w, nil
}

func stmtToJSON(s Statement) (*stmtJSON, error) {
	meta := s.Meta()
	w := &stmtJSON{Deps: meta.Deps, Tags: tagsToJSON(meta.Tags)}
	switch st := s.(type) {
	case *Load:
		w.Load = &loadJSON{From: st.From, Into: st.Into}
	case *Store:
		w.Store = &storeJSON{From: st.From, Into: st.Into}
	case *LoadIndex:
		w.LoadIndex = &loadIndexJSON{From: affineJSON(st.From), Into: st.Into}
	case *Intrinsic:
		name := DTypeName(st.Type)
		if name == "" {
			return nil, Errorf(ErrSchemaMismatch, "", "intrinsic %q: unsupported dtype %v", st.Name, st.Type)
		}
		w.Intrinsic = &intrinsicJSON{Name: st.Name, Type: name, Inputs: st.Inputs, Outputs: st.Outputs}
	case *Constant:
		c := &constantJSON{Name: st.Name}
		switch v := st.Value.(type) {
		case IntConst:
			n := int64(v)
			c.Int = &n
		case FloatConst:
			f := float64(v)
			c.Float = &f
		default:
			return nil, Errorf(ErrSchemaMismatch, "", "constant %q has no value", st.Name)
		}
		w.Constant = c
	case *Special:
		w.Special = &specialJSON{Name: st.Name, Inputs: st.Inputs, Outputs: st.Outputs, Params: tagsToJSON(st.Params)}
	case *Block:
		b, err := blockToJSON(st)
		if err != nil {
			return nil, err
		}
		w.Block = b
	default:
		return nil, Errorf(ErrSchemaMismatch, "", "unknown statement type %T", s)
	}
	return w, nil
}

func blockToJSON(b *Block) (*blockJSON, error) {
	w := &blockJSON{
		Name:        b.Name,
		Comments:    b.Comments,
		Constraints: affinesToJSON(b.Constraints),
		Location:    locationToJSON(b.Location),
	}
	for _, idx := range b.Idxs {
		w.Idxs = append(w.Idxs, indexJSON{Name: idx.Name, Range: idx.Range, Affine: affineJSON(idx.Affine), Tags: tagsToJSON(idx.Tags)})
	}
	if len(b.Refs) > 0 {
		w.Refs = make(map[string]refJSON, len(b.Refs))
		for name, r := range b.Refs {
			dt := DTypeName(r.Shape.DType)
			if dt == "" {
				return nil, Errorf(ErrSchemaMismatch, b.Name, "refinement %q: unsupported dtype %v", name, r.Shape.DType)
			}
			rw := refJSON{
				Dir:      r.Dir.String(),
				From:     r.From,
				Access:   affinesToJSON(r.Access),
				Shape:    shapeJSON{DType: dt},
				AggOp:    r.AggOp,
				Location: locationToJSON(r.Location),
				Offset:   r.Offset,
				Tags:     tagsToJSON(r.Tags),
			}
			for _, d := range r.Shape.Dims {
				rw.Shape.Dims = append(rw.Shape.Dims, dimJSON(d))
			}
			if r.BankDim != nil {
				rw.BankDim = &bankDimJSON{DimPos: r.BankDim.DimPos}
			}
			w.Refs[name] = rw
		}
	}
	for _, s := range b.Stmts {
		sw, err := stmtToJSON(s)
		if err != nil {
			return nil, err
		}
		w.Stmts = append(w.Stmts, *sw)
	}
	return w, nil
}

func affinesToJSON(as []Affine) []affineJSON {
	if len(as) == 0 {
		return nil
	}
	out := make([]affineJSON, len(as))
	for i, a := range as {
		out[i] = affineJSON(a)
	}
	return out
}

func locationToJSON(l Location) *locationJSON {
	if l.IsZero() {
		return nil
	}
	w := &locationJSON{}
	for _, d := range l.Devs {
		w.Devs = append(w.Devs, deviceJSON{Name: d.Name, Units: affinesToJSON(d.Units)})
	}
	return w
}

func tagsToJSON[M ~map[string]Attribute](t M) tagsJSON {
	if len(t) == 0 {
		return nil
	}
	out := make(tagsJSON, len(t))
	for k, v := range t {
		var a attrJSON
		switch val := v.(type) {
		case BoolAttr:
			b := bool(val)
			a.Bool = &b
		case IntAttr:
			n := int64(val)
			a.Int = &n
		case FloatAttr:
			f := float64(val)
			a.Float = &f
		case StringAttr:
			s := string(val)
			a.String = &s
		case AnyAttr:
			a.Any = &anyJSON{TypeURL: val.TypeURL, Value: val.Value}
		}
		out[k] = a
	}
	return out
}

// stmtFromJSON converts statement idx of the block at blockPath; idx < 0
// marks a statement outside any block.
func stmtFromJSON(w *stmtJSON, blockPath string, idx int) (Statement, error) {
	path := blockPath
	if idx >= 0 {
		path = fmt.Sprintf("%s#%d", blockPath, idx)
	}
	n := 0
	for _, set := range []bool{w.Load != nil, w.Store != nil, w.LoadIndex != nil, w.Intrinsic != nil, w.Constant != nil, w.Block != nil, w.Special != nil} {
		if set {
			n++
		}
	}
	if n != 1 {
		return nil, Errorf(ErrSchemaMismatch, path, "statement must have exactly one variant, got %d", n)
	}
	tags, err := tagsFromJSON(w.Tags, path)
	if err != nil {
		return nil, err
	}
	meta := StmtMeta{Deps: normInts(w.Deps), Tags: tags}

	switch {
	case w.Load != nil:
		return &Load{StmtMeta: meta, From: w.Load.From, Into: w.Load.Into}, nil
	case w.Store != nil:
		return &Store{StmtMeta: meta, From: w.Store.From, Into: w.Store.Into}, nil
	case w.LoadIndex != nil:
		return &LoadIndex{StmtMeta: meta, From: Affine(w.LoadIndex.From), Into: w.LoadIndex.Into}, nil
	case w.Intrinsic != nil:
		dt, err := ParseDType(w.Intrinsic.Type)
		if err != nil {
			return nil, Errorf(ErrSchemaMismatch, path, "intrinsic %q: %v", w.Intrinsic.Name, err)
		}
		return &Intrinsic{
			StmtMeta: meta,
			Name:     w.Intrinsic.Name,
			Type:     dt,
			Inputs:   normStrings(w.Intrinsic.Inputs),
			Outputs:  normStrings(w.Intrinsic.Outputs),
		}, nil
	case w.Constant != nil:
		c := &Constant{StmtMeta: meta, Name: w.Constant.Name}
		switch {
		case w.Constant.Int != nil && w.Constant.Float != nil:
			return nil, Errorf(ErrSchemaMismatch, path, "constant %q has both int and float values", c.Name)
		case w.Constant.Int != nil:
			c.Value = IntConst(*w.Constant.Int)
		case w.Constant.Float != nil:
			c.Value = FloatConst(*w.Constant.Float)
		default:
			return nil, Errorf(ErrSchemaMismatch, path, "constant %q has no value", c.Name)
		}
		return c, nil
	case w.Special != nil:
		params, err := tagsFromJSON(w.Special.Params, path)
		if err != nil {
			return nil, err
		}
		return &Special{
			StmtMeta: meta,
			Name:     w.Special.Name,
			Inputs:   normStrings(w.Special.Inputs),
			Outputs:  normStrings(w.Special.Outputs),
			Params:   params,
		}, nil
	default:
		b, err := blockFromJSON(w.Block, blockPath)
		if err != nil {
			return nil, err
		}
		b.StmtMeta = meta
		return b, nil
	}
}

func blockFromJSON(w *blockJSON, parent string) (*Block, error) {
	path := w.Name
	if parent != "" {
		path = parent + "/" + w.Name
	}
	b := &Block{
		Name:        w.Name,
		Comments:    w.Comments,
		Constraints: affinesFromJSON(w.Constraints),
		Refs:        make(map[string]*Refinement, len(w.Refs)),
		Location:    locationFromJSON(w.Location),
	}
	for _, iw := range w.Idxs {
		tags, err := tagsFromJSON(iw.Tags, path)
		if err != nil {
			return nil, err
		}
		b.Idxs = append(b.Idxs, Index{Name: iw.Name, Range: iw.Range, Affine: Affine(iw.Affine), Tags: tags})
	}
	for name, rw := range w.Refs {
		dir := DirNone
		if rw.Dir != "" {
			d, err := ParseRefDir(rw.Dir)
			if err != nil {
				return nil, Errorf(ErrSchemaMismatch, path, "refinement %q: %v", name, err)
			}
			dir = d
		}
		dt, err := ParseDType(rw.Shape.DType)
		if err != nil {
			return nil, Errorf(ErrSchemaMismatch, path, "refinement %q: %v", name, err)
		}
		tags, err := tagsFromJSON(rw.Tags, path)
		if err != nil {
			return nil, err
		}
		r := &Refinement{
			Dir:      dir,
			From:     rw.From,
			Access:   affinesFromJSON(rw.Access),
			Shape:    Shape{DType: dt},
			AggOp:    rw.AggOp,
			Location: locationFromJSON(rw.Location),
			Offset:   rw.Offset,
			Tags:     tags,
		}
		for _, d := range rw.Shape.Dims {
			r.Shape.Dims = append(r.Shape.Dims, Dim(d))
		}
		if rw.BankDim != nil {
			r.BankDim = &BankDimension{DimPos: rw.BankDim.DimPos}
		}
		b.Refs[name] = r
	}
	for i := range w.Stmts {
		s, err := stmtFromJSON(&w.Stmts[i], path, i)
		if err != nil {
			return nil, err
		}
		b.Stmts = append(b.Stmts, s)
	}
	return b, nil
}

func affinesFromJSON(ws []affineJSON) []Affine {
	if len(ws) == 0 {
		return nil
	}
	out := make([]Affine, len(ws))
	for i, w := range ws {
		out[i] = Affine(w)
	}
	return out
}

func locationFromJSON(w *locationJSON) Location {
	if w == nil || len(w.Devs) == 0 {
		return Location{}
	}
	l := Location{Devs: make([]Device, len(w.Devs))}
	for i, d := range w.Devs {
		l.Devs[i] = Device{Name: d.Name, Units: affinesFromJSON(d.Units)}
	}
	return l
}

func tagsFromJSON(w tagsJSON, path string) (Tags, error) {
	if len(w) == 0 {
		return nil, nil
	}
	out := make(Tags, len(w))
	for k, a := range w {
		var (
			v Attribute
			n int
		)
		if a.Bool != nil {
			v, n = BoolAttr(*a.Bool), n+1
		}
		if a.Int != nil {
			v, n = IntAttr(*a.Int), n+1
		}
		if a.Float != nil {
			v, n = FloatAttr(*a.Float), n+1
		}
		if a.String != nil {
			v, n = StringAttr(*a.String), n+1
		}
		if a.Any != nil {
			v, n = AnyAttr{TypeURL: a.Any.TypeURL, Value: a.Any.Value}, n+1
		}
		if n != 1 {
			return nil, Errorf(ErrSchemaMismatch, path, "attribute %q must have exactly one value, got %d", k, n)
		}
		out[k] = v
	}
	return out, nil
}

func normInts(s []int) []int {
	if len(s) == 0 {
		return nil
	}
	return slices.Clone(s)
}

func normStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
