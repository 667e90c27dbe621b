package engine

import "github.com/roach88/stripe/internal/ir"

// SetInput replaces the data section of buffer name in p with vals encoded
// as the buffer's element type. The value count must fill the buffer
// exactly. Other sections are kept.
func SetInput(p *ir.Program, name string, vals []any) error {
	path := "buffers." + name
	shape, ok := p.BufferShape(name)
	if !ok {
		return runtimeErrorf(ir.ErrUndefinedRefinement, path, "no root refinement binds buffer %q", name)
	}
	want := int(shape.Extent())
	if len(vals) != want {
		return runtimeErrorf(ir.ErrTypeMismatch, path, "buffer holds %d %s elements, got %d values",
			want, ir.DTypeName(shape.DType), len(vals))
	}
	elems, err := ParseScalars(shape.DType, vals)
	if err != nil {
		return wrapRuntime(ir.ErrTypeMismatch, path, err, "input")
	}

	buf := p.Buffers[name].Clone()
	if buf.Sections == nil {
		buf.Sections = map[string][]byte{}
	}
	buf.Sections[ir.DataSection] = EncodeElements(shape.DType, elems)
	if p.Buffers == nil {
		p.Buffers = map[string]ir.Buffer{}
	}
	p.Buffers[name] = buf
	return nil
}

// DecodeBuffers decodes the data section of every buffer in bufs using the
// element types p's root block gives them. Buffers no root refinement
// binds are skipped.
func DecodeBuffers(p *ir.Program, bufs map[string]ir.Buffer) (map[string][]Scalar, error) {
	out := make(map[string][]Scalar, len(bufs))
	for name, b := range bufs {
		shape, ok := p.BufferShape(name)
		if !ok {
			continue
		}
		vals, err := DecodeElements(shape.DType, b.Data())
		if err != nil {
			return nil, ir.WithPath(err, "buffers."+name)
		}
		out[name] = vals
	}
	return out, nil
}
