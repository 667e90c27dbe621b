package compiler

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/roach88/stripe/internal/ir"
)

// Catalog answers which intrinsics, aggregations and specials exist.
// The engine's registry implements it.
type Catalog interface {
	// IntrinsicArity returns the input and output counts of an intrinsic.
	IntrinsicArity(name string) (inputs, outputs int, ok bool)
	// HasAgg reports whether an aggregation op is registered.
	HasAgg(name string) bool
	// HasSpecial reports whether a special is registered.
	HasSpecial(name string) bool
}

// ValidationError represents a static validation error.
type ValidationError struct {
	Path    string       `json:"path"`
	Message string       `json:"message"`
	Code    ir.ErrorKind `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Path, e.Message)
}

// ToError converts the validation error to an *ir.Error.
func (e ValidationError) ToError() *ir.Error {
	return &ir.Error{Kind: e.Code, Path: e.Path, Message: e.Message}
}

// Check validates p and aggregates every problem into a single error.
// Returns nil for a valid program.
func Check(p *ir.Program, cat Catalog) error {
	var err error
	for _, ve := range Validate(p, cat) {
		err = multierr.Append(err, ve.ToError())
	}
	return err
}

// Validate checks a program before execution.
// Returns all errors found (does not fail-fast), in tree order.
// A nil catalog skips the intrinsic, aggregation and special name checks.
func Validate(p *ir.Program, cat Catalog) []ValidationError {
	v := &validator{cat: cat}
	if p == nil || p.Entry == nil {
		v.add(ir.ErrEntryNotBlock, "entry", "program has no entry")
		return v.errs
	}
	root, ok := p.Entry.(*ir.Block)
	if !ok {
		v.add(ir.ErrEntryNotBlock, "entry", "entry is a %s statement, want block", p.Entry.Kind())
		return v.errs
	}
	v.buffers = p.Buffers
	v.block(root, nil, nil, root.Name)
	return v.errs
}

type validator struct {
	cat     Catalog
	buffers map[string]ir.Buffer
	errs    []ValidationError
}

func (v *validator) add(code ir.ErrorKind, path, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{Path: path, Message: fmt.Sprintf(format, args...), Code: code})
}

// scope is the set of index names visible at some point of the tree.
type scope map[string]bool

func (s scope) with(names ...string) scope {
	out := make(scope, len(s)+len(names))
	for k := range s {
		out[k] = true
	}
	for _, n := range names {
		out[n] = true
	}
	return out
}

func (v *validator) affine(a ir.Affine, sc scope, path, what string) {
	for _, name := range a.Names() {
		if !sc[name] {
			v.add(ir.ErrUnboundIndex, path, "%s %q references index %q which is not in scope", what, a.String(), name)
		}
	}
}

// block validates b. outer holds the enclosing index names and parent the
// enclosing block (nil at the root).
func (v *validator) block(b *ir.Block, parent *ir.Block, outer scope, path string) {
	seen := make(map[string]bool, len(b.Idxs))
	names := make([]string, 0, len(b.Idxs))
	for i, idx := range b.Idxs {
		idxPath := fmt.Sprintf("%s.idxs[%d]", path, i)
		if seen[idx.Name] {
			v.add(ir.ErrDuplicateIndex, idxPath, "duplicate index name %q", idx.Name)
		}
		seen[idx.Name] = true
		names = append(names, idx.Name)
		// Start offsets see enclosing indices only.
		v.affine(idx.Affine, outer, idxPath, "index affine")
	}
	inner := outer.with(names...)

	for i, c := range b.Constraints {
		v.affine(c, inner, fmt.Sprintf("%s.constraints[%d]", path, i), "constraint")
	}
	v.location(b.Location, inner, path)

	for _, name := range b.RefNames() {
		v.refinement(name, b.Refs[name], parent, inner, fmt.Sprintf("%s.refs.%s", path, name))
	}

	defined := make(map[string]int)
	for i, s := range b.Stmts {
		v.statement(b, path, i, s, inner, defined)
	}
}

// location checks that device unit affines only use indices in sc.
func (v *validator) location(loc ir.Location, sc scope, path string) {
	for i, dev := range loc.Devs {
		for j, u := range dev.Units {
			v.affine(u, sc, fmt.Sprintf("%s.location.devs[%d].units[%d]", path, i, j), "location unit")
		}
	}
}

func (v *validator) refinement(name string, r *ir.Refinement, parent *ir.Block, sc scope, path string) {
	if (r.Dir == ir.DirNone) != (r.From == "") {
		v.add(ir.ErrMalformedRefinementLink, path, "dir %s with from %q: from must be empty exactly when dir is none", r.Dir, r.From)
	}
	if ir.DTypeName(r.Shape.DType) == "" {
		v.add(ir.ErrTypeMismatch, path, "unsupported element type %v", r.Shape.DType)
	}
	for i, a := range r.Access {
		v.affine(a, sc, fmt.Sprintf("%s.access[%d]", path, i), "access")
	}
	v.location(r.Location, sc, path)
	if r.AggOp != "" && v.cat != nil && !v.cat.HasAgg(r.AggOp) {
		v.add(ir.ErrUnknownIntrinsic, path, "unknown aggregation op %q", r.AggOp)
	}

	if parent == nil {
		buf := ir.BufferName(name, r)
		if _, ok := v.buffers[buf]; !ok {
			v.add(ir.ErrUndefinedRefinement, path, "no program buffer named %q", buf)
		}
		v.ownAccess(r, path)
		return
	}
	if r.From == "" {
		v.ownAccess(r, path)
		return
	}

	src, ok := parent.Refs[r.From]
	if !ok {
		v.add(ir.ErrUndefinedRefinement, path, "from %q does not name a refinement of block %q", r.From, parent.Name)
		return
	}
	if len(r.Access) != src.Shape.Rank() {
		v.add(ir.ErrMalformedRefinementLink, path, "access has %d dimensions, parent %q has %d", len(r.Access), r.From, src.Shape.Rank())
	}
	if r.Shape.DType != src.Shape.DType {
		v.add(ir.ErrTypeMismatch, path, "element type %s differs from parent %q (%s)",
			ir.DTypeName(r.Shape.DType), r.From, ir.DTypeName(src.Shape.DType))
	}
	if (r.Dir == ir.DirOut || r.Dir == ir.DirInOut) && src.Dir == ir.DirIn {
		v.add(ir.ErrMalformedRefinementLink, path, "dir %s writes through read-only parent %q", r.Dir, r.From)
	}
}

// ownAccess checks a refinement addressed over its own layout: access is
// either absent or one affine per own dimension.
func (v *validator) ownAccess(r *ir.Refinement, path string) {
	if n := len(r.Access); n != 0 && n != r.Shape.Rank() {
		v.add(ir.ErrMalformedRefinementLink, path, "access has %d dimensions, shape has %d", n, r.Shape.Rank())
	}
}

func (v *validator) statement(b *ir.Block, bpath string, i int, s ir.Statement, sc scope, defined map[string]int) {
	path := fmt.Sprintf("%s#%d", bpath, i)
	meta := s.Meta()
	seenDeps := make(map[int]bool, len(meta.Deps))
	for _, d := range meta.Deps {
		switch {
		case d < 0 || d >= i:
			v.add(ir.ErrCyclicOrInvalidDependency, path, "dependency %d is not a strictly earlier statement", d)
		case seenDeps[d]:
			v.add(ir.ErrCyclicOrInvalidDependency, path, "dependency %d listed twice", d)
		}
		seenDeps[d] = true
	}

	for _, use := range ir.ScalarUses(s) {
		if _, ok := defined[use]; !ok {
			v.add(ir.ErrUndefinedScalar, path, "scalar %q is used before it is defined", use)
		}
	}

	refs := func(names []string, what string) {
		for _, name := range names {
			if _, ok := b.Refs[name]; !ok {
				v.add(ir.ErrUndefinedRefinement, path, "%s %q is not a refinement of block %q", what, name, b.Name)
			}
		}
	}
	writable := func(names []string) {
		for _, name := range names {
			if r, ok := b.Refs[name]; ok && r.Dir == ir.DirIn {
				v.add(ir.ErrMalformedRefinementLink, path, "refinement %q has dir in and cannot be written", name)
			}
		}
	}

	switch st := s.(type) {
	case *ir.Load:
		refs([]string{st.From}, "load from")
	case *ir.Store:
		refs([]string{st.Into}, "store into")
		writable([]string{st.Into})
	case *ir.LoadIndex:
		v.affine(st.From, sc, path, "load_index")
	case *ir.Intrinsic:
		if ir.DTypeName(st.Type) == "" {
			v.add(ir.ErrTypeMismatch, path, "intrinsic %q has unsupported type %v", st.Name, st.Type)
		}
		if v.cat != nil {
			in, out, ok := v.cat.IntrinsicArity(st.Name)
			switch {
			case !ok:
				v.add(ir.ErrUnknownIntrinsic, path, "unknown intrinsic %q", st.Name)
			case in != len(st.Inputs) || out != len(st.Outputs):
				v.add(ir.ErrArityMismatch, path, "intrinsic %q takes %d inputs and %d outputs, got %d and %d",
					st.Name, in, out, len(st.Inputs), len(st.Outputs))
			}
		}
	case *ir.Constant:
		if st.Value == nil {
			v.add(ir.ErrSchemaMismatch, path, "constant %q has no value", st.Name)
		}
	case *ir.Special:
		if v.cat != nil && !v.cat.HasSpecial(st.Name) {
			v.add(ir.ErrUnknownIntrinsic, path, "unknown special %q", st.Name)
		}
		refs(st.Inputs, "special input")
		refs(st.Outputs, "special output")
		writable(st.Outputs)
	case *ir.Block:
		v.block(st, b, sc, bpath+"/"+st.Name)
	default:
		v.add(ir.ErrSchemaMismatch, path, "unknown statement type %T", s)
	}

	for _, def := range ir.ScalarDefs(s) {
		if prev, ok := defined[def]; ok {
			v.add(ir.ErrDuplicateSSADefinition, path, "scalar %q already defined by statement %d", def, prev)
			continue
		}
		defined[def] = i
	}
}
