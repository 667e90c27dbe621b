package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/stripe/internal/ir"
)

// activate runs block b once: every admitted tuple of its index space.
// outer is the enclosing index scope and parent the enclosing tuple's
// views (both nil at the root).
func (r *run) activate(ctx context.Context, b *ir.Block, outer *Scope, parent map[string]*View, path string) error {
	sp, err := newSpace(b, outer)
	if err != nil {
		return ir.WithPath(err, path)
	}
	r.activations.Add(1)
	r.exec.metrics.activation()

	reject := func(Tuple) {
		r.visited.Add(1)
		r.exec.metrics.tuple(false)
	}
	admit := func(t Tuple) {
		r.visited.Add(1)
		r.admitted.Add(1)
		r.exec.metrics.tuple(true)
	}

	if r.exec.parallelism <= 1 {
		var runErr error
		sp.each(func(t Tuple) bool {
			admit(t)
			runErr = r.tuple(ctx, b, outer, parent, path, t)
			return runErr == nil
		}, reject)
		return runErr
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.exec.parallelism)
	sp.each(func(t Tuple) bool {
		admit(t)
		if gctx.Err() != nil {
			return false
		}
		g.Go(func() error {
			return r.tuple(gctx, b, outer, parent, path, t)
		})
		return true
	}, reject)
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// frame is the per-tuple state of a block: its index scope, resolved
// views and SSA scalar table.
type frame struct {
	path    string
	scope   *Scope
	views   map[string]*View
	scalars map[string]Scalar
}

func (f *frame) define(name string, v Scalar, path string) error {
	if _, ok := f.scalars[name]; ok {
		return runtimeErrorf(ir.ErrDuplicateSSADefinition, path, "scalar %q is already defined", name)
	}
	f.scalars[name] = v
	return nil
}

func (f *frame) scalar(name, path string) (Scalar, error) {
	v, ok := f.scalars[name]
	if !ok {
		return Scalar{}, runtimeErrorf(ir.ErrUndefinedScalar, path, "scalar %q is not defined", name)
	}
	return v, nil
}

// tuple runs the statements of b for one admitted tuple.
func (r *run) tuple(ctx context.Context, b *ir.Block, outer *Scope, parent map[string]*View, path string, t Tuple) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	names := make([]string, len(b.Idxs))
	for i, idx := range b.Idxs {
		names[i] = idx.Name
	}
	f := &frame{
		path:    path,
		scope:   outer.Push(names, t),
		scalars: make(map[string]Scalar),
	}
	views, err := r.resolveViews(b, f.scope, parent, path)
	if err != nil {
		return err
	}
	f.views = views

	for _, i := range r.exec.scheduler.Order(b, r.graphs[b]) {
		if err := r.budget.spend(); err != nil {
			return err
		}
		s := b.Stmts[i]
		if r.exec.trace != nil {
			r.exec.trace(TraceEvent{
				Seq:     r.exec.clock.Next(),
				RunID:   r.id,
				Path:    path,
				Tuple:   t,
				Indices: t.Env(b),
				Stmt:    i,
				Kind:    s.Kind(),
			})
		}
		if err := r.statement(ctx, f, i, s); err != nil {
			return err
		}
		r.exec.metrics.statement(s.Kind())
	}
	return nil
}

// resolveViews binds every refinement of b for the current tuple.
//
// A refinement with From is a window onto the parent's view: its origin is
// the parent origin plus each access coordinate times the parent stride.
// Root refinements address their program buffer and fresh refinements get
// zero-filled storage, both with their own strides.
func (r *run) resolveViews(b *ir.Block, sc *Scope, parent map[string]*View, path string) (map[string]*View, error) {
	views := make(map[string]*View, len(b.Refs))
	for _, name := range b.RefNames() {
		ref := b.Refs[name]
		refPath := path + ".refs." + name

		agg, ok := r.exec.registry.Agg(ref.AggOp)
		if !ok {
			return nil, runtimeErrorf(ir.ErrUnknownIntrinsic, refPath, "unknown aggregation op %q", ref.AggOp)
		}
		v := &View{Name: name, Shape: ref.Shape, agg: agg}

		var dims []ir.Dim
		switch {
		case parent == nil:
			v.storage = r.buffers[ir.BufferName(name, ref)]
			dims = ref.Shape.Dims
		case ref.From == "":
			st, err := NewZeroStorage(ref.Shape)
			if err != nil {
				return nil, ir.WithPath(err, refPath)
			}
			v.storage = st
			dims = ref.Shape.Dims
		default:
			pv, ok := parent[ref.From]
			if !ok {
				return nil, runtimeErrorf(ir.ErrUndefinedRefinement, refPath, "parent has no refinement %q", ref.From)
			}
			if pv.storage.DType() != ref.Shape.DType {
				return nil, runtimeErrorf(ir.ErrTypeMismatch, refPath, "element type %s over %s storage",
					ir.DTypeName(ref.Shape.DType), ir.DTypeName(pv.storage.DType()))
			}
			v.storage = pv.storage
			v.base = pv.base
			dims = pv.Shape.Dims
		}
		if v.storage == nil {
			return nil, runtimeErrorf(ir.ErrUndefinedRefinement, refPath, "no storage for refinement %q", name)
		}

		if len(ref.Access) > len(dims) {
			return nil, runtimeErrorf(ir.ErrMalformedRefinementLink, refPath, "access has %d dimensions, layout has %d", len(ref.Access), len(dims))
		}
		for d, a := range ref.Access {
			x, err := a.Eval(sc)
			if err != nil {
				return nil, ir.WithPath(err, fmt.Sprintf("%s.access[%d]", refPath, d))
			}
			v.base += x * dims[d].Stride
		}
		views[name] = v
	}
	return views, nil
}

// statement executes statement i of the frame's block.
func (r *run) statement(ctx context.Context, f *frame, i int, s ir.Statement) error {
	path := fmt.Sprintf("%s#%d", f.path, i)
	switch st := s.(type) {
	case *ir.Load:
		v, ok := f.views[st.From]
		if !ok {
			return runtimeErrorf(ir.ErrUndefinedRefinement, path, "no refinement %q", st.From)
		}
		val, err := v.Load()
		if err != nil {
			return ir.WithPath(err, path)
		}
		return f.define(st.Into, val, path)

	case *ir.Store:
		v, ok := f.views[st.Into]
		if !ok {
			return runtimeErrorf(ir.ErrUndefinedRefinement, path, "no refinement %q", st.Into)
		}
		val, err := f.scalar(st.From, path)
		if err != nil {
			return err
		}
		return ir.WithPath(v.Store(val), path)

	case *ir.LoadIndex:
		n, err := st.From.Eval(f.scope)
		if err != nil {
			return ir.WithPath(err, path)
		}
		return f.define(st.Into, IntScalar(ir.IndexDType, n), path)

	case *ir.Constant:
		if st.Value == nil {
			return runtimeErrorf(ir.ErrSchemaMismatch, path, "constant %q has no value", st.Name)
		}
		return f.define(st.Name, constScalar(st.Value), path)

	case *ir.Intrinsic:
		return r.intrinsic(f, st, path)

	case *ir.Special:
		return r.special(ctx, f, st, path)

	case *ir.Block:
		return r.activate(ctx, st, f.scope, f.views, f.path+"/"+st.Name)

	default:
		return runtimeErrorf(ir.ErrSchemaMismatch, path, "unknown statement type %T", s)
	}
}

func (r *run) intrinsic(f *frame, st *ir.Intrinsic, path string) error {
	def, ok := r.exec.registry.Intrinsic(st.Name)
	if !ok {
		return runtimeErrorf(ir.ErrUnknownIntrinsic, path, "unknown intrinsic %q", st.Name)
	}
	if def.Inputs != len(st.Inputs) || def.Outputs != len(st.Outputs) {
		return runtimeErrorf(ir.ErrArityMismatch, path, "intrinsic %q takes %d inputs and %d outputs, got %d and %d",
			st.Name, def.Inputs, def.Outputs, len(st.Inputs), len(st.Outputs))
	}
	args := make([]Scalar, len(st.Inputs))
	for i, name := range st.Inputs {
		v, err := f.scalar(name, path)
		if err != nil {
			return err
		}
		args[i] = v.Cast(st.Type)
	}
	outs, err := def.Fn(st.Type, args)
	if err != nil {
		return wrapRuntime(ir.ErrIntrinsicFailed, path, err, "intrinsic %q", st.Name)
	}
	if len(outs) != len(st.Outputs) {
		return runtimeErrorf(ir.ErrArityMismatch, path, "intrinsic %q returned %d values for %d outputs", st.Name, len(outs), len(st.Outputs))
	}
	for i, name := range st.Outputs {
		if err := f.define(name, outs[i], path); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) special(ctx context.Context, f *frame, st *ir.Special, path string) error {
	fn, ok := r.exec.registry.Special(st.Name)
	if !ok {
		return runtimeErrorf(ir.ErrUnknownIntrinsic, path, "unknown special %q", st.Name)
	}
	lookup := func(names []string) ([]*View, error) {
		out := make([]*View, len(names))
		for i, name := range names {
			v, ok := f.views[name]
			if !ok {
				return nil, runtimeErrorf(ir.ErrUndefinedRefinement, path, "no refinement %q", name)
			}
			out[i] = v
		}
		return out, nil
	}
	ins, err := lookup(st.Inputs)
	if err != nil {
		return err
	}
	outs, err := lookup(st.Outputs)
	if err != nil {
		return err
	}
	call := SpecialCall{Name: st.Name, Path: path, Inputs: ins, Outputs: outs, Params: st.Params}
	if err := fn(ctx, call); err != nil {
		return wrapRuntime(ir.ErrSpecialFailed, path, err, "special %q", st.Name)
	}
	return nil
}
