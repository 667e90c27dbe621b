package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/gx-org/backend/dtype"
	"golang.org/x/exp/maps"

	"github.com/roach88/stripe/internal/compiler"
	"github.com/roach88/stripe/internal/ir"
)

// IntrinsicFunc computes an intrinsic at element type t. Arguments are
// already cast to t. It returns one scalar per declared output.
type IntrinsicFunc func(t dtype.DataType, args []Scalar) ([]Scalar, error)

// IntrinsicDef is a registered intrinsic and its signature.
type IntrinsicDef struct {
	Name    string
	Inputs  int
	Outputs int
	Fn      IntrinsicFunc
}

// AggFunc combines the current element with a stored value. Both are of
// element type t.
type AggFunc func(t dtype.DataType, cur, v Scalar) Scalar

// SpecialCall carries the whole-refinement views a special operates on.
type SpecialCall struct {
	Name    string
	Path    string
	Inputs  []*View
	Outputs []*View
	Params  map[string]ir.Attribute
}

// SpecialFunc executes a special operation.
type SpecialFunc func(ctx context.Context, call SpecialCall) error

// Registry holds the intrinsic, aggregation and special catalogs.
// It implements compiler.Catalog so validation and execution agree on
// what exists.
//
// Thread-safety: Registry is safe for concurrent use; registration is
// expected to finish before execution starts.
type Registry struct {
	mu         sync.RWMutex
	intrinsics map[string]IntrinsicDef
	aggs       map[string]AggFunc
	specials   map[string]SpecialFunc
}

var _ compiler.Catalog = (*Registry)(nil)

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		intrinsics: make(map[string]IntrinsicDef),
		aggs:       make(map[string]AggFunc),
		specials:   make(map[string]SpecialFunc),
	}
}

// DefaultRegistry returns a new registry holding the built-in catalog.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, def := range builtinIntrinsics() {
		mustRegister(r.RegisterIntrinsic(def))
	}
	for name, fn := range builtinAggs() {
		mustRegister(r.RegisterAgg(name, fn))
	}
	for name, fn := range builtinSpecials() {
		mustRegister(r.RegisterSpecial(name, fn))
	}
	return r
}

func mustRegister(err error) {
	if err != nil {
		panic(err)
	}
}

// RegisterIntrinsic adds an intrinsic. Names are unique.
func (r *Registry) RegisterIntrinsic(def IntrinsicDef) error {
	if def.Name == "" || def.Fn == nil {
		return fmt.Errorf("intrinsic needs a name and a function")
	}
	if def.Inputs < 0 || def.Outputs < 0 {
		return fmt.Errorf("intrinsic %q: negative arity", def.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.intrinsics[def.Name]; ok {
		return fmt.Errorf("intrinsic %q already registered", def.Name)
	}
	r.intrinsics[def.Name] = def
	return nil
}

// RegisterAgg adds an aggregation op. The empty name is reserved for the
// identity aggregation.
func (r *Registry) RegisterAgg(name string, fn AggFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("aggregation needs a name and a function")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.aggs[name]; ok {
		return fmt.Errorf("aggregation %q already registered", name)
	}
	r.aggs[name] = fn
	return nil
}

// RegisterSpecial adds a special operation.
func (r *Registry) RegisterSpecial(name string, fn SpecialFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("special needs a name and a function")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.specials[name]; ok {
		return fmt.Errorf("special %q already registered", name)
	}
	r.specials[name] = fn
	return nil
}

// Intrinsic looks up an intrinsic by name.
func (r *Registry) Intrinsic(name string) (IntrinsicDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.intrinsics[name]
	return def, ok
}

// Agg looks up an aggregation op. "" is always the identity aggregation.
func (r *Registry) Agg(name string) (AggFunc, bool) {
	if name == "" {
		return assignAgg, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.aggs[name]
	return fn, ok
}

// Special looks up a special operation by name.
func (r *Registry) Special(name string) (SpecialFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.specials[name]
	return fn, ok
}

// IntrinsicArity implements compiler.Catalog.
func (r *Registry) IntrinsicArity(name string) (inputs, outputs int, ok bool) {
	def, ok := r.Intrinsic(name)
	return def.Inputs, def.Outputs, ok
}

// HasAgg implements compiler.Catalog.
func (r *Registry) HasAgg(name string) bool {
	_, ok := r.Agg(name)
	return ok
}

// HasSpecial implements compiler.Catalog.
func (r *Registry) HasSpecial(name string) bool {
	_, ok := r.Special(name)
	return ok
}

// IntrinsicNames returns the registered intrinsic names, sorted.
func (r *Registry) IntrinsicNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := maps.Keys(r.intrinsics)
	slices.Sort(names)
	return names
}

// AggNames returns the registered aggregation names, sorted.
func (r *Registry) AggNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := maps.Keys(r.aggs)
	slices.Sort(names)
	return names
}

// SpecialNames returns the registered special names, sorted.
func (r *Registry) SpecialNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := maps.Keys(r.specials)
	slices.Sort(names)
	return names
}
