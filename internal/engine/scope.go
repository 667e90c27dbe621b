package engine

// Scope is one frame of index bindings. Lookups walk outward through the
// enclosing frames, so an inner index shadows an outer one of the same
// name. A nil *Scope is the empty scope.
//
// Scopes are immutable once built and safe to share between goroutines.
type Scope struct {
	parent *Scope
	names  []string
	values []int64
}

// Push returns a child scope binding names[i] to values[i].
func (s *Scope) Push(names []string, values []int64) *Scope {
	return &Scope{parent: s, names: names, values: values}
}

// Lookup implements ir.Bindings.
func (s *Scope) Lookup(name string) (int64, bool) {
	for f := s; f != nil; f = f.parent {
		for i, n := range f.names {
			if n == name {
				return f.values[i], true
			}
		}
	}
	return 0, false
}

// Depth returns the number of frames.
func (s *Scope) Depth() int {
	n := 0
	for f := s; f != nil; f = f.parent {
		n++
	}
	return n
}
