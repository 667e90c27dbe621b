package engine

import (
	"iter"

	"github.com/roach88/stripe/internal/ir"
)

// Tuple holds one value per block index, in declaration order.
type Tuple []int64

// Env returns the tuple as a name-to-value map for block b.
func (t Tuple) Env(b *ir.Block) ir.Env {
	env := make(ir.Env, len(t))
	for i, v := range t {
		env[b.Idxs[i].Name] = v
	}
	return env
}

// space is a block's index space after evaluating everything that depends
// on the enclosing scope. Constraints are reduced to a constant plus one
// coefficient per index so the product loop cannot fail.
type space struct {
	starts []int64
	ranges []uint64
	cons   []linearConstraint
}

type linearConstraint struct {
	constant int64
	coeffs   []int64
}

func (c linearConstraint) admits(t Tuple) bool {
	sum := c.constant
	for i, k := range c.coeffs {
		sum += k * t[i]
	}
	return sum >= 0
}

// newSpace evaluates index starts against outer and splits every constraint
// into its inner (per index) and outer (constant) parts.
func newSpace(b *ir.Block, outer *Scope) (*space, error) {
	s := &space{
		starts: make([]int64, len(b.Idxs)),
		ranges: make([]uint64, len(b.Idxs)),
	}
	pos := make(map[string]int, len(b.Idxs))
	for i, idx := range b.Idxs {
		start, err := idx.Affine.Eval(outer)
		if err != nil {
			return nil, err
		}
		s.starts[i] = start
		s.ranges[i] = idx.Range
		pos[idx.Name] = i
	}
	for _, c := range b.Constraints {
		lc := linearConstraint{constant: c.Offset, coeffs: make([]int64, len(b.Idxs))}
		for name, k := range c.Terms {
			if i, ok := pos[name]; ok {
				lc.coeffs[i] += k
				continue
			}
			v, ok := outer.Lookup(name)
			if !ok {
				return nil, ir.Errorf(ir.ErrUnboundIndex, "", "constraint %q references index %q which is not in scope", c.String(), name)
			}
			lc.constant += k * v
		}
		s.cons = append(s.cons, lc)
	}
	return s, nil
}

// each visits the Cartesian product in order (first index slowest) and
// yields admitted tuples. reject, when non-nil, is called for every tuple
// a constraint filters out. Each yielded tuple is a fresh slice.
func (s *space) each(yield func(Tuple) bool, reject func(Tuple)) {
	for _, r := range s.ranges {
		if r == 0 {
			return
		}
	}
	cur := make(Tuple, len(s.starts))
	copy(cur, s.starts)
	for {
		ok := true
		for _, c := range s.cons {
			if !c.admits(cur) {
				ok = false
				break
			}
		}
		if ok {
			t := make(Tuple, len(cur))
			copy(t, cur)
			if !yield(t) {
				return
			}
		} else if reject != nil {
			reject(cur)
		}

		d := len(cur) - 1
		for ; d >= 0; d-- {
			cur[d]++
			if uint64(cur[d]-s.starts[d]) < s.ranges[d] {
				break
			}
			cur[d] = s.starts[d]
		}
		if d < 0 {
			return
		}
	}
}

// Tuples returns the admitted index tuples of b under the enclosing scope
// outer. Index starts and the outer part of every constraint are evaluated
// once, before the sequence is returned, so binding errors surface here.
//
// The sequence is lazy and restartable: ranging over it twice yields the
// same tuples. A zero-range index makes the space empty; a block without
// indexes has exactly one empty tuple.
func Tuples(b *ir.Block, outer *Scope) (iter.Seq[Tuple], error) {
	s, err := newSpace(b, outer)
	if err != nil {
		return nil, err
	}
	return func(yield func(Tuple) bool) {
		s.each(yield, nil)
	}, nil
}

// CountTuples returns the number of admitted tuples of b under outer.
func CountTuples(b *ir.Block, outer *Scope) (uint64, error) {
	seq, err := Tuples(b, outer)
	if err != nil {
		return 0, err
	}
	var n uint64
	for range seq {
		n++
	}
	return n, nil
}
