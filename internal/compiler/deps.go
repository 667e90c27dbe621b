package compiler

import (
	"slices"

	"github.com/roach88/stripe/internal/ir"
)

// DependencyGraph is the statement ordering of one block activation.
//
// An edge j -> i (j < i) means statement i must run after j. Edges come from
// explicit deps, scalar def-use, and refinement accesses: a write orders
// after every earlier read or write of the same refinement and a read orders
// after every earlier write.
//
// Every edge points forward, so the graph is acyclic by construction.
type DependencyGraph struct {
	Preds [][]int
	Succs [][]int
}

// BuildDependencyGraph derives the statement graph of b.
// b is assumed to have passed validation.
func BuildDependencyGraph(b *ir.Block) *DependencyGraph {
	n := len(b.Stmts)
	g := &DependencyGraph{Preds: make([][]int, n), Succs: make([][]int, n)}

	defs := make(map[string]int)
	readers := make(map[string][]int)
	writers := make(map[string][]int)

	for i, s := range b.Stmts {
		for _, d := range s.Meta().Deps {
			if d >= 0 && d < i {
				g.addEdge(d, i)
			}
		}
		for _, use := range ir.ScalarUses(s) {
			if j, ok := defs[use]; ok {
				g.addEdge(j, i)
			}
		}
		for _, ref := range ir.RefReads(s) {
			for _, j := range writers[ref] {
				g.addEdge(j, i)
			}
		}
		for _, ref := range ir.RefWrites(s) {
			for _, j := range writers[ref] {
				g.addEdge(j, i)
			}
			for _, j := range readers[ref] {
				g.addEdge(j, i)
			}
		}

		for _, def := range ir.ScalarDefs(s) {
			if _, ok := defs[def]; !ok {
				defs[def] = i
			}
		}
		for _, ref := range ir.RefReads(s) {
			readers[ref] = append(readers[ref], i)
		}
		for _, ref := range ir.RefWrites(s) {
			writers[ref] = append(writers[ref], i)
		}
	}
	for i := range g.Preds {
		slices.Sort(g.Preds[i])
		slices.Sort(g.Succs[i])
	}
	return g
}

func (g *DependencyGraph) addEdge(from, to int) {
	if from == to || slices.Contains(g.Preds[to], from) {
		return
	}
	g.Preds[to] = append(g.Preds[to], from)
	g.Succs[from] = append(g.Succs[from], to)
}

// Len returns the number of statements.
func (g *DependencyGraph) Len() int {
	return len(g.Preds)
}

// TopologicalOrder returns a linear extension of the graph. pick chooses
// which ready statement runs next; ready is sorted ascending and pick returns
// a position in it. A nil pick yields declaration order.
func (g *DependencyGraph) TopologicalOrder(pick func(ready []int) int) []int {
	n := g.Len()
	indeg := make([]int, n)
	for i, preds := range g.Preds {
		indeg[i] = len(preds)
	}
	var ready []int
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]int, 0, n)
	for len(ready) > 0 {
		k := 0
		if pick != nil {
			k = pick(ready)
		}
		next := ready[k]
		ready = slices.Delete(ready, k, k+1)
		order = append(order, next)
		for _, s := range g.Succs[next] {
			indeg[s]--
			if indeg[s] == 0 {
				pos, _ := slices.BinarySearch(ready, s)
				ready = slices.Insert(ready, pos, s)
			}
		}
	}
	return order
}

// Levels groups statements into wavefronts: every statement of a level
// depends only on statements of earlier levels.
func (g *DependencyGraph) Levels() [][]int {
	level := make([]int, g.Len())
	var out [][]int
	for i, preds := range g.Preds {
		for _, p := range preds {
			level[i] = max(level[i], level[p]+1)
		}
		for len(out) <= level[i] {
			out = append(out, nil)
		}
		out[level[i]] = append(out[level[i]], i)
	}
	return out
}

// Reachable reports whether to is ordered after from, directly or
// transitively.
func (g *DependencyGraph) Reachable(from, to int) bool {
	if from >= to {
		return false
	}
	seen := make([]bool, g.Len())
	stack := []int{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, s := range g.Succs[cur] {
			if s == to {
				return true
			}
			if s < to && !seen[s] {
				seen[s] = true
				stack = append(stack, s)
			}
		}
	}
	return false
}
