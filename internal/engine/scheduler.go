package engine

import (
	"math/rand/v2"
	"sync"

	"github.com/roach88/stripe/internal/compiler"
	"github.com/roach88/stripe/internal/ir"
)

// Scheduler chooses the order in which one tuple runs a block's statements.
// The order must be a topological order of g.
type Scheduler interface {
	Order(b *ir.Block, g *compiler.DependencyGraph) []int
}

// Sequential runs statements in declaration order.
type Sequential struct{}

// Order implements Scheduler.
func (Sequential) Order(b *ir.Block, _ *compiler.DependencyGraph) []int {
	order := make([]int, len(b.Stmts))
	for i := range order {
		order[i] = i
	}
	return order
}

// ShuffledScheduler picks a random topological order for every tuple.
// Programs whose result changes under it depend on an ordering their
// dependencies do not declare.
type ShuffledScheduler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewShuffledScheduler returns a scheduler seeded for reproducible orders.
func NewShuffledScheduler(seed uint64) *ShuffledScheduler {
	return &ShuffledScheduler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Order implements Scheduler.
func (s *ShuffledScheduler) Order(_ *ir.Block, g *compiler.DependencyGraph) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return g.TopologicalOrder(func(ready []int) int {
		return s.rng.IntN(len(ready))
	})
}

// dependencyGraphs builds the graph of every block in the tree once per run.
// The map is read-only afterwards.
func dependencyGraphs(root *ir.Block) map[*ir.Block]*compiler.DependencyGraph {
	out := make(map[*ir.Block]*compiler.DependencyGraph)
	var walk func(b *ir.Block)
	walk = func(b *ir.Block) {
		out[b] = compiler.BuildDependencyGraph(b)
		for _, sub := range b.SubBlocks() {
			walk(sub)
		}
	}
	walk(root)
	return out
}
