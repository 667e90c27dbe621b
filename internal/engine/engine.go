package engine

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/stripe/internal/compiler"
	"github.com/roach88/stripe/internal/ir"
)

// Executor runs programs. An Executor holds configuration only and may run
// any number of programs, concurrently.
type Executor struct {
	registry      *Registry
	parallelism   int
	scheduler     Scheduler
	logger        *slog.Logger
	metrics       *Metrics
	runIDs        RunIDGenerator
	clock         *Clock
	trace         TraceSink
	maxStatements int64
}

// Option configures an Executor.
type Option func(*Executor)

// WithParallelism runs up to n tuples of each block activation at once.
// n <= 1 is sequential execution.
func WithParallelism(n int) Option {
	return func(e *Executor) {
		e.parallelism = n
	}
}

// WithScheduler sets the statement order used within each tuple.
func WithScheduler(s Scheduler) Option {
	return func(e *Executor) {
		e.scheduler = s
	}
}

// WithRegistry replaces the built-in intrinsic, aggregation and special
// catalog.
func WithRegistry(r *Registry) Option {
	return func(e *Executor) {
		e.registry = r
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithMetrics records execution counters in m.
func WithMetrics(m *Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// WithRunIDGenerator sets the run ID source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Executor) {
		e.runIDs = g
	}
}

// WithClock sets the clock that sequences trace events.
func WithClock(c *Clock) Option {
	return func(e *Executor) {
		e.clock = c
	}
}

// WithTrace sends an event for every executed statement to sink.
func WithTrace(sink TraceSink) Option {
	return func(e *Executor) {
		e.trace = sink
	}
}

// WithMaxStatements stops a run after n statements with a
// StatementBudgetError. n <= 0 means no limit.
func WithMaxStatements(n int64) Option {
	return func(e *Executor) {
		e.maxStatements = n
	}
}

// New creates an Executor. Defaults: built-in registry, sequential tuples,
// declaration-order statements, UUIDv7 run IDs.
func New(opts ...Option) *Executor {
	e := &Executor{
		registry:      DefaultRegistry(),
		parallelism:   1,
		scheduler:     Sequential{},
		runIDs:        UUIDv7Generator{},
		clock:         NewClock(),
		maxStatements: DefaultMaxStatements,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Registry returns the catalog the executor validates and runs against.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Stats summarizes one run.
type Stats struct {
	Activations    int64 `json:"activations"`
	TuplesVisited  int64 `json:"tuples_visited"`
	TuplesAdmitted int64 `json:"tuples_admitted"`
	Statements     int64 `json:"statements"`
}

// Result is the outcome of a successful run.
type Result struct {
	RunID string
	// Buffers holds every program buffer after execution. The input
	// program's buffers are never modified.
	Buffers map[string]ir.Buffer
	Stats   Stats
}

// Run validates p and executes it.
//
// Validation errors are returned as the aggregate from compiler.Check and
// no statement runs. Execution stops at the first runtime error, which is
// an *ir.Error carrying the failing block/statement path.
func (e *Executor) Run(ctx context.Context, p *ir.Program) (*Result, error) {
	if err := compiler.Check(p, e.registry); err != nil {
		return nil, err
	}
	root := p.Root()
	r := &run{
		exec:    e,
		id:      e.runIDs.Generate(),
		graphs:  dependencyGraphs(root),
		buffers: make(map[string]*Storage),
	}
	r.budget = newStatementBudget(r.id, e.maxStatements)

	for _, name := range root.RefNames() {
		ref := root.Refs[name]
		bufName := ir.BufferName(name, ref)
		if st, ok := r.buffers[bufName]; ok {
			if st.DType() != ref.Shape.DType {
				return nil, runtimeErrorf(ir.ErrTypeMismatch, root.Name+".refs."+name,
					"buffer %q is bound as %s and %s", bufName, ir.DTypeName(st.DType()), ir.DTypeName(ref.Shape.DType))
			}
			continue
		}
		st, err := NewStorage(ref.Shape.DType, p.Buffers[bufName].Data())
		if err != nil {
			return nil, ir.WithPath(err, root.Name+".refs."+name)
		}
		r.buffers[bufName] = st
	}

	e.logger.Debug("run starting", "run_id", r.id, "block", root.Name, "parallelism", e.parallelism)
	if err := r.activate(ctx, root, nil, nil, root.Name); err != nil {
		e.logger.Debug("run failed", "run_id", r.id, "error", err)
		return nil, err
	}

	out := make(map[string]ir.Buffer, len(p.Buffers))
	for name, buf := range p.Buffers {
		out[name] = buf.Clone()
	}
	for name, st := range r.buffers {
		buf := out[name]
		if buf.Sections == nil {
			buf.Sections = make(map[string][]byte)
		}
		buf.Sections[ir.DataSection] = st.Bytes()
		out[name] = buf
	}

	stats := r.stats()
	e.logger.Info("run finished",
		"run_id", r.id,
		"activations", stats.Activations,
		"tuples", stats.TuplesAdmitted,
		"statements", stats.Statements)
	return &Result{RunID: r.id, Buffers: out, Stats: stats}, nil
}

// run is the state of one Run call.
type run struct {
	exec    *Executor
	id      string
	graphs  map[*ir.Block]*compiler.DependencyGraph
	buffers map[string]*Storage
	budget  *statementBudget

	activations atomic.Int64
	visited     atomic.Int64
	admitted    atomic.Int64
}

func (r *run) stats() Stats {
	return Stats{
		Activations:    r.activations.Load(),
		TuplesVisited:  r.visited.Load(),
		TuplesAdmitted: r.admitted.Load(),
		Statements:     r.budget.Used(),
	}
}
