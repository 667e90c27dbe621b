package engine

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/roach88/stripe/internal/ir"
)

// TraceEvent records one executed statement. Indices names the values of
// Tuple.
type TraceEvent struct {
	Seq     int64       `json:"seq"`
	RunID   string      `json:"run_id"`
	Path    string      `json:"path"`
	Tuple   Tuple       `json:"tuple"`
	Indices ir.Env      `json:"indices,omitempty"`
	Stmt    int         `json:"stmt"`
	Kind    ir.StmtKind `json:"kind"`
}

// Clock hands out TraceEvent.Seq numbers, starting at 1. Statements of
// parallel tuples reach a sink in any order; Seq is what orders them.
// A Clock may be shared by several executors.
type Clock struct {
	last atomic.Int64
}

func NewClock() *Clock {
	return &Clock{}
}

// Next stamps one event.
func (c *Clock) Next() int64 {
	return c.last.Add(1)
}

// Current is the last Seq handed out, 0 before any event.
func (c *Clock) Current() int64 {
	return c.last.Load()
}

// TraceSink receives trace events. With WithParallelism a sink is called
// from several goroutines at once and must synchronize itself.
type TraceSink func(TraceEvent)

// TraceRecorder collects trace events in memory.
type TraceRecorder struct {
	mu     sync.Mutex
	events []TraceEvent
}

// Record implements TraceSink.
func (r *TraceRecorder) Record(ev TraceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns the recorded events ordered by sequence number.
func (r *TraceRecorder) Events() []TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := slices.Clone(r.events)
	slices.SortFunc(out, func(a, b TraceEvent) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return out
}
