package testutil

import (
	"log/slog"

	"github.com/roach88/stripe/internal/engine"
)

// Deterministic is an executor wired for reproducible test output: a fixed
// run ID, a clock starting at zero, a discarded log and a trace recorder.
type Deterministic struct {
	Executor *engine.Executor
	Trace    *engine.TraceRecorder
	Clock    *engine.Clock
	RunID    string
}

// NewDeterministic builds a Deterministic executor. opts are applied after
// the deterministic defaults and may override any of them.
func NewDeterministic(runID string, opts ...engine.Option) *Deterministic {
	gen := NewFixedRunIDGenerator(runID)
	d := &Deterministic{
		Trace: &engine.TraceRecorder{},
		Clock: engine.NewClock(),
		RunID: gen.Generate(),
	}
	base := []engine.Option{
		engine.WithRunIDGenerator(gen),
		engine.WithClock(d.Clock),
		engine.WithLogger(slog.New(slog.DiscardHandler)),
		engine.WithTrace(d.Trace.Record),
	}
	d.Executor = engine.New(append(base, opts...)...)
	return d
}
