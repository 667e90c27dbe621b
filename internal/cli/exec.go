package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/exp/maps"

	"github.com/roach88/stripe/internal/engine"
	"github.com/roach88/stripe/internal/ir"
)

// execSettings are the executor knobs shared by run, trace and replay.
type execSettings struct {
	RunID         string
	Parallelism   int
	Seed          *uint64
	MaxStatements int64
	Trace         engine.TraceSink
	Metrics       *engine.Metrics
}

func (s execSettings) options(logger *slog.Logger) []engine.Option {
	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithParallelism(s.Parallelism),
	}
	if s.RunID != "" {
		opts = append(opts, engine.WithRunIDGenerator(engine.NewFixedGenerator(s.RunID)))
	}
	if s.Seed != nil {
		opts = append(opts, engine.WithScheduler(engine.NewShuffledScheduler(*s.Seed)))
	}
	if s.MaxStatements > 0 {
		opts = append(opts, engine.WithMaxStatements(s.MaxStatements))
	}
	if s.Trace != nil {
		opts = append(opts, engine.WithTrace(s.Trace))
	}
	if s.Metrics != nil {
		opts = append(opts, engine.WithMetrics(s.Metrics))
	}
	return opts
}

// RunErrorDetails describes a runtime error in JSON responses.
type RunErrorDetails struct {
	Kind ir.ErrorKind `json:"kind"`
	Path string       `json:"path"`
}

// reportRunError prints a runtime error and returns the matching ExitError.
// Budget and cancellation errors carry no kind.
func reportRunError(f *OutputFormatter, err error) error {
	var irErr *ir.Error
	if errors.As(err, &irErr) {
		return f.fail(ExitFailure, ErrCodeRunFailed, err.Error(), RunErrorDetails{Kind: irErr.Kind, Path: irErr.Path})
	}
	return f.fail(ExitFailure, ErrCodeRunFailed, err.Error(), nil)
}

func commandContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func scalarValues(bufs map[string][]engine.Scalar) map[string][]any {
	out := make(map[string][]any, len(bufs))
	for name, vals := range bufs {
		vs := make([]any, len(vals))
		for i, v := range vals {
			vs[i] = v.Value()
		}
		out[name] = vs
	}
	return out
}

func writeBuffers(w io.Writer, bufs map[string][]engine.Scalar) {
	names := maps.Keys(bufs)
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s: %v\n", name, bufs[name])
	}
}

// openTrace opens the --trace destination. The writer is nil when tracing
// is off.
func openTrace(path string, stderr io.Writer) (io.Writer, func(), error) {
	switch path {
	case "":
		return nil, func() {}, nil
	case "-":
		return stderr, func() {}, nil
	}
	fh, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	return fh, func() { fh.Close() }, nil
}

// jsonLinesSink encodes each trace event as one line of JSON.
func jsonLinesSink(w io.Writer) engine.TraceSink {
	var mu sync.Mutex
	enc := json.NewEncoder(w)
	return func(ev engine.TraceEvent) {
		mu.Lock()
		defer mu.Unlock()
		_ = enc.Encode(ev)
	}
}

// writeMetrics prints every counter gathered from reg as name{labels} value.
func writeMetrics(w io.Writer, reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		fmt.Fprintf(w, "metrics: %v\n", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			fmt.Fprintf(w, "%s %g\n", name, m.GetCounter().GetValue())
		}
	}
}
