package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/stripe/internal/ir"
)

// Metrics are the executor's Prometheus counters. A nil *Metrics records
// nothing.
type Metrics struct {
	Tuples      *prometheus.CounterVec
	Statements  *prometheus.CounterVec
	Activations prometheus.Counter
}

// NewMetrics creates the executor counters and registers them with reg.
// Panics if they are already registered with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Tuples: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stripe_tuples_total",
				Help: "Index tuples visited, by whether the constraints admitted them",
			}, []string{"result"},
		),
		Statements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stripe_statements_total",
				Help: "Statements executed, by statement kind",
			}, []string{"kind"},
		),
		Activations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stripe_block_activations_total",
				Help: "Block activations (one per enclosing tuple)",
			},
		),
	}
	reg.MustRegister(m.Tuples, m.Statements, m.Activations)
	return m
}

func (m *Metrics) tuple(admitted bool) {
	if m == nil {
		return
	}
	if admitted {
		m.Tuples.WithLabelValues("admitted").Inc()
	} else {
		m.Tuples.WithLabelValues("rejected").Inc()
	}
}

func (m *Metrics) statement(kind ir.StmtKind) {
	if m == nil {
		return
	}
	m.Statements.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) activation() {
	if m == nil {
		return
	}
	m.Activations.Inc()
}
