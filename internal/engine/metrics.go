package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the engine's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	instructions *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	seq          prometheus.Gauge
	rejected     *prometheus.CounterVec
}

// NewMetrics registers the engine collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		instructions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgermsg_instructions_total",
				Help: "Total number of executed instructions by outcome",
			},
			[]string{"instruction", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledgermsg_instruction_duration_seconds",
				Help:    "Instruction execution time including the ledger append",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"instruction"},
		),
		seq: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ledgermsg_ledger_seq",
				Help: "Seq of the last appended ledger entry",
			},
		),
		rejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgermsg_envelopes_rejected_total",
				Help: "Envelopes refused before execution",
			},
			[]string{"reason"},
		),
	}
}

func (m *Metrics) observe(op, status string, seconds float64, seq int64) {
	if m == nil {
		return
	}
	m.instructions.WithLabelValues(op, status).Inc()
	m.duration.WithLabelValues(op).Observe(seconds)
	m.seq.Set(float64(seq))
}

func (m *Metrics) reject(code RejectCode) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(string(code)).Inc()
}

func (m *Metrics) setSeq(seq int64) {
	if m == nil {
		return
	}
	m.seq.Set(float64(seq))
}
