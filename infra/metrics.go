package infra

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Executions   *prometheus.CounterVec
	NodeResults  *prometheus.CounterVec
	Tokens       prometheus.Counter
	Cost         prometheus.Counter
	NodeDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowrun_executions_total",
				Help: "Workflow executions by final status.",
			},
			[]string{"status"},
		),
		NodeResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowrun_node_results_total",
				Help: "Node results by node type and status.",
			},
			[]string{"type", "status"},
		),
		Tokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowrun_tokens_total",
			Help: "Tokens consumed by succeeded nodes.",
		}),
		Cost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowrun_cost_total",
			Help: "Cost accrued by succeeded nodes.",
		}),
		NodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowrun_node_duration_seconds",
				Help:    "Handler duration by node type.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),
	}
	for _, c := range []prometheus.Collector{m.Executions, m.NodeResults, m.Tokens, m.Cost, m.NodeDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
