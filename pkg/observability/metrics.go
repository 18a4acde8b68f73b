package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "mailflow"

// MetricsObserver turns graph events into Prometheus series. It reads the
// "node", "status" and "duration_ms" fields set by the execution engine and
// ignores events that do not carry them.
type MetricsObserver struct {
	nodeRuns     *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	runs         *prometheus.CounterVec
	cycles       *prometheus.CounterVec
}

// NewMetricsObserver registers the workflow collectors on reg.
// Registering twice on the same registry panics.
func NewMetricsObserver(reg prometheus.Registerer) *MetricsObserver {
	factory := promauto.With(reg)

	return &MetricsObserver{
		nodeRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "stage_executions_total",
			Help:      "Stage executions by stage name and outcome.",
		}, []string{"stage", "outcome"}),
		nodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent inside a stage.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "run_segments_total",
			Help:      "Execute or resume calls by final status.",
		}, []string{"status"}),
		cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "stage_revisits_total",
			Help:      "Stages entered more than once within a segment.",
		}, []string{"stage"}),
	}
}

func (m *MetricsObserver) OnEvent(ctx context.Context, event Event) {
	switch event.Type {
	case "node.complete":
		stage, _ := event.Data["node"].(string)
		if stage == "" {
			return
		}
		outcome := "ok"
		if failed, _ := event.Data["error"].(bool); failed {
			outcome = "error"
		}
		m.nodeRuns.WithLabelValues(stage, outcome).Inc()
		if ms, ok := event.Data["duration_ms"].(float64); ok {
			m.nodeDuration.WithLabelValues(stage).Observe(ms / 1000)
		}
	case "graph.complete", "graph.fail":
		status, _ := event.Data["status"].(string)
		if status == "" {
			status = "unknown"
		}
		m.runs.WithLabelValues(status).Inc()
	case "cycle.detected":
		if stage, ok := event.Data["node"].(string); ok {
			m.cycles.WithLabelValues(stage).Inc()
		}
	}
}
