// Package metrics instruments batch loads with Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tordrt/sdohload/internal/schema"
)

const namespace = "sdohload"

// Recorder counts load outcomes
type Recorder struct {
	loadsTotal     *prometheus.CounterVec
	rowsTotal      *prometheus.CounterVec
	variablesTotal *prometheus.CounterVec
	loadDuration   *prometheus.HistogramVec
}

// NewRecorder registers the load collectors with reg
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		loadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Total number of dataset loads by result.",
		}, []string{"dataset", "result"}),
		rowsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_loaded_total",
			Help:      "Total number of wide-table rows committed.",
		}, []string{"dataset"}),
		variablesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "variables_registered_total",
			Help:      "Total number of catalog variables committed.",
		}, []string{"dataset"}),
		loadDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Duration of dataset loads, including file staging.",
			Buckets: []float64{
				0.1, 0.5,
				1, 5, 10, 30,
				60, 120, 300, 600,
			},
		}, []string{"dataset", "result"}),
	}
}

// Observe records one load result. Rows and variables only count when committed.
func (r *Recorder) Observe(res schema.LoadResult) {
	if r == nil {
		return
	}
	result := "failure"
	if res.Success {
		result = "success"
		r.rowsTotal.WithLabelValues(res.Name).Add(float64(res.Rows))
		r.variablesTotal.WithLabelValues(res.Name).Add(float64(res.Variables))
	}
	r.loadsTotal.WithLabelValues(res.Name, result).Inc()
	r.loadDuration.WithLabelValues(res.Name, result).Observe(res.Duration.Seconds())
}
