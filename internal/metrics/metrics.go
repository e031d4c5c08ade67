// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/gtingest/internal/ingest"
)

const namespace = "gtingest"

// Pipeline implements ingest.Recorder with Prometheus collectors.
// A nil *Pipeline records nothing.
type Pipeline struct {
	registry *prometheus.Registry

	rows        prometheus.Counter
	malformed   prometheus.Counter
	unparseable *prometheus.CounterVec // By field
	dispatches  *prometheus.CounterVec // By sink and outcome
	files       *prometheus.CounterVec // By final state
	fileBytes   prometheus.Counter
	fileLatency *prometheus.HistogramVec // By final state
}

var _ ingest.Recorder = (*Pipeline)(nil)

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() (*Pipeline, error) {
	m := &Pipeline{
		registry: prometheus.NewRegistry(),

		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "rows_total",
			Help:      "Data rows mapped and dispatched",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "malformed_rows_total",
			Help:      "CSV lines skipped because they could not be parsed",
		}),
		unparseable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "unparseable_cells_total",
			Help:      "Non-empty cells dropped because they did not parse as the field type",
		}, []string{"field"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "dispatches_total",
			Help:      "Sink dispatches by sink and outcome",
		}, []string{"sink", "outcome"}), // outcome: ok, error
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "files_total",
			Help:      "Files processed by final state",
		}, []string{"state"}),
		fileBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "read_bytes_total",
			Help:      "Raw bytes read from source files",
		}),
		fileLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "file_duration_seconds",
			Help:      "Time spent processing one file",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"state"}),
	}

	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.rows, m.malformed, m.unparseable, m.dispatches, m.files, m.fileBytes, m.fileLatency,
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Registry returns the registry holding the pipeline collectors.
func (m *Pipeline) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Pipeline) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Pipeline) RowProcessed() {
	if m == nil {
		return
	}
	m.rows.Inc()
}

func (m *Pipeline) MalformedRow() {
	if m == nil {
		return
	}
	m.malformed.Inc()
}

func (m *Pipeline) UnparseableCell(field string) {
	if m == nil {
		return
	}
	m.unparseable.WithLabelValues(field).Inc()
}

func (m *Pipeline) SinkDispatched(sink string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.dispatches.WithLabelValues(sink, outcome).Inc()
}

func (m *Pipeline) FileFinished(state ingest.FileState, bytesRead int64, d time.Duration) {
	if m == nil {
		return
	}
	m.files.WithLabelValues(string(state)).Inc()
	m.fileBytes.Add(float64(bytesRead))
	m.fileLatency.WithLabelValues(string(state)).Observe(d.Seconds())
}
