// Package metrics provides Prometheus instrumentation for appendflow components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for appendflow components.
type Registry struct {
	// Queue Metrics
	QueueDepth         *prometheus.GaugeVec
	QueueCapacity      *prometheus.GaugeVec
	BackpressureEvents *prometheus.CounterVec
	PayloadsDiscarded  *prometheus.CounterVec

	// Writer Metrics
	AppendsTotal   *prometheus.CounterVec
	AppendBytes    *prometheus.CounterVec
	WriterFlushes  *prometheus.CounterVec
	WriteDuration  *prometheus.HistogramVec
	SinkOpens      *prometheus.CounterVec
	SinkCloses     *prometheus.CounterVec
	WriterFaults   *prometheus.CounterVec
	WriterDraining *prometheus.GaugeVec
}

// DefaultRegistry is the default metrics registry used by appendflow components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		// Queue Metrics
		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "appendflow",
				Subsystem: "queue",
				Name:      "depth",
				Help:      "Number of payloads currently queued",
			},
			[]string{"writer_name"},
		),

		QueueCapacity: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "appendflow",
				Subsystem: "queue",
				Name:      "capacity",
				Help:      "Configured queue capacity bound (0 = unbounded)",
			},
			[]string{"writer_name"},
		),

		BackpressureEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "appendflow",
				Subsystem: "queue",
				Name:      "backpressure_events_total",
				Help:      "Total number of enqueue operations that had to wait for space",
			},
			[]string{"writer_name"},
		),

		PayloadsDiscarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "appendflow",
				Subsystem: "queue",
				Name:      "payloads_discarded_total",
				Help:      "Total number of queued payloads discarded by abortive shutdown",
			},
			[]string{"writer_name"},
		),

		// Writer Metrics
		AppendsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "appendflow",
				Subsystem: "writer",
				Name:      "appends_total",
				Help:      "Total number of payloads accepted for writing",
			},
			[]string{"writer_name"},
		),

		AppendBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "appendflow",
				Subsystem: "writer",
				Name:      "append_bytes_total",
				Help:      "Total payload bytes written to the destination",
			},
			[]string{"writer_name"},
		),

		WriterFlushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "appendflow",
				Subsystem: "writer",
				Name:      "flushes_total",
				Help:      "Total number of buffer flushes to the destination",
			},
			[]string{"writer_name"},
		),

		WriteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "appendflow",
				Subsystem: "writer",
				Name:      "write_duration_seconds",
				Help:      "Time spent writing a payload to the destination",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"writer_name"},
		),

		SinkOpens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "appendflow",
				Subsystem: "writer",
				Name:      "sink_opens_total",
				Help:      "Total number of times the destination file was opened",
			},
			[]string{"writer_name"},
		),

		SinkCloses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "appendflow",
				Subsystem: "writer",
				Name:      "sink_closes_total",
				Help:      "Total number of times the destination file was released",
			},
			[]string{"writer_name"},
		),

		WriterFaults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "appendflow",
				Subsystem: "writer",
				Name:      "faults_total",
				Help:      "Total number of I/O failures that faulted a writer",
			},
			[]string{"writer_name"},
		),

		WriterDraining: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "appendflow",
				Subsystem: "writer",
				Name:      "draining",
				Help:      "1 while the writer loop holds the destination open, 0 when idle",
			},
			[]string{"writer_name"},
		),
	}
}
