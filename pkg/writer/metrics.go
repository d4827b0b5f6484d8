package writer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vnykmshr/appendflow/pkg/metrics"
)

// instruments holds this writer's labeled metric instances, resolved once at
// construction so the hot path never touches label lookup.
type instruments struct {
	appends      prometheus.Counter
	appendBytes  prometheus.Counter
	flushes      prometheus.Counter
	sinkOpens    prometheus.Counter
	sinkCloses   prometheus.Counter
	faults       prometheus.Counter
	backpressure prometheus.Counter
	discarded    prometheus.Counter
	depth        prometheus.Gauge
	capacity     prometheus.Gauge
	draining     prometheus.Gauge
	writeTime    prometheus.Observer
}

func newInstruments(registry *metrics.Registry, name string) *instruments {
	return &instruments{
		appends:      registry.AppendsTotal.WithLabelValues(name),
		appendBytes:  registry.AppendBytes.WithLabelValues(name),
		flushes:      registry.WriterFlushes.WithLabelValues(name),
		sinkOpens:    registry.SinkOpens.WithLabelValues(name),
		sinkCloses:   registry.SinkCloses.WithLabelValues(name),
		faults:       registry.WriterFaults.WithLabelValues(name),
		backpressure: registry.BackpressureEvents.WithLabelValues(name),
		discarded:    registry.PayloadsDiscarded.WithLabelValues(name),
		depth:        registry.QueueDepth.WithLabelValues(name),
		capacity:     registry.QueueCapacity.WithLabelValues(name),
		draining:     registry.WriterDraining.WithLabelValues(name),
		writeTime:    registry.WriteDuration.WithLabelValues(name),
	}
}
