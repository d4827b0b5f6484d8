// Package metrics provides Prometheus instrumentation for appendflow components.
//
// This package enables monitoring and observability for the append pipeline:
// queue depth and backpressure on the producer side, and writes, flushes,
// file-handle churn and faults on the writer side.
//
// # Quick Start
//
// Enable metrics through the writer configuration:
//
//	config := writer.DefaultConfig("events.log")
//	config.Name = "events"
//	config.Metrics = metrics.DefaultRegistry
//
//	w, err := writer.NewWriterWithConfig(config)
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":8080", nil))
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation:
//
//	registry := metrics.NewRegistry(prometheus.NewRegistry())
//	config.Metrics = registry
//
// # Available Metrics
//
// ## Queue Metrics
//
//   - appendflow_queue_depth: Number of payloads currently queued
//   - appendflow_queue_capacity: Configured queue capacity bound (0 = unbounded)
//   - appendflow_queue_backpressure_events_total: Enqueues that had to wait for space
//   - appendflow_queue_payloads_discarded_total: Queued payloads dropped by abortive shutdown
//
// ## Writer Metrics
//
//   - appendflow_writer_appends_total: Payloads accepted for writing
//   - appendflow_writer_append_bytes_total: Payload bytes written to the destination
//   - appendflow_writer_flushes_total: Buffer flushes to the destination
//   - appendflow_writer_write_duration_seconds: Time spent writing a payload
//   - appendflow_writer_sink_opens_total: Times the destination file was opened
//   - appendflow_writer_sink_closes_total: Times the destination file was released
//   - appendflow_writer_faults_total: I/O failures that faulted a writer
//   - appendflow_writer_draining: 1 while the writer holds the destination open
//
// # Labels
//
// All metrics carry a writer_name label, taken from Config.Name (the
// destination path when unset), for filtering and aggregation.
//
// # Performance
//
// Metrics collection is designed for minimal overhead:
//   - Metrics are updated only when operations occur
//   - No background goroutines or timers
//   - Collection is skipped entirely when Config.Metrics is nil
package metrics
