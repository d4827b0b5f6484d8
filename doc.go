/*
Package appendflow provides a Go library for concurrent appending to a single
destination file without serializing producers on a lock.

Many goroutines hand byte payloads to a bounded queue; one background writer
goroutine drains the queue and owns the file handle, opening it lazily when a
burst begins and releasing it once the queue drains. Backpressure bounds how
much unwritten data can accumulate in memory.

Core Pipeline (pkg/writer):
  - writer: Single-consumer append pipeline with completion tracking

Queueing (pkg/queue):
  - queue: Bounded FIFO queue with blocking, context-aware and
    non-blocking variants, and graceful vs. abortive close

Observability (pkg/metrics):
  - metrics: Prometheus instrumentation for writers

Example usage:

	import "github.com/vnykmshr/appendflow/pkg/writer"

	w, _ := writer.NewWriter("events.log")
	defer w.Close() // drains queued payloads, then releases the file

	w.Append([]byte("payload\n"))

	if err := w.Close(); err != nil {
		// the pipeline faulted; err is the terminal outcome
	}
*/
package appendflow
