/*
Package writer provides concurrent append-only file writing for Go applications.

FileWriter funnels payloads from any number of producer goroutines through a
bounded queue into a single background loop that owns the file handle. The
destination is opened on demand when data arrives and released again once the
queue drains, so an idle writer holds no file handle.

# Quick Start

	w, err := writer.NewWriter("events.log")
	if err != nil {
		log.Fatal(err)
	}
	defer w.Close()

	w.Append([]byte("first line\n"))
	w.Append([]byte("second line\n"))

# Configuration

Configure queue capacity, buffering, and the file handle policy:

	config := writer.DefaultConfig("events.log")
	config.QueueCapacity = 4096       // Producers block past this depth
	config.BufferSize = 64 * 1024     // 64KB write buffer
	config.KeepOpen = true            // Keep the handle across idle periods
	config.Exclusive = true           // Take an advisory lock on the file

	w, err := writer.NewWriterWithConfig(config)

# Backpressure

Append blocks while the queue is at capacity; TryAppend fails fast instead:

	if err := w.TryAppend(payload); errors.Is(err, errors.ErrQueueFull) {
		// shed load or retry later
	}

AppendContext bounds the wait with a context:

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := w.AppendContext(ctx, payload)

# Completion

Complete stops intake and lets queued payloads drain; Fault stops intake and
discards them. Either way the writer resolves exactly one terminal outcome:

	w.Complete()
	if err := w.Wait(context.Background()); err != nil {
		log.Printf("writer failed: %v", err)
	}

Close is Complete plus Wait in one call and is safe to invoke from multiple
goroutines. Abort discards queued payloads and releases the destination
immediately.

# Flushing

Flush blocks until everything accepted before the call reaches the file:

	w.Append(payload)
	w.Flush(context.Background())

A cron expression in Config.FlushSchedule adds periodic background flushes:

	config.FlushSchedule = "@every 30s"

# Monitoring

Wire a metrics registry and callbacks to observe the writer:

	config.Metrics = metrics.DefaultRegistry
	config.OnError = func(err error) { log.Printf("write: %v", err) }
	config.OnFlush = func(n int, d time.Duration) { log.Printf("flushed %d bytes", n) }

Stats returns counters for appends, writes, flushes, and handle churn.
*/
package writer
