/*
Package queue provides a bounded FIFO queue shared by many producers and a
single consumer, with backpressure on the producer side.

Producers use Put (blocking), or TryPut (non-blocking); the consumer uses Get
and TryGet. A full queue makes Put wait until the consumer frees space, so
unwritten data in memory stays bounded. All waits are context-aware.

The queue closes in one of two ways:

  - Close completes the queue: no further Puts are accepted, but Get keeps
    draining the remaining items before reporting errors.ErrClosed.
  - CloseWith aborts the queue: remaining items are discarded and every
    waiter, producer or consumer, is released with the given cause.

Both forms are idempotent and the first close wins.

Example:

	q := queue.New[[]byte](128)

	go func() {
		for {
			item, err := q.Get(context.Background())
			if err != nil {
				return // closed and drained
			}
			process(item)
		}
	}()

	q.Put(ctx, []byte("payload"))
	q.Close()
*/
package queue
