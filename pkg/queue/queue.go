package queue

import (
	"context"
	"sync"
	"time"

	aferrors "github.com/vnykmshr/appendflow/pkg/common/errors"
)

// queue states
const (
	stateOpen = iota
	stateCompleted
	stateAborted
)

// Queue is a bounded FIFO queue safe for concurrent producers and a consumer.
type Queue[T any] interface {
	// Put enqueues a value, waiting for space when the queue is at capacity.
	// It returns the close cause if the queue is closed, or ctx.Err() if the
	// context is canceled while waiting.
	Put(ctx context.Context, value T) error

	// TryPut enqueues a value without waiting. Returns ErrQueueFull when the
	// queue is at capacity and the close cause when it is closed.
	TryPut(value T) error

	// Get dequeues the oldest value, waiting when the queue is empty.
	// After Close, Get keeps returning the remaining items and reports
	// ErrClosed only once the queue is drained. After CloseWith, Get
	// reports the close cause immediately.
	Get(ctx context.Context) (T, error)

	// TryGet dequeues the oldest value without waiting. The bool reports
	// whether a value was dequeued; the error is non-nil only when the
	// queue is closed and has nothing left to deliver.
	TryGet() (T, bool, error)

	// Close completes the queue: no further Puts, remaining items drain.
	Close() error

	// CloseWith aborts the queue with the given cause: no further Puts,
	// remaining items are discarded, all waiters wake with the cause.
	// A nil cause is treated as ErrClosed.
	CloseWith(cause error) error

	// DiscardRemaining drops everything still queued, counting it into
	// Stats.Discarded, and returns the number dropped. Used by a consumer
	// abandoning its drain; unlike CloseWith it also clears a queue whose
	// clean Close has already won.
	DiscardRemaining() int

	// IsClosed returns true once Close or CloseWith has been called.
	IsClosed() bool

	// Err returns nil while the queue is open, ErrClosed after a clean
	// Close, and the abort cause after CloseWith.
	Err() error

	// Len returns the current number of queued values.
	Len() int

	// Cap returns the capacity bound, or 0 for an unbounded queue.
	Cap() int

	// Stats returns statistics about queue activity.
	Stats() Stats
}

// Stats holds statistics about queue activity.
type Stats struct {
	// Puts is the total number of values accepted.
	Puts int64

	// Gets is the total number of values dequeued.
	Gets int64

	// BlockedPuts is the number of Puts that had to wait for space.
	BlockedPuts int64

	// Discarded is the number of queued values dropped by CloseWith.
	Discarded int64

	// Depth is the number of values queued at observation time.
	Depth int

	// Utilization is Depth relative to capacity (0.0 to 1.0, bounded queues only).
	Utilization float64

	// LastPutTime is the timestamp of the last accepted Put.
	LastPutTime time.Time

	// LastGetTime is the timestamp of the last Get.
	LastGetTime time.Time
}

// initialSize is the starting ring size for unbounded queues.
const initialSize = 16

// fifoQueue implements Queue with a ring buffer and two condition variables.
type fifoQueue[T any] struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	buffer   []T
	head     int
	tail     int
	count    int
	capacity int // 0 = unbounded

	state int
	cause error

	stats   Stats
	statsMu sync.RWMutex
}

// New creates a queue bounded to the given capacity.
// A capacity of 0 (or less) creates an unbounded queue.
func New[T any](capacity int) Queue[T] {
	if capacity < 0 {
		capacity = 0
	}

	size := capacity
	if size == 0 {
		size = initialSize
	}

	q := &fifoQueue[T]{
		buffer:   make([]T, size),
		capacity: capacity,
	}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)

	return q
}

// Put implements Queue.Put.
func (q *fifoQueue[T]) Put(ctx context.Context, value T) error {
	// Wake cond waiters when the context is canceled. The callback takes the
	// queue lock so the wakeup cannot slip between a waiter's cancellation
	// check and its Wait.
	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			q.mu.Lock()
			q.notFull.Broadcast()
			q.notEmpty.Broadcast()
			q.mu.Unlock()
		})
		defer stop()
	}

	blocked := false

	q.mu.Lock()
	for {
		if q.state != stateOpen {
			err := q.closeCauseLocked()
			q.mu.Unlock()
			return err
		}
		if err := ctx.Err(); err != nil {
			q.mu.Unlock()
			return err
		}
		if q.capacity == 0 || q.count < q.capacity {
			break
		}
		blocked = true
		q.notFull.Wait()
	}

	q.pushLocked(value)
	q.notEmpty.Signal()
	q.mu.Unlock()

	q.updateStats(func(s *Stats) {
		s.Puts++
		s.LastPutTime = time.Now()
		if blocked {
			s.BlockedPuts++
		}
	})

	return nil
}

// TryPut implements Queue.TryPut.
func (q *fifoQueue[T]) TryPut(value T) error {
	q.mu.Lock()

	if q.state != stateOpen {
		err := q.closeCauseLocked()
		q.mu.Unlock()
		return err
	}
	if q.capacity > 0 && q.count >= q.capacity {
		q.mu.Unlock()
		return aferrors.ErrQueueFull
	}

	q.pushLocked(value)
	q.notEmpty.Signal()
	q.mu.Unlock()

	q.updateStats(func(s *Stats) {
		s.Puts++
		s.LastPutTime = time.Now()
	})

	return nil
}

// Get implements Queue.Get.
func (q *fifoQueue[T]) Get(ctx context.Context) (T, error) {
	var zero T

	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			q.mu.Lock()
			q.notFull.Broadcast()
			q.notEmpty.Broadcast()
			q.mu.Unlock()
		})
		defer stop()
	}

	q.mu.Lock()
	for {
		if q.state == stateAborted {
			err := q.closeCauseLocked()
			q.mu.Unlock()
			return zero, err
		}
		if q.count > 0 {
			break
		}
		if q.state == stateCompleted {
			q.mu.Unlock()
			return zero, aferrors.ErrClosed
		}
		if err := ctx.Err(); err != nil {
			q.mu.Unlock()
			return zero, err
		}
		q.notEmpty.Wait()
	}

	value := q.popLocked()
	q.notFull.Signal()
	q.mu.Unlock()

	q.updateStats(func(s *Stats) {
		s.Gets++
		s.LastGetTime = time.Now()
	})

	return value, nil
}

// TryGet implements Queue.TryGet.
func (q *fifoQueue[T]) TryGet() (T, bool, error) {
	var zero T

	q.mu.Lock()

	if q.state == stateAborted {
		err := q.closeCauseLocked()
		q.mu.Unlock()
		return zero, false, err
	}
	if q.count == 0 {
		if q.state == stateCompleted {
			q.mu.Unlock()
			return zero, false, aferrors.ErrClosed
		}
		q.mu.Unlock()
		return zero, false, nil
	}

	value := q.popLocked()
	q.notFull.Signal()
	q.mu.Unlock()

	q.updateStats(func(s *Stats) {
		s.Gets++
		s.LastGetTime = time.Now()
	})

	return value, true, nil
}

// Close implements Queue.Close.
func (q *fifoQueue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state != stateOpen {
		return nil // first close wins
	}

	q.state = stateCompleted
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()

	return nil
}

// CloseWith implements Queue.CloseWith.
func (q *fifoQueue[T]) CloseWith(cause error) error {
	if cause == nil {
		cause = aferrors.ErrClosed
	}

	q.mu.Lock()

	if q.state != stateOpen {
		q.mu.Unlock()
		return nil
	}

	q.state = stateAborted
	q.cause = cause

	discarded := q.count
	var zero T
	for i := range q.buffer {
		q.buffer[i] = zero
	}
	q.head, q.tail, q.count = 0, 0, 0

	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
	q.mu.Unlock()

	if discarded > 0 {
		q.updateStats(func(s *Stats) {
			s.Discarded += int64(discarded)
		})
	}

	return nil
}

// DiscardRemaining implements Queue.DiscardRemaining.
func (q *fifoQueue[T]) DiscardRemaining() int {
	q.mu.Lock()

	discarded := q.count
	if discarded > 0 {
		var zero T
		for i := range q.buffer {
			q.buffer[i] = zero
		}
		q.head, q.tail, q.count = 0, 0, 0
		q.notFull.Broadcast()
	}
	q.mu.Unlock()

	if discarded > 0 {
		q.updateStats(func(s *Stats) {
			s.Discarded += int64(discarded)
		})
	}

	return discarded
}

// IsClosed implements Queue.IsClosed.
func (q *fifoQueue[T]) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state != stateOpen
}

// Err implements Queue.Err.
func (q *fifoQueue[T]) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state == stateOpen {
		return nil
	}
	return q.closeCauseLocked()
}

// Len implements Queue.Len.
func (q *fifoQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap implements Queue.Cap.
func (q *fifoQueue[T]) Cap() int {
	return q.capacity
}

// Stats implements Queue.Stats.
func (q *fifoQueue[T]) Stats() Stats {
	q.statsMu.RLock()
	stats := q.stats
	q.statsMu.RUnlock()

	q.mu.Lock()
	stats.Depth = q.count
	if q.capacity > 0 {
		stats.Utilization = float64(q.count) / float64(q.capacity)
	}
	q.mu.Unlock()

	return stats
}

// closeCauseLocked returns the terminal error for a closed queue (must hold lock).
func (q *fifoQueue[T]) closeCauseLocked() error {
	if q.state == stateAborted {
		return q.cause
	}
	return aferrors.ErrClosed
}

// pushLocked appends a value to the ring (must hold lock).
func (q *fifoQueue[T]) pushLocked(value T) {
	if q.count == len(q.buffer) {
		// unbounded queue at ring size: grow
		grown := make([]T, len(q.buffer)*2)
		for i := 0; i < q.count; i++ {
			grown[i] = q.buffer[(q.head+i)%len(q.buffer)]
		}
		q.buffer = grown
		q.head = 0
		q.tail = q.count
	}

	q.buffer[q.tail] = value
	q.tail = (q.tail + 1) % len(q.buffer)
	q.count++
}

// popLocked removes the oldest value from the ring (must hold lock).
func (q *fifoQueue[T]) popLocked() T {
	value := q.buffer[q.head]
	var zero T
	q.buffer[q.head] = zero // clear reference
	q.head = (q.head + 1) % len(q.buffer)
	q.count--
	return value
}

// updateStats safely updates statistics.
func (q *fifoQueue[T]) updateStats(updater func(*Stats)) {
	q.statsMu.Lock()
	defer q.statsMu.Unlock()
	updater(&q.stats)
}
