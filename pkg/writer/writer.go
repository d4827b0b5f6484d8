package writer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	gfcontext "github.com/vnykmshr/appendflow/pkg/common/context"
	aferrors "github.com/vnykmshr/appendflow/pkg/common/errors"
	"github.com/vnykmshr/appendflow/pkg/queue"
)

// State describes what the writer loop is doing.
type State int32

const (
	// StateIdle means the queue is drained and the loop is waiting for work.
	// The destination is released unless Config.KeepOpen holds it.
	StateIdle State = iota

	// StateDraining means the loop is consuming queued payloads.
	StateDraining

	// StateClosed means the writer completed and released all resources.
	StateClosed

	// StateFaulted means the writer stopped on an unrecoverable error.
	StateFaulted
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// FileWriter appends payloads from many concurrent producers to one
// destination file. A single background loop owns the file handle; producers
// only ever touch the queue.
type FileWriter interface {
	// Append enqueues a payload, blocking while the queue is at capacity.
	// The writer takes ownership of the slice; callers must not modify it
	// after submission. Returns ErrNilPayload for a nil payload and an
	// ErrClosed-derived error once the writer is completed or faulted.
	Append(payload []byte) error

	// AppendContext is Append with context support for cancellation of the
	// backpressure wait.
	AppendContext(ctx context.Context, payload []byte) error

	// TryAppend enqueues a payload without blocking. Returns ErrQueueFull
	// when the queue is at capacity.
	TryAppend(payload []byte) error

	// Flush blocks until every payload accepted before the call has been
	// written to the destination.
	Flush(ctx context.Context) error

	// Complete stops accepting payloads; everything already queued still
	// drains. The completion outcome resolves once the drain finishes.
	Complete()

	// Fault stops accepting payloads and discards everything still queued.
	// The completion outcome resolves to cause once any in-flight write
	// finishes.
	Fault(cause error)

	// Done returns a channel closed once the writer reaches its terminal
	// outcome.
	Done() <-chan struct{}

	// Err returns the terminal outcome: nil while the writer is running or
	// after clean completion, otherwise the triggering error.
	Err() error

	// Wait blocks until the terminal outcome or the context ends.
	Wait(ctx context.Context) error

	// Close shuts down gracefully: Complete, then wait for the outcome.
	// Safe to call multiple times and from multiple goroutines.
	Close() error

	// Abort shuts down immediately: queued payloads are discarded and the
	// destination is released as fast as possible. Safe to call multiple
	// times; returns nil when the writer stopped by abort or completed.
	Abort() error

	// State returns the writer loop's current state.
	State() State

	// Stats returns statistics about the writer's activity.
	Stats() Stats
}

// Stats holds statistics about writer activity.
type Stats struct {
	// Appends is the total number of payloads accepted.
	Appends int64

	// BytesAccepted is the total payload bytes accepted.
	BytesAccepted int64

	// WriteCount is the total number of write operations on the destination.
	WriteCount int64

	// BytesWritten is the total bytes handed to the destination.
	BytesWritten int64

	// FlushCount is the total number of buffer flushes.
	FlushCount int64

	// SinkOpens is the number of times the destination was opened.
	SinkOpens int64

	// SinkCloses is the number of times the destination was released.
	SinkCloses int64

	// ErrorCount is the total number of errors encountered.
	ErrorCount int64

	// TotalWriteTime is the total time spent in destination writes.
	TotalWriteTime time.Duration

	// AverageWriteTime is the average time per destination write.
	AverageWriteTime time.Duration

	// LastWriteTime is the timestamp of the last destination write.
	LastWriteTime time.Time

	// Queue holds the underlying queue's statistics.
	Queue queue.Stats
}

// record is a unit of work for the writer loop: either a payload or a flush
// barrier carrying its response channel.
type record struct {
	data  []byte
	flush chan error
}

// fileWriter implements FileWriter.
type fileWriter struct {
	config Config
	queue  queue.Queue[record]
	done   *completion

	loopCtx    context.Context
	loopCancel context.CancelFunc
	wg         sync.WaitGroup

	state atomic.Int32

	cron *cron.Cron
	inst *instruments

	// pending counts bytes written to the sink since the last flush,
	// reported through OnFlush.
	pending atomic.Int64

	stats   Stats
	statsMu sync.RWMutex
}

// NewWriter creates a FileWriter for the given destination path with default
// configuration.
func NewWriter(path string) (FileWriter, error) {
	return NewWriterWithConfig(DefaultConfig(path))
}

// NewWriterWithConfig creates a FileWriter with the specified configuration.
func NewWriterWithConfig(config Config) (FileWriter, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &fileWriter{
		config:     config,
		queue:      queue.New[record](config.QueueCapacity),
		done:       newCompletion(),
		loopCtx:    ctx,
		loopCancel: cancel,
	}
	w.state.Store(int32(StateIdle))

	if config.Metrics != nil {
		w.inst = newInstruments(config.Metrics, config.Name)
		w.inst.capacity.Set(float64(config.QueueCapacity))
	}

	if config.FlushSchedule != "" {
		w.cron = cron.New()
		if _, err := w.cron.AddFunc(config.FlushSchedule, w.scheduledFlush); err != nil {
			cancel()
			return nil, aferrors.NewValidationError("writer", "FlushSchedule", config.FlushSchedule, "invalid cron expression").
				WithHint(err.Error())
		}
		w.cron.Start()
	}

	w.wg.Add(1)
	go w.writerLoop()

	return w, nil
}

// Append implements FileWriter.Append.
func (w *fileWriter) Append(payload []byte) error {
	return w.AppendContext(context.Background(), payload)
}

// AppendContext implements FileWriter.AppendContext.
func (w *fileWriter) AppendContext(ctx context.Context, payload []byte) error {
	if payload == nil {
		return aferrors.ErrNilPayload
	}

	w.noteBackpressure()

	if err := w.queue.Put(ctx, record{data: payload}); err != nil {
		return ingestErr(err)
	}

	w.recordAccept(len(payload))
	return nil
}

// TryAppend implements FileWriter.TryAppend.
func (w *fileWriter) TryAppend(payload []byte) error {
	if payload == nil {
		return aferrors.ErrNilPayload
	}

	if err := w.queue.TryPut(record{data: payload}); err != nil {
		if errors.Is(err, aferrors.ErrQueueFull) {
			w.noteBackpressure()
		}
		return ingestErr(err)
	}

	w.recordAccept(len(payload))
	return nil
}

// Flush implements FileWriter.Flush.
func (w *fileWriter) Flush(ctx context.Context) error {
	rec := record{flush: make(chan error, 1)}

	if err := w.queue.Put(ctx, rec); err != nil {
		return ingestErr(err)
	}

	select {
	case err := <-rec.flush:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-w.done.channel():
		return w.done.outcome()
	}
}

// Complete implements FileWriter.Complete.
func (w *fileWriter) Complete() {
	_ = w.queue.Close()
}

// Fault implements FileWriter.Fault.
func (w *fileWriter) Fault(cause error) {
	if cause == nil {
		cause = aferrors.ErrAborted
	}
	_ = w.queue.CloseWith(cause)
}

// Done implements FileWriter.Done.
func (w *fileWriter) Done() <-chan struct{} {
	return w.done.channel()
}

// Err implements FileWriter.Err.
func (w *fileWriter) Err() error {
	return w.done.outcome()
}

// Wait implements FileWriter.Wait.
func (w *fileWriter) Wait(ctx context.Context) error {
	return w.done.wait(ctx)
}

// Close implements FileWriter.Close.
func (w *fileWriter) Close() error {
	_ = w.queue.Close()
	err := w.done.wait(context.Background())
	w.wg.Wait()
	return err
}

// Abort implements FileWriter.Abort.
func (w *fileWriter) Abort() error {
	_ = w.queue.CloseWith(aferrors.ErrAborted)
	w.loopCancel()

	err := w.done.wait(context.Background())
	w.wg.Wait()

	if errors.Is(err, aferrors.ErrAborted) {
		return nil
	}
	return err
}

// State implements FileWriter.State.
func (w *fileWriter) State() State {
	return State(w.state.Load())
}

// Stats implements FileWriter.Stats.
func (w *fileWriter) Stats() Stats {
	w.statsMu.RLock()
	stats := w.stats
	w.statsMu.RUnlock()

	if stats.WriteCount > 0 {
		stats.AverageWriteTime = time.Duration(int64(stats.TotalWriteTime) / stats.WriteCount)
	}
	stats.Queue = w.queue.Stats()

	return stats
}

// writerLoop is the single consumer. It alone references the sink, so no lock
// guards the file handle: exclusivity is structural.
//
//nolint:gocyclo
func (w *fileWriter) writerLoop() {
	defer w.wg.Done()
	defer w.stopCron()
	defer w.loopCancel()

	var snk Sink

	// single-slot write pipeline, used when Config.Pipelined is set
	var inflight chan error
	issue := func(data []byte) {
		ch := make(chan error, 1)
		s := snk
		go func() { ch <- w.writeAndRecord(s, data) }()
		inflight = ch
	}
	awaitInflight := func() error {
		if inflight == nil {
			return nil
		}
		err := <-inflight
		inflight = nil
		return err
	}

	closeSink := func() error {
		if snk == nil {
			return nil
		}
		err := snk.Close()
		snk = nil
		w.recordSinkClose()
		return err
	}

	fail := func(cause error) {
		_ = awaitInflight()
		_ = closeSink()
		// CloseWith no-ops when a clean Close already won; anything still
		// queued is abandoned here, so count it either way.
		_ = w.queue.CloseWith(cause)
		w.queue.DiscardRemaining()
		w.state.Store(int32(StateFaulted))
		if w.inst != nil {
			w.inst.faults.Inc()
			w.noteDiscards()
		}
		if w.config.OnError != nil {
			w.config.OnError(cause)
		}
		w.done.resolve(cause)
	}

	abort := func() {
		_ = awaitInflight()
		_ = closeSink()
		w.queue.DiscardRemaining()
		if w.queue.Stats().Discarded > 0 {
			w.state.Store(int32(StateFaulted))
		} else {
			w.state.Store(int32(StateClosed))
		}
		if w.inst != nil {
			w.noteDiscards()
		}
		w.done.resolve(aferrors.ErrAborted)
	}

	handle := func(rec record) error {
		if rec.flush != nil {
			err := awaitInflight()
			if err == nil && snk != nil {
				err = w.flushSink(snk)
			}
			rec.flush <- err
			return err
		}

		if snk == nil {
			opened, err := w.openSink()
			if err != nil {
				return err
			}
			snk = opened
		}

		if w.config.Pipelined {
			if err := awaitInflight(); err != nil {
				return err
			}
			issue(rec.data)
			return nil
		}
		return w.writeAndRecord(snk, rec.data)
	}

	for {
		// An abort can land after a clean Close has already completed the
		// queue, in which case Get would keep delivering the leftovers. The
		// cancellation decides: drop and count them instead of writing.
		if gfcontext.IsCanceled(w.loopCtx) {
			abort()
			return
		}

		rec, err := w.queue.Get(w.loopCtx)
		if err != nil {
			switch {
			case errors.Is(err, aferrors.ErrClosed) && !errors.Is(err, aferrors.ErrAborted):
				// completed and fully drained
				if ferr := awaitInflight(); ferr != nil {
					fail(ferr)
					return
				}
				if cerr := closeSink(); cerr != nil {
					fail(aferrors.NewOperationError("writer", "close", cerr))
					return
				}
				w.state.Store(int32(StateClosed))
				w.done.resolve(nil)

			case errors.Is(err, aferrors.ErrAborted), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				abort()

			default:
				// faulted by a caller
				fail(err)
			}
			return
		}

		if err := handle(rec); err != nil {
			fail(err)
			return
		}
		w.noteDepth()

		// burst: keep consuming without waiting
		for !gfcontext.IsCanceled(w.loopCtx) {
			next, ok, _ := w.queue.TryGet()
			if !ok {
				break
			}
			if err := handle(next); err != nil {
				fail(err)
				return
			}
			w.noteDepth()
		}

		// queue observed empty: settle the burst
		if err := awaitInflight(); err != nil {
			fail(err)
			return
		}
		if snk != nil {
			if err := w.flushSink(snk); err != nil {
				fail(err)
				return
			}
			if !w.config.KeepOpen {
				if err := closeSink(); err != nil {
					fail(aferrors.NewOperationError("writer", "close", err))
					return
				}
			}
			w.state.Store(int32(StateIdle))
		}
	}
}

// openSink opens the destination for a burst.
func (w *fileWriter) openSink() (Sink, error) {
	var snk Sink
	var err error

	if w.config.OpenSink != nil {
		snk, err = w.config.OpenSink()
	} else {
		snk, err = openFileSink(w.config.Path, w.config.BufferSize, w.config.FileMode, w.config.Exclusive)
	}
	if err != nil {
		w.updateStats(func(s *Stats) { s.ErrorCount++ })
		return nil, err
	}

	w.state.Store(int32(StateDraining))
	w.updateStats(func(s *Stats) { s.SinkOpens++ })
	if w.inst != nil {
		w.inst.sinkOpens.Inc()
		w.inst.draining.Set(1)
	}

	return snk, nil
}

// recordSinkClose accounts for a released destination.
func (w *fileWriter) recordSinkClose() {
	w.updateStats(func(s *Stats) { s.SinkCloses++ })
	if w.inst != nil {
		w.inst.sinkCloses.Inc()
		w.inst.draining.Set(0)
	}
}

// writeAndRecord writes one payload and updates accounting. In pipelined mode
// it runs in the in-flight goroutine; the loop awaits it before issuing the
// next write, so at most one runs at a time.
func (w *fileWriter) writeAndRecord(snk Sink, data []byte) error {
	start := time.Now()
	n, err := snk.Write(data)
	duration := time.Since(start)

	w.updateStats(func(s *Stats) {
		s.WriteCount++
		s.BytesWritten += int64(n)
		s.TotalWriteTime += duration
		s.LastWriteTime = time.Now()
		if err != nil {
			s.ErrorCount++
		}
	})
	if w.inst != nil {
		w.inst.appendBytes.Add(float64(n))
		w.inst.writeTime.Observe(duration.Seconds())
	}
	w.pending.Add(int64(n))

	if err != nil {
		return aferrors.NewOperationError("writer", "write", err)
	}
	return nil
}

// flushSink flushes buffered data down to the destination.
func (w *fileWriter) flushSink(snk Sink) error {
	start := time.Now()
	err := snk.Flush()
	duration := time.Since(start)

	w.updateStats(func(s *Stats) {
		s.FlushCount++
		if err != nil {
			s.ErrorCount++
		}
	})
	if w.inst != nil {
		w.inst.flushes.Inc()
	}

	flushed := w.pending.Swap(0)
	if w.config.OnFlush != nil {
		w.config.OnFlush(int(flushed), duration)
	}

	if err != nil {
		return aferrors.NewOperationError("writer", "flush", err)
	}
	return nil
}

// scheduledFlush enqueues a best-effort flush barrier from the cron schedule.
func (w *fileWriter) scheduledFlush() {
	rec := record{flush: make(chan error, 1)}
	_ = w.queue.TryPut(rec)
}

// stopCron stops the flush schedule, if configured.
func (w *fileWriter) stopCron() {
	if w.cron != nil {
		w.cron.Stop()
	}
}

// recordAccept accounts for an accepted payload.
func (w *fileWriter) recordAccept(size int) {
	w.updateStats(func(s *Stats) {
		s.Appends++
		s.BytesAccepted += int64(size)
	})
	if w.inst != nil {
		w.inst.appends.Inc()
		w.inst.depth.Set(float64(w.queue.Len()))
	}
}

// noteBackpressure reports an append that found the queue at capacity.
func (w *fileWriter) noteBackpressure() {
	if w.config.OnBackpressure == nil && w.inst == nil {
		return
	}
	if c := w.queue.Cap(); c > 0 && w.queue.Len() >= c {
		if w.config.OnBackpressure != nil {
			w.config.OnBackpressure()
		}
		if w.inst != nil {
			w.inst.backpressure.Inc()
		}
	}
}

// noteDiscards reports payloads dropped by an abortive close. Called once per
// writer, from the loop's terminal transition.
func (w *fileWriter) noteDiscards() {
	if d := w.queue.Stats().Discarded; d > 0 {
		w.inst.discarded.Add(float64(d))
	}
	w.inst.depth.Set(0)
}

// noteDepth refreshes the queue depth gauge from the consumer side.
func (w *fileWriter) noteDepth() {
	if w.inst != nil {
		w.inst.depth.Set(float64(w.queue.Len()))
	}
}

// updateStats safely updates statistics.
func (w *fileWriter) updateStats(updater func(*Stats)) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	updater(&w.stats)
}

// ingestErr maps a queue error to the ingestion contract: terminal causes are
// surfaced through ErrClosed so rejection after completion or fault is
// explicit, while backpressure and context errors pass through unchanged.
func ingestErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, aferrors.ErrClosed) || errors.Is(err, aferrors.ErrQueueFull) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", aferrors.ErrClosed, err)
}
