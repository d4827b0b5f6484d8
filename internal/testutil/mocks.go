package testutil

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// MockSink is a test destination that can simulate various write conditions
// including delays, errors, and open/flush/close accounting. It satisfies the
// writer package's Sink interface.
type MockSink struct {
	buf         *bytes.Buffer
	mu          sync.Mutex
	writeDelay  time.Duration
	errorOnNth  int
	writeCount  int
	flushCount  int
	closeCount  int
	shouldError bool
	err         error
	flushErr    error
	closeErr    error
	gateEntered chan struct{}
	gateRelease chan struct{}
}

// NewMockSink creates a new MockSink.
func NewMockSink() *MockSink {
	return &MockSink{
		buf: &bytes.Buffer{},
	}
}

// Write implements io.Writer with configurable behavior. Delays and gate
// waits happen outside the mutex so counters stay readable while a write is
// held open.
func (ms *MockSink) Write(p []byte) (int, error) {
	ms.mu.Lock()
	delay := ms.writeDelay
	entered, release := ms.gateEntered, ms.gateRelease
	ms.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if entered != nil {
		select {
		case <-release:
			// gate already opened, pass straight through
		default:
			entered <- struct{}{}
			<-release
		}
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.writeCount++

	if ms.shouldError {
		return 0, ms.err
	}

	if ms.errorOnNth > 0 && ms.writeCount == ms.errorOnNth {
		return 0, errors.New("simulated write error")
	}

	return ms.buf.Write(p)
}

// GateWrites makes each Write announce itself on the entered channel and then
// wait until release is closed. The caller receives from entered to know a
// write is in flight and closes release to let all writes proceed.
func (ms *MockSink) GateWrites() (entered chan struct{}, release chan struct{}) {
	entered = make(chan struct{})
	release = make(chan struct{})

	ms.mu.Lock()
	ms.gateEntered = entered
	ms.gateRelease = release
	ms.mu.Unlock()

	return entered, release
}

// Flush records a flush and returns the configured flush error, if any.
func (ms *MockSink) Flush() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.flushCount++
	return ms.flushErr
}

// Close records a close and returns the configured close error, if any.
func (ms *MockSink) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.closeCount++
	return ms.closeErr
}

// String returns the current buffer contents.
func (ms *MockSink) String() string {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.buf.String()
}

// Bytes returns a copy of the current buffer contents.
func (ms *MockSink) Bytes() []byte {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]byte(nil), ms.buf.Bytes()...)
}

// Len returns the current buffer length.
func (ms *MockSink) Len() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.buf.Len()
}

// WriteCount returns the number of Write calls.
func (ms *MockSink) WriteCount() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.writeCount
}

// FlushCount returns the number of Flush calls.
func (ms *MockSink) FlushCount() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.flushCount
}

// CloseCount returns the number of Close calls.
func (ms *MockSink) CloseCount() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.closeCount
}

// SetWriteDelay configures a delay for each write operation.
func (ms *MockSink) SetWriteDelay(delay time.Duration) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.writeDelay = delay
}

// SetErrorOnNth configures the sink to error on the nth write.
func (ms *MockSink) SetErrorOnNth(n int) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.errorOnNth = n
}

// SetAlwaysError configures the sink to always return the given error from Write.
func (ms *MockSink) SetAlwaysError(err error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.shouldError = true
	ms.err = err
}

// SetFlushError configures the error returned by Flush.
func (ms *MockSink) SetFlushError(err error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.flushErr = err
}

// SetCloseError configures the error returned by Close.
func (ms *MockSink) SetCloseError(err error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.closeErr = err
}

// Reset clears the buffer and resets counters.
func (ms *MockSink) Reset() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.buf.Reset()
	ms.writeCount = 0
	ms.flushCount = 0
	ms.closeCount = 0
	ms.shouldError = false
	ms.errorOnNth = 0
	ms.writeDelay = 0
	ms.err = nil
	ms.flushErr = nil
	ms.closeErr = nil
	ms.gateEntered = nil
	ms.gateRelease = nil
}
