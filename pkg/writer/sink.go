package writer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	aferrors "github.com/vnykmshr/appendflow/pkg/common/errors"
)

// Sink is the destination a writer drains into. It is opened when a burst
// begins and released when the queue is observed empty, so only the writer
// loop ever references one.
type Sink interface {
	io.Writer

	// Flush forces buffered data down to the destination.
	Flush() error

	// Close flushes and releases the destination.
	Close() error
}

// fileSink wraps the destination file with a write buffer and an optional
// advisory lock for the duration of a burst.
type fileSink struct {
	file   *os.File
	buf    *bufio.Writer
	locked bool
}

// openFileSink opens the destination in append mode. With exclusive set, it
// takes a non-blocking flock so no other cooperating writer can hold the file.
func openFileSink(path string, bufferSize int, mode os.FileMode, exclusive bool) (Sink, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, mode)
	if err != nil {
		return nil, aferrors.NewOperationError("writer", "open", err)
	}

	if exclusive {
		if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
			_ = file.Close()
			if errors.Is(err, unix.EWOULDBLOCK) {
				return nil, aferrors.NewOperationError("writer", "open",
					fmt.Errorf("flock %s: %w", path, err)).
					WithContext("destination held by another writer")
			}
			return nil, aferrors.NewOperationError("writer", "open", fmt.Errorf("flock %s: %w", path, err))
		}
	}

	return &fileSink{
		file:   file,
		buf:    bufio.NewWriterSize(file, bufferSize),
		locked: exclusive,
	}, nil
}

// Write implements io.Writer.
func (s *fileSink) Write(p []byte) (int, error) {
	return s.buf.Write(p)
}

// Flush implements Sink.Flush.
func (s *fileSink) Flush() error {
	return s.buf.Flush()
}

// Close implements Sink.Close. The lock is released before the handle so a
// waiting writer can take over as soon as the buffered data is down.
func (s *fileSink) Close() error {
	flushErr := s.buf.Flush()

	if s.locked {
		_ = unix.Flock(int(s.file.Fd()), unix.LOCK_UN)
	}

	closeErr := s.file.Close()

	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
