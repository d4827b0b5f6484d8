package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vnykmshr/appendflow/internal/testutil"
	aferrors "github.com/vnykmshr/appendflow/pkg/common/errors"
	"github.com/vnykmshr/appendflow/pkg/metrics"
	"github.com/vnykmshr/appendflow/pkg/writer"
)

// TestConcurrentProducersToFile drives many producers through one writer into
// a real file and verifies every payload lands intact and in per-producer order.
func TestConcurrentProducersToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")

	config := writer.DefaultConfig(path)
	config.QueueCapacity = 32

	w, err := writer.NewWriterWithConfig(config)
	testutil.AssertNoError(t, err)

	const producers = 8
	const perProducer = 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				line := fmt.Sprintf("%d:%d\n", p, i)
				if err := w.Append([]byte(line)); err != nil {
					t.Errorf("append failed: %v", err)
					return
				}
			}
		}(p)
	}
	wg.Wait()

	testutil.AssertNoError(t, w.Close())

	data, err := os.ReadFile(path)
	testutil.AssertNoError(t, err)

	seen := make([]int, producers)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	testutil.AssertEqual(t, len(lines), producers*perProducer)
	for _, line := range lines {
		parts := strings.SplitN(line, ":", 2)
		p, err := strconv.Atoi(parts[0])
		testutil.AssertNoError(t, err)
		i, err := strconv.Atoi(parts[1])
		testutil.AssertNoError(t, err)
		testutil.AssertEqual(t, i, seen[p])
		seen[p]++
	}
}

// TestHandleReleasedBetweenBursts verifies the file handle is dropped once the
// queue drains and that a later burst reopens the same file and appends to it.
func TestHandleReleasedBetweenBursts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bursty.log")

	w, err := writer.NewWriter(path)
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, w.Append([]byte("burst-one\n")))
	testutil.Eventually(t, func() bool {
		return w.State() == writer.StateIdle && w.Stats().SinkCloses >= 1
	}, testutil.TestTimeout, time.Millisecond)

	// the advisory lock is free while the writer idles
	probe, err := writer.NewWriter(path)
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, probe.Append([]byte("probe\n")))
	testutil.AssertNoError(t, probe.Close())

	testutil.AssertNoError(t, w.Append([]byte("burst-two\n")))
	testutil.AssertNoError(t, w.Close())

	data, err := os.ReadFile(path)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, string(data), "burst-one\nprobe\nburst-two\n")
	testutil.AssertEqual(t, w.Stats().SinkOpens >= 2, true)
}

// TestExclusiveLockAcrossWriters verifies a KeepOpen writer holds the advisory
// lock so a second exclusive writer faults instead of interleaving appends.
func TestExclusiveLockAcrossWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.log")

	config := writer.DefaultConfig(path)
	config.KeepOpen = true

	holder, err := writer.NewWriterWithConfig(config)
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, holder.Append([]byte("held\n")))
	testutil.AssertNoError(t, holder.Flush(context.Background()))

	contender, err := writer.NewWriterWithConfig(writer.DefaultConfig(path))
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, contender.Append([]byte("denied\n")))

	err = contender.Wait(context.Background())
	testutil.AssertError(t, err)
	testutil.AssertEqual(t, contender.State(), writer.StateFaulted)

	testutil.AssertNoError(t, holder.Close())
}

// TestGracefulVersusImmediateShutdown compares Close draining the queue with
// Abort discarding it.
func TestGracefulVersusImmediateShutdown(t *testing.T) {
	dir := t.TempDir()

	graceful, err := writer.NewWriter(filepath.Join(dir, "graceful.log"))
	testutil.AssertNoError(t, err)
	for i := 0; i < 100; i++ {
		testutil.AssertNoError(t, graceful.Append([]byte("line\n")))
	}
	testutil.AssertNoError(t, graceful.Close())

	data, err := os.ReadFile(filepath.Join(dir, "graceful.log"))
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")), 100)

	abrupt, err := writer.NewWriter(filepath.Join(dir, "abrupt.log"))
	testutil.AssertNoError(t, err)
	for i := 0; i < 100; i++ {
		testutil.AssertNoError(t, abrupt.Append([]byte("line\n")))
	}
	testutil.AssertNoError(t, abrupt.Abort())
	testutil.AssertEqual(t, errors.Is(abrupt.Err(), aferrors.ErrAborted), true)

	err = abrupt.Append([]byte("late\n"))
	testutil.AssertEqual(t, errors.Is(err, aferrors.ErrClosed), true)
}

// TestInstrumentedWriterEndToEnd exercises a writer wired to a dedicated
// metrics registry against a real file.
func TestInstrumentedWriterEndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metered.log")

	config := writer.DefaultConfig(path)
	config.Name = "integration"
	config.Metrics = metrics.DefaultRegistry
	config.FlushSchedule = "@every 1s"

	w, err := writer.NewWriterWithConfig(config)
	testutil.AssertNoError(t, err)

	for i := 0; i < 50; i++ {
		testutil.AssertNoError(t, w.Append([]byte(fmt.Sprintf("metric line %d\n", i))))
	}
	testutil.AssertNoError(t, w.Flush(context.Background()))
	testutil.AssertNoError(t, w.Close())

	stats := w.Stats()
	testutil.AssertEqual(t, stats.Appends, int64(50))
	testutil.AssertEqual(t, stats.BytesWritten > 0, true)
	testutil.AssertEqual(t, stats.Queue.Puts >= int64(50), true)
}
