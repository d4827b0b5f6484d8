package writer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/vnykmshr/appendflow/internal/testutil"
	aferrors "github.com/vnykmshr/appendflow/pkg/common/errors"
)

func TestFileSinkWriteAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")

	snk, err := openFileSink(path, 4096, 0o644, false)
	testutil.AssertNoError(t, err)

	_, err = snk.Write([]byte("hello "))
	testutil.AssertNoError(t, err)
	_, err = snk.Write([]byte("world"))
	testutil.AssertNoError(t, err)

	// buffered data reaches the file on close
	testutil.AssertNoError(t, snk.Close())

	data, err := os.ReadFile(path)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, string(data), "hello world")
}

func TestFileSinkFlushMakesDataVisible(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")

	snk, err := openFileSink(path, 4096, 0o644, false)
	testutil.AssertNoError(t, err)
	defer func() { _ = snk.Close() }()

	_, err = snk.Write([]byte("visible"))
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, snk.Flush())

	data, err := os.ReadFile(path)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, string(data), "visible")
}

func TestFileSinkAppendsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")

	for _, chunk := range []string{"first|", "second|"} {
		snk, err := openFileSink(path, 4096, 0o644, false)
		testutil.AssertNoError(t, err)
		_, err = snk.Write([]byte(chunk))
		testutil.AssertNoError(t, err)
		testutil.AssertNoError(t, snk.Close())
	}

	data, err := os.ReadFile(path)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, string(data), "first|second|")
}

func TestFileSinkExclusiveLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")

	first, err := openFileSink(path, 4096, 0o644, true)
	testutil.AssertNoError(t, err)

	_, err = openFileSink(path, 4096, 0o644, true)
	testutil.AssertError(t, err)

	var opErr *aferrors.OperationError
	testutil.AssertEqual(t, errors.As(err, &opErr), true)

	testutil.AssertNoError(t, first.Close())

	second, err := openFileSink(path, 4096, 0o644, true)
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, second.Close())
}
