package writer

import (
	"context"
	"sync"
)

// completion is the single-assignment terminal outcome of a writer. It
// resolves exactly once, to nil on clean completion or to the triggering
// error, and every observer sees the same result.
type completion struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newCompletion() *completion {
	return &completion{done: make(chan struct{})}
}

// resolve sets the outcome. Later calls are no-ops.
func (c *completion) resolve(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

// channel returns a channel closed once the outcome is set.
func (c *completion) channel() <-chan struct{} {
	return c.done
}

// outcome returns the terminal error, or nil while unresolved.
func (c *completion) outcome() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// wait blocks until the outcome is set or the context ends.
func (c *completion) wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
