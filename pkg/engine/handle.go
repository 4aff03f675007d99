package engine

import (
	"context"
	"sync"
)

// Handle tracks one launched stage goroutine.
type Handle struct {
	stage  string
	done   chan struct{}
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

func newHandle(stage string, cancel context.CancelFunc) *Handle {
	return &Handle{stage: stage, done: make(chan struct{}), cancel: cancel}
}

// Stage names the stage the goroutine started with.
func (h *Handle) Stage() string { return h.stage }

// Done is closed when the stage goroutine has returned.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the stage goroutine returns or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel cancels the context the stage's provider calls run with. A
// cancelled stage fails its task.
func (h *Handle) Cancel() { h.cancel() }

// Err returns the failure that moved the task to error, if any. It is only
// meaningful after Done is closed.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *Handle) finish(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
	h.cancel()
	close(h.done)
}
