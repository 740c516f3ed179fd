// Package eventloop serializes session work onto a single goroutine.
//
// Every mutation of the editing surface and the page synchronization state
// runs as a task on the loop. Slow work (decoding, rasterizing) runs on its
// own goroutine via Go and posts its continuation back to the loop.
package eventloop

import (
	"context"
	"sync"

	stamper "github.com/jungcome7/pdf-stamper"
)

// Loop runs posted tasks one at a time in submission order.
type Loop struct {
	tasks   chan func()
	stopCh  chan struct{}
	stopped chan struct{}

	mu      sync.Mutex
	running bool
	closed  bool
	wg      sync.WaitGroup
}

// New creates a loop whose queue holds up to buffer pending tasks before
// Post blocks.
func New(buffer int) *Loop {
	if buffer < 0 {
		buffer = 0
	}
	return &Loop{
		tasks:   make(chan func(), buffer),
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Run processes tasks until Close is called or ctx is cancelled. It blocks.
// Tasks still queued when the loop stops are dropped.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running || l.closed {
		l.mu.Unlock()
		return stamper.ErrClosed
	}
	l.running = true
	l.mu.Unlock()
	defer close(l.stopped)

	for {
		select {
		case <-ctx.Done():
			l.Close()
			return ctx.Err()
		case <-l.stopCh:
			return nil
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Post queues fn. It returns ErrClosed once the loop is closed.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.stopCh:
		return stamper.ErrClosed
	default:
	}
	select {
	case l.tasks <- fn:
		return nil
	case <-l.stopCh:
		return stamper.ErrClosed
	}
}

// Do runs fn on the loop and waits for it to finish. It must not be called
// from a task, which would deadlock.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := l.Post(func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-l.stopCh:
		// The task may have been dequeued just before the stop.
		select {
		case <-done:
			return nil
		default:
			return stamper.ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Go runs work on a new goroutine. A non-nil function returned by work is
// posted back to the loop. Continuations are dropped after Close.
func (l *Loop) Go(work func() func()) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if cont := work(); cont != nil {
			_ = l.Post(cont)
		}
	}()
}

// Close stops the loop. It is safe to call more than once and from a task.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	close(l.stopCh)
	if !l.running {
		close(l.stopped)
	}
}

// Wait blocks until Run has returned and all Go workers have finished. It
// must not be called from a task.
func (l *Loop) Wait() {
	<-l.stopped
	l.wg.Wait()
}

// Done is closed when the loop has been closed.
func (l *Loop) Done() <-chan struct{} {
	return l.stopCh
}
