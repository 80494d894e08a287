// Package dispatch runs the single foreground loop that owns device and
// operation state. Background goroutines hand work to it with Post.
package dispatch

import (
	"errors"
	"fmt"
	"sync"

	"DevPanel/pkg/logger"
)

// ErrStopped is returned by Call once the loop has been stopped
var ErrStopped = errors.New("dispatch loop stopped")

// Loop executes posted closures one at a time in FIFO order. The queue is
// unbounded so Post never blocks a producer.
//
// Closures running on the loop must not call Call; that deadlocks.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool
	started bool

	done chan struct{}
	wg   sync.WaitGroup
}

func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Start launches the loop goroutine. Calling it twice is a no-op.
func (l *Loop) Start() {
	l.mu.Lock()
	if l.started || l.stopped {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.mu.Unlock()

	l.wg.Add(1)
	go l.run()
}

// Stop runs whatever is already queued, then ends the loop. Posts after
// Stop are dropped.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		l.wg.Wait()
		return
	}
	l.stopped = true
	started := l.started
	l.mu.Unlock()

	close(l.done)
	if started {
		l.wg.Wait()
	}
}

// Post enqueues fn. It reports false when the loop is stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Call runs fn on the loop and waits for it. A panic in fn is returned as
// an error instead of crashing the loop.
func (l *Loop) Call(fn func()) error {
	errCh := make(chan error, 1)
	ok := l.Post(func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("panic on dispatch loop: %v", r)
			}
		}()
		fn()
		errCh <- nil
	})
	if !ok {
		return ErrStopped
	}
	return <-errCh
}

func (l *Loop) run() {
	defer l.wg.Done()
	for {
		batch := l.take()
		for _, fn := range batch {
			l.exec(fn)
		}
		if len(batch) > 0 {
			continue
		}
		select {
		case <-l.wake:
		case <-l.done:
			for _, fn := range l.take() {
				l.exec(fn)
			}
			return
		}
	}
}

func (l *Loop) take() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	batch := l.queue
	l.queue = nil
	return batch
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.LogError("dispatch").Interface("panic", r).Msg("Recovered panic in loop task")
		}
	}()
	fn()
}
