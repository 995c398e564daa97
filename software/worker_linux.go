//go:build linux

package software

import (
	"sync"
	"time"

	"github.com/gogpu/gpuinterop"
)

const defaultSpinInterval = 50 * time.Microsecond

// worker runs submitted functions one at a time in submission order. The
// first error is kept and reported by sync.
type worker struct {
	jobs chan func() error
	quit chan struct{}
	done chan struct{}

	mu     sync.Mutex // guards closed and sends on jobs
	closed bool

	errMu sync.Mutex
	err   error
}

func newWorker() *worker {
	w := &worker{
		jobs: make(chan func() error, 64),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *worker) run() {
	defer close(w.done)
	for job := range w.jobs {
		if err := job(); err != nil {
			w.errMu.Lock()
			if w.err == nil {
				w.err = err
			}
			w.errMu.Unlock()
		}
	}
}

func (w *worker) submit(job func() error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return gpuinterop.ErrClosed
	}
	w.jobs <- job
	return nil
}

// sync blocks until every job submitted before the call has run and returns
// the first job error seen so far.
func (w *worker) sync() error {
	ch := make(chan struct{})
	if err := w.submit(func() error { close(ch); return nil }); err != nil {
		return err
	}
	select {
	case <-ch:
	case <-w.done:
		return gpuinterop.ErrClosed
	}
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}

// close aborts pending waits, drains the queue and stops the goroutine.
func (w *worker) close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return nil
	}
	w.closed = true
	close(w.quit)
	close(w.jobs)
	w.mu.Unlock()
	<-w.done
	return nil
}

// pollUntil spins until cond holds. It gives up when the deadline passes
// (a zero deadline never expires) or stop is closed.
func pollUntil(cond func() bool, interval time.Duration, deadline time.Time, stop <-chan struct{}) bool {
	if cond() {
		return true
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for !cond() {
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return false
		}
		select {
		case <-stop:
			return cond()
		case <-t.C:
		}
	}
	return true
}
