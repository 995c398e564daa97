package interop

import (
	"fmt"
	"sync"

	"github.com/gogpu/gpuinterop/compute"
	"github.com/gogpu/gpuinterop/d3d12"
)

// ExternalSemaphore is a D3D12 fence imported as a compute timeline
// semaphore.
type ExternalSemaphore struct {
	s     *Session
	fence *d3d12.Fence

	mu  sync.Mutex
	sem compute.ExternalSemaphore
}

// ImportSemaphore imports a shareable fence.
func (s *Session) ImportSemaphore(f *d3d12.Fence, opts ...ImportOption) (*ExternalSemaphore, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	o := importConfig(opts)
	h, err := f.SharedHandle(o.name)
	if err != nil {
		return nil, fmt.Errorf("interop: import semaphore: %w", err)
	}
	defer h.Close()

	sem, err := s.cdev.ImportSemaphore(h)
	if err != nil {
		return nil, featureErr(fmt.Errorf("interop: %s: import semaphore: %w", s.API(), err))
	}
	return &ExternalSemaphore{s: s, fence: f, sem: sem}, nil
}

// Fence returns the source fence.
func (e *ExternalSemaphore) Fence() *d3d12.Fence { return e.fence }

func (e *ExternalSemaphore) native() (compute.ExternalSemaphore, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sem == nil {
		return nil, ErrDestroyed
	}
	return e.sem, nil
}

// Signal enqueues a signal of value on stream.
func (e *ExternalSemaphore) Signal(stream compute.Stream, value uint64, opts ...compute.OpOption) error {
	sem, err := e.native()
	if err != nil {
		return err
	}
	if err := sem.Signal(stream, value, opts...); err != nil {
		return featureErr(fmt.Errorf("interop: %s: signal %d: %w", e.s.API(), value, err))
	}
	return nil
}

// Wait enqueues a wait on stream until the fence reaches value.
func (e *ExternalSemaphore) Wait(stream compute.Stream, value uint64, opts ...compute.OpOption) error {
	sem, err := e.native()
	if err != nil {
		return err
	}
	if err := sem.Wait(stream, value, opts...); err != nil {
		return featureErr(fmt.Errorf("interop: %s: wait %d: %w", e.s.API(), value, err))
	}
	return nil
}

// Destroy releases the semaphore. The fence is unaffected.
func (e *ExternalSemaphore) Destroy() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sem == nil {
		return nil
	}
	err := e.sem.Destroy()
	e.sem = nil
	return err
}
