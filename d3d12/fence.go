package d3d12

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/handle"
)

// Infinite makes WaitOnCPU wait without a deadline.
const Infinite time.Duration = -1

var fenceHandleCounter atomic.Uint64

// nextFenceHandleName returns Local\D3D12FenceHandle{N}.
func nextFenceHandleName() string {
	return fmt.Sprintf(`Local\D3D12FenceHandle%d`, fenceHandleCounter.Add(1)-1)
}

// Fence is a 64-bit timeline fence. Values signaled on one queue are
// monotone in submission order.
type Fence struct {
	dev    *Device
	native FenceDriver
	flags  FenceFlags

	mu     sync.Mutex // serializes CPU waits and export
	event  EventDriver
	shared *handle.Handle
	closed bool
}

// CreateFence creates a timeline fence starting at initial. A shared fence
// can be exported with SharedHandle.
func (d *Device) CreateFence(initial uint64, shared bool) (*Fence, error) {
	flags := FenceFlagNone
	if shared {
		flags |= FenceFlagShared
	}
	native, err := d.native.CreateFence(initial, flags)
	if err != nil {
		return nil, fmt.Errorf("d3d12: create fence: %w", err)
	}
	return &Fence{dev: d, native: native, flags: flags}, nil
}

// Native returns the driver-level fence.
func (f *Fence) Native() FenceDriver { return f.native }

// Shareable reports whether the fence was created with the shared flag.
func (f *Fence) Shareable() bool { return f.flags&FenceFlagShared != 0 }

// CompletedValue returns the last value the fence reached.
func (f *Fence) CompletedValue() uint64 { return f.native.CompletedValue() }

// Signal sets the fence to value from the CPU.
func (f *Fence) Signal(value uint64) error {
	if err := f.native.Signal(value); err != nil {
		return fmt.Errorf("d3d12: fence signal %d: %w", value, err)
	}
	return nil
}

// SignalOnQueue enqueues a signal of value on q.
func (f *Fence) SignalOnQueue(q *Queue, value uint64) error {
	return q.Signal(f, value)
}

// WaitOnCPU blocks until the fence reaches value or timeout elapses. It
// returns false on timeout; a timeout of zero polls and Infinite never
// times out. The completion event is created on first use.
func (f *Fence) WaitOnCPU(value uint64, timeout time.Duration) (bool, error) {
	if f.native.CompletedValue() >= value {
		return true, nil
	}
	if timeout == 0 {
		return false, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false, gpuinterop.ErrClosed
	}
	if f.event == nil {
		e, err := f.dev.native.CreateEvent()
		if err != nil {
			return false, fmt.Errorf("d3d12: create fence event: %w", err)
		}
		f.event = e
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		if err := f.native.SetEventOnCompletion(value, f.event); err != nil {
			return false, fmt.Errorf("d3d12: set event on completion %d: %w", value, err)
		}
		wait := Infinite
		if timeout > 0 {
			wait = time.Until(deadline)
			if wait <= 0 {
				return f.native.CompletedValue() >= value, nil
			}
		}
		ok, err := f.event.Wait(wait)
		if err != nil {
			return false, fmt.Errorf("d3d12: fence wait %d: %w", value, err)
		}
		// A set event can be left over from an earlier timed-out wait.
		if f.native.CompletedValue() >= value {
			return true, nil
		}
		if !ok {
			return false, nil
		}
	}
}

// SharedHandle exports the fence the same way Resource.SharedHandle does,
// with auto-generated names of the form Local\D3D12FenceHandle{N}.
func (f *Fence) SharedHandle(name string) (*handle.Handle, error) {
	if !f.Shareable() {
		return nil, gpuinterop.ErrNotShareable
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, gpuinterop.ErrClosed
	}
	if f.shared == nil {
		if name == "" {
			name = nextFenceHandleName()
		}
		h, err := f.native.CreateSharedHandle(name)
		if err != nil {
			return nil, fmt.Errorf("d3d12: export fence %q: %w: %w", name, gpuinterop.ErrHandleExportFailed, err)
		}
		gpuinterop.Logger().Debug("d3d12: fence exported", "name", name, "handle", h)
		f.shared = h
	}
	return f.shared.Duplicate()
}

// Close releases the event, the cached handle and the fence.
func (f *Fence) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	var errs []error
	if f.event != nil {
		errs = append(errs, f.event.Close())
		f.event = nil
	}
	if f.shared != nil {
		errs = append(errs, f.shared.Close())
		f.shared = nil
	}
	errs = append(errs, f.native.Release())
	return errors.Join(errs...)
}
