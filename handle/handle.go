// Package handle wraps OS handles (Windows NT handles, POSIX file
// descriptors) with exclusive, move-only ownership.
//
// A *Handle has exactly one owner. Ownership moves with Take or Release;
// the owner closes it with Close. A handle that becomes unreachable while
// still owning is closed by a runtime cleanup, so handles are never leaked,
// but relying on that is a bug: close explicitly once the compute side has
// imported the object.
package handle

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/gogpu/gpuinterop"
)

// Kind tags the platform type of a handle.
type Kind uint8

const (
	// KindNone is an empty handle.
	KindNone Kind = iota

	// KindNT is a Windows kernel object handle (64-bit opaque).
	KindNT

	// KindFD is a POSIX file descriptor.
	KindFD
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNT:
		return "nt"
	case KindFD:
		return "fd"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Handle is an owned OS handle. The zero value is an empty handle.
type Handle struct {
	mu      sync.Mutex
	kind    Kind
	value   uintptr
	cleanup runtime.Cleanup
}

// raw is the state captured by the runtime cleanup. It must not refer to
// the Handle itself.
type raw struct {
	kind  Kind
	value uintptr
}

func closeRaw(r raw) {
	if err := closeOS(r.kind, r.value); err != nil {
		gpuinterop.Logger().Warn("handle: cleanup close failed",
			"kind", r.kind, "value", r.value, "error", err)
	}
}

func newHandle(kind Kind, value uintptr) *Handle {
	h := &Handle{kind: kind, value: value}
	if kind != KindNone {
		h.cleanup = runtime.AddCleanup(h, closeRaw, raw{kind: kind, value: value})
	}
	return h
}

// FromNT takes ownership of a Windows NT handle.
func FromNT(v uintptr) *Handle {
	if v == 0 {
		return &Handle{}
	}
	return newHandle(KindNT, v)
}

// FromFD takes ownership of a POSIX file descriptor.
func FromFD(fd int) *Handle {
	if fd < 0 {
		return &Handle{}
	}
	return newHandle(KindFD, uintptr(fd))
}

// Kind returns the platform tag, KindNone once released or closed.
func (h *Handle) Kind() Kind {
	if h == nil {
		return KindNone
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.kind
}

// Value returns the raw handle value without transferring ownership. The
// value is only valid while h owns it.
func (h *Handle) Value() uintptr {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.value
}

// FD returns the file descriptor, or -1 if h is not a file descriptor.
func (h *Handle) FD() int {
	if h == nil {
		return -1
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.kind != KindFD {
		return -1
	}
	return int(h.value)
}

// Valid reports whether h currently owns a handle.
func (h *Handle) Valid() bool {
	return h.Kind() != KindNone
}

// Release gives up ownership and returns the raw value. After Release, h
// is empty and closing it is a no-op; the caller owns the value.
func (h *Handle) Release() (Kind, uintptr) {
	if h == nil {
		return KindNone, 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	k, v := h.kind, h.value
	h.reset()
	return k, v
}

// Take moves ownership into a new Handle and leaves h empty.
func (h *Handle) Take() *Handle {
	k, v := h.Release()
	if k == KindNone {
		return &Handle{}
	}
	return newHandle(k, v)
}

// Duplicate returns an independently closeable handle referring to the same
// underlying OS object.
func (h *Handle) Duplicate() (*Handle, error) {
	if h == nil {
		return nil, fmt.Errorf("handle: duplicate nil handle: %w", gpuinterop.ErrHandleExportFailed)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.kind == KindNone {
		return nil, fmt.Errorf("handle: duplicate empty handle: %w", gpuinterop.ErrHandleExportFailed)
	}
	v, err := duplicateOS(h.kind, h.value)
	if err != nil {
		return nil, fmt.Errorf("handle: duplicate %s: %w: %w", h.kind, gpuinterop.ErrHandleExportFailed, err)
	}
	return newHandle(h.kind, v), nil
}

// Close releases the OS handle. Closing an empty handle is a no-op.
func (h *Handle) Close() error {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.kind == KindNone {
		return nil
	}
	k, v := h.kind, h.value
	h.reset()
	if err := closeOS(k, v); err != nil {
		return fmt.Errorf("handle: close %s: %w", k, err)
	}
	return nil
}

// reset clears ownership and cancels the runtime cleanup. h.mu must be held.
func (h *Handle) reset() {
	if h.kind != KindNone {
		h.cleanup.Stop()
	}
	h.kind = KindNone
	h.value = 0
	h.cleanup = runtime.Cleanup{}
}

func (h *Handle) String() string {
	k := h.Kind()
	if k == KindNone {
		return "handle(none)"
	}
	return fmt.Sprintf("handle(%s:%#x)", k, h.Value())
}
