//go:build linux

package software

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/gogpu/gpuinterop/handle"
)

// sharedMemory is a mapped memfd.
type sharedMemory struct {
	fd   int
	data []byte
}

func newSharedMemory(name string, size uint64) (*sharedMemory, error) {
	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("software: memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("software: ftruncate %d: %w", size, err)
	}
	data, err := mmapFD(fd, size)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return &sharedMemory{fd: fd, data: data}, nil
}

func mmapFD(fd int, size uint64) ([]byte, error) {
	if size == 0 {
		return nil, fmt.Errorf("software: mmap of empty object")
	}
	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("software: mmap %d bytes: %w", size, err)
	}
	return data, nil
}

// mapHandle maps the object behind h. The mapping stays valid after h is
// closed. A size of 0 maps the whole object.
func mapHandle(h *handle.Handle, size uint64) ([]byte, error) {
	fd := h.FD()
	if fd < 0 {
		return nil, fmt.Errorf("software: %s is not a file descriptor", h)
	}
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, fmt.Errorf("software: fstat: %w", err)
	}
	if size == 0 {
		size = uint64(st.Size)
	}
	if size > uint64(st.Size) {
		return nil, fmt.Errorf("software: import of %d bytes from %d-byte object", size, st.Size)
	}
	return mmapFD(fd, size)
}

// export returns a new descriptor for the same memfd.
func (m *sharedMemory) export() (*handle.Handle, error) {
	fd, err := unix.FcntlInt(uintptr(m.fd), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("software: dup memfd: %w", err)
	}
	return handle.FromFD(fd), nil
}

func (m *sharedMemory) close() error {
	var err error
	if m.data != nil {
		err = unix.Munmap(m.data)
		m.data = nil
	}
	if m.fd >= 0 {
		if cerr := unix.Close(m.fd); err == nil {
			err = cerr
		}
		m.fd = -1
	}
	return err
}

// counter views the first eight bytes of a page-aligned mapping as a
// timeline value.
func counter(data []byte) *atomic.Uint64 {
	return (*atomic.Uint64)(unsafe.Pointer(&data[0]))
}

// timelineEpoch orders timeline stores and loads on the Go heap. The
// counters live in mmapped memory, which the race detector does not track,
// so without it work published by a signal is invisible to its waiters.
var timelineEpoch atomic.Uint64

// storeTimeline publishes value: everything the caller did before the call
// happens before any loadTimeline that observes value.
func storeTimeline(data []byte, value uint64) {
	timelineEpoch.Add(1)
	counter(data).Store(value)
}

func loadTimeline(data []byte) uint64 {
	v := counter(data).Load()
	timelineEpoch.Load()
	return v
}
