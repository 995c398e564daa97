package interop

import (
	"fmt"
	"sync"

	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/compute"
	"github.com/gogpu/gpuinterop/d3d12"
)

// ExternalBuffer is a D3D12 buffer imported as dedicated compute memory
// and mapped linearly at offset 0.
type ExternalBuffer struct {
	s    *Session
	res  *d3d12.Resource
	size uint64

	mu  sync.Mutex
	mem compute.ExternalMemory
	ptr compute.DevicePtr
}

// ImportBuffer imports a shareable buffer. The mapping covers the
// resource's copiable size.
func (s *Session) ImportBuffer(res *d3d12.Resource, opts ...ImportOption) (*ExternalBuffer, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	desc := res.Desc()
	if desc.Dimension != d3d12.ResourceDimensionBuffer {
		return nil, fmt.Errorf("interop: import %s as buffer: %w", desc.Dimension, gpuinterop.ErrUnsupportedDimension)
	}
	o := importConfig(opts)
	h, err := res.SharedHandle(o.name)
	if err != nil {
		return nil, fmt.Errorf("interop: import buffer: %w", err)
	}
	defer h.Close()

	size := res.CopiableSizeInBytes()
	mem, err := s.cdev.ImportMemory(h, size)
	if err != nil {
		return nil, featureErr(fmt.Errorf("interop: %s: import buffer memory: %w", s.API(), err))
	}
	ptr, err := mem.MappedBuffer(0, size)
	if err != nil {
		return nil, featureErr(joinDestroy(fmt.Errorf("interop: %s: map buffer: %w", s.API(), err), mem.Destroy))
	}
	gpuinterop.Logger().Debug("interop: buffer imported", "api", s.API(), "size", size, "handle", h)
	return &ExternalBuffer{s: s, res: res, size: size, mem: mem, ptr: ptr}, nil
}

// Resource returns the source resource.
func (b *ExternalBuffer) Resource() *d3d12.Resource { return b.res }

// Size returns the mapped size in bytes.
func (b *ExternalBuffer) Size() uint64 { return b.size }

// DevicePtr returns the compute-side address of byte 0.
func (b *ExternalBuffer) DevicePtr() compute.DevicePtr {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ptr
}

func (b *ExternalBuffer) checkSize(n uint64) (compute.DevicePtr, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mem == nil {
		return 0, ErrDestroyed
	}
	if n > b.size {
		return 0, fmt.Errorf("interop: %d-byte copy: %w (%d bytes)", n, gpuinterop.ErrCopySizeMismatch, b.size)
	}
	return b.ptr, nil
}

func (b *ExternalBuffer) enqueue(c *compute.Copy, s compute.Stream, opts []compute.OpOption) error {
	if err := b.s.cdev.Copy(c, s, opts...); err != nil {
		return fmt.Errorf("interop: %s: buffer copy: %w", b.s.API(), err)
	}
	return nil
}

// CopyFromDevicePtrAsync enqueues a copy of n bytes from src into the
// buffer.
func (b *ExternalBuffer) CopyFromDevicePtrAsync(src compute.DevicePtr, n uint64, s compute.Stream, opts ...compute.OpOption) error {
	ptr, err := b.checkSize(n)
	if err != nil {
		return err
	}
	return b.enqueue(compute.LinearCopy(compute.DeviceEndpoint(ptr, 0), compute.DeviceEndpoint(src, 0), n), s, opts)
}

// CopyToDevicePtrAsync enqueues a copy of the first n bytes of the buffer
// to dst.
func (b *ExternalBuffer) CopyToDevicePtrAsync(dst compute.DevicePtr, n uint64, s compute.Stream, opts ...compute.OpOption) error {
	ptr, err := b.checkSize(n)
	if err != nil {
		return err
	}
	return b.enqueue(compute.LinearCopy(compute.DeviceEndpoint(dst, 0), compute.DeviceEndpoint(ptr, 0), n), s, opts)
}

// CopyFromHostPtrAsync enqueues an upload of src. src must stay untouched
// until the stream has passed the copy.
func (b *ExternalBuffer) CopyFromHostPtrAsync(src []byte, s compute.Stream, opts ...compute.OpOption) error {
	ptr, err := b.checkSize(uint64(len(src)))
	if err != nil {
		return err
	}
	return b.enqueue(compute.LinearCopy(compute.DeviceEndpoint(ptr, 0), compute.HostEndpoint(src), uint64(len(src))), s, opts)
}

// CopyToHostPtrAsync enqueues a download of len(dst) bytes. dst is only
// valid after the stream or the recorded event has been synchronized.
func (b *ExternalBuffer) CopyToHostPtrAsync(dst []byte, s compute.Stream, opts ...compute.OpOption) error {
	ptr, err := b.checkSize(uint64(len(dst)))
	if err != nil {
		return err
	}
	return b.enqueue(compute.LinearCopy(compute.HostEndpoint(dst), compute.DeviceEndpoint(ptr, 0), uint64(len(dst))), s, opts)
}

// Destroy releases the imported memory. The D3D12 resource is unaffected.
func (b *ExternalBuffer) Destroy() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mem == nil {
		return nil
	}
	err := b.mem.Destroy()
	b.mem, b.ptr = nil, 0
	return err
}
