package d3d12

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/handle"
)

var resourceHandleCounter atomic.Uint64

// nextResourceHandleName returns Local\D3D12ResourceHandle{N}. Names are
// unique within the process only.
func nextResourceHandleName() string {
	return fmt.Sprintf(`Local\D3D12ResourceHandle%d`, resourceHandleCounter.Add(1)-1)
}

// ResourceSettings bundles everything needed to create a committed
// resource.
type ResourceSettings struct {
	Desc         ResourceDesc
	Heap         HeapProperties
	HeapFlags    HeapFlags
	InitialState ResourceStates
	ClearValue   *ClearValue

	// Shareable adds HeapFlagShared so the resource can be exported with
	// SharedHandle later.
	Shareable bool
}

// Resource is a committed D3D12 resource. Exporting a handle does not
// transfer ownership: the resource stays fully usable by the device.
type Resource struct {
	dev       *Device
	native    ResourceDriver
	desc      ResourceDesc
	heap      HeapProperties
	heapFlags HeapFlags

	footprints []PlacedSubresourceFootprint
	copiable   uint64

	mu     sync.Mutex
	state  ResourceStates
	shared *handle.Handle
	closed bool
}

// CreateResource creates a committed resource.
func (d *Device) CreateResource(s ResourceSettings) (*Resource, error) {
	if err := validateDesc(&s.Desc); err != nil {
		return nil, err
	}
	if s.Heap.Type == 0 {
		s.Heap.Type = HeapTypeDefault
	}
	if s.Shareable {
		s.HeapFlags |= HeapFlagShared
	}
	native, err := d.native.CreateCommittedResource(&ResourceCreateInfo{
		Heap:         s.Heap,
		HeapFlags:    s.HeapFlags,
		Desc:         s.Desc,
		InitialState: s.InitialState,
		ClearValue:   s.ClearValue,
	})
	if err != nil {
		return nil, fmt.Errorf("d3d12: create %s resource: %w", s.Desc.Dimension, err)
	}
	fps, total := d.Footprints(&s.Desc)
	gpuinterop.Logger().Debug("d3d12: resource created",
		"dimension", s.Desc.Dimension, "format", s.Desc.Format,
		"width", s.Desc.Width, "height", s.Desc.Height,
		"shared", s.HeapFlags&HeapFlagShared != 0, "copiableSize", total)
	return &Resource{
		dev:        d,
		native:     native,
		desc:       s.Desc,
		heap:       s.Heap,
		heapFlags:  s.HeapFlags,
		footprints: fps,
		copiable:   total,
		state:      s.InitialState,
	}, nil
}

func validateDesc(desc *ResourceDesc) error {
	switch desc.Dimension {
	case ResourceDimensionBuffer:
		if desc.Width == 0 {
			return fmt.Errorf("%w: zero-sized buffer", ErrInvalidDesc)
		}
	case ResourceDimensionTexture1D, ResourceDimensionTexture2D, ResourceDimensionTexture3D:
		if desc.Width == 0 || desc.Height == 0 || desc.DepthOrArraySize == 0 {
			return fmt.Errorf("%w: zero extent %dx%dx%d", ErrInvalidDesc,
				desc.Width, desc.Height, desc.DepthOrArraySize)
		}
		if !desc.Format.Known() || desc.Format.BitsPerElement() == 0 {
			return fmt.Errorf("%w: texture format %s", ErrInvalidDesc, desc.Format)
		}
	default:
		return fmt.Errorf("%w: dimension %s", ErrInvalidDesc, desc.Dimension)
	}
	return nil
}

// Desc returns the resource description.
func (r *Resource) Desc() ResourceDesc { return r.desc }

// Device returns the owning device.
func (r *Resource) Device() *Device { return r.dev }

// Native returns the driver-level resource.
func (r *Resource) Native() ResourceDriver { return r.native }

// HeapFlags returns the flags the resource's heap was created with.
func (r *Resource) HeapFlags() HeapFlags { return r.heapFlags }

// Shareable reports whether the resource can be exported.
func (r *Resource) Shareable() bool { return r.heapFlags&HeapFlagShared != 0 }

// Footprints returns the copy layout of every subresource.
func (r *Resource) Footprints() []PlacedSubresourceFootprint { return r.footprints }

// CopiableSizeInBytes returns the number of bytes a copy into or out of the
// resource moves, row-pitch padding included.
func (r *Resource) CopiableSizeInBytes() uint64 { return r.copiable }

// PackedSizeInBytes returns the tightly packed data size UploadData and
// ReadbackData expect for textures.
func (r *Resource) PackedSizeInBytes() uint64 {
	if r.desc.Dimension == ResourceDimensionBuffer {
		return r.desc.Width
	}
	return PackedSize(r.footprints)
}

// State returns the tracked resource state.
func (r *Resource) State() ResourceStates {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// TransitionTo records a barrier from the tracked state to after and
// updates the tracked state.
func (r *Resource) TransitionTo(l *CommandList, after ResourceStates) error {
	r.mu.Lock()
	before := r.state
	r.state = after
	r.mu.Unlock()
	return l.Transition(r, before, after)
}

// SharedHandle returns an NT handle (file descriptor on POSIX drivers)
// granting full access to the resource. The first call exports the
// resource under name, or under an auto-generated
// Local\D3D12ResourceHandle{N} name when name is empty, and caches the
// handle; every call returns an independently closeable duplicate.
func (r *Resource) SharedHandle(name string) (*handle.Handle, error) {
	if !r.Shareable() {
		return nil, gpuinterop.ErrNotShareable
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, gpuinterop.ErrClosed
	}
	if r.shared == nil {
		if name == "" {
			name = nextResourceHandleName()
		}
		h, err := r.native.CreateSharedHandle(name)
		if err != nil {
			return nil, fmt.Errorf("d3d12: export resource %q: %w: %w", name, gpuinterop.ErrHandleExportFailed, err)
		}
		gpuinterop.Logger().Debug("d3d12: resource exported", "name", name, "handle", h)
		r.shared = h
	}
	return r.shared.Duplicate()
}

func (r *Resource) checkDataSize(n int) error {
	if r.desc.Dimension == ResourceDimensionBuffer {
		if uint64(n) > r.desc.Width {
			return fmt.Errorf("%w: %d bytes into %d-byte buffer", gpuinterop.ErrCopySizeMismatch, n, r.desc.Width)
		}
		return nil
	}
	if want := PackedSize(r.footprints); uint64(n) != want {
		return fmt.Errorf("%w: got %d bytes, texture holds %d", ErrDataSize, n, want)
	}
	return nil
}

// staging creates a CPU-visible buffer large enough for a full copy.
func (r *Resource) staging(heap HeapType, state ResourceStates) (*Resource, error) {
	return r.dev.CreateResource(ResourceSettings{
		Desc:         BufferDesc(max(r.copiable, 1), ResourceFlagNone),
		Heap:         HeapProperties{Type: heap},
		InitialState: state,
	})
}

// UploadData copies data into the resource through an intermediate upload
// buffer and blocks until the copy completes. Buffers accept up to Width
// bytes; textures expect every subresource in order with tightly packed
// rows.
func (r *Resource) UploadData(data []byte) error {
	if err := r.checkDataSize(len(data)); err != nil {
		return err
	}
	up, err := r.staging(HeapTypeUpload, ResourceStateGenericRead)
	if err != nil {
		return fmt.Errorf("d3d12: upload buffer: %w", err)
	}
	defer up.Close()

	mem, err := up.native.Map(0)
	if err != nil {
		return fmt.Errorf("d3d12: map upload buffer: %w", err)
	}
	if r.desc.Dimension == ResourceDimensionBuffer {
		copy(mem, data)
	} else {
		scatterRows(mem, data, r.footprints)
	}
	up.native.Unmap(0)

	return r.dev.SingleTimeCommands(func(l *CommandList) error {
		prev := r.State()
		if err := r.TransitionTo(l, ResourceStateCopyDest); err != nil {
			return err
		}
		if err := r.recordCopy(l, up, true, uint64(len(data))); err != nil {
			return err
		}
		return r.TransitionTo(l, prev)
	})
}

// ReadbackData copies the resource into dst through an intermediate
// readback buffer and blocks until the copy completes. dst uses the layout
// UploadData accepts.
func (r *Resource) ReadbackData(dst []byte) error {
	if err := r.checkDataSize(len(dst)); err != nil {
		return err
	}
	rb, err := r.staging(HeapTypeReadback, ResourceStateCopyDest)
	if err != nil {
		return fmt.Errorf("d3d12: readback buffer: %w", err)
	}
	defer rb.Close()

	err = r.dev.SingleTimeCommands(func(l *CommandList) error {
		prev := r.State()
		if err := r.TransitionTo(l, ResourceStateCopySource); err != nil {
			return err
		}
		if err := r.recordCopy(l, rb, false, uint64(len(dst))); err != nil {
			return err
		}
		return r.TransitionTo(l, prev)
	})
	if err != nil {
		return err
	}

	mem, err := rb.native.Map(0)
	if err != nil {
		return fmt.Errorf("d3d12: map readback buffer: %w", err)
	}
	defer rb.native.Unmap(0)
	if r.desc.Dimension == ResourceDimensionBuffer {
		copy(dst, mem)
	} else {
		gatherRows(dst, mem, r.footprints)
	}
	return nil
}

// recordCopy records staging->r when upload is set, r->staging otherwise.
func (r *Resource) recordCopy(l *CommandList, staging *Resource, upload bool, n uint64) error {
	if r.desc.Dimension == ResourceDimensionBuffer {
		if upload {
			return l.CopyBufferRegion(r, 0, staging, 0, n)
		}
		return l.CopyBufferRegion(staging, 0, r, 0, n)
	}
	for i, fp := range r.footprints {
		var err error
		if upload {
			err = l.CopyTextureRegion(SubresourceLocation(r, uint32(i)), 0, 0, 0, FootprintLocation(staging, fp))
		} else {
			err = l.CopyTextureRegion(FootprintLocation(staging, fp), 0, 0, 0, SubresourceLocation(r, uint32(i)))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// scatterRows spreads tightly packed rows into pitched footprints.
func scatterRows(dst, src []byte, fps []PlacedSubresourceFootprint) {
	var s uint64
	for _, fp := range fps {
		pitch := uint64(fp.Footprint.RowPitch)
		for row := uint64(0); row < uint64(fp.NumRows)*uint64(fp.Footprint.Depth); row++ {
			d := fp.Offset + row*pitch
			copy(dst[d:d+fp.RowSizeInBytes], src[s:s+fp.RowSizeInBytes])
			s += fp.RowSizeInBytes
		}
	}
}

// gatherRows is the inverse of scatterRows.
func gatherRows(dst, src []byte, fps []PlacedSubresourceFootprint) {
	var d uint64
	for _, fp := range fps {
		pitch := uint64(fp.Footprint.RowPitch)
		for row := uint64(0); row < uint64(fp.NumRows)*uint64(fp.Footprint.Depth); row++ {
			s := fp.Offset + row*pitch
			copy(dst[d:d+fp.RowSizeInBytes], src[s:s+fp.RowSizeInBytes])
			d += fp.RowSizeInBytes
		}
	}
}

// Close releases the cached shared handle and the resource. Objects
// imported from the resource must be destroyed first.
func (r *Resource) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	var errs []error
	if r.shared != nil {
		errs = append(errs, r.shared.Close())
		r.shared = nil
	}
	errs = append(errs, r.native.Release())
	return errors.Join(errs...)
}
