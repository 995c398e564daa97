//go:build linux

package software

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/d3d12"
	"github.com/gogpu/gpuinterop/handle"
)

var errForeign = errors.New("software: object belongs to another driver")

// subresource is where one subresource lives in a resource's memory. Rows
// are tightly packed.
type subresource struct {
	offset  uint64
	rowSize uint64
	rows    uint32
	depth   uint32
}

func (s subresource) size() uint64 {
	return s.rowSize * uint64(s.rows) * uint64(s.depth)
}

// layoutOf packs the subresources of desc in subresource-index order.
func layoutOf(desc *d3d12.ResourceDesc) ([]subresource, uint64) {
	if desc.Dimension == d3d12.ResourceDimensionBuffer {
		return []subresource{{rowSize: desc.Width, rows: 1, depth: 1}}, desc.Width
	}
	mips := desc.MipCount()
	n := desc.SubresourceCount()
	out := make([]subresource, n)
	var offset uint64
	for i := uint32(0); i < n; i++ {
		w, h, d := desc.MipExtent(i % mips)
		out[i] = subresource{
			offset:  offset,
			rowSize: desc.Format.RowPitch(uint32(w)),
			rows:    desc.Format.Rows(h),
			depth:   d,
		}
		offset += out[i].size()
	}
	return out, offset
}

type resource struct {
	desc   d3d12.ResourceDesc
	heap   d3d12.HeapType
	flags  d3d12.HeapFlags
	layout []subresource
	mem    *sharedMemory
}

func newResource(info *d3d12.ResourceCreateInfo) (*resource, error) {
	layout, size := layoutOf(&info.Desc)
	// Importers map the copiable size, which pads rows to the pitch
	// alignment.
	_, copiable := d3d12.ComputeFootprints(&info.Desc, 0, info.Desc.SubresourceCount(), 0)
	size = max(size, copiable)
	if size == 0 {
		return nil, &gpuinterop.APIError{API: "d3d12", Op: "CreateCommittedResource", Code: eInvalidArg, Message: "empty resource"}
	}
	mem, err := newSharedMemory("d3d12-resource", size)
	if err != nil {
		return nil, err
	}
	r := &resource{
		desc:   info.Desc,
		heap:   info.Heap.Type,
		flags:  info.HeapFlags,
		layout: layout,
		mem:    mem,
	}
	if info.ClearValue != nil && info.Desc.Dimension != d3d12.ResourceDimensionBuffer {
		r.clear(info.ClearValue)
	}
	return r, nil
}

// clear fills every texel with the clear color encoded in the resource
// format. Formats without a known encoding are left zeroed.
func (r *resource) clear(cv *d3d12.ClearValue) {
	texel, ok := encodeTexel(r.desc.Format, cv.Color)
	if !ok {
		return
	}
	for i := 0; i+len(texel) <= len(r.mem.data); i += len(texel) {
		copy(r.mem.data[i:], texel)
	}
}

func (r *resource) Map(sub uint32) ([]byte, error) {
	if r.heap != d3d12.HeapTypeUpload && r.heap != d3d12.HeapTypeReadback {
		return nil, d3d12.ErrNotMappable
	}
	if int(sub) >= len(r.layout) {
		return nil, fmt.Errorf("software: subresource %d of %d", sub, len(r.layout))
	}
	s := r.layout[sub]
	return r.mem.data[s.offset : s.offset+s.size()], nil
}

func (r *resource) Unmap(uint32) {}

func (r *resource) CreateSharedHandle(string) (*handle.Handle, error) {
	if r.flags&d3d12.HeapFlagShared == 0 {
		return nil, &gpuinterop.APIError{API: "d3d12", Op: "CreateSharedHandle", Code: eInvalidArg, Message: "heap is not shared"}
	}
	return r.mem.export()
}

func (r *resource) Release() error {
	return r.mem.close()
}

// fence keeps its value in an eight-byte memfd so importers on the compute
// side observe it through their own mapping.
type fence struct {
	flags d3d12.FenceFlags
	spin  time.Duration

	mu  sync.RWMutex
	mem *sharedMemory
}

func newFence(initial uint64, flags d3d12.FenceFlags, spin time.Duration) (*fence, error) {
	mem, err := newSharedMemory("d3d12-fence", 8)
	if err != nil {
		return nil, err
	}
	storeTimeline(mem.data, initial)
	return &fence{flags: flags, spin: spin, mem: mem}, nil
}

func (f *fence) CompletedValue() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.mem == nil {
		return 0
	}
	return loadTimeline(f.mem.data)
}

func (f *fence) Signal(value uint64) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.mem == nil {
		return gpuinterop.ErrClosed
	}
	storeTimeline(f.mem.data, value)
	return nil
}

func (f *fence) SetEventOnCompletion(value uint64, e d3d12.EventDriver) error {
	ev, ok := e.(*event)
	if !ok {
		return errForeign
	}
	ev.arm(f, value)
	return nil
}

func (f *fence) CreateSharedHandle(string) (*handle.Handle, error) {
	if f.flags&d3d12.FenceFlagShared == 0 {
		return nil, &gpuinterop.APIError{API: "d3d12", Op: "CreateSharedHandle", Code: eInvalidArg, Message: "fence is not shared"}
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.mem == nil {
		return nil, gpuinterop.ErrClosed
	}
	return f.mem.export()
}

func (f *fence) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mem == nil {
		return nil
	}
	err := f.mem.close()
	f.mem = nil
	return err
}

// event is set once its fence reaches the armed value.
type event struct {
	spin time.Duration

	mu    sync.Mutex
	fence *fence
	value uint64
}

func (e *event) arm(f *fence, value uint64) {
	e.mu.Lock()
	e.fence, e.value = f, value
	e.mu.Unlock()
}

func (e *event) Wait(timeout time.Duration) (bool, error) {
	e.mu.Lock()
	f, value := e.fence, e.value
	e.mu.Unlock()
	if f == nil {
		return false, errors.New("software: event was never armed")
	}
	done := func() bool { return f.CompletedValue() >= value }
	if timeout == 0 {
		return done(), nil
	}
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	return pollUntil(done, e.spin, deadline, nil), nil
}

func (e *event) Close() error { return nil }

type queue struct {
	typ  d3d12.CommandListType
	w    *worker
	spin time.Duration
}

func (q *queue) Execute(lists []*d3d12.CommandList) error {
	var cmds []d3d12.Command
	for _, l := range lists {
		cmds = append(cmds, l.Commands()...)
	}
	cmds = slices.Clip(cmds)
	return q.w.submit(func() error {
		for i := range cmds {
			if err := execute(&cmds[i]); err != nil {
				gpuinterop.Logger().Error("software: command failed", "queue", q.typ, "error", err)
				return err
			}
		}
		return nil
	})
}

func (q *queue) Signal(f d3d12.FenceDriver, value uint64) error {
	sf, ok := f.(*fence)
	if !ok {
		return errForeign
	}
	return q.w.submit(func() error { return sf.Signal(value) })
}

func (q *queue) Wait(f d3d12.FenceDriver, value uint64) error {
	sf, ok := f.(*fence)
	if !ok {
		return errForeign
	}
	return q.w.submit(func() error {
		if !pollUntil(func() bool { return sf.CompletedValue() >= value }, q.spin, time.Time{}, q.w.quit) {
			return gpuinterop.ErrClosed
		}
		return nil
	})
}

func (q *queue) Close() error {
	return q.w.close()
}

func asResource(r d3d12.ResourceDriver) (*resource, error) {
	sr, ok := r.(*resource)
	if !ok || sr == nil {
		return nil, errForeign
	}
	return sr, nil
}

func execute(c *d3d12.Command) error {
	switch c.Kind {
	case d3d12.CommandCopyBufferRegion:
		dst, err := asResource(c.Dst)
		if err != nil {
			return err
		}
		src, err := asResource(c.Src)
		if err != nil {
			return err
		}
		if c.DstOffset+c.NumBytes > uint64(len(dst.mem.data)) || c.SrcOffset+c.NumBytes > uint64(len(src.mem.data)) {
			return fmt.Errorf("software: buffer copy of %d bytes out of bounds", c.NumBytes)
		}
		copy(dst.mem.data[c.DstOffset:c.DstOffset+c.NumBytes], src.mem.data[c.SrcOffset:])
	case d3d12.CommandCopyResource:
		dst, err := asResource(c.Dst)
		if err != nil {
			return err
		}
		src, err := asResource(c.Src)
		if err != nil {
			return err
		}
		if len(dst.mem.data) != len(src.mem.data) {
			return fmt.Errorf("software: CopyResource between %d and %d bytes", len(dst.mem.data), len(src.mem.data))
		}
		copy(dst.mem.data, src.mem.data)
	case d3d12.CommandCopyTextureRegion:
		return copyTextureRegion(c)
	case d3d12.CommandTransition:
		// Host memory has no layouts.
	default:
		return fmt.Errorf("software: unknown command kind %d", c.Kind)
	}
	return nil
}

// region is a pitched block of rows inside a resource.
type region struct {
	data    []byte
	base    uint64
	pitch   uint64
	rowSize uint64
	rows    uint32
	depth   uint32
	bpp     uint64
}

func (g region) row(z, y uint32) uint64 {
	return g.base + uint64(z)*g.pitch*uint64(g.rows) + uint64(y)*g.pitch
}

func locate(loc *d3d12.TextureCopyLocation) (region, error) {
	r, err := asResource(loc.Resource)
	if err != nil {
		return region{}, err
	}
	switch loc.Type {
	case d3d12.CopyLocationSubresourceIndex:
		if int(loc.SubresourceIndex) >= len(r.layout) {
			return region{}, fmt.Errorf("software: subresource %d of %d", loc.SubresourceIndex, len(r.layout))
		}
		s := r.layout[loc.SubresourceIndex]
		return region{
			data: r.mem.data, base: s.offset, pitch: s.rowSize, rowSize: s.rowSize,
			rows: s.rows, depth: s.depth, bpp: uint64(r.desc.Format.BytesPerPixel()),
		}, nil
	case d3d12.CopyLocationPlacedFootprint:
		fp := loc.PlacedFootprint
		rowSize := fp.RowSizeInBytes
		if rowSize == 0 {
			rowSize = fp.Footprint.Format.RowPitch(fp.Footprint.Width)
		}
		rows := fp.NumRows
		if rows == 0 {
			rows = fp.Footprint.Format.Rows(fp.Footprint.Height)
		}
		return region{
			data: r.mem.data, base: fp.Offset, pitch: uint64(fp.Footprint.RowPitch), rowSize: rowSize,
			rows: rows, depth: max(fp.Footprint.Depth, 1), bpp: uint64(fp.Footprint.Format.BytesPerPixel()),
		}, nil
	default:
		return region{}, fmt.Errorf("software: copy location type %d", loc.Type)
	}
}

func copyTextureRegion(c *d3d12.Command) error {
	dst, err := locate(&c.DstLocation)
	if err != nil {
		return err
	}
	src, err := locate(&c.SrcLocation)
	if err != nil {
		return err
	}
	x := uint64(c.DstX) * dst.bpp
	if x > dst.rowSize || c.DstY > dst.rows || c.DstZ > dst.depth {
		return fmt.Errorf("software: copy origin (%d,%d,%d) out of bounds", c.DstX, c.DstY, c.DstZ)
	}
	n := min(src.rowSize, dst.rowSize-x)
	rows := min(src.rows, dst.rows-c.DstY)
	depth := min(src.depth, dst.depth-c.DstZ)
	for z := uint32(0); z < depth; z++ {
		for y := uint32(0); y < rows; y++ {
			so := src.row(z, y)
			do := dst.row(z+c.DstZ, y+c.DstY) + x
			if so+n > uint64(len(src.data)) || do+n > uint64(len(dst.data)) {
				return fmt.Errorf("software: texture copy row (%d,%d) out of bounds", y, z)
			}
			copy(dst.data[do:do+n], src.data[so:so+n])
		}
	}
	return nil
}
