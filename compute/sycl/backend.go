package sycl

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/compute"
	"github.com/gogpu/gpuinterop/dxgi"
	"github.com/gogpu/gpuinterop/handle"
	"github.com/gogpu/gpuinterop/internal/dynlib"
)

func init() {
	compute.Register(compute.APISYCL, func(cfg *gpuinterop.Config) compute.Backend {
		return NewBackend(cfg)
	})
}

// Backend is the SYCL compute backend.
type Backend struct {
	library string

	mu  sync.Mutex
	lib *dynlib.Library
	fn  *functions
}

var (
	_ compute.Backend           = (*Backend)(nil)
	_ compute.Device            = (*Device)(nil)
	_ compute.ExternalMemory    = (*externalMemory)(nil)
	_ compute.ExternalSemaphore = (*semaphore)(nil)
)

// NewBackend returns an uninitialized backend. Config.SYCLShimLibrary
// overrides the shim library name.
func NewBackend(cfg *gpuinterop.Config) *Backend {
	b := &Backend{}
	if cfg != nil {
		b.library = cfg.SYCLShimLibrary
	}
	return b
}

// API implements compute.Backend.
func (b *Backend) API() compute.API { return compute.APISYCL }

// UnreliableLUID implements compute.Backend.
func (b *Backend) UnreliableLUID() bool { return false }

// Init implements compute.Backend. The shim creates its global context.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fn != nil {
		return nil
	}
	lib, fn, err := load(b.library)
	if err != nil {
		return fmt.Errorf("sycl: %w: %w", gpuinterop.ErrUnsupportedComputeAPI, err)
	}
	if err := fn.call("gisycl_init", fn.init); err != nil {
		_ = lib.Close()
		return fmt.Errorf("%w: %w", gpuinterop.ErrUnsupportedComputeAPI, err)
	}
	b.lib, b.fn = lib, fn
	return nil
}

func (b *Backend) functions() (*functions, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fn == nil {
		return nil, compute.ErrNotInitialized
	}
	return b.fn, nil
}

// Devices implements compute.Backend.
func (b *Backend) Devices() ([]compute.DeviceInfo, error) {
	fn, err := b.functions()
	if err != nil {
		return nil, err
	}
	var n uint32
	if err := fn.call("gisycl_device_count", func() status { return fn.deviceCount(&n) }); err != nil {
		return nil, err
	}
	out := make([]compute.DeviceInfo, 0, n)
	for i := uint32(0); i < n; i++ {
		var di deviceInfo
		if err := fn.call("gisycl_device_info", func() status { return fn.deviceInfo(i, &di) }); err != nil {
			return nil, err
		}
		info := compute.DeviceInfo{
			Index:   int(i),
			Name:    cString(di.Name[:]),
			HasLUID: di.HasLUID != 0,
			HasUUID: di.HasUUID != 0,
			UUID:    di.UUID,
			Driver:  int(di.Platform),
		}
		if info.HasLUID {
			info.LUID = dxgi.LUIDFromBytes(di.LUID)
		}
		out = append(out, info)
	}
	return out, nil
}

// Open implements compute.Backend. The device keeps an in-order queue for
// allocations and imports.
func (b *Backend) Open(info compute.DeviceInfo) (compute.Device, error) {
	fn, err := b.functions()
	if err != nil {
		return nil, err
	}
	var q uintptr
	if err := fn.call("gisycl_queue_create", func() status { return fn.queueCreate(uint32(info.Index), &q) }); err != nil {
		return nil, err
	}
	return &Device{fn: fn, info: info, q: q}, nil
}

// Close implements compute.Backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lib == nil {
		return nil
	}
	err := b.lib.Close()
	b.lib, b.fn = nil, nil
	return err
}

// Device is an opened SYCL device.
type Device struct {
	fn   *functions
	info compute.DeviceInfo
	q    uintptr

	closed atomic.Bool
}

// API implements compute.Device.
func (d *Device) API() compute.API { return compute.APISYCL }

// Info implements compute.Device.
func (d *Device) Info() compute.DeviceInfo { return d.info }

// NewStream implements compute.Device with a new in-order queue.
func (d *Device) NewStream() (compute.Stream, error) {
	var q uintptr
	if err := d.fn.call("gisycl_queue_create", func() status { return d.fn.queueCreate(uint32(d.info.Index), &q) }); err != nil {
		return nil, err
	}
	return &queue{dev: d, h: q}, nil
}

// NewEvent implements compute.Device. The event is complete until it is
// first recorded.
func (d *Device) NewEvent() (compute.Event, error) {
	var e uintptr
	if err := d.fn.call("gisycl_event_create", func() status { return d.fn.eventCreate(&e) }); err != nil {
		return nil, err
	}
	return &event{fn: d.fn, h: e}, nil
}

// Alloc implements compute.Device.
func (d *Device) Alloc(size uint64) (compute.DevicePtr, error) {
	var p uintptr
	if err := d.fn.call("gisycl_malloc_device", func() status { return d.fn.mallocDevice(d.q, size, &p) }); err != nil {
		return 0, err
	}
	return compute.DevicePtr(p), nil
}

// Free implements compute.Device.
func (d *Device) Free(p compute.DevicePtr) error {
	return d.fn.call("gisycl_free", func() status { return d.fn.free(d.q, uintptr(p)) })
}

func handleArgs(h *handle.Handle, fdKind, ntKind uint32) (uint32, uintptr, error) {
	switch h.Kind() {
	case handle.KindFD:
		return fdKind, h.Value(), nil
	case handle.KindNT:
		return ntKind, h.Value(), nil
	default:
		return 0, 0, gpuinterop.ErrHandleExportFailed
	}
}

// ImportMemory implements compute.Device. The shim duplicates file
// descriptors it needs to keep.
func (d *Device) ImportMemory(h *handle.Handle, size uint64) (compute.ExternalMemory, error) {
	kind, v, err := handleArgs(h, handleOpaqueFD, handleD3D12Resource)
	if err != nil {
		return nil, fmt.Errorf("sycl: import memory: %w", err)
	}
	var mem uintptr
	if err := d.fn.call("gisycl_import_memory", func() status { return d.fn.importMemory(d.q, kind, v, size, &mem) }); err != nil {
		return nil, err
	}
	return &externalMemory{dev: d, h: mem}, nil
}

// ImportSemaphore implements compute.Device.
func (d *Device) ImportSemaphore(h *handle.Handle) (compute.ExternalSemaphore, error) {
	kind, v, err := handleArgs(h, handleTimelineFD, handleD3D12Fence)
	if err != nil {
		return nil, fmt.Errorf("sycl: import semaphore: %w", err)
	}
	var sem uintptr
	err = d.fn.callFeature("gisycl_import_semaphore", "external semaphore",
		func() status { return d.fn.importSemaphore(d.q, kind, v, &sem) },
		statusUnsupportedFeature, statusNotInitialized)
	if err != nil {
		return nil, err
	}
	return &semaphore{dev: d, h: sem}, nil
}

func (d *Device) asQueue(s compute.Stream) (*queue, error) {
	q, ok := s.(*queue)
	if !ok || q == nil || q.dev != d {
		return nil, compute.ErrForeignObject
	}
	return q, nil
}

// events resolves the wait list and record event of opts.
func events(opts []compute.OpOption) (waits []uintptr, record *event, err error) {
	cfg := compute.Options(opts...)
	for _, e := range cfg.Wait {
		ev, ok := e.(*event)
		if !ok {
			return nil, nil, compute.ErrForeignObject
		}
		waits = append(waits, ev.h)
	}
	if cfg.Record != nil {
		ev, ok := cfg.Record.(*event)
		if !ok {
			return nil, nil, compute.ErrForeignObject
		}
		record = ev
	}
	return waits, record, nil
}

func waitList(waits []uintptr) (*uintptr, uint32) {
	if len(waits) == 0 {
		return nil, 0
	}
	return &waits[0], uint32(len(waits))
}

func (e *event) handle() uintptr {
	if e == nil {
		return 0
	}
	return e.h
}

func endpoint(e compute.Endpoint, c *compute.Copy) (copyEndpoint, error) {
	out := copyEndpoint{
		Pitch:  max(e.Pitch, c.WidthBytes),
		Height: max(e.Height, c.Height, 1),
	}
	switch e.Kind {
	case compute.MemoryHost:
		out.Kind = memoryHost
		out.Ptr = unsafe.Pointer(&e.Host[e.Offset])
	case compute.MemoryDevice:
		out.Kind = memoryDevice
		p := uintptr(e.Device) + uintptr(e.Offset)
		out.Ptr = *(*unsafe.Pointer)(unsafe.Pointer(&p))
	case compute.MemoryArray:
		img, ok := e.Array.(*image)
		if !ok {
			return copyEndpoint{}, compute.ErrForeignObject
		}
		out.Kind = memoryImage
		out.Image = img.h
		out.Pitch, out.Height = 0, 0
	}
	return out, nil
}

// copyDescFor translates a copy into the shim descriptor.
func copyDescFor(c *compute.Copy) (copyDesc, error) {
	src, err := endpoint(c.Src, c)
	if err != nil {
		return copyDesc{}, err
	}
	dst, err := endpoint(c.Dst, c)
	if err != nil {
		return copyDesc{}, err
	}
	return copyDesc{
		Src:        src,
		Dst:        dst,
		WidthBytes: c.WidthBytes,
		Height:     max(c.Height, 1),
		Depth:      max(c.Depth, 1),
	}, nil
}

// Copy implements compute.Device.
func (d *Device) Copy(c *compute.Copy, s compute.Stream, opts ...compute.OpOption) error {
	if err := c.Validate(); err != nil {
		return err
	}
	q, err := d.asQueue(s)
	if err != nil {
		return err
	}
	desc, err := copyDescFor(c)
	if err != nil {
		return err
	}
	waits, record, err := events(opts)
	if err != nil {
		return err
	}
	wp, n := waitList(waits)
	return d.fn.call("gisycl_memcpy", func() status { return d.fn.memcpy(q.h, &desc, wp, n, record.handle()) })
}

// CreateTextureObject implements compute.Device with a sampled bindless
// image handle.
func (d *Device) CreateTextureObject(src compute.TextureSource, desc *compute.ImageDesc, sampler *compute.SamplerDesc) (compute.TextureObject, error) {
	var img uintptr
	switch {
	case src.Mipmapped != nil:
		m, ok := src.Mipmapped.(*image)
		if !ok {
			return nil, compute.ErrForeignObject
		}
		img = m.h
	case src.Level != nil:
		a, ok := src.Level.(*image)
		if !ok {
			return nil, compute.ErrForeignObject
		}
		img = a.h
	default:
		return nil, fmt.Errorf("sycl: texture object without source")
	}
	id := imageDescFor(desc)
	sd := samplerDescFor(sampler)
	var h uint64
	err := d.fn.callFeature("gisycl_create_sampled_image", "sampled image",
		func() status { return d.fn.createSampledImage(d.q, img, &id, &sd, &h) },
		statusInvalidValue, statusUnsupportedFeature)
	if err != nil {
		return nil, err
	}
	return &imageHandle{dev: d, h: h, sampled: true}, nil
}

// CreateSurfaceObject implements compute.Device with an unsampled bindless
// image handle.
func (d *Device) CreateSurfaceObject(level compute.Array) (compute.SurfaceObject, error) {
	img, ok := level.(*image)
	if !ok {
		return nil, compute.ErrForeignObject
	}
	var h uint64
	err := d.fn.callFeature("gisycl_create_unsampled_image", "unsampled image",
		func() status { return d.fn.createUnsampledImage(d.q, img.h, &img.desc, &h) },
		statusInvalidValue, statusUnsupportedFeature)
	if err != nil {
		return nil, err
	}
	return &imageHandle{dev: d, h: h}, nil
}

// Close implements compute.Device.
func (d *Device) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	return d.fn.call("gisycl_queue_destroy", func() status { return d.fn.queueDestroy(d.q) })
}

type queue struct {
	dev *Device
	h   uintptr
}

func (q *queue) Synchronize() error {
	return q.dev.fn.call("gisycl_queue_wait", func() status { return q.dev.fn.queueWait(q.h) })
}

func (q *queue) Close() error {
	return q.dev.fn.call("gisycl_queue_destroy", func() status { return q.dev.fn.queueDestroy(q.h) })
}

type event struct {
	fn *functions
	h  uintptr
}

func (e *event) Synchronize() error {
	return e.fn.call("gisycl_event_wait", func() status { return e.fn.eventWait(e.h) })
}

func (e *event) Close() error {
	return e.fn.call("gisycl_event_destroy", func() status { return e.fn.eventDestroy(e.h) })
}

// image is a bindless image memory handle: a mipmapped image or one of its
// levels.
type image struct {
	dev   *Device
	h     uintptr
	desc  imageDesc
	owned bool
}

func (i *image) Handle() uintptr { return i.h }

func (i *image) Level(level uint32) (compute.Array, error) {
	if level == 0 && i.desc.MipLevels <= 1 {
		return i, nil
	}
	fn := i.dev.fn
	var h uintptr
	if err := fn.call("gisycl_image_level", func() status { return fn.imageLevel(i.h, level, &h) }); err != nil {
		return nil, err
	}
	desc := i.desc
	desc.MipLevels = 1
	desc.Width = max(desc.Width>>level, 1)
	desc.Height = max(desc.Height>>level, 1)
	if desc.Depth > 0 {
		desc.Depth = max(desc.Depth>>level, 1)
	}
	return &image{dev: i.dev, h: h, desc: desc}, nil
}

func (i *image) Destroy() error {
	if !i.owned {
		return nil
	}
	fn := i.dev.fn
	return fn.call("gisycl_free_image", func() status { return fn.freeImage(i.dev.q, i.h) })
}

type externalMemory struct {
	dev *Device
	h   uintptr
}

func (m *externalMemory) MappedBuffer(offset, size uint64) (compute.DevicePtr, error) {
	fn := m.dev.fn
	var p uintptr
	if err := fn.call("gisycl_map_buffer", func() status { return fn.mapBuffer(m.h, offset, size, &p) }); err != nil {
		return 0, err
	}
	return compute.DevicePtr(p), nil
}

// MappedMipmappedArray maps a bindless image over the memory. An invalid
// value status means the image type is not supported by the device.
func (m *externalMemory) MappedMipmappedArray(desc *compute.ImageDesc) (compute.MipmappedArray, error) {
	fn := m.dev.fn
	id := imageDescFor(desc)
	var h uintptr
	err := fn.callFeature("gisycl_map_image", fmt.Sprintf("%s %s image", desc.Type, desc.DXGIFormat),
		func() status { return fn.mapImage(m.h, &id, &h) },
		statusInvalidValue, statusUnsupportedFeature)
	if err != nil {
		return nil, err
	}
	return &image{dev: m.dev, h: h, desc: id, owned: true}, nil
}

func (m *externalMemory) Destroy() error {
	fn := m.dev.fn
	return fn.call("gisycl_release_memory", func() status { return fn.releaseMemory(m.dev.q, m.h) })
}

type semaphore struct {
	dev *Device
	h   uintptr
}

func (s *semaphore) op(st compute.Stream, opts []compute.OpOption, name string,
	call func(q, sem uintptr, value uint64, waits *uintptr, nWait uint32, record uintptr) status, value uint64) error {
	q, err := s.dev.asQueue(st)
	if err != nil {
		return err
	}
	waits, record, err := events(opts)
	if err != nil {
		return err
	}
	wp, n := waitList(waits)
	return s.dev.fn.call(name, func() status { return call(q.h, s.h, value, wp, n, record.handle()) })
}

func (s *semaphore) Signal(st compute.Stream, value uint64, opts ...compute.OpOption) error {
	return s.op(st, opts, "gisycl_signal_semaphore", s.dev.fn.signalSemaphore, value)
}

func (s *semaphore) Wait(st compute.Stream, value uint64, opts ...compute.OpOption) error {
	return s.op(st, opts, "gisycl_wait_semaphore", s.dev.fn.waitSemaphore, value)
}

func (s *semaphore) Destroy() error {
	fn := s.dev.fn
	return fn.call("gisycl_release_semaphore", func() status { return fn.releaseSemaphore(s.dev.q, s.h) })
}

// imageHandle is a sampled or unsampled bindless image handle.
type imageHandle struct {
	dev     *Device
	h       uint64
	sampled bool
}

func (i *imageHandle) Handle() uint64 { return i.h }

func (i *imageHandle) Destroy() error {
	fn := i.dev.fn
	var sampled uint32
	if i.sampled {
		sampled = 1
	}
	return fn.call("gisycl_destroy_image_handle", func() status { return fn.destroyImageHandle(i.dev.q, i.h, sampled) })
}
