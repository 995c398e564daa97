package cudaapi

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/compute"
	"github.com/gogpu/gpuinterop/dxgi"
	"github.com/gogpu/gpuinterop/handle"
	"github.com/gogpu/gpuinterop/internal/dynlib"
)

// CU_EVENT_DISABLE_TIMING.
const eventDisableTiming = 0x2

// Backend is a compute.Backend over one flavor's driver library.
type Backend struct {
	flavor  *Flavor
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
	_ compute.MipmappedArray    = (*mipmappedArray)(nil)
)

// NewBackend returns an uninitialized backend. library overrides the
// flavor's default library names when non-empty.
func NewBackend(f *Flavor, library string) *Backend {
	return &Backend{flavor: f, library: library}
}

// API implements compute.Backend.
func (b *Backend) API() compute.API { return b.flavor.API }

// Init implements compute.Backend.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fn != nil {
		return nil
	}
	lib, fn, err := load(b.flavor, b.library)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", b.flavor.API, gpuinterop.ErrUnsupportedComputeAPI, err)
	}
	if err := fn.check("cuInit", fn.cuInit(0)); err != nil {
		_ = lib.Close()
		return fmt.Errorf("%w: %w", gpuinterop.ErrUnsupportedComputeAPI, err)
	}
	b.lib, b.fn = lib, fn
	gpuinterop.Logger().Debug("cudaapi: driver loaded", "api", fn.api, "library", lib.Name())
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
	var count int32
	if err := fn.check("cuDeviceGetCount", fn.cuDeviceGetCount(&count)); err != nil {
		return nil, err
	}
	out := make([]compute.DeviceInfo, 0, count)
	for i := int32(0); i < count; i++ {
		var dev int32
		if err := fn.check("cuDeviceGet", fn.cuDeviceGet(&dev, i)); err != nil {
			return nil, err
		}
		var name [256]byte
		if err := fn.check("cuDeviceGetName", fn.cuDeviceGetName(&name[0], int32(len(name)), dev)); err != nil {
			return nil, err
		}
		info := compute.DeviceInfo{Index: int(i), Name: cString(name[:])}
		if fn.cuDeviceGetLuid != nil {
			var luid [8]byte
			var mask uint32
			// Only Windows drivers report a LUID.
			if fn.cuDeviceGetLuid(&luid, &mask, dev) == success {
				info.LUID, info.HasLUID = dxgi.LUIDFromBytes(luid), true
			}
		}
		if fn.cuDeviceGetUuid != nil && fn.cuDeviceGetUuid(&info.UUID, dev) == success {
			info.HasUUID = true
		}
		out = append(out, info)
	}
	return out, nil
}

// UnreliableLUID implements compute.Backend.
func (b *Backend) UnreliableLUID() bool { return b.flavor.UnreliableLUID }

// Open implements compute.Backend. The device uses the primary context.
func (b *Backend) Open(info compute.DeviceInfo) (compute.Device, error) {
	fn, err := b.functions()
	if err != nil {
		return nil, err
	}
	var dev int32
	if err := fn.check("cuDeviceGet", fn.cuDeviceGet(&dev, int32(info.Index))); err != nil {
		return nil, err
	}
	var ctx uintptr
	if err := fn.check("cuDevicePrimaryCtxRetain", fn.cuDevicePrimaryCtxRetain(&ctx, dev)); err != nil {
		return nil, err
	}
	return &Device{flavor: b.flavor, fn: fn, info: info, dev: dev, ctx: ctx}, nil
}

// Close implements compute.Backend. Devices must be closed first.
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

// Device is an opened device bound to its primary context.
type Device struct {
	flavor *Flavor
	fn     *functions
	info   compute.DeviceInfo
	dev    int32
	ctx    uintptr

	mu     sync.Mutex
	closed bool
}

// API implements compute.Device.
func (d *Device) API() compute.API { return d.flavor.API }

// Info implements compute.Device.
func (d *Device) Info() compute.DeviceInfo { return d.info }

// enter makes the device context current on a locked OS thread. Callers
// defer the returned function.
func (d *Device) enter() (func(), error) {
	runtime.LockOSThread()
	if err := d.fn.check("cuCtxSetCurrent", d.fn.cuCtxSetCurrent(d.ctx)); err != nil {
		runtime.UnlockOSThread()
		return nil, err
	}
	return runtime.UnlockOSThread, nil
}

// within runs op with the device context current.
func (d *Device) within(op func() error) error {
	leave, err := d.enter()
	if err != nil {
		return err
	}
	defer leave()
	return op()
}

// NewStream implements compute.Device.
func (d *Device) NewStream() (compute.Stream, error) {
	leave, err := d.enter()
	if err != nil {
		return nil, err
	}
	defer leave()
	var s uintptr
	if err := d.fn.check("cuStreamCreate", d.fn.cuStreamCreate(&s, 0)); err != nil {
		return nil, err
	}
	return &stream{dev: d, h: s}, nil
}

// NewEvent implements compute.Device.
func (d *Device) NewEvent() (compute.Event, error) {
	if d.fn.cuEventCreate == nil {
		return nil, d.fn.missing("cuEventCreate", "events")
	}
	leave, err := d.enter()
	if err != nil {
		return nil, err
	}
	defer leave()
	var e uintptr
	if err := d.fn.check("cuEventCreate", d.fn.cuEventCreate(&e, eventDisableTiming)); err != nil {
		return nil, err
	}
	return &event{dev: d, h: e}, nil
}

// Alloc implements compute.Device.
func (d *Device) Alloc(size uint64) (compute.DevicePtr, error) {
	leave, err := d.enter()
	if err != nil {
		return 0, err
	}
	defer leave()
	var p uintptr
	if err := d.fn.check("cuMemAlloc", d.fn.cuMemAlloc(&p, uintptr(size))); err != nil {
		return 0, err
	}
	return compute.DevicePtr(p), nil
}

// Free implements compute.Device.
func (d *Device) Free(p compute.DevicePtr) error {
	leave, err := d.enter()
	if err != nil {
		return err
	}
	defer leave()
	return d.fn.check("cuMemFree", d.fn.cuMemFree(uintptr(p)))
}

// ImportMemory implements compute.Device. A file descriptor is duplicated
// and the driver takes ownership of the duplicate; NT handles stay owned by
// the caller.
func (d *Device) ImportMemory(h *handle.Handle, size uint64) (compute.ExternalMemory, error) {
	desc := externalMemoryHandleDesc{Size: size, Flags: externalMemoryDedicated}
	var owned *handle.Handle
	switch h.Kind() {
	case handle.KindFD:
		dup, err := h.Duplicate()
		if err != nil {
			return nil, err
		}
		owned = dup
		desc.Type = externalMemoryOpaqueFD
		desc.Handle = dup.Value()
	case handle.KindNT:
		desc.Type = externalMemoryD3D12Resource
		desc.Handle = h.Value()
	default:
		return nil, fmt.Errorf("%s: import memory: %w", d.fn.api, gpuinterop.ErrHandleExportFailed)
	}

	leave, err := d.enter()
	if err != nil {
		_ = owned.Close()
		return nil, err
	}
	defer leave()
	var m uintptr
	if err := d.fn.check("cuImportExternalMemory", d.fn.cuImportExternalMemory(&m, &desc)); err != nil {
		_ = owned.Close()
		return nil, err
	}
	owned.Release()
	return &externalMemory{dev: d, h: m}, nil
}

// ImportSemaphore implements compute.Device. Drivers that cannot import
// the fence report an unsupported-feature error.
func (d *Device) ImportSemaphore(h *handle.Handle) (compute.ExternalSemaphore, error) {
	const feature = "external semaphore"
	if d.fn.cuImportExternalSemaphore == nil {
		return nil, d.fn.missing("cuImportExternalSemaphore", feature)
	}
	var desc externalSemaphoreHandleDesc
	var owned *handle.Handle
	switch h.Kind() {
	case handle.KindFD:
		dup, err := h.Duplicate()
		if err != nil {
			return nil, err
		}
		owned = dup
		desc.Type = externalSemaphoreTimelineSemaphoreFD
		desc.Handle = dup.Value()
	case handle.KindNT:
		desc.Type = externalSemaphoreD3D12Fence
		desc.Handle = h.Value()
	default:
		return nil, fmt.Errorf("%s: import semaphore: %w", d.fn.api, gpuinterop.ErrHandleExportFailed)
	}

	leave, err := d.enter()
	if err != nil {
		_ = owned.Close()
		return nil, err
	}
	defer leave()
	var s uintptr
	r := d.fn.cuImportExternalSemaphore(&s, &desc)
	if err := d.fn.checkFeature("cuImportExternalSemaphore", feature, r, errNotSupported, errNotInit, errInvalidValue); err != nil {
		_ = owned.Close()
		return nil, err
	}
	owned.Release()
	return &semaphore{dev: d, h: s}, nil
}

func (d *Device) asStream(s compute.Stream) (*stream, error) {
	st, ok := s.(*stream)
	if !ok || st == nil || st.dev != d {
		return nil, compute.ErrForeignObject
	}
	return st, nil
}

// enqueue runs op on s between the option's event waits and record.
func (d *Device) enqueue(s compute.Stream, opts []compute.OpOption, op func(s uintptr) error) error {
	st, err := d.asStream(s)
	if err != nil {
		return err
	}
	cfg := compute.Options(opts...)
	leave, err := d.enter()
	if err != nil {
		return err
	}
	defer leave()
	for _, e := range cfg.Wait {
		ev, ok := e.(*event)
		if !ok {
			return compute.ErrForeignObject
		}
		if d.fn.cuStreamWaitEvent == nil {
			return d.fn.missing("cuStreamWaitEvent", "event wait")
		}
		if err := d.fn.check("cuStreamWaitEvent", d.fn.cuStreamWaitEvent(st.h, ev.h, 0)); err != nil {
			return err
		}
	}
	if err := op(st.h); err != nil {
		return err
	}
	if cfg.Record != nil {
		ev, ok := cfg.Record.(*event)
		if !ok {
			return compute.ErrForeignObject
		}
		if d.fn.cuEventRecord == nil {
			return d.fn.missing("cuEventRecord", "event record")
		}
		return d.fn.check("cuEventRecord", d.fn.cuEventRecord(ev.h, st.h))
	}
	return nil
}

// Copy implements compute.Device. Host memory must stay valid until the
// stream passes the copy.
func (d *Device) Copy(c *compute.Copy, s compute.Stream, opts ...compute.OpOption) error {
	if err := c.Validate(); err != nil {
		return err
	}
	for _, e := range []compute.Endpoint{c.Src, c.Dst} {
		if e.Kind == compute.MemoryArray {
			if _, ok := e.Array.(*array); !ok {
				return compute.ErrForeignObject
			}
		}
	}
	return d.enqueue(s, opts, func(s uintptr) error {
		return d.copy(c, s)
	})
}

func (d *Device) copy(c *compute.Copy, s uintptr) error {
	fn := d.fn
	if c.Linear() {
		n := uintptr(c.WidthBytes)
		src, dst := c.Src, c.Dst
		switch {
		case src.Kind == compute.MemoryDevice && dst.Kind == compute.MemoryDevice:
			return fn.check("cuMemcpyDtoDAsync", fn.cuMemcpyDtoDAsync(
				uintptr(dst.Device)+uintptr(dst.Offset), uintptr(src.Device)+uintptr(src.Offset), n, s))
		case src.Kind == compute.MemoryHost && dst.Kind == compute.MemoryDevice:
			return fn.check("cuMemcpyHtoDAsync", fn.cuMemcpyHtoDAsync(
				uintptr(dst.Device)+uintptr(dst.Offset), unsafe.Pointer(&src.Host[src.Offset]), n, s))
		case src.Kind == compute.MemoryDevice && dst.Kind == compute.MemoryHost:
			return fn.check("cuMemcpyDtoHAsync", fn.cuMemcpyDtoHAsync(
				unsafe.Pointer(&dst.Host[dst.Offset]), uintptr(src.Device)+uintptr(src.Offset), n, s))
		}
	}
	if c.Is3D() {
		if fn.cuMemcpy3DAsync == nil {
			return fn.missing("cuMemcpy3DAsync", "3D copy")
		}
		desc := d.flavor.copy3D(c)
		return fn.check("cuMemcpy3DAsync", fn.cuMemcpy3DAsync(&desc, s))
	}
	if fn.cuMemcpy2DAsync == nil {
		return fn.missing("cuMemcpy2DAsync", "2D copy")
	}
	desc := d.flavor.copy2D(c)
	return fn.check("cuMemcpy2DAsync", fn.cuMemcpy2DAsync(&desc, s))
}

// CreateTextureObject implements compute.Device.
func (d *Device) CreateTextureObject(src compute.TextureSource, desc *compute.ImageDesc, sampler *compute.SamplerDesc) (compute.TextureObject, error) {
	if d.fn.cuTexObjectCreate == nil {
		return nil, d.fn.missing("cuTexObjectCreate", "texture objects")
	}
	var rd resourceDesc
	switch {
	case src.Mipmapped != nil:
		m, ok := src.Mipmapped.(*mipmappedArray)
		if !ok {
			return nil, compute.ErrForeignObject
		}
		rd.ResType, rd.Handle = resourceTypeMipmappedArray, m.h
	case src.Level != nil:
		a, ok := src.Level.(*array)
		if !ok {
			return nil, compute.ErrForeignObject
		}
		rd.ResType, rd.Handle = resourceTypeArray, a.h
	default:
		return nil, fmt.Errorf("%s: texture object without source", d.fn.api)
	}
	td := d.flavor.textureDescriptor(sampler)

	leave, err := d.enter()
	if err != nil {
		return nil, err
	}
	defer leave()
	var t uint64
	r := d.fn.cuTexObjectCreate(&t, &rd, &td, nil)
	if err := d.fn.checkFeature("cuTexObjectCreate", "texture object", r, errInvalidValue, errNotSupported); err != nil {
		return nil, err
	}
	return &textureObject{dev: d, h: t}, nil
}

// CreateSurfaceObject implements compute.Device. The level must have been
// mapped with surface load/store enabled.
func (d *Device) CreateSurfaceObject(level compute.Array) (compute.SurfaceObject, error) {
	if d.fn.cuSurfObjectCreate == nil {
		return nil, d.fn.missing("cuSurfObjectCreate", "surface objects")
	}
	a, ok := level.(*array)
	if !ok {
		return nil, compute.ErrForeignObject
	}
	rd := resourceDesc{ResType: resourceTypeArray, Handle: a.h}

	leave, err := d.enter()
	if err != nil {
		return nil, err
	}
	defer leave()
	var s uint64
	r := d.fn.cuSurfObjectCreate(&s, &rd)
	if err := d.fn.checkFeature("cuSurfObjectCreate", "surface object", r, errInvalidValue, errNotSupported); err != nil {
		return nil, err
	}
	return &surfaceObject{dev: d, h: s}, nil
}

// Close implements compute.Device and releases the primary context.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.fn.check("cuDevicePrimaryCtxRelease", d.fn.cuDevicePrimaryCtxRelease(d.dev))
}

type stream struct {
	dev *Device
	h   uintptr
}

func (s *stream) Synchronize() error {
	leave, err := s.dev.enter()
	if err != nil {
		return err
	}
	defer leave()
	return s.dev.fn.check("cuStreamSynchronize", s.dev.fn.cuStreamSynchronize(s.h))
}

func (s *stream) Close() error {
	leave, err := s.dev.enter()
	if err != nil {
		return err
	}
	defer leave()
	return s.dev.fn.check("cuStreamDestroy", s.dev.fn.cuStreamDestroy(s.h))
}

type event struct {
	dev *Device
	h   uintptr
}

func (e *event) Synchronize() error {
	if e.dev.fn.cuEventSynchronize == nil {
		return e.dev.fn.missing("cuEventSynchronize", "events")
	}
	return e.dev.within(func() error {
		return e.dev.fn.check("cuEventSynchronize", e.dev.fn.cuEventSynchronize(e.h))
	})
}

func (e *event) Close() error {
	if e.dev.fn.cuEventDestroy == nil {
		return nil
	}
	return e.dev.within(func() error {
		return e.dev.fn.check("cuEventDestroy", e.dev.fn.cuEventDestroy(e.h))
	})
}

type array struct {
	h uintptr
}

func (a *array) Handle() uintptr { return a.h }

type mipmappedArray struct {
	dev *Device
	h   uintptr
}

func (m *mipmappedArray) Level(level uint32) (compute.Array, error) {
	fn := m.dev.fn
	if fn.cuMipmappedArrayGetLevel == nil {
		return nil, fn.missing("cuMipmappedArrayGetLevel", "mipmapped arrays")
	}
	var a uintptr
	err := m.dev.within(func() error {
		return fn.check("cuMipmappedArrayGetLevel", fn.cuMipmappedArrayGetLevel(&a, m.h, level))
	})
	if err != nil {
		return nil, err
	}
	return &array{h: a}, nil
}

func (m *mipmappedArray) Destroy() error {
	fn := m.dev.fn
	if fn.cuMipmappedArrayDestroy == nil {
		return nil
	}
	return m.dev.within(func() error {
		return fn.check("cuMipmappedArrayDestroy", fn.cuMipmappedArrayDestroy(m.h))
	})
}

type externalMemory struct {
	dev *Device
	h   uintptr
}

func (m *externalMemory) MappedBuffer(offset, size uint64) (compute.DevicePtr, error) {
	fn := m.dev.fn
	desc := externalMemoryBufferDesc{Offset: offset, Size: size}
	leave, err := m.dev.enter()
	if err != nil {
		return 0, err
	}
	defer leave()
	var p uintptr
	if err := fn.check("cuExternalMemoryGetMappedBuffer", fn.cuExternalMemoryGetMappedBuffer(&p, m.h, &desc)); err != nil {
		return 0, err
	}
	return compute.DevicePtr(p), nil
}

// MappedMipmappedArray maps an image view. Drivers reject some
// dimensionality and format combinations with an invalid-value result;
// those are reported as unsupported features.
func (m *externalMemory) MappedMipmappedArray(desc *compute.ImageDesc) (compute.MipmappedArray, error) {
	fn := m.dev.fn
	feature := fmt.Sprintf("%s %s image", desc.Type, desc.DXGIFormat)
	if fn.cuExternalMemoryGetMappedMipmappedArray == nil {
		return nil, fn.missing("cuExternalMemoryGetMappedMipmappedArray", feature)
	}
	md, err := m.dev.flavor.MipmappedArrayDesc(desc)
	if err != nil {
		return nil, err
	}
	leave, err := m.dev.enter()
	if err != nil {
		return nil, err
	}
	defer leave()
	var a uintptr
	r := fn.cuExternalMemoryGetMappedMipmappedArray(&a, m.h, md)
	runtime.KeepAlive(md)
	if err := fn.checkFeature("cuExternalMemoryGetMappedMipmappedArray", feature, r, errInvalidValue, errNotSupported); err != nil {
		return nil, err
	}
	return &mipmappedArray{dev: m.dev, h: a}, nil
}

func (m *externalMemory) Destroy() error {
	fn := m.dev.fn
	return m.dev.within(func() error {
		return fn.check("cuDestroyExternalMemory", fn.cuDestroyExternalMemory(m.h))
	})
}

type semaphore struct {
	dev *Device
	h   uintptr
}

func (s *semaphore) Signal(st compute.Stream, value uint64, opts ...compute.OpOption) error {
	fn := s.dev.fn
	if fn.cuSignalExternalSemaphoresAsync == nil {
		return fn.missing("cuSignalExternalSemaphoresAsync", "semaphore signal")
	}
	return s.dev.enqueue(st, opts, func(stream uintptr) error {
		params := externalSemaphoreSignalParams{FenceValue: value}
		h := s.h
		return fn.check("cuSignalExternalSemaphoresAsync", fn.cuSignalExternalSemaphoresAsync(&h, &params, 1, stream))
	})
}

func (s *semaphore) Wait(st compute.Stream, value uint64, opts ...compute.OpOption) error {
	fn := s.dev.fn
	if fn.cuWaitExternalSemaphoresAsync == nil {
		return fn.missing("cuWaitExternalSemaphoresAsync", "semaphore wait")
	}
	return s.dev.enqueue(st, opts, func(stream uintptr) error {
		params := externalSemaphoreWaitParams{FenceValue: value}
		h := s.h
		return fn.check("cuWaitExternalSemaphoresAsync", fn.cuWaitExternalSemaphoresAsync(&h, &params, 1, stream))
	})
}

func (s *semaphore) Destroy() error {
	fn := s.dev.fn
	if fn.cuDestroyExternalSemaphore == nil {
		return nil
	}
	return s.dev.within(func() error {
		return fn.check("cuDestroyExternalSemaphore", fn.cuDestroyExternalSemaphore(s.h))
	})
}

type textureObject struct {
	dev *Device
	h   uint64
}

func (t *textureObject) Handle() uint64 { return t.h }

func (t *textureObject) Destroy() error {
	fn := t.dev.fn
	if fn.cuTexObjectDestroy == nil {
		return nil
	}
	return t.dev.within(func() error {
		return fn.check("cuTexObjectDestroy", fn.cuTexObjectDestroy(t.h))
	})
}

type surfaceObject struct {
	dev *Device
	h   uint64
}

func (s *surfaceObject) Handle() uint64 { return s.h }

func (s *surfaceObject) Destroy() error {
	fn := s.dev.fn
	if fn.cuSurfObjectDestroy == nil {
		return nil
	}
	return s.dev.within(func() error {
		return fn.check("cuSurfObjectDestroy", fn.cuSurfObjectDestroy(s.h))
	})
}
