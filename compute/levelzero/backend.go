package levelzero

import (
	"fmt"
	"slices"
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
	compute.Register(compute.APILevelZero, func(cfg *gpuinterop.Config) compute.Backend {
		return NewBackend(cfg)
	})
}

// Backend is the Level Zero compute backend.
type Backend struct {
	library string

	mu      sync.Mutex
	lib     *dynlib.Library
	fn      *functions
	devices []deviceHandle
}

type deviceHandle struct {
	driver, device uintptr
}

var (
	_ compute.Backend           = (*Backend)(nil)
	_ compute.Device            = (*Device)(nil)
	_ compute.Stream            = (*Stream)(nil)
	_ compute.ExternalSemaphore = (*semaphore)(nil)
	_ compute.MipmappedArray    = (*image)(nil)
)

// NewBackend returns an uninitialized backend. Config.LevelZeroLibrary
// overrides the loader name.
func NewBackend(cfg *gpuinterop.Config) *Backend {
	b := &Backend{}
	if cfg != nil {
		b.library = cfg.LevelZeroLibrary
	}
	return b
}

// API implements compute.Backend.
func (b *Backend) API() compute.API { return compute.APILevelZero }

// UnreliableLUID implements compute.Backend.
func (b *Backend) UnreliableLUID() bool { return false }

// Init implements compute.Backend.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fn != nil {
		return nil
	}
	lib, fn, err := load(b.library)
	if err != nil {
		return fmt.Errorf("levelzero: %w: %w", gpuinterop.ErrUnsupportedComputeAPI, err)
	}
	if err := check("zeInit", fn.zeInit(initFlagGPUOnly)); err != nil {
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

// enumerate calls get twice, first for the count.
func enumerate(op string, get func(count *uint32, out *uintptr) result) ([]uintptr, error) {
	var n uint32
	if err := check(op, get(&n, nil)); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]uintptr, n)
	if err := check(op, get(&n, &out[0])); err != nil {
		return nil, err
	}
	return out[:n], nil
}

func (fn *functions) extensions(driver uintptr) ([]string, error) {
	var n uint32
	if err := check("zeDriverGetExtensionProperties", fn.zeDriverGetExtensionProperties(driver, &n, nil)); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	props := make([]driverExtensionProperties, n)
	if err := check("zeDriverGetExtensionProperties", fn.zeDriverGetExtensionProperties(driver, &n, &props[0])); err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for _, p := range props[:n] {
		out = append(out, cString(p.Name[:]))
	}
	return out, nil
}

// Devices implements compute.Backend. Indices run across drivers; the LUID
// is queried only from drivers exposing the LUID extension.
func (b *Backend) Devices() ([]compute.DeviceInfo, error) {
	fn, err := b.functions()
	if err != nil {
		return nil, err
	}
	drivers, err := enumerate("zeDriverGet", fn.zeDriverGet)
	if err != nil {
		return nil, err
	}
	var (
		infos   []compute.DeviceInfo
		handles []deviceHandle
	)
	for di, drv := range drivers {
		exts, err := fn.extensions(drv)
		if err != nil {
			return nil, err
		}
		devices, err := enumerate("zeDeviceGet", func(n *uint32, out *uintptr) result {
			return fn.zeDeviceGet(drv, n, out)
		})
		if err != nil {
			return nil, err
		}
		hasLUID := slices.Contains(exts, compute.LevelZeroLUIDExtension)
		for _, dev := range devices {
			props := deviceProperties{SType: stypeDeviceProperties}
			luid := deviceLUIDProperties{SType: stypeDeviceLUIDExtProperties}
			if hasLUID {
				props.PNext = unsafe.Pointer(&luid)
			}
			if err := check("zeDeviceGetProperties", fn.zeDeviceGetProperties(dev, &props)); err != nil {
				return nil, err
			}
			info := compute.DeviceInfo{
				Index:      len(infos),
				Name:       cString(props.Name[:]),
				UUID:       props.UUID,
				HasUUID:    true,
				Driver:     di,
				Extensions: exts,
			}
			if hasLUID {
				info.LUID, info.HasLUID = dxgi.LUIDFromBytes(luid.LUID), true
			}
			infos = append(infos, info)
			handles = append(handles, deviceHandle{driver: drv, device: dev})
		}
	}
	b.mu.Lock()
	b.devices = handles
	b.mu.Unlock()
	return infos, nil
}

// Open implements compute.Backend. It creates a context on the device's
// driver.
func (b *Backend) Open(info compute.DeviceInfo) (compute.Device, error) {
	fn, err := b.functions()
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	if info.Index < 0 || info.Index >= len(b.devices) {
		b.mu.Unlock()
		return nil, fmt.Errorf("levelzero: device index %d of %d enumerated", info.Index, len(b.devices))
	}
	h := b.devices[info.Index]
	b.mu.Unlock()

	desc := contextDesc{SType: stypeContextDesc}
	var ctx uintptr
	if err := check("zeContextCreate", fn.zeContextCreate(h.driver, &desc, &ctx)); err != nil {
		return nil, err
	}
	return &Device{fn: fn, info: info, device: h.device, ctx: ctx}, nil
}

// Close implements compute.Backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lib == nil {
		return nil
	}
	err := b.lib.Close()
	b.lib, b.fn, b.devices = nil, nil, nil
	return err
}

// Device is an opened Level Zero device with its own context.
type Device struct {
	fn     *functions
	info   compute.DeviceInfo
	device uintptr
	ctx    uintptr

	closeOnce sync.Once
}

// API implements compute.Device.
func (d *Device) API() compute.API { return compute.APILevelZero }

// Info implements compute.Device.
func (d *Device) Info() compute.DeviceInfo { return d.info }

// NewStream implements compute.Device with an immediate command list.
func (d *Device) NewStream() (compute.Stream, error) {
	desc := commandQueueDesc{SType: stypeCommandQueueDesc, Mode: commandQueueModeAsync}
	var list uintptr
	if err := check("zeCommandListCreateImmediate", d.fn.zeCommandListCreateImmediate(d.ctx, d.device, &desc, &list)); err != nil {
		return nil, err
	}
	return &Stream{dev: d, list: list, immediate: true}, nil
}

// NewCommandList returns a regular command list and the queue it executes
// on. Work appended to it runs when Synchronize is called.
func (d *Device) NewCommandList() (*Stream, error) {
	qdesc := commandQueueDesc{SType: stypeCommandQueueDesc, Mode: commandQueueModeAsync}
	var q uintptr
	if err := check("zeCommandQueueCreate", d.fn.zeCommandQueueCreate(d.ctx, d.device, &qdesc, &q)); err != nil {
		return nil, err
	}
	ldesc := commandListDesc{SType: stypeCommandListDesc}
	var list uintptr
	if err := check("zeCommandListCreate", d.fn.zeCommandListCreate(d.ctx, d.device, &ldesc, &list)); err != nil {
		_ = d.fn.zeCommandQueueDestroy(q)
		return nil, err
	}
	return &Stream{dev: d, list: list, queue: q}, nil
}

// NewEvent implements compute.Device. Each event has its own host-visible
// pool.
func (d *Device) NewEvent() (compute.Event, error) {
	pdesc := eventPoolDesc{SType: stypeEventPoolDesc, Flags: eventPoolHostVisible, Count: 1}
	dev := d.device
	var pool uintptr
	if err := check("zeEventPoolCreate", d.fn.zeEventPoolCreate(d.ctx, &pdesc, 1, &dev, &pool)); err != nil {
		return nil, err
	}
	edesc := eventDesc{SType: stypeEventDesc, Signal: eventScopeHost, Wait: eventScopeHost}
	var ev uintptr
	if err := check("zeEventCreate", d.fn.zeEventCreate(pool, &edesc, &ev)); err != nil {
		_ = d.fn.zeEventPoolDestroy(pool)
		return nil, err
	}
	return &Event{dev: d, pool: pool, h: ev}, nil
}

// Alloc implements compute.Device.
func (d *Device) Alloc(size uint64) (compute.DevicePtr, error) {
	desc := deviceMemAllocDesc{SType: stypeDeviceMemAllocDesc}
	var p unsafe.Pointer
	if err := check("zeMemAllocDevice", d.fn.zeMemAllocDevice(d.ctx, &desc, uintptr(size), 64, d.device, &p)); err != nil {
		return 0, err
	}
	return compute.DevicePtr(p), nil
}

// Free implements compute.Device.
func (d *Device) Free(p compute.DevicePtr) error {
	return check("zeMemFree", d.fn.zeMemFree(d.ctx, pointer(uintptr(p))))
}

// pointer converts a device address for calls that take void*.
func pointer(p uintptr) unsafe.Pointer {
	return *(*unsafe.Pointer)(unsafe.Pointer(&p))
}

// ImportMemory implements compute.Device. Level Zero imports at allocation
// time, so the handle is duplicated and each mapping imports it again.
func (d *Device) ImportMemory(h *handle.Handle, size uint64) (compute.ExternalMemory, error) {
	dup, err := h.Duplicate()
	if err != nil {
		return nil, err
	}
	return &externalMemory{dev: d, h: dup, size: size}, nil
}

// ImportSemaphore implements compute.Device. Drivers without the external
// semaphore extension report an unsupported feature.
func (d *Device) ImportSemaphore(h *handle.Handle) (compute.ExternalSemaphore, error) {
	const feature = "external semaphore"
	if d.fn.zeDeviceImportExternalSemaphoreExt == nil {
		return nil, missing("zeDeviceImportExternalSemaphoreExt", feature)
	}
	desc := externalSemaphoreDesc{SType: stypeExternalSemaphoreDesc}
	fd := externalSemaphoreFD{SType: stypeExternalSemaphoreFD}
	win := externalSemaphoreWin32{SType: stypeExternalSemaphoreWin32}
	switch h.Kind() {
	case handle.KindFD:
		desc.Flags = externalSemaphoreOpaqueFD
		fd.FD = int32(h.FD())
		desc.PNext = unsafe.Pointer(&fd)
	case handle.KindNT:
		desc.Flags = externalSemaphoreD3D12Fence
		win.Handle = h.Value()
		desc.PNext = unsafe.Pointer(&win)
	default:
		return nil, fmt.Errorf("levelzero: import semaphore: %w", gpuinterop.ErrHandleExportFailed)
	}
	var s uintptr
	r := d.fn.zeDeviceImportExternalSemaphoreExt(d.device, &desc, &s)
	if err := checkFeature("zeDeviceImportExternalSemaphoreExt", feature, r,
		errUnsupportedFeature, errUninitialized, errUnsupportedEnumeration); err != nil {
		return nil, err
	}
	return &semaphore{dev: d, h: s}, nil
}

func (d *Device) asStream(s compute.Stream) (*Stream, error) {
	st, ok := s.(*Stream)
	if !ok || st == nil || st.dev != d {
		return nil, compute.ErrForeignObject
	}
	return st, nil
}

// append runs op on s with the option's wait list and signal event.
func (d *Device) append(s compute.Stream, opts []compute.OpOption, op func(list, signal uintptr, nWait uint32, waits *uintptr) result, name string) error {
	st, err := d.asStream(s)
	if err != nil {
		return err
	}
	cfg := compute.Options(opts...)
	waits := make([]uintptr, 0, len(cfg.Wait))
	for _, e := range cfg.Wait {
		ev, ok := e.(*Event)
		if !ok {
			return compute.ErrForeignObject
		}
		if ev.recorded.Load() {
			waits = append(waits, ev.h)
		}
	}
	var signal uintptr
	var rec *Event
	if cfg.Record != nil {
		ev, ok := cfg.Record.(*Event)
		if !ok {
			return compute.ErrForeignObject
		}
		rec, signal = ev, ev.h
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if rec != nil {
		if err := check("zeCommandListAppendEventReset", d.fn.zeCommandListAppendEventReset(st.list, signal)); err != nil {
			return err
		}
	}
	var wp *uintptr
	if len(waits) > 0 {
		wp = &waits[0]
	}
	if err := check(name, op(st.list, signal, uint32(len(waits)), wp)); err != nil {
		return err
	}
	if rec != nil {
		rec.recorded.Store(true)
	}
	return nil
}

// Copy implements compute.Device.
func (d *Device) Copy(c *compute.Copy, s compute.Stream, opts ...compute.OpOption) error {
	if err := c.Validate(); err != nil {
		return err
	}
	var src, dst *image
	if c.Src.Kind == compute.MemoryArray {
		img, ok := c.Src.Array.(*image)
		if !ok {
			return compute.ErrForeignObject
		}
		src = img
	}
	if c.Dst.Kind == compute.MemoryArray {
		img, ok := c.Dst.Array.(*image)
		if !ok {
			return compute.ErrForeignObject
		}
		dst = img
	}
	fn := d.fn

	switch {
	case src != nil && dst != nil:
		return d.append(s, opts, func(list, signal uintptr, n uint32, waits *uintptr) result {
			return fn.zeCommandListAppendImageCopy(list, dst.h, src.h, signal, n, waits)
		}, "zeCommandListAppendImageCopy")

	case dst != nil:
		region := regionFor(c, dst.elemSize)
		ptr := linearPointer(c.Src)
		row, slice, tight := linearPitches(c, c.Src)
		if tight {
			return d.append(s, opts, func(list, signal uintptr, n uint32, waits *uintptr) result {
				return fn.zeCommandListAppendImageCopyFromMemory(list, dst.h, ptr, &region, signal, n, waits)
			}, "zeCommandListAppendImageCopyFromMemory")
		}
		if fn.zeCommandListAppendImageCopyFromMemoryExt == nil {
			return missing("zeCommandListAppendImageCopyFromMemoryExt", "pitched image upload")
		}
		return d.append(s, opts, func(list, signal uintptr, n uint32, waits *uintptr) result {
			return fn.zeCommandListAppendImageCopyFromMemoryExt(list, dst.h, ptr, &region, row, slice, signal, n, waits)
		}, "zeCommandListAppendImageCopyFromMemoryExt")

	case src != nil:
		region := regionFor(c, src.elemSize)
		ptr := linearPointer(c.Dst)
		row, slice, tight := linearPitches(c, c.Dst)
		if tight {
			return d.append(s, opts, func(list, signal uintptr, n uint32, waits *uintptr) result {
				return fn.zeCommandListAppendImageCopyToMemory(list, ptr, src.h, &region, signal, n, waits)
			}, "zeCommandListAppendImageCopyToMemory")
		}
		if fn.zeCommandListAppendImageCopyToMemoryExt == nil {
			return missing("zeCommandListAppendImageCopyToMemoryExt", "pitched image readback")
		}
		return d.append(s, opts, func(list, signal uintptr, n uint32, waits *uintptr) result {
			return fn.zeCommandListAppendImageCopyToMemoryExt(list, ptr, src.h, &region, row, slice, signal, n, waits)
		}, "zeCommandListAppendImageCopyToMemoryExt")

	case c.Linear():
		dp, sp := linearPointer(c.Dst), linearPointer(c.Src)
		size := uintptr(c.WidthBytes)
		return d.append(s, opts, func(list, signal uintptr, n uint32, waits *uintptr) result {
			return fn.zeCommandListAppendMemoryCopy(list, dp, sp, size, signal, n, waits)
		}, "zeCommandListAppendMemoryCopy")

	default:
		dp, sp := linearPointer(c.Dst), linearPointer(c.Src)
		dRow, dSlice, _ := linearPitches(c, c.Dst)
		sRow, sSlice, _ := linearPitches(c, c.Src)
		region := copyRegion{Width: uint32(c.WidthBytes), Height: max(c.Height, 1), Depth: max(c.Depth, 1)}
		return d.append(s, opts, func(list, signal uintptr, n uint32, waits *uintptr) result {
			return fn.zeCommandListAppendMemoryCopyRegion(list, dp, &region, dRow, dSlice, sp, &region, sRow, sSlice, signal, n, waits)
		}, "zeCommandListAppendMemoryCopyRegion")
	}
}

// linearPointer returns the address of a host or device endpoint. Level
// Zero addresses both through unified shared memory.
func linearPointer(e compute.Endpoint) unsafe.Pointer {
	if e.Kind == compute.MemoryHost {
		return unsafe.Pointer(&e.Host[e.Offset])
	}
	return pointer(uintptr(e.Device) + uintptr(e.Offset))
}

// CreateTextureObject implements compute.Device. Level Zero has no bindless
// texture objects; the result pairs the image with a sampler.
func (d *Device) CreateTextureObject(src compute.TextureSource, desc *compute.ImageDesc, sampler *compute.SamplerDesc) (compute.TextureObject, error) {
	var img *image
	switch {
	case src.Mipmapped != nil:
		m, ok := src.Mipmapped.(*image)
		if !ok {
			return nil, compute.ErrForeignObject
		}
		img = m
	case src.Level != nil:
		a, ok := src.Level.(*image)
		if !ok {
			return nil, compute.ErrForeignObject
		}
		img = a
	default:
		return nil, fmt.Errorf("levelzero: texture object without source")
	}
	sd := samplerDescFor(sampler)
	var h uintptr
	r := d.fn.zeSamplerCreate(d.ctx, d.device, &sd, &h)
	if err := checkFeature("zeSamplerCreate", "sampler", r, errUnsupportedFeature, errUnsupportedEnumeration); err != nil {
		return nil, err
	}
	return &Texture{dev: d, image: img.h, sampler: h}, nil
}

// CreateSurfaceObject implements compute.Device. The image must have been
// created with kernel write access.
func (d *Device) CreateSurfaceObject(level compute.Array) (compute.SurfaceObject, error) {
	img, ok := level.(*image)
	if !ok {
		return nil, compute.ErrForeignObject
	}
	if !img.writable {
		return nil, gpuinterop.NewFeatureError(apiName, "kernel write", nil)
	}
	return &surface{h: img.h}, nil
}

// Close implements compute.Device.
func (d *Device) Close() error {
	var err error
	d.closeOnce.Do(func() {
		err = check("zeContextDestroy", d.fn.zeContextDestroy(d.ctx))
	})
	return err
}

// Stream is a Level Zero command list. Immediate lists execute as work is
// appended; regular lists execute on Synchronize.
type Stream struct {
	dev       *Device
	list      uintptr
	queue     uintptr
	immediate bool

	mu     sync.Mutex
	syncEv *Event
	closed bool
}

// Immediate reports whether s is an immediate command list.
func (s *Stream) Immediate() bool { return s.immediate }

// Synchronize implements compute.Stream.
func (s *Stream) Synchronize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn := s.dev.fn
	if !s.immediate {
		if err := check("zeCommandListClose", fn.zeCommandListClose(s.list)); err != nil {
			return err
		}
		list := s.list
		if err := check("zeCommandQueueExecuteCommandLists", fn.zeCommandQueueExecuteCommandLists(s.queue, 1, &list, 0)); err != nil {
			return err
		}
		if err := check("zeCommandQueueSynchronize", fn.zeCommandQueueSynchronize(s.queue, timeoutInfinite)); err != nil {
			return err
		}
		return check("zeCommandListReset", fn.zeCommandListReset(s.list))
	}
	if fn.zeCommandListHostSynchronize != nil {
		return check("zeCommandListHostSynchronize", fn.zeCommandListHostSynchronize(s.list, timeoutInfinite))
	}
	// Older loaders: signal a private event and wait for it.
	if s.syncEv == nil {
		ev, err := s.dev.NewEvent()
		if err != nil {
			return err
		}
		s.syncEv = ev.(*Event)
	}
	if err := check("zeCommandListAppendEventReset", fn.zeCommandListAppendEventReset(s.list, s.syncEv.h)); err != nil {
		return err
	}
	if err := check("zeCommandListAppendSignalEvent", fn.zeCommandListAppendSignalEvent(s.list, s.syncEv.h)); err != nil {
		return err
	}
	return check("zeEventHostSynchronize", fn.zeEventHostSynchronize(s.syncEv.h, timeoutInfinite))
}

// Close implements compute.Stream.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	fn := s.dev.fn
	err := check("zeCommandListDestroy", fn.zeCommandListDestroy(s.list))
	if s.queue != 0 {
		if qerr := check("zeCommandQueueDestroy", fn.zeCommandQueueDestroy(s.queue)); err == nil {
			err = qerr
		}
	}
	if s.syncEv != nil {
		if eerr := s.syncEv.Close(); err == nil {
			err = eerr
		}
	}
	return err
}

// Event is a host-visible Level Zero event.
type Event struct {
	dev      *Device
	pool     uintptr
	h        uintptr
	recorded atomic.Bool
}

// Synchronize implements compute.Event. An event that was never recorded
// is complete.
func (e *Event) Synchronize() error {
	if !e.recorded.Load() {
		return nil
	}
	return check("zeEventHostSynchronize", e.dev.fn.zeEventHostSynchronize(e.h, timeoutInfinite))
}

// Close implements compute.Event.
func (e *Event) Close() error {
	fn := e.dev.fn
	err := check("zeEventDestroy", fn.zeEventDestroy(e.h))
	if perr := check("zeEventPoolDestroy", fn.zeEventPoolDestroy(e.pool)); err == nil {
		err = perr
	}
	return err
}

// image is an imported Level Zero image. It is both the mipmapped array and
// its only level.
type image struct {
	dev      *Device
	h        uintptr
	elemSize uint32
	writable bool
}

func (i *image) Handle() uintptr { return i.h }

func (i *image) Level(level uint32) (compute.Array, error) {
	if level != 0 {
		return nil, gpuinterop.NewFeatureError(apiName, "image mip levels", nil)
	}
	return i, nil
}

func (i *image) Destroy() error {
	return check("zeImageDestroy", i.dev.fn.zeImageDestroy(i.h))
}

type externalMemory struct {
	dev  *Device
	h    *handle.Handle
	size uint64

	mu      sync.Mutex
	buffers []unsafe.Pointer
}

// importChain returns the import descriptor for the duplicated handle.
// The returned pointer's target must stay reachable until the call that
// consumes it returns.
func (m *externalMemory) importChain() (unsafe.Pointer, error) {
	switch m.h.Kind() {
	case handle.KindFD:
		return unsafe.Pointer(&externalMemoryImportFD{
			SType: stypeExternalMemoryImportFD,
			Flags: externalMemoryOpaqueFD,
			FD:    int32(m.h.FD()),
		}), nil
	case handle.KindNT:
		return unsafe.Pointer(&externalMemoryImportWin32{
			SType:  stypeExternalMemoryImportWin,
			Flags:  externalMemoryD3D12Resource,
			Handle: m.h.Value(),
		}), nil
	default:
		return nil, fmt.Errorf("levelzero: external memory handle released: %w", gpuinterop.ErrClosed)
	}
}

func (m *externalMemory) MappedBuffer(offset, size uint64) (compute.DevicePtr, error) {
	if offset+size > m.size {
		return 0, fmt.Errorf("levelzero: %d bytes at %d of %d-byte memory: %w", size, offset, m.size, gpuinterop.ErrCopySizeMismatch)
	}
	chain, err := m.importChain()
	if err != nil {
		return 0, err
	}
	desc := deviceMemAllocDesc{SType: stypeDeviceMemAllocDesc, PNext: chain}
	var p unsafe.Pointer
	if err := check("zeMemAllocDevice", m.dev.fn.zeMemAllocDevice(m.dev.ctx, &desc, uintptr(m.size), 64, m.dev.device, &p)); err != nil {
		return 0, err
	}
	m.mu.Lock()
	m.buffers = append(m.buffers, p)
	m.mu.Unlock()
	return compute.DevicePtr(uintptr(p) + uintptr(offset)), nil
}

// MappedMipmappedArray creates an image over the imported memory. Format
// and dimension combinations the driver rejects are unsupported features.
func (m *externalMemory) MappedMipmappedArray(desc *compute.ImageDesc) (compute.MipmappedArray, error) {
	id, err := imageDescFor(desc)
	if err != nil {
		return nil, err
	}
	chain, err := m.importChain()
	if err != nil {
		return nil, err
	}
	id.PNext = chain
	var h uintptr
	r := m.dev.fn.zeImageCreate(m.dev.ctx, m.dev.device, &id, &h)
	feature := fmt.Sprintf("%s %s image", desc.Type, desc.DXGIFormat)
	if err := checkFeature("zeImageCreate", feature, r,
		errInvalidArgument, errUnsupportedFeature, errUnsupportedImageFormat, errUnsupportedEnumeration); err != nil {
		return nil, err
	}
	return &image{
		dev:      m.dev,
		h:        h,
		elemSize: desc.Format.ElementSize(),
		writable: id.Flags&imageFlagKernelWrite != 0,
	}, nil
}

func (m *externalMemory) Destroy() error {
	m.mu.Lock()
	buffers := m.buffers
	m.buffers = nil
	m.mu.Unlock()
	var err error
	for _, p := range buffers {
		if ferr := check("zeMemFree", m.dev.fn.zeMemFree(m.dev.ctx, p)); err == nil {
			err = ferr
		}
	}
	if cerr := m.h.Close(); err == nil {
		err = cerr
	}
	return err
}

type semaphore struct {
	dev *Device
	h   uintptr
}

// enqueue appends a semaphore operation. Regular command lists are
// rejected with invalid argument by drivers, which is reported as an
// unsupported feature.
func (s *semaphore) enqueue(st compute.Stream, value uint64, stype uint32, opts []compute.OpOption, name string,
	call func(list uintptr, n uint32, sems *uintptr, params *externalSemaphoreParams, signal uintptr, nWait uint32, waits *uintptr) result) error {
	if call == nil {
		return missing(name, "external semaphore")
	}
	str, err := s.dev.asStream(st)
	if err != nil {
		return err
	}
	if !str.immediate {
		return gpuinterop.NewFeatureError(apiName, "semaphore operations on regular command lists",
			check(name, errInvalidArgument))
	}
	return s.dev.append(st, opts, func(list, signal uintptr, n uint32, waits *uintptr) result {
		params := externalSemaphoreParams{SType: stype, Value: value}
		h := s.h
		return call(list, 1, &h, &params, signal, n, waits)
	}, name)
}

func (s *semaphore) Signal(st compute.Stream, value uint64, opts ...compute.OpOption) error {
	return s.enqueue(st, value, stypeExternalSemaphoreSignal, opts,
		"zeCommandListAppendSignalExternalSemaphoreExt", s.dev.fn.zeCommandListAppendSignalExternalSemaphoreExt)
}

func (s *semaphore) Wait(st compute.Stream, value uint64, opts ...compute.OpOption) error {
	return s.enqueue(st, value, stypeExternalSemaphoreWait, opts,
		"zeCommandListAppendWaitExternalSemaphoreExt", s.dev.fn.zeCommandListAppendWaitExternalSemaphoreExt)
}

func (s *semaphore) Destroy() error {
	if s.dev.fn.zeDeviceReleaseExternalSemaphoreExt == nil {
		return nil
	}
	return check("zeDeviceReleaseExternalSemaphoreExt", s.dev.fn.zeDeviceReleaseExternalSemaphoreExt(s.h))
}

// Texture pairs an image with a sampler for kernels that take both.
type Texture struct {
	dev     *Device
	image   uintptr
	sampler uintptr
}

// Handle implements compute.TextureObject and returns the sampler.
func (t *Texture) Handle() uint64 { return uint64(t.sampler) }

// Image returns the sampled image handle.
func (t *Texture) Image() uintptr { return t.image }

// Destroy implements compute.TextureObject. The image stays owned by its
// mipmapped array.
func (t *Texture) Destroy() error {
	return check("zeSamplerDestroy", t.dev.fn.zeSamplerDestroy(t.sampler))
}

type surface struct {
	h uintptr
}

func (s *surface) Handle() uint64 { return uint64(s.h) }

func (s *surface) Destroy() error { return nil }
