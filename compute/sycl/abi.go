package sycl

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/internal/dynlib"
)

// status is the shim's return code.
type status int32

// Shim status codes. Codes outside this list are fatal.
const (
	statusOK                 status = 0
	statusInvalidValue       status = 1
	statusUnsupportedFeature status = 2
	statusNotInitialized     status = 3
)

// Handle types accepted by the import entry points.
const (
	handleOpaqueFD      = 1
	handleD3D12Resource = 2
	handleD3D12Fence    = 3
	handleTimelineFD    = 4
)

// Memory kinds of a copyDesc endpoint.
const (
	memoryHost   = 1
	memoryDevice = 2
	memoryImage  = 3
)

// deviceInfo is gisycl_device_info.
type deviceInfo struct {
	Name     [256]byte
	LUID     [8]byte
	HasLUID  uint32
	HasUUID  uint32
	UUID     [16]byte
	Platform uint32
	_        uint32
}

// imageDesc is gisycl_image_desc.
type imageDesc struct {
	Type      uint32
	Channels  uint32
	Kind      uint32
	Bits      uint32
	Width     uint64
	Height    uint32
	Depth     uint32
	Layers    uint32
	MipLevels uint32
	Flags     uint32
	Swizzle   [4]uint8
}

// samplerDesc is gisycl_sampler_desc.
type samplerDesc struct {
	Address          [3]uint32
	Filter           uint32
	MipFilter        uint32
	MaxAnisotropy    uint32
	MipLODBias       float32
	MinLOD           float32
	MaxLOD           float32
	BorderColor      [4]float32
	NormalizedCoords uint32
	ReadAsInteger    uint32
}

// copyEndpoint is gisycl_copy_endpoint.
type copyEndpoint struct {
	Kind   uint32
	Height uint32
	Ptr    unsafe.Pointer
	Image  uintptr
	Pitch  uint64
}

// copyDesc is gisycl_copy_desc.
type copyDesc struct {
	Src, Dst   copyEndpoint
	WidthBytes uint64
	Height     uint32
	Depth      uint32
}

// functions is the shim function table. Every entry is required.
type functions struct {
	init        func() status
	lastError   func(buf *byte, n uintptr) uintptr
	deviceCount func(n *uint32) status
	deviceInfo  func(index uint32, out *deviceInfo) status

	queueCreate  func(device uint32, q *uintptr) status
	queueWait    func(q uintptr) status
	queueDestroy func(q uintptr) status

	eventCreate  func(e *uintptr) status
	eventWait    func(e uintptr) status
	eventDestroy func(e uintptr) status

	mallocDevice func(q uintptr, size uint64, p *uintptr) status
	free         func(q, p uintptr) status
	memcpy       func(q uintptr, c *copyDesc, waits *uintptr, nWait uint32, record uintptr) status

	importMemory  func(q uintptr, kind uint32, h uintptr, size uint64, mem *uintptr) status
	mapBuffer     func(mem uintptr, offset, size uint64, p *uintptr) status
	mapImage      func(mem uintptr, desc *imageDesc, img *uintptr) status
	imageLevel    func(img uintptr, level uint32, out *uintptr) status
	freeImage     func(q, img uintptr) status
	releaseMemory func(q, mem uintptr) status

	createSampledImage   func(q, img uintptr, desc *imageDesc, s *samplerDesc, h *uint64) status
	createUnsampledImage func(q, img uintptr, desc *imageDesc, h *uint64) status
	destroyImageHandle   func(q uintptr, h uint64, sampled uint32) status

	importSemaphore  func(q uintptr, kind uint32, h uintptr, sem *uintptr) status
	signalSemaphore  func(q, sem uintptr, value uint64, waits *uintptr, nWait uint32, record uintptr) status
	waitSemaphore    func(q, sem uintptr, value uint64, waits *uintptr, nWait uint32, record uintptr) status
	releaseSemaphore func(q, sem uintptr) status
}

func defaultLibraries() []string {
	if runtime.GOOS == "windows" {
		return []string{"gpuinterop_sycl.dll"}
	}
	return []string{"libgpuinterop_sycl.so.1", "libgpuinterop_sycl.so"}
}

func load(name string) (*dynlib.Library, *functions, error) {
	names := defaultLibraries()
	if name != "" {
		names = []string{name}
	}
	lib, err := dynlib.Open(names...)
	if err != nil {
		return nil, nil, err
	}
	fn := &functions{}
	entries := []struct {
		ptr  any
		name string
	}{
		{&fn.init, "gisycl_init"},
		{&fn.lastError, "gisycl_last_error"},
		{&fn.deviceCount, "gisycl_device_count"},
		{&fn.deviceInfo, "gisycl_device_info"},
		{&fn.queueCreate, "gisycl_queue_create"},
		{&fn.queueWait, "gisycl_queue_wait"},
		{&fn.queueDestroy, "gisycl_queue_destroy"},
		{&fn.eventCreate, "gisycl_event_create"},
		{&fn.eventWait, "gisycl_event_wait"},
		{&fn.eventDestroy, "gisycl_event_destroy"},
		{&fn.mallocDevice, "gisycl_malloc_device"},
		{&fn.free, "gisycl_free"},
		{&fn.memcpy, "gisycl_memcpy"},
		{&fn.importMemory, "gisycl_import_memory"},
		{&fn.mapBuffer, "gisycl_map_buffer"},
		{&fn.mapImage, "gisycl_map_image"},
		{&fn.imageLevel, "gisycl_image_level"},
		{&fn.freeImage, "gisycl_free_image"},
		{&fn.releaseMemory, "gisycl_release_memory"},
		{&fn.createSampledImage, "gisycl_create_sampled_image"},
		{&fn.createUnsampledImage, "gisycl_create_unsampled_image"},
		{&fn.destroyImageHandle, "gisycl_destroy_image_handle"},
		{&fn.importSemaphore, "gisycl_import_semaphore"},
		{&fn.signalSemaphore, "gisycl_signal_semaphore"},
		{&fn.waitSemaphore, "gisycl_wait_semaphore"},
		{&fn.releaseSemaphore, "gisycl_release_semaphore"},
	}
	for _, e := range entries {
		lib.Bind(e.ptr, e.name)
	}
	if missing := lib.Missing(); len(missing) > 0 {
		_ = lib.Close()
		return nil, nil, fmt.Errorf("sycl: %s lacks entry points %v: %w", lib.Name(), missing, gpuinterop.ErrUnsupportedComputeAPI)
	}
	return lib, fn, nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
