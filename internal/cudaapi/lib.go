package cudaapi

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/internal/dynlib"
)

// functions is the driver-API function table, named after the CUDA entry
// points. Optional entries stay nil
// when the driver does not export them.
type functions struct {
	api string

	cuInit           func(flags uint32) result
	cuGetErrorString func(r result, s **byte) result
	cuGetErrorName   func(r result, s **byte) result

	cuDeviceGetCount func(count *int32) result
	cuDeviceGet      func(dev *int32, ordinal int32) result
	cuDeviceGetName  func(name *byte, n int32, dev int32) result
	cuDeviceGetLuid  func(luid *[8]byte, nodeMask *uint32, dev int32) result
	cuDeviceGetUuid  func(uuid *[16]byte, dev int32) result

	cuDevicePrimaryCtxRetain  func(ctx *uintptr, dev int32) result
	cuDevicePrimaryCtxRelease func(dev int32) result
	cuCtxSetCurrent           func(ctx uintptr) result

	cuStreamCreate      func(s *uintptr, flags uint32) result
	cuStreamSynchronize func(s uintptr) result
	cuStreamDestroy     func(s uintptr) result
	cuStreamWaitEvent   func(s, e uintptr, flags uint32) result

	cuEventCreate      func(e *uintptr, flags uint32) result
	cuEventRecord      func(e, s uintptr) result
	cuEventSynchronize func(e uintptr) result
	cuEventDestroy     func(e uintptr) result

	cuMemAlloc        func(p *uintptr, size uintptr) result
	cuMemFree         func(p uintptr) result
	cuMemcpyDtoDAsync func(dst, src, n, s uintptr) result
	cuMemcpyHtoDAsync func(dst uintptr, src unsafe.Pointer, n, s uintptr) result
	cuMemcpyDtoHAsync func(dst unsafe.Pointer, src, n, s uintptr) result
	cuMemcpy2DAsync   func(c *memcpy2D, s uintptr) result
	cuMemcpy3DAsync   func(c *memcpy3D, s uintptr) result

	cuImportExternalMemory                  func(m *uintptr, d *externalMemoryHandleDesc) result
	cuExternalMemoryGetMappedBuffer         func(p *uintptr, m uintptr, d *externalMemoryBufferDesc) result
	cuExternalMemoryGetMappedMipmappedArray func(a *uintptr, m uintptr, d unsafe.Pointer) result
	cuDestroyExternalMemory                 func(m uintptr) result
	cuMipmappedArrayGetLevel                func(a *uintptr, m uintptr, level uint32) result
	cuMipmappedArrayDestroy                 func(m uintptr) result

	cuImportExternalSemaphore       func(s *uintptr, d *externalSemaphoreHandleDesc) result
	cuSignalExternalSemaphoresAsync func(sems *uintptr, p *externalSemaphoreSignalParams, n uint32, s uintptr) result
	cuWaitExternalSemaphoresAsync   func(sems *uintptr, p *externalSemaphoreWaitParams, n uint32, s uintptr) result
	cuDestroyExternalSemaphore      func(s uintptr) result

	cuTexObjectCreate   func(t *uint64, r *resourceDesc, td *textureDesc, view unsafe.Pointer) result
	cuTexObjectDestroy  func(t uint64) result
	cuSurfObjectCreate  func(s *uint64, r *resourceDesc) result
	cuSurfObjectDestroy func(s uint64) result
}

func cudaLibraries() []string {
	if runtime.GOOS == "windows" {
		return []string{"nvcuda.dll"}
	}
	return []string{"libcuda.so.1", "libcuda.so"}
}

// load opens the driver and binds the table. It fails when a required
// entry point is missing.
func load(f *Flavor, name string) (*dynlib.Library, *functions, error) {
	names := f.Libraries
	if name != "" {
		names = []string{name}
	}
	lib, err := dynlib.Open(names...)
	if err != nil {
		return nil, nil, err
	}
	fn := &functions{api: f.API.String()}
	bind := func(fptr any, symbol string) bool {
		names := f.symbols(symbol)
		if len(names) == 0 {
			return false
		}
		return lib.BindFirst(fptr, names...)
	}
	required := []bool{
		bind(&fn.cuInit, "cuInit"),
		bind(&fn.cuDeviceGetCount, "cuDeviceGetCount"),
		bind(&fn.cuDeviceGet, "cuDeviceGet"),
		bind(&fn.cuDeviceGetName, "cuDeviceGetName"),
		bind(&fn.cuDevicePrimaryCtxRetain, "cuDevicePrimaryCtxRetain"),
		bind(&fn.cuDevicePrimaryCtxRelease, "cuDevicePrimaryCtxRelease"),
		bind(&fn.cuCtxSetCurrent, "cuCtxSetCurrent"),
		bind(&fn.cuStreamCreate, "cuStreamCreate"),
		bind(&fn.cuStreamSynchronize, "cuStreamSynchronize"),
		bind(&fn.cuStreamDestroy, "cuStreamDestroy"),
		bind(&fn.cuMemAlloc, "cuMemAlloc"),
		bind(&fn.cuMemFree, "cuMemFree"),
		bind(&fn.cuMemcpyDtoDAsync, "cuMemcpyDtoDAsync"),
		bind(&fn.cuMemcpyHtoDAsync, "cuMemcpyHtoDAsync"),
		bind(&fn.cuMemcpyDtoHAsync, "cuMemcpyDtoHAsync"),
		bind(&fn.cuImportExternalMemory, "cuImportExternalMemory"),
		bind(&fn.cuExternalMemoryGetMappedBuffer, "cuExternalMemoryGetMappedBuffer"),
		bind(&fn.cuDestroyExternalMemory, "cuDestroyExternalMemory"),
	}
	for _, ok := range required {
		if !ok {
			_ = lib.Close()
			return nil, nil, fmt.Errorf("%s: %s lacks required entry points %v: %w",
				fn.api, lib.Name(), lib.Missing(), gpuinterop.ErrUnsupportedComputeAPI)
		}
	}

	bind(&fn.cuGetErrorString, "cuGetErrorString")
	bind(&fn.cuGetErrorName, "cuGetErrorName")
	bind(&fn.cuDeviceGetLuid, "cuDeviceGetLuid")
	bind(&fn.cuDeviceGetUuid, "cuDeviceGetUuid")
	bind(&fn.cuStreamWaitEvent, "cuStreamWaitEvent")
	bind(&fn.cuEventCreate, "cuEventCreate")
	bind(&fn.cuEventRecord, "cuEventRecord")
	bind(&fn.cuEventSynchronize, "cuEventSynchronize")
	bind(&fn.cuEventDestroy, "cuEventDestroy")
	bind(&fn.cuMemcpy2DAsync, "cuMemcpy2DAsync")
	bind(&fn.cuMemcpy3DAsync, "cuMemcpy3DAsync")
	bind(&fn.cuExternalMemoryGetMappedMipmappedArray, "cuExternalMemoryGetMappedMipmappedArray")
	bind(&fn.cuMipmappedArrayGetLevel, "cuMipmappedArrayGetLevel")
	bind(&fn.cuMipmappedArrayDestroy, "cuMipmappedArrayDestroy")
	bind(&fn.cuImportExternalSemaphore, "cuImportExternalSemaphore")
	bind(&fn.cuSignalExternalSemaphoresAsync, "cuSignalExternalSemaphoresAsync")
	bind(&fn.cuWaitExternalSemaphoresAsync, "cuWaitExternalSemaphoresAsync")
	bind(&fn.cuDestroyExternalSemaphore, "cuDestroyExternalSemaphore")
	bind(&fn.cuTexObjectCreate, "cuTexObjectCreate")
	bind(&fn.cuTexObjectDestroy, "cuTexObjectDestroy")
	bind(&fn.cuSurfObjectCreate, "cuSurfObjectCreate")
	bind(&fn.cuSurfObjectDestroy, "cuSurfObjectDestroy")

	if missing := lib.Missing(); len(missing) > 0 {
		gpuinterop.Logger().Debug("cudaapi: optional entry points missing", "api", fn.api, "library", lib.Name(), "symbols", missing)
	}
	return lib, fn, nil
}

// goString converts a NUL-terminated C string.
func goString(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(p, n))
}

// cString trims a fixed-size name buffer at its terminator.
func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
