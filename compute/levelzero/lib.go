package levelzero

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/internal/dynlib"
)

// functions is the loader function table. Extension entry points stay nil
// when the loader does not export them.
type functions struct {
	zeInit                         func(flags uint32) result
	zeDriverGet                    func(count *uint32, drivers *uintptr) result
	zeDriverGetExtensionProperties func(driver uintptr, count *uint32, props *driverExtensionProperties) result
	zeDeviceGet                    func(driver uintptr, count *uint32, devices *uintptr) result
	zeDeviceGetProperties          func(device uintptr, props *deviceProperties) result

	zeContextCreate  func(driver uintptr, desc *contextDesc, ctx *uintptr) result
	zeContextDestroy func(ctx uintptr) result

	zeCommandQueueCreate              func(ctx, device uintptr, desc *commandQueueDesc, q *uintptr) result
	zeCommandQueueDestroy             func(q uintptr) result
	zeCommandQueueExecuteCommandLists func(q uintptr, n uint32, lists *uintptr, fence uintptr) result
	zeCommandQueueSynchronize         func(q uintptr, timeout uint64) result

	zeCommandListCreate          func(ctx, device uintptr, desc *commandListDesc, list *uintptr) result
	zeCommandListCreateImmediate func(ctx, device uintptr, desc *commandQueueDesc, list *uintptr) result
	zeCommandListClose           func(list uintptr) result
	zeCommandListReset           func(list uintptr) result
	zeCommandListDestroy         func(list uintptr) result
	zeCommandListHostSynchronize func(list uintptr, timeout uint64) result

	zeCommandListAppendMemoryCopy             func(list uintptr, dst, src unsafe.Pointer, size uintptr, signal uintptr, nWait uint32, waits *uintptr) result
	zeCommandListAppendMemoryCopyRegion       func(list uintptr, dst unsafe.Pointer, dstRegion *copyRegion, dstPitch, dstSlicePitch uint32, src unsafe.Pointer, srcRegion *copyRegion, srcPitch, srcSlicePitch uint32, signal uintptr, nWait uint32, waits *uintptr) result
	zeCommandListAppendImageCopy              func(list, dst, src, signal uintptr, nWait uint32, waits *uintptr) result
	zeCommandListAppendImageCopyFromMemory    func(list, dst uintptr, src unsafe.Pointer, region *imageRegion, signal uintptr, nWait uint32, waits *uintptr) result
	zeCommandListAppendImageCopyToMemory      func(list uintptr, dst unsafe.Pointer, src uintptr, region *imageRegion, signal uintptr, nWait uint32, waits *uintptr) result
	zeCommandListAppendImageCopyFromMemoryExt func(list, dst uintptr, src unsafe.Pointer, region *imageRegion, rowPitch, slicePitch uint32, signal uintptr, nWait uint32, waits *uintptr) result
	zeCommandListAppendImageCopyToMemoryExt   func(list uintptr, dst unsafe.Pointer, src uintptr, region *imageRegion, rowPitch, slicePitch uint32, signal uintptr, nWait uint32, waits *uintptr) result
	zeCommandListAppendEventReset             func(list, event uintptr) result
	zeCommandListAppendWaitOnEvents           func(list uintptr, n uint32, events *uintptr) result
	zeCommandListAppendSignalEvent            func(list, event uintptr) result

	zeEventPoolCreate      func(ctx uintptr, desc *eventPoolDesc, nDevices uint32, devices *uintptr, pool *uintptr) result
	zeEventPoolDestroy     func(pool uintptr) result
	zeEventCreate          func(pool uintptr, desc *eventDesc, event *uintptr) result
	zeEventDestroy         func(event uintptr) result
	zeEventHostSynchronize func(event uintptr, timeout uint64) result

	zeMemAllocDevice func(ctx uintptr, desc *deviceMemAllocDesc, size, alignment uintptr, device uintptr, p *unsafe.Pointer) result
	zeMemFree        func(ctx uintptr, p unsafe.Pointer) result

	zeImageCreate  func(ctx, device uintptr, desc *imageDesc, image *uintptr) result
	zeImageDestroy func(image uintptr) result

	zeSamplerCreate  func(ctx, device uintptr, desc *samplerDesc, sampler *uintptr) result
	zeSamplerDestroy func(sampler uintptr) result

	zeDeviceImportExternalSemaphoreExt            func(device uintptr, desc *externalSemaphoreDesc, sem *uintptr) result
	zeDeviceReleaseExternalSemaphoreExt           func(sem uintptr) result
	zeCommandListAppendSignalExternalSemaphoreExt func(list uintptr, n uint32, sems *uintptr, params *externalSemaphoreParams, signal uintptr, nWait uint32, waits *uintptr) result
	zeCommandListAppendWaitExternalSemaphoreExt   func(list uintptr, n uint32, sems *uintptr, params *externalSemaphoreParams, signal uintptr, nWait uint32, waits *uintptr) result
}

func defaultLibraries() []string {
	if runtime.GOOS == "windows" {
		return []string{"ze_loader.dll"}
	}
	return []string{"libze_loader.so.1", "libze_loader.so"}
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
	required := []bool{
		lib.Bind(&fn.zeInit, "zeInit"),
		lib.Bind(&fn.zeDriverGet, "zeDriverGet"),
		lib.Bind(&fn.zeDriverGetExtensionProperties, "zeDriverGetExtensionProperties"),
		lib.Bind(&fn.zeDeviceGet, "zeDeviceGet"),
		lib.Bind(&fn.zeDeviceGetProperties, "zeDeviceGetProperties"),
		lib.Bind(&fn.zeContextCreate, "zeContextCreate"),
		lib.Bind(&fn.zeContextDestroy, "zeContextDestroy"),
		lib.Bind(&fn.zeCommandQueueCreate, "zeCommandQueueCreate"),
		lib.Bind(&fn.zeCommandQueueDestroy, "zeCommandQueueDestroy"),
		lib.Bind(&fn.zeCommandQueueExecuteCommandLists, "zeCommandQueueExecuteCommandLists"),
		lib.Bind(&fn.zeCommandQueueSynchronize, "zeCommandQueueSynchronize"),
		lib.Bind(&fn.zeCommandListCreate, "zeCommandListCreate"),
		lib.Bind(&fn.zeCommandListCreateImmediate, "zeCommandListCreateImmediate"),
		lib.Bind(&fn.zeCommandListClose, "zeCommandListClose"),
		lib.Bind(&fn.zeCommandListReset, "zeCommandListReset"),
		lib.Bind(&fn.zeCommandListDestroy, "zeCommandListDestroy"),
		lib.Bind(&fn.zeCommandListAppendMemoryCopy, "zeCommandListAppendMemoryCopy"),
		lib.Bind(&fn.zeCommandListAppendMemoryCopyRegion, "zeCommandListAppendMemoryCopyRegion"),
		lib.Bind(&fn.zeCommandListAppendImageCopy, "zeCommandListAppendImageCopy"),
		lib.Bind(&fn.zeCommandListAppendImageCopyFromMemory, "zeCommandListAppendImageCopyFromMemory"),
		lib.Bind(&fn.zeCommandListAppendImageCopyToMemory, "zeCommandListAppendImageCopyToMemory"),
		lib.Bind(&fn.zeCommandListAppendEventReset, "zeCommandListAppendEventReset"),
		lib.Bind(&fn.zeCommandListAppendWaitOnEvents, "zeCommandListAppendWaitOnEvents"),
		lib.Bind(&fn.zeCommandListAppendSignalEvent, "zeCommandListAppendSignalEvent"),
		lib.Bind(&fn.zeEventPoolCreate, "zeEventPoolCreate"),
		lib.Bind(&fn.zeEventPoolDestroy, "zeEventPoolDestroy"),
		lib.Bind(&fn.zeEventCreate, "zeEventCreate"),
		lib.Bind(&fn.zeEventDestroy, "zeEventDestroy"),
		lib.Bind(&fn.zeEventHostSynchronize, "zeEventHostSynchronize"),
		lib.Bind(&fn.zeMemAllocDevice, "zeMemAllocDevice"),
		lib.Bind(&fn.zeMemFree, "zeMemFree"),
		lib.Bind(&fn.zeImageCreate, "zeImageCreate"),
		lib.Bind(&fn.zeImageDestroy, "zeImageDestroy"),
		lib.Bind(&fn.zeSamplerCreate, "zeSamplerCreate"),
		lib.Bind(&fn.zeSamplerDestroy, "zeSamplerDestroy"),
	}
	for _, ok := range required {
		if !ok {
			_ = lib.Close()
			return nil, nil, fmt.Errorf("levelzero: %s lacks required entry points %v: %w",
				lib.Name(), lib.Missing(), gpuinterop.ErrUnsupportedComputeAPI)
		}
	}

	lib.Bind(&fn.zeCommandListHostSynchronize, "zeCommandListHostSynchronize")
	lib.Bind(&fn.zeCommandListAppendImageCopyFromMemoryExt, "zeCommandListAppendImageCopyFromMemoryExt")
	lib.Bind(&fn.zeCommandListAppendImageCopyToMemoryExt, "zeCommandListAppendImageCopyToMemoryExt")
	lib.Bind(&fn.zeDeviceImportExternalSemaphoreExt, "zeDeviceImportExternalSemaphoreExt")
	lib.Bind(&fn.zeDeviceReleaseExternalSemaphoreExt, "zeDeviceReleaseExternalSemaphoreExt")
	lib.Bind(&fn.zeCommandListAppendSignalExternalSemaphoreExt, "zeCommandListAppendSignalExternalSemaphoreExt")
	lib.Bind(&fn.zeCommandListAppendWaitExternalSemaphoreExt, "zeCommandListAppendWaitExternalSemaphoreExt")

	if missing := lib.Missing(); len(missing) > 0 {
		gpuinterop.Logger().Debug("levelzero: optional entry points missing", "library", lib.Name(), "symbols", missing)
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
