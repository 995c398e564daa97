package levelzero

import "unsafe"

// result is a ze_result_t.
type result uint32

// ze_result_t values the backend distinguishes.
const (
	success                   result = 0
	notReady                  result = 1
	errDeviceLost             result = 0x70000001
	errOutOfHostMemory        result = 0x70000002
	errOutOfDeviceMemory      result = 0x70000003
	errUninitialized          result = 0x78000001
	errUnsupportedVersion     result = 0x78000002
	errUnsupportedFeature     result = 0x78000003
	errInvalidArgument        result = 0x78000004
	errInvalidNullHandle      result = 0x78000005
	errInvalidEnumeration     result = 0x7800000c
	errUnsupportedEnumeration result = 0x7800000d
	errUnsupportedImageFormat result = 0x7800000e
	errUnknown                result = 0x7ffffffe
)

// ze_structure_type_t.
const (
	stypeDeviceProperties        = 0x3
	stypeContextDesc             = 0xd
	stypeCommandQueueDesc        = 0xe
	stypeCommandListDesc         = 0xf
	stypeEventPoolDesc           = 0x10
	stypeEventDesc               = 0x11
	stypeImageDesc               = 0x13
	stypeDeviceMemAllocDesc      = 0x15
	stypeExternalMemoryImportFD  = 0x19
	stypeSamplerDesc             = 0x1f
	stypeExternalMemoryImportWin = 0x22
	stypeDeviceLUIDExtProperties = 0x00010005
	stypeExternalSemaphoreDesc   = 0x00010019
	stypeExternalSemaphoreWin32  = 0x0001001a
	stypeExternalSemaphoreFD     = 0x0001001b
	stypeExternalSemaphoreSignal = 0x0001001c
	stypeExternalSemaphoreWait   = 0x0001001d
)

// ze_external_memory_type_flags_t.
const (
	externalMemoryOpaqueFD      = 0x1
	externalMemoryD3D12Resource = 0x80
)

// ze_external_semaphore_ext_flags_t.
const (
	externalSemaphoreOpaqueFD   = 0x1
	externalSemaphoreD3D12Fence = 0x8
)

const (
	initFlagGPUOnly         = 0x1
	commandQueueModeAsync   = 2
	eventPoolHostVisible    = 0x1
	eventScopeHost          = 0x4
	imageFlagKernelWrite    = 0x1
	timeoutInfinite         = ^uint64(0)
	driverExtensionNameSize = 256
)

// ze_image_type_t.
const (
	imageType1D      = 0
	imageType1DArray = 1
	imageType2D      = 2
	imageType2DArray = 3
	imageType3D      = 4
)

// ze_image_format_layout_t.
const (
	layout8           = 0
	layout16          = 1
	layout32          = 2
	layout8x2         = 3
	layout8x4         = 4
	layout16x2        = 5
	layout16x4        = 6
	layout32x2        = 7
	layout32x4        = 8
	layoutUnsupported = ^uint32(0)
)

// ze_image_format_type_t.
const (
	formatTypeUint  = 0
	formatTypeSint  = 1
	formatTypeUnorm = 2
	formatTypeSnorm = 3
	formatTypeFloat = 4
)

// ze_sampler_address_mode_t.
const (
	samplerAddressRepeat        = 1
	samplerAddressClamp         = 2
	samplerAddressClampToBorder = 3
	samplerAddressMirror        = 4
)

// ze_sampler_filter_mode_t.
const (
	samplerFilterNearest = 0
	samplerFilterLinear  = 1
)

// driverExtensionProperties is ze_driver_extension_properties_t.
type driverExtensionProperties struct {
	Name    [driverExtensionNameSize]byte
	Version uint32
}

// deviceProperties is ze_device_properties_t.
type deviceProperties struct {
	SType                    uint32
	_                        uint32
	PNext                    unsafe.Pointer
	Type                     uint32
	VendorID                 uint32
	DeviceID                 uint32
	Flags                    uint32
	SubdeviceID              uint32
	CoreClockRate            uint32
	MaxMemAllocSize          uint64
	MaxHardwareContexts      uint32
	MaxCommandQueuePriority  uint32
	NumThreadsPerEU          uint32
	PhysicalEUSimdWidth      uint32
	NumEUsPerSubslice        uint32
	NumSubslicesPerSlice     uint32
	NumSlices                uint32
	_                        uint32
	TimerResolution          uint64
	TimestampValidBits       uint32
	KernelTimestampValidBits uint32
	UUID                     [16]byte
	Name                     [256]byte
}

// deviceLUIDProperties is ze_device_luid_ext_properties_t.
type deviceLUIDProperties struct {
	SType    uint32
	_        uint32
	PNext    unsafe.Pointer
	LUID     [8]byte
	NodeMask uint32
	_        uint32
}

// contextDesc is ze_context_desc_t.
type contextDesc struct {
	SType uint32
	_     uint32
	PNext unsafe.Pointer
	Flags uint32
	_     uint32
}

// commandQueueDesc is ze_command_queue_desc_t.
type commandQueueDesc struct {
	SType    uint32
	_        uint32
	PNext    unsafe.Pointer
	Ordinal  uint32
	Index    uint32
	Flags    uint32
	Mode     uint32
	Priority uint32
	_        uint32
}

// commandListDesc is ze_command_list_desc_t.
type commandListDesc struct {
	SType                    uint32
	_                        uint32
	PNext                    unsafe.Pointer
	CommandQueueGroupOrdinal uint32
	Flags                    uint32
}

// eventPoolDesc is ze_event_pool_desc_t.
type eventPoolDesc struct {
	SType uint32
	_     uint32
	PNext unsafe.Pointer
	Flags uint32
	Count uint32
}

// eventDesc is ze_event_desc_t.
type eventDesc struct {
	SType  uint32
	_      uint32
	PNext  unsafe.Pointer
	Index  uint32
	Signal uint32
	Wait   uint32
	_      uint32
}

// deviceMemAllocDesc is ze_device_mem_alloc_desc_t.
type deviceMemAllocDesc struct {
	SType   uint32
	_       uint32
	PNext   unsafe.Pointer
	Flags   uint32
	Ordinal uint32
}

// externalMemoryImportFD is ze_external_memory_import_fd_t.
type externalMemoryImportFD struct {
	SType uint32
	_     uint32
	PNext unsafe.Pointer
	Flags uint32
	FD    int32
}

// externalMemoryImportWin32 is ze_external_memory_import_win32_handle_t.
type externalMemoryImportWin32 struct {
	SType  uint32
	_      uint32
	PNext  unsafe.Pointer
	Flags  uint32
	_      uint32
	Handle uintptr
	Name   unsafe.Pointer
}

// imageFormat is ze_image_format_t.
type imageFormat struct {
	Layout uint32
	Type   uint32
	X      uint32
	Y      uint32
	Z      uint32
	W      uint32
}

// imageDesc is ze_image_desc_t.
type imageDesc struct {
	SType       uint32
	_           uint32
	PNext       unsafe.Pointer
	Flags       uint32
	Type        uint32
	Format      imageFormat
	Width       uint64
	Height      uint32
	Depth       uint32
	ArrayLevels uint32
	MipLevels   uint32
}

// imageRegion is ze_image_region_t.
type imageRegion struct {
	OriginX, OriginY, OriginZ uint32
	Width, Height, Depth      uint32
}

// copyRegion is ze_copy_region_t.
type copyRegion struct {
	OriginX, OriginY, OriginZ uint32
	Width, Height, Depth      uint32
}

// samplerDesc is ze_sampler_desc_t.
type samplerDesc struct {
	SType        uint32
	_            uint32
	PNext        unsafe.Pointer
	AddressMode  uint32
	FilterMode   uint32
	IsNormalized uint8
	_            [7]byte
}

// externalSemaphoreDesc is ze_external_semaphore_ext_desc_t.
type externalSemaphoreDesc struct {
	SType uint32
	_     uint32
	PNext unsafe.Pointer
	Flags uint32
	_     uint32
}

// externalSemaphoreWin32 is ze_external_semaphore_win32_ext_desc_t.
type externalSemaphoreWin32 struct {
	SType  uint32
	_      uint32
	PNext  unsafe.Pointer
	Handle uintptr
	Name   unsafe.Pointer
}

// externalSemaphoreFD is ze_external_semaphore_fd_ext_desc_t.
type externalSemaphoreFD struct {
	SType uint32
	_     uint32
	PNext unsafe.Pointer
	FD    int32
	_     uint32
}

// externalSemaphoreParams is ze_external_semaphore_signal_params_ext_t and
// ze_external_semaphore_wait_params_ext_t, which share a layout.
type externalSemaphoreParams struct {
	SType uint32
	_     uint32
	PNext unsafe.Pointer
	Value uint64
}
