package cudaapi

import "unsafe"

// result is a CUresult.
type result int32

// CUresult values the backend distinguishes.
const (
	success           result = 0
	errInvalidValue   result = 1
	errOutOfMemory    result = 2
	errNotInit        result = 3
	errDeinitialized  result = 4
	errNoDevice       result = 100
	errInvalidDevice  result = 101
	errInvalidContext result = 201
	errInvalidHandle  result = 400
	errNotSupported   result = 801
)

// CUexternalMemoryHandleType.
const (
	externalMemoryOpaqueFD      = 1
	externalMemoryD3D12Resource = 4
)

// CUDA_EXTERNAL_MEMORY_DEDICATED.
const externalMemoryDedicated = 0x1

// CUexternalSemaphoreHandleType.
const (
	externalSemaphoreD3D12Fence          = 4
	externalSemaphoreTimelineSemaphoreFD = 9
)

// CUarray_format.
const (
	arrayFormatUint8  = 0x01
	arrayFormatUint16 = 0x02
	arrayFormatUint32 = 0x03
	arrayFormatSint8  = 0x08
	arrayFormatSint16 = 0x09
	arrayFormatSint32 = 0x0a
	arrayFormatHalf   = 0x10
	arrayFormatFloat  = 0x20
)

// CUDA_ARRAY3D flags.
const (
	array3DLayered         = 0x01
	array3DSurfaceLDST     = 0x02
	array3DDepthTexture    = 0x10
	array3DColorAttachment = 0x20
)

// CUmemorytype.
const (
	memoryTypeHost   = 1
	memoryTypeDevice = 2
	memoryTypeArray  = 3
)

// CUresourcetype.
const (
	resourceTypeArray          = 0
	resourceTypeMipmappedArray = 1
)

// CUaddress_mode.
const (
	addressWrap   = 0
	addressClamp  = 1
	addressMirror = 2
	addressBorder = 3
)

// CU_TRSF flags.
const (
	trsfReadAsInteger                = 0x01
	trsfNormalizedCoordinates        = 0x02
	trsfDisableTrilinearOptimization = 0x20
)

// externalMemoryHandleDesc is CUDA_EXTERNAL_MEMORY_HANDLE_DESC. The handle
// union holds an int fd or a {handle, name} pair.
type externalMemoryHandleDesc struct {
	Type     uint32
	_        uint32
	Handle   uintptr
	Name     unsafe.Pointer
	Size     uint64
	Flags    uint32
	Reserved [16]uint32
}

// externalMemoryBufferDesc is CUDA_EXTERNAL_MEMORY_BUFFER_DESC.
type externalMemoryBufferDesc struct {
	Offset   uint64
	Size     uint64
	Flags    uint32
	Reserved [16]uint32
}

// array3DDescriptor is CUDA_ARRAY3D_DESCRIPTOR.
type array3DDescriptor struct {
	Width       uintptr
	Height      uintptr
	Depth       uintptr
	Format      uint32
	NumChannels uint32
	Flags       uint32
}

// externalMemoryMipmappedArrayDesc is
// CUDA_EXTERNAL_MEMORY_MIPMAPPED_ARRAY_DESC.
type externalMemoryMipmappedArrayDesc struct {
	Offset    uint64
	ArrayDesc array3DDescriptor
	NumLevels uint32
	Reserved  [16]uint32
}

// externalSemaphoreHandleDesc is CUDA_EXTERNAL_SEMAPHORE_HANDLE_DESC.
type externalSemaphoreHandleDesc struct {
	Type     uint32
	_        uint32
	Handle   uintptr
	Name     unsafe.Pointer
	Flags    uint32
	Reserved [16]uint32
}

// externalSemaphoreSignalParams is CUDA_EXTERNAL_SEMAPHORE_SIGNAL_PARAMS.
type externalSemaphoreSignalParams struct {
	FenceValue     uint64
	NvSciSync      uint64
	KeyedMutexKey  uint64
	ParamsReserved [12]uint32
	Flags          uint32
	Reserved       [16]uint32
}

// externalSemaphoreWaitParams is CUDA_EXTERNAL_SEMAPHORE_WAIT_PARAMS.
type externalSemaphoreWaitParams struct {
	FenceValue        uint64
	NvSciSync         uint64
	KeyedMutexKey     uint64
	KeyedMutexTimeout uint32
	_                 uint32
	ParamsReserved    [10]uint32
	Flags             uint32
	Reserved          [16]uint32
}

// memcpy2D is CUDA_MEMCPY2D.
type memcpy2D struct {
	SrcXInBytes   uintptr
	SrcY          uintptr
	SrcMemoryType uint32
	_             uint32
	SrcHost       unsafe.Pointer
	SrcDevice     uintptr
	SrcArray      uintptr
	SrcPitch      uintptr

	DstXInBytes   uintptr
	DstY          uintptr
	DstMemoryType uint32
	_             uint32
	DstHost       unsafe.Pointer
	DstDevice     uintptr
	DstArray      uintptr
	DstPitch      uintptr

	WidthInBytes uintptr
	Height       uintptr
}

// memcpy3D is CUDA_MEMCPY3D.
type memcpy3D struct {
	SrcXInBytes   uintptr
	SrcY          uintptr
	SrcZ          uintptr
	SrcLOD        uintptr
	SrcMemoryType uint32
	_             uint32
	SrcHost       unsafe.Pointer
	SrcDevice     uintptr
	SrcArray      uintptr
	_             uintptr
	SrcPitch      uintptr
	SrcHeight     uintptr

	DstXInBytes   uintptr
	DstY          uintptr
	DstZ          uintptr
	DstLOD        uintptr
	DstMemoryType uint32
	_             uint32
	DstHost       unsafe.Pointer
	DstDevice     uintptr
	DstArray      uintptr
	_             uintptr
	DstPitch      uintptr
	DstHeight     uintptr

	WidthInBytes uintptr
	Height       uintptr
	Depth        uintptr
}

// resourceDesc is CUDA_RESOURCE_DESC; Handle is the first word of the
// resource union (hArray or hMipmappedArray).
type resourceDesc struct {
	ResType uint32
	_       uint32
	Handle  uintptr
	_       [15]uintptr
	Flags   uint32
	_       uint32
}

// textureDesc is CUDA_TEXTURE_DESC.
type textureDesc struct {
	AddressMode         [3]uint32
	FilterMode          uint32
	Flags               uint32
	MaxAnisotropy       uint32
	MipmapFilterMode    uint32
	MipmapLevelBias     float32
	MinMipmapLevelClamp float32
	MaxMipmapLevelClamp float32
	BorderColor         [4]float32
	Reserved            [12]int32
}
