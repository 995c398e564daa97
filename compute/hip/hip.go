package hip

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/compute"
	"github.com/gogpu/gpuinterop/internal/cudaapi"
)

func init() {
	compute.Register(compute.APIHIP, func(cfg *gpuinterop.Config) compute.Backend {
		return NewBackend(cfg)
	})
}

// NewBackend returns an uninitialized HIP backend. Config.HIPLibrary
// overrides the runtime library name.
func NewBackend(cfg *gpuinterop.Config) compute.Backend {
	var library string
	if cfg != nil {
		library = cfg.HIPLibrary
	}
	return cudaapi.NewBackend(&flavor, library)
}

// hipMemoryType values.
const (
	memoryTypeHost   = 1
	memoryTypeDevice = 2
	memoryTypeArray  = 10
)

var flavor = cudaapi.Flavor{
	API:                compute.APIHIP,
	Libraries:          libraries(),
	UnreliableLUID:     true,
	MemoryTypes:        [3]uint32{memoryTypeHost, memoryTypeDevice, memoryTypeArray},
	MipmappedArrayDesc: mipmappedArrayDesc,
	Symbols: map[string][]string{
		"cuInit":                                  {"hipInit"},
		"cuGetErrorString":                        {"hipDrvGetErrorString"},
		"cuGetErrorName":                          {"hipDrvGetErrorName"},
		"cuDeviceGetCount":                        {"hipGetDeviceCount"},
		"cuDeviceGet":                             {"hipDeviceGet"},
		"cuDeviceGetName":                         {"hipDeviceGetName"},
		"cuDeviceGetLuid":                         {},
		"cuDeviceGetUuid":                         {"hipDeviceGetUuid"},
		"cuDevicePrimaryCtxRetain":                {"hipDevicePrimaryCtxRetain"},
		"cuDevicePrimaryCtxRelease":               {"hipDevicePrimaryCtxRelease"},
		"cuCtxSetCurrent":                         {"hipCtxSetCurrent"},
		"cuStreamCreate":                          {"hipStreamCreateWithFlags"},
		"cuStreamSynchronize":                     {"hipStreamSynchronize"},
		"cuStreamDestroy":                         {"hipStreamDestroy"},
		"cuStreamWaitEvent":                       {"hipStreamWaitEvent"},
		"cuEventCreate":                           {"hipEventCreateWithFlags"},
		"cuEventRecord":                           {"hipEventRecord"},
		"cuEventSynchronize":                      {"hipEventSynchronize"},
		"cuEventDestroy":                          {"hipEventDestroy"},
		"cuMemAlloc":                              {"hipMalloc"},
		"cuMemFree":                               {"hipFree"},
		"cuMemcpyDtoDAsync":                       {"hipMemcpyDtoDAsync"},
		"cuMemcpyHtoDAsync":                       {"hipMemcpyHtoDAsync"},
		"cuMemcpyDtoHAsync":                       {"hipMemcpyDtoHAsync"},
		"cuMemcpy2DAsync":                         {"hipMemcpyParam2DAsync"},
		"cuMemcpy3DAsync":                         {"hipDrvMemcpy3DAsync"},
		"cuImportExternalMemory":                  {"hipImportExternalMemory"},
		"cuExternalMemoryGetMappedBuffer":         {"hipExternalMemoryGetMappedBuffer"},
		"cuExternalMemoryGetMappedMipmappedArray": {"hipExternalMemoryGetMappedMipmappedArray"},
		"cuDestroyExternalMemory":                 {"hipDestroyExternalMemory"},
		"cuMipmappedArrayGetLevel":                {"hipMipmappedArrayGetLevel"},
		"cuMipmappedArrayDestroy":                 {"hipMipmappedArrayDestroy"},
		"cuImportExternalSemaphore":               {"hipImportExternalSemaphore"},
		"cuSignalExternalSemaphoresAsync":         {"hipSignalExternalSemaphoresAsync"},
		"cuWaitExternalSemaphoresAsync":           {"hipWaitExternalSemaphoresAsync"},
		"cuDestroyExternalSemaphore":              {"hipDestroyExternalSemaphore"},
		"cuTexObjectCreate":                       {"hipTexObjectCreate"},
		"cuTexObjectDestroy":                      {"hipTexObjectDestroy"},
		"cuSurfObjectCreate":                      {"hipCreateSurfaceObject"},
		"cuSurfObjectDestroy":                     {"hipDestroySurfaceObject"},
	},
}

func libraries() []string {
	if runtime.GOOS == "windows" {
		return []string{"amdhip64_6.dll", "amdhip64.dll"}
	}
	return []string{"libamdhip64.so.6", "libamdhip64.so"}
}

// hipChannelFormatKind values.
const (
	channelSigned   = 0
	channelUnsigned = 1
	channelFloat    = 2
)

// hipArray flags.
const (
	arrayLayered          = 0x01
	arraySurfaceLoadStore = 0x02
)

// channelFormatDesc is hipChannelFormatDesc.
type channelFormatDesc struct {
	X, Y, Z, W int32
	Kind       uint32
}

// extent is hipExtent.
type extent struct {
	Width, Height, Depth uintptr
}

// mipmappedArrayDescriptor is hipExternalMemoryMipmappedArrayDesc, which
// uses the runtime's channel and extent types rather than an array
// descriptor.
type mipmappedArrayDescriptor struct {
	Offset    uint64
	Format    channelFormatDesc
	_         uint32
	Extent    extent
	Flags     uint32
	NumLevels uint32
	Reserved  [16]uint32
}

func channelFormat(cf compute.ChannelFormat) (channelFormatDesc, error) {
	var kind uint32
	switch cf.Kind {
	case compute.ChannelUnsigned, compute.ChannelUNorm:
		kind = channelUnsigned
	case compute.ChannelSigned, compute.ChannelSNorm:
		kind = channelSigned
	case compute.ChannelFloat:
		kind = channelFloat
	default:
		return channelFormatDesc{}, fmt.Errorf("hip: %s: %w", cf.Kind, gpuinterop.ErrUnsupportedFormat)
	}
	var bits [4]int32
	for i := range min(int(cf.Channels), 4) {
		bits[i] = int32(cf.Bits)
	}
	return channelFormatDesc{X: bits[0], Y: bits[1], Z: bits[2], W: bits[3], Kind: kind}, nil
}

// mipmappedArrayDescriptorFor translates desc. Like the array descriptor,
// the extent encodes dimensionality through zero height or depth.
func mipmappedArrayDescriptorFor(desc *compute.ImageDesc) (mipmappedArrayDescriptor, error) {
	cf, err := channelFormat(desc.Format)
	if err != nil {
		return mipmappedArrayDescriptor{}, err
	}
	out := mipmappedArrayDescriptor{
		Format:    cf,
		Extent:    extent{Width: uintptr(desc.Width)},
		NumLevels: desc.MipLevels,
	}
	switch desc.Type {
	case compute.Image1D:
	case compute.Image1DArray:
		out.Extent.Depth = uintptr(desc.Layers)
		out.Flags |= arrayLayered
	case compute.Image2D:
		out.Extent.Height = uintptr(desc.Height)
	case compute.Image2DArray:
		out.Extent.Height = uintptr(desc.Height)
		out.Extent.Depth = uintptr(desc.Layers)
		out.Flags |= arrayLayered
	case compute.Image3D:
		out.Extent.Height = uintptr(desc.Height)
		out.Extent.Depth = uintptr(desc.Depth)
	default:
		return mipmappedArrayDescriptor{}, fmt.Errorf("hip: image type %s: %w", desc.Type, gpuinterop.ErrUnsupportedDimension)
	}
	if desc.Flags&compute.FlagSurfaceLoadStore != 0 {
		out.Flags |= arraySurfaceLoadStore
	}
	return out, nil
}

func mipmappedArrayDesc(desc *compute.ImageDesc) (unsafe.Pointer, error) {
	md, err := mipmappedArrayDescriptorFor(desc)
	if err != nil {
		return nil, err
	}
	return unsafe.Pointer(&md), nil
}
