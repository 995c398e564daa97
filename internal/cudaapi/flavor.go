// Package cudaapi implements compute.Backend over a CUDA-style driver API.
// CUDA and HIP share the object model, entry point signatures and most
// descriptor layouts; a Flavor carries what differs between them.
package cudaapi

import (
	"unsafe"

	"github.com/gogpu/gpuinterop/compute"
)

// Flavor describes one CUDA-style driver API.
type Flavor struct {
	API compute.API

	// Libraries are the default library names for this platform.
	Libraries []string

	// Symbols maps CUDA entry point names to the names this API exports,
	// most preferred first. Names absent from the map are bound as is; an
	// empty list leaves the entry unbound.
	Symbols map[string][]string

	// UnreliableLUID is reported by Backend.UnreliableLUID.
	UnreliableLUID bool

	// MemoryTypes are the host, device and array memory type values of
	// the 2D and 3D copy descriptors.
	MemoryTypes [3]uint32

	// TrilinearFlag is the texture flag that disables the trilinear
	// optimization, or 0 when the API has none.
	TrilinearFlag uint32

	// MipmappedArrayDesc builds the descriptor passed to the mapped
	// mipmapped array entry point. The returned value must stay reachable
	// until the call returns.
	MipmappedArrayDesc func(desc *compute.ImageDesc) (unsafe.Pointer, error)
}

// CUDA is the CUDA driver API flavor.
var CUDA = Flavor{
	API:           compute.APICUDA,
	Libraries:     cudaLibraries(),
	MemoryTypes:   [3]uint32{memoryTypeHost, memoryTypeDevice, memoryTypeArray},
	TrilinearFlag: trsfDisableTrilinearOptimization,
	Symbols: map[string][]string{
		"cuDevicePrimaryCtxRelease": {"cuDevicePrimaryCtxRelease_v2", "cuDevicePrimaryCtxRelease"},
		"cuDeviceGetUuid":           {"cuDeviceGetUuid_v2", "cuDeviceGetUuid"},
		"cuStreamDestroy":           {"cuStreamDestroy_v2", "cuStreamDestroy"},
		"cuEventDestroy":            {"cuEventDestroy_v2", "cuEventDestroy"},
		"cuMemAlloc":                {"cuMemAlloc_v2", "cuMemAlloc"},
		"cuMemFree":                 {"cuMemFree_v2", "cuMemFree"},
		"cuMemcpyDtoDAsync":         {"cuMemcpyDtoDAsync_v2", "cuMemcpyDtoDAsync"},
		"cuMemcpyHtoDAsync":         {"cuMemcpyHtoDAsync_v2", "cuMemcpyHtoDAsync"},
		"cuMemcpyDtoHAsync":         {"cuMemcpyDtoHAsync_v2", "cuMemcpyDtoHAsync"},
		"cuMemcpy2DAsync":           {"cuMemcpy2DAsync_v2", "cuMemcpy2DAsync"},
		"cuMemcpy3DAsync":           {"cuMemcpy3DAsync_v2", "cuMemcpy3DAsync"},
	},
	MipmappedArrayDesc: cudaMipmappedArrayDesc,
}

func cudaMipmappedArrayDesc(desc *compute.ImageDesc) (unsafe.Pointer, error) {
	ad, err := arrayDescriptor(desc)
	if err != nil {
		return nil, err
	}
	return unsafe.Pointer(&externalMemoryMipmappedArrayDesc{
		ArrayDesc: ad,
		NumLevels: desc.MipLevels,
	}), nil
}

// symbols returns the names to try for a CUDA entry point.
func (f *Flavor) symbols(name string) []string {
	if names, ok := f.Symbols[name]; ok {
		return names
	}
	return []string{name}
}
