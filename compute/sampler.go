package compute

import (
	"fmt"

	"github.com/gogpu/gpuinterop/d3d12"
)

// AddressMode is a backend-neutral texture addressing mode.
type AddressMode uint8

// Address modes.
const (
	AddressRepeat AddressMode = iota
	AddressClamp
	AddressMirror
	AddressBorder
)

func (m AddressMode) String() string {
	switch m {
	case AddressRepeat:
		return "repeat"
	case AddressClamp:
		return "clamp"
	case AddressMirror:
		return "mirror"
	case AddressBorder:
		return "clamp_to_border"
	default:
		return fmt.Sprintf("AddressMode(%d)", uint8(m))
	}
}

// FilterMode is point or linear filtering.
type FilterMode uint8

// Filter modes.
const (
	FilterPoint FilterMode = iota
	FilterLinear
)

// SamplerOptions are the sampler flags D3D12 has no equivalent for.
type SamplerOptions struct {
	NormalizedCoords      bool
	ReadAsInteger         bool
	TrilinearOptimization bool
}

// SamplerDesc is the backend-neutral sampler state.
type SamplerDesc struct {
	Address       [3]AddressMode
	Filter        FilterMode
	MipFilter     FilterMode
	MipLODBias    float32
	MaxAnisotropy uint32
	MinLOD        float32
	MaxLOD        float32
	BorderColor   [4]float32

	NormalizedCoords      bool
	ReadAsInteger         bool
	TrilinearOptimization bool
}

// TranslateAddressMode maps WRAP, MIRROR, MIRROR_ONCE, CLAMP and BORDER to
// repeat, mirror, mirror, clamp and clamp-to-border.
func TranslateAddressMode(m d3d12.TextureAddressMode) AddressMode {
	switch m {
	case d3d12.TextureAddressModeMirror, d3d12.TextureAddressModeMirrorOnce:
		return AddressMirror
	case d3d12.TextureAddressModeClamp:
		return AddressClamp
	case d3d12.TextureAddressModeBorder:
		return AddressBorder
	default:
		return AddressRepeat
	}
}

// TranslateFilter splits a D3D12 filter into the min/mag filter and the mip
// filter. Only the point-point variants sample with point filtering;
// anisotropic filters are linear at every stage.
func TranslateFilter(f d3d12.Filter) (filter, mip FilterMode) {
	filter, mip = FilterLinear, FilterPoint
	if f.IsPointMinMag() {
		filter = FilterPoint
	}
	if f.IsLinearMip() || f.IsAnisotropic() {
		mip = FilterLinear
	}
	return filter, mip
}

// TranslateSampler converts a D3D12 sampler. Normalized coordinates are
// forced on when mipmapped is set.
func TranslateSampler(s d3d12.SamplerDesc, opts SamplerOptions, mipmapped bool) SamplerDesc {
	filter, mip := TranslateFilter(s.Filter)
	out := SamplerDesc{
		Address: [3]AddressMode{
			TranslateAddressMode(s.AddressU),
			TranslateAddressMode(s.AddressV),
			TranslateAddressMode(s.AddressW),
		},
		Filter:                filter,
		MipFilter:             mip,
		MipLODBias:            s.MipLODBias,
		MaxAnisotropy:         s.MaxAnisotropy,
		MinLOD:                s.MinLOD,
		MaxLOD:                s.MaxLOD,
		NormalizedCoords:      opts.NormalizedCoords || mipmapped,
		ReadAsInteger:         opts.ReadAsInteger,
		TrilinearOptimization: opts.TrilinearOptimization,
	}
	copy(out.BorderColor[:], s.BorderColor[:])
	return out
}
