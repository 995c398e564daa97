package d3d12

import "github.com/gogpu/gputypes"

// IsPointMinMag reports whether f uses point sampling for minification and
// magnification.
func (f Filter) IsPointMinMag() bool {
	return f&0x14 == 0 && !f.IsAnisotropic()
}

// IsLinearMip reports whether f filters linearly between mip levels.
func (f Filter) IsLinearMip() bool {
	return f&0x1 != 0
}

// IsAnisotropic reports whether f is an anisotropic variant.
func (f Filter) IsAnisotropic() bool {
	return f&0x40 != 0
}

// IsComparison reports whether f is a comparison filter.
func (f Filter) IsComparison() bool {
	return f&0x180 == 0x80
}

// SamplerDescFromGPU builds a sampler from WebGPU-style state. Undefined
// address modes keep the default clamp.
func SamplerDescFromGPU(address gputypes.AddressMode, filter gputypes.FilterMode) SamplerDesc {
	s := DefaultSamplerDesc()
	mode := s.AddressU
	switch address {
	case gputypes.AddressModeRepeat:
		mode = TextureAddressModeWrap
	case gputypes.AddressModeMirrorRepeat:
		mode = TextureAddressModeMirror
	case gputypes.AddressModeClampToEdge:
		mode = TextureAddressModeClamp
	}
	s.AddressU, s.AddressV, s.AddressW = mode, mode, mode
	if filter != gputypes.FilterModeLinear {
		s.Filter = FilterMinMagMipPoint
	}
	return s
}
