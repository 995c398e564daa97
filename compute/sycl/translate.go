package sycl

import "github.com/gogpu/gpuinterop/compute"

// imageDescFor translates an image descriptor. The shim picks the
// bindless image type from Type and the channel type from Kind and Bits.
func imageDescFor(desc *compute.ImageDesc) imageDesc {
	out := imageDesc{
		Type:      uint32(desc.Type),
		Channels:  uint32(desc.Format.Channels),
		Kind:      uint32(desc.Format.Kind),
		Bits:      uint32(desc.Format.Bits),
		Width:     desc.Width,
		Height:    desc.Height,
		Depth:     desc.Depth,
		Layers:    desc.Layers,
		MipLevels: desc.MipLevels,
		Flags:     uint32(desc.Flags),
	}
	for i, s := range desc.Format.Swizzle {
		out.Swizzle[i] = uint8(s)
	}
	return out
}

func samplerDescFor(s *compute.SamplerDesc) samplerDesc {
	out := samplerDesc{
		Filter:        uint32(s.Filter),
		MipFilter:     uint32(s.MipFilter),
		MaxAnisotropy: s.MaxAnisotropy,
		MipLODBias:    s.MipLODBias,
		MinLOD:        s.MinLOD,
		MaxLOD:        s.MaxLOD,
		BorderColor:   s.BorderColor,
	}
	for i, m := range s.Address {
		out.Address[i] = uint32(m)
	}
	if s.NormalizedCoords {
		out.NormalizedCoords = 1
	}
	if s.ReadAsInteger {
		out.ReadAsInteger = 1
	}
	return out
}
