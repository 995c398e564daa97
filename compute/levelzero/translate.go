package levelzero

import (
	"fmt"

	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/compute"
)

func formatLayout(bits, channels uint8) uint32 {
	switch bits {
	case 8:
		switch channels {
		case 1:
			return layout8
		case 2:
			return layout8x2
		case 4:
			return layout8x4
		}
	case 16:
		switch channels {
		case 1:
			return layout16
		case 2:
			return layout16x2
		case 4:
			return layout16x4
		}
	case 32:
		switch channels {
		case 1:
			return layout32
		case 2:
			return layout32x2
		case 4:
			return layout32x4
		}
	}
	return layoutUnsupported
}

// imageFormatFor translates a channel format. Level Zero has no
// three-channel layouts; those are reported as an unsupported feature.
func imageFormatFor(cf compute.ChannelFormat) (imageFormat, error) {
	layout := formatLayout(cf.Bits, cf.Channels)
	if layout == layoutUnsupported {
		return imageFormat{}, gpuinterop.NewFeatureError(apiName,
			fmt.Sprintf("%d-channel %d-bit images", cf.Channels, cf.Bits), gpuinterop.ErrUnsupportedFormat)
	}
	var kind uint32
	switch cf.Kind {
	case compute.ChannelUnsigned:
		kind = formatTypeUint
	case compute.ChannelSigned:
		kind = formatTypeSint
	case compute.ChannelUNorm:
		kind = formatTypeUnorm
	case compute.ChannelSNorm:
		kind = formatTypeSnorm
	case compute.ChannelFloat:
		kind = formatTypeFloat
	default:
		return imageFormat{}, fmt.Errorf("levelzero: channel kind %s: %w", cf.Kind, gpuinterop.ErrUnsupportedFormat)
	}
	s := cf.Swizzle
	return imageFormat{
		Layout: layout,
		Type:   kind,
		X:      uint32(s[0]),
		Y:      uint32(s[1]),
		Z:      uint32(s[2]),
		W:      uint32(s[3]),
	}, nil
}

// imageDescFor translates an image descriptor. Only single-level images
// can be imported.
func imageDescFor(desc *compute.ImageDesc) (imageDesc, error) {
	if desc.MipLevels > 1 {
		return imageDesc{}, gpuinterop.NewFeatureError(apiName, "mipmapped external images", nil)
	}
	format, err := imageFormatFor(desc.Format)
	if err != nil {
		return imageDesc{}, err
	}
	out := imageDesc{
		SType:  stypeImageDesc,
		Format: format,
		Width:  desc.Width,
		Height: 1,
		Depth:  1,
	}
	switch desc.Type {
	case compute.Image1D:
		out.Type = imageType1D
	case compute.Image1DArray:
		out.Type = imageType1DArray
		out.ArrayLevels = desc.Layers
	case compute.Image2D:
		out.Type = imageType2D
		out.Height = desc.Height
	case compute.Image2DArray:
		out.Type = imageType2DArray
		out.Height = desc.Height
		out.ArrayLevels = desc.Layers
	case compute.Image3D:
		out.Type = imageType3D
		out.Height = desc.Height
		out.Depth = desc.Depth
	default:
		return imageDesc{}, fmt.Errorf("levelzero: image type %s: %w", desc.Type, gpuinterop.ErrUnsupportedDimension)
	}
	if desc.Flags&compute.FlagSurfaceLoadStore != 0 {
		out.Flags |= imageFlagKernelWrite
	}
	return out, nil
}

// samplerDescFor translates sampler state. Level Zero samplers carry one
// address mode for every axis; the U mode is used.
func samplerDescFor(s *compute.SamplerDesc) samplerDesc {
	out := samplerDesc{SType: stypeSamplerDesc, FilterMode: samplerFilterNearest}
	switch s.Address[0] {
	case compute.AddressClamp:
		out.AddressMode = samplerAddressClamp
	case compute.AddressMirror:
		out.AddressMode = samplerAddressMirror
	case compute.AddressBorder:
		out.AddressMode = samplerAddressClampToBorder
	default:
		out.AddressMode = samplerAddressRepeat
	}
	if s.Filter == compute.FilterLinear {
		out.FilterMode = samplerFilterLinear
	}
	if s.NormalizedCoords {
		out.IsNormalized = 1
	}
	return out
}

// regionFor returns the image region of a copy whose linear side has rows
// of c.WidthBytes bytes.
func regionFor(c *compute.Copy, elemSize uint32) imageRegion {
	return imageRegion{
		Width:  uint32(c.WidthBytes / uint64(max(elemSize, 1))),
		Height: max(c.Height, 1),
		Depth:  max(c.Depth, 1),
	}
}

// linearPitches returns the row and slice pitch of a linear endpoint and
// whether they are tightly packed.
func linearPitches(c *compute.Copy, e compute.Endpoint) (row, slice uint32, tight bool) {
	pitch := max(e.Pitch, c.WidthBytes)
	rows := uint64(max(e.Height, c.Height, 1))
	return uint32(pitch), uint32(pitch * rows), pitch == c.WidthBytes && rows == uint64(max(c.Height, 1))
}
