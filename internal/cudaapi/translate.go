package cudaapi

import (
	"fmt"
	"unsafe"

	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/compute"
)

// arrayFormat picks the CUarray_format for a channel format. Normalized
// kinds use the integer formats of the same width; normalization is a
// texture-object property.
func arrayFormat(cf compute.ChannelFormat) (uint32, error) {
	switch cf.Kind {
	case compute.ChannelUnsigned, compute.ChannelUNorm:
		switch cf.Bits {
		case 8:
			return arrayFormatUint8, nil
		case 16:
			return arrayFormatUint16, nil
		case 32:
			return arrayFormatUint32, nil
		}
	case compute.ChannelSigned, compute.ChannelSNorm:
		switch cf.Bits {
		case 8:
			return arrayFormatSint8, nil
		case 16:
			return arrayFormatSint16, nil
		case 32:
			return arrayFormatSint32, nil
		}
	case compute.ChannelFloat:
		switch cf.Bits {
		case 16:
			return arrayFormatHalf, nil
		case 32:
			return arrayFormatFloat, nil
		}
	}
	return 0, fmt.Errorf("cudaapi: %s%d: %w", cf.Kind, cf.Bits, gpuinterop.ErrUnsupportedFormat)
}

// arrayDescriptor translates an image descriptor. CUDA encodes the
// dimensionality in which extents are zero: 1D arrays have Height 0, 2D
// arrays Depth 0, and layered arrays carry the layer count in Depth.
func arrayDescriptor(desc *compute.ImageDesc) (array3DDescriptor, error) {
	format, err := arrayFormat(desc.Format)
	if err != nil {
		return array3DDescriptor{}, err
	}
	out := array3DDescriptor{
		Width:       uintptr(desc.Width),
		Format:      format,
		NumChannels: uint32(desc.Format.Channels),
	}
	switch desc.Type {
	case compute.Image1D:
	case compute.Image1DArray:
		out.Depth = uintptr(desc.Layers)
	case compute.Image2D:
		out.Height = uintptr(desc.Height)
	case compute.Image2DArray:
		out.Height = uintptr(desc.Height)
		out.Depth = uintptr(desc.Layers)
	case compute.Image3D:
		out.Height = uintptr(desc.Height)
		out.Depth = uintptr(desc.Depth)
	default:
		return array3DDescriptor{}, fmt.Errorf("cudaapi: image type %s: %w", desc.Type, gpuinterop.ErrUnsupportedDimension)
	}
	if desc.Flags&compute.FlagColorAttachment != 0 {
		out.Flags |= array3DColorAttachment
	}
	if desc.Flags&compute.FlagSurfaceLoadStore != 0 {
		out.Flags |= array3DSurfaceLDST
	}
	if desc.Flags&compute.FlagDepthTexture != 0 {
		out.Flags |= array3DDepthTexture
	}
	if desc.Flags&compute.FlagLayered != 0 {
		out.Flags |= array3DLayered
	}
	return out, nil
}

func addressMode(m compute.AddressMode) uint32 {
	switch m {
	case compute.AddressClamp:
		return addressClamp
	case compute.AddressMirror:
		return addressMirror
	case compute.AddressBorder:
		return addressBorder
	default:
		return addressWrap
	}
}

// textureDescriptor translates sampler state.
func (f *Flavor) textureDescriptor(s *compute.SamplerDesc) textureDesc {
	td := textureDesc{
		AddressMode: [3]uint32{
			addressMode(s.Address[0]),
			addressMode(s.Address[1]),
			addressMode(s.Address[2]),
		},
		FilterMode:          uint32(s.Filter),
		MaxAnisotropy:       s.MaxAnisotropy,
		MipmapFilterMode:    uint32(s.MipFilter),
		MipmapLevelBias:     s.MipLODBias,
		MinMipmapLevelClamp: s.MinLOD,
		MaxMipmapLevelClamp: s.MaxLOD,
		BorderColor:         s.BorderColor,
	}
	if s.NormalizedCoords {
		td.Flags |= trsfNormalizedCoordinates
	}
	if s.ReadAsInteger {
		td.Flags |= trsfReadAsInteger
	}
	if !s.TrilinearOptimization {
		td.Flags |= f.TrilinearFlag
	}
	return td
}

// endpoint is one side of a CUDA_MEMCPY2D/3D.
type endpoint struct {
	memoryType uint32
	host       unsafe.Pointer
	device     uintptr
	array      uintptr
	pitch      uintptr
	height     uintptr
}

func (f *Flavor) copyEndpoint(e compute.Endpoint, c *compute.Copy) endpoint {
	out := endpoint{
		pitch:  uintptr(max(e.Pitch, c.WidthBytes)),
		height: uintptr(max(e.Height, c.Height, 1)),
	}
	switch e.Kind {
	case compute.MemoryHost:
		out.memoryType = f.MemoryTypes[0]
		out.host = unsafe.Pointer(unsafe.SliceData(e.Host[e.Offset:]))
	case compute.MemoryDevice:
		out.memoryType = f.MemoryTypes[1]
		out.device = uintptr(e.Device) + uintptr(e.Offset)
	case compute.MemoryArray:
		out.memoryType = f.MemoryTypes[2]
		out.array = e.Array.Handle()
		out.pitch, out.height = 0, 0
	}
	return out
}

func (f *Flavor) copy2D(c *compute.Copy) memcpy2D {
	src, dst := f.copyEndpoint(c.Src, c), f.copyEndpoint(c.Dst, c)
	return memcpy2D{
		SrcMemoryType: src.memoryType,
		SrcHost:       src.host,
		SrcDevice:     src.device,
		SrcArray:      src.array,
		SrcPitch:      src.pitch,
		DstMemoryType: dst.memoryType,
		DstHost:       dst.host,
		DstDevice:     dst.device,
		DstArray:      dst.array,
		DstPitch:      dst.pitch,
		WidthInBytes:  uintptr(c.WidthBytes),
		Height:        uintptr(max(c.Height, 1)),
	}
}

func (f *Flavor) copy3D(c *compute.Copy) memcpy3D {
	src, dst := f.copyEndpoint(c.Src, c), f.copyEndpoint(c.Dst, c)
	return memcpy3D{
		SrcMemoryType: src.memoryType,
		SrcHost:       src.host,
		SrcDevice:     src.device,
		SrcArray:      src.array,
		SrcPitch:      src.pitch,
		SrcHeight:     src.height,
		DstMemoryType: dst.memoryType,
		DstHost:       dst.host,
		DstDevice:     dst.device,
		DstArray:      dst.array,
		DstPitch:      dst.pitch,
		DstHeight:     dst.height,
		WidthInBytes:  uintptr(c.WidthBytes),
		Height:        uintptr(max(c.Height, 1)),
		Depth:         uintptr(max(c.Depth, 1)),
	}
}
