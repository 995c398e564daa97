// Package dxgi holds the DXGI vocabulary shared by the D3D12 layer and the
// compute importers: pixel formats, adapter descriptions, LUIDs and vendor
// tags. It has no platform dependencies.
package dxgi

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Format is a DXGI_FORMAT value.
type Format uint32

// ComponentType classifies how a format's channels are interpreted.
type ComponentType uint8

// Component types.
const (
	ComponentUnknown ComponentType = iota
	ComponentTypeless
	ComponentFloat
	ComponentUNorm
	ComponentUNormSRGB
	ComponentSNorm
	ComponentUInt
	ComponentSInt
	ComponentDepth
)

func (c ComponentType) String() string {
	switch c {
	case ComponentTypeless:
		return "typeless"
	case ComponentFloat:
		return "float"
	case ComponentUNorm:
		return "unorm"
	case ComponentUNormSRGB:
		return "unorm_srgb"
	case ComponentSNorm:
		return "snorm"
	case ComponentUInt:
		return "uint"
	case ComponentSInt:
		return "sint"
	case ComponentDepth:
		return "depth"
	default:
		return "unknown"
	}
}

type formatInfo struct {
	name       string
	bits       uint32 // per element, or per 4x4 block when compressed
	channels   uint32
	component  ComponentType
	compressed bool
}

func (f Format) info() (formatInfo, bool) {
	i, ok := formatTable[f]
	return i, ok
}

// Known reports whether f is a DXGI_FORMAT value this package describes.
func (f Format) Known() bool {
	_, ok := f.info()
	return ok
}

// String returns the DXGI name without the DXGI_FORMAT_ prefix.
func (f Format) String() string {
	if i, ok := f.info(); ok {
		return i.name
	}
	return fmt.Sprintf("Format(%d)", uint32(f))
}

// BitsPerElement returns the element size in bits. For block-compressed
// formats it is the size of one 4x4 block.
func (f Format) BitsPerElement() uint32 {
	i, _ := f.info()
	return i.bits
}

// BytesPerPixel returns the element size in bytes, or 0 for
// block-compressed and sub-byte formats.
func (f Format) BytesPerPixel() uint32 {
	i, _ := f.info()
	if i.compressed || i.bits%8 != 0 {
		return 0
	}
	return i.bits / 8
}

// Channels returns the number of color or depth channels.
func (f Format) Channels() uint32 {
	i, _ := f.info()
	return i.channels
}

// Component returns the channel interpretation.
func (f Format) Component() ComponentType {
	i, _ := f.info()
	return i.component
}

// IsDepth reports whether f is a depth(-stencil) format.
func (f Format) IsDepth() bool {
	return f.Component() == ComponentDepth
}

// IsCompressed reports whether f is block-compressed.
func (f Format) IsCompressed() bool {
	i, _ := f.info()
	return i.compressed
}

// IsTypeless reports whether f is a typeless format.
func (f Format) IsTypeless() bool {
	return f.Component() == ComponentTypeless
}

// RowPitch returns the tightly packed byte size of one row of width pixels.
func (f Format) RowPitch(width uint32) uint64 {
	i, _ := f.info()
	if i.compressed {
		return uint64((width+3)/4) * uint64(i.bits/8)
	}
	return (uint64(width)*uint64(i.bits) + 7) / 8
}

// Rows returns the number of rows a surface of the given height occupies;
// block-compressed formats pack four pixel rows per row.
func (f Format) Rows(height uint32) uint32 {
	if f.IsCompressed() {
		return (height + 3) / 4
	}
	return height
}

// GPUType returns the equivalent gputypes texture format, or
// gputypes.TextureFormatUndefined when WebGPU has no counterpart.
func (f Format) GPUType() gputypes.TextureFormat {
	switch f {
	case FormatR8G8B8A8UNorm:
		return gputypes.TextureFormatRGBA8Unorm
	case FormatR8G8B8A8UNormSRGB:
		return gputypes.TextureFormatRGBA8UnormSrgb
	case FormatB8G8R8A8UNorm:
		return gputypes.TextureFormatBGRA8Unorm
	case FormatB8G8R8A8UNormSRGB:
		return gputypes.TextureFormatBGRA8UnormSrgb
	case FormatR8UNorm:
		return gputypes.TextureFormatR8Unorm
	case FormatR32Float:
		return gputypes.TextureFormatR32Float
	case FormatR32G32Float:
		return gputypes.TextureFormatRG32Float
	case FormatR32G32B32A32Float:
		return gputypes.TextureFormatRGBA32Float
	case FormatD24UNormS8UInt:
		return gputypes.TextureFormatDepth24PlusStencil8
	default:
		return gputypes.TextureFormatUndefined
	}
}

// FormatFromGPUType is the inverse of Format.GPUType. It returns
// FormatUnknown for formats without a DXGI counterpart.
func FormatFromGPUType(t gputypes.TextureFormat) Format {
	switch t {
	case gputypes.TextureFormatRGBA8Unorm:
		return FormatR8G8B8A8UNorm
	case gputypes.TextureFormatRGBA8UnormSrgb:
		return FormatR8G8B8A8UNormSRGB
	case gputypes.TextureFormatBGRA8Unorm:
		return FormatB8G8R8A8UNorm
	case gputypes.TextureFormatBGRA8UnormSrgb:
		return FormatB8G8R8A8UNormSRGB
	case gputypes.TextureFormatR8Unorm:
		return FormatR8UNorm
	case gputypes.TextureFormatR32Float:
		return FormatR32Float
	case gputypes.TextureFormatRG32Float:
		return FormatR32G32Float
	case gputypes.TextureFormatRGBA32Float:
		return FormatR32G32B32A32Float
	case gputypes.TextureFormatDepth24PlusStencil8:
		return FormatD24UNormS8UInt
	default:
		return FormatUnknown
	}
}
