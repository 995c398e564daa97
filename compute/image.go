package compute

import (
	"fmt"

	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/d3d12"
	"github.com/gogpu/gpuinterop/dxgi"
)

// ImageType is the compute-side image dimensionality.
type ImageType uint8

// Image types.
const (
	Image1D ImageType = iota + 1
	Image1DArray
	Image2D
	Image2DArray
	Image3D
)

func (t ImageType) String() string {
	switch t {
	case Image1D:
		return "1d"
	case Image1DArray:
		return "1d_array"
	case Image2D:
		return "2d"
	case Image2DArray:
		return "2d_array"
	case Image3D:
		return "3d"
	default:
		return fmt.Sprintf("ImageType(%d)", uint8(t))
	}
}

// Layered reports whether the type is an array type.
func (t ImageType) Layered() bool {
	return t == Image1DArray || t == Image2DArray
}

// ImageFlags are generic image usage flags; each backend maps the ones it
// understands.
type ImageFlags uint32

// Image flags.
const (
	// FlagColorAttachment marks render-target resources (CUDA).
	FlagColorAttachment ImageFlags = 1 << iota

	// FlagSurfaceLoadStore enables kernel writes (CUDA surface load/store,
	// Level Zero kernel write).
	FlagSurfaceLoadStore

	// FlagDepthTexture marks depth formats (CUDA).
	FlagDepthTexture

	// FlagLayered marks non-3D images with more than one layer (CUDA).
	FlagLayered
)

// ImageInfo is what the caller knows about an image it wants to import:
// the D3D12 description plus how the compute side will access it.
type ImageInfo struct {
	Desc d3d12.ResourceDesc

	// SurfaceLoadStore requests kernel write access.
	SurfaceLoadStore bool
}

// ImageDesc is the backend-neutral translation of an ImageInfo.
type ImageDesc struct {
	Type   ImageType
	Width  uint64
	Height uint32 // 1 for 1D images

	// Depth is the volume depth of 3D images, 0 otherwise.
	Depth uint32

	// Layers is the array length of layered images, 0 otherwise.
	Layers uint32

	MipLevels  uint32
	Format     ChannelFormat
	DXGIFormat dxgi.Format
	Flags      ImageFlags
}

// Extent returns width, height and depth-or-layers as a 3D memcpy extent.
func (d *ImageDesc) Extent() (width uint64, height, depth uint32) {
	switch {
	case d.Type == Image3D:
		return d.Width, d.Height, d.Depth
	case d.Type.Layered():
		return d.Width, d.Height, d.Layers
	default:
		return d.Width, d.Height, 1
	}
}

// RowPitch is width times bytes per pixel.
func (d *ImageDesc) RowPitch() uint64 {
	return d.Width * uint64(d.Format.ElementSize())
}

// SlicePitch is RowPitch times height.
func (d *ImageDesc) SlicePitch() uint64 {
	return d.RowPitch() * uint64(d.Height)
}

// NewImageDesc translates an ImageInfo. A DepthOrArraySize of 1 always
// means a non-layered image.
func NewImageDesc(info ImageInfo) (ImageDesc, error) {
	desc := info.Desc
	switch desc.Dimension {
	case d3d12.ResourceDimensionTexture1D, d3d12.ResourceDimensionTexture2D, d3d12.ResourceDimensionTexture3D:
	default:
		return ImageDesc{}, fmt.Errorf("compute: %s: %w", desc.Dimension, gpuinterop.ErrUnsupportedDimension)
	}
	format, err := TranslateFormat(desc.Format)
	if err != nil {
		return ImageDesc{}, err
	}
	out := ImageDesc{
		Width:      desc.Width,
		Height:     max(desc.Height, 1),
		MipLevels:  max(uint32(desc.MipLevels), 1),
		Format:     format,
		DXGIFormat: desc.Format,
	}

	layers := uint32(desc.DepthOrArraySize)
	switch desc.Dimension {
	case d3d12.ResourceDimensionTexture1D:
		out.Type = Image1D
		out.Height = 1
		if layers > 1 {
			out.Type = Image1DArray
			out.Layers = layers
		}
	case d3d12.ResourceDimensionTexture2D:
		out.Type = Image2D
		if layers > 1 {
			out.Type = Image2DArray
			out.Layers = layers
		}
	case d3d12.ResourceDimensionTexture3D:
		out.Type = Image3D
		out.Depth = max(layers, 1)
	}

	if desc.Flags&d3d12.ResourceFlagAllowRenderTarget != 0 {
		out.Flags |= FlagColorAttachment
	}
	if info.SurfaceLoadStore {
		out.Flags |= FlagSurfaceLoadStore
	}
	if desc.Format.IsDepth() {
		out.Flags |= FlagDepthTexture
	}
	if out.Type.Layered() {
		out.Flags |= FlagLayered
	}
	return out, nil
}
