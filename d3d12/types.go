package d3d12

import (
	"fmt"
	"math"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpuinterop/dxgi"
)

// FeatureLevel is a D3D_FEATURE_LEVEL value.
type FeatureLevel uint32

// Feature levels.
const (
	FeatureLevel11_0 FeatureLevel = 0xb000
	FeatureLevel11_1 FeatureLevel = 0xb100
	FeatureLevel12_0 FeatureLevel = 0xc000
	FeatureLevel12_1 FeatureLevel = 0xc100
	FeatureLevel12_2 FeatureLevel = 0xc200
)

func (l FeatureLevel) String() string {
	return fmt.Sprintf("%d_%d", uint32(l)>>12, (uint32(l)>>8)&0xf)
}

// CommandListType is a D3D12_COMMAND_LIST_TYPE value.
type CommandListType uint32

// Command list types.
const (
	CommandListTypeDirect  CommandListType = 0
	CommandListTypeBundle  CommandListType = 1
	CommandListTypeCompute CommandListType = 2
	CommandListTypeCopy    CommandListType = 3
)

func (t CommandListType) String() string {
	switch t {
	case CommandListTypeDirect:
		return "direct"
	case CommandListTypeBundle:
		return "bundle"
	case CommandListTypeCompute:
		return "compute"
	case CommandListTypeCopy:
		return "copy"
	default:
		return fmt.Sprintf("CommandListType(%d)", uint32(t))
	}
}

// ResourceDimension is a D3D12_RESOURCE_DIMENSION value.
type ResourceDimension uint32

// Resource dimensions.
const (
	ResourceDimensionUnknown   ResourceDimension = 0
	ResourceDimensionBuffer    ResourceDimension = 1
	ResourceDimensionTexture1D ResourceDimension = 2
	ResourceDimensionTexture2D ResourceDimension = 3
	ResourceDimensionTexture3D ResourceDimension = 4
)

func (d ResourceDimension) String() string {
	switch d {
	case ResourceDimensionBuffer:
		return "buffer"
	case ResourceDimensionTexture1D:
		return "texture1d"
	case ResourceDimensionTexture2D:
		return "texture2d"
	case ResourceDimensionTexture3D:
		return "texture3d"
	default:
		return "unknown"
	}
}

// GPUType returns the gputypes texture dimension. Buffers and unknown
// dimensions report false.
func (d ResourceDimension) GPUType() (gputypes.TextureDimension, bool) {
	switch d {
	case ResourceDimensionTexture1D:
		return gputypes.TextureDimension1D, true
	case ResourceDimensionTexture2D:
		return gputypes.TextureDimension2D, true
	case ResourceDimensionTexture3D:
		return gputypes.TextureDimension3D, true
	default:
		return 0, false
	}
}

// TextureLayout is a D3D12_TEXTURE_LAYOUT value.
type TextureLayout uint32

// Texture layouts.
const (
	TextureLayoutUnknown  TextureLayout = 0
	TextureLayoutRowMajor TextureLayout = 1
)

// ResourceFlags is a D3D12_RESOURCE_FLAGS bitmask.
type ResourceFlags uint32

// Resource flags.
const (
	ResourceFlagNone                    ResourceFlags = 0
	ResourceFlagAllowRenderTarget       ResourceFlags = 0x1
	ResourceFlagAllowDepthStencil       ResourceFlags = 0x2
	ResourceFlagAllowUnorderedAccess    ResourceFlags = 0x4
	ResourceFlagDenyShaderResource      ResourceFlags = 0x8
	ResourceFlagAllowCrossAdapter       ResourceFlags = 0x10
	ResourceFlagAllowSimultaneousAccess ResourceFlags = 0x20
)

// SampleDesc matches DXGI_SAMPLE_DESC.
type SampleDesc struct {
	Count   uint32
	Quality uint32
}

// ResourceDesc matches D3D12_RESOURCE_DESC.
type ResourceDesc struct {
	Dimension        ResourceDimension
	Alignment        uint64
	Width            uint64
	Height           uint32
	DepthOrArraySize uint16
	MipLevels        uint16
	Format           dxgi.Format
	SampleDesc       SampleDesc
	Layout           TextureLayout
	Flags            ResourceFlags
}

// BufferDesc describes a buffer of size bytes.
func BufferDesc(size uint64, flags ResourceFlags) ResourceDesc {
	return ResourceDesc{
		Dimension:        ResourceDimensionBuffer,
		Width:            size,
		Height:           1,
		DepthOrArraySize: 1,
		MipLevels:        1,
		Format:           dxgi.FormatUnknown,
		SampleDesc:       SampleDesc{Count: 1},
		Layout:           TextureLayoutRowMajor,
		Flags:            flags,
	}
}

// Tex1DDesc describes a 1D texture (array when arraySize > 1).
func Tex1DDesc(format dxgi.Format, width uint64, arraySize, mipLevels uint16, flags ResourceFlags) ResourceDesc {
	return ResourceDesc{
		Dimension:        ResourceDimensionTexture1D,
		Width:            width,
		Height:           1,
		DepthOrArraySize: arraySize,
		MipLevels:        mipLevels,
		Format:           format,
		SampleDesc:       SampleDesc{Count: 1},
		Flags:            flags,
	}
}

// Tex2DDesc describes a 2D texture (array when arraySize > 1).
func Tex2DDesc(format dxgi.Format, width uint64, height uint32, arraySize, mipLevels uint16, flags ResourceFlags) ResourceDesc {
	return ResourceDesc{
		Dimension:        ResourceDimensionTexture2D,
		Width:            width,
		Height:           height,
		DepthOrArraySize: arraySize,
		MipLevels:        mipLevels,
		Format:           format,
		SampleDesc:       SampleDesc{Count: 1},
		Flags:            flags,
	}
}

// Tex3DDesc describes a volume texture.
func Tex3DDesc(format dxgi.Format, width uint64, height uint32, depth, mipLevels uint16, flags ResourceFlags) ResourceDesc {
	return ResourceDesc{
		Dimension:        ResourceDimensionTexture3D,
		Width:            width,
		Height:           height,
		DepthOrArraySize: depth,
		MipLevels:        mipLevels,
		Format:           format,
		SampleDesc:       SampleDesc{Count: 1},
		Flags:            flags,
	}
}

// ArraySize returns the number of array slices (1 for volume textures).
func (d *ResourceDesc) ArraySize() uint32 {
	if d.Dimension == ResourceDimensionTexture3D || d.DepthOrArraySize == 0 {
		return 1
	}
	return uint32(d.DepthOrArraySize)
}

// Depth returns the volume depth (1 for everything but 3D textures).
func (d *ResourceDesc) Depth() uint32 {
	if d.Dimension != ResourceDimensionTexture3D || d.DepthOrArraySize == 0 {
		return 1
	}
	return uint32(d.DepthOrArraySize)
}

// MipCount returns the number of mip levels; zero in the descriptor means
// a full chain.
func (d *ResourceDesc) MipCount() uint32 {
	if d.MipLevels != 0 {
		return uint32(d.MipLevels)
	}
	if d.Dimension == ResourceDimensionBuffer {
		return 1
	}
	size := d.Width
	if uint64(d.Height) > size {
		size = uint64(d.Height)
	}
	if uint64(d.Depth()) > size {
		size = uint64(d.Depth())
	}
	n := uint32(1)
	for size > 1 {
		size >>= 1
		n++
	}
	return n
}

// SubresourceCount returns mip levels times array slices.
func (d *ResourceDesc) SubresourceCount() uint32 {
	if d.Dimension == ResourceDimensionBuffer {
		return 1
	}
	return d.MipCount() * d.ArraySize()
}

// Subresource computes D3D12CalcSubresource for single-plane formats.
func (d *ResourceDesc) Subresource(mip, slice uint32) uint32 {
	return mip + slice*d.MipCount()
}

// MipExtent returns the extent of mip level mip.
func (d *ResourceDesc) MipExtent(mip uint32) (width uint64, height, depth uint32) {
	width = max(d.Width>>mip, 1)
	height = max(d.Height>>mip, 1)
	depth = max(d.Depth()>>mip, 1)
	return width, height, depth
}

// HeapType is a D3D12_HEAP_TYPE value.
type HeapType uint32

// Heap types.
const (
	HeapTypeDefault  HeapType = 1
	HeapTypeUpload   HeapType = 2
	HeapTypeReadback HeapType = 3
	HeapTypeCustom   HeapType = 4
)

// HeapProperties matches D3D12_HEAP_PROPERTIES.
type HeapProperties struct {
	Type                 HeapType
	CPUPageProperty      uint32
	MemoryPoolPreference uint32
	CreationNodeMask     uint32
	VisibleNodeMask      uint32
}

// HeapFlags is a D3D12_HEAP_FLAGS bitmask.
type HeapFlags uint32

// Heap flags.
const (
	HeapFlagNone               HeapFlags = 0
	HeapFlagShared             HeapFlags = 0x1
	HeapFlagDenyBuffers        HeapFlags = 0x4
	HeapFlagAllowDisplay       HeapFlags = 0x8
	HeapFlagSharedCrossAdapter HeapFlags = 0x20
)

// ResourceStates is a D3D12_RESOURCE_STATES bitmask.
type ResourceStates uint32

// Resource states.
const (
	ResourceStateCommon                  ResourceStates = 0
	ResourceStateVertexAndConstantBuffer ResourceStates = 0x1
	ResourceStateIndexBuffer             ResourceStates = 0x2
	ResourceStateRenderTarget            ResourceStates = 0x4
	ResourceStateUnorderedAccess         ResourceStates = 0x8
	ResourceStateDepthWrite              ResourceStates = 0x10
	ResourceStateDepthRead               ResourceStates = 0x20
	ResourceStateNonPixelShaderResource  ResourceStates = 0x40
	ResourceStatePixelShaderResource     ResourceStates = 0x80
	ResourceStateCopyDest                ResourceStates = 0x400
	ResourceStateCopySource              ResourceStates = 0x800
	ResourceStateGenericRead             ResourceStates = 0xac3
)

// ClearValue matches D3D12_CLEAR_VALUE. For depth-stencil formats the
// union holds the depth in Color[0] and the stencil in the low byte of
// Color[1]; use DepthStencilClearValue to build one.
type ClearValue struct {
	Format dxgi.Format
	Color  [4]float32
}

// DepthStencilClearValue builds a depth-stencil clear value.
func DepthStencilClearValue(format dxgi.Format, depth float32, stencil uint8) ClearValue {
	return ClearValue{
		Format: format,
		Color:  [4]float32{depth, math.Float32frombits(uint32(stencil))},
	}
}

// FenceFlags is a D3D12_FENCE_FLAGS bitmask.
type FenceFlags uint32

// Fence flags.
const (
	FenceFlagNone               FenceFlags = 0
	FenceFlagShared             FenceFlags = 0x1
	FenceFlagSharedCrossAdapter FenceFlags = 0x2
)

// SubresourceFootprint matches D3D12_SUBRESOURCE_FOOTPRINT.
type SubresourceFootprint struct {
	Format   dxgi.Format
	Width    uint32
	Height   uint32
	Depth    uint32
	RowPitch uint32
}

// PlacedSubresourceFootprint matches D3D12_PLACED_SUBRESOURCE_FOOTPRINT,
// plus the row count and unpadded row size GetCopyableFootprints reports.
type PlacedSubresourceFootprint struct {
	Offset    uint64
	Footprint SubresourceFootprint

	NumRows        uint32
	RowSizeInBytes uint64
}

// Data placement constants.
const (
	TextureDataPitchAlignment     = 256
	TextureDataPlacementAlignment = 512
)

// Filter is a D3D12_FILTER value.
type Filter uint32

// Filters. The comparison, minimum and maximum variants share the low bits
// with their plain counterparts.
const (
	FilterMinMagMipPoint             Filter = 0x0
	FilterMinMagPointMipLinear       Filter = 0x1
	FilterMinPointMagLinearMipPoint  Filter = 0x4
	FilterMinPointMagMipLinear       Filter = 0x5
	FilterMinLinearMagMipPoint       Filter = 0x10
	FilterMinLinearMagPointMipLinear Filter = 0x11
	FilterMinMagLinearMipPoint       Filter = 0x14
	FilterMinMagMipLinear            Filter = 0x15
	FilterMinMagAnisotropicMipPoint  Filter = 0x54
	FilterAnisotropic                Filter = 0x55

	FilterComparisonMinMagMipPoint  Filter = 0x80
	FilterComparisonMinMagMipLinear Filter = 0x95
	FilterComparisonAnisotropic     Filter = 0xd5
)

// TextureAddressMode is a D3D12_TEXTURE_ADDRESS_MODE value.
type TextureAddressMode uint32

// Address modes.
const (
	TextureAddressModeWrap       TextureAddressMode = 1
	TextureAddressModeMirror     TextureAddressMode = 2
	TextureAddressModeClamp      TextureAddressMode = 3
	TextureAddressModeBorder     TextureAddressMode = 4
	TextureAddressModeMirrorOnce TextureAddressMode = 5
)

// ComparisonFunc is a D3D12_COMPARISON_FUNC value.
type ComparisonFunc uint32

// Comparison functions used by samplers.
const (
	ComparisonFuncNever  ComparisonFunc = 1
	ComparisonFuncAlways ComparisonFunc = 8
)

// SamplerDesc matches D3D12_SAMPLER_DESC.
type SamplerDesc struct {
	Filter         Filter
	AddressU       TextureAddressMode
	AddressV       TextureAddressMode
	AddressW       TextureAddressMode
	MipLODBias     float32
	MaxAnisotropy  uint32
	ComparisonFunc ComparisonFunc
	BorderColor    [4]float32
	MinLOD         float32
	MaxLOD         float32
}

// DefaultSamplerDesc returns the D3D12 default sampler: trilinear, clamp,
// full LOD range.
func DefaultSamplerDesc() SamplerDesc {
	return SamplerDesc{
		Filter:         FilterMinMagMipLinear,
		AddressU:       TextureAddressModeClamp,
		AddressV:       TextureAddressModeClamp,
		AddressW:       TextureAddressModeClamp,
		MaxAnisotropy:  1,
		ComparisonFunc: ComparisonFuncNever,
		MinLOD:         0,
		MaxLOD:         math.MaxFloat32,
	}
}

// MessageSeverity is a D3D12_MESSAGE_SEVERITY value.
type MessageSeverity uint32

// Message severities.
const (
	MessageSeverityCorruption MessageSeverity = 0
	MessageSeverityError      MessageSeverity = 1
	MessageSeverityWarning    MessageSeverity = 2
	MessageSeverityInfo       MessageSeverity = 3
	MessageSeverityMessage    MessageSeverity = 4
)

// MessageID is a D3D12_MESSAGE_ID value.
type MessageID uint32

// Message IDs suppressed by the default info-queue filter.
const (
	MessageIDClearRenderTargetViewMismatchingClearValue MessageID = 820
	MessageIDMapInvalidNullRange                        MessageID = 1328
	MessageIDUnmapInvalidNullRange                      MessageID = 1329
)

// InfoQueueFilter configures the debug layer's info queue.
type InfoQueueFilter struct {
	// BreakOnSeverity lists severities that break into the debugger.
	BreakOnSeverity []MessageSeverity

	// DenyIDs lists message IDs that are never stored.
	DenyIDs []MessageID
}

// DefaultInfoQueueFilter breaks on corruption, errors and warnings and
// suppresses known noise.
func DefaultInfoQueueFilter() InfoQueueFilter {
	return InfoQueueFilter{
		BreakOnSeverity: []MessageSeverity{
			MessageSeverityCorruption,
			MessageSeverityError,
			MessageSeverityWarning,
		},
		DenyIDs: []MessageID{
			MessageIDClearRenderTargetViewMismatchingClearValue,
			MessageIDMapInvalidNullRange,
			MessageIDUnmapInvalidNullRange,
		},
	}
}

// FeatureOptions is the subset of D3D12_FEATURE_DATA_D3D12_OPTIONS the
// interop core consults.
type FeatureOptions struct {
	ROVsSupported                 bool
	TypedUAVLoadAdditionalFormats bool
	ResourceHeapTier              uint32
}
