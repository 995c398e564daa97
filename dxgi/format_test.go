package dxgi

import (
	"testing"

	"github.com/gogpu/gputypes"
)

func TestFormatMetadata(t *testing.T) {
	tests := []struct {
		format    Format
		name      string
		bpp       uint32
		channels  uint32
		component ComponentType
	}{
		{FormatR8G8B8A8UNorm, "R8G8B8A8_UNORM", 4, 4, ComponentUNorm},
		{FormatB8G8R8A8UNorm, "B8G8R8A8_UNORM", 4, 4, ComponentUNorm},
		{FormatR32Float, "R32_FLOAT", 4, 1, ComponentFloat},
		{FormatR32G32B32Float, "R32G32B32_FLOAT", 12, 3, ComponentFloat},
		{FormatR16G16B16A16SNorm, "R16G16B16A16_SNORM", 8, 4, ComponentSNorm},
		{FormatR8G8UInt, "R8G8_UINT", 2, 2, ComponentUInt},
		{FormatR16SInt, "R16_SINT", 2, 1, ComponentSInt},
		{FormatD32Float, "D32_FLOAT", 4, 1, ComponentDepth},
		{FormatD16UNorm, "D16_UNORM", 2, 1, ComponentDepth},
		{FormatB8G8R8X8Typeless, "B8G8R8X8_TYPELESS", 4, 3, ComponentTypeless},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.format.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
			if got := tt.format.BytesPerPixel(); got != tt.bpp {
				t.Errorf("BytesPerPixel() = %d, want %d", got, tt.bpp)
			}
			if got := tt.format.Channels(); got != tt.channels {
				t.Errorf("Channels() = %d, want %d", got, tt.channels)
			}
			if got := tt.format.Component(); got != tt.component {
				t.Errorf("Component() = %v, want %v", got, tt.component)
			}
		})
	}
}

func TestFormatUnknownValue(t *testing.T) {
	f := Format(200)
	if f.Known() {
		t.Error("Format(200) should be unknown")
	}
	if f.String() != "Format(200)" {
		t.Errorf("String() = %q", f.String())
	}
	if f.BytesPerPixel() != 0 {
		t.Error("unknown format must report zero size")
	}
}

func TestCompressedPitch(t *testing.T) {
	if !FormatBC1UNorm.IsCompressed() {
		t.Fatal("BC1 must be compressed")
	}
	if got := FormatBC1UNorm.RowPitch(16); got != 32 {
		t.Errorf("BC1 RowPitch(16) = %d, want 32", got)
	}
	if got := FormatBC7UNorm.RowPitch(5); got != 32 {
		t.Errorf("BC7 RowPitch(5) = %d, want 32", got)
	}
	if got := FormatBC1UNorm.Rows(10); got != 3 {
		t.Errorf("BC1 Rows(10) = %d, want 3", got)
	}
	if FormatBC1UNorm.BytesPerPixel() != 0 {
		t.Error("compressed formats have no per-pixel size")
	}
}

func TestRowPitch(t *testing.T) {
	if got := FormatR8G8B8A8UNorm.RowPitch(256); got != 1024 {
		t.Errorf("RowPitch(256) = %d, want 1024", got)
	}
	if got := FormatR1UNorm.RowPitch(9); got != 2 {
		t.Errorf("R1 RowPitch(9) = %d, want 2", got)
	}
}

func TestGPUTypeRoundTrip(t *testing.T) {
	formats := []Format{
		FormatR8G8B8A8UNorm, FormatR8G8B8A8UNormSRGB, FormatB8G8R8A8UNorm,
		FormatB8G8R8A8UNormSRGB, FormatR8UNorm, FormatR32Float,
		FormatR32G32Float, FormatR32G32B32A32Float, FormatD24UNormS8UInt,
	}
	for _, f := range formats {
		gt := f.GPUType()
		if gt == gputypes.TextureFormatUndefined {
			t.Errorf("%v has no gputypes counterpart", f)
			continue
		}
		if back := FormatFromGPUType(gt); back != f {
			t.Errorf("round trip %v -> %v -> %v", f, gt, back)
		}
	}
	if FormatBC7UNorm.GPUType() != gputypes.TextureFormatUndefined {
		t.Error("BC7 should map to Undefined")
	}
}
