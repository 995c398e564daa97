package hip

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/compute"
	"github.com/gogpu/gpuinterop/d3d12"
	"github.com/gogpu/gpuinterop/dxgi"
)

func TestRegistered(t *testing.T) {
	if !compute.IsRegistered(compute.APIHIP) {
		t.Fatal("hip backend not registered")
	}
}

func TestBackendFlavor(t *testing.T) {
	b := NewBackend(&gpuinterop.Config{HIPLibrary: "/nonexistent/libamdhip64.so"})
	if b.API() != compute.APIHIP {
		t.Errorf("API = %s, want hip", b.API())
	}
	if !b.UnreliableLUID() {
		t.Error("UnreliableLUID = false, want true")
	}
	if err := b.Init(); !errors.Is(err, gpuinterop.ErrUnsupportedComputeAPI) {
		t.Errorf("Init error = %v, want ErrUnsupportedComputeAPI", err)
	}
}

func TestMipmappedArrayDescriptor(t *testing.T) {
	tests := []struct {
		name      string
		desc      d3d12.ResourceDesc
		surface   bool
		wantFmt   channelFormatDesc
		wantExt   extent
		wantFlags uint32
	}{
		{
			name:    "2D RGBA8",
			desc:    d3d12.Tex2DDesc(dxgi.FormatR8G8B8A8UNorm, 256, 256, 1, 1, 0),
			wantFmt: channelFormatDesc{X: 8, Y: 8, Z: 8, W: 8, Kind: channelUnsigned},
			wantExt: extent{Width: 256, Height: 256},
		},
		{
			name:      "2D array R32F with surface access",
			desc:      d3d12.Tex2DDesc(dxgi.FormatR32Float, 16, 16, 4, 1, 0),
			surface:   true,
			wantFmt:   channelFormatDesc{X: 32, Kind: channelFloat},
			wantExt:   extent{Width: 16, Height: 16, Depth: 4},
			wantFlags: arrayLayered | arraySurfaceLoadStore,
		},
		{
			name:    "3D RG16 sint",
			desc:    d3d12.Tex3DDesc(dxgi.FormatR16G16SInt, 8, 8, 8, 1, 0),
			wantFmt: channelFormatDesc{X: 16, Y: 16, Kind: channelSigned},
			wantExt: extent{Width: 8, Height: 8, Depth: 8},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, err := compute.NewImageDesc(compute.ImageInfo{Desc: tt.desc, SurfaceLoadStore: tt.surface})
			if err != nil {
				t.Fatalf("NewImageDesc: %v", err)
			}
			got, err := mipmappedArrayDescriptorFor(&desc)
			if err != nil {
				t.Fatalf("mipmappedArrayDescriptorFor: %v", err)
			}
			if got.Format != tt.wantFmt {
				t.Errorf("Format = %+v, want %+v", got.Format, tt.wantFmt)
			}
			if got.Extent != tt.wantExt {
				t.Errorf("Extent = %+v, want %+v", got.Extent, tt.wantExt)
			}
			if got.Flags != tt.wantFlags {
				t.Errorf("Flags = %#x, want %#x", got.Flags, tt.wantFlags)
			}
			if got.NumLevels != 1 {
				t.Errorf("NumLevels = %d, want 1", got.NumLevels)
			}
		})
	}
}

func TestDescriptorLayout(t *testing.T) {
	if off := unsafe.Offsetof(mipmappedArrayDescriptor{}.Extent); off != 32 {
		t.Errorf("Extent offset = %d, want 32", off)
	}
	if size := unsafe.Sizeof(channelFormatDesc{}); size != 20 {
		t.Errorf("sizeof(hipChannelFormatDesc) = %d, want 20", size)
	}
}

func TestSymbolTableCoversEntryPoints(t *testing.T) {
	for name, hip := range flavor.Symbols {
		if name == "cuDeviceGetLuid" {
			if len(hip) != 0 {
				t.Errorf("%s mapped to %v, want unbound", name, hip)
			}
			continue
		}
		if len(hip) == 0 || hip[0][:3] != "hip" {
			t.Errorf("%s mapped to %v", name, hip)
		}
	}
}
