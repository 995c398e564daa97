package sycl

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
	if !compute.IsRegistered(compute.APISYCL) {
		t.Fatal("sycl backend not registered")
	}
}

func TestRegistryMissingShim(t *testing.T) {
	r := compute.NewRegistry(
		compute.WithAPIs(compute.APISYCL),
		compute.WithConfig(gpuinterop.Config{SYCLShimLibrary: "/nonexistent/libgpuinterop_sycl.so"}),
	)
	defer r.Close()
	if got := r.Present(); len(got) != 0 {
		t.Fatalf("Present = %v, want none", got)
	}
	if err := r.ProbeError(compute.APISYCL); !errors.Is(err, gpuinterop.ErrUnsupportedComputeAPI) {
		t.Errorf("ProbeError = %v, want ErrUnsupportedComputeAPI", err)
	}
}

func TestInitMissingShim(t *testing.T) {
	b := NewBackend(&gpuinterop.Config{SYCLShimLibrary: "/nonexistent/libgpuinterop_sycl.so"})
	if err := b.Init(); !errors.Is(err, gpuinterop.ErrUnsupportedComputeAPI) {
		t.Fatalf("Init error = %v, want ErrUnsupportedComputeAPI", err)
	}
	if _, err := b.Devices(); !errors.Is(err, compute.ErrNotInitialized) {
		t.Errorf("Devices error = %v, want ErrNotInitialized", err)
	}
	if _, err := b.Open(compute.DeviceInfo{}); !errors.Is(err, compute.ErrNotInitialized) {
		t.Errorf("Open error = %v, want ErrNotInitialized", err)
	}
	if b.UnreliableLUID() {
		t.Error("sycl reports LUIDs reliably")
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close on uninitialized backend: %v", err)
	}
}

func TestLayouts(t *testing.T) {
	if unsafe.Sizeof(uintptr(0)) != 8 {
		t.Skip("64-bit layouts")
	}
	tests := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"gisycl_device_info", unsafe.Sizeof(deviceInfo{}), 296},
		{"gisycl_image_desc", unsafe.Sizeof(imageDesc{}), 48},
		{"gisycl_sampler_desc", unsafe.Sizeof(samplerDesc{}), 60},
		{"gisycl_copy_endpoint", unsafe.Sizeof(copyEndpoint{}), 32},
		{"gisycl_copy_desc", unsafe.Sizeof(copyDesc{}), 80},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("sizeof(%s) = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
	if off := unsafe.Offsetof(deviceInfo{}.UUID); off != 272 {
		t.Errorf("device info UUID offset = %d, want 272", off)
	}
	if off := unsafe.Offsetof(imageDesc{}.Width); off != 16 {
		t.Errorf("image desc Width offset = %d, want 16", off)
	}
}

func TestStatusErrors(t *testing.T) {
	var fn *functions
	if err := fn.check("op", statusOK); err != nil {
		t.Fatalf("check(ok) = %v", err)
	}

	err := fn.check("gisycl_memcpy", statusInvalidValue)
	var apiErr *gpuinterop.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("check error %T is not *APIError", err)
	}
	if apiErr.API != "sycl" || apiErr.Code != int64(statusInvalidValue) || apiErr.Message != "invalid value" {
		t.Errorf("APIError = %+v", apiErr)
	}
	if gpuinterop.IsUnsupportedFeature(err) {
		t.Error("plain check reported as unsupported feature")
	}

	tests := []struct {
		name    string
		status  status
		feature bool
	}{
		{"unsupported", statusUnsupportedFeature, true},
		{"not initialized", statusNotInitialized, true},
		{"invalid value", statusInvalidValue, false},
		{"unknown", status(42), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fn.checkFeature("gisycl_import_semaphore", "external semaphore", tt.status,
				statusUnsupportedFeature, statusNotInitialized)
			if err == nil {
				t.Fatal("checkFeature returned nil")
			}
			if got := gpuinterop.IsUnsupportedFeature(err); got != tt.feature {
				t.Errorf("IsUnsupportedFeature = %v, want %v (err %v)", got, tt.feature, err)
			}
		})
	}
}

func TestImageDescFor(t *testing.T) {
	desc, err := compute.NewImageDesc(compute.ImageInfo{
		Desc:             d3d12.Tex2DDesc(dxgi.FormatB8G8R8A8UNorm, 64, 32, 4, 3, 0),
		SurfaceLoadStore: true,
	})
	if err != nil {
		t.Fatalf("NewImageDesc: %v", err)
	}
	got := imageDescFor(&desc)
	want := imageDesc{
		Type:      uint32(compute.Image2DArray),
		Channels:  4,
		Kind:      uint32(compute.ChannelUNorm),
		Bits:      8,
		Width:     64,
		Height:    32,
		Layers:    4,
		MipLevels: 3,
		Flags:     uint32(desc.Flags),
		Swizzle:   [4]uint8{2, 1, 0, 3},
	}
	if got != want {
		t.Errorf("imageDescFor = %+v, want %+v", got, want)
	}
	if desc.Flags&compute.FlagSurfaceLoadStore == 0 {
		t.Error("surface load/store flag not set")
	}
}

func TestSamplerDescFor(t *testing.T) {
	s := compute.SamplerDesc{
		Address:          [3]compute.AddressMode{compute.AddressClamp, compute.AddressMirror, compute.AddressBorder},
		Filter:           compute.FilterLinear,
		MaxAnisotropy:    8,
		MaxLOD:           4,
		BorderColor:      [4]float32{1, 0, 0, 1},
		NormalizedCoords: true,
	}
	got := samplerDescFor(&s)
	if got.Address != [3]uint32{uint32(compute.AddressClamp), uint32(compute.AddressMirror), uint32(compute.AddressBorder)} {
		t.Errorf("Address = %v", got.Address)
	}
	if got.Filter != uint32(compute.FilterLinear) || got.MaxAnisotropy != 8 || got.MaxLOD != 4 {
		t.Errorf("sampler = %+v", got)
	}
	if got.NormalizedCoords != 1 || got.ReadAsInteger != 0 {
		t.Errorf("flags: normalized %d, integer %d", got.NormalizedCoords, got.ReadAsInteger)
	}
}

func TestCopyDescFor(t *testing.T) {
	host := make([]byte, 256*4*256)
	img := &image{h: 0x1234}
	c := compute.ImageCopy(compute.ArrayEndpoint(img), compute.HostEndpoint(host), 256*4, 256, 1)
	got, err := copyDescFor(c)
	if err != nil {
		t.Fatalf("copyDescFor: %v", err)
	}
	if got.Dst.Kind != memoryImage || got.Dst.Image != 0x1234 || got.Dst.Pitch != 0 {
		t.Errorf("Dst = %+v", got.Dst)
	}
	if got.Src.Kind != memoryHost || got.Src.Pitch != 1024 || got.Src.Height != 256 {
		t.Errorf("Src = %+v", got.Src)
	}
	if got.Src.Ptr != unsafe.Pointer(&host[0]) {
		t.Error("Src pointer does not address the host buffer")
	}
	if got.WidthBytes != 1024 || got.Height != 256 || got.Depth != 1 {
		t.Errorf("extent = %d x %d x %d", got.WidthBytes, got.Height, got.Depth)
	}

	foreign := compute.ImageCopy(compute.ArrayEndpoint(fakeArray{}), compute.HostEndpoint(host), 1024, 256, 1)
	if _, err := copyDescFor(foreign); !errors.Is(err, compute.ErrForeignObject) {
		t.Errorf("foreign array error = %v, want ErrForeignObject", err)
	}
}

type fakeArray struct{}

func (fakeArray) Handle() uintptr { return 0 }

func TestEventsRejectsForeign(t *testing.T) {
	if _, _, err := events([]compute.OpOption{compute.WaitEvent(fakeEvent{})}); !errors.Is(err, compute.ErrForeignObject) {
		t.Errorf("foreign wait error = %v, want ErrForeignObject", err)
	}
	waits, record, err := events([]compute.OpOption{
		compute.WaitEvent(&event{h: 1}),
		compute.WaitEvent(&event{h: 2}),
		compute.RecordEvent(&event{h: 3}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(waits) != 2 || waits[0] != 1 || waits[1] != 2 || record.handle() != 3 {
		t.Errorf("waits %v record %v", waits, record)
	}
	if (*event)(nil).handle() != 0 {
		t.Error("nil event handle is not 0")
	}
}

type fakeEvent struct{}

func (fakeEvent) Synchronize() error { return nil }
func (fakeEvent) Close() error       { return nil }
