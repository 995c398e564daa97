//go:build linux

package interop_test

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/compute"
	"github.com/gogpu/gpuinterop/d3d12"
	"github.com/gogpu/gpuinterop/dxgi"
	"github.com/gogpu/gpuinterop/interop"
	"github.com/gogpu/gpuinterop/software"
	"github.com/gogpu/gputypes"
)

// hostBackend swaps the registered host factory for one built with opts.
func hostBackend(t *testing.T, opts ...software.BackendOption) *compute.Registry {
	t.Helper()
	compute.Register(compute.APIHost, func(cfg *gpuinterop.Config) compute.Backend {
		return software.NewBackend(cfg, opts...)
	})
	t.Cleanup(func() {
		compute.Register(compute.APIHost, func(cfg *gpuinterop.Config) compute.Backend {
			return software.NewBackend(cfg)
		})
	})
	r := compute.NewRegistry(compute.WithAPIs(compute.APIHost))
	t.Cleanup(func() { _ = r.Close() })
	return r
}

type fixture struct {
	dev     *d3d12.Device
	session *interop.Session
	cdev    *software.Device
	stream  *software.Stream
}

func newFixture(t *testing.T, opts ...software.BackendOption) *fixture {
	t.Helper()
	reg := hostBackend(t, opts...)
	dev, err := d3d12.CreateMatchingDevice(software.NewDriver(), software.DefaultLUID,
		[]d3d12.FeatureLevel{d3d12.FeatureLevel12_1}, d3d12.WithValidation(false))
	if err != nil {
		t.Fatalf("CreateMatchingDevice: %v", err)
	}
	t.Cleanup(func() { _ = dev.Close() })

	s, err := interop.NewSession(dev, interop.WithRegistry(reg))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if s.API() != compute.APIHost {
		t.Fatalf("session API = %s, want host", s.API())
	}

	st, err := s.NewStream()
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return &fixture{dev: dev, session: s, cdev: s.Compute().(*software.Device), stream: st.(*software.Stream)}
}

func (f *fixture) resource(t *testing.T, desc d3d12.ResourceDesc) *d3d12.Resource {
	t.Helper()
	res, err := f.dev.CreateResource(d3d12.ResourceSettings{
		Desc:         desc,
		InitialState: d3d12.ResourceStateCommon,
		Shareable:    true,
	})
	if err != nil {
		t.Fatalf("CreateResource: %v", err)
	}
	t.Cleanup(func() { _ = res.Close() })
	return res
}

func TestBufferPingPong(t *testing.T) {
	f := newFixture(t)
	const n = 1024
	buf := f.resource(t, d3d12.BufferDesc(n*4, d3d12.ResourceFlagNone))

	in := make([]byte, n*4)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(in[i*4:], math.Float32bits(float32(i)/n))
	}
	if err := buf.UploadData(in); err != nil {
		t.Fatalf("UploadData: %v", err)
	}

	fence, err := f.dev.CreateFence(0, true)
	if err != nil {
		t.Fatal(err)
	}
	defer fence.Close()

	ext, err := f.session.ImportBuffer(buf)
	if err != nil {
		t.Fatalf("ImportBuffer: %v", err)
	}
	defer ext.Destroy()
	sem, err := f.session.ImportSemaphore(fence)
	if err != nil {
		t.Fatalf("ImportSemaphore: %v", err)
	}
	defer sem.Destroy()

	ptr := ext.DevicePtr()
	err = f.stream.Launch(func() error {
		mem, err := f.cdev.Memory(ptr, n*4)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			v := math.Float32frombits(binary.LittleEndian.Uint32(mem[i*4:]))
			binary.LittleEndian.PutUint32(mem[i*4:], math.Float32bits(v*2))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if err := sem.Signal(f.stream, 1); err != nil {
		t.Fatalf("Signal: %v", err)
	}

	ok, err := fence.WaitOnCPU(1, 5*time.Second)
	if err != nil || !ok {
		t.Fatalf("WaitOnCPU(1) = %v, %v", ok, err)
	}
	out := make([]byte, n*4)
	if err := buf.ReadbackData(out); err != nil {
		t.Fatalf("ReadbackData: %v", err)
	}
	for i := 0; i < n; i++ {
		got := math.Float32frombits(binary.LittleEndian.Uint32(out[i*4:]))
		if want := 2 * float32(i) / n; got != want {
			t.Fatalf("element %d = %v, want %v", i, got, want)
		}
	}
}

func TestSemaphoreWaitsForQueue(t *testing.T) {
	f := newFixture(t)
	fence, err := f.dev.CreateFence(0, true)
	if err != nil {
		t.Fatal(err)
	}
	defer fence.Close()
	sem, err := f.session.ImportSemaphore(fence)
	if err != nil {
		t.Fatal(err)
	}
	defer sem.Destroy()

	ev, err := f.session.NewEvent()
	if err != nil {
		t.Fatal(err)
	}
	ran := make(chan struct{})
	if err := sem.Wait(f.stream, 3); err != nil {
		t.Fatal(err)
	}
	if err := f.stream.Launch(func() error { close(ran); return nil }, compute.RecordEvent(ev)); err != nil {
		t.Fatal(err)
	}

	select {
	case <-ran:
		t.Fatal("kernel ran before the fence reached 3")
	case <-time.After(20 * time.Millisecond):
	}
	if err := fence.SignalOnQueue(f.dev.Queue(d3d12.CommandListTypeDirect), 3); err != nil {
		t.Fatal(err)
	}
	if err := ev.Synchronize(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ran:
	default:
		t.Fatal("event completed before the kernel ran")
	}
}

func TestImageRoundTrip(t *testing.T) {
	f := newFixture(t)
	const size = 256
	tex := f.resource(t, d3d12.Tex2DDesc(dxgi.FormatR8G8B8A8UNorm, size, size, 1, 1, d3d12.ResourceFlagAllowUnorderedAccess))

	pattern := make([]byte, size*size*4)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			p := pattern[(y*size+x)*4:]
			p[0], p[1], p[2], p[3] = byte(x), byte(y), byte(x^y), 255
		}
	}
	if err := tex.UploadData(pattern); err != nil {
		t.Fatalf("UploadData: %v", err)
	}

	img, err := f.session.ImportImage(tex, interop.WithSurfaceLoadStore())
	if err != nil {
		t.Fatalf("ImportImage: %v", err)
	}
	defer img.Destroy()
	view, err := img.NewImageView(0)
	if err != nil {
		t.Fatalf("NewImageView: %v", err)
	}
	defer view.Destroy()

	ptr, err := f.cdev.Alloc(size * size * 4)
	if err != nil {
		t.Fatal(err)
	}
	defer f.cdev.Free(ptr)

	if err := view.Image().CopyToDevicePtrAsync(ptr, 0, f.stream); err != nil {
		t.Fatalf("CopyToDevicePtrAsync: %v", err)
	}
	out := make([]byte, len(pattern))
	c := compute.LinearCopy(compute.HostEndpoint(out), compute.DeviceEndpoint(ptr, 0), uint64(len(out)))
	if err := f.cdev.Copy(c, f.stream); err != nil {
		t.Fatal(err)
	}
	if err := f.stream.Synchronize(); err != nil {
		t.Fatalf("Synchronize: %v", err)
	}
	for i := range out {
		if out[i] != pattern[i] {
			t.Fatalf("byte %d = %d, want %d", i, out[i], pattern[i])
		}
	}

	surf := view.Surface().(*software.Surface)
	texel, err := surf.Texel(7, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if texel[0] != 7 || texel[1] != 3 || texel[2] != 7^3 {
		t.Errorf("texel (7,3) = %v", texel)
	}
}

func TestImageHostUpload(t *testing.T) {
	f := newFixture(t)
	tex := f.resource(t, d3d12.Tex2DDesc(dxgi.FormatR16G16Float, 8, 4, 1, 1, 0))
	img, err := f.session.ImportImage(tex)
	if err != nil {
		t.Fatal(err)
	}
	defer img.Destroy()

	src := make([]byte, img.LevelSize(0))
	for i := range src {
		src[i] = byte(i)
	}
	if err := img.CopyFromHostPtrAsync(src, 0, f.stream); err != nil {
		t.Fatal(err)
	}
	if err := f.stream.Synchronize(); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, len(src))
	if err := tex.ReadbackData(got); err != nil {
		t.Fatal(err)
	}
	for i := range got {
		if got[i] != src[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[i], src[i])
		}
	}

	if err := img.CopyToHostPtrAsync(make([]byte, 3), 0, f.stream); !errors.Is(err, gpuinterop.ErrCopySizeMismatch) {
		t.Errorf("short host buffer error = %v, want ErrCopySizeMismatch", err)
	}
}

func TestSampledNormalizedCoords(t *testing.T) {
	f := newFixture(t)
	tex := f.resource(t, d3d12.Tex2DDesc(dxgi.FormatR32Float, 2, 2, 1, 1, 0))
	data := make([]byte, 16)
	for i, v := range []float32{1, 2, 3, 4} {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	if err := tex.UploadData(data); err != nil {
		t.Fatal(err)
	}

	img, err := f.session.ImportImage(tex)
	if err != nil {
		t.Fatal(err)
	}
	defer img.Destroy()

	sampler := d3d12.DefaultSamplerDesc()
	sampler.Filter = d3d12.FilterMinMagMipLinear
	view, err := img.NewSampledImageView(sampler, compute.SamplerOptions{NormalizedCoords: true})
	if err != nil {
		t.Fatalf("NewSampledImageView: %v", err)
	}
	defer view.Destroy()

	if s := view.Sampler(); s.Filter != compute.FilterLinear || s.Address[0] != compute.AddressClamp || !s.NormalizedCoords {
		t.Errorf("sampler = %+v", s)
	}
	got := view.Texture().(*software.Texture).Sample(0.5, 0.5)
	if got[0] != 2.5 {
		t.Errorf("Sample(0.5, 0.5) = %v, want 2.5", got[0])
	}
}

func TestSampledGPUState(t *testing.T) {
	f := newFixture(t)
	tex := f.resource(t, d3d12.Tex2DDesc(dxgi.FormatR32Float, 2, 2, 1, 1, 0))
	img, err := f.session.ImportImage(tex)
	if err != nil {
		t.Fatal(err)
	}
	defer img.Destroy()
	if got := img.TextureFormat(); got != gputypes.TextureFormatR32Float {
		t.Errorf("TextureFormat = %v, want R32Float", got)
	}
	if got := img.TextureDimension(); got != gputypes.TextureDimension2D {
		t.Errorf("TextureDimension = %v, want 2D", got)
	}

	tests := []struct {
		address gputypes.AddressMode
		filter  gputypes.FilterMode
		want    compute.AddressMode
		wantF   compute.FilterMode
	}{
		{gputypes.AddressModeMirrorRepeat, gputypes.FilterModeNearest, compute.AddressMirror, compute.FilterPoint},
		{gputypes.AddressModeRepeat, gputypes.FilterModeLinear, compute.AddressRepeat, compute.FilterLinear},
		{gputypes.AddressModeClampToEdge, gputypes.FilterModeLinear, compute.AddressClamp, compute.FilterLinear},
	}
	for _, tt := range tests {
		view, err := img.NewSampledImageViewGPU(tt.address, tt.filter, compute.SamplerOptions{NormalizedCoords: true})
		if err != nil {
			t.Fatalf("%v: %v", tt.address, err)
		}
		s := view.Sampler()
		if s.Address != [3]compute.AddressMode{tt.want, tt.want, tt.want} || s.Filter != tt.wantF {
			t.Errorf("%v/%v: sampler = %+v", tt.address, tt.filter, s)
		}
		if err := view.Destroy(); err != nil {
			t.Error(err)
		}
	}
}

func TestSampledMipmapped(t *testing.T) {
	f := newFixture(t)
	tex := f.resource(t, d3d12.Tex2DDesc(dxgi.FormatR8UNorm, 4, 4, 1, 3, 0))
	data := make([]byte, 16+4+1)
	for i := range data {
		switch {
		case i < 16:
			data[i] = 0
		case i < 20:
			data[i] = 255
		default:
			data[i] = 51
		}
	}
	if err := tex.UploadData(data); err != nil {
		t.Fatal(err)
	}
	img, err := f.session.ImportImage(tex)
	if err != nil {
		t.Fatal(err)
	}
	defer img.Destroy()
	if w, h, d := img.LevelExtent(1); w != 2 || h != 2 || d != 1 {
		t.Errorf("LevelExtent(1) = %d x %d x %d", w, h, d)
	}

	sampler := d3d12.DefaultSamplerDesc()
	sampler.Filter = d3d12.FilterMinMagPointMipLinear
	view, err := img.NewSampledImageView(sampler, compute.SamplerOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer view.Destroy()
	if !view.Sampler().NormalizedCoords {
		t.Error("mipmapped view must use normalized coordinates")
	}

	tx := view.Texture().(*software.Texture)
	if got := tx.SampleLOD(0.5, 0.5, 1)[0]; got != 1 {
		t.Errorf("lod 1 = %v, want 1", got)
	}
	if got := tx.SampleLOD(0.5, 0.5, 0.5)[0]; math.Abs(float64(got)-0.5) > 1e-6 {
		t.Errorf("lod 0.5 = %v, want 0.5", got)
	}
	if got := tx.SampleLOD(0.5, 0.5, 2)[0]; math.Abs(float64(got)-0.2) > 1e-6 {
		t.Errorf("lod 2 = %v, want 0.2", got)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	f := newFixture(t)
	tex := f.resource(t, d3d12.Tex2DDesc(dxgi.FormatB8G8R8X8Typeless, 16, 16, 1, 1, 0))
	_, err := f.session.ImportImage(tex)
	if !errors.Is(err, gpuinterop.ErrUnsupportedFormat) {
		t.Fatalf("ImportImage error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestImportImageFromBuffer(t *testing.T) {
	f := newFixture(t)
	buf := f.resource(t, d3d12.BufferDesc(256, d3d12.ResourceFlagNone))
	_, err := f.session.ImportImage(buf)
	if !errors.Is(err, gpuinterop.ErrUnsupportedDimension) {
		t.Fatalf("ImportImage(buffer) error = %v, want ErrUnsupportedDimension", err)
	}
	if errors.Is(err, gpuinterop.ErrUnsupportedFormat) {
		t.Errorf("ImportImage(buffer) error %v reports a format problem", err)
	}
}

func TestUnsupportedImageType(t *testing.T) {
	f := newFixture(t, software.WithUnsupportedImageTypes(compute.Image3D))
	tex := f.resource(t, d3d12.Tex3DDesc(dxgi.FormatR8G8B8A8UNorm, 4, 4, 4, 1, 0))
	_, err := f.session.ImportImage(tex)
	if !gpuinterop.IsUnsupportedFeature(err) {
		t.Fatalf("ImportImage error = %v, want unsupported feature", err)
	}
	var fe *gpuinterop.FeatureError
	if !errors.As(err, &fe) || fe.API != "host" {
		t.Errorf("error %v does not carry the host FeatureError", err)
	}
}

func TestSurfaceNeedsLoadStore(t *testing.T) {
	f := newFixture(t)
	tex := f.resource(t, d3d12.Tex2DDesc(dxgi.FormatR8G8B8A8UNorm, 4, 4, 1, 1, 0))
	img, err := f.session.ImportImage(tex)
	if err != nil {
		t.Fatal(err)
	}
	defer img.Destroy()
	if _, err := img.NewImageView(0); !gpuinterop.IsUnsupportedFeature(err) {
		t.Errorf("NewImageView error = %v, want unsupported feature", err)
	}
}

func TestBufferErrors(t *testing.T) {
	f := newFixture(t)
	tex := f.resource(t, d3d12.Tex2DDesc(dxgi.FormatR8G8B8A8UNorm, 4, 4, 1, 1, 0))
	if _, err := f.session.ImportBuffer(tex); !errors.Is(err, gpuinterop.ErrUnsupportedDimension) {
		t.Errorf("ImportBuffer(texture) error = %v, want ErrUnsupportedDimension", err)
	}

	buf := f.resource(t, d3d12.BufferDesc(64, d3d12.ResourceFlagNone))
	ext, err := f.session.ImportBuffer(buf, interop.WithHandleName("ping"))
	if err != nil {
		t.Fatal(err)
	}
	if ext.Size() != 64 {
		t.Errorf("Size = %d, want 64", ext.Size())
	}
	if err := ext.CopyFromHostPtrAsync(make([]byte, 65), f.stream); !errors.Is(err, gpuinterop.ErrCopySizeMismatch) {
		t.Errorf("oversized copy error = %v, want ErrCopySizeMismatch", err)
	}
	if err := ext.Destroy(); err != nil {
		t.Fatal(err)
	}
	if err := ext.CopyToHostPtrAsync(make([]byte, 4), f.stream); !errors.Is(err, interop.ErrDestroyed) {
		t.Errorf("copy after Destroy error = %v, want ErrDestroyed", err)
	}

	private, err := f.dev.CreateResource(d3d12.ResourceSettings{Desc: d3d12.BufferDesc(64, d3d12.ResourceFlagNone)})
	if err != nil {
		t.Fatal(err)
	}
	defer private.Close()
	if _, err := f.session.ImportBuffer(private); !errors.Is(err, gpuinterop.ErrNotShareable) {
		t.Errorf("ImportBuffer(private) error = %v, want ErrNotShareable", err)
	}
}

func TestBufferDeviceCopies(t *testing.T) {
	f := newFixture(t)
	buf := f.resource(t, d3d12.BufferDesc(16, d3d12.ResourceFlagNone))
	ext, err := f.session.ImportBuffer(buf)
	if err != nil {
		t.Fatal(err)
	}
	defer ext.Destroy()

	scratch, err := f.cdev.Alloc(16)
	if err != nil {
		t.Fatal(err)
	}
	defer f.cdev.Free(scratch)

	in := []byte("0123456789abcdef")
	out := make([]byte, 16)
	if err := ext.CopyFromHostPtrAsync(in, f.stream); err != nil {
		t.Fatal(err)
	}
	if err := ext.CopyToDevicePtrAsync(scratch, 16, f.stream); err != nil {
		t.Fatal(err)
	}
	if err := ext.CopyFromDevicePtrAsync(scratch, 8, f.stream); err != nil {
		t.Fatal(err)
	}
	if err := ext.CopyToHostPtrAsync(out, f.stream); err != nil {
		t.Fatal(err)
	}
	if err := f.stream.Synchronize(); err != nil {
		t.Fatal(err)
	}
	if string(out) != string(in) {
		t.Errorf("round trip = %q, want %q", out, in)
	}

	got := make([]byte, 16)
	if err := buf.ReadbackData(got); err != nil {
		t.Fatal(err)
	}
	if string(got) != string(in) {
		t.Errorf("D3D12 view = %q, want %q", got, in)
	}
}

func TestSessionNameFallback(t *testing.T) {
	other := software.DefaultDevice()
	other.LUID = dxgi.LUID{LowPart: 99}
	f := newFixture(t, software.WithUnreliableLUID(), software.WithDevices(other))
	if f.session.DeviceInfo().Name != software.DefaultAdapterName {
		t.Errorf("matched %q", f.session.DeviceInfo().Name)
	}
}

func TestSessionNoMatchingDevice(t *testing.T) {
	other := software.DefaultDevice()
	other.LUID = dxgi.LUID{LowPart: 99}
	reg := hostBackend(t, software.WithDevices(other))
	dev, err := d3d12.CreateMatchingDevice(software.NewDriver(), software.DefaultLUID,
		[]d3d12.FeatureLevel{d3d12.FeatureLevel12_0})
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Close()
	if _, err := interop.NewSession(dev, interop.WithRegistry(reg)); !errors.Is(err, gpuinterop.ErrNoMatchingDevice) {
		t.Errorf("NewSession error = %v, want ErrNoMatchingDevice", err)
	}
	if _, err := interop.NewSession(dev, interop.WithRegistry(reg), interop.WithAPI(compute.APICUDA)); !errors.Is(err, gpuinterop.ErrUnsupportedComputeAPI) {
		t.Errorf("NewSession(cuda) error = %v, want ErrUnsupportedComputeAPI", err)
	}
}

func TestSessionClosed(t *testing.T) {
	f := newFixture(t)
	if err := f.session.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := f.session.NewStream(); !errors.Is(err, interop.ErrSessionClosed) {
		t.Errorf("NewStream error = %v, want ErrSessionClosed", err)
	}
	if err := f.session.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
