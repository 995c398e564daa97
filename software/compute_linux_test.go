//go:build linux

package software

import (
	"errors"
	"testing"

	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/compute"
	"github.com/gogpu/gpuinterop/d3d12"
	"github.com/gogpu/gpuinterop/dxgi"
)

func openDevice(t *testing.T, opts ...BackendOption) *Device {
	t.Helper()
	b := NewBackend(&gpuinterop.Config{}, opts...)
	if _, err := b.Devices(); !errors.Is(err, compute.ErrNotInitialized) {
		t.Fatalf("Devices before Init = %v, want ErrNotInitialized", err)
	}
	if err := b.Init(); err != nil {
		t.Fatal(err)
	}
	devs, err := b.Devices()
	if err != nil || len(devs) == 0 {
		t.Fatalf("Devices = %v, %v", devs, err)
	}
	d, err := b.Open(devs[0])
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d.(*Device)
}

func TestRegistered(t *testing.T) {
	if !compute.IsRegistered(compute.APIHost) {
		t.Fatal("host backend not registered")
	}
	r := compute.NewRegistry(compute.WithAPIs(compute.APIHost))
	defer r.Close()
	if got := r.Present(); len(got) != 1 || got[0] != compute.APIHost {
		t.Errorf("Present = %v", got)
	}
}

func TestMatchDefaultDevice(t *testing.T) {
	b := NewBackend(nil)
	if err := b.Init(); err != nil {
		t.Fatal(err)
	}
	info, err := compute.MatchDevice(b, compute.AdapterIdentity{LUID: DefaultLUID, Name: DefaultAdapterName})
	if err != nil {
		t.Fatal(err)
	}
	if info.LUID != DefaultLUID {
		t.Errorf("matched %v", info)
	}
}

func TestAllocAndMemory(t *testing.T) {
	d := openDevice(t)
	if _, err := d.Alloc(0); err == nil {
		t.Error("zero-byte allocation succeeded")
	}
	p, err := d.Alloc(32)
	if err != nil {
		t.Fatal(err)
	}
	mem, err := d.Memory(p+8, 8)
	if err != nil || len(mem) != 8 {
		t.Fatalf("Memory = %d bytes, %v", len(mem), err)
	}
	if _, err := d.Memory(p+30, 8); !errors.Is(err, compute.ErrInvalidCopy) {
		t.Errorf("out-of-range Memory = %v, want ErrInvalidCopy", err)
	}
	if err := d.Free(p); err != nil {
		t.Fatal(err)
	}
	if err := d.Free(p); err == nil {
		t.Error("double Free succeeded")
	}
}

func TestStreamEvents(t *testing.T) {
	d := openDevice(t)
	s1, _ := d.NewStream()
	s2, _ := d.NewStream()
	defer s1.Close()
	defer s2.Close()

	ev, _ := d.NewEvent()
	if err := ev.Synchronize(); err != nil {
		t.Fatalf("new event not complete: %v", err)
	}

	release := make(chan struct{})
	var order []string
	done := make(chan struct{})
	_ = s1.(*Stream).Launch(func() error {
		<-release
		order = append(order, "producer")
		return nil
	}, compute.RecordEvent(ev))
	_ = s2.(*Stream).Launch(func() error {
		order = append(order, "consumer")
		close(done)
		return nil
	}, compute.WaitEvent(ev))
	close(release)
	<-done
	if len(order) != 2 || order[0] != "producer" {
		t.Errorf("order = %v", order)
	}

	if err := d.Copy(compute.LinearCopy(compute.HostEndpoint(make([]byte, 4)), compute.HostEndpoint(make([]byte, 4)), 4), foreignStream{}); !errors.Is(err, compute.ErrForeignObject) {
		t.Errorf("Copy on foreign stream = %v, want ErrForeignObject", err)
	}
}

type foreignStream struct{}

func (foreignStream) Synchronize() error { return nil }
func (foreignStream) Close() error       { return nil }

func TestPitchedCopy(t *testing.T) {
	d := openDevice(t)
	s, _ := d.NewStream()
	defer s.Close()

	src := []byte("abcXdefXghiX")
	dst := make([]byte, 9)
	c := compute.ImageCopy(compute.HostEndpoint(dst), compute.HostEndpoint(src).Pitched(4, 3), 3, 3, 1)
	if err := d.Copy(c, s); err != nil {
		t.Fatal(err)
	}
	if err := s.Synchronize(); err != nil {
		t.Fatal(err)
	}
	if string(dst) != "abcdefghi" {
		t.Errorf("dst = %q", dst)
	}
}

func TestImportedImage(t *testing.T) {
	drv := NewDriver()
	adapters, _ := drv.Adapters()
	dd, err := drv.CreateDevice(adapters[0], d3d12.FeatureLevel12_0)
	if err != nil {
		t.Fatal(err)
	}
	defer dd.Close()

	rd := d3d12.Tex2DDesc(dxgi.FormatR8G8B8A8UNorm, 4, 4, 2, 1, 0)
	res, err := dd.CreateCommittedResource(&d3d12.ResourceCreateInfo{
		Desc:       rd,
		HeapFlags:  d3d12.HeapFlagShared,
		ClearValue: &d3d12.ClearValue{Format: rd.Format, Color: [4]float32{0, 1, 0, 1}},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer res.Release()
	h, err := res.CreateSharedHandle("")
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	d := openDevice(t)
	mem, err := d.ImportMemory(h, 4*4*4*2)
	if err != nil {
		t.Fatal(err)
	}
	defer mem.Destroy()
	desc, err := compute.NewImageDesc(compute.ImageInfo{Desc: rd, SurfaceLoadStore: true})
	if err != nil {
		t.Fatal(err)
	}
	arr, err := mem.MappedMipmappedArray(&desc)
	if err != nil {
		t.Fatal(err)
	}
	level, err := arr.Level(0)
	if err != nil {
		t.Fatal(err)
	}
	surf, err := d.CreateSurfaceObject(level)
	if err != nil {
		t.Fatal(err)
	}
	s := surf.(*Surface)
	if c, err := s.Load(3, 3, 1); err != nil || c != [4]float32{0, 1, 0, 1} {
		t.Errorf("cleared texel = %v, %v", c, err)
	}
	if err := s.Store(0, 0, 1, [4]float32{1, 0, 0, 1}); err != nil {
		t.Fatal(err)
	}
	if b, _ := s.Texel(0, 0, 1); b[0] != 255 || b[1] != 0 {
		t.Errorf("stored texel = % x", b)
	}
	if _, err := s.Texel(0, 0, 2); !errors.Is(err, compute.ErrInvalidCopy) {
		t.Errorf("layer 2 of 2 = %v, want ErrInvalidCopy", err)
	}
	if _, err := arr.Level(1); err == nil {
		t.Error("Level(1) of a single-level image succeeded")
	}
	_ = surf.Destroy()
	if _, err := s.Texel(0, 0, 0); !errors.Is(err, gpuinterop.ErrClosed) {
		t.Errorf("Texel after Destroy = %v, want ErrClosed", err)
	}

	big := desc
	big.Width = 64
	if _, err := mem.MappedMipmappedArray(&big); !errors.Is(err, gpuinterop.ErrCopySizeMismatch) {
		t.Errorf("oversized image = %v, want ErrCopySizeMismatch", err)
	}
}

func TestDriverErrors(t *testing.T) {
	drv := NewDriver(WithComputeQueue(false))
	if _, err := drv.CreateDevice(d3d12.AdapterInfo{Index: 3}, d3d12.FeatureLevel12_0); err == nil {
		t.Error("unknown adapter accepted")
	}
	adapters, _ := drv.Adapters()
	_, err := drv.CreateDevice(adapters[0], d3d12.FeatureLevel12_2)
	if !errors.Is(err, gpuinterop.ErrUnsupportedFeatureLevel) {
		t.Errorf("12_2 = %v, want ErrUnsupportedFeatureLevel", err)
	}
	dd, err := drv.CreateDevice(adapters[0], d3d12.FeatureLevel12_1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dd.CreateQueue(d3d12.CommandListTypeCompute); err == nil {
		t.Error("compute queue created while disabled")
	}
	if err := dd.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := dd.CreateQueue(d3d12.CommandListTypeDirect); !errors.Is(err, gpuinterop.ErrClosed) {
		t.Errorf("CreateQueue after Close = %v, want ErrClosed", err)
	}
}
