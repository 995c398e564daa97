package d3d12

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/gpuinterop/dxgi"
	"github.com/gogpu/gputypes"
)

func TestComputeFootprints(t *testing.T) {
	tests := []struct {
		name     string
		desc     ResourceDesc
		pitches  []uint32
		offsets  []uint64
		total    uint64
		packed   uint64
		rowSizes []uint64
	}{
		{
			name:     "buffer",
			desc:     BufferDesc(100, ResourceFlagNone),
			pitches:  []uint32{256},
			offsets:  []uint64{0},
			total:    100,
			packed:   100,
			rowSizes: []uint64{100},
		},
		{
			name:     "aligned 2D",
			desc:     Tex2DDesc(dxgi.FormatR8G8B8A8UNorm, 256, 256, 1, 1, 0),
			pitches:  []uint32{1024},
			offsets:  []uint64{0},
			total:    1024 * 256,
			packed:   1024 * 256,
			rowSizes: []uint64{1024},
		},
		{
			name:     "padded 2D",
			desc:     Tex2DDesc(dxgi.FormatR32Float, 2, 2, 1, 1, 0),
			pitches:  []uint32{256},
			offsets:  []uint64{0},
			total:    256 + 8,
			packed:   16,
			rowSizes: []uint64{8},
		},
		{
			name:     "mip chain",
			desc:     Tex2DDesc(dxgi.FormatR8UNorm, 4, 4, 1, 3, 0),
			pitches:  []uint32{256, 256, 256},
			offsets:  []uint64{0, 1024, 1536},
			total:    1536 + 1,
			packed:   16 + 4 + 1,
			rowSizes: []uint64{4, 2, 1},
		},
		{
			name:     "array",
			desc:     Tex2DDesc(dxgi.FormatR8G8B8A8UNorm, 64, 1, 2, 1, 0),
			pitches:  []uint32{256, 256},
			offsets:  []uint64{0, 512},
			total:    512 + 256,
			packed:   512,
			rowSizes: []uint64{256, 256},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fps, total := ComputeFootprints(&tt.desc, 0, tt.desc.SubresourceCount(), 0)
			if len(fps) != len(tt.pitches) {
				t.Fatalf("got %d footprints, want %d", len(fps), len(tt.pitches))
			}
			for i, fp := range fps {
				if fp.Footprint.RowPitch != tt.pitches[i] || fp.Offset != tt.offsets[i] || fp.RowSizeInBytes != tt.rowSizes[i] {
					t.Errorf("footprint %d = offset %d pitch %d row %d, want %d %d %d", i,
						fp.Offset, fp.Footprint.RowPitch, fp.RowSizeInBytes, tt.offsets[i], tt.pitches[i], tt.rowSizes[i])
				}
			}
			if total != tt.total {
				t.Errorf("total = %d, want %d", total, tt.total)
			}
			if got := PackedSize(fps); got != tt.packed {
				t.Errorf("PackedSize = %d, want %d", got, tt.packed)
			}
		})
	}
}

func TestScatterGatherRows(t *testing.T) {
	desc := Tex2DDesc(dxgi.FormatR32Float, 2, 2, 1, 2, 0)
	fps, total := ComputeFootprints(&desc, 0, desc.SubresourceCount(), 0)
	src := make([]byte, PackedSize(fps))
	for i := range src {
		src[i] = byte(i + 1)
	}
	staging := make([]byte, total)
	scatterRows(staging, src, fps)
	if staging[256] != 9 || staging[0] != 1 {
		t.Errorf("scattered rows: [0]=%d [256]=%d", staging[0], staging[256])
	}
	back := make([]byte, len(src))
	gatherRows(back, staging, fps)
	for i := range back {
		if back[i] != src[i] {
			t.Fatalf("byte %d = %d, want %d", i, back[i], src[i])
		}
	}
}

func TestResourceDesc(t *testing.T) {
	tests := []struct {
		name         string
		desc         ResourceDesc
		mips, slices uint32
		depth        uint32
	}{
		{"buffer", BufferDesc(16, 0), 1, 1, 1},
		{"full chain", Tex2DDesc(dxgi.FormatR8UNorm, 16, 4, 1, 0, 0), 5, 1, 1},
		{"1D array", Tex1DDesc(dxgi.FormatR8UNorm, 8, 6, 1, 0), 1, 6, 1},
		{"volume", Tex3DDesc(dxgi.FormatR8UNorm, 8, 8, 32, 0, 0), 6, 1, 32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.desc.MipCount(); got != tt.mips {
				t.Errorf("MipCount = %d, want %d", got, tt.mips)
			}
			if got := tt.desc.ArraySize(); got != tt.slices {
				t.Errorf("ArraySize = %d, want %d", got, tt.slices)
			}
			if got := tt.desc.Depth(); got != tt.depth {
				t.Errorf("Depth = %d, want %d", got, tt.depth)
			}
		})
	}

	desc := Tex2DDesc(dxgi.FormatR8UNorm, 16, 4, 3, 2, 0)
	if got := desc.Subresource(1, 2); got != 5 {
		t.Errorf("Subresource(1, 2) = %d, want 5", got)
	}
	if w, h, d := desc.MipExtent(3); w != 2 || h != 1 || d != 1 {
		t.Errorf("MipExtent(3) = %d x %d x %d", w, h, d)
	}
}

func TestFilterPredicates(t *testing.T) {
	tests := []struct {
		f                            Filter
		point, linearMip, aniso, cmp bool
	}{
		{FilterMinMagMipPoint, true, false, false, false},
		{FilterMinMagPointMipLinear, true, true, false, false},
		{FilterMinMagMipLinear, false, true, false, false},
		{FilterMinMagLinearMipPoint, false, false, false, false},
		{FilterAnisotropic, false, true, true, false},
		{FilterComparisonMinMagMipLinear, false, true, false, true},
	}
	for _, tt := range tests {
		if got := tt.f.IsPointMinMag(); got != tt.point {
			t.Errorf("%#x IsPointMinMag = %v", uint32(tt.f), got)
		}
		if got := tt.f.IsLinearMip(); got != tt.linearMip {
			t.Errorf("%#x IsLinearMip = %v", uint32(tt.f), got)
		}
		if got := tt.f.IsAnisotropic(); got != tt.aniso {
			t.Errorf("%#x IsAnisotropic = %v", uint32(tt.f), got)
		}
		if got := tt.f.IsComparison(); got != tt.cmp {
			t.Errorf("%#x IsComparison = %v", uint32(tt.f), got)
		}
	}
}

func TestGPUTypeBridges(t *testing.T) {
	dims := []struct {
		d    ResourceDimension
		want gputypes.TextureDimension
		ok   bool
	}{
		{ResourceDimensionTexture1D, gputypes.TextureDimension1D, true},
		{ResourceDimensionTexture2D, gputypes.TextureDimension2D, true},
		{ResourceDimensionTexture3D, gputypes.TextureDimension3D, true},
		{ResourceDimensionBuffer, 0, false},
	}
	for _, tt := range dims {
		got, ok := tt.d.GPUType()
		if got != tt.want || ok != tt.ok {
			t.Errorf("%s.GPUType() = %v, %v; want %v, %v", tt.d, got, ok, tt.want, tt.ok)
		}
	}

	samplers := []struct {
		address gputypes.AddressMode
		filter  gputypes.FilterMode
		mode    TextureAddressMode
		f       Filter
	}{
		{gputypes.AddressModeClampToEdge, gputypes.FilterModeLinear, TextureAddressModeClamp, FilterMinMagMipLinear},
		{gputypes.AddressModeRepeat, gputypes.FilterModeLinear, TextureAddressModeWrap, FilterMinMagMipLinear},
		{gputypes.AddressModeMirrorRepeat, gputypes.FilterModeNearest, TextureAddressModeMirror, FilterMinMagMipPoint},
		{gputypes.AddressModeUndefined, gputypes.FilterModeUndefined, TextureAddressModeClamp, FilterMinMagMipPoint},
	}
	for _, tt := range samplers {
		s := SamplerDescFromGPU(tt.address, tt.filter)
		if s.AddressU != tt.mode || s.AddressV != tt.mode || s.AddressW != tt.mode {
			t.Errorf("%v: address modes = %v %v %v, want %v", tt.address, s.AddressU, s.AddressV, s.AddressW, tt.mode)
		}
		if s.Filter != tt.f {
			t.Errorf("%v/%v: filter = %v, want %v", tt.address, tt.filter, s.Filter, tt.f)
		}
	}
}

func TestCommandListLifecycle(t *testing.T) {
	a := newCommandAllocator(CommandListTypeCopy)
	l := a.NewCommandList()
	if err := l.Transition(&Resource{}, ResourceStateCommon, ResourceStateCommon); err != nil {
		t.Fatal(err)
	}
	if len(l.Commands()) != 0 {
		t.Error("no-op transition was recorded")
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != ErrCommandListClosed {
		t.Errorf("second Close = %v, want ErrCommandListClosed", err)
	}
	if err := l.CopyResource(&Resource{}, &Resource{}); err != ErrCommandListClosed {
		t.Errorf("record after Close = %v, want ErrCommandListClosed", err)
	}
	a.Recycle(l)
	if again := a.NewCommandList(); again != l || again.Closed() {
		t.Error("recycled list was not reopened")
	}
	other := newCommandAllocator(CommandListTypeDirect)
	other.Recycle(l)
	if other.NewCommandList() == l {
		t.Error("list recycled into an allocator of another type")
	}
}

func TestHandleNames(t *testing.T) {
	a, b := nextResourceHandleName(), nextResourceHandleName()
	if a == b {
		t.Errorf("resource handle names repeat: %q", a)
	}
	if got := nextFenceHandleName(); len(got) <= len(`Local\D3D12FenceHandle`) {
		t.Errorf("fence handle name %q has no counter", got)
	}
}

func TestDefaultInfoQueueFilter(t *testing.T) {
	f := DefaultInfoQueueFilter()
	wantBreak := []MessageSeverity{MessageSeverityCorruption, MessageSeverityError, MessageSeverityWarning}
	if !slices.Equal(f.BreakOnSeverity, wantBreak) {
		t.Errorf("BreakOnSeverity = %v, want %v", f.BreakOnSeverity, wantBreak)
	}
	for _, id := range []MessageID{
		MessageIDClearRenderTargetViewMismatchingClearValue,
		MessageIDMapInvalidNullRange,
		MessageIDUnmapInvalidNullRange,
	} {
		if !slices.Contains(f.DenyIDs, id) {
			t.Errorf("DenyIDs misses %d", id)
		}
	}
}

type stubQueue struct {
	QueueDriver
	executeErr, signalErr error
}

func (q *stubQueue) Execute([]*CommandList) error     { return q.executeErr }
func (q *stubQueue) Signal(FenceDriver, uint64) error { return q.signalErr }

type doneFence struct{ FenceDriver }

func (doneFence) CompletedValue() uint64 { return ^uint64(0) }

func TestSingleTimeCommandsRecycles(t *testing.T) {
	errRecord := errors.New("record failed")
	errExecute := errors.New("execute failed")
	errSignal := errors.New("signal failed")

	tests := []struct {
		name   string
		record func(*CommandList) error
		queue  stubQueue
		want   error
	}{
		{"success", func(*CommandList) error { return nil }, stubQueue{}, nil},
		{"record", func(*CommandList) error { return errRecord }, stubQueue{}, errRecord},
		{"close", func(l *CommandList) error { return l.Close() }, stubQueue{}, ErrCommandListClosed},
		{"execute", func(*CommandList) error { return nil }, stubQueue{executeErr: errExecute}, errExecute},
		{"signal", func(*CommandList) error { return nil }, stubQueue{signalErr: errSignal}, errSignal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alloc := newCommandAllocator(CommandListTypeDirect)
			d := &Device{
				queues:     map[CommandListType]*Queue{CommandListTypeDirect: {typ: CommandListTypeDirect, native: &tt.queue}},
				allocators: map[CommandListType]*CommandAllocator{CommandListTypeDirect: alloc},
				stcFence:   &Fence{native: doneFence{}},
			}
			err := d.SingleTimeCommands(tt.record)
			if !errors.Is(err, tt.want) {
				t.Fatalf("SingleTimeCommands = %v, want %v", err, tt.want)
			}
			if n := len(alloc.free); n != 1 {
				t.Errorf("allocator holds %d free lists after %s, want 1", n, tt.name)
			}
		})
	}
}
