package software

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gogpu/gpuinterop/compute"
	"github.com/gogpu/gpuinterop/dxgi"
)

func TestHalfFloatChannel(t *testing.T) {
	half := compute.ChannelFormat{Kind: compute.ChannelFloat, Bits: 16, Channels: 1}
	tests := []struct {
		f float32
		h uint16
	}{
		{0, 0x0000},
		{1, 0x3c00},
		{-2, 0xc000},
		{0.5, 0x3800},
		{65504, 0x7bff},
		{float32(math.Inf(1)), 0x7c00},
		{1e9, 0x7c00},
		{1e-9, 0x0000},
		// Rounds to nearest even rather than truncating.
		{1.0009766, 0x3c01},
		{float32(math.Pow(2, -24)), 0x0001},
	}
	b := make([]byte, 2)
	for _, tt := range tests {
		encodeChannel(half, tt.f, b)
		if got := binary.LittleEndian.Uint16(b); got != tt.h {
			t.Errorf("encode %v = %#04x, want %#04x", tt.f, got, tt.h)
		}
	}
	for _, tt := range tests[:6] {
		binary.LittleEndian.PutUint16(b, tt.h)
		if got := decodeChannel(half, b); got != tt.f {
			t.Errorf("decode %#04x = %v, want %v", tt.h, got, tt.f)
		}
	}
	binary.LittleEndian.PutUint16(b, 0x7e00)
	if got := decodeChannel(half, b); !math.IsNaN(float64(got)) {
		t.Errorf("decode NaN = %v", got)
	}
}

func TestTexelRoundTrip(t *testing.T) {
	tests := []struct {
		format dxgi.Format
		color  [4]float32
		bytes  []byte
	}{
		{dxgi.FormatR8G8B8A8UNorm, [4]float32{1, 0, 0, 1}, []byte{255, 0, 0, 255}},
		{dxgi.FormatB8G8R8A8UNorm, [4]float32{1, 0, 0, 1}, []byte{0, 0, 255, 255}},
		{dxgi.FormatR8SNorm, [4]float32{-1, 0, 0, 1}, []byte{0x81}},
		{dxgi.FormatR16SInt, [4]float32{-3, 0, 0, 1}, []byte{0xfd, 0xff}},
		{dxgi.FormatR16G16Float, [4]float32{1, -2, 0, 1}, []byte{0x00, 0x3c, 0x00, 0xc0}},
		{dxgi.FormatR32Float, [4]float32{2.5, 0, 0, 1}, []byte{0x00, 0x00, 0x20, 0x40}},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			b, ok := encodeTexel(tt.format, tt.color)
			if !ok {
				t.Fatal("no encoding")
			}
			if string(b) != string(tt.bytes) {
				t.Fatalf("encoded % x, want % x", b, tt.bytes)
			}
			cf, err := compute.TranslateFormat(tt.format)
			if err != nil {
				t.Fatal(err)
			}
			got := decodeTexel(cf, b)
			for i := 0; i < int(cf.Channels); i++ {
				if math.Abs(float64(got[i]-tt.color[i])) > 1e-6 {
					t.Errorf("channel %d = %v, want %v", i, got[i], tt.color[i])
				}
			}
		})
	}
	if _, ok := encodeTexel(dxgi.FormatB8G8R8X8Typeless, [4]float32{}); ok {
		t.Error("typeless format encoded")
	}
}

func TestAddress(t *testing.T) {
	tests := []struct {
		mode compute.AddressMode
		i    int64
		want int64
		ok   bool
	}{
		{compute.AddressRepeat, -1, 3, true},
		{compute.AddressRepeat, 5, 1, true},
		{compute.AddressMirror, 4, 3, true},
		{compute.AddressMirror, -1, 0, true},
		{compute.AddressClamp, -3, 0, true},
		{compute.AddressClamp, 9, 3, true},
		{compute.AddressBorder, 4, 4, false},
		{compute.AddressBorder, 2, 2, true},
	}
	for _, tt := range tests {
		got, ok := address(tt.i, 4, tt.mode)
		if got != tt.want || ok != tt.ok {
			t.Errorf("address(%d, 4, %v) = %d, %v; want %d, %v", tt.i, tt.mode, got, ok, tt.want, tt.ok)
		}
	}
}

func TestTextureBorderAndPoint(t *testing.T) {
	cf, _ := compute.TranslateFormat(dxgi.FormatR8UNorm)
	a := &array{planes: [][]byte{{0, 255, 255, 0}}, width: 2, height: 2, depth: 1, format: cf}
	tex := &Texture{levels: []*array{a}, sampler: compute.SamplerDesc{
		Address:     [3]compute.AddressMode{compute.AddressBorder, compute.AddressBorder},
		Filter:      compute.FilterPoint,
		BorderColor: [4]float32{0.25, 0, 0, 0},
	}}
	if got := tex.Sample(1.5, 0.5)[0]; got != 1 {
		t.Errorf("point sample (1.5, 0.5) = %v, want 1", got)
	}
	if got := tex.Sample(2.5, 0.5)[0]; got != 0.25 {
		t.Errorf("border sample = %v, want 0.25", got)
	}
	if got := tex.SampleLevel(3, 0, 0, 0); got != ([4]float32{}) {
		t.Errorf("missing level = %v", got)
	}
}
