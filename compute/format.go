package compute

import (
	"fmt"

	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/dxgi"
)

// ChannelKind is how a backend interprets channel bits.
type ChannelKind uint8

// Channel kinds.
const (
	ChannelUnsigned ChannelKind = iota + 1
	ChannelSigned
	ChannelUNorm
	ChannelSNorm
	ChannelFloat
)

func (k ChannelKind) String() string {
	switch k {
	case ChannelUnsigned:
		return "uint"
	case ChannelSigned:
		return "sint"
	case ChannelUNorm:
		return "unorm"
	case ChannelSNorm:
		return "snorm"
	case ChannelFloat:
		return "float"
	default:
		return fmt.Sprintf("ChannelKind(%d)", uint8(k))
	}
}

// SwizzleSource selects what feeds one output component: a memory channel
// index (0-3) or a constant.
type SwizzleSource uint8

// Swizzle sources.
const (
	SwizzleChannel0 SwizzleSource = iota
	SwizzleChannel1
	SwizzleChannel2
	SwizzleChannel3
	SwizzleZero
	SwizzleOne
)

// Swizzle maps memory channels to the R, G, B and A outputs.
type Swizzle [4]SwizzleSource

// Standard swizzles.
var (
	SwizzleRGBA = Swizzle{SwizzleChannel0, SwizzleChannel1, SwizzleChannel2, SwizzleChannel3}
	SwizzleBGRA = Swizzle{SwizzleChannel2, SwizzleChannel1, SwizzleChannel0, SwizzleChannel3}
)

func defaultSwizzle(channels uint8) Swizzle {
	s := Swizzle{SwizzleZero, SwizzleZero, SwizzleZero, SwizzleOne}
	for i := uint8(0); i < channels; i++ {
		s[i] = SwizzleSource(i)
	}
	return s
}

// Apply maps memory channels to outputs; one is the value of a constant 1
// in the channel representation.
func (s Swizzle) Apply(mem [4]uint32, one uint32) [4]uint32 {
	var out [4]uint32
	for i, src := range s {
		switch src {
		case SwizzleZero:
			out[i] = 0
		case SwizzleOne:
			out[i] = one
		default:
			out[i] = mem[src]
		}
	}
	return out
}

// Unapply is the inverse of Apply for the channels the swizzle reads.
func (s Swizzle) Unapply(out [4]uint32) [4]uint32 {
	var mem [4]uint32
	for i, src := range s {
		if src <= SwizzleChannel3 {
			mem[src] = out[i]
		}
	}
	return mem
}

// ChannelFormat is the backend-side description of a DXGI format.
type ChannelFormat struct {
	Kind     ChannelKind
	Bits     uint8 // per channel: 8, 16 or 32
	Channels uint8 // 1 to 4
	Swizzle  Swizzle
}

// ElementSize returns the bytes per pixel.
func (c ChannelFormat) ElementSize() uint32 {
	return uint32(c.Bits) / 8 * uint32(c.Channels)
}

// One returns the representation of 1.0 (or 1) in one channel.
func (c ChannelFormat) One() uint32 {
	switch c.Kind {
	case ChannelUNorm:
		return 1<<c.Bits - 1
	case ChannelSNorm:
		return 1<<(c.Bits-1) - 1
	case ChannelFloat:
		if c.Bits == 16 {
			return 0x3c00
		}
		return 0x3f800000
	default:
		return 1
	}
}

// Unpack splits a texel of at most 32 bits into channels in memory order.
func (c ChannelFormat) Unpack(texel uint32) [4]uint32 {
	var out [4]uint32
	mask := uint32(1)<<c.Bits - 1
	if c.Bits == 32 {
		mask = ^uint32(0)
	}
	for i := uint8(0); i < c.Channels; i++ {
		out[i] = texel >> (uint32(i) * uint32(c.Bits)) & mask
	}
	return out
}

// Pack is the inverse of Unpack.
func (c ChannelFormat) Pack(ch [4]uint32) uint32 {
	var texel uint32
	mask := uint32(1)<<c.Bits - 1
	if c.Bits == 32 {
		mask = ^uint32(0)
	}
	for i := uint8(0); i < c.Channels; i++ {
		texel |= (ch[i] & mask) << (uint32(i) * uint32(c.Bits))
	}
	return texel
}

type formatEntry struct {
	kind     ChannelKind
	bits     uint8
	channels uint8
}

var formatTable = map[dxgi.Format]formatEntry{
	dxgi.FormatR32G32B32A32Float: {ChannelFloat, 32, 4},
	dxgi.FormatR32G32B32A32UInt:  {ChannelUnsigned, 32, 4},
	dxgi.FormatR32G32B32A32SInt:  {ChannelSigned, 32, 4},
	dxgi.FormatR32G32B32Float:    {ChannelFloat, 32, 3},
	dxgi.FormatR32G32B32UInt:     {ChannelUnsigned, 32, 3},
	dxgi.FormatR32G32B32SInt:     {ChannelSigned, 32, 3},

	dxgi.FormatR16G16B16A16Float: {ChannelFloat, 16, 4},
	dxgi.FormatR16G16B16A16UNorm: {ChannelUNorm, 16, 4},
	dxgi.FormatR16G16B16A16UInt:  {ChannelUnsigned, 16, 4},
	dxgi.FormatR16G16B16A16SNorm: {ChannelSNorm, 16, 4},
	dxgi.FormatR16G16B16A16SInt:  {ChannelSigned, 16, 4},

	dxgi.FormatR32G32Float: {ChannelFloat, 32, 2},
	dxgi.FormatR32G32UInt:  {ChannelUnsigned, 32, 2},
	dxgi.FormatR32G32SInt:  {ChannelSigned, 32, 2},

	dxgi.FormatR8G8B8A8UNorm: {ChannelUNorm, 8, 4},
	dxgi.FormatR8G8B8A8UInt:  {ChannelUnsigned, 8, 4},
	dxgi.FormatR8G8B8A8SNorm: {ChannelSNorm, 8, 4},
	dxgi.FormatR8G8B8A8SInt:  {ChannelSigned, 8, 4},
	dxgi.FormatB8G8R8A8UNorm: {ChannelUNorm, 8, 4},

	dxgi.FormatR16G16Float: {ChannelFloat, 16, 2},
	dxgi.FormatR16G16UNorm: {ChannelUNorm, 16, 2},
	dxgi.FormatR16G16UInt:  {ChannelUnsigned, 16, 2},
	dxgi.FormatR16G16SNorm: {ChannelSNorm, 16, 2},
	dxgi.FormatR16G16SInt:  {ChannelSigned, 16, 2},

	dxgi.FormatD32Float: {ChannelFloat, 32, 1},
	dxgi.FormatR32Float: {ChannelFloat, 32, 1},
	dxgi.FormatR32UInt:  {ChannelUnsigned, 32, 1},
	dxgi.FormatR32SInt:  {ChannelSigned, 32, 1},

	dxgi.FormatR8G8UNorm: {ChannelUNorm, 8, 2},
	dxgi.FormatR8G8UInt:  {ChannelUnsigned, 8, 2},
	dxgi.FormatR8G8SNorm: {ChannelSNorm, 8, 2},
	dxgi.FormatR8G8SInt:  {ChannelSigned, 8, 2},

	dxgi.FormatR16Float: {ChannelFloat, 16, 1},
	dxgi.FormatD16UNorm: {ChannelUNorm, 16, 1},
	dxgi.FormatR16UNorm: {ChannelUNorm, 16, 1},
	dxgi.FormatR16UInt:  {ChannelUnsigned, 16, 1},
	dxgi.FormatR16SNorm: {ChannelSNorm, 16, 1},
	dxgi.FormatR16SInt:  {ChannelSigned, 16, 1},

	dxgi.FormatR8UNorm: {ChannelUNorm, 8, 1},
	dxgi.FormatR8UInt:  {ChannelUnsigned, 8, 1},
	dxgi.FormatR8SNorm: {ChannelSNorm, 8, 1},
	dxgi.FormatR8SInt:  {ChannelSigned, 8, 1},
}

// TranslateFormat maps a DXGI format to its backend channel format. Formats
// outside the table return an error wrapping gpuinterop.ErrUnsupportedFormat.
func TranslateFormat(f dxgi.Format) (ChannelFormat, error) {
	e, ok := formatTable[f]
	if !ok {
		return ChannelFormat{}, fmt.Errorf("compute: %s: %w", f, gpuinterop.ErrUnsupportedFormat)
	}
	c := ChannelFormat{
		Kind:     e.kind,
		Bits:     e.bits,
		Channels: e.channels,
		Swizzle:  defaultSwizzle(e.channels),
	}
	if f == dxgi.FormatB8G8R8A8UNorm {
		c.Swizzle = SwizzleBGRA
	}
	return c, nil
}

// SupportedFormats lists every format TranslateFormat accepts.
func SupportedFormats() []dxgi.Format {
	out := make([]dxgi.Format, 0, len(formatTable))
	for f := range formatTable {
		out = append(out, f)
	}
	return out
}
