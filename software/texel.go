package software

import (
	"encoding/binary"

	"github.com/chewxy/math32"
	"github.com/gogpu/gpuinterop/compute"
	"github.com/gogpu/gpuinterop/dxgi"
	"github.com/x448/float16"
)

// decodeTexel reads one texel in memory channel order and returns it as
// normalized or numeric floats after the format's swizzle.
func decodeTexel(cf compute.ChannelFormat, b []byte) [4]float32 {
	var mem [4]float32
	size := int(cf.Bits / 8)
	for i := 0; i < int(cf.Channels); i++ {
		mem[i] = decodeChannel(cf, b[i*size:])
	}
	var out [4]float32
	for i, src := range cf.Swizzle {
		switch src {
		case compute.SwizzleZero:
		case compute.SwizzleOne:
			out[i] = 1
		default:
			out[i] = mem[src]
		}
	}
	return out
}

func decodeChannel(cf compute.ChannelFormat, b []byte) float32 {
	var raw uint32
	switch cf.Bits {
	case 8:
		raw = uint32(b[0])
	case 16:
		raw = uint32(binary.LittleEndian.Uint16(b))
	default:
		raw = binary.LittleEndian.Uint32(b)
	}
	switch cf.Kind {
	case compute.ChannelUNorm:
		return float32(raw) / float32(cf.One())
	case compute.ChannelSNorm:
		v := float32(signExtend(raw, cf.Bits)) / float32(cf.One())
		return max(v, -1)
	case compute.ChannelSigned:
		return float32(signExtend(raw, cf.Bits))
	case compute.ChannelFloat:
		if cf.Bits == 16 {
			return float16.Frombits(uint16(raw)).Float32()
		}
		return math32.Float32frombits(raw)
	default:
		return float32(raw)
	}
}

func signExtend(v uint32, bits uint8) int32 {
	shift := 32 - uint32(bits)
	return int32(v<<shift) >> shift
}

// encodeTexel is the inverse of decodeTexel for the formats compute
// understands.
func encodeTexel(f dxgi.Format, color [4]float32) ([]byte, bool) {
	cf, err := compute.TranslateFormat(f)
	if err != nil {
		return nil, false
	}
	out := make([]byte, cf.ElementSize())
	encodeTexelInto(cf, color, out)
	return out, true
}

func encodeTexelInto(cf compute.ChannelFormat, color [4]float32, b []byte) {
	var mem [4]float32
	for i, src := range cf.Swizzle {
		if src <= compute.SwizzleChannel3 {
			mem[src] = color[i]
		}
	}
	size := int(cf.Bits / 8)
	for i := 0; i < int(cf.Channels); i++ {
		encodeChannel(cf, mem[i], b[i*size:])
	}
}

func encodeChannel(cf compute.ChannelFormat, v float32, b []byte) {
	var raw uint32
	switch cf.Kind {
	case compute.ChannelUNorm:
		raw = uint32(math32.Round(clamp(v, 0, 1) * float32(cf.One())))
	case compute.ChannelSNorm:
		raw = uint32(int32(math32.Round(clamp(v, -1, 1) * float32(cf.One()))))
	case compute.ChannelSigned:
		raw = uint32(int32(v))
	case compute.ChannelFloat:
		if cf.Bits == 16 {
			raw = uint32(float16.Fromfloat32(v).Bits())
		} else {
			raw = math32.Float32bits(v)
		}
	default:
		raw = uint32(max(v, 0))
	}
	switch cf.Bits {
	case 8:
		b[0] = byte(raw)
	case 16:
		binary.LittleEndian.PutUint16(b, uint16(raw))
	default:
		binary.LittleEndian.PutUint32(b, raw)
	}
}

func clamp(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}
