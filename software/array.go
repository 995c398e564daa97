package software

import (
	"fmt"
	"unsafe"

	"github.com/chewxy/math32"
	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/compute"
)

// array is one mip level of an imported image. Layered images keep one
// plane per layer; other images have a single plane holding every depth
// slice.
type array struct {
	planes   [][]byte
	width    uint64
	height   uint32
	depth    uint32
	layered  bool
	writable bool
	format   compute.ChannelFormat
}

func (a *array) Handle() uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(a.planes[0])))
}

func (a *array) pitch() uint64 {
	return a.width * uint64(a.format.ElementSize())
}

// row returns row y of slice z, where z is a layer for layered images and a
// depth slice otherwise.
func (a *array) row(z, y uint32) ([]byte, error) {
	if y >= a.height {
		return nil, fmt.Errorf("%w: row %d of %d", compute.ErrInvalidCopy, y, a.height)
	}
	pitch := a.pitch()
	plane, off := a.planes[0], uint64(0)
	if a.layered {
		if int(z) >= len(a.planes) {
			return nil, fmt.Errorf("%w: layer %d of %d", compute.ErrInvalidCopy, z, len(a.planes))
		}
		plane = a.planes[z]
	} else {
		if z >= a.depth {
			return nil, fmt.Errorf("%w: slice %d of %d", compute.ErrInvalidCopy, z, a.depth)
		}
		off = uint64(z) * pitch * uint64(a.height)
	}
	off += uint64(y) * pitch
	return plane[off : off+pitch], nil
}

func (a *array) texel(x, y, z uint32) ([]byte, error) {
	if uint64(x) >= a.width {
		return nil, fmt.Errorf("%w: column %d of %d", compute.ErrInvalidCopy, x, a.width)
	}
	r, err := a.row(z, y)
	if err != nil {
		return nil, err
	}
	size := uint64(a.format.ElementSize())
	return r[uint64(x)*size : uint64(x+1)*size], nil
}

type mipmappedArray struct {
	levels []*array
}

// newMipmappedArray lays desc over data the way the software driver packs
// texture subresources: slice-major, then mip level, rows tightly packed.
func newMipmappedArray(data []byte, desc *compute.ImageDesc) (*mipmappedArray, error) {
	mips := max(desc.MipLevels, 1)
	slices := uint32(1)
	if desc.Type.Layered() {
		slices = max(desc.Layers, 1)
	}
	elem := uint64(desc.Format.ElementSize())
	levels := make([]*array, mips)
	for l := range levels {
		levels[l] = &array{
			width:    max(desc.Width>>l, 1),
			height:   max(desc.Height>>l, 1),
			depth:    1,
			layered:  desc.Type.Layered(),
			writable: desc.Flags&compute.FlagSurfaceLoadStore != 0,
			format:   desc.Format,
		}
		if desc.Type == compute.Image3D {
			levels[l].depth = max(desc.Depth>>l, 1)
		}
	}
	var off uint64
	for s := uint32(0); s < slices; s++ {
		for _, a := range levels {
			size := a.width * elem * uint64(a.height) * uint64(a.depth)
			if off+size > uint64(len(data)) {
				return nil, fmt.Errorf("%w: %s image needs %d bytes, memory holds %d",
					gpuinterop.ErrCopySizeMismatch, desc.Type, off+size, len(data))
			}
			a.planes = append(a.planes, data[off:off+size])
			off += size
		}
	}
	return &mipmappedArray{levels: levels}, nil
}

func (m *mipmappedArray) Level(level uint32) (compute.Array, error) {
	if int(level) >= len(m.levels) {
		return nil, fmt.Errorf("software: mip level %d of %d", level, len(m.levels))
	}
	return m.levels[level], nil
}

func (m *mipmappedArray) Destroy() error {
	m.levels = nil
	return nil
}

// Texture is a sampled image object.
type Texture struct {
	id      uint64
	levels  []*array
	sampler compute.SamplerDesc
}

// Handle implements compute.TextureObject.
func (t *Texture) Handle() uint64 { return t.id }

// Destroy implements compute.TextureObject.
func (t *Texture) Destroy() error {
	t.levels = nil
	return nil
}

// Sample reads the base level at (u, v).
func (t *Texture) Sample(u, v float32) [4]float32 {
	return t.SampleLevel(0, 0, u, v)
}

// SampleLevel reads one mip level at (u, v); slice selects the layer of a
// layered image or the depth slice of a volume.
func (t *Texture) SampleLevel(level, slice uint32, u, v float32) [4]float32 {
	if int(level) >= len(t.levels) {
		return [4]float32{}
	}
	a := t.levels[level]
	x, y := t.coord(u, a.width), t.coord(v, uint64(a.height))
	if t.sampler.Filter == compute.FilterPoint {
		return t.fetch(a, slice, int64(math32.Floor(x)), int64(math32.Floor(y)))
	}
	x, y = x-0.5, y-0.5
	x0, y0 := math32.Floor(x), math32.Floor(y)
	fx, fy := x-x0, y-y0
	ix, iy := int64(x0), int64(y0)
	t00 := t.fetch(a, slice, ix, iy)
	t10 := t.fetch(a, slice, ix+1, iy)
	t01 := t.fetch(a, slice, ix, iy+1)
	t11 := t.fetch(a, slice, ix+1, iy+1)
	var out [4]float32
	for i := range out {
		top := t00[i]*(1-fx) + t10[i]*fx
		bottom := t01[i]*(1-fx) + t11[i]*fx
		out[i] = top*(1-fy) + bottom*fy
	}
	return out
}

// SampleLOD reads at a level of detail, blending neighboring levels when
// the mip filter is linear.
func (t *Texture) SampleLOD(u, v, lod float32) [4]float32 {
	if len(t.levels) == 0 {
		return [4]float32{}
	}
	lod += t.sampler.MipLODBias
	lod = clamp(lod, t.sampler.MinLOD, t.sampler.MaxLOD)
	lod = clamp(lod, 0, float32(len(t.levels)-1))
	if t.sampler.MipFilter == compute.FilterPoint {
		return t.SampleLevel(uint32(math32.Round(lod)), 0, u, v)
	}
	lo := uint32(lod)
	hi := min(lo+1, uint32(len(t.levels)-1))
	f := lod - float32(lo)
	a, b := t.SampleLevel(lo, 0, u, v), t.SampleLevel(hi, 0, u, v)
	var out [4]float32
	for i := range out {
		out[i] = a[i]*(1-f) + b[i]*f
	}
	return out
}

func (t *Texture) coord(c float32, size uint64) float32 {
	if t.sampler.NormalizedCoords {
		return c * float32(size)
	}
	return c
}

func (t *Texture) fetch(a *array, slice uint32, x, y int64) [4]float32 {
	ix, okx := address(x, int64(a.width), t.sampler.Address[0])
	iy, oky := address(y, int64(a.height), t.sampler.Address[1])
	if !okx || !oky {
		return t.sampler.BorderColor
	}
	b, err := a.texel(uint32(ix), uint32(iy), slice)
	if err != nil {
		return t.sampler.BorderColor
	}
	cf := a.format
	if t.sampler.ReadAsInteger {
		switch cf.Kind {
		case compute.ChannelUNorm:
			cf.Kind = compute.ChannelUnsigned
		case compute.ChannelSNorm:
			cf.Kind = compute.ChannelSigned
		}
	}
	return decodeTexel(cf, b)
}

// address applies an addressing mode; false means the border color.
func address(i, n int64, mode compute.AddressMode) (int64, bool) {
	switch mode {
	case compute.AddressRepeat:
		return ((i % n) + n) % n, true
	case compute.AddressMirror:
		m := ((i % (2 * n)) + 2*n) % (2 * n)
		if m >= n {
			m = 2*n - 1 - m
		}
		return m, true
	case compute.AddressBorder:
		return i, i >= 0 && i < n
	default:
		return min(max(i, 0), n-1), true
	}
}

// Surface is a storage image object.
type Surface struct {
	id  uint64
	arr *array
}

// Handle implements compute.SurfaceObject.
func (s *Surface) Handle() uint64 { return s.id }

// Destroy implements compute.SurfaceObject.
func (s *Surface) Destroy() error {
	s.arr = nil
	return nil
}

// Texel returns the bytes of one texel; writes go straight to the image.
func (s *Surface) Texel(x, y, z uint32) ([]byte, error) {
	if s.arr == nil {
		return nil, gpuinterop.ErrClosed
	}
	return s.arr.texel(x, y, z)
}

// Load decodes one texel.
func (s *Surface) Load(x, y, z uint32) ([4]float32, error) {
	b, err := s.Texel(x, y, z)
	if err != nil {
		return [4]float32{}, err
	}
	return decodeTexel(s.arr.format, b), nil
}

// Store encodes one texel.
func (s *Surface) Store(x, y, z uint32, c [4]float32) error {
	b, err := s.Texel(x, y, z)
	if err != nil {
		return err
	}
	encodeTexelInto(s.arr.format, c, b)
	return nil
}
