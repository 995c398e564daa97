package compute

import "fmt"

// MemoryKind tags one end of a copy.
type MemoryKind uint8

// Memory kinds.
const (
	MemoryHost MemoryKind = iota + 1
	MemoryDevice
	MemoryArray
)

func (k MemoryKind) String() string {
	switch k {
	case MemoryHost:
		return "host"
	case MemoryDevice:
		return "device"
	case MemoryArray:
		return "array"
	default:
		return fmt.Sprintf("MemoryKind(%d)", uint8(k))
	}
}

// Endpoint is one end of a copy.
type Endpoint struct {
	Kind MemoryKind

	// Host must stay valid until the stream has passed the copy.
	Host   []byte
	Device DevicePtr
	Array  Array

	// Offset is a byte offset for host and device endpoints.
	Offset uint64

	// Pitch is the row pitch and Height the rows per slice of a linear
	// endpoint in a 2D or 3D copy.
	Pitch  uint64
	Height uint32
}

// HostEndpoint addresses host memory.
func HostEndpoint(b []byte) Endpoint {
	return Endpoint{Kind: MemoryHost, Host: b}
}

// DeviceEndpoint addresses device memory at p+offset.
func DeviceEndpoint(p DevicePtr, offset uint64) Endpoint {
	return Endpoint{Kind: MemoryDevice, Device: p, Offset: offset}
}

// ArrayEndpoint addresses the origin of an image level.
func ArrayEndpoint(a Array) Endpoint {
	return Endpoint{Kind: MemoryArray, Array: a}
}

// Pitched sets the row pitch and rows per slice of a linear endpoint.
func (e Endpoint) Pitched(pitch uint64, height uint32) Endpoint {
	e.Pitch = pitch
	e.Height = height
	return e
}

// Copy describes a linear, 2D or 3D copy. Linear copies have Height and
// Depth of 1 and move WidthBytes bytes.
type Copy struct {
	Dst, Src   Endpoint
	WidthBytes uint64
	Height     uint32
	Depth      uint32
}

// LinearCopy moves n bytes.
func LinearCopy(dst, src Endpoint, n uint64) *Copy {
	return &Copy{Dst: dst, Src: src, WidthBytes: n, Height: 1, Depth: 1}
}

// ImageCopy moves a width x height x depth block of rows of rowBytes bytes;
// linear endpoints are given the tightly packed pitches.
func ImageCopy(dst, src Endpoint, rowBytes uint64, height, depth uint32) *Copy {
	if dst.Kind != MemoryArray && dst.Pitch == 0 {
		dst = dst.Pitched(rowBytes, height)
	}
	if src.Kind != MemoryArray && src.Pitch == 0 {
		src = src.Pitched(rowBytes, height)
	}
	return &Copy{Dst: dst, Src: src, WidthBytes: rowBytes, Height: height, Depth: depth}
}

// Bytes returns the payload size.
func (c *Copy) Bytes() uint64 {
	return c.WidthBytes * uint64(max(c.Height, 1)) * uint64(max(c.Depth, 1))
}

// Is3D reports whether the copy needs a 3D descriptor.
func (c *Copy) Is3D() bool { return c.Depth > 1 }

// Linear reports whether neither end is an array and the copy is a single
// row.
func (c *Copy) Linear() bool {
	return c.Dst.Kind != MemoryArray && c.Src.Kind != MemoryArray && max(c.Height, 1) == 1 && max(c.Depth, 1) == 1
}

// Validate checks that both endpoints are addressable and host endpoints
// are large enough.
func (c *Copy) Validate() error {
	for _, e := range []struct {
		name string
		ep   Endpoint
	}{{"dst", c.Dst}, {"src", c.Src}} {
		switch e.ep.Kind {
		case MemoryHost:
			if need := e.ep.Offset + c.span(e.ep); uint64(len(e.ep.Host)) < need {
				return fmt.Errorf("%w: %s host buffer holds %d bytes, copy needs %d", ErrInvalidCopy, e.name, len(e.ep.Host), need)
			}
		case MemoryDevice:
			if e.ep.Device == 0 {
				return fmt.Errorf("%w: %s device pointer is nil", ErrInvalidCopy, e.name)
			}
		case MemoryArray:
			if e.ep.Array == nil {
				return fmt.Errorf("%w: %s array is nil", ErrInvalidCopy, e.name)
			}
		default:
			return fmt.Errorf("%w: %s kind %s", ErrInvalidCopy, e.name, e.ep.Kind)
		}
	}
	if c.WidthBytes == 0 {
		return fmt.Errorf("%w: empty copy", ErrInvalidCopy)
	}
	return nil
}

// span returns the bytes a linear endpoint covers.
func (c *Copy) span(e Endpoint) uint64 {
	h, d := uint64(max(c.Height, 1)), uint64(max(c.Depth, 1))
	if h == 1 && d == 1 {
		return c.WidthBytes
	}
	pitch := max(e.Pitch, c.WidthBytes)
	rows := uint64(max(e.Height, c.Height))
	return pitch*rows*(d-1) + pitch*(h-1) + c.WidthBytes
}
