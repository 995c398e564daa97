package interop

import (
	"fmt"
	"sync"

	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/compute"
	"github.com/gogpu/gpuinterop/d3d12"
	"github.com/gogpu/gputypes"
)

// ExternalImage is a D3D12 texture imported as a compute mipmapped array.
type ExternalImage struct {
	s    *Session
	res  *d3d12.Resource
	desc compute.ImageDesc

	mu     sync.Mutex
	mem    compute.ExternalMemory
	arr    compute.MipmappedArray
	level0 compute.Array
}

// ImportImage imports a shareable texture. The descriptor is translated
// with compute.NewImageDesc; a backend refusing the image type yields a
// reported *gpuinterop.FeatureError and leaves nothing imported.
func (s *Session) ImportImage(res *d3d12.Resource, opts ...ImportOption) (*ExternalImage, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	o := importConfig(opts)
	desc, err := compute.NewImageDesc(compute.ImageInfo{Desc: res.Desc(), SurfaceLoadStore: o.surfaceLoadStore})
	if err != nil {
		return nil, fmt.Errorf("interop: import image: %w", err)
	}
	gpuinterop.Logger().Debug("interop: image descriptor",
		"type", desc.Type, "width", desc.Width, "height", desc.Height,
		"depth", desc.Depth, "layers", desc.Layers, "mips", desc.MipLevels,
		"format", desc.DXGIFormat, "webgpu_format", desc.DXGIFormat.GPUType(),
		"flags", uint32(desc.Flags))

	h, err := res.SharedHandle(o.name)
	if err != nil {
		return nil, fmt.Errorf("interop: import image: %w", err)
	}
	defer h.Close()

	mem, err := s.cdev.ImportMemory(h, res.CopiableSizeInBytes())
	if err != nil {
		return nil, featureErr(fmt.Errorf("interop: %s: import image memory: %w", s.API(), err))
	}
	arr, err := mem.MappedMipmappedArray(&desc)
	if err != nil {
		return nil, featureErr(joinDestroy(fmt.Errorf("interop: %s: map %s image: %w", s.API(), desc.Type, err), mem.Destroy))
	}
	return &ExternalImage{s: s, res: res, desc: desc, mem: mem, arr: arr}, nil
}

// Resource returns the source resource.
func (img *ExternalImage) Resource() *d3d12.Resource { return img.res }

// Desc returns the translated descriptor.
func (img *ExternalImage) Desc() compute.ImageDesc { return img.desc }

// TextureFormat returns the WebGPU equivalent of the image format, or
// gputypes.TextureFormatUndefined when there is none.
func (img *ExternalImage) TextureFormat() gputypes.TextureFormat {
	return img.desc.DXGIFormat.GPUType()
}

// TextureDimension returns the WebGPU dimension of the source texture.
func (img *ExternalImage) TextureDimension() gputypes.TextureDimension {
	d, _ := img.res.Desc().Dimension.GPUType()
	return d
}

// MipmappedArray returns the backend image pyramid.
func (img *ExternalImage) MipmappedArray() (compute.MipmappedArray, error) {
	img.mu.Lock()
	defer img.mu.Unlock()
	if img.arr == nil {
		return nil, ErrDestroyed
	}
	return img.arr, nil
}

// Level returns the backend array of one mip level. Level 0 is cached.
func (img *ExternalImage) Level(level uint32) (compute.Array, error) {
	img.mu.Lock()
	defer img.mu.Unlock()
	if img.arr == nil {
		return nil, ErrDestroyed
	}
	if level == 0 && img.level0 != nil {
		return img.level0, nil
	}
	if level >= img.desc.MipLevels {
		return nil, fmt.Errorf("interop: mip level %d of %d", level, img.desc.MipLevels)
	}
	a, err := img.arr.Level(level)
	if err != nil {
		return nil, fmt.Errorf("interop: %s: mip level %d: %w", img.s.API(), level, err)
	}
	if level == 0 {
		img.level0 = a
	}
	return a, nil
}

// LevelExtent returns the copy extent of one mip level: width in pixels,
// height, and depth or layer count.
func (img *ExternalImage) LevelExtent(level uint32) (width uint64, height, depth uint32) {
	w, h, d := img.desc.Extent()
	width = max(w>>level, 1)
	height = max(h>>level, 1)
	depth = d
	if img.desc.Type == compute.Image3D {
		depth = max(d>>level, 1)
	}
	return width, height, depth
}

// LevelSize returns the tightly packed byte size of one mip level.
func (img *ExternalImage) LevelSize(level uint32) uint64 {
	w, h, d := img.LevelExtent(level)
	return w * uint64(img.desc.Format.ElementSize()) * uint64(h) * uint64(d)
}

// levelCopy builds the 2D or 3D copy of a full level with linear endpoint
// lin. Row pitch is width times the element size and slice pitch row pitch
// times height.
func (img *ExternalImage) levelCopy(level uint32, lin compute.Endpoint, toImage bool) (*compute.Copy, error) {
	a, err := img.Level(level)
	if err != nil {
		return nil, err
	}
	w, h, d := img.LevelExtent(level)
	rowPitch := w * uint64(img.desc.Format.ElementSize())
	lin = lin.Pitched(rowPitch, h)
	if toImage {
		return compute.ImageCopy(compute.ArrayEndpoint(a), lin, rowPitch, h, d), nil
	}
	return compute.ImageCopy(lin, compute.ArrayEndpoint(a), rowPitch, h, d), nil
}

func (img *ExternalImage) enqueue(level uint32, lin compute.Endpoint, toImage bool, s compute.Stream, opts []compute.OpOption) error {
	c, err := img.levelCopy(level, lin, toImage)
	if err != nil {
		return err
	}
	if err := img.s.cdev.Copy(c, s, opts...); err != nil {
		return fmt.Errorf("interop: %s: image copy: %w", img.s.API(), err)
	}
	return nil
}

func (img *ExternalImage) checkHost(level uint32, n int) error {
	if want := img.LevelSize(level); uint64(n) < want {
		return fmt.Errorf("interop: level %d needs %d bytes, host buffer holds %d: %w", level, want, n, gpuinterop.ErrCopySizeMismatch)
	}
	return nil
}

// CopyToDevicePtrAsync enqueues a copy of one mip level into linear device
// memory at dst.
func (img *ExternalImage) CopyToDevicePtrAsync(dst compute.DevicePtr, level uint32, s compute.Stream, opts ...compute.OpOption) error {
	return img.enqueue(level, compute.DeviceEndpoint(dst, 0), false, s, opts)
}

// CopyFromDevicePtrAsync enqueues a copy of linear device memory at src
// into one mip level.
func (img *ExternalImage) CopyFromDevicePtrAsync(src compute.DevicePtr, level uint32, s compute.Stream, opts ...compute.OpOption) error {
	return img.enqueue(level, compute.DeviceEndpoint(src, 0), true, s, opts)
}

// CopyToHostPtrAsync enqueues a download of one mip level into dst.
func (img *ExternalImage) CopyToHostPtrAsync(dst []byte, level uint32, s compute.Stream, opts ...compute.OpOption) error {
	if err := img.checkHost(level, len(dst)); err != nil {
		return err
	}
	return img.enqueue(level, compute.HostEndpoint(dst), false, s, opts)
}

// CopyFromHostPtrAsync enqueues an upload of src into one mip level.
func (img *ExternalImage) CopyFromHostPtrAsync(src []byte, level uint32, s compute.Stream, opts ...compute.OpOption) error {
	if err := img.checkHost(level, len(src)); err != nil {
		return err
	}
	return img.enqueue(level, compute.HostEndpoint(src), true, s, opts)
}

// Destroy releases the array and the imported memory. Views must be
// destroyed first.
func (img *ExternalImage) Destroy() error {
	img.mu.Lock()
	defer img.mu.Unlock()
	if img.mem == nil {
		return nil
	}
	var err error
	if img.arr != nil {
		err = img.arr.Destroy()
	}
	if merr := img.mem.Destroy(); err == nil {
		err = merr
	}
	img.arr, img.mem, img.level0 = nil, nil, nil
	return err
}
