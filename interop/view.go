package interop

import (
	"fmt"
	"sync"

	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/compute"
	"github.com/gogpu/gpuinterop/d3d12"
	"github.com/gogpu/gputypes"
)

// ImageView is an unsampled view: one mip level of an imported image as a
// storage (surface) object. It does not own the image.
type ImageView struct {
	img   *ExternalImage
	level uint32

	mu   sync.Mutex
	surf compute.SurfaceObject
}

// NewImageView creates a storage view of level. The image must have been
// imported WithSurfaceLoadStore on backends that require it.
func (img *ExternalImage) NewImageView(level uint32) (*ImageView, error) {
	a, err := img.Level(level)
	if err != nil {
		return nil, err
	}
	surf, err := img.s.cdev.CreateSurfaceObject(a)
	if err != nil {
		return nil, featureErr(fmt.Errorf("interop: %s: surface object: %w", img.s.API(), err))
	}
	return &ImageView{img: img, level: level, surf: surf}, nil
}

// Image returns the viewed image.
func (v *ImageView) Image() *ExternalImage { return v.img }

// Level returns the viewed mip level.
func (v *ImageView) Level() uint32 { return v.level }

// Surface returns the backend surface object.
func (v *ImageView) Surface() compute.SurfaceObject {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.surf
}

// Destroy releases the surface object.
func (v *ImageView) Destroy() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.surf == nil {
		return nil
	}
	err := v.surf.Destroy()
	v.surf = nil
	return err
}

// SampledImageView is an imported image with a sampler bound at
// construction. Mipmapped images sample the whole pyramid and always use
// normalized coordinates.
type SampledImageView struct {
	img     *ExternalImage
	sampler compute.SamplerDesc

	mu  sync.Mutex
	tex compute.TextureObject
}

// NewSampledImageView translates sampler and creates the texture object.
func (img *ExternalImage) NewSampledImageView(sampler d3d12.SamplerDesc, opts compute.SamplerOptions) (*SampledImageView, error) {
	desc := img.Desc()
	mipmapped := desc.MipLevels > 1
	sd := compute.TranslateSampler(sampler, opts, mipmapped)

	var src compute.TextureSource
	if mipmapped {
		arr, err := img.MipmappedArray()
		if err != nil {
			return nil, err
		}
		src.Mipmapped = arr
	} else {
		a, err := img.Level(0)
		if err != nil {
			return nil, err
		}
		src.Level = a
	}
	gpuinterop.Logger().Debug("interop: sampler translated",
		"filter", sd.Filter, "mip_filter", sd.MipFilter,
		"address_u", sd.Address[0], "address_v", sd.Address[1], "address_w", sd.Address[2],
		"normalized", sd.NormalizedCoords)

	tex, err := img.s.cdev.CreateTextureObject(src, &desc, &sd)
	if err != nil {
		return nil, featureErr(fmt.Errorf("interop: %s: texture object: %w", img.s.API(), err))
	}
	return &SampledImageView{img: img, sampler: sd, tex: tex}, nil
}

// NewSampledImageViewGPU is NewSampledImageView for WebGPU-style sampler
// state. The address mode applies to all three axes.
func (img *ExternalImage) NewSampledImageViewGPU(address gputypes.AddressMode, filter gputypes.FilterMode, opts compute.SamplerOptions) (*SampledImageView, error) {
	return img.NewSampledImageView(d3d12.SamplerDescFromGPU(address, filter), opts)
}

// Image returns the viewed image.
func (v *SampledImageView) Image() *ExternalImage { return v.img }

// Sampler returns the translated sampler state.
func (v *SampledImageView) Sampler() compute.SamplerDesc { return v.sampler }

// Texture returns the backend texture object.
func (v *SampledImageView) Texture() compute.TextureObject {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tex
}

// Destroy releases the texture object.
func (v *SampledImageView) Destroy() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.tex == nil {
		return nil
	}
	err := v.tex.Destroy()
	v.tex = nil
	return err
}
