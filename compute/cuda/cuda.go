package cuda

import (
	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/compute"
	"github.com/gogpu/gpuinterop/internal/cudaapi"
)

func init() {
	compute.Register(compute.APICUDA, func(cfg *gpuinterop.Config) compute.Backend {
		return NewBackend(cfg)
	})
}

// NewBackend returns an uninitialized CUDA backend. Config.CUDALibrary
// overrides the driver library name.
func NewBackend(cfg *gpuinterop.Config) compute.Backend {
	var library string
	if cfg != nil {
		library = cfg.CUDALibrary
	}
	return cudaapi.NewBackend(&cudaapi.CUDA, library)
}
