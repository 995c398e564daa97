// Package compute is the backend-neutral half of the interop layer: the
// compute-API tag, the per-backend vtable (Backend, Device, ExternalMemory,
// ExternalSemaphore), the registry that probes backends in priority order,
// the LUID device matcher, and the DXGI format and sampler translation
// tables.
//
// Backends live in sub-packages and register themselves from init:
//
//	import (
//	    _ "github.com/gogpu/gpuinterop/compute/cuda"
//	    _ "github.com/gogpu/gpuinterop/compute/levelzero"
//	)
//
//	reg := compute.Default()
//	backend, info, err := reg.Resolve(compute.AdapterIdentity{LUID: dev.LUID()})
package compute
