// Package gpuinterop is the cross-API GPU interop core: it lets memory
// buffers, images and timeline fences created with D3D12 be imported into a
// compute API (CUDA, HIP, Level Zero or SYCL) running on the same physical
// GPU, and coordinates the two APIs through shared timeline fences.
//
// # Overview
//
// The root package holds what every layer shares: error kinds, the logger
// and the process-wide configuration. The work is split across
// sub-packages:
//
//   - handle: scoped ownership of OS handles (NT handles, file descriptors)
//   - dxgi: formats, adapter identity and vendor tags
//   - d3d12: devices, shareable resources and fences, adapter selection
//   - compute: compute-API registry, device matching, format translation
//   - compute/cuda, compute/hip, compute/levelzero, compute/sycl: backends
//   - interop: imported buffers, images, views and semaphores
//   - software: host-memory reference adapter for tests and tooling
//   - cmd/interopinfo: lists adapters, compute APIs and their matches
//
// # Quick Start
//
//	dev, err := d3d12.CreateMatchingDevice(drv, luid,
//	    []d3d12.FeatureLevel{d3d12.FeatureLevel12_1, d3d12.FeatureLevel12_0})
//	if err != nil {
//	    return err
//	}
//	sess, err := interop.NewSession(dev)
//	if errors.Is(err, gpuinterop.ErrUnsupportedComputeAPI) {
//	    // run without interop
//	}
//	buf, err := sess.ImportBuffer(res)
//	sem, err := sess.ImportSemaphore(fence)
//
// # Scheduling
//
// All copies and semaphore operations are stream-scoped and return without
// host synchronization. Producer work on D3D12 signals a shared fence at
// value T, the compute stream waits for T, runs, and signals T+1, and D3D12
// waits for T+1 before consuming. The host blocks only in
// d3d12.Device.SingleTimeCommands and d3d12.Fence.WaitOnCPU.
//
// # Errors
//
// Every operation returns an error. ErrUnsupportedComputeAPIFeature is the
// distinguished recoverable kind: callers may downgrade to a host staging
// copy. See errors.go for the full list.
package gpuinterop

// Version is the current version of the library.
const Version = "0.1.0"
