// Package cuda is the CUDA driver-API compute backend.
//
// The driver library (nvcuda.dll or libcuda.so.1, or Config.CUDALibrary)
// is loaded at probe time and its entry points are bound into a function
// table with purego; no cgo is involved. Importing the package registers
// the backend with the compute registry.
//
// D3D12 resources are imported as dedicated external memory of type
// D3D12_RESOURCE and fences as D3D12_FENCE semaphores. On POSIX systems the
// opaque file descriptor and timeline semaphore variants are used, and the
// driver takes ownership of a duplicate of the caller's descriptor.
package cuda
