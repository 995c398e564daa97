// Package sycl is the SYCL compute backend.
//
// SYCL is a C++ API, so the backend drives it through a small C-ABI shim
// library (libgpuinterop_sycl.so or gpuinterop_sycl.dll, or
// Config.SYCLShimLibrary) built against a SYCL implementation with the
// bindless images and external semaphore extensions. Every shim entry
// point returns a status code; see the status constants for how they map
// to errors.
//
// Sampled views bind their sampler when the image handle is created.
package sycl
