// Package software is a host-memory reference adapter. It implements both
// d3d12.Driver and compute.Backend, so the whole interop path (resource
// creation, handle export, import, cross-API fences) runs without a GPU.
//
// Every resource and fence lives in an anonymous memfd. Exported handles are
// real file descriptors and importing maps them again, so the compute side
// sees the same bytes through a separate mapping, as it would on hardware.
// Queues and streams are goroutine workers executing in submission order;
// fence waits poll the shared counter.
//
// The adapter is available on Linux only.
package software
