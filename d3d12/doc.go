// Package d3d12 creates D3D12 devices, shareable resources and timeline
// fences, and exports OS handles for them so that a compute API on the same
// adapter can import them.
//
// The package is split into a portable front end (Device, Resource, Fence,
// CommandList, the adapter chooser) and a Driver beneath it. On Windows
// NewNativeDriver talks to d3d12.dll through COM; the software package
// provides a host-memory Driver for other platforms and tests.
//
// Typical use:
//
//	drv, err := d3d12.NewNativeDriver()
//	adapter, err := d3d12.ChooseAdapter(drv, d3d12.PreferDedicatedMemory)
//	dev, err := d3d12.NewDevice(drv, adapter, d3d12.FeatureLevel12_0)
//	buf, err := dev.CreateResource(d3d12.ResourceSettings{
//	    Desc:      d3d12.BufferDesc(4096, d3d12.ResourceFlagNone),
//	    Shareable: true,
//	})
//	h, err := buf.SharedHandle("")
package d3d12
