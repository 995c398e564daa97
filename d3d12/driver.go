package d3d12

import (
	"time"

	"github.com/gogpu/gpuinterop/dxgi"
	"github.com/gogpu/gpuinterop/handle"
)

// Driver is the platform layer beneath Device. The native driver talks to
// d3d12.dll through COM; other drivers (the software adapter) implement the
// same contract over host memory.
type Driver interface {
	// Name identifies the driver in logs.
	Name() string

	// Adapters enumerates the adapters visible to the driver, in the
	// driver's preference order.
	Adapters() ([]AdapterInfo, error)

	// EnableDebugLayer turns on API validation. It must be called before the
	// first device is created.
	EnableDebugLayer() error

	// CreateDevice creates a device on adapter at exactly level. It returns
	// an error wrapping gpuinterop.ErrUnsupportedFeatureLevel when the
	// adapter cannot provide that level.
	CreateDevice(adapter AdapterInfo, level FeatureLevel) (DeviceDriver, error)
}

// AdapterInfo identifies one enumerated adapter.
type AdapterInfo struct {
	// Index is the driver's enumeration index.
	Index int

	// Desc is the decoded DXGI adapter description.
	Desc dxgi.AdapterDesc
}

// DeviceDriver is the per-device half of a Driver.
type DeviceDriver interface {
	Options() (FeatureOptions, error)
	ConfigureInfoQueue(filter InfoQueueFilter) error

	CreateQueue(typ CommandListType) (QueueDriver, error)
	CreateCommittedResource(info *ResourceCreateInfo) (ResourceDriver, error)
	CreateFence(initial uint64, flags FenceFlags) (FenceDriver, error)
	CreateEvent() (EventDriver, error)

	// CopyableFootprints lays out num subresources starting at first, as
	// GetCopyableFootprints does, and returns the total byte size.
	CopyableFootprints(desc *ResourceDesc, first, num uint32, baseOffset uint64) ([]PlacedSubresourceFootprint, uint64)

	Close() error
}

// ResourceCreateInfo carries the arguments of CreateCommittedResource.
type ResourceCreateInfo struct {
	Heap         HeapProperties
	HeapFlags    HeapFlags
	Desc         ResourceDesc
	InitialState ResourceStates
	ClearValue   *ClearValue
}

// QueueDriver executes recorded command lists in submission order.
type QueueDriver interface {
	Execute(lists []*CommandList) error
	Signal(f FenceDriver, value uint64) error
	Wait(f FenceDriver, value uint64) error
	Close() error
}

// ResourceDriver is a committed resource.
type ResourceDriver interface {
	// Map returns CPU-visible memory for subresource. Only upload and
	// readback heaps can be mapped.
	Map(subresource uint32) ([]byte, error)
	Unmap(subresource uint32)

	// CreateSharedHandle exports an NT handle (or file descriptor) granting
	// full access to the resource.
	CreateSharedHandle(name string) (*handle.Handle, error)

	Release() error
}

// FenceDriver is a timeline fence.
type FenceDriver interface {
	CompletedValue() uint64
	Signal(value uint64) error
	SetEventOnCompletion(value uint64, e EventDriver) error
	CreateSharedHandle(name string) (*handle.Handle, error)
	Release() error
}

// EventDriver is a host event a fence can be told to set.
type EventDriver interface {
	// Wait blocks until the event is set or timeout elapses and reports
	// whether it was set. A negative timeout waits forever.
	Wait(timeout time.Duration) (bool, error)
	Close() error
}
