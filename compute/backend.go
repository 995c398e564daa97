package compute

import (
	"fmt"
	"slices"

	"github.com/gogpu/gpuinterop/dxgi"
	"github.com/gogpu/gpuinterop/handle"
)

// LevelZeroLUIDExtension is the driver extension Level Zero devices must
// expose to take part in LUID matching.
const LevelZeroLUIDExtension = "ZE_extension_device_luid"

// DevicePtr is a device address in a backend's address space.
type DevicePtr uintptr

// DeviceInfo identifies one enumerated compute device.
type DeviceInfo struct {
	// Index is the backend's enumeration index.
	Index int

	Name string

	LUID    dxgi.LUID
	HasLUID bool

	UUID    [16]byte
	HasUUID bool

	// Driver is the driver index for APIs that enumerate per driver
	// (Level Zero, SYCL platforms); Extensions lists that driver's
	// extensions.
	Driver     int
	Extensions []string
}

// HasExtension reports whether the device's driver exposes ext.
func (d *DeviceInfo) HasExtension(ext string) bool {
	return slices.Contains(d.Extensions, ext)
}

func (d DeviceInfo) String() string {
	if d.HasLUID {
		return fmt.Sprintf("%d:%s (LUID %s)", d.Index, d.Name, d.LUID)
	}
	return fmt.Sprintf("%d:%s", d.Index, d.Name)
}

// Backend is one compute API reached through a dynamically loaded function
// table. It is the per-API vtable: everything API-specific hangs off it and
// the objects it creates.
type Backend interface {
	API() API

	// Init resolves the function table and initializes the API's global
	// context. A backend is present once Init succeeds.
	Init() error

	// Devices enumerates compute devices.
	Devices() ([]DeviceInfo, error)

	// UnreliableLUID reports drivers known to misreport LUIDs; the matcher
	// then falls back to the single-device and name rules.
	UnreliableLUID() bool

	// Open creates a context or queue on the device.
	Open(info DeviceInfo) (Device, error)

	Close() error
}

// Stream is an in-order queue of asynchronous work: a CUDA or HIP stream,
// a Level Zero command list or a SYCL queue.
type Stream interface {
	// Synchronize blocks until all enqueued work has completed.
	Synchronize() error
	Close() error
}

// Event is a backend-native completion marker.
type Event interface {
	Synchronize() error
	Close() error
}

// Array is one level of an image in a backend's opaque layout.
type Array interface {
	Handle() uintptr
}

// MipmappedArray is an imported image pyramid. Level 0 is the full
// resolution image.
type MipmappedArray interface {
	Level(level uint32) (Array, error)
	Destroy() error
}

// ExternalMemory is memory imported from a D3D12 resource handle.
type ExternalMemory interface {
	// MappedBuffer maps a linear view of size bytes at offset.
	MappedBuffer(offset, size uint64) (DevicePtr, error)

	// MappedMipmappedArray maps an image view. Backends that cannot
	// represent desc return a *gpuinterop.FeatureError.
	MappedMipmappedArray(desc *ImageDesc) (MipmappedArray, error)

	Destroy() error
}

// ExternalSemaphore is a timeline semaphore imported from a D3D12 fence.
type ExternalSemaphore interface {
	// Signal enqueues a signal of value on s.
	Signal(s Stream, value uint64, opts ...OpOption) error

	// Wait enqueues a wait until the semaphore reaches value on s.
	Wait(s Stream, value uint64, opts ...OpOption) error

	Destroy() error
}

// TextureSource names what a texture object samples: a whole mipmapped
// array or a single level.
type TextureSource struct {
	Mipmapped MipmappedArray
	Level     Array
}

// TextureObject is a bindless sampled image.
type TextureObject interface {
	Handle() uint64
	Destroy() error
}

// SurfaceObject is a bindless storage image.
type SurfaceObject interface {
	Handle() uint64
	Destroy() error
}

// Device is an opened compute device.
type Device interface {
	API() API
	Info() DeviceInfo

	NewStream() (Stream, error)
	NewEvent() (Event, error)

	Alloc(size uint64) (DevicePtr, error)
	Free(p DevicePtr) error

	// ImportMemory imports a D3D12 resource handle as dedicated memory of
	// size bytes. h may be closed once ImportMemory returns.
	ImportMemory(h *handle.Handle, size uint64) (ExternalMemory, error)

	// ImportSemaphore imports a D3D12 fence handle.
	ImportSemaphore(h *handle.Handle) (ExternalSemaphore, error)

	// Copy enqueues c on s and returns without waiting.
	Copy(c *Copy, s Stream, opts ...OpOption) error

	CreateTextureObject(src TextureSource, desc *ImageDesc, sampler *SamplerDesc) (TextureObject, error)
	CreateSurfaceObject(level Array) (SurfaceObject, error)

	Close() error
}

// OpConfig holds the optional events of an asynchronous operation.
type OpConfig struct {
	// Wait lists events the operation waits for before it starts.
	Wait []Event

	// Record is recorded once the operation completes.
	Record Event
}

// OpOption configures one asynchronous operation.
type OpOption func(*OpConfig)

// WaitEvent makes the operation wait for e.
func WaitEvent(e Event) OpOption {
	return func(c *OpConfig) {
		if e != nil {
			c.Wait = append(c.Wait, e)
		}
	}
}

// RecordEvent records e when the operation completes.
func RecordEvent(e Event) OpOption {
	return func(c *OpConfig) {
		c.Record = e
	}
}

// Options folds opts into an OpConfig.
func Options(opts ...OpOption) OpConfig {
	var c OpConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
