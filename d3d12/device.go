package d3d12

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/dxgi"
)

// Identity is the adapter identity a Device exposes for cross-API matching.
type Identity struct {
	LUID         dxgi.LUID
	Vendor       dxgi.Vendor
	Name         string
	FeatureLevel FeatureLevel
}

// DeviceOption configures NewDevice.
type DeviceOption func(*deviceOptions)

type deviceOptions struct {
	validation   bool
	computeQueue bool
}

// WithValidation enables the debug layer and installs the default
// info-queue filter. The default comes from gpuinterop.Config.
func WithValidation(enabled bool) DeviceOption {
	return func(o *deviceOptions) {
		o.validation = enabled
	}
}

// WithoutComputeQueue skips creating the compute queue.
func WithoutComputeQueue() DeviceOption {
	return func(o *deviceOptions) {
		o.computeQueue = false
	}
}

// Device is a D3D12 device with a direct queue, an optional compute queue
// and one command allocator per queue type.
//
// Device is safe for concurrent use; objects it creates document their own
// rules.
type Device struct {
	native  DeviceDriver
	adapter AdapterInfo
	level   FeatureLevel
	options FeatureOptions

	queues     map[CommandListType]*Queue
	allocators map[CommandListType]*CommandAllocator

	stcMu    sync.Mutex
	stcFence *Fence
	stcValue uint64

	closeOnce sync.Once
	closeErr  error
}

// NewDevice creates a device on adapter at exactly level.
//
// Failure to create the compute queue is logged and leaves
// HasComputeQueue false; every other failure is returned.
func NewDevice(drv Driver, adapter AdapterInfo, level FeatureLevel, opts ...DeviceOption) (*Device, error) {
	o := deviceOptions{
		validation:   gpuinterop.CurrentConfig().EnableValidation,
		computeQueue: true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	log := gpuinterop.Logger()

	if o.validation {
		if err := drv.EnableDebugLayer(); err != nil {
			log.Warn("d3d12: debug layer unavailable", "driver", drv.Name(), "error", err)
			o.validation = false
		}
	}

	native, err := drv.CreateDevice(adapter, level)
	if err != nil {
		return nil, fmt.Errorf("d3d12: create device on %q at %s: %w", adapter.Desc.Name, level, err)
	}

	d := &Device{
		native:     native,
		adapter:    adapter,
		level:      level,
		queues:     make(map[CommandListType]*Queue, 2),
		allocators: make(map[CommandListType]*CommandAllocator, 2),
	}

	if o.validation {
		if err := native.ConfigureInfoQueue(DefaultInfoQueueFilter()); err != nil {
			log.Warn("d3d12: info queue filter not installed", "error", err)
		}
	}

	if opt, err := native.Options(); err != nil {
		log.Debug("d3d12: feature options query failed", "error", err)
	} else {
		d.options = opt
	}

	direct, err := native.CreateQueue(CommandListTypeDirect)
	if err != nil {
		_ = native.Close()
		return nil, fmt.Errorf("d3d12: create direct queue: %w", err)
	}
	d.addQueue(CommandListTypeDirect, direct)

	if o.computeQueue {
		if compute, err := native.CreateQueue(CommandListTypeCompute); err != nil {
			log.Warn("d3d12: compute queue unavailable", "adapter", adapter.Desc.Name, "error", err)
		} else {
			d.addQueue(CommandListTypeCompute, compute)
		}
	}

	log.Info("d3d12: device created",
		slog.String("driver", drv.Name()),
		slog.String("adapter", adapter.Desc.Name),
		slog.String("luid", adapter.Desc.LUID.String()),
		slog.String("featureLevel", level.String()),
		slog.Bool("computeQueue", d.HasComputeQueue()),
	)
	return d, nil
}

func (d *Device) addQueue(typ CommandListType, native QueueDriver) {
	d.queues[typ] = &Queue{typ: typ, native: native}
	d.allocators[typ] = newCommandAllocator(typ)
}

// Identity returns the adapter identity and the device's feature level.
func (d *Device) Identity() Identity {
	return Identity{
		LUID:         d.adapter.Desc.LUID,
		Vendor:       d.adapter.Desc.Vendor,
		Name:         d.adapter.Desc.Name,
		FeatureLevel: d.level,
	}
}

// Adapter returns the adapter the device was created on.
func (d *Device) Adapter() AdapterInfo { return d.adapter }

// LUID returns the adapter LUID.
func (d *Device) LUID() dxgi.LUID { return d.adapter.Desc.LUID }

// Vendor returns the adapter vendor.
func (d *Device) Vendor() dxgi.Vendor { return d.adapter.Desc.Vendor }

// Name returns the adapter name.
func (d *Device) Name() string { return d.adapter.Desc.Name }

// FeatureLevel returns the level the device was created at.
func (d *Device) FeatureLevel() FeatureLevel { return d.level }

// Options returns the queried feature options.
func (d *Device) Options() FeatureOptions { return d.options }

// SupportsROVs reports rasterizer-ordered view support: always at 12_1 and
// above, otherwise per the D3D12_OPTIONS bit.
func (d *Device) SupportsROVs() bool {
	return d.level >= FeatureLevel12_1 || d.options.ROVsSupported
}

// HasComputeQueue reports whether the compute queue was created.
func (d *Device) HasComputeQueue() bool {
	_, ok := d.queues[CommandListTypeCompute]
	return ok
}

// Queue returns the queue of the given type, or nil.
func (d *Device) Queue(typ CommandListType) *Queue { return d.queues[typ] }

// Allocator returns the command allocator for the given type, or nil.
func (d *Device) Allocator(typ CommandListType) *CommandAllocator { return d.allocators[typ] }

// Native returns the driver-level device.
func (d *Device) Native() DeviceDriver { return d.native }

// Footprints lays out every subresource of desc for a copy through a
// buffer and returns the total size.
func (d *Device) Footprints(desc *ResourceDesc) ([]PlacedSubresourceFootprint, uint64) {
	return d.native.CopyableFootprints(desc, 0, desc.SubresourceCount(), 0)
}

// SingleTimeCommands records fn into a transient direct command list,
// executes it and blocks until the GPU has finished.
func (d *Device) SingleTimeCommands(fn func(*CommandList) error) error {
	q := d.Queue(CommandListTypeDirect)
	alloc := d.Allocator(CommandListTypeDirect)
	if q == nil || alloc == nil {
		return gpuinterop.ErrClosed
	}

	d.stcMu.Lock()
	defer d.stcMu.Unlock()

	if d.stcFence == nil {
		f, err := d.CreateFence(0, false)
		if err != nil {
			return fmt.Errorf("d3d12: single-time commands fence: %w", err)
		}
		d.stcFence = f
	}

	list := alloc.NewCommandList()
	defer alloc.Recycle(list)
	if err := fn(list); err != nil {
		return err
	}
	if err := list.Close(); err != nil {
		return err
	}
	if err := q.Execute(list); err != nil {
		return err
	}
	d.stcValue++
	if err := q.Signal(d.stcFence, d.stcValue); err != nil {
		return err
	}
	if _, err := d.stcFence.WaitOnCPU(d.stcValue, Infinite); err != nil {
		return err
	}
	return nil
}

// Close releases the queues and the device. Objects created from the
// device must be released first.
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		var errs []error
		if d.stcFence != nil {
			errs = append(errs, d.stcFence.Close())
		}
		for _, typ := range []CommandListType{CommandListTypeCompute, CommandListTypeDirect} {
			if q, ok := d.queues[typ]; ok {
				errs = append(errs, q.native.Close())
			}
		}
		clear(d.queues)
		clear(d.allocators)
		errs = append(errs, d.native.Close())
		d.closeErr = errors.Join(errs...)
	})
	return d.closeErr
}

// Queue submits command lists and orders them against fences. Submission
// order is execution order.
type Queue struct {
	typ    CommandListType
	native QueueDriver
	mu     sync.Mutex
}

// Type returns the queue type.
func (q *Queue) Type() CommandListType { return q.typ }

// Execute submits closed command lists.
func (q *Queue) Execute(lists ...*CommandList) error {
	for _, l := range lists {
		if !l.Closed() {
			return ErrCommandListOpen
		}
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.native.Execute(lists)
}

// Signal sets f to value once all previously submitted work completes.
func (q *Queue) Signal(f *Fence, value uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.native.Signal(f.native, value); err != nil {
		return fmt.Errorf("d3d12: queue signal %d: %w", value, err)
	}
	return nil
}

// Wait stalls the queue, not the caller, until f reaches value.
func (q *Queue) Wait(f *Fence, value uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.native.Wait(f.native, value); err != nil {
		return fmt.Errorf("d3d12: queue wait %d: %w", value, err)
	}
	return nil
}
