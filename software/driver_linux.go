//go:build linux

package software

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/d3d12"
	"github.com/gogpu/gpuinterop/dxgi"
)

// DefaultLUID identifies the default software adapter on both sides of the
// interop boundary.
var DefaultLUID = dxgi.LUID{LowPart: 0x5f770001, HighPart: 0}

// DefaultAdapterName is the description of the default software adapter.
const DefaultAdapterName = "gpuinterop Software Adapter"

// DefaultAdapter returns the description of the default adapter.
func DefaultAdapter() dxgi.AdapterDesc {
	return dxgi.AdapterDesc{
		Name:            DefaultAdapterName,
		VendorID:        0x1414,
		Vendor:          dxgi.VendorUnknown,
		LUID:            DefaultLUID,
		SharedSystemMem: 1 << 30,
		Flags:           dxgi.AdapterFlagSoftware,
	}
}

// Driver is a d3d12.Driver over host memory.
type Driver struct {
	adapters     []dxgi.AdapterDesc
	maxLevel     d3d12.FeatureLevel
	computeQueue bool
	spin         time.Duration

	debug atomic.Bool
}

var (
	_ d3d12.Driver       = (*Driver)(nil)
	_ d3d12.DeviceDriver = (*d3dDevice)(nil)
)

// DriverOption configures NewDriver.
type DriverOption func(*Driver)

// WithMaxFeatureLevel caps the feature level devices can be created at.
// The default is 12_1.
func WithMaxFeatureLevel(l d3d12.FeatureLevel) DriverOption {
	return func(d *Driver) {
		d.maxLevel = l
	}
}

// WithAdapters replaces the adapter list.
func WithAdapters(adapters ...dxgi.AdapterDesc) DriverOption {
	return func(d *Driver) {
		d.adapters = adapters
	}
}

// WithComputeQueue controls whether devices offer a compute queue.
func WithComputeQueue(enabled bool) DriverOption {
	return func(d *Driver) {
		d.computeQueue = enabled
	}
}

// WithSpinInterval sets the fence polling interval.
func WithSpinInterval(interval time.Duration) DriverOption {
	return func(d *Driver) {
		if interval > 0 {
			d.spin = interval
		}
	}
}

// NewDriver returns a software driver with one default adapter.
func NewDriver(opts ...DriverOption) *Driver {
	d := &Driver{
		adapters:     []dxgi.AdapterDesc{DefaultAdapter()},
		maxLevel:     d3d12.FeatureLevel12_1,
		computeQueue: true,
		spin:         spinInterval(gpuinterop.CurrentConfig()),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func spinInterval(cfg gpuinterop.Config) time.Duration {
	if cfg.FenceSpinInterval > 0 {
		return time.Duration(cfg.FenceSpinInterval)
	}
	return defaultSpinInterval
}

// Name implements d3d12.Driver.
func (d *Driver) Name() string { return "software" }

// Adapters implements d3d12.Driver.
func (d *Driver) Adapters() ([]d3d12.AdapterInfo, error) {
	out := make([]d3d12.AdapterInfo, len(d.adapters))
	for i, desc := range d.adapters {
		out[i] = d3d12.AdapterInfo{Index: i, Desc: desc}
	}
	return out, nil
}

// EnableDebugLayer implements d3d12.Driver. The software driver validates
// unconditionally; the flag only adds debug logging.
func (d *Driver) EnableDebugLayer() error {
	d.debug.Store(true)
	return nil
}

// CreateDevice implements d3d12.Driver.
func (d *Driver) CreateDevice(adapter d3d12.AdapterInfo, level d3d12.FeatureLevel) (d3d12.DeviceDriver, error) {
	if adapter.Index < 0 || adapter.Index >= len(d.adapters) || d.adapters[adapter.Index].LUID != adapter.Desc.LUID {
		return nil, &gpuinterop.APIError{API: "d3d12", Op: "D3D12CreateDevice", Code: int64(eInvalidArg), Message: "unknown adapter"}
	}
	if level > d.maxLevel {
		return nil, &levelError{level: level, max: d.maxLevel}
	}
	return &d3dDevice{drv: d, level: level}, nil
}

// E_INVALIDARG as a signed HRESULT.
const eInvalidArg = -0x7ff8ffa9

type levelError struct {
	level, max d3d12.FeatureLevel
}

func (e *levelError) Error() string {
	return "software: feature level " + e.level.String() + " above " + e.max.String()
}

func (e *levelError) Unwrap() error { return gpuinterop.ErrUnsupportedFeatureLevel }

type d3dDevice struct {
	drv   *Driver
	level d3d12.FeatureLevel

	mu     sync.Mutex
	filter d3d12.InfoQueueFilter
	queues []*queue
	closed bool
}

func (d *d3dDevice) Options() (d3d12.FeatureOptions, error) {
	return d3d12.FeatureOptions{
		ROVsSupported:                 d.level >= d3d12.FeatureLevel12_1,
		TypedUAVLoadAdditionalFormats: true,
		ResourceHeapTier:              2,
	}, nil
}

func (d *d3dDevice) ConfigureInfoQueue(filter d3d12.InfoQueueFilter) error {
	if !d.drv.debug.Load() {
		return nil
	}
	d.mu.Lock()
	d.filter = filter
	d.mu.Unlock()
	gpuinterop.Logger().Debug("software: info queue configured",
		"break_on", len(filter.BreakOnSeverity), "deny", len(filter.DenyIDs))
	return nil
}

func (d *d3dDevice) CreateQueue(typ d3d12.CommandListType) (d3d12.QueueDriver, error) {
	switch typ {
	case d3d12.CommandListTypeDirect, d3d12.CommandListTypeCopy:
	case d3d12.CommandListTypeCompute:
		if !d.drv.computeQueue {
			return nil, &gpuinterop.APIError{API: "d3d12", Op: "CreateCommandQueue", Code: int64(eInvalidArg), Message: "compute queues disabled"}
		}
	default:
		return nil, &gpuinterop.APIError{API: "d3d12", Op: "CreateCommandQueue", Code: int64(eInvalidArg), Message: typ.String()}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, gpuinterop.ErrClosed
	}
	q := &queue{typ: typ, w: newWorker(), spin: d.drv.spin}
	d.queues = append(d.queues, q)
	return q, nil
}

func (d *d3dDevice) CreateCommittedResource(info *d3d12.ResourceCreateInfo) (d3d12.ResourceDriver, error) {
	r, err := newResource(info)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (d *d3dDevice) CreateFence(initial uint64, flags d3d12.FenceFlags) (d3d12.FenceDriver, error) {
	f, err := newFence(initial, flags, d.drv.spin)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (d *d3dDevice) CreateEvent() (d3d12.EventDriver, error) {
	return &event{spin: d.drv.spin}, nil
}

func (d *d3dDevice) CopyableFootprints(desc *d3d12.ResourceDesc, first, num uint32, baseOffset uint64) ([]d3d12.PlacedSubresourceFootprint, uint64) {
	return d3d12.ComputeFootprints(desc, first, num, baseOffset)
}

func (d *d3dDevice) Close() error {
	d.mu.Lock()
	queues := d.queues
	d.queues = nil
	d.closed = true
	d.mu.Unlock()
	for _, q := range queues {
		_ = q.Close()
	}
	return nil
}
