package interop

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/compute"
	"github.com/gogpu/gpuinterop/d3d12"
)

// Session owns the compute device matched to one D3D12 device.
type Session struct {
	dev     *d3d12.Device
	backend compute.Backend
	info    compute.DeviceInfo
	cdev    compute.Device

	mu     sync.Mutex
	closed bool
}

// SessionOption configures NewSession.
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	registry *compute.Registry
	api      compute.API
}

// WithRegistry resolves against r instead of compute.Default().
func WithRegistry(r *compute.Registry) SessionOption {
	return func(o *sessionOptions) {
		o.registry = r
	}
}

// WithAPI pins the compute API instead of taking the highest-priority
// backend with a matching device.
func WithAPI(api compute.API) SessionOption {
	return func(o *sessionOptions) {
		o.api = api
	}
}

// NewSession finds the compute device on the same GPU as dev and opens it.
// It fails with gpuinterop.ErrUnsupportedComputeAPI when no backend is
// present and gpuinterop.ErrNoMatchingDevice when none has the adapter.
func NewSession(dev *d3d12.Device, opts ...SessionOption) (*Session, error) {
	var o sessionOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = compute.Default()
	}

	id := compute.AdapterIdentity{LUID: dev.LUID(), Name: dev.Name()}
	var (
		b    compute.Backend
		info compute.DeviceInfo
		err  error
	)
	if o.api != compute.APINone {
		b, err = o.registry.Backend(o.api)
		if err == nil {
			info, err = compute.MatchDevice(b, id)
		}
	} else {
		b, info, err = o.registry.Resolve(id)
	}
	if err != nil {
		return nil, fmt.Errorf("interop: %w", err)
	}

	cdev, err := b.Open(info)
	if err != nil {
		return nil, fmt.Errorf("interop: open %s device %s: %w", b.API(), info, err)
	}
	gpuinterop.Logger().Info("interop: session opened",
		"adapter", dev.Name(), "luid", dev.LUID(), "api", b.API(), "device", info.String())
	return &Session{dev: dev, backend: b, info: info, cdev: cdev}, nil
}

// D3D12 returns the host device.
func (s *Session) D3D12() *d3d12.Device { return s.dev }

// API returns the compute API in use.
func (s *Session) API() compute.API { return s.backend.API() }

// Backend returns the compute backend.
func (s *Session) Backend() compute.Backend { return s.backend }

// DeviceInfo returns the matched compute device.
func (s *Session) DeviceInfo() compute.DeviceInfo { return s.info }

// Compute returns the opened compute device.
func (s *Session) Compute() compute.Device { return s.cdev }

// NewStream creates a compute stream.
func (s *Session) NewStream() (compute.Stream, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.cdev.NewStream()
}

// NewEvent creates a compute event.
func (s *Session) NewEvent() (compute.Event, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.cdev.NewEvent()
}

func (s *Session) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

// Close closes the compute device. Imported objects must be destroyed
// first.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.cdev.Close()
}

// ImportOption configures one import.
type ImportOption func(*importOptions)

type importOptions struct {
	name             string
	surfaceLoadStore bool
}

// WithHandleName exports the source under name instead of an
// auto-generated one. It only takes effect on the first export of the
// source object.
func WithHandleName(name string) ImportOption {
	return func(o *importOptions) {
		o.name = name
	}
}

// WithSurfaceLoadStore requests kernel write access to an imported image.
func WithSurfaceLoadStore() ImportOption {
	return func(o *importOptions) {
		o.surfaceLoadStore = true
	}
}

func importConfig(opts []ImportOption) importOptions {
	var o importOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// featureErr reports err when it is the recoverable unsupported-feature
// variant and returns it unchanged.
func featureErr(err error) error {
	if gpuinterop.IsUnsupportedFeature(err) {
		gpuinterop.ReportFeatureError(err)
	}
	return err
}

func joinDestroy(err error, destroy func() error) error {
	if derr := destroy(); derr != nil {
		return errors.Join(err, derr)
	}
	return err
}
