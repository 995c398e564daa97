//go:build linux

package software

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/compute"
	"github.com/gogpu/gpuinterop/handle"
)

func init() {
	compute.Register(compute.APIHost, func(cfg *gpuinterop.Config) compute.Backend {
		return NewBackend(cfg)
	})
}

// DefaultDevice describes the compute device paired with DefaultAdapter.
func DefaultDevice() compute.DeviceInfo {
	return compute.DeviceInfo{
		Name:    DefaultAdapterName,
		LUID:    DefaultLUID,
		HasLUID: true,
	}
}

// Backend is a compute.Backend whose devices execute on the host.
type Backend struct {
	devices     []compute.DeviceInfo
	unreliable  bool
	unsupported map[compute.ImageType]bool
	spin        time.Duration

	initialized atomic.Bool
}

var (
	_ compute.Backend = (*Backend)(nil)
	_ compute.Device  = (*Device)(nil)
	_ compute.Stream  = (*Stream)(nil)
)

// BackendOption configures NewBackend.
type BackendOption func(*Backend)

// WithDevices replaces the enumerated devices.
func WithDevices(devices ...compute.DeviceInfo) BackendOption {
	return func(b *Backend) {
		b.devices = devices
	}
}

// WithUnreliableLUID makes the backend report LUIDs as unreliable, so the
// matcher falls back to single-device and name matching.
func WithUnreliableLUID() BackendOption {
	return func(b *Backend) {
		b.unreliable = true
	}
}

// WithUnsupportedImageTypes makes image imports of the given types fail
// with an unsupported-feature error, as some drivers do.
func WithUnsupportedImageTypes(types ...compute.ImageType) BackendOption {
	return func(b *Backend) {
		for _, t := range types {
			b.unsupported[t] = true
		}
	}
}

// NewBackend returns an uninitialized host backend. A nil cfg uses the
// current configuration.
func NewBackend(cfg *gpuinterop.Config, opts ...BackendOption) *Backend {
	if cfg == nil {
		c := gpuinterop.CurrentConfig()
		cfg = &c
	}
	b := &Backend{
		devices:     []compute.DeviceInfo{DefaultDevice()},
		unsupported: make(map[compute.ImageType]bool),
		spin:        spinInterval(*cfg),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// API implements compute.Backend.
func (b *Backend) API() compute.API { return compute.APIHost }

// Init implements compute.Backend.
func (b *Backend) Init() error {
	b.initialized.Store(true)
	return nil
}

// Devices implements compute.Backend.
func (b *Backend) Devices() ([]compute.DeviceInfo, error) {
	if !b.initialized.Load() {
		return nil, compute.ErrNotInitialized
	}
	out := make([]compute.DeviceInfo, len(b.devices))
	for i, d := range b.devices {
		d.Index = i
		out[i] = d
	}
	return out, nil
}

// UnreliableLUID implements compute.Backend.
func (b *Backend) UnreliableLUID() bool { return b.unreliable }

// Open implements compute.Backend.
func (b *Backend) Open(info compute.DeviceInfo) (compute.Device, error) {
	if !b.initialized.Load() {
		return nil, compute.ErrNotInitialized
	}
	if info.Index < 0 || info.Index >= len(b.devices) {
		return nil, fmt.Errorf("software: device index %d of %d", info.Index, len(b.devices))
	}
	return &Device{backend: b, info: info, regions: make(map[uintptr][]byte)}, nil
}

// Close implements compute.Backend.
func (b *Backend) Close() error {
	b.initialized.Store(false)
	return nil
}

// Device is an opened host compute device. Device pointers are host
// addresses of memory the device allocated or imported.
type Device struct {
	backend *Backend
	info    compute.DeviceInfo

	mu      sync.RWMutex
	regions map[uintptr][]byte
	closed  bool
}

// API implements compute.Device.
func (d *Device) API() compute.API { return compute.APIHost }

// Info implements compute.Device.
func (d *Device) Info() compute.DeviceInfo { return d.info }

func addr(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}

func (d *Device) register(b []byte) compute.DevicePtr {
	p := addr(b)
	d.mu.Lock()
	d.regions[p] = b
	d.mu.Unlock()
	return compute.DevicePtr(p)
}

func (d *Device) unregister(p uintptr) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.regions[p]
	delete(d.regions, p)
	return ok
}

// Memory returns the n bytes at p. Kernels launched on a stream use it to
// reach device memory.
func (d *Device) Memory(p compute.DevicePtr, n uint64) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for base, b := range d.regions {
		if uintptr(p) >= base && uint64(uintptr(p)-base)+n <= uint64(len(b)) {
			off := uintptr(p) - base
			return b[off : uint64(off)+n], nil
		}
	}
	return nil, fmt.Errorf("%w: %d bytes at %#x are not device memory", compute.ErrInvalidCopy, n, uintptr(p))
}

// NewStream implements compute.Device.
func (d *Device) NewStream() (compute.Stream, error) {
	return &Stream{dev: d, w: newWorker()}, nil
}

// NewEvent implements compute.Device. A new event is complete.
func (d *Device) NewEvent() (compute.Event, error) {
	ch := make(chan struct{})
	close(ch)
	return &Event{ch: ch}, nil
}

// Alloc implements compute.Device.
func (d *Device) Alloc(size uint64) (compute.DevicePtr, error) {
	if size == 0 {
		return 0, fmt.Errorf("software: zero-byte allocation")
	}
	return d.register(make([]byte, size)), nil
}

// Free implements compute.Device.
func (d *Device) Free(p compute.DevicePtr) error {
	if !d.unregister(uintptr(p)) {
		return fmt.Errorf("software: %#x was not allocated", uintptr(p))
	}
	return nil
}

// ImportMemory implements compute.Device. The object behind h is mapped a
// second time; h stays owned by the caller.
func (d *Device) ImportMemory(h *handle.Handle, size uint64) (compute.ExternalMemory, error) {
	data, err := mapHandle(h, size)
	if err != nil {
		return nil, err
	}
	return &externalMemory{dev: d, data: data}, nil
}

// ImportSemaphore implements compute.Device.
func (d *Device) ImportSemaphore(h *handle.Handle) (compute.ExternalSemaphore, error) {
	data, err := mapHandle(h, 8)
	if err != nil {
		return nil, gpuinterop.NewFeatureError("host", "external semaphore", err)
	}
	return &semaphore{data: data, spin: d.backend.spin}, nil
}

func asStream(s compute.Stream) (*Stream, error) {
	st, ok := s.(*Stream)
	if !ok || st == nil {
		return nil, compute.ErrForeignObject
	}
	return st, nil
}

// Copy implements compute.Device.
func (d *Device) Copy(c *compute.Copy, s compute.Stream, opts ...compute.OpOption) error {
	if err := c.Validate(); err != nil {
		return err
	}
	st, err := asStream(s)
	if err != nil {
		return err
	}
	cp := *c
	return st.enqueue(compute.Options(opts...), func() error { return d.copy(&cp) })
}

func (d *Device) copy(c *compute.Copy) error {
	n := c.WidthBytes
	for z := uint32(0); z < max(c.Depth, 1); z++ {
		for y := uint32(0); y < max(c.Height, 1); y++ {
			src, err := d.row(c, c.Src, z, y)
			if err != nil {
				return err
			}
			dst, err := d.row(c, c.Dst, z, y)
			if err != nil {
				return err
			}
			copy(dst[:n], src[:n])
		}
	}
	return nil
}

// row returns the bytes of row y of slice z of one copy endpoint.
func (d *Device) row(c *compute.Copy, e compute.Endpoint, z, y uint32) ([]byte, error) {
	n := c.WidthBytes
	pitch := max(e.Pitch, n)
	rows := uint64(max(e.Height, c.Height, 1))
	off := e.Offset + uint64(z)*pitch*rows + uint64(y)*pitch
	switch e.Kind {
	case compute.MemoryHost:
		if off+n > uint64(len(e.Host)) {
			return nil, fmt.Errorf("%w: host row (%d,%d) out of bounds", compute.ErrInvalidCopy, y, z)
		}
		return e.Host[off : off+n], nil
	case compute.MemoryDevice:
		return d.Memory(e.Device+compute.DevicePtr(off), n)
	case compute.MemoryArray:
		a, ok := e.Array.(*array)
		if !ok {
			return nil, compute.ErrForeignObject
		}
		b, err := a.row(z, y)
		if err != nil {
			return nil, err
		}
		if uint64(len(b)) < n {
			return nil, fmt.Errorf("%w: %d-byte row from %d-byte image row", compute.ErrInvalidCopy, n, len(b))
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: endpoint kind %s", compute.ErrInvalidCopy, e.Kind)
	}
}

var objectHandles atomic.Uint64

// CreateTextureObject implements compute.Device.
func (d *Device) CreateTextureObject(src compute.TextureSource, desc *compute.ImageDesc, sampler *compute.SamplerDesc) (compute.TextureObject, error) {
	t := &Texture{id: objectHandles.Add(1), sampler: *sampler}
	switch {
	case src.Mipmapped != nil:
		m, ok := src.Mipmapped.(*mipmappedArray)
		if !ok {
			return nil, compute.ErrForeignObject
		}
		t.levels = m.levels
	case src.Level != nil:
		a, ok := src.Level.(*array)
		if !ok {
			return nil, compute.ErrForeignObject
		}
		t.levels = []*array{a}
	default:
		return nil, fmt.Errorf("software: texture object without source")
	}
	return t, nil
}

// CreateSurfaceObject implements compute.Device.
func (d *Device) CreateSurfaceObject(level compute.Array) (compute.SurfaceObject, error) {
	a, ok := level.(*array)
	if !ok {
		return nil, compute.ErrForeignObject
	}
	if !a.writable {
		return nil, gpuinterop.NewFeatureError("host", "surface load/store", nil)
	}
	return &Surface{id: objectHandles.Add(1), arr: a}, nil
}

// Close implements compute.Device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	clear(d.regions)
	return nil
}

// Stream is an in-order host work queue.
type Stream struct {
	dev *Device
	w   *worker
}

// Synchronize implements compute.Stream.
func (s *Stream) Synchronize() error {
	return s.w.sync()
}

// Close implements compute.Stream.
func (s *Stream) Close() error {
	return s.w.close()
}

// Launch enqueues a kernel. fn runs on the stream goroutine after all
// previously enqueued work.
func (s *Stream) Launch(fn func() error, opts ...compute.OpOption) error {
	return s.enqueue(compute.Options(opts...), fn)
}

func (s *Stream) enqueue(cfg compute.OpConfig, fn func() error) error {
	waits := make([]<-chan struct{}, 0, len(cfg.Wait))
	for _, e := range cfg.Wait {
		ev, ok := e.(*Event)
		if !ok {
			return compute.ErrForeignObject
		}
		waits = append(waits, ev.current())
	}
	var complete func()
	if cfg.Record != nil {
		ev, ok := cfg.Record.(*Event)
		if !ok {
			return compute.ErrForeignObject
		}
		complete = ev.record()
	}
	err := s.w.submit(func() error {
		if complete != nil {
			defer complete()
		}
		for _, ch := range waits {
			select {
			case <-ch:
			case <-s.w.quit:
				return gpuinterop.ErrClosed
			}
		}
		return fn()
	})
	if err != nil && complete != nil {
		complete()
	}
	return err
}

// Event completes when the work it was last recorded after has run.
type Event struct {
	mu sync.Mutex
	ch chan struct{}
}

func (e *Event) current() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ch
}

// record resets e and returns the function that completes it.
func (e *Event) record() func() {
	ch := make(chan struct{})
	e.mu.Lock()
	e.ch = ch
	e.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Synchronize implements compute.Event.
func (e *Event) Synchronize() error {
	<-e.current()
	return nil
}

// Close implements compute.Event.
func (e *Event) Close() error { return nil }

type externalMemory struct {
	dev  *Device
	data []byte

	mu     sync.Mutex
	mapped []uintptr
}

func (m *externalMemory) MappedBuffer(offset, size uint64) (compute.DevicePtr, error) {
	if size == 0 || offset+size > uint64(len(m.data)) {
		return 0, fmt.Errorf("%w: buffer [%d, %d) of %d-byte memory", gpuinterop.ErrCopySizeMismatch, offset, offset+size, len(m.data))
	}
	p := m.dev.register(m.data[offset : offset+size])
	m.mu.Lock()
	m.mapped = append(m.mapped, uintptr(p))
	m.mu.Unlock()
	return p, nil
}

func (m *externalMemory) MappedMipmappedArray(desc *compute.ImageDesc) (compute.MipmappedArray, error) {
	if m.dev.backend.unsupported[desc.Type] {
		return nil, gpuinterop.NewFeatureError("host", "image type "+desc.Type.String(), nil)
	}
	return newMipmappedArray(m.data, desc)
}

func (m *externalMemory) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.mapped {
		m.dev.unregister(p)
	}
	m.mapped = nil
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	return err
}

type semaphore struct {
	spin time.Duration

	mu   sync.RWMutex
	data []byte
}

func (s *semaphore) value() (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return 0, false
	}
	return loadTimeline(s.data), true
}

func (s *semaphore) Signal(st compute.Stream, value uint64, opts ...compute.OpOption) error {
	stream, err := asStream(st)
	if err != nil {
		return err
	}
	return stream.enqueue(compute.Options(opts...), func() error {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.data == nil {
			return gpuinterop.ErrClosed
		}
		storeTimeline(s.data, value)
		return nil
	})
}

func (s *semaphore) Wait(st compute.Stream, value uint64, opts ...compute.OpOption) error {
	stream, err := asStream(st)
	if err != nil {
		return err
	}
	return stream.enqueue(compute.Options(opts...), func() error {
		reached := func() bool {
			v, ok := s.value()
			return !ok || v >= value
		}
		if !pollUntil(reached, s.spin, time.Time{}, stream.w.quit) {
			return gpuinterop.ErrClosed
		}
		if _, ok := s.value(); !ok {
			return gpuinterop.ErrClosed
		}
		return nil
	})
}

func (s *semaphore) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil
	}
	err := unix.Munmap(s.data)
	s.data = nil
	return err
}
