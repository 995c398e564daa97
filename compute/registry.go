package compute

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/gpuinterop"
	"golang.org/x/sync/errgroup"
)

// Factory creates an uninitialized backend from the current configuration.
type Factory func(cfg *gpuinterop.Config) Backend

var (
	factoriesMu sync.RWMutex
	factories   = make(map[API]Factory)
)

// Register registers a backend factory for api. Backend packages call it
// from init; registering an API twice replaces the factory.
func Register(api API, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[api] = f
}

// Unregister removes the factory for api. This is useful for testing.
func Unregister(api API) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	delete(factories, api)
}

// IsRegistered reports whether a factory is registered for api.
func IsRegistered(api API) bool {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	_, ok := factories[api]
	return ok
}

// Available returns the registered APIs in priority order, followed by any
// API outside the priority list.
func Available() []API {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	out := make([]API, 0, len(factories))
	for _, api := range apiPriority {
		if _, ok := factories[api]; ok {
			out = append(out, api)
		}
	}
	var rest []API
	for api := range factories {
		if !slices.Contains(apiPriority, api) {
			rest = append(rest, api)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

func factory(api API) Factory {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	return factories[api]
}

// Registry holds the backends that were found present at probe time.
type Registry struct {
	mu       sync.RWMutex
	backends []Backend // priority order
	probe    map[API]error
}

// RegistryOption configures NewRegistry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	cfg  *gpuinterop.Config
	apis []API
}

// WithConfig probes with cfg instead of gpuinterop.CurrentConfig.
func WithConfig(cfg gpuinterop.Config) RegistryOption {
	return func(o *registryOptions) {
		o.cfg = &cfg
	}
}

// WithAPIs restricts probing to apis.
func WithAPIs(apis ...API) RegistryOption {
	return func(o *registryOptions) {
		o.apis = apis
	}
}

// NewRegistry probes every registered backend and keeps the ones whose
// Init succeeds, in priority order. Backends are initialized concurrently
// since loading a driver library can take a while. Backends disabled in
// the configuration are not probed.
func NewRegistry(opts ...RegistryOption) *Registry {
	var o registryOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.cfg == nil {
		cfg := gpuinterop.CurrentConfig()
		o.cfg = &cfg
	}
	apis := o.apis
	if apis == nil {
		apis = Available()
	}

	log := gpuinterop.Logger()
	r := &Registry{probe: make(map[API]error)}

	type probe struct {
		api     API
		backend Backend
		err     error
	}
	var probes []*probe
	for _, api := range apis {
		f := factory(api)
		if f == nil {
			continue
		}
		if apiDisabled(o.cfg, api) {
			r.probe[api] = errDisabled
			log.Debug("compute: backend disabled by configuration", "api", api)
			continue
		}
		if b := f(o.cfg); b != nil {
			probes = append(probes, &probe{api: api, backend: b})
		}
	}

	var g errgroup.Group
	for _, p := range probes {
		g.Go(func() error {
			p.err = p.backend.Init()
			return nil
		})
	}
	_ = g.Wait()

	for _, p := range probes {
		r.probe[p.api] = p.err
		if p.err != nil {
			log.Debug("compute: backend not present", "api", p.api, "error", p.err)
			continue
		}
		r.backends = append(r.backends, p.backend)
		log.Info("compute: backend present", "api", p.api)
	}
	return r
}

var errDisabled = errors.New("compute: disabled by configuration")

func apiDisabled(cfg *gpuinterop.Config, api API) bool {
	for _, name := range cfg.DisabledAPIs {
		if a, ok := ParseAPI(name); ok && a == api {
			return true
		}
	}
	return false
}

// Present returns the APIs of the present backends in priority order.
func (r *Registry) Present() []API {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]API, len(r.backends))
	for i, b := range r.backends {
		out[i] = b.API()
	}
	return out
}

// ProbeError returns why api is not present, or nil if it is. APIs that
// were never probed report gpuinterop.ErrUnsupportedComputeAPI.
func (r *Registry) ProbeError(api API) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	err, ok := r.probe[api]
	if !ok {
		return gpuinterop.ErrUnsupportedComputeAPI
	}
	return err
}

// Backend returns the present backend for api.
func (r *Registry) Backend(api API) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.backends {
		if b.API() == api {
			return b, nil
		}
	}
	return nil, fmt.Errorf("compute: %s: %w", api, gpuinterop.ErrUnsupportedComputeAPI)
}

// Preferred returns the highest-priority present backend.
func (r *Registry) Preferred() (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.backends) == 0 {
		return nil, gpuinterop.ErrUnsupportedComputeAPI
	}
	return r.backends[0], nil
}

// Resolve picks the compute API for one D3D12 adapter: the highest-priority
// present backend with a device matching id.
func (r *Registry) Resolve(id AdapterIdentity) (Backend, DeviceInfo, error) {
	r.mu.RLock()
	backends := slices.Clone(r.backends)
	r.mu.RUnlock()

	if len(backends) == 0 {
		return nil, DeviceInfo{}, gpuinterop.ErrUnsupportedComputeAPI
	}
	var errs []error
	for _, b := range backends {
		info, err := MatchDevice(b, id)
		if err == nil {
			gpuinterop.Logger().Info("compute: device matched",
				"api", b.API(), "device", info.String(), "adapter", id.Name)
			return b, info, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", b.API(), err))
	}
	return nil, DeviceInfo{}, fmt.Errorf("compute: adapter %q: %w", id.Name, errors.Join(errs...))
}

// Close closes every present backend.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, b := range r.backends {
		errs = append(errs, b.Close())
	}
	r.backends = nil
	return errors.Join(errs...)
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry, probing on first use. Backend
// packages must be imported (and so registered) before the first call.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}
