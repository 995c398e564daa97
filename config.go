package gpuinterop

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds the process-wide interop settings.
//
// A zero Config is valid: every compute API is probed with its default
// library names and unsupported-feature errors are logged only.
type Config struct {
	// OpenMessageBoxOnComputeAPIError selects a modal error report instead
	// of a log-only report when an unsupported-feature branch is taken.
	// It has no effect on fatal errors.
	OpenMessageBoxOnComputeAPIError bool `toml:"open_message_box_on_compute_api_error"`

	// EnableValidation attaches the D3D12 debug layer and info-queue
	// filter when a device is created.
	EnableValidation bool `toml:"enable_validation"`

	// DisabledAPIs lists compute APIs ("sycl", "levelzero", "cuda", "hip")
	// the registry must not probe.
	DisabledAPIs []string `toml:"disabled_apis"`

	// Library overrides. Empty means the platform default names.
	CUDALibrary      string `toml:"cuda_library"`
	HIPLibrary       string `toml:"hip_library"`
	LevelZeroLibrary string `toml:"level_zero_library"`
	SYCLShimLibrary  string `toml:"sycl_shim_library"`

	// FenceSpinInterval bounds the polling interval used by drivers that
	// cannot block on an OS event. Zero selects the driver default.
	FenceSpinInterval Duration `toml:"fence_spin_interval"`
}

// Duration is a time.Duration that reads TOML strings such as "250us".
type Duration time.Duration

// UnmarshalText parses s with time.ParseDuration.
func (d *Duration) UnmarshalText(s []byte) error {
	v, err := time.ParseDuration(string(s))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats d with time.Duration.String.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Environment variables read by ApplyEnv.
const (
	EnvMessageBox        = "GPUINTEROP_MESSAGE_BOX"
	EnvValidation        = "GPUINTEROP_VALIDATION"
	EnvDisabledAPIs      = "GPUINTEROP_DISABLED_APIS"
	EnvCUDALibrary       = "GPUINTEROP_CUDA_LIBRARY"
	EnvHIPLibrary        = "GPUINTEROP_HIP_LIBRARY"
	EnvLevelZeroLibrary  = "GPUINTEROP_LEVEL_ZERO_LIBRARY"
	EnvSYCLShimLibrary   = "GPUINTEROP_SYCL_SHIM_LIBRARY"
	EnvFenceSpinInterval = "GPUINTEROP_FENCE_SPIN_INTERVAL"
)

// LoadConfig reads a TOML configuration file and applies environment
// overrides on top of it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gpuinterop: read config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConfig decodes TOML data into a Config. Unknown keys are rejected.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("gpuinterop: parse config: %w", err)
	}
	return cfg, nil
}

// Encode returns the TOML form of c.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

// ApplyEnv overrides fields from environment variables. lookup is usually
// os.LookupEnv; tests pass a map-backed function.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvMessageBox); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("gpuinterop: %s: %w", EnvMessageBox, err)
		}
		c.OpenMessageBoxOnComputeAPIError = b
	}
	if v, ok := lookup(EnvValidation); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("gpuinterop: %s: %w", EnvValidation, err)
		}
		c.EnableValidation = b
	}
	if v, ok := lookup(EnvDisabledAPIs); ok {
		c.DisabledAPIs = nil
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				c.DisabledAPIs = append(c.DisabledAPIs, name)
			}
		}
	}
	if v, ok := lookup(EnvCUDALibrary); ok {
		c.CUDALibrary = v
	}
	if v, ok := lookup(EnvHIPLibrary); ok {
		c.HIPLibrary = v
	}
	if v, ok := lookup(EnvLevelZeroLibrary); ok {
		c.LevelZeroLibrary = v
	}
	if v, ok := lookup(EnvSYCLShimLibrary); ok {
		c.SYCLShimLibrary = v
	}
	if v, ok := lookup(EnvFenceSpinInterval); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("gpuinterop: %s: %w", EnvFenceSpinInterval, err)
		}
		c.FenceSpinInterval = Duration(d)
	}
	return nil
}

// configPtr is the process-wide configuration cell: written by SetConfig,
// read by every factory.
var configPtr atomic.Pointer[Config]

func init() {
	cfg := &Config{}
	// Environment errors leave the zero config in place; LoadConfig
	// reports them to callers that ask explicitly.
	_ = cfg.ApplyEnv(os.LookupEnv)
	configPtr.Store(cfg)
}

// SetConfig installs cfg as the process-wide configuration. A copy is
// stored, so later changes to cfg have no effect. Nil restores defaults.
func SetConfig(cfg *Config) {
	c := Config{}
	if cfg != nil {
		c = *cfg
		c.DisabledAPIs = append([]string(nil), cfg.DisabledAPIs...)
	}
	configPtr.Store(&c)
}

// CurrentConfig returns a copy of the process-wide configuration.
func CurrentConfig() Config {
	c := *configPtr.Load()
	c.DisabledAPIs = append([]string(nil), c.DisabledAPIs...)
	return c
}
