package gpuinterop

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

const sampleConfig = `
open_message_box_on_compute_api_error = true
enable_validation = true
disabled_apis = ["hip", "sycl"]
cuda_library = "/opt/cuda/lib64/libcuda.so.1"
fence_spin_interval = "250us"
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if !cfg.OpenMessageBoxOnComputeAPIError || !cfg.EnableValidation {
		t.Errorf("bool fields not decoded: %+v", cfg)
	}
	if !slices.Equal(cfg.DisabledAPIs, []string{"hip", "sycl"}) {
		t.Errorf("DisabledAPIs = %v", cfg.DisabledAPIs)
	}
	if cfg.CUDALibrary != "/opt/cuda/lib64/libcuda.so.1" {
		t.Errorf("CUDALibrary = %q", cfg.CUDALibrary)
	}
	if got := time.Duration(cfg.FenceSpinInterval); got != 250*time.Microsecond {
		t.Errorf("FenceSpinInterval = %v", got)
	}
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown key", `enable_debug_layer = true`},
		{"bad duration", `fence_spin_interval = "soon"`},
		{"wrong type", `enable_validation = "yes"`},
		{"syntax", `disabled_apis = [`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseConfig([]byte(tt.data)); err == nil {
				t.Error("ParseConfig succeeded")
			}
		})
	}
}

func TestConfigEncodeRoundTrip(t *testing.T) {
	want := &Config{
		EnableValidation:  true,
		DisabledAPIs:      []string{"cuda"},
		SYCLShimLibrary:   "libgisycl.so",
		FenceSpinInterval: Duration(time.Millisecond),
	}
	data, err := want.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(data), "1ms") {
		t.Errorf("duration not encoded as text:\n%s", data)
	}
	got, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig: %v\n%s", err, data)
	}
	if got.SYCLShimLibrary != want.SYCLShimLibrary || got.FenceSpinInterval != want.FenceSpinInterval ||
		!slices.Equal(got.DisabledAPIs, want.DisabledAPIs) || !got.EnableValidation {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := &Config{DisabledAPIs: []string{"cuda"}, HIPLibrary: "keep"}
	err := cfg.ApplyEnv(envLookup(map[string]string{
		EnvMessageBox:        "1",
		EnvValidation:        "false",
		EnvDisabledAPIs:      " sycl, ,levelzero ",
		EnvCUDALibrary:       "nvcuda.dll",
		EnvLevelZeroLibrary:  "ze_loader.dll",
		EnvSYCLShimLibrary:   "gisycl.dll",
		EnvFenceSpinInterval: "2ms",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if !cfg.OpenMessageBoxOnComputeAPIError || cfg.EnableValidation {
		t.Errorf("bools = %v/%v", cfg.OpenMessageBoxOnComputeAPIError, cfg.EnableValidation)
	}
	if !slices.Equal(cfg.DisabledAPIs, []string{"sycl", "levelzero"}) {
		t.Errorf("DisabledAPIs = %q", cfg.DisabledAPIs)
	}
	if cfg.CUDALibrary != "nvcuda.dll" || cfg.HIPLibrary != "keep" ||
		cfg.LevelZeroLibrary != "ze_loader.dll" || cfg.SYCLShimLibrary != "gisycl.dll" {
		t.Errorf("libraries = %+v", cfg)
	}
	if cfg.FenceSpinInterval != Duration(2*time.Millisecond) {
		t.Errorf("FenceSpinInterval = %v", time.Duration(cfg.FenceSpinInterval))
	}
}

func TestApplyEnvErrors(t *testing.T) {
	for _, key := range []string{EnvMessageBox, EnvValidation, EnvFenceSpinInterval} {
		cfg := &Config{}
		err := cfg.ApplyEnv(envLookup(map[string]string{key: "maybe"}))
		if err == nil || !strings.Contains(err.Error(), key) {
			t.Errorf("%s: err = %v", key, err)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interop.toml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvCUDALibrary, "from-env")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.CUDALibrary != "from-env" {
		t.Errorf("environment did not override file: %q", cfg.CUDALibrary)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: err = %v", err)
	}
}

func TestSetConfigCopies(t *testing.T) {
	orig := CurrentConfig()
	t.Cleanup(func() { SetConfig(&orig) })

	cfg := &Config{DisabledAPIs: []string{"hip"}, EnableValidation: true}
	SetConfig(cfg)
	cfg.DisabledAPIs[0] = "cuda"
	cfg.EnableValidation = false

	got := CurrentConfig()
	if !got.EnableValidation || got.DisabledAPIs[0] != "hip" {
		t.Errorf("SetConfig kept a reference: %+v", got)
	}
	got.DisabledAPIs[0] = "sycl"
	if CurrentConfig().DisabledAPIs[0] != "hip" {
		t.Error("CurrentConfig returned the shared slice")
	}

	SetConfig(nil)
	if got := CurrentConfig(); got.EnableValidation || len(got.DisabledAPIs) != 0 {
		t.Errorf("SetConfig(nil) = %+v", got)
	}
}
