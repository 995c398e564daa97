package compute

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/dxgi"
)

// registerFakes installs one factory per backend and removes them when the
// test ends.
func registerFakes(t *testing.T, backends ...*fakeBackend) {
	t.Helper()
	for _, b := range backends {
		Register(b.api, func(*gpuinterop.Config) Backend { return b })
		t.Cleanup(func() { Unregister(b.api) })
	}
}

func TestAPIPriority(t *testing.T) {
	want := []API{APISYCL, APILevelZero, APICUDA, APIHIP}
	if got := Priority(); !slices.Equal(got, want) {
		t.Fatalf("Priority = %v, want %v", got, want)
	}
	p := Priority()
	p[0] = APIHIP
	if Priority()[0] != APISYCL {
		t.Error("Priority returned the shared slice")
	}
}

func TestParseAPI(t *testing.T) {
	tests := []struct {
		in   string
		want API
		ok   bool
	}{
		{"sycl", APISYCL, true},
		{"Level_Zero", APILevelZero, true},
		{"levelzero", APILevelZero, true},
		{"ze", APILevelZero, true},
		{" CUDA ", APICUDA, true},
		{"hip", APIHIP, true},
		{"software", APIHost, true},
		{"vulkan", APINone, false},
		{"", APINone, false},
	}
	for _, tt := range tests {
		got, ok := ParseAPI(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseAPI(%q) = %s, %v; want %s, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
	for _, api := range append(Priority(), APIHost) {
		if got, ok := ParseAPI(api.String()); !ok || got != api {
			t.Errorf("ParseAPI(%s.String()) = %s, %v", api, got, ok)
		}
	}
}

func TestRegistryProbeOrder(t *testing.T) {
	cuda := &fakeBackend{api: APICUDA}
	sycl := &fakeBackend{api: APISYCL}
	hip := &fakeBackend{api: APIHIP, initErr: gpuinterop.ErrUnsupportedComputeAPI}
	registerFakes(t, cuda, hip, sycl)

	if got := Available(); !slices.Equal(got, []API{APISYCL, APICUDA, APIHIP}) {
		t.Fatalf("Available = %v", got)
	}

	r := NewRegistry(WithConfig(gpuinterop.Config{}))
	if got := r.Present(); !slices.Equal(got, []API{APISYCL, APICUDA}) {
		t.Fatalf("Present = %v", got)
	}
	if b, err := r.Preferred(); err != nil || b.API() != APISYCL {
		t.Errorf("Preferred = %v, %v", b, err)
	}
	if err := r.ProbeError(APICUDA); err != nil {
		t.Errorf("ProbeError(cuda) = %v", err)
	}
	if err := r.ProbeError(APIHIP); !errors.Is(err, gpuinterop.ErrUnsupportedComputeAPI) {
		t.Errorf("ProbeError(hip) = %v", err)
	}
	if err := r.ProbeError(APILevelZero); !errors.Is(err, gpuinterop.ErrUnsupportedComputeAPI) {
		t.Errorf("ProbeError(level_zero) = %v", err)
	}
	if _, err := r.Backend(APIHIP); !errors.Is(err, gpuinterop.ErrUnsupportedComputeAPI) {
		t.Errorf("Backend(hip) = %v", err)
	}

	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if !cuda.closed || !sycl.closed {
		t.Error("Close did not close every present backend")
	}
	if hip.closed {
		t.Error("Close closed a backend that failed Init")
	}
	if got := r.Present(); len(got) != 0 {
		t.Errorf("Present after Close = %v", got)
	}
}

func TestRegistryDisabledAPIs(t *testing.T) {
	cuda := &fakeBackend{api: APICUDA}
	ze := &fakeBackend{api: APILevelZero}
	registerFakes(t, cuda, ze)

	r := NewRegistry(WithConfig(gpuinterop.Config{DisabledAPIs: []string{"levelzero"}}))
	if got := r.Present(); !slices.Equal(got, []API{APICUDA}) {
		t.Fatalf("Present = %v", got)
	}
	if ze.inits != 0 {
		t.Error("disabled backend was initialized")
	}
	if err := r.ProbeError(APILevelZero); err == nil {
		t.Error("ProbeError(level_zero) = nil for a disabled API")
	}
}

func TestRegistryWithAPIs(t *testing.T) {
	cuda := &fakeBackend{api: APICUDA}
	sycl := &fakeBackend{api: APISYCL}
	registerFakes(t, cuda, sycl)

	r := NewRegistry(WithConfig(gpuinterop.Config{}), WithAPIs(APICUDA))
	if got := r.Present(); !slices.Equal(got, []API{APICUDA}) {
		t.Fatalf("Present = %v", got)
	}
	if sycl.inits != 0 {
		t.Error("SYCL probed although not requested")
	}
}

func TestRegistryResolve(t *testing.T) {
	luid := dxgi.LUIDFromUint64(0x42)
	sycl := &fakeBackend{api: APISYCL, devices: []DeviceInfo{
		{Index: 0, Name: "other", LUID: dxgi.LUIDFromUint64(7), HasLUID: true},
	}}
	cuda := &fakeBackend{api: APICUDA, devices: []DeviceInfo{
		{Index: 3, Name: "gpu", LUID: luid, HasLUID: true},
	}}
	registerFakes(t, sycl, cuda)

	r := NewRegistry(WithConfig(gpuinterop.Config{}))
	b, info, err := r.Resolve(AdapterIdentity{LUID: luid, Name: "gpu"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if b.API() != APICUDA || info.Index != 3 {
		t.Errorf("Resolve = %s %s, want cuda index 3", b.API(), info)
	}

	_, _, err = r.Resolve(AdapterIdentity{LUID: dxgi.LUIDFromUint64(99), Name: "none"})
	if !errors.Is(err, gpuinterop.ErrNoMatchingDevice) {
		t.Errorf("Resolve unknown adapter: err = %v, want ErrNoMatchingDevice", err)
	}
}

func TestRegistryEmpty(t *testing.T) {
	r := NewRegistry(WithConfig(gpuinterop.Config{}), WithAPIs(APINone))
	if _, err := r.Preferred(); !errors.Is(err, gpuinterop.ErrUnsupportedComputeAPI) {
		t.Errorf("Preferred = %v", err)
	}
	if _, _, err := r.Resolve(AdapterIdentity{}); !errors.Is(err, gpuinterop.ErrUnsupportedComputeAPI) {
		t.Errorf("Resolve = %v", err)
	}
}
