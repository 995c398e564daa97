package gpuinterop

import (
	"errors"
	"fmt"
	"testing"
)

func TestFeatureError(t *testing.T) {
	native := &APIError{API: "cuda", Op: "cuExternalMemoryGetMappedMipmappedArray", Code: 801, Message: "operation not supported"}
	err := NewFeatureError("cuda", "mipmapped array", native)

	if !errors.Is(err, ErrUnsupportedComputeAPIFeature) || !IsUnsupportedFeature(err) {
		t.Error("FeatureError is not ErrUnsupportedComputeAPIFeature")
	}
	if errors.Is(err, ErrUnsupportedComputeAPI) {
		t.Error("FeatureError must not match ErrUnsupportedComputeAPI")
	}
	var api *APIError
	if !errors.As(err, &api) || api.Code != 801 {
		t.Errorf("errors.As(*APIError) = %v", api)
	}

	wrapped := fmt.Errorf("import image: %w", err)
	if !IsUnsupportedFeature(wrapped) {
		t.Error("wrapped FeatureError lost its kind")
	}
	var fe *FeatureError
	if !errors.As(wrapped, &fe) || fe.Feature != "mipmapped array" {
		t.Errorf("errors.As(*FeatureError) = %v", fe)
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&APIError{API: "d3d12", Op: "CreateFence", Code: -2147024882}, "d3d12: CreateFence failed (code -2147024882)"},
		{&APIError{API: "hip", Op: "hipInit", Code: 100, Message: "no device"}, "hip: hipInit failed: no device (code 100)"},
		{NewFeatureError("sycl", "unsampled image", nil), `sycl: unsupported feature "unsampled image"`},
		{NewFeatureError("ze", "image view", errors.New("status 3")), `ze: unsupported feature "image view": status 3`},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestIsUnsupportedFeatureFatal(t *testing.T) {
	for _, err := range []error{
		nil,
		ErrUnsupportedFormat,
		ErrNoMatchingDevice,
		&APIError{API: "cuda", Op: "cuInit", Code: 100},
	} {
		if IsUnsupportedFeature(err) {
			t.Errorf("IsUnsupportedFeature(%v) = true", err)
		}
	}
}
