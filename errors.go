package gpuinterop

import (
	"errors"
	"fmt"
)

// Error kinds shared by every package of the interop core.
//
// Callers classify failures with errors.Is. Backend and OS failures that do
// not map to one of these kinds are reported as *APIError.
var (
	// ErrUnsupportedFormat is returned when a DXGI format has no entry in
	// the compute format translation table.
	ErrUnsupportedFormat = errors.New("gpuinterop: unsupported format")

	// ErrUnsupportedComputeAPI is returned by every factory when no compute
	// backend is present. Callers may continue without interop.
	ErrUnsupportedComputeAPI = errors.New("gpuinterop: no compute API available")

	// ErrUnsupportedComputeAPIFeature is the distinguished recoverable error
	// returned when a backend rejects a request that looked supported.
	// Callers may downgrade, e.g. to a staging copy through host memory.
	ErrUnsupportedComputeAPIFeature = errors.New("gpuinterop: unsupported compute API feature")

	// ErrNoMatchingAdapter is returned when no D3D12 adapter has the
	// requested LUID.
	ErrNoMatchingAdapter = errors.New("gpuinterop: no matching adapter")

	// ErrNoMatchingDevice is returned when no compute device matches the
	// D3D12 adapter by LUID, UUID, name or single-device fallback.
	ErrNoMatchingDevice = errors.New("gpuinterop: no matching compute device")

	// ErrUnsupportedFeatureLevel is returned when a device cannot be created
	// at any of the requested feature levels.
	ErrUnsupportedFeatureLevel = errors.New("gpuinterop: feature level unsupported")

	// ErrHandleExportFailed is returned when the OS refuses to export,
	// duplicate or close a shared handle.
	ErrHandleExportFailed = errors.New("gpuinterop: handle export failed")

	// ErrCopySizeMismatch is returned when a copy exceeds the mapped size.
	ErrCopySizeMismatch = errors.New("gpuinterop: copy size exceeds resource size")

	// ErrUnsupportedDimension is returned for resource dimensions that have
	// no compute-side counterpart (e.g. buffers imported as images).
	ErrUnsupportedDimension = errors.New("gpuinterop: unsupported resource dimension")

	// ErrNotShareable is returned when a handle is requested for a resource
	// or fence that was not created with the shared flag.
	ErrNotShareable = errors.New("gpuinterop: object was not created as shareable")

	// ErrUnsupportedPlatform is returned when the requested driver cannot
	// run on the current operating system.
	ErrUnsupportedPlatform = errors.New("gpuinterop: unsupported platform")

	// ErrClosed is returned when an object is used after Close.
	ErrClosed = errors.New("gpuinterop: object closed")
)

// APIError describes a failed call into a native API (D3D12, DXGI, CUDA,
// HIP, Level Zero, SYCL or the OS). It is fatal to the operation.
type APIError struct {
	// API is the name of the failing API, e.g. "cuda" or "d3d12".
	API string

	// Op is the native function that failed.
	Op string

	// Code is the native result code (HRESULT, CUresult, ze_result_t, ...).
	Code int64

	// Message is the human-readable description reported by the API.
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s failed: %s (code %d)", e.API, e.Op, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s failed (code %d)", e.API, e.Op, e.Code)
}

// FeatureError is the concrete form of ErrUnsupportedComputeAPIFeature.
// It records which backend rejected which feature so that callers can
// report the downgrade.
type FeatureError struct {
	API     string
	Feature string

	// Err is the underlying native error, if any.
	Err error
}

func (e *FeatureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: unsupported feature %q: %v", e.API, e.Feature, e.Err)
	}
	return fmt.Sprintf("%s: unsupported feature %q", e.API, e.Feature)
}

// Is reports ErrUnsupportedComputeAPIFeature as the error kind.
func (e *FeatureError) Is(target error) bool {
	return target == ErrUnsupportedComputeAPIFeature
}

func (e *FeatureError) Unwrap() error { return e.Err }

// NewFeatureError returns a *FeatureError for api and feature.
func NewFeatureError(api, feature string, err error) error {
	return &FeatureError{API: api, Feature: feature, Err: err}
}

// IsUnsupportedFeature reports whether err is the recoverable
// unsupported-feature variant.
func IsUnsupportedFeature(err error) bool {
	return errors.Is(err, ErrUnsupportedComputeAPIFeature)
}
