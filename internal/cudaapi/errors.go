package cudaapi

import (
	"fmt"
	"slices"

	"github.com/gogpu/gpuinterop"
)

func (r result) String() string {
	switch r {
	case success:
		return "CUDA_SUCCESS"
	case errInvalidValue:
		return "CUDA_ERROR_INVALID_VALUE"
	case errOutOfMemory:
		return "CUDA_ERROR_OUT_OF_MEMORY"
	case errNotInit:
		return "CUDA_ERROR_NOT_INITIALIZED"
	case errDeinitialized:
		return "CUDA_ERROR_DEINITIALIZED"
	case errNoDevice:
		return "CUDA_ERROR_NO_DEVICE"
	case errInvalidDevice:
		return "CUDA_ERROR_INVALID_DEVICE"
	case errInvalidContext:
		return "CUDA_ERROR_INVALID_CONTEXT"
	case errInvalidHandle:
		return "CUDA_ERROR_INVALID_HANDLE"
	case errNotSupported:
		return "CUDA_ERROR_NOT_SUPPORTED"
	default:
		return fmt.Sprintf("CUresult(%d)", int32(r))
	}
}

// message asks the driver to describe r, falling back to the CUDA code
// name; HIP shares the numbering.
func (fn *functions) message(r result) string {
	if fn != nil && fn.cuGetErrorString != nil {
		var s *byte
		if fn.cuGetErrorString(r, &s) == success && s != nil {
			return goString(s)
		}
	}
	return r.String()
}

// check turns a failed call into a fatal *gpuinterop.APIError.
func (fn *functions) check(op string, r result) error {
	if r == success {
		return nil
	}
	return &gpuinterop.APIError{API: fn.api, Op: op, Code: int64(r), Message: fn.message(r)}
}

// checkFeature is check for calls where the listed codes mean the driver
// rejected a supported-looking request; those become a *FeatureError.
func (fn *functions) checkFeature(op, feature string, r result, recoverable ...result) error {
	err := fn.check(op, r)
	if err != nil && slices.Contains(recoverable, r) {
		return gpuinterop.NewFeatureError(fn.api, feature, err)
	}
	return err
}

// missing reports an optional entry point the driver does not export.
func (fn *functions) missing(symbol, feature string) error {
	return gpuinterop.NewFeatureError(fn.api, feature, fmt.Errorf("%s not exported by the driver", symbol))
}
