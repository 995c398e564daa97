package levelzero

import (
	"fmt"
	"slices"

	"github.com/gogpu/gpuinterop"
)

const apiName = "level_zero"

func (r result) String() string {
	switch r {
	case success:
		return "ZE_RESULT_SUCCESS"
	case notReady:
		return "ZE_RESULT_NOT_READY"
	case errDeviceLost:
		return "ZE_RESULT_ERROR_DEVICE_LOST"
	case errOutOfHostMemory:
		return "ZE_RESULT_ERROR_OUT_OF_HOST_MEMORY"
	case errOutOfDeviceMemory:
		return "ZE_RESULT_ERROR_OUT_OF_DEVICE_MEMORY"
	case errUninitialized:
		return "ZE_RESULT_ERROR_UNINITIALIZED"
	case errUnsupportedVersion:
		return "ZE_RESULT_ERROR_UNSUPPORTED_VERSION"
	case errUnsupportedFeature:
		return "ZE_RESULT_ERROR_UNSUPPORTED_FEATURE"
	case errInvalidArgument:
		return "ZE_RESULT_ERROR_INVALID_ARGUMENT"
	case errInvalidNullHandle:
		return "ZE_RESULT_ERROR_INVALID_NULL_HANDLE"
	case errInvalidEnumeration:
		return "ZE_RESULT_ERROR_INVALID_ENUMERATION"
	case errUnsupportedEnumeration:
		return "ZE_RESULT_ERROR_UNSUPPORTED_ENUMERATION"
	case errUnsupportedImageFormat:
		return "ZE_RESULT_ERROR_UNSUPPORTED_IMAGE_FORMAT"
	case errUnknown:
		return "ZE_RESULT_ERROR_UNKNOWN"
	default:
		return fmt.Sprintf("ze_result_t(%#x)", uint32(r))
	}
}

func check(op string, r result) error {
	if r == success {
		return nil
	}
	return &gpuinterop.APIError{API: apiName, Op: op, Code: int64(r), Message: r.String()}
}

// checkFeature is check for calls where the listed codes mean the driver
// cannot do what was asked; those become a *gpuinterop.FeatureError.
func checkFeature(op, feature string, r result, recoverable ...result) error {
	err := check(op, r)
	if err != nil && slices.Contains(recoverable, r) {
		return gpuinterop.NewFeatureError(apiName, feature, err)
	}
	return err
}

func missing(symbol, feature string) error {
	return gpuinterop.NewFeatureError(apiName, feature, fmt.Errorf("%s not exported by the loader", symbol))
}
