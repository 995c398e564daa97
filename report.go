package gpuinterop

import "errors"

// ReportFeatureError reports an unsupported-feature branch. It always logs
// a warning; when OpenMessageBoxOnComputeAPIError is set it additionally
// shows a modal report on platforms that have one.
//
// Errors that are not ErrUnsupportedComputeAPIFeature are ignored: fatal
// errors are returned to callers, never reported here.
func ReportFeatureError(err error) {
	if err == nil || !errors.Is(err, ErrUnsupportedComputeAPIFeature) {
		return
	}
	Logger().Warn("gpuinterop: compute API feature unsupported", "error", err)

	cfg := configPtr.Load()
	if cfg.OpenMessageBoxOnComputeAPIError {
		if berr := showErrorBox("Compute API Error", err.Error()); berr != nil {
			Logger().Warn("gpuinterop: error box unavailable", "error", berr)
		}
	}
}
