//go:build !(windows && (amd64 || arm64))

package d3d12

import (
	"fmt"
	"runtime"

	"github.com/gogpu/gpuinterop"
)

// NewNativeDriver reports that d3d12.dll is unavailable on this platform.
// Use the software driver instead.
func NewNativeDriver() (Driver, error) {
	return nil, fmt.Errorf("d3d12: native driver on %s/%s: %w", runtime.GOOS, runtime.GOARCH, gpuinterop.ErrUnsupportedPlatform)
}
