//go:build !windows && !unix

package handle

import "errors"

var errNoHandles = errors.New("OS handles are not supported on this platform")

func closeOS(Kind, uintptr) error { return errNoHandles }

func duplicateOS(Kind, uintptr) (uintptr, error) { return 0, errNoHandles }
