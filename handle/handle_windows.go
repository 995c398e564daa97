//go:build windows

package handle

import (
	"errors"

	"golang.org/x/sys/windows"
)

var errFDOnWindows = errors.New("file descriptors are not supported on windows")

func closeOS(k Kind, v uintptr) error {
	switch k {
	case KindNT:
		return windows.CloseHandle(windows.Handle(v))
	case KindFD:
		return errFDOnWindows
	}
	return nil
}

func duplicateOS(k Kind, v uintptr) (uintptr, error) {
	if k != KindNT {
		return 0, errFDOnWindows
	}
	proc := windows.CurrentProcess()
	var dup windows.Handle
	err := windows.DuplicateHandle(proc, windows.Handle(v), proc, &dup,
		0, false, windows.DUPLICATE_SAME_ACCESS)
	if err != nil {
		return 0, err
	}
	return uintptr(dup), nil
}
