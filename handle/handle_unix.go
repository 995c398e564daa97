//go:build unix

package handle

import (
	"errors"

	"golang.org/x/sys/unix"
)

var errNTOnUnix = errors.New("NT handles are only available on windows")

func closeOS(k Kind, v uintptr) error {
	switch k {
	case KindFD:
		return unix.Close(int(v))
	case KindNT:
		return errNTOnUnix
	}
	return nil
}

func duplicateOS(k Kind, v uintptr) (uintptr, error) {
	if k != KindFD {
		return 0, errNTOnUnix
	}
	fd, err := unix.FcntlInt(v, unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return 0, err
	}
	return uintptr(fd), nil
}
