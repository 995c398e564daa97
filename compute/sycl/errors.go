package sycl

import (
	"fmt"
	"runtime"
	"slices"

	"github.com/gogpu/gpuinterop"
)

const apiName = "sycl"

func (s status) String() string {
	switch s {
	case statusOK:
		return "ok"
	case statusInvalidValue:
		return "invalid value"
	case statusUnsupportedFeature:
		return "unsupported feature"
	case statusNotInitialized:
		return "not initialized"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// message returns the shim's description of the last failure on this
// thread, or the status name.
func (fn *functions) message(s status) string {
	if fn != nil && fn.lastError != nil {
		var buf [512]byte
		if n := fn.lastError(&buf[0], uintptr(len(buf))); n > 0 {
			return cString(buf[:min(int(n), len(buf))])
		}
	}
	return s.String()
}

// call runs f on a locked OS thread so that a failure message is read
// from the thread that produced it.
func (fn *functions) call(op string, f func() status) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	return fn.check(op, f())
}

// callFeature is call with the listed statuses reported as unsupported
// features.
func (fn *functions) callFeature(op, feature string, f func() status, recoverable ...status) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	return fn.checkFeature(op, feature, f(), recoverable...)
}

func (fn *functions) check(op string, s status) error {
	if s == statusOK {
		return nil
	}
	return &gpuinterop.APIError{API: apiName, Op: op, Code: int64(s), Message: fn.message(s)}
}

func (fn *functions) checkFeature(op, feature string, s status, recoverable ...status) error {
	err := fn.check(op, s)
	if err != nil && slices.Contains(recoverable, s) {
		return gpuinterop.NewFeatureError(apiName, feature, err)
	}
	return err
}
