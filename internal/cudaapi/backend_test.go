package cudaapi

import (
	"errors"
	"testing"

	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/compute"
)

func TestInitMissingLibrary(t *testing.T) {
	b := NewBackend(&CUDA, "/nonexistent/libcuda-missing.so")
	err := b.Init()
	if !errors.Is(err, gpuinterop.ErrUnsupportedComputeAPI) {
		t.Fatalf("Init error = %v, want ErrUnsupportedComputeAPI", err)
	}
	if _, err := b.Devices(); !errors.Is(err, compute.ErrNotInitialized) {
		t.Errorf("Devices error = %v, want ErrNotInitialized", err)
	}
	if _, err := b.Open(compute.DeviceInfo{}); !errors.Is(err, compute.ErrNotInitialized) {
		t.Errorf("Open error = %v, want ErrNotInitialized", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestCheck(t *testing.T) {
	fn := &functions{api: "cuda"}
	if err := fn.check("cuInit", success); err != nil {
		t.Errorf("check(success) = %v", err)
	}

	err := fn.check("cuMemAlloc", errOutOfMemory)
	var apiErr *gpuinterop.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("check error = %T, want *APIError", err)
	}
	if apiErr.Code != int64(errOutOfMemory) || apiErr.Message != "CUDA_ERROR_OUT_OF_MEMORY" {
		t.Errorf("APIError = %+v", apiErr)
	}
	if gpuinterop.IsUnsupportedFeature(err) {
		t.Error("fatal error reported as unsupported feature")
	}

	err = fn.checkFeature("cuImportExternalSemaphore", "external semaphore", errNotSupported, errNotSupported)
	if !gpuinterop.IsUnsupportedFeature(err) {
		t.Errorf("checkFeature error = %v, want unsupported feature", err)
	}
	err = fn.checkFeature("cuImportExternalSemaphore", "external semaphore", errInvalidHandle, errNotSupported)
	if gpuinterop.IsUnsupportedFeature(err) {
		t.Errorf("checkFeature(%v) reported as unsupported feature", errInvalidHandle)
	}

	if err := fn.missing("cuTexObjectCreate", "texture objects"); !gpuinterop.IsUnsupportedFeature(err) {
		t.Errorf("missing = %v, want unsupported feature", err)
	}
}

func TestCString(t *testing.T) {
	if got := cString([]byte("NVIDIA RTX\x00junk")); got != "NVIDIA RTX" {
		t.Errorf("cString = %q", got)
	}
	if got := cString([]byte("abc")); got != "abc" {
		t.Errorf("cString(unterminated) = %q", got)
	}
	b := []byte("hello\x00")
	if got := goString(&b[0]); got != "hello" {
		t.Errorf("goString = %q", got)
	}
}

// contextTable returns a function table whose object calls fail unless
// want is the current context.
func contextTable(want uintptr) *functions {
	var current uintptr
	inCtx := func() result {
		if current != want {
			return errInvalidContext
		}
		return success
	}
	return &functions{
		api: "cuda",
		cuCtxSetCurrent: func(ctx uintptr) result {
			current = ctx
			return success
		},
		cuMipmappedArrayGetLevel: func(a *uintptr, m uintptr, level uint32) result {
			*a = m + uintptr(level)
			return inCtx()
		},
		cuMipmappedArrayDestroy:    func(uintptr) result { return inCtx() },
		cuDestroyExternalMemory:    func(uintptr) result { return inCtx() },
		cuDestroyExternalSemaphore: func(uintptr) result { return inCtx() },
		cuTexObjectDestroy:         func(uint64) result { return inCtx() },
		cuSurfObjectDestroy:        func(uint64) result { return inCtx() },
		cuEventSynchronize:         func(uintptr) result { return inCtx() },
		cuEventDestroy:             func(uintptr) result { return inCtx() },
	}
}

func TestObjectCallsEnterContext(t *testing.T) {
	const ctx = 0x1234
	d := &Device{flavor: &CUDA, fn: contextTable(ctx), ctx: ctx}

	tests := []struct {
		name string
		call func() error
	}{
		{"mipmapped level", func() error {
			_, err := (&mipmappedArray{dev: d, h: 0x10}).Level(1)
			return err
		}},
		{"mipmapped destroy", (&mipmappedArray{dev: d, h: 0x10}).Destroy},
		{"external memory destroy", (&externalMemory{dev: d, h: 0x20}).Destroy},
		{"semaphore destroy", (&semaphore{dev: d, h: 0x30}).Destroy},
		{"texture destroy", (&textureObject{dev: d, h: 0x40}).Destroy},
		{"surface destroy", (&surfaceObject{dev: d, h: 0x50}).Destroy},
		{"event synchronize", (&event{dev: d, h: 0x60}).Synchronize},
		{"event close", (&event{dev: d, h: 0x60}).Close},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Another device's context is current beforehand.
			d.fn.cuCtxSetCurrent(0x9999)
			if err := tt.call(); err != nil {
				t.Errorf("%s: %v", tt.name, err)
			}
		})
	}
}

func TestInvalidContextString(t *testing.T) {
	if got := errInvalidContext.String(); got != "CUDA_ERROR_INVALID_CONTEXT" {
		t.Errorf("String = %q", got)
	}
}
