//go:build unix

package handle

import (
	"errors"
	"testing"

	"github.com/gogpu/gpuinterop"

	"golang.org/x/sys/unix"
)

func pipeHandles(t *testing.T) (*Handle, *Handle) {
	t.Helper()
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	r, w := FromFD(fds[0]), FromFD(fds[1])
	t.Cleanup(func() {
		_ = r.Close()
		_ = w.Close()
	})
	return r, w
}

func TestFDOwnership(t *testing.T) {
	r, _ := pipeHandles(t)
	if r.Kind() != KindFD {
		t.Fatalf("Kind() = %v, want fd", r.Kind())
	}
	if fd := r.FD(); fd < 0 {
		t.Fatalf("FD() = %d", fd)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if r.Valid() {
		t.Error("handle still valid after Close")
	}
	// Second close is a no-op.
	if err := r.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}

func TestDuplicateIndependent(t *testing.T) {
	r, w := pipeHandles(t)
	dup, err := w.Duplicate()
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	if dup.FD() == w.FD() {
		t.Fatal("duplicate shares the descriptor value")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close original: %v", err)
	}

	// The duplicate still refers to the pipe's write end.
	if _, err := unix.Write(dup.FD(), []byte{42}); err != nil {
		t.Fatalf("write through duplicate: %v", err)
	}
	buf := make([]byte, 1)
	if _, err := unix.Read(r.FD(), buf); err != nil || buf[0] != 42 {
		t.Fatalf("read = %v %v, want 42", buf, err)
	}
	if err := dup.Close(); err != nil {
		t.Fatalf("Close duplicate: %v", err)
	}
}

func TestTakeMovesOwnership(t *testing.T) {
	r, _ := pipeHandles(t)
	fd := r.FD()
	moved := r.Take()
	defer moved.Close()

	if r.Valid() {
		t.Error("source still valid after Take")
	}
	if moved.FD() != fd {
		t.Errorf("moved FD = %d, want %d", moved.FD(), fd)
	}
	// Closing the moved-from handle must not touch the descriptor.
	if err := r.Close(); err != nil {
		t.Fatalf("Close moved-from: %v", err)
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0); err != nil {
		t.Errorf("descriptor closed by moved-from handle: %v", err)
	}
}

func TestRelease(t *testing.T) {
	r, _ := pipeHandles(t)
	want := r.FD()
	k, v := r.Release()
	if k != KindFD || int(v) != want {
		t.Fatalf("Release() = %v %d, want fd %d", k, v, want)
	}
	if r.Valid() {
		t.Error("handle valid after Release")
	}
	if err := unix.Close(int(v)); err != nil {
		t.Fatalf("close released fd: %v", err)
	}
}

func TestNTOnUnix(t *testing.T) {
	h := FromNT(1234)
	defer h.Release()
	if _, err := h.Duplicate(); err == nil {
		t.Error("duplicating an NT handle on unix should fail")
	}
}

func TestCloseFailure(t *testing.T) {
	tests := []struct {
		name string
		h    *Handle
		want error
	}{
		// Far above any descriptor the test process holds.
		{"unopened fd", FromFD(1 << 20), unix.EBADF},
		{"nt handle", FromNT(1234), errNTOnUnix},
	}
	for _, tt := range tests {
		err := tt.h.Close()
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: Close = %v, want %v", tt.name, err, tt.want)
		}
		if errors.Is(err, gpuinterop.ErrHandleExportFailed) {
			t.Errorf("%s: Close failure reported as an export failure: %v", tt.name, err)
		}
		if tt.h.Valid() {
			t.Errorf("%s: handle still valid after failed Close", tt.name)
		}
	}
}
