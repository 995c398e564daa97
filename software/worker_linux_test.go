//go:build linux

package software

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/gpuinterop"
)

func TestWorkerOrder(t *testing.T) {
	w := newWorker()
	defer w.close()
	var got []int
	for i := 0; i < 100; i++ {
		if err := w.submit(func() error { got = append(got, i); return nil }); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.sync(); err != nil {
		t.Fatal(err)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("job %d ran at position %d", v, i)
		}
	}
}

func TestWorkerFirstError(t *testing.T) {
	w := newWorker()
	defer w.close()
	first := errors.New("first")
	_ = w.submit(func() error { return first })
	_ = w.submit(func() error { return errors.New("second") })
	if err := w.sync(); err != first {
		t.Errorf("sync = %v, want first error", err)
	}
}

func TestWorkerClose(t *testing.T) {
	w := newWorker()
	var stopped atomic.Bool
	_ = w.submit(func() error {
		pollUntil(func() bool { return false }, time.Millisecond, time.Time{}, w.quit)
		stopped.Store(true)
		return nil
	})
	if err := w.close(); err != nil {
		t.Fatal(err)
	}
	if !stopped.Load() {
		t.Error("close returned before the blocked job was released")
	}
	if err := w.submit(func() error { return nil }); !errors.Is(err, gpuinterop.ErrClosed) {
		t.Errorf("submit after close = %v, want ErrClosed", err)
	}
	if err := w.close(); err != nil {
		t.Errorf("second close = %v", err)
	}
}

func TestPollUntilDeadline(t *testing.T) {
	start := time.Now()
	if pollUntil(func() bool { return false }, time.Millisecond, start.Add(5*time.Millisecond), nil) {
		t.Fatal("pollUntil reported success")
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Error("pollUntil returned before the deadline")
	}
	var n atomic.Int32
	if !pollUntil(func() bool { return n.Add(1) > 3 }, time.Millisecond, time.Time{}, nil) {
		t.Error("pollUntil gave up without a deadline")
	}
}
