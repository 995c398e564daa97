//go:build linux

package software

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestTimelinePublishesWork(t *testing.T) {
	mem, err := newSharedMemory("timeline-test", 8)
	if err != nil {
		t.Fatal(err)
	}
	defer mem.close()

	// A second mapping of the same object, as an importer would hold.
	h, err := mem.export()
	if err != nil {
		t.Fatal(err)
	}
	view, err := mapHandle(h, 8)
	if err != nil {
		t.Fatal(err)
	}
	_ = h.Close()
	defer unix.Munmap(view)

	payload := make([]int, 64)
	go func() {
		for i := range payload {
			payload[i] = i * 3
		}
		storeTimeline(mem.data, 1)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for loadTimeline(view) < 1 {
		if time.Now().After(deadline) {
			t.Fatal("timeline never reached 1")
		}
		time.Sleep(time.Millisecond)
	}
	for i, v := range payload {
		if v != i*3 {
			t.Fatalf("payload[%d] = %d, want %d", i, v, i*3)
		}
	}
}

func TestTimelineInitialValue(t *testing.T) {
	f, err := newFence(7, 0, time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Release()
	if got := f.CompletedValue(); got != 7 {
		t.Errorf("CompletedValue = %d, want 7", got)
	}
	if err := f.Signal(9); err != nil {
		t.Fatal(err)
	}
	if got := f.CompletedValue(); got != 9 {
		t.Errorf("CompletedValue after Signal = %d, want 9", got)
	}
}
