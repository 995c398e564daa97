package dynlib

import (
	"errors"
	"testing"
)

func TestOpenMissing(t *testing.T) {
	_, err := Open("libgpuinterop-does-not-exist.so.42", "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Open = %v, want ErrNotFound", err)
	}
}

func TestOpenNoNames(t *testing.T) {
	if _, err := Open(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Open() = %v, want ErrNotFound", err)
	}
}

func TestCloseNil(t *testing.T) {
	var l *Library
	if err := l.Close(); err != nil {
		t.Errorf("Close on nil = %v", err)
	}
}
