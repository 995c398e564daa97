// Package dynlib loads shared libraries at runtime and binds their exported
// C functions to Go function variables through purego.
//
// Binding is nullable: a missing symbol leaves the Go variable nil, and the
// caller decides whether that capability is required.
package dynlib

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ebitengine/purego"
)

// ErrNotFound is returned when none of the candidate library names load.
var ErrNotFound = errors.New("dynlib: library not found")

// Library is a loaded shared library.
type Library struct {
	name   string
	handle uintptr

	mu      sync.Mutex
	missing []string
}

// Open loads the first library in names that the platform loader accepts.
func Open(names ...string) (*Library, error) {
	var errs []string
	for _, name := range names {
		if name == "" {
			continue
		}
		h, err := openLibrary(name)
		if err == nil {
			return &Library{name: name, handle: h}, nil
		}
		errs = append(errs, fmt.Sprintf("%s: %v", name, err))
	}
	return nil, fmt.Errorf("%w (tried %s)", ErrNotFound, strings.Join(errs, "; "))
}

// Name returns the library name that was loaded.
func (l *Library) Name() string { return l.name }

// Symbol returns the address of name, or 0 if it is not exported.
func (l *Library) Symbol(name string) uintptr {
	addr, err := lookupSymbol(l.handle, name)
	if err != nil {
		return 0
	}
	return addr
}

// Bind resolves name and registers it into fptr, which must be a pointer to
// a function variable. It reports whether the symbol exists; on false the
// variable is left untouched (nil).
func (l *Library) Bind(fptr any, name string) bool {
	addr := l.Symbol(name)
	if addr == 0 {
		l.mu.Lock()
		l.missing = append(l.missing, name)
		l.mu.Unlock()
		return false
	}
	purego.RegisterFunc(fptr, addr)
	return true
}

// BindFirst binds the first of names that exists, for APIs that export
// versioned entry points such as cuMemcpyDtoH_v2.
func (l *Library) BindFirst(fptr any, names ...string) bool {
	for _, name := range names {
		if addr := l.Symbol(name); addr != 0 {
			purego.RegisterFunc(fptr, addr)
			return true
		}
	}
	l.mu.Lock()
	l.missing = append(l.missing, names[0])
	l.mu.Unlock()
	return false
}

// Missing returns the symbols Bind could not resolve.
func (l *Library) Missing() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.missing...)
}

// Close unloads the library. Function variables bound from it must not be
// called afterwards.
func (l *Library) Close() error {
	if l == nil || l.handle == 0 {
		return nil
	}
	err := closeLibrary(l.handle)
	l.handle = 0
	return err
}
