package compute

import "errors"

var (
	// ErrNotInitialized is returned when a backend is used before Init.
	ErrNotInitialized = errors.New("compute: backend not initialized")

	// ErrForeignObject is returned when an object created by one backend is
	// passed to another.
	ErrForeignObject = errors.New("compute: object belongs to another backend")

	// ErrInvalidCopy is returned for copy descriptors that are malformed,
	// e.g. a host endpoint without a buffer.
	ErrInvalidCopy = errors.New("compute: invalid copy descriptor")
)
