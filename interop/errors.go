package interop

import "errors"

var (
	// ErrSessionClosed is returned by factories of a closed Session.
	ErrSessionClosed = errors.New("interop: session closed")

	// ErrDestroyed is returned when an imported object is used after
	// Destroy.
	ErrDestroyed = errors.New("interop: object destroyed")
)
